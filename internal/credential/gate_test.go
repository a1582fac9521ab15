package credential

import (
	"context"
	"errors"
	"sync"
	"testing"

	"veostudio/internal/domain"
	"veostudio/internal/infra"
)

type fakeHost struct {
	mu          sync.Mutex
	has         bool
	checkErr    error
	selectErr   error
	grantOnOpen bool
	opens       int
}

func (h *fakeHost) HasCredential(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.has, h.checkErr
}

func (h *fakeHost) OpenSelector(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opens++
	if h.selectErr != nil {
		return h.selectErr
	}
	if h.grantOnOpen {
		h.has = true
	}
	return nil
}

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		host    Host
		want    State
		wantErr error
	}{
		{name: "present", host: &fakeHost{has: true}, want: StatePresent},
		{name: "absent", host: &fakeHost{}, want: StateAbsent},
		{name: "check fails", host: &fakeHost{checkErr: errors.New("boom")}, want: StateAbsent, wantErr: domain.ErrHostCapabilityUnavailable},
		{name: "no host", host: nil, want: StateAbsent, wantErr: domain.ErrHostCapabilityUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate(tc.host, infra.NopLogger())
			got, err := g.Init(context.Background())
			if got != tc.want || g.State() != tc.want {
				t.Fatalf("state = %s / %s, want %s", got, g.State(), tc.want)
			}
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestInvalidateNotifiesOnce(t *testing.T) {
	g := NewGate(&fakeHost{has: true}, infra.NopLogger())
	if _, err := g.Init(context.Background()); err != nil {
		t.Fatalf("Init error: %v", err)
	}

	var mu sync.Mutex
	var seen []Transition
	cancel := g.Subscribe(func(tr Transition) {
		mu.Lock()
		seen = append(seen, tr)
		mu.Unlock()
	})
	defer cancel()

	var wg sync.WaitGroup
	changed := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed <- g.Invalidate("remote rejected key")
		}()
	}
	wg.Wait()
	close(changed)

	count := 0
	for c := range changed {
		if c {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("Invalidate reported %d changes, want 1", count)
	}
	if g.Present() {
		t.Fatal("gate should be absent")
	}
	if len(seen) != 1 || seen[0].From != StatePresent || seen[0].To != StateAbsent {
		t.Fatalf("unexpected transitions %#v", seen)
	}
}

func TestSelect(t *testing.T) {
	t.Run("grants credential", func(t *testing.T) {
		host := &fakeHost{grantOnOpen: true}
		g := NewGate(host, infra.NopLogger())
		_, _ = g.Init(context.Background())
		if err := g.Select(context.Background()); err != nil {
			t.Fatalf("Select error: %v", err)
		}
		if !g.Present() {
			t.Fatal("expected present after selection")
		}
	})

	t.Run("closed without credential", func(t *testing.T) {
		g := NewGate(&fakeHost{}, infra.NopLogger())
		err := g.Select(context.Background())
		if !errors.Is(err, domain.ErrCredentialUnavailable) {
			t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
		}
		if g.Present() {
			t.Fatal("gate must stay absent")
		}
	})

	t.Run("selector fails", func(t *testing.T) {
		host := &fakeHost{selectErr: errors.New("dialog unavailable")}
		g := NewGate(host, infra.NopLogger())
		err := g.Select(context.Background())
		if !errors.Is(err, domain.ErrHostCapabilityUnavailable) {
			t.Fatalf("expected ErrHostCapabilityUnavailable, got %v", err)
		}
		if g.Present() {
			t.Fatal("gate must stay absent")
		}
	})

	t.Run("recheck fails trusts selector", func(t *testing.T) {
		host := &fakeHost{checkErr: errors.New("flaky")}
		g := NewGate(host, infra.NopLogger())
		if err := g.Select(context.Background()); err != nil {
			t.Fatalf("Select error: %v", err)
		}
		if !g.Present() {
			t.Fatal("expected optimistic present")
		}
	})

	t.Run("no host", func(t *testing.T) {
		g := NewGate(nil, infra.NopLogger())
		if err := g.Select(context.Background()); !errors.Is(err, domain.ErrHostCapabilityUnavailable) {
			t.Fatalf("expected ErrHostCapabilityUnavailable, got %v", err)
		}
	})
}

func TestSubscribeCancel(t *testing.T) {
	g := NewGate(&fakeHost{grantOnOpen: true}, infra.NopLogger())
	calls := 0
	cancel := g.Subscribe(func(Transition) { calls++ })
	if err := g.Select(context.Background()); err != nil {
		t.Fatalf("Select error: %v", err)
	}
	cancel()
	cancel()
	g.Invalidate("test")
	if calls != 1 {
		t.Fatalf("subscriber called %d times, want 1", calls)
	}
}
