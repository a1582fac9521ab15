package studio

import (
	"context"
	"errors"
	"testing"
	"time"

	"veostudio/internal/batch"
	"veostudio/internal/credential"
	"veostudio/internal/domain"
	"veostudio/internal/infra"
	"veostudio/internal/infra/credentials"
	"veostudio/internal/providers/video"
)

type instantGenerator struct{}

func (instantGenerator) Model(withReference bool) string {
	if withReference {
		return "reference"
	}
	return "fast"
}

func (instantGenerator) Submit(context.Context, video.GenerateRequest) (*video.Operation, error) {
	return &video.Operation{Name: "operations/1"}, nil
}

func (instantGenerator) Poll(context.Context, *video.Operation) (*video.Status, error) {
	return &video.Status{Done: true, ResultLocation: "https://api.test/files/1"}, nil
}

func (instantGenerator) Resolve(_ context.Context, location string) (string, error) {
	return location + "?key=k", nil
}

type brokenSelector struct{}

func (brokenSelector) HasCredential(context.Context) (bool, error) { return false, nil }
func (brokenSelector) OpenSelector(context.Context) error { return errors.New("no dialog") }

func newTestSession(t *testing.T, host credential.Host, stager KeyStager) *Session {
	t.Helper()
	logger := infra.NopLogger()
	gate := credential.NewGate(host, logger)
	_, _ = gate.Init(context.Background())

	notices := NewNoticeBoard()
	chars := NewCharacters()
	orch, err := batch.New(batch.Options{
		Generator:    instantGenerator{},
		Gate:         gate,
		Characters:   chars,
		Notices:      notices,
		PollInterval: time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("batch.New error: %v", err)
	}
	s := NewSession(Options{
		Gate:         gate,
		Orchestrator: orch,
		Characters:   chars,
		Notices:      notices,
		Stager:       stager,
		Logger:       logger,
	})
	t.Cleanup(func() {
		s.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return s
}

func TestSessionSelectCredentialThenSubmit(t *testing.T) {
	host := credentials.NewEnvHost("")
	s := newTestSession(t, host, host)

	if _, err := s.SubmitBatch(context.Background(), domain.GenerationConfig{Prompt: "x", BatchSize: 1}); !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
	}

	if err := s.SelectCredential(context.Background(), ""); !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("empty selection: expected ErrCredentialUnavailable, got %v", err)
	}

	s.Notices().Raise(domain.NoticeCredentialInvalidated)
	if err := s.SelectCredential(context.Background(), "fresh-key"); err != nil {
		t.Fatalf("SelectCredential error: %v", err)
	}
	view := s.Credential()
	if view.State != credential.StatePresent || view.ChangedAt == nil {
		t.Fatalf("unexpected credential view %#v", view)
	}
	if _, ok := s.Notices().Current("en"); ok {
		t.Fatal("successful selection should clear the notice")
	}

	jobs, err := s.SubmitBatch(context.Background(), domain.GenerationConfig{Prompt: "x", BatchSize: 2})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	s.Orchestrator().Wait()

	snap := s.Snapshot("vi")
	if len(snap.Jobs) != 2 || snap.IsGenerating || !snap.ProgressEstimated {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	url, err := s.PlaybackURL(context.Background(), jobs[0].ID)
	if err != nil || url != "https://api.test/files/1?key=k" {
		t.Fatalf("PlaybackURL = %q, %v", url, err)
	}
}

func TestSessionSelectorFailureRaisesNotice(t *testing.T) {
	s := newTestSession(t, brokenSelector{}, nil)
	err := s.SelectCredential(context.Background(), "ignored")
	if !errors.Is(err, domain.ErrHostCapabilityUnavailable) {
		t.Fatalf("expected ErrHostCapabilityUnavailable, got %v", err)
	}
	snap := s.Snapshot("vi")
	if snap.Notice == nil || snap.Notice.Message != "Không thể mở hộp thoại chọn API Key." {
		t.Fatalf("unexpected notice %#v", snap.Notice)
	}
	if snap.Credential.State != credential.StateAbsent {
		t.Fatalf("credential state = %s", snap.Credential.State)
	}
}
