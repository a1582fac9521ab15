package credentials

import (
	"context"
	"errors"
	"testing"
)

func TestEnvHostSelectorAppliesStagedKey(t *testing.T) {
	ctx := context.Background()
	host := NewEnvHost("")

	if ok, _ := host.HasCredential(ctx); ok {
		t.Fatal("expected no credential initially")
	}
	if err := host.OpenSelector(ctx); err != nil {
		t.Fatalf("OpenSelector error: %v", err)
	}
	if ok, _ := host.HasCredential(ctx); ok {
		t.Fatal("selector without staged key must not create a credential")
	}

	host.Stage("  new-key ")
	if err := host.OpenSelector(ctx); err != nil {
		t.Fatalf("OpenSelector error: %v", err)
	}
	key, _ := host.APIKey(ctx)
	if key != "new-key" {
		t.Fatalf("APIKey = %q, want new-key", key)
	}

	// The staged key is consumed once.
	if err := host.OpenSelector(ctx); err != nil {
		t.Fatalf("OpenSelector error: %v", err)
	}
	if key, _ := host.APIKey(ctx); key != "new-key" {
		t.Fatalf("APIKey changed to %q after empty selector", key)
	}
}

func TestEnvHostSelectorHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	host := NewEnvHost("")
	host.Stage("k")
	if err := host.OpenSelector(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStoreHostPersistsStagedKey(t *testing.T) {
	ctx := context.Background()
	exec := &stubExecutor{}
	host := NewStoreHost(NewStore(exec))

	ok, err := host.HasCredential(ctx)
	if err != nil {
		t.Fatalf("HasCredential error: %v", err)
	}
	if ok {
		t.Fatal("expected no credential in empty store")
	}

	host.Stage("stored-key")
	if err := host.OpenSelector(ctx); err != nil {
		t.Fatalf("OpenSelector error: %v", err)
	}
	if exec.token != "stored-key" {
		t.Fatalf("store token = %q, want stored-key", exec.token)
	}

	queries := exec.queries
	key, err := host.APIKey(ctx)
	if err != nil {
		t.Fatalf("APIKey error: %v", err)
	}
	if key != "stored-key" {
		t.Fatalf("APIKey = %q, want stored-key", key)
	}
	if exec.queries != queries {
		t.Fatalf("expected cached key, store was queried %d more times", exec.queries-queries)
	}
}

func TestStoreHostPropagatesStoreErrors(t *testing.T) {
	host := NewStoreHost(NewStore(&stubExecutor{err: errors.New("db down")}))
	if _, err := host.HasCredential(context.Background()); err == nil {
		t.Fatal("expected error from HasCredential")
	}
}
