package credentials

import (
	"context"
	"strings"
	"sync"
)

// The hosts below provide the credential capability the studio relies on:
// a presence check, a selector flow, and the key itself for outbound calls.
// The selector is non-interactive here: the HTTP layer stages the key the
// user typed and OpenSelector applies it. Closing the selector without a
// staged key leaves the current credential untouched.

type staging struct {
	stageMu sync.Mutex
	staged  string
}

// Stage records a key to be applied by the next OpenSelector call.
func (s *staging) Stage(key string) {
	s.stageMu.Lock()
	s.staged = strings.TrimSpace(key)
	s.stageMu.Unlock()
}

func (s *staging) take() string {
	s.stageMu.Lock()
	defer s.stageMu.Unlock()
	key := s.staged
	s.staged = ""
	return key
}

// EnvHost keeps the key in memory, seeded from GEMINI_API_KEY.
type EnvHost struct {
	staging

	mu  sync.RWMutex
	key string
}

func NewEnvHost(key string) *EnvHost {
	return &EnvHost{key: strings.TrimSpace(key)}
}

func (h *EnvHost) HasCredential(ctx context.Context) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.key != "", nil
}

func (h *EnvHost) APIKey(ctx context.Context) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.key, nil
}

func (h *EnvHost) OpenSelector(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key := h.take(); key != "" {
		h.mu.Lock()
		h.key = key
		h.mu.Unlock()
	}
	return nil
}

// StoreHost keeps the key in PostgreSQL so it survives restarts. The last
// key read or written is cached to avoid a query on every poll.
type StoreHost struct {
	staging

	store  *Store
	mu     sync.RWMutex
	cached string
}

func NewStoreHost(store *Store) *StoreHost {
	return &StoreHost{store: store}
}

func (h *StoreHost) HasCredential(ctx context.Context) (bool, error) {
	key, err := h.store.APIKey(ctx)
	if err != nil {
		return false, err
	}
	h.remember(key)
	return key != "", nil
}

func (h *StoreHost) APIKey(ctx context.Context) (string, error) {
	h.mu.RLock()
	cached := h.cached
	h.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}
	key, err := h.store.APIKey(ctx)
	if err != nil {
		return "", err
	}
	h.remember(key)
	return key, nil
}

func (h *StoreHost) OpenSelector(ctx context.Context) error {
	key := h.take()
	if key == "" {
		return nil
	}
	if err := h.store.SetAPIKey(ctx, key, SourceSelector); err != nil {
		return err
	}
	h.remember(key)
	return nil
}

func (h *StoreHost) remember(key string) {
	h.mu.Lock()
	h.cached = key
	h.mu.Unlock()
}
