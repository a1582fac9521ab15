package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"veostudio/internal/infra"
	"veostudio/internal/sqlinline"
)

// Provider is the integration_tokens row the studio key lives in.
const Provider = "gemini"

// Key sources recorded alongside the stored key.
const (
	SourceSelector = "selector"
	SourceCLI      = "cli"
	SourceEnv      = "env"
)

var ErrEmptyKey = errors.New("api key is required")

// StoredKey describes the persisted key without exposing where it came from
// beyond the recorded source.
type StoredKey struct {
	Key       string
	Source    string
	UpdatedAt time.Time
}

// Store persists the generation API key in PostgreSQL.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the backing table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokens); err != nil {
		return fmt.Errorf("credentials: ensure schema: %w", err)
	}
	return nil
}

// APIKey returns the stored key, or "" when none is stored.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	var key string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, Provider).Scan(&key); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load key: %w", err)
	}
	return strings.TrimSpace(key), nil
}

// Describe returns the stored key with its metadata. ok is false when no key
// is stored.
func (s *Store) Describe(ctx context.Context) (stored StoredKey, ok bool, err error) {
	var props []byte
	row := s.sql.QueryRow(ctx, sqlinline.QDescribeIntegrationToken, Provider)
	if err := row.Scan(&stored.Key, &props, &stored.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return StoredKey{}, false, nil
		}
		return StoredKey{}, false, fmt.Errorf("credentials: describe key: %w", err)
	}
	var meta struct {
		Source string `json:"source"`
	}
	if len(props) > 0 {
		_ = json.Unmarshal(props, &meta)
	}
	stored.Key = strings.TrimSpace(stored.Key)
	stored.Source = meta.Source
	return stored, true, nil
}

// SetAPIKey stores key, replacing any previous one, and records source.
func (s *Store) SetAPIKey(ctx context.Context, key, source string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	raw, err := json.Marshal(map[string]string{"source": source})
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, Provider, key, raw); err != nil {
		return fmt.Errorf("credentials: store key: %w", err)
	}
	return nil
}

func (s *Store) ClearAPIKey(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, Provider); err != nil {
		return fmt.Errorf("credentials: clear key: %w", err)
	}
	return nil
}
