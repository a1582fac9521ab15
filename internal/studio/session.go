package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"veostudio/internal/batch"
	"veostudio/internal/credential"
	"veostudio/internal/domain"
	"veostudio/internal/infra"
)

// KeyStager is implemented by credential hosts whose selector takes a key
// supplied ahead of time.
type KeyStager interface {
	Stage(key string)
}

type Options struct {
	Gate         *credential.Gate
	Orchestrator *batch.Orchestrator
	Characters   *Characters
	Templates    *Templates
	Notices      *NoticeBoard
	Stager       KeyStager
	Logger       infra.Logger
}

// Session is the single-user studio state: jobs, credential, registries
// and the notice slot.
type Session struct {
	gate         *credential.Gate
	orchestrator *batch.Orchestrator
	characters   *Characters
	templates    *Templates
	notices      *NoticeBoard
	stager       KeyStager
	logger       infra.Logger

	mu             sync.RWMutex
	lastTransition *credential.Transition
	unsubscribe    func()
}

func NewSession(opts Options) *Session {
	s := &Session{
		gate:         opts.Gate,
		orchestrator: opts.Orchestrator,
		characters:   opts.Characters,
		templates:    opts.Templates,
		notices:      opts.Notices,
		stager:       opts.Stager,
		logger:       opts.Logger,
	}
	if s.characters == nil {
		s.characters = NewCharacters()
	}
	if s.templates == nil {
		s.templates = NewTemplates()
	}
	if s.notices == nil {
		s.notices = NewNoticeBoard()
	}
	s.unsubscribe = s.gate.Subscribe(s.onCredentialTransition)
	return s
}

func (s *Session) onCredentialTransition(t credential.Transition) {
	s.mu.Lock()
	s.lastTransition = &t
	s.mu.Unlock()
	s.logger.Info().
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("reason", t.Reason).
		Msg("studio: credential state changed")
}

// Close detaches the session from the credential gate.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) Characters() *Characters { return s.characters }

func (s *Session) Templates() *Templates { return s.templates }

func (s *Session) Notices() *NoticeBoard { return s.notices }

func (s *Session) Orchestrator() *batch.Orchestrator { return s.orchestrator }

// CredentialView is the read-only credential snapshot.
type CredentialView struct {
	State     credential.State `json:"state"`
	ChangedAt *time.Time       `json:"changed_at,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Snapshot is everything the UI renders.
type Snapshot struct {
	Jobs              []domain.Job   `json:"jobs"`
	Credential        CredentialView `json:"credential"`
	Notice            *Notice        `json:"notice,omitempty"`
	IsGenerating      bool           `json:"is_generating"`
	ProgressEstimated bool           `json:"progress_estimated"`
}

func (s *Session) Credential() CredentialView {
	view := CredentialView{State: s.gate.State()}
	s.mu.RLock()
	if t := s.lastTransition; t != nil {
		at := t.At
		view.ChangedAt = &at
		view.Reason = t.Reason
	}
	s.mu.RUnlock()
	return view
}

func (s *Session) Snapshot(locale string) Snapshot {
	snap := Snapshot{
		Jobs:              s.orchestrator.Jobs().List(),
		Credential:        s.Credential(),
		IsGenerating:      s.orchestrator.IsGenerating(),
		ProgressEstimated: true,
	}
	if n, ok := s.notices.Current(locale); ok {
		snap.Notice = &n
	}
	return snap
}

func (s *Session) SubmitBatch(ctx context.Context, cfg domain.GenerationConfig) ([]domain.Job, error) {
	return s.orchestrator.SubmitBatch(ctx, cfg)
}

func (s *Session) Job(id string) (domain.Job, bool) {
	return s.orchestrator.Jobs().Get(id)
}

func (s *Session) PlaybackURL(ctx context.Context, id string) (string, error) {
	return s.orchestrator.Resolve(ctx, id)
}

func (s *Session) AddCharacter(name, imageData string) (domain.Character, error) {
	return s.characters.Add(name, imageData)
}

func (s *Session) DeleteCharacter(id string) error {
	return s.characters.Delete(id)
}

func (s *Session) SaveTemplate(t domain.Template) (domain.Template, error) {
	return s.templates.Save(t)
}

// SelectCredential runs the credential selector. A non-empty key is staged
// for hosts that accept one. A selector that cannot be opened raises the
// selector notice; a successful selection clears any notice.
func (s *Session) SelectCredential(ctx context.Context, key string) error {
	if key = strings.TrimSpace(key); key != "" && s.stager != nil {
		s.stager.Stage(key)
	}
	err := s.gate.Select(ctx)
	switch {
	case err == nil:
		s.notices.Clear()
		return nil
	case errors.Is(err, domain.ErrHostCapabilityUnavailable):
		s.notices.Raise(domain.NoticeSelectorFailed)
	}
	return err
}
