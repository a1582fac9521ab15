package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"veostudio/internal/domain"
	"veostudio/internal/infra"
)

// State of the process-wide credential.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Host is the external credential capability: a presence check and a
// user-facing selector flow.
type Host interface {
	HasCredential(ctx context.Context) (bool, error)
	OpenSelector(ctx context.Context) error
}

// Transition describes one state change of the gate.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Gate owns the credential state. Only its methods change the state; other
// components read snapshots or subscribe to transitions.
type Gate struct {
	host   Host
	logger infra.Logger
	now    func() time.Time

	mu    sync.RWMutex
	state State

	subMu   sync.Mutex
	subs    map[int]func(Transition)
	nextSub int
}

// NewGate returns a gate in the Absent state. A nil host is allowed and
// behaves as a missing capability.
func NewGate(host Host, logger infra.Logger) *Gate {
	return &Gate{
		host:   host,
		logger: logger,
		now:    time.Now,
		state:  StateAbsent,
		subs:   make(map[int]func(Transition)),
	}
}

// Init determines the starting state from the host. Failures leave the gate
// Absent; the returned error is informational only.
func (g *Gate) Init(ctx context.Context) (State, error) {
	if g.host == nil {
		g.logger.Warn().Msg("gate: credential capability unavailable, starting absent")
		g.set(StateAbsent, "init: no host")
		return StateAbsent, domain.ErrHostCapabilityUnavailable
	}
	ok, err := g.host.HasCredential(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("gate: credential check failed, starting absent")
		g.set(StateAbsent, "init: check failed")
		return StateAbsent, fmt.Errorf("%w: %v", domain.ErrHostCapabilityUnavailable, err)
	}
	if ok {
		g.set(StatePresent, "init")
		return StatePresent, nil
	}
	g.set(StateAbsent, "init")
	return StateAbsent, nil
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gate) Present() bool {
	return g.State() == StatePresent
}

// Invalidate moves the gate to Absent. It reports whether the call changed
// the state, so concurrent failures raise at most one transition.
func (g *Gate) Invalidate(reason string) bool {
	changed := g.set(StateAbsent, reason)
	if changed {
		g.logger.Warn().Str("reason", reason).Msg("gate: credential invalidated")
	}
	return changed
}

// Select runs the host selector. The gate becomes Present only when the
// selector completes and the host then reports a credential. If that
// re-check errors the selector's success is trusted.
func (g *Gate) Select(ctx context.Context) error {
	if g.host == nil {
		return domain.ErrHostCapabilityUnavailable
	}
	if err := g.host.OpenSelector(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("gate: credential selector failed")
		return fmt.Errorf("%w: %v", domain.ErrHostCapabilityUnavailable, err)
	}
	ok, err := g.host.HasCredential(ctx)
	switch {
	case err != nil:
		g.logger.Warn().Err(err).Msg("gate: post-selection check failed, assuming credential present")
	case !ok:
		g.set(StateAbsent, "selector closed without credential")
		return domain.ErrCredentialUnavailable
	}
	g.set(StatePresent, "selected")
	return nil
}

// Subscribe registers fn for every transition. fn runs synchronously on the
// goroutine that caused the transition and must not call back into the gate
// setters. The returned func removes the subscription.
func (g *Gate) Subscribe(fn func(Transition)) (cancel func()) {
	g.subMu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.subMu.Lock()
			delete(g.subs, id)
			g.subMu.Unlock()
		})
	}
}

func (g *Gate) set(to State, reason string) bool {
	g.mu.Lock()
	from := g.state
	if from == to {
		g.mu.Unlock()
		return false
	}
	g.state = to
	g.mu.Unlock()

	g.notify(Transition{From: from, To: to, Reason: reason, At: g.now()})
	return true
}

func (g *Gate) notify(t Transition) {
	g.subMu.Lock()
	fns := make([]func(Transition), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.subMu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}
