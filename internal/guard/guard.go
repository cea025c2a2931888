package guard

import (
	"context"
	"sync"
	"time"

	"vicinity/internal/observability"
	"vicinity/internal/session"
)

// State is the route guard's position in its per-navigation state machine.
type State int

// Guard states. Allowed, Blocked, and Redirecting are terminal for one
// navigation.
const (
	StateUninitialized State = iota
	StateInitializing
	StateEvaluating
	StateAllowed
	StateBlocked
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateEvaluating:
		return "evaluating"
	case StateAllowed:
		return "allowed"
	case StateBlocked:
		return "blocked"
	case StateRedirecting:
		return "redirecting"
	}
	return "unknown"
}

// Navigator issues navigations. The guard calls it at most once per blocked
// navigation.
type Navigator interface {
	RedirectTo(url string)
}

// Guard decides, for every navigation, whether the viewer may proceed.
type Guard struct {
	mu       sync.Mutex
	sessions *session.Store
	nav      Navigator
	grace    time.Duration
	state    State
	logger   *observability.StateLogger
}

// NewGuard returns a guard over the given session store. The grace window
// delays evaluation so a session still hydrating from a slower source is not
// mistaken for anonymity.
func NewGuard(sessions *session.Store, nav Navigator, grace time.Duration) *Guard {
	return &Guard{
		sessions: sessions,
		nav:      nav,
		grace:    grace,
		state:    StateUninitialized,
		logger:   observability.NewStateLogger("route_guard"),
	}
}

// State returns the guard's current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Evaluate runs the state machine for one navigation attempt and returns the
// terminal state. The only side effect is a single Navigator call in the
// Redirecting transition; nothing here ever panics or returns an error. A
// malformed redirect value results in Blocked.
func (g *Guard) Evaluate(ctx context.Context, path, search string) State {
	g.transition(ctx, StateInitializing)
	g.waitGrace(ctx)
	g.transition(ctx, StateEvaluating)

	// Public paths skip the session check entirely.
	if IsPublicPath(path) {
		return g.transition(ctx, StateAllowed)
	}

	if g.sessions.IsAuthenticated() {
		return g.transition(ctx, StateAllowed)
	}

	decision := Decide(path, search)
	if decision.Blocked {
		return g.transition(ctx, StateBlocked)
	}

	state := g.transition(ctx, StateRedirecting)
	g.nav.RedirectTo(decision.LoginURL)
	return state
}

// waitGrace sleeps out the hydration grace window. A canceled context ends
// the wait early; evaluation still proceeds against whatever session state
// exists.
func (g *Guard) waitGrace(ctx context.Context) {
	if g.grace <= 0 {
		return
	}
	timer := time.NewTimer(g.grace)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (g *Guard) transition(ctx context.Context, next State) State {
	g.mu.Lock()
	prev := g.state
	g.state = next
	g.mu.Unlock()
	g.logger.LogTransition(ctx, prev.String(), next.String(), nil)
	return next
}
