package guard

import (
	"context"
	"testing"
	"time"

	"vicinity/internal/models"
	"vicinity/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNavigator captures every redirect the guard issues.
type recordingNavigator struct {
	urls []string
}

func (n *recordingNavigator) RedirectTo(url string) {
	n.urls = append(n.urls, url)
}

func authedStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore()
	require.NoError(t, store.Set(models.Session{UserID: "u1", Token: "tok"}))
	return store
}

func TestEvaluate_PublicPathSkipsSessionCheck(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(session.NewStore(), nav, 0)

	state := g.Evaluate(context.Background(), "/square", "")

	assert.Equal(t, StateAllowed, state)
	assert.Empty(t, nav.urls, "public path must not navigate")
}

func TestEvaluate_ProtectedWithCompleteSession(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(authedStore(t), nav, 0)

	state := g.Evaluate(context.Background(), "/personal-center", "")

	assert.Equal(t, StateAllowed, state)
	assert.Empty(t, nav.urls)
}

func TestEvaluate_ProtectedAnonymousRedirectsOnce(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(session.NewStore(), nav, 0)

	state := g.Evaluate(context.Background(), "/personal-center", "")

	assert.Equal(t, StateRedirecting, state)
	require.Len(t, nav.urls, 1, "exactly one navigation per blocked navigation")
	assert.Equal(t, "/login?redirect=%2Fpersonal-center", nav.urls[0])
}

func TestEvaluate_SuspiciousRedirectBlocksWithoutNavigating(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(session.NewStore(), nav, 0)

	state := g.Evaluate(context.Background(), "/personal-center", "?redirect=%2Flogin")

	assert.Equal(t, StateBlocked, state)
	assert.Empty(t, nav.urls, "blocked state must not navigate")
}

func TestEvaluate_GraceWindowCoversLateHydration(t *testing.T) {
	nav := &recordingNavigator{}
	store := session.NewStore()
	g := NewGuard(store, nav, 50*time.Millisecond)

	// Session hydrates from a slower source while the guard is still in
	// its grace window.
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = store.Set(models.Session{UserID: "u1", Token: "tok"})
	}()

	state := g.Evaluate(context.Background(), "/personal-center", "")

	assert.Equal(t, StateAllowed, state)
	assert.Empty(t, nav.urls)
}

func TestEvaluate_CanceledContextEndsGraceEarly(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(authedStore(t), nav, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	state := g.Evaluate(ctx, "/personal-center", "")

	assert.Equal(t, StateAllowed, state)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "redirecting", StateRedirecting.String())
	assert.Equal(t, StateUninitialized, NewGuard(session.NewStore(), &recordingNavigator{}, 0).State())
}
