// Package interactions holds per-post optimistic state for love, collect,
// and follow toggles. State is applied locally before the server confirms
// and rolled back deterministically when it refuses.
package interactions

import (
	"context"
	"sync"

	"vicinity/internal/api"
	"vicinity/internal/guard"
	"vicinity/internal/models"
	"vicinity/internal/observability"
	"vicinity/internal/session"
)

// Toggler is the remote toggle surface, satisfied by *api.Client.
type Toggler interface {
	ToggleLove(ctx context.Context, req api.ToggleRequest) error
	ToggleCollect(ctx context.Context, req api.ToggleRequest) error
	ToggleFollowUser(ctx context.Context, req api.ToggleRequest) error
}

// PostSource grants access to the in-memory posts owned by the feed. The
// callback runs under the source's lock; MutatePost reports whether the post
// exists.
type PostSource interface {
	MutatePost(postID string, fn func(p *models.Post)) bool
}

// ProfileRefresher refreshes a user's public profile aggregate after a
// follow toggle. Best-effort: it has no way to fail the toggle.
type ProfileRefresher func(ctx context.Context, userID string)

type recordKey struct {
	postID string
	kind   models.InteractionKind
}

// record is the transient optimistic state for one (post, kind) pair. At
// most one pending record exists per pair; it is cleared on resolution.
type record struct {
	pending         bool
	optimisticValue bool
	delta           int
}

// Store centralizes the per-(post, kind) locks and optimistic records.
// IsPending is the only lock query surface.
type Store struct {
	mu       sync.Mutex
	records  map[recordKey]*record
	sessions *session.Store
	remote   Toggler
	posts    PostSource
	nav      guard.Navigator
	authPath string
	refresh  ProfileRefresher
	wg       sync.WaitGroup
	logger   *observability.StateLogger
}

// NewStore returns an interaction store bound to the given session store,
// remote toggler, and post source. authPath is the path encoded into the
// login redirect issued when an anonymous viewer toggles.
func NewStore(sessions *session.Store, remote Toggler, posts PostSource, nav guard.Navigator, authPath string) *Store {
	if authPath == "" {
		authPath = "/square"
	}
	return &Store{
		records:  make(map[recordKey]*record),
		sessions: sessions,
		remote:   remote,
		posts:    posts,
		nav:      nav,
		authPath: authPath,
		logger:   observability.NewStateLogger("interaction_store"),
	}
}

// SetProfileRefresher installs the best-effort follow refresh hook.
func (s *Store) SetProfileRefresher(fn ProfileRefresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = fn
}

// IsPending reports whether a toggle is in flight for the pair.
func (s *Store) IsPending(postID string, kind models.InteractionKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey{postID: postID, kind: kind}]
	return ok && rec.pending
}

// Toggle flips the viewer's state for one (post, kind) pair. Fire and
// forget: the optimistic value is applied before Toggle returns and the
// remote call resolves in the background. An anonymous caller is redirected
// to login instead; a toggle already pending for the pair is silently
// ignored so a burst produces exactly one network call.
func (s *Store) Toggle(ctx context.Context, postID string, kind models.InteractionKind) {
	sess, ok := s.sessions.Get()
	if !ok || !sess.Complete() {
		decision := guard.Decide(s.authPath, "")
		if !decision.Blocked {
			s.nav.RedirectTo(decision.LoginURL)
		}
		return
	}

	key := recordKey{postID: postID, kind: kind}

	// Read the current state before taking the record lock; the feed lock
	// and the record lock are only ever nested feed-first (Reconcile), so
	// MutatePost must not run under s.mu.
	var current bool
	var publisherID string
	found := s.posts.MutatePost(postID, func(p *models.Post) {
		current = currentFlag(p, kind)
		publisherID = p.Publisher.UserID
	})
	if !found {
		return
	}

	next := !current
	delta := 0
	if kind != models.KindFollow {
		if next {
			delta = 1
		} else {
			delta = -1
		}
	}

	s.mu.Lock()
	if rec, exists := s.records[key]; exists && rec.pending {
		s.mu.Unlock()
		s.logger.LogDiscard(ctx, "toggle already pending", map[string]interface{}{
			"post_id": postID,
			"kind":    string(kind),
		})
		return
	}
	s.records[key] = &record{pending: true, optimisticValue: next, delta: delta}
	refresh := s.refresh
	s.mu.Unlock()

	// The defining optimistic behavior: the post reflects the new state
	// before the network call resolves.
	s.posts.MutatePost(postID, func(p *models.Post) {
		applyFlag(p, kind, next, delta)
	})

	targetID := postID
	if kind == models.KindFollow {
		targetID = publisherID
	}

	s.wg.Add(1)
	go s.resolve(ctx, key, sess, targetID, next, delta, refresh)
}

// Flush blocks until every in-flight toggle has resolved.
func (s *Store) Flush() {
	s.wg.Wait()
}

func (s *Store) resolve(ctx context.Context, key recordKey, sess models.Session, targetID string, desired bool, delta int, refresh ProfileRefresher) {
	defer s.wg.Done()

	observability.LogAsyncOperationStart(ctx, "interaction_toggle", map[string]interface{}{
		"post_id": key.postID,
		"kind":    string(key.kind),
		"desired": desired,
	})

	req := api.ToggleRequest{
		Credentials:  api.Credentials{UserID: sess.UserID, Token: sess.Token},
		TargetID:     targetID,
		DesiredState: desired,
	}

	var err error
	switch key.kind {
	case models.KindLove:
		err = s.remote.ToggleLove(ctx, req)
	case models.KindCollect:
		err = s.remote.ToggleCollect(ctx, req)
	case models.KindFollow:
		err = s.remote.ToggleFollowUser(ctx, req)
	}

	if err != nil {
		// Roll back relative to the optimistic application so a snapshot
		// swapped in mid-flight keeps its server-fresh counters.
		s.posts.MutatePost(key.postID, func(p *models.Post) {
			applyFlag(p, key.kind, !desired, -delta)
		})
		observability.LogAsyncOperationError(ctx, "interaction_toggle",
			models.NewInteractionFailedError("toggle rejected, rolled back", err),
			map[string]interface{}{"post_id": key.postID, "kind": string(key.kind)})
	} else {
		// The optimistic value is authoritative; no refetch.
		observability.LogAsyncOperationEnd(ctx, "interaction_toggle", map[string]interface{}{
			"post_id": key.postID,
			"kind":    string(key.kind),
		})
		if key.kind == models.KindFollow && refresh != nil {
			refresh(ctx, targetID)
		}
	}

	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// Reconcile adjusts a fresh feed snapshot against the record map: records
// for posts absent from the new list are discarded, and posts with a toggle
// still pending keep their optimistic value on top of the server counters.
func (s *Store) Reconcile(posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(posts))
	for i := range posts {
		index[posts[i].ID] = i
	}

	for key, rec := range s.records {
		i, ok := index[key.postID]
		if !ok {
			delete(s.records, key)
			continue
		}
		if rec.pending {
			applyFlag(&posts[i], key.kind, rec.optimisticValue, rec.delta)
		}
	}
}

func currentFlag(p *models.Post, kind models.InteractionKind) bool {
	switch kind {
	case models.KindLove:
		return p.ViewerFlags.IsLove
	case models.KindCollect:
		return p.ViewerFlags.IsCollect
	case models.KindFollow:
		return p.Publisher.IsFollowed
	}
	return false
}

func applyFlag(p *models.Post, kind models.InteractionKind, value bool, delta int) {
	switch kind {
	case models.KindLove:
		p.ViewerFlags.IsLove = value
		p.Counters.Loves += delta
	case models.KindCollect:
		p.ViewerFlags.IsCollect = value
		p.Counters.Collects += delta
	case models.KindFollow:
		p.Publisher.IsFollowed = value
	}
}
