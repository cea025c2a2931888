// Package feed reconciles the three feed tabs, their location filters, and
// load sequencing. Every load is tagged with the tab it was issued for and a
// response only applies while that tab is still active, so a slow response
// can never clobber a faster one rendered for another tab.
package feed

import (
	"context"
	"sync"

	"vicinity/internal/api"
	"vicinity/internal/geo"
	"vicinity/internal/guard"
	"vicinity/internal/models"
	"vicinity/internal/observability"
	"vicinity/internal/session"
)

// squarePath is the path encoded into the login redirect when an anonymous
// viewer selects a gated tab.
const squarePath = "/square"

// Loader loads feed pages, satisfied by *api.Client.
type Loader interface {
	GetSquareContentList(ctx context.Context, q api.FeedQuery) (*api.FeedPage, error)
}

// LocationResolver resolves the nearby location string, satisfied by
// *geo.Resolver.
type LocationResolver interface {
	ResolveNearby(ctx context.Context, opts geo.Options) string
}

// Reconciler adjusts a fresh snapshot against pending interaction records,
// satisfied by *interactions.Store.
type Reconciler interface {
	Reconcile(posts []models.Post)
}

// loadParams identify what a load was for. Failure semantics compare them
// against the params of the displayed snapshot.
type loadParams struct {
	tab      models.FeedTab
	location string
	page     int
}

// Orchestrator owns the active tab, the per-tab location filters, and the
// displayed post list. The post list is replaced wholesale on every applied
// load; there is no merge across reloads.
type Orchestrator struct {
	mu         sync.Mutex
	sessions   *session.Store
	loader     Loader
	geo        LocationResolver
	nav        guard.Navigator
	reconciler Reconciler
	geoOpts    geo.Options
	pageSize   int

	activeTab      models.FeedTab
	filterLocation string // user-chosen region filter for recommend/following
	nearbyLocation string // last live-resolved geolocation string
	epoch          uint64

	posts       []models.Post
	pagination  models.Pagination
	lastErr     *models.AppError
	applied     loadParams
	hasSnapshot bool

	logger *observability.StateLogger
}

// NewOrchestrator returns an orchestrator starting on the recommend tab.
func NewOrchestrator(sessions *session.Store, loader Loader, resolver LocationResolver, nav guard.Navigator, pageSize int, geoOpts geo.Options) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		loader:    loader,
		geo:       resolver,
		nav:       nav,
		pageSize:  pageSize,
		geoOpts:   geoOpts,
		activeTab: models.TabRecommend,
		logger:    observability.NewStateLogger("feed_orchestrator"),
	}
}

// SetReconciler installs the interaction-record reconciler. Wired after
// construction because the interaction store needs the orchestrator as its
// post source.
func (o *Orchestrator) SetReconciler(r Reconciler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconciler = r
}

// ActiveTab returns the currently active feed tab.
func (o *Orchestrator) ActiveTab() models.FeedTab {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeTab
}

// SetFilterLocation stores the user-chosen region filter for the recommend
// and following tabs. Empty means unfiltered. The nearby tab's live-resolved
// location is untouched.
func (o *Orchestrator) SetFilterLocation(location string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filterLocation = location
}

// FilterLocation returns the stored region filter.
func (o *Orchestrator) FilterLocation() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filterLocation
}

// NearbyLocation returns the last live-resolved geolocation string.
func (o *Orchestrator) NearbyLocation() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nearbyLocation
}

// Posts returns a copy of the displayed post list.
func (o *Orchestrator) Posts() []models.Post {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Post, len(o.posts))
	copy(out, o.posts)
	return out
}

// Pagination returns the displayed page metadata.
func (o *Orchestrator) Pagination() models.Pagination {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pagination
}

// LastError returns the retryable error state of the most recent load, or
// nil after a success.
func (o *Orchestrator) LastError() *models.AppError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// MutatePost runs fn against the in-memory post with the given id under the
// orchestrator lock. It reports whether the post exists.
func (o *Orchestrator) MutatePost(postID string, fn func(p *models.Post)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.posts {
		if o.posts[i].ID == postID {
			fn(&o.posts[i])
			return true
		}
	}
	return false
}

// Load makes the tab active and loads its first page. Location precedence:
// the explicit argument if given (deep-link and back-navigation cases), then
// the tab-bound filter, then unfiltered. Selecting following or nearby while
// anonymous issues one login redirect and attempts no load.
func (o *Orchestrator) Load(ctx context.Context, tab models.FeedTab, explicitLocation ...string) error {
	if !tab.Valid() {
		return models.NewValidationError("unknown feed tab: " + string(tab))
	}

	if tab != models.TabRecommend && !o.sessions.IsAuthenticated() {
		decision := guard.Decide(squarePath, "")
		if !decision.Blocked {
			o.nav.RedirectTo(decision.LoginURL)
		}
		return models.NewAuthMissingError("tab " + string(tab) + " requires authentication")
	}

	var explicit *string
	if len(explicitLocation) > 0 {
		explicit = &explicitLocation[0]
	}
	return o.load(ctx, tab, explicit, 1)
}

// LoadPage reloads the active tab at the given page. The response still
// replaces the list wholesale.
func (o *Orchestrator) LoadPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	o.mu.Lock()
	tab := o.activeTab
	o.mu.Unlock()
	return o.load(ctx, tab, nil, page)
}

func (o *Orchestrator) load(ctx context.Context, tab models.FeedTab, explicit *string, page int) error {
	o.mu.Lock()
	o.activeTab = tab
	o.epoch++
	issued := o.epoch
	var location string
	resolveLive := false
	switch {
	case explicit != nil:
		location = *explicit
	case tab == models.TabNearby:
		resolveLive = true
	default:
		location = o.filterLocation
	}
	o.mu.Unlock()

	if resolveLive {
		// Resolution degrades to "" on any failure; the load proceeds
		// unfiltered rather than blocking on geolocation.
		location = o.geo.ResolveNearby(ctx, o.geoOpts)
		o.mu.Lock()
		o.nearbyLocation = location
		o.mu.Unlock()
	}

	query := api.FeedQuery{
		Location: location,
		Tab:      tab,
		Page:     page,
		Limit:    o.pageSize,
	}
	if sess, ok := o.sessions.Get(); ok {
		query.Credentials = api.Credentials{UserID: sess.UserID, Token: sess.Token}
	}

	observability.LogAsyncOperationStart(ctx, "feed_load", map[string]interface{}{
		"tab":      string(tab),
		"location": location,
		"page":     page,
		"epoch":    issued,
	})

	result, err := o.loader.GetSquareContentList(ctx, query)

	params := loadParams{tab: tab, location: location, page: page}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.activeTab != tab {
		// Stale: the active tab changed while this load was in flight.
		o.logger.LogDiscard(ctx, "tab changed since issue", map[string]interface{}{
			"issued_tab": string(tab),
			"active_tab": string(o.activeTab),
			"epoch":      issued,
		})
		return nil
	}

	if err != nil {
		o.lastErr = models.NewFeedLoadError("feed load failed", err)
		if !o.hasSnapshot || params != o.applied {
			// A parameter change that fails must not leave stale content
			// visible under the new filter.
			o.posts = nil
			o.pagination = models.Pagination{}
			o.hasSnapshot = false
		}
		o.applied = params
		return o.lastErr
	}

	posts := result.Posts
	if o.reconciler != nil {
		o.reconciler.Reconcile(posts)
	}

	o.posts = posts
	o.pagination = result.Pagination
	o.lastErr = nil
	o.applied = params
	o.hasSnapshot = true

	observability.LogAsyncOperationEnd(ctx, "feed_load", map[string]interface{}{
		"tab":   string(tab),
		"posts": len(posts),
		"epoch": issued,
	})
	return nil
}
