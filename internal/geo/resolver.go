// Package geo resolves the viewer's current location into a human-readable
// string. Resolution degrades, never fails: every failure mode yields an
// empty string plus a classified reason, so feed loading is never blocked on
// a geolocation error.
package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"vicinity/internal/models"
	"vicinity/internal/observability"
)

// PermissionState mirrors the platform permission probe result.
type PermissionState string

// Permission states.
const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Platform position failure modes.
var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("position request timed out")
)

// PositionOptions bound one platform position request.
type PositionOptions struct {
	Timeout time.Duration
	MaxAge  time.Duration
}

// PositionProvider is the platform geolocation capability.
type PositionProvider interface {
	QueryPermission(ctx context.Context) (PermissionState, error)
	CurrentPosition(ctx context.Context, opts PositionOptions) (models.Coordinates, error)
}

// Geocoder is the external reverse-geocoding collaborator.
type Geocoder interface {
	ResolveLocationString(ctx context.Context, c models.Coordinates) (string, error)
}

// Options bound one ResolveNearby call.
type Options struct {
	Timeout time.Duration
	MaxAge  time.Duration
}

// Resolver wraps permission probing, position lookup, and reverse geocoding
// into one asynchronous resolve operation.
type Resolver struct {
	mu          sync.Mutex
	provider    PositionProvider
	geocoder    Geocoder
	last        *models.GeoResolution
	lastFailure *models.AppError
	logger      *observability.StateLogger
}

// NewResolver returns a resolver over the given platform capability and
// reverse-geocoding collaborator.
func NewResolver(provider PositionProvider, geocoder Geocoder) *Resolver {
	return &Resolver{
		provider: provider,
		geocoder: geocoder,
		logger:   observability.NewStateLogger("geo_resolver"),
	}
}

// ResolveNearby resolves the current location string. It never returns an
// error: permission denial, timeouts, unavailable positions, and geocoding
// failures all resolve to "" with the reason recorded for LastFailure.
func (r *Resolver) ResolveNearby(ctx context.Context, opts Options) string {
	state, err := r.provider.QueryPermission(ctx)
	if err != nil {
		return r.fail(ctx, models.CodeGeoUnavailable, err)
	}
	if state == PermissionDenied {
		return r.fail(ctx, models.CodeGeoPermissionDenied, ErrPermissionDenied)
	}

	posCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		posCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	coords, err := r.provider.CurrentPosition(posCtx, PositionOptions{
		Timeout: opts.Timeout,
		MaxAge:  opts.MaxAge,
	})
	if err != nil {
		return r.fail(ctx, classifyPositionError(err), err)
	}

	location, err := r.geocoder.ResolveLocationString(ctx, coords)
	if err != nil {
		return r.fail(ctx, models.CodeGeoUnavailable, err)
	}

	resolution := models.GeoResolution{
		Coordinates:    coords,
		LocationString: location,
		ResolvedAt:     time.Now(),
	}

	r.mu.Lock()
	r.last = &resolution
	r.lastFailure = nil
	r.mu.Unlock()

	return location
}

// LastFailure returns the classification of the most recent failed
// resolution, or nil after a success.
func (r *Resolver) LastFailure() *models.AppError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFailure
}

// LastResolution returns the cached resolution from the most recent success.
func (r *Resolver) LastResolution() (models.GeoResolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return models.GeoResolution{}, false
	}
	return *r.last, true
}

func (r *Resolver) fail(ctx context.Context, code string, err error) string {
	appErr := models.NewGeoError(code, err)
	r.mu.Lock()
	r.lastFailure = appErr
	r.mu.Unlock()
	r.logger.LogError(ctx, appErr, "resolve_nearby")
	return ""
}

func classifyPositionError(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return models.CodeGeoPermissionDenied
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return models.CodeGeoTimeout
	default:
		return models.CodeGeoUnavailable
	}
}
