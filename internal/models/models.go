// Package models contains data structures for the client's domain state.
package models

import "time"

// Session is the current identity. An absent session means the viewer is
// anonymous. Only the session store's own Set/Clear operations mutate it.
type Session struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	Email  string `json:"email,omitempty"`
}

// Complete reports whether both required credential fields are present.
func (s Session) Complete() bool {
	return s.UserID != "" && s.Token != ""
}

// FeedTab selects one of the three feed modes. Each tab binds to exactly one
// location-resolution strategy.
type FeedTab string

// Feed tabs.
const (
	TabRecommend FeedTab = "recommend"
	TabFollowing FeedTab = "following"
	TabNearby    FeedTab = "nearby"
)

// Valid reports whether the tab is one of the three known feed modes.
func (t FeedTab) Valid() bool {
	switch t {
	case TabRecommend, TabFollowing, TabNearby:
		return true
	}
	return false
}

// InteractionKind identifies one optimistic toggle surface on a post.
type InteractionKind string

// Interaction kinds.
const (
	KindLove    InteractionKind = "love"
	KindCollect InteractionKind = "collect"
	KindFollow  InteractionKind = "follow"
)

// Media holds the attachments of a post.
type Media struct {
	Images []string `json:"images"`
	Video  string   `json:"video,omitempty"`
}

// Publisher is the author summary embedded in a post.
type Publisher struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	// IsFollowed indicates whether the viewer follows this publisher (computed)
	IsFollowed bool `json:"is_followed"`
}

// Counters are the aggregate interaction counts of a post.
type Counters struct {
	Loves    int `json:"loves"`
	Collects int `json:"collects"`
	Shares   int `json:"shares"`
}

// ViewerFlags indicate the requesting viewer's own interaction state on a
// post. Seeded from the feed response, mutated only by the interaction store.
type ViewerFlags struct {
	IsLove    bool `json:"is_love"`
	IsCollect bool `json:"is_collect"`
}

// Post is one feed entry. The post list is replaced wholesale on every feed
// reload; there is no incremental merge across reloads.
type Post struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Media       Media       `json:"media"`
	Publisher   Publisher   `json:"publisher"`
	Counters    Counters    `json:"counters"`
	ViewerFlags ViewerFlags `json:"viewer_flags"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Pagination is the feed page metadata, plumbed through from the backend
// untouched.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Coordinates is a latitude/longitude pair from the geolocation platform.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResolution is one completed geolocation lookup, cached in memory for the
// lifetime of the resolver.
type GeoResolution struct {
	Coordinates    Coordinates `json:"coordinates"`
	LocationString string      `json:"location_string"`
	ResolvedAt     time.Time   `json:"resolved_at"`
}
