package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vicinity/internal/models"

	"github.com/redis/go-redis/v9"
)

const sessionKey = "vicinity:session"

// DefaultSessionTTL bounds how long a persisted session outlives the client
// process.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionCache persists the session snapshot across client restarts. All
// operations are no-ops when the underlying client is nil.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache returns a session cache backed by the given Redis client.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{client: client, ttl: ttl}
}

// Save stores the session snapshot.
func (c *SessionCache) Save(ctx context.Context, sess models.Session) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey, raw, c.ttl).Err()
}

// Load returns the persisted session, or nil when none is stored.
func (c *SessionCache) Load(ctx context.Context) (*models.Session, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if !sess.Complete() {
		return nil, nil
	}
	return &sess, nil
}

// Drop removes the persisted session, if any.
func (c *SessionCache) Drop(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, sessionKey).Err()
}
