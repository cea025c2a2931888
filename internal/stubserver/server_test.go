package stubserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"vicinity/internal/api"
	"vicinity/internal/config"
	"vicinity/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The prometheus middleware registers collectors in the default registry, so
// the test app is built once and shared. Tests keep their data disjoint by
// registering unique accounts.
var (
	testOnce  sync.Once
	testSrv   *Server
	testStore *Store
	setupErr  error
)

func testServer(t *testing.T) (*Server, *Store) {
	t.Helper()
	testOnce.Do(func() {
		cfg := &config.Config{
			StubPort:      "0",
			StubJWTSecret: "test-secret",
		}
		testStore, setupErr = OpenStore(":memory:")
		if setupErr != nil {
			return
		}
		testSrv = NewServer(cfg, testStore)
	})
	require.NoError(t, setupErr)
	return testSrv, testStore
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func postJSON(t *testing.T, path string, body interface{}) envelope {
	t.Helper()
	srv, _ := testServer(t)

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "the envelope carries the outcome, not the status")

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func getPath(t *testing.T, path string) envelope {
	t.Helper()
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func registerAccount(t *testing.T, email string) api.AuthResult {
	t.Helper()
	env := postJSON(t, "/api/register", api.RegisterRequest{
		Email:    email,
		Password: "hunter22",
		Nickname: "tester",
	})
	require.True(t, env.Success, env.Message)

	var auth api.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.UserID)
	require.NotEmpty(t, auth.Token)
	return auth
}

func createPost(t *testing.T, userID, title, location string) string {
	t.Helper()
	_, store := testServer(t)
	post := &Post{
		ID:       fmt.Sprintf("post-%s-%s", userID[:4], title),
		Title:    title,
		Location: location,
		UserID:   userID,
	}
	require.NoError(t, store.CreatePost(post))
	return post.ID
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	auth := registerAccount(t, "roundtrip@vicinity.dev")

	env := postJSON(t, "/api/login", api.LoginRequest{
		Email:    "roundtrip@vicinity.dev",
		Password: "hunter22",
	})
	require.True(t, env.Success, env.Message)

	var login api.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, auth.UserID, login.UserID)
	assert.Equal(t, "roundtrip@vicinity.dev", login.Email)
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	registerAccount(t, "dupe@vicinity.dev")

	env := postJSON(t, "/api/register", api.RegisterRequest{
		Email:    "dupe@vicinity.dev",
		Password: "hunter22",
		Nickname: "tester",
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "already registered")
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	registerAccount(t, "wrongpw@vicinity.dev")

	env := postJSON(t, "/api/login", api.LoginRequest{
		Email:    "wrongpw@vicinity.dev",
		Password: "not-the-password",
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "wrong password")
}

func TestFeedAnonymousRecommend(t *testing.T) {
	author := registerAccount(t, "feed-author@vicinity.dev")
	createPost(t, author.UserID, "anon-visible", "Atlantis-Recommend")

	env := postJSON(t, "/api/getSquareContentList", api.FeedQuery{
		Tab:      models.TabRecommend,
		Location: "Atlantis-Recommend",
		Page:     1,
		Limit:    10,
	})
	require.True(t, env.Success, env.Message)

	var page api.FeedPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "anon-visible", page.Posts[0].Title)
	assert.False(t, page.Posts[0].ViewerFlags.IsLove, "anonymous viewers carry no flags")
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestFeedFollowingRequiresAuth(t *testing.T) {
	env := postJSON(t, "/api/getSquareContentList", api.FeedQuery{
		Tab:  models.TabFollowing,
		Page: 1,
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "requires authentication")
}

func TestFeedFollowingListsOnlyFollowedPublishers(t *testing.T) {
	viewer := registerAccount(t, "following-viewer@vicinity.dev")
	followed := registerAccount(t, "following-followed@vicinity.dev")
	stranger := registerAccount(t, "following-stranger@vicinity.dev")
	createPost(t, followed.UserID, "from-followed", "Atlantis-Following")
	createPost(t, stranger.UserID, "from-stranger", "Atlantis-Following")

	env := postJSON(t, "/api/toggleFollowUser", api.ToggleRequest{
		Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		TargetID:     followed.UserID,
		DesiredState: true,
	})
	require.True(t, env.Success, env.Message)

	env = postJSON(t, "/api/getSquareContentList", api.FeedQuery{
		Credentials: api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		Tab:         models.TabFollowing,
		Location:    "Atlantis-Following",
		Page:        1,
		Limit:       10,
	})
	require.True(t, env.Success, env.Message)

	var page api.FeedPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "from-followed", page.Posts[0].Title)
	assert.True(t, page.Posts[0].Publisher.IsFollowed)
}

func TestFeedRejectsInvalidCredentials(t *testing.T) {
	env := postJSON(t, "/api/getSquareContentList", api.FeedQuery{
		Credentials: api.Credentials{UserID: "someone", Token: "forged"},
		Tab:         models.TabRecommend,
		Page:        1,
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "invalid credentials")
}

func TestToggleLoveReflectsInViewerFlags(t *testing.T) {
	viewer := registerAccount(t, "love-viewer@vicinity.dev")
	author := registerAccount(t, "love-author@vicinity.dev")
	postID := createPost(t, author.UserID, "lovable", "Atlantis-Love")

	// Setting the same desired state twice stays idempotent.
	for i := 0; i < 2; i++ {
		env := postJSON(t, "/api/toggleLove", api.ToggleRequest{
			Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
			TargetID:     postID,
			DesiredState: true,
		})
		require.True(t, env.Success, env.Message)
	}

	env := postJSON(t, "/api/getSquareContentList", api.FeedQuery{
		Credentials: api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		Tab:         models.TabRecommend,
		Location:    "Atlantis-Love",
		Page:        1,
		Limit:       10,
	})
	require.True(t, env.Success, env.Message)

	var page api.FeedPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Posts, 1)
	assert.True(t, page.Posts[0].ViewerFlags.IsLove)
	assert.Equal(t, 1, page.Posts[0].Counters.Loves, "double-set counts once")

	env = postJSON(t, "/api/toggleLove", api.ToggleRequest{
		Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		TargetID:     postID,
		DesiredState: false,
	})
	require.True(t, env.Success, env.Message)

	_, store := testServer(t)
	counters, err := store.counters(postID)
	require.NoError(t, err)
	assert.Equal(t, 0, counters.Loves)
}

func TestToggleRequiresAuth(t *testing.T) {
	env := postJSON(t, "/api/toggleCollect", api.ToggleRequest{
		TargetID:     "whatever",
		DesiredState: true,
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "authentication required")
}

func TestToggleUnknownPostRejected(t *testing.T) {
	viewer := registerAccount(t, "ghost-toggler@vicinity.dev")

	env := postJSON(t, "/api/toggleLove", api.ToggleRequest{
		Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		TargetID:     "no-such-post",
		DesiredState: true,
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "post not found")
}

func TestFollowSelfRejected(t *testing.T) {
	viewer := registerAccount(t, "narcissus@vicinity.dev")

	env := postJSON(t, "/api/toggleFollowUser", api.ToggleRequest{
		Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		TargetID:     viewer.UserID,
		DesiredState: true,
	})
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "cannot follow yourself")
}

func TestGetUserInfo(t *testing.T) {
	viewer := registerAccount(t, "info-viewer@vicinity.dev")
	target := registerAccount(t, "info-target@vicinity.dev")
	createPost(t, target.UserID, "profile-post", "Atlantis-Info")

	env := postJSON(t, "/api/toggleFollowUser", api.ToggleRequest{
		Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		TargetID:     target.UserID,
		DesiredState: true,
	})
	require.True(t, env.Success, env.Message)

	env = postJSON(t, "/api/getUserInfo", api.UserQuery{
		Credentials:  api.Credentials{UserID: viewer.UserID, Token: viewer.Token},
		TargetUserID: target.UserID,
	})
	require.True(t, env.Success, env.Message)

	var profile api.UserProfile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, target.UserID, profile.User.UserID)
	assert.True(t, profile.IsFollowed)
	require.Len(t, profile.Posts, 1)
	assert.Equal(t, "profile-post", profile.Posts[0].Title)

	// Lookup by email works anonymously, without follow state.
	env = postJSON(t, "/api/getUserInfo", api.UserQuery{Email: "info-target@vicinity.dev"})
	require.True(t, env.Success, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, target.UserID, profile.User.UserID)
	assert.False(t, profile.IsFollowed)
}

func TestReverseGeocodeIsDeterministic(t *testing.T) {
	first := getPath(t, "/api/reverseGeocode?lat=38.72&lng=-9.14")
	require.True(t, first.Success)
	second := getPath(t, "/api/reverseGeocode?lat=38.72&lng=-9.14")
	require.True(t, second.Success)

	var a, b struct {
		Location string `json:"location"`
	}
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.NotEmpty(t, a.Location)
	assert.Equal(t, a.Location, b.Location, "same coordinates resolve to the same city")
	assert.Contains(t, seedCities, a.Location)
}

func TestReverseGeocodeRequiresCoordinates(t *testing.T) {
	env := getPath(t, "/api/reverseGeocode?lat=38.72")
	assert.False(t, env.Success)
}

func TestSeedIsIdempotent(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)

	require.NoError(t, Seed(store, 12))
	users, err := store.CountUsers()
	require.NoError(t, err)
	assert.Greater(t, users, int64(0))

	// A second run against a populated store changes nothing.
	require.NoError(t, Seed(store, 12))
	after, err := store.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, users, after)
}
