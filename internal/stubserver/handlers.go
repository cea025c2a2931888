package stubserver

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"vicinity/internal/api"
	"vicinity/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ok writes a success envelope.
func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

// fail writes a failure envelope. The HTTP status stays 200: clients key off
// the envelope, matching the remote service contract.
func fail(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{"success": false, "message": message})
}

// Login handles POST /api/login.
func (s *Server) Login(c *fiber.Ctx) error {
	var req api.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return fail(c, "email and password are required")
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		return fail(c, "login failed")
	}
	if user == nil {
		return fail(c, "unknown email or wrong password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return fail(c, "unknown email or wrong password")
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return fail(c, "login failed")
	}
	return ok(c, api.AuthResult{UserID: user.ID, Token: token, Email: user.Email})
}

// Register handles POST /api/register.
func (s *Server) Register(c *fiber.Ctx) error {
	var req api.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.Nickname == "" {
		return fail(c, "email, password, and nickname are required")
	}

	existing, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		return fail(c, "registration failed")
	}
	if existing != nil {
		return fail(c, "email already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, "registration failed")
	}

	user := &User{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Password: string(hashed),
		Nickname: req.Nickname,
	}
	if err := s.store.CreateUser(user); err != nil {
		return fail(c, "registration failed")
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return fail(c, "registration failed")
	}
	return ok(c, api.AuthResult{UserID: user.ID, Token: token, Email: user.Email})
}

// GetSquareContentList handles POST /api/getSquareContentList. The
// recommend tab supports anonymous browsing; following requires valid
// credentials.
func (s *Server) GetSquareContentList(c *fiber.Ctx) error {
	var req api.FeedQuery
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if !req.Tab.Valid() {
		return fail(c, "unknown tab")
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 50 {
		req.Limit = 10
	}

	viewerID := ""
	if req.UserID != "" || req.Token != "" {
		if !s.authenticate(req.UserID, req.Token) {
			return fail(c, "invalid credentials")
		}
		viewerID = req.UserID
	}
	if req.Tab == models.TabFollowing && viewerID == "" {
		return fail(c, "following tab requires authentication")
	}

	posts, total, err := s.store.ListPosts(req.Tab, viewerID, req.Location, req.Page, req.Limit)
	if err != nil {
		return fail(c, "feed query failed")
	}

	list := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		fp, err := s.store.toFeedPost(p, viewerID)
		if err != nil {
			return fail(c, "feed query failed")
		}
		list = append(list, fp)
	}

	return ok(c, api.FeedPage{
		Posts: list,
		Pagination: models.Pagination{
			Page:  req.Page,
			Limit: req.Limit,
			Total: int(total),
		},
	})
}

// ToggleLove handles POST /api/toggleLove.
func (s *Server) ToggleLove(c *fiber.Ctx) error {
	return s.togglePostFlag(c, "love", s.store.SetLove)
}

// ToggleCollect handles POST /api/toggleCollect.
func (s *Server) ToggleCollect(c *fiber.Ctx) error {
	return s.togglePostFlag(c, "collect", s.store.SetCollect)
}

func (s *Server) togglePostFlag(c *fiber.Ctx, kind string, set func(userID, postID string, desired bool) error) error {
	var req api.ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if !s.authenticate(req.UserID, req.Token) {
		return fail(c, "authentication required")
	}

	post, err := s.store.GetPost(req.TargetID)
	if err != nil || post == nil {
		return fail(c, "post not found")
	}
	if err := set(req.UserID, req.TargetID, req.DesiredState); err != nil {
		return fail(c, "toggle failed")
	}
	toggleCounter.WithLabelValues(kind).Inc()
	return ok(c, nil)
}

// ToggleFollowUser handles POST /api/toggleFollowUser.
func (s *Server) ToggleFollowUser(c *fiber.Ctx) error {
	var req api.ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body")
	}
	if !s.authenticate(req.UserID, req.Token) {
		return fail(c, "authentication required")
	}
	if req.TargetID == req.UserID {
		return fail(c, "cannot follow yourself")
	}

	target, err := s.store.GetUserByID(req.TargetID)
	if err != nil || target == nil {
		return fail(c, "user not found")
	}
	if err := s.store.SetFollow(req.UserID, req.TargetID, req.DesiredState); err != nil {
		return fail(c, "toggle failed")
	}
	toggleCounter.WithLabelValues("follow").Inc()
	return ok(c, nil)
}

// GetUserInfo handles POST /api/getUserInfo.
func (s *Server) GetUserInfo(c *fiber.Ctx) error {
	var req api.UserQuery
	if err := c.BodyParser(&req); err != nil {
		return fail(c, "invalid request body")
	}

	viewerID := ""
	if req.UserID != "" || req.Token != "" {
		if !s.authenticate(req.UserID, req.Token) {
			return fail(c, "invalid credentials")
		}
		viewerID = req.UserID
	}

	var target *User
	var err error
	switch {
	case req.TargetUserID != "":
		target, err = s.store.GetUserByID(req.TargetUserID)
	case req.Email != "":
		target, err = s.store.GetUserByEmail(req.Email)
	default:
		return fail(c, "targetUserId or email is required")
	}
	if err != nil {
		return fail(c, "lookup failed")
	}
	if target == nil {
		return fail(c, "user not found")
	}

	followed := false
	if viewerID != "" {
		followed, err = s.store.IsFollowing(viewerID, target.ID)
		if err != nil {
			return fail(c, "lookup failed")
		}
	}

	stored, err := s.store.PostsByUser(target.ID, 20)
	if err != nil {
		return fail(c, "lookup failed")
	}
	posts := make([]models.Post, 0, len(stored))
	for _, p := range stored {
		fp, err := s.store.toFeedPost(p, viewerID)
		if err != nil {
			return fail(c, "lookup failed")
		}
		posts = append(posts, fp)
	}

	return ok(c, api.UserProfile{
		User: models.Publisher{
			UserID:     target.ID,
			Nickname:   target.Nickname,
			Avatar:     target.Avatar,
			IsFollowed: followed,
		},
		IsFollowed: followed,
		Posts:      posts,
	})
}

// seedCities are the location strings the stub geocoder resolves into.
var seedCities = []string{
	"Lisbon", "Porto", "Madrid", "Barcelona", "Paris",
	"Berlin", "Amsterdam", "Vienna", "Prague", "Rome",
}

// ReverseGeocode handles GET /api/reverseGeocode. The stub maps coordinates
// deterministically onto a seeded city so repeated lookups agree.
func (s *Server) ReverseGeocode(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return fail(c, "lat and lng are required")
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%.2f:%.2f", lat, lng)))
	city := seedCities[int(h.Sum32())%len(seedCities)]

	return ok(c, fiber.Map{"location": city})
}
