// Package stubserver is a runnable stand-in for the remote feed service.
// The real backend is a black box; this one implements every verb the
// client consumes, with the same envelope contract, so the client can be
// exercised end to end during development.
package stubserver

import (
	"time"

	"vicinity/internal/config"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var toggleCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vicinity_stub_toggles_total",
	Help: "Toggle verb calls handled by the stub backend.",
}, []string{"kind"})

// Server holds the stub backend's dependencies.
type Server struct {
	cfg   *config.Config
	store *Store
	app   *fiber.App
}

// NewServer wires the stub backend against the given store.
func NewServer(cfg *config.Config, store *Store) *Server {
	app := fiber.New(fiber.Config{
		AppName: "vicinity-stub",
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	prom := fiberprometheus.New("vicinity-stub")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	s := &Server{cfg: cfg, store: store, app: app}

	app.Post("/api/login", s.Login)
	app.Post("/api/register", s.Register)
	app.Post("/api/getSquareContentList", s.GetSquareContentList)
	app.Post("/api/toggleLove", s.ToggleLove)
	app.Post("/api/toggleCollect", s.ToggleCollect)
	app.Post("/api/toggleFollowUser", s.ToggleFollowUser)
	app.Post("/api/getUserInfo", s.GetUserInfo)
	app.Get("/api/reverseGeocode", s.ReverseGeocode)

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the stub backend on the configured port.
func (s *Server) Listen() error {
	return s.app.Listen(":" + s.cfg.StubPort)
}

// issueToken signs a JWT for the given user.
func (s *Server) issueToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(72 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.StubJWTSecret))
}

// authenticate validates that the token was issued for the given user.
func (s *Server) authenticate(userID, tokenString string) bool {
	if userID == "" || tokenString == "" {
		return false
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid signing method")
		}
		return []byte(s.cfg.StubJWTSecret), nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	sub, ok := claims["sub"].(string)
	return ok && sub == userID
}
