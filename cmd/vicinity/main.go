// Command main is the Vicinity feed client.
//
// Usage:
//
//	vicinity <command> [flags]
//
// Commands: register, login, logout, whoami, feed, toggle, open.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"vicinity/internal/api"
	"vicinity/internal/cache"
	"vicinity/internal/config"
	"vicinity/internal/feed"
	"vicinity/internal/geo"
	"vicinity/internal/guard"
	"vicinity/internal/interactions"
	"vicinity/internal/models"
	"vicinity/internal/observability"
	"vicinity/internal/session"
)

// cliNavigator satisfies guard.Navigator by reporting where the client
// would navigate.
type cliNavigator struct{}

func (cliNavigator) RedirectTo(url string) {
	fmt.Printf("-> navigation required: %s\n", url)
}

// flagPosition satisfies geo.PositionProvider from command-line flags, the
// CLI's stand-in for the platform geolocation capability.
type flagPosition struct {
	lat, lng float64
	denied   bool
}

func (p flagPosition) QueryPermission(ctx context.Context) (geo.PermissionState, error) {
	if p.denied {
		return geo.PermissionDenied, nil
	}
	return geo.PermissionGranted, nil
}

func (p flagPosition) CurrentPosition(ctx context.Context, opts geo.PositionOptions) (models.Coordinates, error) {
	return models.Coordinates{Latitude: p.lat, Longitude: p.lng}, nil
}

func main() {
	flags := flag.NewFlagSet("vicinity", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	nickname := flags.String("nickname", "", "nickname for registration")
	tab := flags.String("tab", "recommend", "feed tab: recommend|following|nearby")
	location := flags.String("location", "", "explicit location filter")
	postID := flags.String("post", "", "target post id for toggle")
	kind := flags.String("kind", "love", "toggle kind: love|collect|follow")
	path := flags.String("path", "/square", "path for the open command")
	search := flags.String("search", "", "query string for the open command")
	deepLink := flags.String("url", "", "deep link URL carrying userId/token credentials")
	lat := flags.Float64("lat", 38.7223, "latitude for nearby resolution")
	lng := flags.Float64("lng", -9.1393, "longitude for nearby resolution")
	denyGeo := flags.Bool("deny-geo", false, "simulate denied geolocation permission")

	if len(os.Args) < 2 {
		log.Fatal("usage: vicinity <register|login|logout|whoami|feed|toggle|open> [flags]")
	}
	command := os.Args[1]
	_ = flags.Parse(os.Args[2:])

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := observability.WithCorrelationID(context.Background(), observability.GenerateCorrelationID())

	cache.InitRedis(cfg.RedisURL)
	sessionCache := cache.NewSessionCache(cache.GetClient(), cache.DefaultSessionTTL)

	sessions := session.NewStore()
	if persisted, err := sessionCache.Load(ctx); err == nil && persisted != nil {
		_ = sessions.Set(*persisted)
	}
	// Deep-linked credentials take precedence over the persisted session.
	if *deepLink != "" {
		sessions.HydrateFromURL(*deepLink)
	}
	sessions.Subscribe(func(s *models.Session) {
		if s == nil {
			_ = sessionCache.Drop(ctx)
			return
		}
		_ = sessionCache.Save(ctx, *s)
	})

	nav := cliNavigator{}
	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout())
	geocoder := geo.NewHTTPGeocoder(cfg.GeocoderURL, cfg.GeoTimeout())
	resolver := geo.NewResolver(flagPosition{lat: *lat, lng: *lng, denied: *denyGeo}, geocoder)
	geoOpts := geo.Options{Timeout: cfg.GeoTimeout(), MaxAge: cfg.GeoMaxAge()}

	orch := feed.NewOrchestrator(sessions, client, resolver, nav, cfg.FeedPageSize, geoOpts)
	inter := interactions.NewStore(sessions, client, orch, nav, "/square")
	orch.SetReconciler(inter)
	inter.SetProfileRefresher(func(ctx context.Context, userID string) {
		sess, _ := sessions.Get()
		_, _ = client.GetUserInfo(ctx, api.UserQuery{
			Credentials:  api.Credentials{UserID: sess.UserID, Token: sess.Token},
			TargetUserID: userID,
		})
	})

	switch command {
	case "register":
		result, err := client.Register(ctx, api.RegisterRequest{
			Email: *email, Password: *password, Nickname: *nickname, Lang: cfg.Lang,
		})
		if err != nil {
			log.Fatalf("Registration failed: %v", err)
		}
		_ = sessions.Set(models.Session{UserID: result.UserID, Token: result.Token, Email: result.Email})
		fmt.Printf("registered as %s (%s)\n", result.Email, result.UserID)

	case "login":
		result, err := client.Login(ctx, *email, *password, cfg.Lang)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		_ = sessions.Set(models.Session{UserID: result.UserID, Token: result.Token, Email: result.Email})
		fmt.Printf("logged in as %s (%s)\n", result.Email, result.UserID)

	case "logout":
		sessions.Clear()
		fmt.Println("logged out")

	case "whoami":
		sess, ok := sessions.Get()
		if !ok {
			fmt.Println("anonymous")
			return
		}
		fmt.Printf("%s (%s)\n", sess.Email, sess.UserID)

	case "feed":
		if *location != "" {
			orch.SetFilterLocation(*location)
		}
		if err := orch.Load(ctx, models.FeedTab(*tab)); err != nil {
			log.Fatalf("Feed load failed: %v", err)
		}
		printFeed(orch)

	case "toggle":
		if *postID == "" {
			log.Fatal("toggle requires -post")
		}
		if err := orch.Load(ctx, models.FeedTab(*tab)); err != nil {
			log.Fatalf("Feed load failed: %v", err)
		}
		inter.Toggle(ctx, *postID, models.InteractionKind(*kind))
		inter.Flush()
		printFeed(orch)

	case "open":
		g := guard.NewGuard(sessions, nav, cfg.GuardGrace())
		state := g.Evaluate(ctx, *path, *search)
		fmt.Printf("%s -> %s\n", *path, state)

	default:
		log.Fatalf("unknown command %q", command)
	}
}

func printFeed(orch *feed.Orchestrator) {
	posts := orch.Posts()
	p := orch.Pagination()
	fmt.Printf("tab=%s page=%d/%d total=%d\n", orch.ActiveTab(), p.Page, (p.Total+p.Limit-1)/max(p.Limit, 1), p.Total)
	for _, post := range posts {
		marks := ""
		if post.ViewerFlags.IsLove {
			marks += " ♥"
		}
		if post.ViewerFlags.IsCollect {
			marks += " ★"
		}
		if post.Publisher.IsFollowed {
			marks += " +f"
		}
		fmt.Printf("  [%s] %s @ %s (loves %d, collects %d)%s\n",
			shortID(post.ID), post.Title, post.Location, post.Counters.Loves, post.Counters.Collects, marks)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
