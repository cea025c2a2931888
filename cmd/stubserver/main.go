// Command main runs the stub feed backend for local development.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"vicinity/internal/config"
	"vicinity/internal/stubserver"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := stubserver.OpenStore(cfg.StubDBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	if err := stubserver.Seed(store, cfg.StubSeedPosts); err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}

	srv := stubserver.NewServer(cfg, store)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down stub backend...")
		if err := srv.App().Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Stub backend listening on :%s", cfg.StubPort)
	if err := srv.Listen(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
