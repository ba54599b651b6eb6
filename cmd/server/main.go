package main

import (
	"context"
	"log"

	"github.com/avasiliev/accountkeeper/internal/server"
	"github.com/avasiliev/accountkeeper/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {
	// optional .env for local development; real deployments use the
	// environment directly
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
