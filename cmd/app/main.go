package main

import (
	"flag"
	"log"
	"os"

	"BarBridge/internal/di"
	"BarBridge/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s publisher=%s archive=%s", cfg.Environment, cfg.Publisher.Type, cfg.Archive.Type)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("feed: %s %s via %s", cfg.Feed.Symbol, cfg.Feed.Timeframe, cfg.Feed.WebSocketURL)

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
