package main

import (
	"flag"
	"log"
	"os"

	"SignalDesk/internal/di"
	"SignalDesk/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path (empty for defaults)")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); path != "" && os.IsNotExist(err) {
		log.Printf("config %s not found, using defaults", path)
		path = ""
	}

	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s backend=%s source=%s", cfg.Environment, cfg.MarketData.Backend, cfg.MarketData.Source)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
