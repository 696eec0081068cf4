package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"StayCast/internal/di"
	"StayCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	runOnce := flag.Bool("run-once", false, "execute one evaluation run and exit")
	targets := flag.String("targets", "", "comma-separated target filter for -run-once")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s targets=%d clickhouse=%s", cfg.Environment, len(cfg.Targets), cfg.ClickHouse.Host)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *runOnce {
		var only []string
		if *targets != "" {
			only = strings.Split(*targets, ",")
		}
		if err := app.RunOnce(context.Background(), only...); err != nil {
			log.Printf("run failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
