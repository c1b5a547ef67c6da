package main

import (
	"github.com/mark3labs/mcp-go/server"

	"certfresh/internal/cli"
	"certfresh/internal/config"
	"certfresh/internal/db"
	"certfresh/internal/logging"
	mcptools "certfresh/internal/mcp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("error", "text").Fatalf("failed to load config: %v", err)
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	prober, err := cli.DefaultProber(cfg)
	if err != nil {
		log.Fatalf("failed to build checker: %v", err)
	}

	s := server.NewMCPServer(
		"certfresh",
		cli.Version,
		server.WithToolCapabilities(true),
	)

	mcptools.RegisterTools(s, database, prober, mcptools.Options{
		DefaultThresholdDays: cfg.DefaultThresholdDays,
		MaxBatchSize:         cfg.MaxBatchSize,
		BatchConcurrency:     cfg.BatchConcurrency,
	})

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
