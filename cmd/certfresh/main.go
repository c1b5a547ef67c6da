package main

import (
	"fmt"
	"os"

	"certfresh/internal/cli"
	"certfresh/internal/config"
	"certfresh/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "certfresh: failed to load config: %v\n", err)
		os.Exit(cli.ExitError)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	os.Exit(cli.Run(os.Args[1:], cli.Env{
		Config: cfg,
		Log:    log,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}))
}
