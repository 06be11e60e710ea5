package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/app"
)

func main() {
	cfg, err := app.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %s\n", err)
		os.Exit(1)
	}
	logger := app.NewLoggerTo(os.Stderr, cfg, slog.LevelWarn)

	cli := commandLine{
		client: api.NewClient(api.Options{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout, Logger: logger}),
		logger: logger,
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}
