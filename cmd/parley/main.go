package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"parley/internal/app"
	"parley/internal/client"
	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/store"
	"parley/internal/timeline"
)

const usageText = `parley is a terminal chat client for a local agent server.

Usage:
  parley [command] [flags]

Commands:
  ui       run the terminal UI (default)
  ps       list sessions
  health   check server health
  help     show help

Flags:
  -h, --help   show help

UI flags:
  --server     server base URL (overrides config)
  --no-cache   skip the on-disk trace cache

Examples:
  parley
  parley ps
  parley ui --server http://127.0.0.1:8400
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		exitOnErr("ui", runUI(nil))
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
	case "ui":
		exitOnErr("ui", runUI(args[1:]))
	case "ps":
		exitOnErr("ps", runPS(args[1:]))
	case "health":
		exitOnErr("health", runHealth(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func exitOnErr(command string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "parley %s: %v\n", command, err)
	os.Exit(1)
}

func runUI(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	server := fs.String("server", "", "server base URL (overrides config)")
	noCache := fs.Bool("no-cache", false, "skip the on-disk trace cache")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	baseURL := cfg.ServerBaseURL()
	if *server != "" {
		baseURL = *server
	}
	api, err := client.New(baseURL)
	if err != nil {
		return err
	}

	var repo store.Repository
	if !*noCache {
		cachePath, pathErr := config.CachePath()
		if pathErr != nil {
			return pathErr
		}
		repo, err = store.NewBboltRepository(cachePath)
		if err != nil {
			// The UI works without the cache; note it and carry on.
			logger.Warn("trace cache unavailable", logging.F("path", cachePath), logging.F("err", err))
			repo = nil
		} else {
			defer repo.Close()
		}
	}

	perTool, total, preview, thinking := cfg.TimelineOverrides()
	logger.Info("starting ui", logging.F("server", baseURL))
	return app.Run(api, repo, app.Options{
		TickInterval:     cfg.TickInterval(),
		PollInterval:     cfg.PollInterval(),
		RenderThrottle:   cfg.RenderThrottle(),
		MaxEventsPerTick: cfg.MaxEventsPerTick(),
		Limits: timeline.Limits{
			PerToolOutputBytes:   perTool,
			TotalOutputBytes:     total,
			OutputPreviewBytes:   preview,
			ThinkingPreviewRunes: thinking,
		},
		Logger: logger,
	})
}

func runPS(args []string) error {
	fs := flag.NewFlagSet("ps", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	server := fs.String("server", "", "server base URL (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api, err := clientFromFlags(*server)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions, err := api.ListSessions(ctx)
	if err != nil {
		return err
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tUPDATED\tTITLE")
	for _, session := range sessions {
		updated := "-"
		if session.UpdatedAt != nil {
			updated = session.UpdatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", session.ID, session.Status, updated, session.Title)
	}
	return writer.Flush()
}

func runHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	server := fs.String("server", "", "server base URL (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api, err := clientFromFlags(*server)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := api.Health(ctx)
	if err != nil {
		return err
	}
	if !health.OK {
		return fmt.Errorf("server reported unhealthy")
	}
	fmt.Println("status: ok")
	if health.Version != "" {
		fmt.Printf("version: %s\n", health.Version)
	}
	return nil
}

func clientFromFlags(server string) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	baseURL := cfg.ServerBaseURL()
	if server != "" {
		baseURL = server
	}
	return client.New(baseURL)
}

// buildLogger writes logfmt lines to the configured file. Stdout and
// stderr belong to the TUI, so a broken log path falls back to a no-op
// logger instead of polluting the screen.
func buildLogger(cfg config.Config) (logging.Logger, func(), error) {
	path, err := cfg.ResolveLogPath()
	if err != nil {
		return nil, nil, err
	}
	file, err := logging.OpenFile(path)
	if err != nil {
		return logging.Nop(), func() {}, nil
	}
	logger := logging.New(file, logging.ParseLevel(cfg.LogLevel()))
	return logger, func() { _ = file.Close() }, nil
}
