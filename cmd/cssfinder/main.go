// Command cssfinder runs closest-separable-state searches described by a
// project and serves their status over HTTP.
//
// Backend implementations register themselves through
// backend.RegisterProvider, typically from an init function in a
// blank-imported provider package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/argmaster/cssfinder/internal/api"
	"github.com/argmaster/cssfinder/internal/backend"
	"github.com/argmaster/cssfinder/internal/config"
	"github.com/argmaster/cssfinder/internal/executor"
	"github.com/argmaster/cssfinder/internal/project"
	"github.com/argmaster/cssfinder/internal/scheduler"
	"github.com/argmaster/cssfinder/internal/store"
)

func main() {
	// Missing .env files are fine; explicit environment always wins.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(cfg, logger, os.Args[2:])
	case "serve":
		err = serveCmd(cfg, logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("cssfinder: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: cssfinder <command> [flags]

commands:
  run    execute project tasks
  serve  serve project status over HTTP`)
}

func runCmd(cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	projectPath := fs.String("project", ".", "project directory or file")
	patterns := fs.String("tasks", "", "comma separated task name globs, empty runs all tasks")
	workers := fs.Int("workers", cfg.MaxWorkers, "max concurrent task executions")
	interval := fs.Int("checkpoint", executor.DefaultCheckpointInterval, "iterations between checkpoints")
	elevate := fs.Bool("elevate", cfg.ElevatePriority, "raise process priority, best effort")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, reg, err := loadProject(logger, *projectPath)
	if err != nil {
		return err
	}

	ix, err := store.OpenIndex(cfg.DBPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(reg, ix, scheduler.NewBroker(), logger)
	runID, outcomes, err := sched.Run(ctx, p, splitPatterns(*patterns), scheduler.Options{
		MaxWorkers:         *workers,
		CheckpointInterval: *interval,
		ElevatePriority:    *elevate,
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		out := outcomes[name]
		if out.Err != nil {
			failed++
			logger.Error("task failed", "task", name, "error", out.Err)
			continue
		}
		logger.Info("task done",
			"task", name,
			"termination", out.Result.Termination,
			"value", out.Result.Value,
			"iterations", out.Result.Iterations,
		)
	}
	logger.Info("run complete", "run_id", runID, "tasks", len(outcomes), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(outcomes))
	}
	return nil
}

func serveCmd(cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	projectPath := fs.String("project", ".", "project directory or file")
	addr := fs.String("addr", cfg.ListenAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, reg, err := loadProject(logger, *projectPath)
	if err != nil {
		return err
	}

	ix, err := store.OpenIndex(cfg.DBPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	srv := api.NewServer(*addr, p, reg, ix, scheduler.NewBroker(), logger)
	return srv.Run()
}

// loadProject loads and validates the project against the discovered
// backends, failing before any task runs.
func loadProject(logger *slog.Logger, path string) (*project.Project, *backend.Registry, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("project loaded",
		"name", p.Meta.Name,
		"version", p.Meta.Version,
		"tasks", len(p.Tasks()),
	)

	reg := backend.NewRegistry(logger)
	n := reg.Discover()
	logger.Info("backends discovered", "count", n)

	if err := p.Validate(reg); err != nil {
		return nil, nil, err
	}
	return p, reg, nil
}

// splitPatterns turns the comma separated -tasks flag into glob patterns.
func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
