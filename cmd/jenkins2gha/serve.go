package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/jenkins2gha/internal/analyze"
	"github.com/mattjoyce/jenkins2gha/internal/api"
	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/ledger"
	"github.com/mattjoyce/jenkins2gha/internal/log"
)

func runServe(g globals, args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		fmt.Println("Usage: jenkins2gha serve [--listen ADDR]")
		fmt.Println("Serve convert, analyze, plan and run history over HTTP.")
		return exitOK
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	listen := fs.String("listen", "", "Listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: jenkins2gha serve [--listen ADDR]")
		return exitUsage
	}

	cfg, path, err := loadConfig(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitError
	}
	logger := log.WithComponent("main")
	logger.Info("jenkins2gha starting", "version", version, "config", path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A nil *ledger.Store must not become a non-nil interface.
	var runs api.RunLedger
	if cfg.Ledger.Enabled {
		store, err := ledger.Open(ctx, cfg.Ledger.Path)
		if err != nil {
			logger.Error("failed to open ledger", "path", cfg.Ledger.Path, "error", err)
			return exitError
		}
		defer store.Close()
		runs = store
		logger.Info("ledger opened", "path", cfg.Ledger.Path)
	}

	apiConfig := api.Config{
		Listen:       cfg.API.Listen,
		Token:        cfg.API.Token,
		WorkflowPath: cfg.WorkflowPath(),
		CORSOrigins:  cfg.API.CORSOrigins,
	}
	if *listen != "" {
		apiConfig.Listen = *listen
	}
	converter := convert.New(cfg.ConvertOptions(), log.WithComponent("convert"))
	server := api.New(apiConfig, converter, runs, analyze.DefaultRules(), log.WithComponent("api"))

	if err := server.Start(ctx); err != nil {
		logger.Error("API server failed", "error", err)
		return exitError
	}
	logger.Info("jenkins2gha stopped")
	return exitOK
}

func runRunsNoun(g globals, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: jenkins2gha runs list [--limit N] [--json]")
		return exitUsage
	}
	if isHelpToken(args[0]) {
		fmt.Println("Usage: jenkins2gha runs list [--limit N] [--json]")
		fmt.Println("Show recorded conversion runs, newest first.")
		return exitOK
	}
	switch args[0] {
	case "list":
		return runRunsList(g, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown runs action: %s\n", args[0])
		return exitUsage
	}
}

func runRunsList(g globals, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", ledger.DefaultListLimit, "Maximum number of runs")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must not be negative")
		return exitUsage
	}

	cfg, _, err := loadConfig(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitError
	}
	if !cfg.Ledger.Enabled {
		fmt.Fprintln(os.Stderr, "The run ledger is disabled (ledger.enabled: false)")
		return exitError
	}

	ctx := context.Background()
	store, err := ledger.Open(ctx, cfg.Ledger.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return exitError
	}
	defer store.Close()

	runs, err := store.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return exitError
	}
	if *jsonOut {
		if runs == nil {
			runs = []ledger.Run{}
		}
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return exitOK
	}
	fmt.Printf("%-36s  %-20s  %-6s  %-4s  %-6s  %-10s  %s\n", "ID", "CREATED", "STAGES", "JOBS", "MANUAL", "CONFIDENCE", "SOURCE")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %-6d  %-4d  %-6d  %-10s  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Stages, r.Jobs, r.Manual, r.Confidence, r.Source)
	}
	return exitOK
}
