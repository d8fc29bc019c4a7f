package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/jenkins2gha/internal/config"
)

func runConfigNoun(g globals, args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return exitUsage
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return exitOK
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(g, actionArgs)
	case "show":
		return runConfigShow(g, actionArgs)
	case "lock":
		return runConfigLock(g, actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return exitUsage
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: jenkins2gha [--config PATH] config <action>")
	fmt.Fprintln(w, "Actions:")
	fmt.Fprintln(w, "  check   Validate syntax, values and checksums")
	fmt.Fprintln(w, "  show    Print the resolved configuration (token masked)")
	fmt.Fprintln(w, "  lock    Record checksums for the config file and its includes")
}

type checkResult struct {
	Valid  bool     `json:"valid"`
	Source string   `json:"source"`
	Files  []string `json:"files"`
	Error  string   `json:"error,omitempty"`
}

func runConfigCheck(g globals, args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, path, err := config.LoadOrDefault(g.configPath)
	result := checkResult{Valid: err == nil, Source: path, Files: []string{}}
	if path == "" {
		result.Source = "(defaults)"
	}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Files = append(result.Files, cfg.SourceFiles...)
	}

	if *jsonOut {
		if code := printJSON(result); code != exitOK {
			return code
		}
	} else if result.Valid {
		fmt.Printf("Configuration OK: %s\n", result.Source)
		for _, f := range result.Files {
			fmt.Printf("  %s\n", f)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %s\n%s\n", result.Source, result.Error)
	}
	if !result.Valid {
		return exitError
	}
	return exitOK
}

func runConfigShow(g globals, args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, _, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return exitError
	}
	shown := *cfg
	if shown.API.Token != "" {
		shown.API.Token = "********"
	}

	if *jsonOut {
		return printJSON(shown)
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return exitError
	}
	fmt.Print(string(data))
	return exitOK
}

func runConfigLock(g globals, args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path, err := config.Discover(g.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
		return exitError
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No configuration file found; nothing to lock")
		return exitError
	}
	files, err := config.Files(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return exitError
	}
	written, err := config.Lock(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return exitError
	}
	for _, w := range written {
		fmt.Printf("Wrote %s\n", w)
	}
	fmt.Printf("Locked %d file(s)\n", len(files))
	return exitOK
}
