package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mattjoyce/jenkins2gha/internal/config"
	"github.com/mattjoyce/jenkins2gha/internal/log"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// globals are the flags accepted before the command noun.
type globals struct {
	configPath string
	stdin      io.Reader
}

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	g := globals{stdin: os.Stdin}
	fs := flag.NewFlagSet("jenkins2gha", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&g.configPath, "config", "", "Path to configuration file")
	showVersion := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(cliArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(os.Stdout)
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Flag error: %v\n\n", err)
		printUsage(os.Stderr)
		return exitUsage
	}
	if *showVersion {
		return runVersion(nil)
	}
	if fs.NArg() < 1 {
		printUsage(os.Stderr)
		return exitUsage
	}

	cmd := fs.Arg(0)
	args := fs.Args()[1:]

	switch cmd {
	case "convert":
		return runConvert(g, args)
	case "analyze":
		return runAnalyze(g, args)
	case "plan":
		return runPlan(g, args)
	case "review":
		return runReview(g, args)
	case "serve":
		return runServe(g, args)
	case "runs":
		return runRunsNoun(g, args)
	case "config":
		return runConfigNoun(g, args)
	case "version":
		return runVersion(args)
	case "help":
		printUsage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `jenkins2gha - Convert Jenkins declarative pipelines to GitHub Actions

Usage:
  jenkins2gha [--config PATH] <command> [flags]

Commands:
  convert <Jenkinsfile>   Write the workflow and composite actions
  analyze <Jenkinsfile>   Report blockers, warnings and confidence
  plan <Jenkinsfile>      Show which jobs would run for an event
  review <Jenkinsfile>    Browse a conversion interactively
  serve                   Serve the HTTP API
  runs list               Show recorded conversion runs
  config check|show|lock  Inspect or pin the configuration
  version                 Show version information

A Jenkinsfile argument of "-" reads standard input.

Exit codes:
  0  Success
  1  Runtime error, or blockers found by analyze
  2  Usage error
`)
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: jenkins2gha version [--json]")
		return exitUsage
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return exitError
		}
		fmt.Println(string(data))
		return exitOK
	}

	fmt.Printf("jenkins2gha %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return exitOK
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalized
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- helpers shared by commands ---

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

// parseInterspersed parses flags that may appear before or after
// positional arguments and returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// loadConfig resolves configuration and initializes logging from it.
func loadConfig(g globals) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, "", err
	}
	log.Setup(cfg.LogLevel)
	return cfg, path, nil
}

// readSource reads a Jenkinsfile, or standard input for "-".
func readSource(g globals, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(g.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// kvFlag collects repeated key=value flags.
type kvFlag map[string]string

func (f kvFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f kvFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	f[strings.TrimSpace(k)] = v
	return nil
}

// listFlag collects repeated or comma separated values.
type listFlag []string

func (f *listFlag) String() string { return strings.Join(*f, ",") }

func (f *listFlag) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return exitError
	}
	fmt.Println(string(data))
	return exitOK
}
