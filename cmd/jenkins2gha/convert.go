package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/jenkins2gha/internal/analyze"
	"github.com/mattjoyce/jenkins2gha/internal/config"
	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/ledger"
	"github.com/mattjoyce/jenkins2gha/internal/log"
	"github.com/mattjoyce/jenkins2gha/internal/output"
	"github.com/mattjoyce/jenkins2gha/internal/report"
	"github.com/mattjoyce/jenkins2gha/internal/simulate"
	"github.com/mattjoyce/jenkins2gha/internal/tui"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	reviewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case report.StatusReady:
		return okStyle
	case report.StatusBlocked:
		return failStyle
	default:
		return reviewStyle
	}
}

// conversion bundles everything derived from one Jenkinsfile.
type conversion struct {
	cfg      *config.Config
	text     string
	result   *convert.Result
	analysis *analyze.Report
	report   *report.Report
	files    []output.File
}

func convertFile(g globals, path string) (*conversion, error) {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	text, err := readSource(g, path)
	if err != nil {
		return nil, err
	}
	res, err := convert.New(cfg.ConvertOptions(), log.WithComponent("convert")).Convert(text)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", path, err)
	}
	files, err := output.Render(res, cfg.WorkflowPath())
	if err != nil {
		return nil, err
	}
	analysis := analyze.Analyze(text, analyze.DefaultRules())
	return &conversion{
		cfg:      cfg,
		text:     text,
		result:   res,
		analysis: analysis,
		report:   report.Build(res, analysis, cfg.WorkflowPath()),
		files:    files,
	}, nil
}

type convertOutput struct {
	RunID    string          `json:"run_id,omitempty"`
	Manifest output.Manifest `json:"manifest"`
	Report   *report.Report  `json:"report"`
}

func runConvert(g globals, args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		printConvertHelp()
		return exitOK
	}
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	outDir := fs.String("out", "", "Output directory (default from config)")
	dryRun := fs.Bool("dry-run", false, "Show what would be written")
	jsonOut := fs.Bool("json", false, "Output the manifest and report as JSON")
	reportPath := fs.String("report", "", "Also write the report to FILE (.md, .json or .txt)")
	force := fs.Bool("force", false, "Overwrite files that differ")
	noLedger := fs.Bool("no-ledger", false, "Do not record the run")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(positional) != 1 {
		printConvertHelp()
		return exitUsage
	}
	source := positional[0]

	c, err := convertFile(g, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	logger := log.WithComponent("cli")

	dir := *outDir
	if dir == "" {
		dir = c.cfg.Output.Dir
	}
	writer, err := output.NewFSWriter(dir, output.Options{Force: *force, DryRun: *dryRun})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	manifest, err := writer.Write(context.Background(), c.files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	if *reportPath != "" && !*dryRun {
		if err := writeReport(*reportPath, c.report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
	}

	out := convertOutput{Manifest: manifest, Report: c.report}
	if !*dryRun && !*noLedger && c.cfg.Ledger.Enabled {
		run, err := recordRun(c, source)
		if err != nil {
			logger.Warn("run not recorded", "error", err)
		} else {
			out.RunID = run.ID
			log.WithRun(run.ID).Info("run recorded", "fingerprint", run.Fingerprint)
		}
	}

	if *jsonOut {
		return printJSON(out)
	}

	if *dryRun {
		fmt.Println(dimStyle.Render("Dry run: nothing was written"))
	}
	for _, e := range manifest.Entries {
		fmt.Printf("  %-10s %s\n", e.Change, filepath.Join(manifest.Root, e.Path))
	}
	fmt.Println()
	fmt.Print(report.Text(c.report))
	fmt.Printf("\n%s\n", statusStyle(c.report.Status).Render("Status: "+c.report.Status))
	if out.RunID != "" {
		fmt.Println(dimStyle.Render("Run: " + out.RunID))
	}
	return exitOK
}

func writeReport(path string, r *report.Report) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := report.JSON(r)
		if err != nil {
			return err
		}
		content = data + "\n"
	case ".txt":
		content = report.Text(r)
	default:
		content = report.Markdown(r)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func recordRun(c *conversion, source string) (ledger.Run, error) {
	ctx := context.Background()
	store, err := ledger.Open(ctx, c.cfg.Ledger.Path)
	if err != nil {
		return ledger.Run{}, err
	}
	defer store.Close()
	return store.Record(ctx, ledger.NewRun(source, c.text, c.result, c.analysis.Confidence))
}

func printConvertHelp() {
	fmt.Println("Usage: jenkins2gha convert <Jenkinsfile> [--out DIR] [--dry-run] [--json] [--report FILE] [--force] [--no-ledger]")
	fmt.Println("Write .github/workflows and .github/actions for a declarative pipeline.")
}

func runAnalyze(g globals, args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		fmt.Println("Usage: jenkins2gha analyze <Jenkinsfile> [--json]")
		return exitOK
	}
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: jenkins2gha analyze <Jenkinsfile> [--json]")
		return exitUsage
	}
	if _, _, err := loadConfig(g); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	text, err := readSource(g, positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	r := analyze.Analyze(text, analyze.DefaultRules())
	if *jsonOut {
		data, err := analyze.FormatJSON(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Println(data)
	} else {
		fmt.Print(analyze.FormatHuman(r))
	}
	if !r.CanConvert {
		return exitError
	}
	return exitOK
}

func runPlan(g globals, args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		printPlanHelp()
		return exitOK
	}
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	event := fs.String("event", "push", "GitHub event name")
	ref := fs.String("ref", "refs/heads/main", "Git ref the event is for")
	inputs := kvFlag{}
	env := kvFlag{}
	var failed listFlag
	fs.Var(inputs, "input", "workflow_dispatch input as key=value (repeatable)")
	fs.Var(env, "env", "Extra env value as key=value (repeatable)")
	fs.Var(&failed, "fail", "Job id to treat as failing (repeatable or comma separated)")
	jsonOut := fs.Bool("json", false, "Output JSON")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(positional) != 1 {
		printPlanHelp()
		return exitUsage
	}

	c, err := convertFile(g, positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	plan, err := simulate.Simulate(c.result.Workflow, simulate.Context{
		Event:  *event,
		Ref:    *ref,
		Inputs: inputs,
		Env:    env,
		Failed: failed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	if *jsonOut {
		return printJSON(plan)
	}
	fmt.Print(simulate.Format(plan))
	return exitOK
}

func printPlanHelp() {
	fmt.Println("Usage: jenkins2gha plan <Jenkinsfile> [--event push] [--ref refs/heads/main] [--input k=v]... [--env k=v]... [--fail JOB]... [--json]")
	fmt.Println("Evaluate each job's if: condition for an event. Nothing is executed.")
}

func runReview(g globals, args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		fmt.Println("Usage: jenkins2gha review <Jenkinsfile> [--event push] [--ref refs/heads/main]")
		fmt.Println()
		fmt.Println("Keybindings:")
		fmt.Println("  q, Ctrl+C        Quit")
		fmt.Println("  tab, shift+tab   Switch view")
		fmt.Println("  ↑/↓, k/j         Select row")
		fmt.Println("  space            Tick a manual item")
		return exitOK
	}
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	event := fs.String("event", "push", "GitHub event name for the plan view")
	ref := fs.String("ref", "refs/heads/main", "Git ref for the plan view")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: jenkins2gha review <Jenkinsfile>")
		return exitUsage
	}

	c, err := convertFile(g, positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	plan, err := simulate.Simulate(c.result.Workflow, simulate.Context{Event: *event, Ref: *ref})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	final, err := tui.Run(tui.Input{Report: c.report, Plan: plan, Files: c.files})
	if err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return exitError
	}
	pending := final.Pending()
	fmt.Printf("%d of %d manual items reviewed\n", len(final.Reviewed()), len(c.report.Manual))
	for _, item := range pending {
		fmt.Printf("  - [%s] %s\n", item.Stage, item.Item)
	}
	return exitOK
}
