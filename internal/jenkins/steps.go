package jenkins

import (
	"regexp"
	"sort"
	"strings"
)

var structuredShell = regexp.MustCompile(`(?m)^\s*(if|for|while|until|case|function)\b|\bthen\s*$|\bdo\s*$|<<-?\s*['"]?\w+`)

// ExtractCommands returns the generic commands of sh and echo steps in
// source order. Scripts with shell control flow are kept whole; others
// are split one command per line. Steps whose argument is a Groovy
// expression are left to ExtractUnresolved.
func ExtractCommands(text string) []ShellCommand {
	var out []ShellCommand
	for _, c := range stepCalls(text) {
		arg, literal := stepArgument(c)
		if !literal || arg == "" {
			continue
		}
		switch c.Name {
		case "sh":
			if structuredShell.MatchString(arg) {
				out = append(out, ShellCommand{Text: dedent(arg), Offset: c.Start})
				continue
			}
			for _, cmd := range MultilineToCommands(arg) {
				out = append(out, ShellCommand{Text: cmd, Offset: c.Start})
			}
		case "echo":
			out = append(out, ShellCommand{Text: "echo " + shellQuote(arg), Offset: c.Start})
		}
	}
	return out
}

// ExtractUnresolved returns sh and echo steps whose argument is a Groovy
// expression (a variable, a concatenation, a method call). Their text is
// only known at build time.
func ExtractUnresolved(text string) []UnresolvedStep {
	var out []UnresolvedStep
	for _, c := range stepCalls(text) {
		if _, literal := stepArgument(c); literal {
			continue
		}
		out = append(out, UnresolvedStep{
			Step:   c.Name,
			Source: strings.Join(strings.Fields(text[c.Start:c.End]), " "),
			Offset: c.Start,
		})
	}
	return out
}

func stepCalls(text string) []Call {
	calls := append(FindCalls(text, "sh"), FindCalls(text, "echo")...)
	sortCalls(calls)
	return calls
}

// stepArgument returns the script of an sh step or the message of an echo
// step. literal is false when the argument is not a quoted string; echo
// also accepts number and boolean literals. A missing argument is an
// empty literal.
func stepArgument(c Call) (arg string, literal bool) {
	key := "script"
	if c.Name == "echo" {
		key = "message"
	}
	v, ok := c.Arg(key)
	if !ok {
		if len(c.Positional) == 0 {
			return "", true
		}
		v = c.Positional[0]
	}
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindNumber, KindBool:
		return v.Raw, c.Name == "echo"
	}
	return "", false
}

func shellQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`")
	return `"` + r.Replace(s) + `"`
}

func dedent(script string) string {
	lines := strings.Split(strings.Trim(script, "\n"), "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, l := range lines {
		if len(l) >= indent && indent > 0 {
			lines[i] = l[indent:]
		}
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var (
	scmBranch = regexp.MustCompile(`name\s*:\s*['"]([^'"]+)['"]`)
	scmURL    = regexp.MustCompile(`url\s*:\s*['"]([^'"]+)['"]`)
	scmCred   = regexp.MustCompile(`credentialsId\s*:\s*['"]([^'"]+)['"]`)
)

// ExtractGit returns source-control operations: checkout scm, checkout
// with a GitSCM map, git steps in both shapes and git clone commands.
func ExtractGit(text string) []GitStep {
	type at struct {
		off  int
		step GitStep
	}
	var found []at
	for _, c := range FindCalls(text, "checkout") {
		if len(c.Positional) == 0 {
			continue
		}
		raw := c.Positional[0].Raw
		if strings.TrimSpace(raw) == "scm" {
			found = append(found, at{c.Start, GitStep{Kind: GitSCM}})
			continue
		}
		if strings.Contains(raw, "GitSCM") {
			step := GitStep{Kind: GitSCM}
			if m := scmURL.FindStringSubmatch(raw); m != nil {
				step.Kind, step.URL = GitStandard, m[1]
			}
			if m := scmBranch.FindStringSubmatch(raw); m != nil {
				step.Branch = strings.TrimPrefix(m[1], "*/")
			}
			if m := scmCred.FindStringSubmatch(raw); m != nil {
				step.CredentialsID = m[1]
			}
			found = append(found, at{c.Start, step})
		}
	}
	for _, c := range FindCalls(text, "git") {
		url := c.StrOrFirst("url")
		if url == "" {
			continue
		}
		found = append(found, at{c.Start, GitStep{
			Kind:          GitStandard,
			URL:           url,
			Branch:        c.Str("branch"),
			CredentialsID: c.Str("credentialsId"),
		}})
	}
	for _, cmd := range ExtractCommands(text) {
		if step, ok := parseGitClone(cmd.Text); ok {
			found = append(found, at{cmd.Offset, step})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].off < found[j].off })
	out := make([]GitStep, 0, len(found))
	for _, f := range found {
		out = append(out, f.step)
	}
	return out
}

func parseGitClone(cmd string) (GitStep, bool) {
	for _, inv := range Invocations(cmd) {
		if inv.Program == "git" && len(inv.Args) > 0 && inv.Args[0] == "clone" {
			return gitCloneStep(inv.Args)
		}
	}
	return GitStep{}, false
}

func gitCloneStep(args []string) (GitStep, bool) {
	step := GitStep{Kind: GitClone}
	var positional []string
	for i := 1; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-b" || a == "--branch":
			if i+1 < len(args) {
				step.Branch = args[i+1]
				i++
			}
		case strings.HasPrefix(a, "--branch="):
			step.Branch = strings.TrimPrefix(a, "--branch=")
		case a == "--depth" || a == "-o" || a == "--origin":
			i++
		case strings.HasPrefix(a, "-"):
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) == 0 {
		return GitStep{}, false
	}
	step.URL = positional[0]
	if len(positional) > 1 {
		step.Dir = positional[1]
	}
	return step, true
}

// IsGitClone reports whether cmd is a git clone command.
func IsGitClone(cmd string) bool {
	_, ok := parseGitClone(cmd)
	return ok
}

var dockerValueFlags = map[string]bool{
	"-t": true, "--tag": true, "-f": true, "--file": true, "--build-arg": true,
	"--platform": true, "--target": true, "--label": true, "--network": true,
	"--cache-from": true, "--secret": true, "--ssh": true, "--progress": true,
	"-o": true, "--output": true, "-u": true, "--username": true, "-p": true,
	"--password": true,
}

// ParseDockerCommand recognises docker build, push and login commands.
// The first docker invocation of a compound line decides; the step keeps
// the whole line as its command.
func ParseDockerCommand(cmd string) (DockerStep, bool) {
	for _, inv := range Invocations(cmd) {
		if inv.Program != "docker" || len(inv.Args) == 0 {
			continue
		}
		if step, ok := dockerStep(cmd, inv.Args); ok {
			return step, true
		}
	}
	return DockerStep{}, false
}

func dockerStep(cmd string, args []string) (DockerStep, bool) {
	sub := args[0]
	args = args[1:]
	if sub == "image" && len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	step := DockerStep{Command: cmd}
	switch sub {
	case "build", "buildx":
		if sub == "buildx" {
			if len(args) == 0 || args[0] != "build" {
				return DockerStep{}, false
			}
			args = args[1:]
		}
		step.Kind = DockerBuild
	case "push":
		step.Kind = DockerPush
	case "login":
		step.Kind = DockerLogin
	default:
		return DockerStep{}, false
	}
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name, val, hasInline := strings.Cut(a, "=")
		switch {
		case strings.HasPrefix(a, "-") && dockerValueFlags[name]:
			if !hasInline && i+1 < len(args) {
				val = args[i+1]
				i++
			}
			switch name {
			case "-t", "--tag":
				if step.Image == "" {
					step.Image = val
				}
			case "-f", "--file":
				step.Dockerfile = val
			}
		case strings.HasPrefix(a, "-"):
		default:
			positional = append(positional, a)
		}
	}
	switch step.Kind {
	case DockerBuild:
		step.Context = "."
		if n := len(positional); n > 0 {
			step.Context = positional[n-1]
		}
	case DockerPush:
		if len(positional) > 0 {
			step.Image = positional[0]
		}
	case DockerLogin:
		if len(positional) > 0 {
			step.Registry = positional[len(positional)-1]
		}
	}
	return step, true
}

var imagePush = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\.push\s*\(\s*(?:['"]([^'"]*)['"])?\s*\)`)

// ExtractDocker returns container operations from shell commands and the
// docker global variable (docker.build, docker.withRegistry, image.push).
func ExtractDocker(text string) []DockerStep {
	var out []DockerStep
	for _, cmd := range ExtractCommands(text) {
		if step, ok := ParseDockerCommand(cmd.Text); ok {
			step.Offset = cmd.Offset
			out = append(out, step)
		}
	}
	lastImage := ""
	for _, c := range FindCalls(text, "docker.build") {
		if len(c.Positional) == 0 {
			continue
		}
		step := DockerStep{Kind: DockerBuild, Image: c.Positional[0].Str, Context: ".", Offset: c.Start}
		if len(c.Positional) > 1 {
			fields := shellWords(c.Positional[1].Str)
			if len(fields) > 0 {
				step.Context = fields[len(fields)-1]
			}
		}
		lastImage = step.Image
		out = append(out, step)
	}
	for _, c := range FindCalls(text, "docker.withRegistry") {
		step := DockerStep{Kind: DockerLogin, Offset: c.Start}
		if len(c.Positional) > 0 {
			step.Registry = c.Positional[0].Str
		}
		if len(c.Positional) > 1 {
			step.CredentialsID = c.Positional[1].Str
		}
		out = append(out, step)
	}
	for _, m := range imagePush.FindAllStringSubmatchIndex(text, -1) {
		image := lastImage
		if m[2] >= 0 && text[m[2]:m[3]] != "" {
			base, _, _ := strings.Cut(image, ":")
			image = base + ":" + text[m[2]:m[3]]
		}
		out = append(out, DockerStep{Kind: DockerPush, Image: image, Offset: m[0]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// ExtractDeploy returns kubectl and helm commands.
func ExtractDeploy(text string) []DeployCommand {
	var out []DeployCommand
	for _, cmd := range ExtractCommands(text) {
		if tool, ok := InvokesAny(cmd.Text, "kubectl", "helm"); ok {
			out = append(out, DeployCommand{Tool: tool, Command: cmd.Text, Offset: cmd.Offset})
		}
	}
	return out
}

// IsDeployCommand reports whether any part of cmd invokes kubectl or helm.
func IsDeployCommand(cmd string) bool {
	_, ok := InvokesAny(cmd, "kubectl", "helm")
	return ok
}

var (
	sonarKey  = regexp.MustCompile(`-Dsonar\.projectKey=(\S+)`)
	sonarName = regexp.MustCompile(`-Dsonar\.projectName=(\S+)`)
)

// IsSonarCommand reports whether cmd runs a SonarQube analysis.
func IsSonarCommand(cmd string) bool {
	return strings.Contains(strings.ToLower(cmd), "sonar")
}

// ExtractSonar returns quality-scan operations: withSonarQubeEnv scopes
// and standalone commands that invoke a sonar scanner.
func ExtractSonar(text string) []SonarStep {
	var out []SonarStep
	var scopes []Span
	for _, c := range FindCalls(text, "withSonarQubeEnv") {
		if c.Body == nil {
			continue
		}
		step := SonarStep{Server: c.StrOrFirst("installationName"), Scope: *c.Body}
		for _, cmd := range ExtractCommands(keepOnly(text, *c.Body)) {
			step.Commands = append(step.Commands, cmd.Text)
		}
		scopes = append(scopes, *c.Body)
		out = append(out, step)
	}
	for _, cmd := range ExtractCommands(text) {
		if !IsSonarCommand(cmd.Text) || inAny(cmd.Offset, scopes) {
			continue
		}
		out = append(out, SonarStep{Commands: []string{cmd.Text}, Scope: Span{Start: cmd.Offset, End: cmd.Offset + 1}})
	}
	for i := range out {
		for _, cmd := range out[i].Commands {
			if m := sonarKey.FindStringSubmatch(cmd); m != nil && out[i].ProjectKey == "" {
				out[i].ProjectKey = strings.Trim(m[1], `'"`)
			}
			if m := sonarName.FindStringSubmatch(cmd); m != nil && out[i].ProjectName == "" {
				out[i].ProjectName = strings.Trim(m[1], `'"`)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Scope.Start < out[j].Scope.Start })
	return out
}

func inAny(off int, spans []Span) bool {
	for _, s := range spans {
		if s.Contains(off) {
			return true
		}
	}
	return false
}

var (
	groovyIdioms   = regexp.MustCompile(`\.(each|collect|findAll|find|inject|eachWithIndex)\s*\{`)
	jenkinsAPI     = regexp.MustCompile(`\b(currentBuild|env|params)\.`)
	groovyBranches = regexp.MustCompile(`\b(if|switch)\s*\(`)
	groovyLoops    = regexp.MustCompile(`\b(for|while)\s*\(|\.each\s*\{`)
)

// ExtractScripts returns every script { ... } body with its heuristics.
func ExtractScripts(text string) []ScriptBlock {
	var out []ScriptBlock
	for _, c := range FindCalls(text, "script") {
		if c.Body == nil || len(c.Named) > 0 || len(c.Positional) > 0 {
			continue
		}
		out = append(out, AnalyzeScript(c.Body.Text(text)))
	}
	return out
}

// manualScripts returns the spans of script blocks that already require
// manual conversion as a whole.
func manualScripts(text string) []Span {
	var out []Span
	for _, c := range FindCalls(text, "script") {
		if c.Body == nil || len(c.Named) > 0 || len(c.Positional) > 0 {
			continue
		}
		if AnalyzeScript(c.Body.Text(text)).RequiresManualConversion() {
			out = append(out, c.Outer())
		}
	}
	return out
}

// AnalyzeScript computes the complexity heuristics of a script body.
func AnalyzeScript(body string) ScriptBlock {
	lines := 0
	for _, l := range strings.Split(body, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	return ScriptBlock{
		Body:            dedent(body),
		Lines:           lines,
		GroovySpecific:  groovyIdioms.MatchString(body),
		UsesJenkinsAPI:  jenkinsAPI.MatchString(body),
		HasConditionals: groovyBranches.MatchString(body),
		HasLoops:        groovyLoops.MatchString(body),
	}
}

// pluginSteps lists plugin-provided steps with no automatic mapping. A
// step marked block only counts when it wraps a body.
var pluginSteps = []struct {
	name  string
	label string
	block bool
	arg   string
}{
	{name: "publishHTML", label: "publishHTML"},
	{name: "publishTestResults", label: "publishTestResults"},
	{name: "step", label: "step", arg: "$class"},
	{name: "build", label: "build job", arg: "job"},
	{name: "emailext", label: "emailext"},
	{name: "slackSend", label: "slackSend"},
	{name: "milestone", label: "milestone"},
	{name: "timeout", label: "timeout", block: true},
	{name: "retry", label: "retry", block: true},
	{name: "lock", label: "lock", block: true},
	{name: "ws", label: "ws", block: true},
	{name: "node", label: "node", block: true},
	{name: "waitForQualityGate", label: "waitForQualityGate"},
	{name: "readProperties", label: "readProperties"},
}

// ExtractPlugins returns plugin calls in source order.
func ExtractPlugins(text string) []PluginCall {
	var out []PluginCall
	for _, p := range pluginSteps {
		for _, c := range FindCalls(text, p.name) {
			if p.block && c.Body == nil {
				continue
			}
			if p.arg != "" && !hasArg(c, p.arg) {
				continue
			}
			if p.name == "step" && len(c.Positional) > 0 {
				// step([$class: 'X']) carries the map as a list literal.
				if !strings.Contains(c.Positional[0].Raw, "$class") {
					continue
				}
			}
			out = append(out, PluginCall{Plugin: p.label, Snippet: snippet(text[c.Start:c.End], 100), Offset: c.Start})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func hasArg(c Call, name string) bool {
	if _, ok := c.Named[name]; ok {
		return true
	}
	for _, p := range c.Positional {
		if strings.Contains(p.Raw, name) {
			return true
		}
	}
	return false
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
