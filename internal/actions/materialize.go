// Package actions builds the composite action for one pipeline stage.
package actions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
	"github.com/mattjoyce/jenkins2gha/internal/secrets"
)

// Result is one materialized stage: the action plus the metadata the
// workflow job and the conversion report need.
type Result struct {
	Action *gha.Action
	// With feeds secret-backed inputs from the workflow's secrets context.
	With            map[string]string
	RequiredSecrets []string
	Manual          []string
	Plugins         []string
	Complexity      int
	HasDocker       bool
	HasKubectl      bool
	HasSonar        bool
	HasPost         bool
}

// Materialize builds the composite action for the stage identified by id.
// globalTools are set up ahead of the stage's own tools; a stage tool
// replaces a global tool of the same kind.
func Materialize(id, name string, f jenkins.Features, globalTools []jenkins.Tool) *Result {
	b := &builder{
		f:     f,
		seen:  map[string]bool{},
		bound: map[string]string{},
		files: map[string]bool{},
	}
	b.declareInputs()

	tools := append(append([]jenkins.Tool{}, globalTools...), f.Tools...)
	b.steps = append(b.steps, ToolSteps(tools)...)
	b.gitSteps()
	b.credentialSteps()
	b.sonarSteps()
	b.dockerSteps()
	b.genericSteps()
	b.unresolvedSteps()
	b.deploySteps()
	b.scriptSteps()
	b.pluginSteps()

	post, manual := PostSteps(id, f.Post, b.secretRef)
	b.steps = append(b.steps, post...)
	b.manual = append(b.manual, manual...)

	if len(b.steps) == 0 {
		b.steps = append(b.steps, gha.Bash("No-op", fmt.Sprintf("echo %q", "Stage "+name+" has no convertible steps")))
	}

	res := &Result{
		Action: &gha.Action{
			Name:        name + " Action",
			Description: "Composite action for the " + name + " stage",
			Inputs:      b.inputs,
			Steps:       b.steps,
		},
		With:       map[string]string{},
		Manual:     b.manual,
		Plugins:    b.plugins,
		Complexity: Complexity(f),
		HasDocker:  len(f.Docker) > 0,
		HasKubectl: len(f.Deploy) > 0,
		HasSonar:   len(f.Sonar) > 0,
		HasPost:    len(f.Post) > 0,
	}
	for _, in := range b.inputs {
		if in.Secret == "" {
			continue
		}
		res.With[in.Name] = "${{ secrets." + in.Secret + " }}"
		res.RequiredSecrets = appendOnce(res.RequiredSecrets, in.Secret)
	}
	return res
}

// Complexity scores how much work a stage needs to migrate.
func Complexity(f jenkins.Features) int {
	score := len(f.Commands)
	score += 2 * len(f.Credentials)
	score += 3 * (len(f.Docker) + len(f.Deploy))
	score += 4 * (len(f.Sonar) + len(f.Plugins))
	for _, s := range f.Scripts {
		if s.RequiresManualConversion() {
			score += 5
		} else {
			score += 2
		}
	}
	score += 2 * len(f.Post)
	return score
}

type builder struct {
	f       jenkins.Features
	inputs  []gha.Input
	seen    map[string]bool
	bound   map[string]string // bound variable -> input name
	files   map[string]bool   // bound variables exported as file paths
	steps   []gha.Step
	manual  []string
	plugins []string
}

func (b *builder) declare(in gha.Input) string {
	if !b.seen[in.Name] {
		b.seen[in.Name] = true
		b.inputs = append(b.inputs, in)
	}
	return in.Name
}

// secretRef declares an input fed from secret and returns its expression.
func (b *builder) secretRef(secret, description string) string {
	name := b.declare(gha.Input{
		Name:        secrets.InputName(secret),
		Description: description,
		Secret:      secret,
		Source:      "secret",
	})
	return inputExpr(name)
}

func (b *builder) declareInputs() {
	f := b.f
	for _, c := range f.Credentials {
		desc := fmt.Sprintf("%s: %s", secrets.Classify(c.SourceID), secrets.Purpose(c.SourceID))
		if c.Kind == jenkins.CredUsernamePassword {
			user, pass := secrets.PairNames(c.SourceID)
			u := b.declare(gha.Input{Name: secrets.InputName(user), Description: "Username for " + c.SourceID, Secret: user, Source: c.SourceID})
			p := b.declare(gha.Input{Name: secrets.InputName(pass), Description: "Password for " + c.SourceID, Secret: pass, Source: c.SourceID})
			if len(c.BoundNames) > 0 {
				b.bound[c.BoundNames[0]] = u
			}
			if len(c.BoundNames) > 1 {
				b.bound[c.BoundNames[1]] = p
			}
			continue
		}
		target := secrets.TargetName(c.SourceID)
		in := b.declare(gha.Input{Name: secrets.InputName(target), Description: desc, Secret: target, Source: c.SourceID})
		switch c.Kind {
		case jenkins.CredFile, jenkins.CredSSHKey:
			if len(c.BoundNames) > 0 {
				b.bound[c.BoundNames[0]] = in
				b.files[c.BoundNames[0]] = true
			}
		default:
			for _, n := range c.BoundNames {
				b.bound[n] = in
			}
		}
	}

	if len(f.Docker) > 0 {
		b.declare(gha.Input{Name: "registry", Description: "Container registry", Default: gha.Ptr(registryOf(f.Docker))})
		b.declare(gha.Input{Name: "image-name", Description: "Image name", Default: gha.Ptr("${{ github.repository }}")})
		b.declare(gha.Input{Name: "build-tag", Description: "Image tag", Default: gha.Ptr("${{ github.sha }}")})
		if needsLogin(f.Docker) && !hasPairCredential(f.Credentials) {
			b.declare(gha.Input{Name: "docker-username", Description: "Registry username", Secret: "DOCKER_USERNAME", Source: "secret"})
			b.declare(gha.Input{Name: "docker-password", Description: "Registry password", Secret: "DOCKER_PASSWORD", Source: "secret"})
		}
	}
	if len(f.Sonar) > 0 {
		b.declare(gha.Input{Name: "sonar-token", Description: "SonarQube token", Secret: "SONAR_TOKEN", Source: "secret"})
		b.declare(gha.Input{Name: "sonar-host-url", Description: "SonarQube server URL", Secret: "SONAR_HOST_URL", Source: "secret"})
	}
	for _, e := range f.Env {
		if e.Credential != "" {
			continue
		}
		b.declare(gha.Input{
			Name:        secrets.InputName(e.Key),
			Description: "Environment variable " + e.Key,
			Default:     gha.Ptr(e.Value),
			Source:      "env",
		})
	}
}

var githubRepo = regexp.MustCompile(`github\.com[:/]([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

func (b *builder) gitSteps() {
	for _, g := range b.f.Git {
		if g.Kind == jenkins.GitSCM {
			continue
		}
		m := githubRepo.FindStringSubmatch(g.URL)
		if m == nil {
			args := []string{"git", "clone"}
			if g.Branch != "" {
				args = append(args, "--branch", g.Branch)
			}
			args = append(args, g.URL)
			if g.Dir != "" {
				args = append(args, g.Dir)
			}
			b.steps = append(b.steps, gha.Bash("Clone "+g.URL, strings.Join(args, " ")))
			continue
		}
		with := map[string]string{"repository": m[1] + "/" + m[2]}
		if g.Branch != "" {
			with["ref"] = g.Branch
		}
		if g.Dir != "" {
			with["path"] = g.Dir
		}
		if g.CredentialsID != "" {
			in := secrets.InputName(secrets.TargetName(g.CredentialsID))
			with["token"] = "${{ inputs." + in + " || github.token }}"
		}
		b.steps = append(b.steps, gha.Step{Name: "Checkout " + with["repository"], Uses: "actions/checkout@v4", With: with})
	}
}

func (b *builder) credentialSteps() {
	for _, c := range b.f.Credentials {
		if (c.Kind != jenkins.CredFile && c.Kind != jenkins.CredSSHKey) || len(c.BoundNames) == 0 {
			continue
		}
		v := c.BoundNames[0]
		in := b.bound[v]
		path := `"$RUNNER_TEMP/` + in + `"`
		script := strings.Join([]string{
			`printf '%s\n' "$CREDENTIAL_CONTENT" > ` + path,
			"chmod 600 " + path,
			`echo "` + v + `=$RUNNER_TEMP/` + in + `" >> "$GITHUB_ENV"`,
		}, "\n")
		step := gha.Bash("Stage credential "+c.SourceID, script)
		step.Env = map[string]string{"CREDENTIAL_CONTENT": inputExpr(in)}
		step.If = nonEmpty(in)
		b.steps = append(b.steps, step)
	}

	ex := b.exclusion()
	for i, blk := range b.f.CredentialBlocks {
		var cmds []string
		env := map[string]string{}
		var gates []string
		for _, cmd := range blk.Commands {
			if _, skip := ex.match(cmd, false); skip {
				continue
			}
			cmds = append(cmds, RewriteCommand(cmd.Text))
		}
		if len(cmds) == 0 {
			continue
		}
		for _, binding := range blk.Bindings {
			for _, n := range binding.BoundNames {
				in, ok := b.bound[n]
				if !ok {
					continue
				}
				if !b.files[n] {
					env[n] = inputExpr(in)
				}
				gates = appendOnce(gates, nonEmpty(in))
			}
		}
		step := gha.Bash(fmt.Sprintf("Run with credentials %d", i+1), strings.Join(cmds, "\n"))
		if len(env) > 0 {
			step.Env = env
		}
		step.If = strings.Join(gates, " && ")
		b.steps = append(b.steps, step)
	}
}

func (b *builder) sonarSteps() {
	env := map[string]string{
		"SONAR_TOKEN":    inputExpr("sonar-token"),
		"SONAR_HOST_URL": inputExpr("sonar-host-url"),
	}
	for i, s := range b.f.Sonar {
		name := "SonarQube analysis"
		if len(b.f.Sonar) > 1 {
			name = fmt.Sprintf("SonarQube analysis %d", i+1)
		}
		if len(s.Commands) == 0 {
			step := gha.Step{Name: name, Uses: "SonarSource/sonarqube-scan-action@v2", Env: env}
			if s.ProjectKey != "" {
				step.With = map[string]string{"args": "-Dsonar.projectKey=" + s.ProjectKey}
			}
			b.steps = append(b.steps, step)
			continue
		}
		cmds := make([]string, 0, len(s.Commands))
		for _, c := range s.Commands {
			cmds = append(cmds, RewriteCommand(c))
		}
		step := gha.Bash(name, strings.Join(cmds, "\n"))
		step.Env = env
		step.If = nonEmpty("sonar-token")
		b.steps = append(b.steps, step)
	}
}

func (b *builder) dockerSteps() {
	docker := b.f.Docker
	if len(docker) == 0 {
		return
	}
	if needsLogin(docker) {
		user, pass := b.registryAuth()
		b.steps = append(b.steps, gha.Step{
			Name: "Log in to container registry",
			If:   nonEmpty(user),
			Uses: "docker/login-action@v3",
			With: map[string]string{
				"registry": inputExpr("registry"),
				"username": inputExpr(user),
				"password": inputExpr(pass),
			},
		})
	}
	defaultImage := "${{ inputs.registry }}/${{ inputs.image-name }}:${{ inputs.build-tag }}"
	builds, pushes := 0, 0
	for _, d := range docker {
		var step gha.Step
		switch d.Kind {
		case jenkins.DockerBuild:
			builds++
			run := d.Command
			if run == "" {
				image := d.Image
				if image == "" {
					image = defaultImage
				}
				args := []string{"docker", "build", "-t", `"` + image + `"`}
				if d.Dockerfile != "" {
					args = append(args, "-f", d.Dockerfile)
				}
				run = strings.Join(append(args, d.Context), " ")
			}
			step = gha.Bash(fmt.Sprintf("Build Docker image %d", builds), RewriteCommand(run))
		case jenkins.DockerPush:
			pushes++
			run := d.Command
			if run == "" {
				image := d.Image
				if image == "" {
					image = defaultImage
				}
				run = `docker push "` + image + `"`
			}
			step = gha.Bash(fmt.Sprintf("Push Docker image %d", pushes), RewriteCommand(run))
		default:
			continue
		}
		b.withCommandEnv(&step, d.Command)
		b.steps = append(b.steps, step)
	}
}

// registryAuth picks the input pair used by the registry login: the pair
// bound to a withRegistry credential, the stage's first username/password
// credential, or the generic docker inputs.
func (b *builder) registryAuth() (string, string) {
	for _, d := range b.f.Docker {
		if d.Kind == jenkins.DockerLogin && d.CredentialsID != "" {
			u, p := secrets.PairNames(d.CredentialsID)
			return secrets.InputName(u), secrets.InputName(p)
		}
	}
	for _, c := range b.f.Credentials {
		if c.Kind == jenkins.CredUsernamePassword {
			u, p := secrets.PairNames(c.SourceID)
			return secrets.InputName(u), secrets.InputName(p)
		}
	}
	return "docker-username", "docker-password"
}

func (b *builder) genericSteps() {
	ex := b.exclusion()
	n := 0
	for _, cmd := range b.f.Commands {
		if _, skip := ex.match(cmd, true); skip {
			continue
		}
		n++
		step := gha.Bash(fmt.Sprintf("Run command %d", n), RewriteCommand(cmd.Text))
		b.withCommandEnv(&step, cmd.Text)
		b.steps = append(b.steps, step)
	}
}

// unresolvedSteps keeps a placeholder where an sh or echo argument is only
// known at build time.
func (b *builder) unresolvedSteps() {
	for i, u := range b.f.Unresolved {
		b.steps = append(b.steps, gha.Bash(
			fmt.Sprintf("Dynamic %s step %d (REQUIRES MANUAL CONVERSION)", u.Step, i+1),
			limitationsScript(u.Step+" with a Groovy expression argument", u.Source),
		))
		b.manual = append(b.manual, fmt.Sprintf("%s argument is a Groovy expression: %s", u.Step, u.Source))
	}
}

func (b *builder) deploySteps() {
	for i, d := range b.f.Deploy {
		step := gha.Bash(fmt.Sprintf("Run Kubernetes command %d", i+1), RewriteCommand(d.Command))
		b.withCommandEnv(&step, d.Command)
		b.steps = append(b.steps, step)
	}
}

func (b *builder) scriptSteps() {
	n := 0
	for _, s := range b.f.Scripts {
		if !s.RequiresManualConversion() {
			continue
		}
		n++
		var reasons []string
		if s.GroovySpecific {
			reasons = append(reasons, "Groovy closures")
		}
		if s.UsesJenkinsAPI {
			reasons = append(reasons, "Jenkins runtime API")
		}
		if s.Lines > 10 {
			reasons = append(reasons, fmt.Sprintf("%d lines", s.Lines))
		}
		b.steps = append(b.steps, gha.Bash(
			fmt.Sprintf("Script block %d (REQUIRES MANUAL CONVERSION)", n),
			limitationsScript("script block", snippetOf(s.Body, 300)),
		))
		b.manual = append(b.manual, fmt.Sprintf("Script block %d: %s", n, strings.Join(reasons, ", ")))
	}
}

func (b *builder) pluginSteps() {
	for _, p := range b.f.Plugins {
		b.steps = append(b.steps, gha.Bash(p.Plugin+" (REQUIRES MANUAL CONVERSION)", limitationsScript(p.Plugin, p.Snippet)))
		b.manual = append(b.manual, p.Plugin+": no automatic equivalent")
		b.plugins = appendOnce(b.plugins, p.Plugin)
	}
}

// withCommandEnv binds the stage env inputs and credential variables a
// command references, gating the step on any secret it needs.
func (b *builder) withCommandEnv(step *gha.Step, cmd string) {
	if cmd == "" {
		return
	}
	env := map[string]string{}
	var gates []string
	for _, e := range b.f.Env {
		if e.Credential != "" {
			continue
		}
		if len(referencedVars(cmd, []string{e.Key})) > 0 {
			env[e.Key] = inputExpr(secrets.InputName(e.Key))
		}
	}
	names := make([]string, 0, len(b.bound))
	for _, c := range b.f.Credentials {
		names = append(names, c.BoundNames...)
	}
	for _, v := range referencedVars(cmd, names) {
		in, ok := b.bound[v]
		if !ok {
			continue
		}
		if !b.files[v] {
			env[v] = inputExpr(in)
		}
		gates = appendOnce(gates, nonEmpty(in))
	}
	if len(env) > 0 {
		step.Env = env
	}
	step.If = strings.Join(gates, " && ")
}

func (b *builder) exclusion() exclusion {
	ex := exclusion{fired: map[category]bool{
		catSourceControl: len(b.f.Git) > 0,
		catQualityScan:   len(b.f.Sonar) > 0,
		catContainer:     len(b.f.Docker) > 0,
		catOrchestration: len(b.f.Deploy) > 0,
	}}
	for _, s := range b.f.Sonar {
		ex.sonarScopes = append(ex.sonarScopes, s.Scope)
	}
	for _, blk := range b.f.CredentialBlocks {
		ex.credScopes = append(ex.credScopes, blk.Body)
	}
	return ex
}

func inputExpr(name string) string { return "${{ inputs." + name + " }}" }

func nonEmpty(name string) string { return "inputs." + name + " != ''" }

func needsLogin(docker []jenkins.DockerStep) bool {
	for _, d := range docker {
		if d.Kind == jenkins.DockerPush || d.Kind == jenkins.DockerLogin {
			return true
		}
	}
	return false
}

func registryOf(docker []jenkins.DockerStep) string {
	for _, d := range docker {
		if d.Kind == jenkins.DockerLogin && d.Registry != "" {
			r := strings.TrimPrefix(strings.TrimPrefix(d.Registry, "https://"), "http://")
			return strings.TrimSuffix(r, "/")
		}
	}
	return "docker.io"
}

func hasPairCredential(creds []jenkins.CredentialBinding) bool {
	for _, c := range creds {
		if c.Kind == jenkins.CredUsernamePassword {
			return true
		}
	}
	return false
}

func appendOnce(dst []string, v string) []string {
	for _, d := range dst {
		if d == v {
			return dst
		}
	}
	return append(dst, v)
}
