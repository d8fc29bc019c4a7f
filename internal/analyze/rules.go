package analyze

import "regexp"

// Rule is one pattern with the message reported when it matches.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Message string
}

// Detector reports Name when any of its patterns matches.
type Detector struct {
	Name     string
	Patterns []*regexp.Regexp
}

// Rules is the immutable table set the analyzer runs. Callers pass it
// explicitly; DefaultRules returns a fresh copy each time.
type Rules struct {
	Blockers    []Rule
	Warnings    []Rule
	Unsupported []Rule
	Languages   []Detector
	Tools       []Detector
	Credentials []*regexp.Regexp
}

func rule(name, pattern, msg string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern), Message: msg}
}

func detector(name string, patterns ...string) Detector {
	d := Detector{Name: name}
	for _, p := range patterns {
		d.Patterns = append(d.Patterns, regexp.MustCompile("(?i)"+p))
	}
	return d
}

// DefaultRules returns the stock rule tables.
func DefaultRules() Rules {
	return Rules{
		Blockers: []Rule{
			rule("non-cps", `(?i)@NonCPS`, "Non-CPS functions require complete rewrite"),
			rule("global-vars-library", `(?i)@Library.*vars/`, "Global variable libraries need manual conversion"),
			rule("pipeline-properties", `(?i)properties\s*\([^)]*pipeline`, "Pipeline properties need workflow-level configuration"),
			rule("build-property-write", `(?i)currentBuild\.\w+\s*=[^=]`, "Build property modifications not directly supported"),
		},
		Warnings: []Rule{
			rule("build-job", `(?i)build\s+job\s*:`, "Triggering other Jenkins jobs requires workflow redesign"),
			rule("milestone", `(?i)milestone\s*\(`, "Milestone steps need GitHub deployment protection rules"),
			rule("input-parameters", `(?i)input\s*\([^)]*parameters`, "Complex input parameters may need simplification"),
			rule("long-timeout", `(?i)timeout\s*\([^)]*HOURS`, "Long timeouts may exceed GitHub Actions limits"),
			rule("publish-html", `(?i)publishHTML`, "HTML publishing requires GitHub Pages or artifact handling"),
		},
		Unsupported: []Rule{
			rule("Build triggers", `(?is)triggers\s*\{[^}]+\}`, "Configure GitHub webhook triggers or scheduled workflows manually"),
			rule("Options block", `(?is)options\s*\{[^}]+\}`, "Review Jenkins options and configure equivalent GitHub Actions settings"),
			rule("Libraries", `(?is)@Library\s*\([^)]+\)`, "Replace with GitHub Actions marketplace actions or custom scripts"),
			rule("Shared libraries", `(?is)\blibrary\s+['"][^'"]+['"]`, "Convert shared library functions to reusable composite actions"),
			rule("Matrix builds", `(?is)matrix\s*\{[^}]+\}`, "Use GitHub Actions matrix strategy in workflow file"),
			rule("When expressions (complex)", `(?is)when\s*\{\s*expression\s*\{[^}]+\}\s*\}`, "Simplify conditions or use GitHub Actions expressions"),
			rule("Pipeline functions", `(?is)pipeline\s*\.\s*\w+\s*\(`, "Replace with GitHub Actions workflow commands or API calls"),
			rule("Build parameters in steps", `(?is)build\s+job\s*:`, "Use workflow_call or repository_dispatch events"),
			rule("Parallel nested stages", `(?is)parallel\s*\{[^}]*stage[^}]*stage[^}]*\}`, "Flatten parallel structure or use job dependencies"),
			rule("Custom functions", `(?is)def\s+\w+\s*\([^)]*\)\s*\{`, "Convert to shell scripts or composite actions"),
			rule("Script blocks (complex)", `(?is)script\s*\{[^}]{100,}\}`, "Break down into smaller steps or external scripts"),
			rule("Node allocation", `(?is)\bnode\s*\([^)]+\)\s*\{`, "Use GitHub Actions job concurrency controls"),
			rule("Milestone steps", `(?is)milestone\s*\([^)]+\)`, "Use GitHub deployment environments and protection rules"),
			rule("Lock resources", `(?is)\block\s*\([^)]+\)`, "Use GitHub Actions concurrency groups"),
			rule("Timeout (complex)", `(?is)timeout\s*\([^)]+\)\s*\{[^}]+\}`, "Use GitHub Actions timeout-minutes at job or step level"),
			rule("Retry blocks", `(?is)retry\s*\([^)]+\)\s*\{`, "Use third-party retry actions or implement retry logic"),
			rule("Archive on failure only", `(?is)archiveArtifacts.*onlyIfSuccessful\s*:\s*false`, "Use conditional artifact upload with if: failure()"),
			rule("Custom workspace", `(?is)\bws\s*\([^)]+\)`, "Use GitHub Actions runner file system or custom actions"),
			rule("Jenkins CLI calls", `(?is)\bjenkins\s+['"][^'"]+['"]`, "Replace with GitHub API calls or GitHub CLI commands"),
			rule("Plugin-specific steps", `(?is)(publishHTML|publishTestResults|step\s*\[\s*\$class)`, "Find equivalent GitHub Actions marketplace actions"),
		},
		Languages: []Detector{
			detector("Java", `mvn\s+`, `\.jar\b`, `pom\.xml`, `jdk\s+`),
			detector("Python", `pip\s+`, `python\s+`, `\.py\b`, `requirements\.txt`),
			detector("Node.js", `npm\s+`, `yarn\s+`, `package\.json`, `node\s+`),
			detector("Go", `go\s+build`, `go\s+test`, `go\.mod`),
			detector("Docker", `docker\s+`, `Dockerfile`, `docker-compose`),
			detector("Kubernetes", `kubectl\s+`, `helm\s+`, `kubeconfig`),
			detector("Terraform", `terraform\s+`, `\.tf\b`),
			detector("Ansible", `ansible\s+`, `playbook`),
			detector("Shell", `sh\s+['"]`, `bash\s+`, `#!/bin/`),
		},
		Tools: []Detector{
			detector("SonarQube", `sonar:|withSonarQubeEnv`),
			detector("Docker", `docker\s+`),
			detector("Kubernetes", `kubectl|helm\s+`),
			detector("Maven", `mvn\s+`),
			detector("Gradle", `gradle\s+|gradlew`),
			detector("npm", `npm\s+`),
			detector("yarn", `yarn\s+`),
			detector("pip", `pip\s+`),
			detector("Git", `git\s+`),
			detector("SSH", `ssh\s+|sshagent`),
			detector("AWS CLI", `aws\s+`),
			detector("Azure CLI", `\baz\s+`),
			detector("Google Cloud", `gcloud\s+`),
			detector("Terraform", `terraform\s+`),
			detector("Ansible", `ansible`),
			detector("Cosign", `cosign\s+`),
			detector("Trivy", `trivy\s+`),
			detector("OWASP", `dependency-check`),
		},
		Credentials: []*regexp.Regexp{
			regexp.MustCompile(`(?i)credentials\s*\(\s*['"]([^'"]+)['"]\s*\)`),
			regexp.MustCompile(`(?i)credentialsId\s*:\s*['"]([^'"]+)['"]`),
			regexp.MustCompile(`(?i)sshagent\s*\(\s*(?:credentials\s*:\s*)?\[\s*['"]([^'"]+)['"]`),
		},
	}
}
