package actions

import (
	"fmt"
	"regexp"
	"strings"
)

// builtinVars maps Jenkins environment variables to workflow expressions.
var builtinVars = map[string]string{
	"BUILD_NUMBER": "${{ github.run_number }}",
	"BUILD_ID":     "${{ github.run_id }}",
	"GIT_COMMIT":   "${{ github.sha }}",
	"BRANCH_NAME":  "${{ github.ref_name }}",
	"GIT_BRANCH":   "${{ github.ref_name }}",
	"WORKSPACE":    "${{ github.workspace }}",
	"JOB_NAME":     "${{ github.workflow }}",
	"BUILD_URL":    "${{ github.server_url }}/${{ github.repository }}/actions/runs/${{ github.run_id }}",
}

var (
	paramsRef = regexp.MustCompile(`\$\{params\.([A-Za-z_][A-Za-z0-9_]*)\}`)
	envRef    = regexp.MustCompile(`\$\{env\.([A-Za-z_][A-Za-z0-9_]*)\}`)
	varRef    = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// RewriteCommand rewrites Jenkins variable references in a shell command:
// parameters become workflow inputs, env.X becomes a shell variable and
// Jenkins built-ins become the equivalent github context values.
func RewriteCommand(cmd string) string {
	cmd = paramsRef.ReplaceAllStringFunc(cmd, func(m string) string {
		return "${{ github.event.inputs." + paramsRef.FindStringSubmatch(m)[1] + " }}"
	})
	cmd = envRef.ReplaceAllStringFunc(cmd, func(m string) string {
		return "${" + envRef.FindStringSubmatch(m)[1] + "}"
	})
	return varRef.ReplaceAllStringFunc(cmd, func(m string) string {
		name := strings.Trim(m, "${}")
		if expr, ok := builtinVars[name]; ok {
			return expr
		}
		return m
	})
}

// referencedVars returns which of names appear as $NAME or ${NAME} in cmd.
func referencedVars(cmd string, names []string) []string {
	var out []string
	for _, n := range names {
		re := regexp.MustCompile(fmt.Sprintf(`\$\{?(?:env\.)?%s\b`, regexp.QuoteMeta(n)))
		if re.MatchString(cmd) {
			out = append(out, n)
		}
	}
	return out
}

// limitationsScript renders a run script that documents a construct the
// converter could not translate.
func limitationsScript(feature, snippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# MANUAL CONVERSION REQUIRED: %s\n", feature)
	b.WriteString("# Original Jenkins code:\n")
	for _, line := range strings.Split(strings.TrimSpace(snippet), "\n") {
		b.WriteString("#   ")
		b.WriteString(strings.ReplaceAll(line, "${{", "$ {{"))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "echo \"::warning::Manual conversion required: %s\"", strings.ReplaceAll(feature, `"`, `'`))
	return b.String()
}
