package actions

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

// conditionExprs maps post conditions onto status-check functions. The
// target has no unstable outcome, so unstable runs on either result.
var conditionExprs = map[jenkins.PostCondition]string{
	jenkins.PostAlways:   "always()",
	jenkins.PostSuccess:  "success()",
	jenkins.PostFailure:  "failure()",
	jenkins.PostUnstable: "success() || failure()",
	jenkins.PostAborted:  "cancelled()",
	jenkins.PostCleanup:  "always()",
}

// ConditionExpr returns the if: expression for a post condition.
func ConditionExpr(c jenkins.PostCondition) string {
	if expr, ok := conditionExprs[c]; ok {
		return expr
	}
	return "always()"
}

// SecretRef returns the expression that yields the named secret in the
// current context: an action input inside a composite action, or the
// secrets context inside a workflow job.
type SecretRef func(secret, description string) string

// PostSteps renders a post action set. prefix names uploaded artifacts.
// Manual items are returned for effects with no direct mapping.
func PostSteps(prefix string, set jenkins.PostActionSet, ref SecretRef) ([]gha.Step, []string) {
	var (
		steps  []gha.Step
		manual []string
	)
	for _, clause := range set {
		cond := ConditionExpr(clause.Condition)
		archives := 0
		for _, effect := range clause.Effects {
			step, note := effectStep(prefix, clause.Condition, effect, ref, &archives)
			if note != "" {
				manual = append(manual, note)
			}
			if step == nil {
				continue
			}
			if step.If == "" {
				step.If = cond
			}
			steps = append(steps, *step)
		}
	}
	return steps, manual
}

func effectStep(prefix string, cond jenkins.PostCondition, effect jenkins.PostEffect, ref SecretRef, archives *int) (*gha.Step, string) {
	switch e := effect.(type) {
	case jenkins.ArchiveEffect:
		*archives++
		name := fmt.Sprintf("%s-%s-artifacts", prefix, cond)
		if *archives > 1 {
			name = fmt.Sprintf("%s-%d", name, *archives)
		}
		missing := "warn"
		if e.AllowEmpty {
			missing = "ignore"
		}
		step := &gha.Step{
			Name: "Archive artifacts",
			Uses: "actions/upload-artifact@v4",
			With: map[string]string{
				"name":              name,
				"path":              globList(e.Artifacts),
				"if-no-files-found": missing,
			},
			ContinueOnError: e.AllowEmpty,
		}
		if e.OnlyIfSuccessful {
			step.If = "success()"
		}
		return step, ""
	case jenkins.JUnitEffect:
		with := map[string]string{
			"name":     "JUnit Tests",
			"path":     globList(e.Results),
			"reporter": "java-junit",
		}
		if e.AllowEmpty {
			with["fail-on-empty"] = "false"
		}
		return &gha.Step{Name: "Publish test results", Uses: "dorny/test-reporter@v1", With: with}, ""
	case jenkins.CoverageEffect:
		return &gha.Step{
			Name: "Upload coverage",
			Uses: "codecov/codecov-action@v3",
			With: map[string]string{"files": e.Path},
		}, ""
	case jenkins.HTMLReportEffect:
		name := e.Name
		if name == "" {
			name = "html-report"
		}
		dir := e.Dir
		if dir == "" {
			dir = "."
		}
		return &gha.Step{
			Name: "Upload HTML report " + name,
			Uses: "actions/upload-artifact@v4",
			With: map[string]string{"name": jenkins.SanitizeName(name), "path": dir},
		}, "publishHTML: host the uploaded report (GitHub Pages or artifact link)"
	case jenkins.MailEffect:
		return &gha.Step{
			Name: "Send email notification",
			Uses: "dawidd6/action-send-mail@v3",
			With: map[string]string{
				"server_address": "smtp.gmail.com",
				"server_port":    "465",
				"username":       ref("EMAIL_USERNAME", "SMTP username for notifications"),
				"password":       ref("EMAIL_PASSWORD", "SMTP password for notifications"),
				"subject":        orDefault(e.Subject, "Pipeline "+string(cond)),
				"to":             e.To,
				"from":           "GitHub Actions",
				"body":           orDefault(e.Body, "Pipeline finished with status ${{ job.status }}"),
			},
		}, ""
	case jenkins.EmailExtEffect:
		return &gha.Step{
			Name:  "emailext (REQUIRES MANUAL CONVERSION)",
			Run:   limitationsScript("emailext notification", fmt.Sprintf("emailext to: %s, subject: %s", e.To, e.Subject)),
			Shell: "bash",
		}, "emailext: replace with an email notification action"
	case jenkins.SlackEffect:
		with := map[string]string{"status": "${{ job.status }}"}
		if e.Channel != "" {
			with["channel"] = e.Channel
		}
		if e.Message != "" {
			with["text"] = e.Message
		}
		return &gha.Step{
			Name: "Send Slack notification",
			Uses: "8398a7/action-slack@v3",
			With: with,
			Env:  map[string]string{"SLACK_WEBHOOK_URL": ref("SLACK_WEBHOOK_URL", "Slack incoming webhook URL")},
		}, ""
	case jenkins.CleanupEffect:
		return &gha.Step{Name: "Clean workspace", Run: `rm -rf "${{ github.workspace }}"/*`, Shell: "bash"}, ""
	case jenkins.CommandEffect:
		return &gha.Step{Name: "Post command", Run: RewriteCommand(e.Command), Shell: "bash"}, ""
	case jenkins.ScriptEffect:
		return &gha.Step{
			Name:  "Post script (REQUIRES MANUAL CONVERSION)",
			Run:   limitationsScript("post script block", snippetOf(e.Body, 200)),
			Shell: "bash",
		}, "post script block in " + string(cond)
	}
	return nil, ""
}

func globList(s string) string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func snippetOf(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
