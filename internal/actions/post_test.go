package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

func workflowSecret(secret, _ string) string { return "${{ secrets." + secret + " }}" }

func TestArchiveConditions(t *testing.T) {
	t.Parallel()
	set := jenkins.PostActionSet{
		{Condition: jenkins.PostAlways, Effects: []jenkins.PostEffect{jenkins.ArchiveEffect{Artifacts: "target/*.jar"}}},
		{Condition: jenkins.PostUnstable, Effects: []jenkins.PostEffect{jenkins.ArchiveEffect{Artifacts: "logs/**"}}},
	}

	steps, manual := PostSteps("build", set, workflowSecret)

	require.Len(t, steps, 2)
	assert.Empty(t, manual)
	assert.Equal(t, "always()", steps[0].If)
	assert.Equal(t, "build-always-artifacts", steps[0].With["name"])
	assert.Equal(t, "success() || failure()", steps[1].If)
	assert.Equal(t, "actions/upload-artifact@v4", steps[1].Uses)
}

func TestConditionExpr(t *testing.T) {
	t.Parallel()
	cases := map[jenkins.PostCondition]string{
		jenkins.PostAlways:   "always()",
		jenkins.PostSuccess:  "success()",
		jenkins.PostFailure:  "failure()",
		jenkins.PostUnstable: "success() || failure()",
		jenkins.PostAborted:  "cancelled()",
		jenkins.PostCleanup:  "always()",
	}
	for cond, want := range cases {
		assert.Equal(t, want, ConditionExpr(cond), string(cond))
	}
}

func TestArchiveOptions(t *testing.T) {
	t.Parallel()
	set := jenkins.PostActionSet{{
		Condition: jenkins.PostSuccess,
		Effects: []jenkins.PostEffect{
			jenkins.ArchiveEffect{Artifacts: "a.txt, b/*.log", AllowEmpty: true},
			jenkins.ArchiveEffect{Artifacts: "c.zip", OnlyIfSuccessful: true},
		},
	}}

	steps, _ := PostSteps("pkg", set, workflowSecret)

	require.Len(t, steps, 2)
	assert.Equal(t, "a.txt\nb/*.log", steps[0].With["path"])
	assert.Equal(t, "ignore", steps[0].With["if-no-files-found"])
	assert.True(t, steps[0].ContinueOnError)
	assert.Equal(t, "pkg-success-artifacts-2", steps[1].With["name"])
	assert.Equal(t, "success()", steps[1].If)
}

func TestNotificationsUseSecretRef(t *testing.T) {
	t.Parallel()
	set := jenkins.PostActionSet{{
		Condition: jenkins.PostFailure,
		Effects: []jenkins.PostEffect{
			jenkins.MailEffect{To: "team@example.com", Subject: "Broken"},
			jenkins.SlackEffect{Channel: "#ci", Message: "Build failed"},
			jenkins.EmailExtEffect{To: "ops@example.com"},
		},
	}}

	steps, manual := PostSteps("x", set, workflowSecret)

	require.Len(t, steps, 3)
	assert.Equal(t, "${{ secrets.EMAIL_PASSWORD }}", steps[0].With["password"])
	assert.Equal(t, "${{ secrets.SLACK_WEBHOOK_URL }}", steps[1].Env["SLACK_WEBHOOK_URL"])
	assert.Equal(t, "#ci", steps[1].With["channel"])
	assert.Contains(t, steps[2].Run, "::warning::")
	assert.Len(t, manual, 1)
	for _, s := range steps {
		assert.Equal(t, "failure()", s.If)
	}
}

func TestPostSecretsBecomeActionInputs(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{Post: jenkins.PostActionSet{{
		Condition: jenkins.PostFailure,
		Effects:   []jenkins.PostEffect{jenkins.SlackEffect{Message: "failed"}},
	}}}

	res := Materialize("notify", "Notify", f, nil)

	in := res.Action.Input("slack-webhook-url")
	require.NotNil(t, in)
	assert.Equal(t, "SLACK_WEBHOOK_URL", in.Secret)
	assert.Equal(t, "${{ inputs.slack-webhook-url }}", res.Action.Steps[0].Env["SLACK_WEBHOOK_URL"])
	assert.Equal(t, "${{ secrets.SLACK_WEBHOOK_URL }}", res.With["slack-webhook-url"])
}
