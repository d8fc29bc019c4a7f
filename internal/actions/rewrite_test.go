package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

func TestRewriteCommand(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{`echo ${params.VERSION}`, `echo ${{ github.event.inputs.VERSION }}`},
		{`echo ${env.APP}`, `echo ${APP}`},
		{`tag $BUILD_NUMBER`, `tag ${{ github.run_number }}`},
		{`git checkout ${GIT_COMMIT}`, `git checkout ${{ github.sha }}`},
		{`echo $HOME`, `echo $HOME`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RewriteCommand(tc.in), tc.in)
	}
}

func TestReferencedVars(t *testing.T) {
	t.Parallel()
	got := referencedVars(`curl -u $USER:${PASS} ${env.TOKEN}`, []string{"USER", "PASS", "TOKEN", "OTHER", "USERNAME"})
	assert.Equal(t, []string{"USER", "PASS", "TOKEN"}, got)
}

func TestLimitationsScriptEscapesExpressions(t *testing.T) {
	t.Parallel()
	out := limitationsScript("script block", "echo ${{ x }}\nfoo()")
	assert.Contains(t, out, "#   echo $ {{ x }}")
	assert.Contains(t, out, "#   foo()")
	assert.NotContains(t, out, "${{")
}

func TestToolSteps(t *testing.T) {
	t.Parallel()
	steps := ToolSteps([]jenkins.Tool{
		{Kind: "jdk", Name: "jdk-11"},
		{Kind: "maven", Name: "M3"},
		{Kind: "jdk", Name: "jdk-17"},
		{Kind: "git", Name: "Default"},
	})
	names := stepNames(steps)
	assert.Equal(t, []string{"Set up JDK 11", "Cache Maven packages"}, names)
	assert.Equal(t, "temurin", steps[0].With["distribution"])
}
