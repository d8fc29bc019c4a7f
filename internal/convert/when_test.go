package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

func TestRenderWhen(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		when *jenkins.WhenCondition
		want string
		note bool
	}{
		{"nil", nil, "", false},
		{
			"feature branch",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredBranch, Value: "develop"}}},
			"github.ref == 'refs/heads/develop'", false,
		},
		{
			"branch wildcard",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredBranch, Value: "release/*"}}},
			"startsWith(github.ref, 'refs/heads/release/')", false,
		},
		{
			"environment with value",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredEnvironment, Name: "TARGET", Value: "prod", HasValue: true}}},
			"env.TARGET == 'prod'", false,
		},
		{
			"environment presence",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredEnvironment, Name: "TARGET"}}},
			"env.TARGET != ''", false,
		},
		{
			"branch name env",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredEnvironment, Name: "BRANCH_NAME", Value: "qa", HasValue: true}}},
			"github.ref_name == 'qa'", false,
		},
		{
			"conjunction",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{
				{Kind: jenkins.PredBranch, Value: "main"},
				{Kind: jenkins.PredChangeRequest},
			}},
			"(github.ref == 'refs/heads/main' || github.ref == 'refs/heads/master') && github.event_name == 'pull_request'", false,
		},
		{
			"tags",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredBuildingTag}, {Kind: jenkins.PredTag, Value: "v*"}}},
			"startsWith(github.ref, 'refs/tags/') && startsWith(github.ref, 'refs/tags/v')", false,
		},
		{
			"untranslatable expression",
			&jenkins.WhenCondition{Predicates: []jenkins.Predicate{{Kind: jenkins.PredExpression, Value: "currentBuild.result == null"}}},
			"true", true,
		},
		{
			"combinators",
			&jenkins.WhenCondition{
				Predicates:  []jenkins.Predicate{{Kind: jenkins.PredBranch, Value: "main"}},
				Combinators: []string{"anyOf"},
			},
			"true", true,
		},
	}
	for _, tc := range cases {
		got, note := RenderWhen(tc.when)
		assert.Equal(t, tc.want, got, tc.name)
		assert.Equal(t, tc.note, note != "", tc.name)
	}
}

func TestTranslateExpression(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`params.ENV == "prod"`, "github.event_name == 'workflow_dispatch' && inputs.ENV == 'prod'", true},
		{`params.A || params.B`, "github.event_name == 'workflow_dispatch' && (inputs.A || inputs.B)", true},
		{`env.STAGE != 'dev' && !(env.SKIP == 'true')`, "env.STAGE != 'dev' && !(env.SKIP == 'true')", true},
		{`env.BRANCH_NAME == 'main'`, "github.ref_name == 'main'", true},
		{`params.X.toBoolean()`, "", false},
		{`"${params.X}" == 'y'`, "", false},
		{`a = b`, "", false},
		{``, "", false},
	}
	for _, tc := range cases {
		got, ok := TranslateExpression(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
