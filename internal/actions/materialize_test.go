package actions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

func stepNames(steps []gha.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name)
	}
	return out
}

func indexOf(names []string, prefix string) int {
	for i, n := range names {
		if strings.HasPrefix(n, prefix) {
			return i
		}
	}
	return -1
}

func TestUsernamePasswordYieldsTwoInputs(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{Credentials: []jenkins.CredentialBinding{{
		Kind:       jenkins.CredUsernamePassword,
		SourceID:   "docker-hub",
		BoundNames: []string{"USER", "PASS"},
	}}}

	res := Materialize("push", "Push", f, nil)

	require.Len(t, res.Action.Inputs, 2)
	assert.Equal(t, "docker-hub-username", res.Action.Inputs[0].Name)
	assert.Equal(t, "docker-hub-password", res.Action.Inputs[1].Name)
	assert.Equal(t, "DOCKER_HUB_USERNAME", res.Action.Inputs[0].Secret)
	assert.Equal(t, "DOCKER_HUB_PASSWORD", res.Action.Inputs[1].Secret)
	assert.Equal(t, []string{"DOCKER_HUB_USERNAME", "DOCKER_HUB_PASSWORD"}, res.RequiredSecrets)
	assert.Equal(t, "${{ secrets.DOCKER_HUB_USERNAME }}", res.With["docker-hub-username"])
	assert.False(t, res.Action.Inputs[0].Required)
}

func TestSingleCommandYieldsSingleStep(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{Commands: []jenkins.ShellCommand{{Text: "make test"}}}

	res := Materialize("test", "Test", f, nil)

	require.Len(t, res.Action.Steps, 1)
	step := res.Action.Steps[0]
	assert.Equal(t, "Run command 1", step.Name)
	assert.Equal(t, "make test", step.Run)
	assert.Equal(t, "bash", step.Shell)
	assert.Empty(t, step.If)
	assert.Empty(t, res.Action.Inputs)
	assert.Equal(t, 1, res.Complexity)
}

func TestStepOrder(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{
		Tools: []jenkins.Tool{{Kind: "maven", Name: "Maven 3"}},
		Git:   []jenkins.GitStep{{Kind: jenkins.GitStandard, URL: "https://github.com/acme/lib.git", Branch: "main"}},
		Credentials: []jenkins.CredentialBinding{
			{Kind: jenkins.CredFile, SourceID: "kubeconfig", BoundNames: []string{"KUBECONFIG"}},
		},
		Sonar:  []jenkins.SonarStep{{Commands: []string{"mvn sonar:sonar"}, Scope: jenkins.Span{Start: 10, End: 11}}},
		Docker: []jenkins.DockerStep{{Kind: jenkins.DockerBuild, Command: "docker build -t app .", Context: ".", Offset: 20}},
		Commands: []jenkins.ShellCommand{
			{Text: "mvn sonar:sonar", Offset: 10},
			{Text: "docker build -t app .", Offset: 20},
			{Text: "mvn package", Offset: 30},
			{Text: "kubectl apply -f k8s/", Offset: 40},
		},
		Deploy:  []jenkins.DeployCommand{{Tool: "kubectl", Command: "kubectl apply -f k8s/", Offset: 40}},
		Scripts: []jenkins.ScriptBlock{{Body: "list.each { println it }", Lines: 1, GroovySpecific: true}},
		Plugins: []jenkins.PluginCall{{Plugin: "milestone", Snippet: "milestone(1)"}},
		Post: jenkins.PostActionSet{{
			Condition: jenkins.PostAlways,
			Effects:   []jenkins.PostEffect{jenkins.CleanupEffect{}},
		}},
	}

	res := Materialize("ship", "Ship", f, nil)
	names := stepNames(res.Action.Steps)

	order := []string{
		"Cache Maven packages",
		"Checkout acme/lib",
		"Stage credential kubeconfig",
		"SonarQube analysis",
		"Build Docker image 1",
		"Run command 1",
		"Run Kubernetes command 1",
		"Script block 1",
		"milestone",
		"Clean workspace",
	}
	last := -1
	for _, prefix := range order {
		i := indexOf(names, prefix)
		require.GreaterOrEqual(t, i, 0, "missing step %q in %v", prefix, names)
		assert.Greater(t, i, last, "step %q out of order in %v", prefix, names)
		last = i
	}
	assert.Equal(t, -1, indexOf(names, "Run command 2"), "specialised commands must not repeat as generic steps")
	assert.Equal(t, "mvn package", res.Action.Steps[indexOf(names, "Run command 1")].Run)
	assert.True(t, res.HasDocker)
	assert.True(t, res.HasKubectl)
	assert.True(t, res.HasSonar)
	assert.True(t, res.HasPost)
	assert.Equal(t, []string{"milestone"}, res.Plugins)
	assert.Len(t, res.Manual, 2)
}

func TestExclusionByCategory(t *testing.T) {
	t.Parallel()
	ex := exclusion{fired: map[category]bool{catContainer: true, catSourceControl: true}}

	cases := []struct {
		cmd  string
		want category
		skip bool
	}{
		{"docker push app:1", catContainer, true},
		{"sudo docker login -u x registry.io", catContainer, true},
		{"git clone https://github.com/acme/lib.git", catSourceControl, true},
		{"kubectl get pods", "", false},
		{"mvn sonar:sonar", "", false},
		{"echo docker", "", false},
	}
	for _, tc := range cases {
		got, skip := ex.match(jenkins.ShellCommand{Text: tc.cmd}, true)
		assert.Equal(t, tc.skip, skip, tc.cmd)
		assert.Equal(t, tc.want, got, tc.cmd)
	}
}

func TestCredentialScopedCommands(t *testing.T) {
	t.Parallel()
	body := jenkins.Span{Start: 100, End: 200}
	f := jenkins.Features{
		Credentials: []jenkins.CredentialBinding{{Kind: jenkins.CredString, SourceID: "api-token", BoundNames: []string{"TOKEN"}}},
		CredentialBlocks: []jenkins.CredentialBlock{{
			Bindings: []jenkins.CredentialBinding{{Kind: jenkins.CredString, SourceID: "api-token", BoundNames: []string{"TOKEN"}}},
			Body:     body,
			Commands: []jenkins.ShellCommand{{Text: "curl -H \"Authorization: $TOKEN\" https://api", Offset: 120}},
		}},
		Commands: []jenkins.ShellCommand{
			{Text: "make", Offset: 10},
			{Text: "curl -H \"Authorization: $TOKEN\" https://api", Offset: 120},
		},
	}

	res := Materialize("call", "Call", f, nil)
	names := stepNames(res.Action.Steps)

	assert.Equal(t, []string{"Run with credentials 1", "Run command 1"}, names)
	scoped := res.Action.Steps[0]
	assert.Equal(t, "inputs.api-token != ''", scoped.If)
	assert.Equal(t, "${{ inputs.api-token }}", scoped.Env["TOKEN"])
	assert.Equal(t, "make", res.Action.Steps[1].Run)
}

func TestDockerInputsAndLogin(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{
		Docker: []jenkins.DockerStep{
			{Kind: jenkins.DockerBuild, Image: "app", Context: "."},
			{Kind: jenkins.DockerPush, Image: "app"},
		},
	}

	res := Materialize("image", "Image", f, nil)

	for _, name := range []string{"registry", "image-name", "build-tag", "docker-username", "docker-password"} {
		assert.NotNil(t, res.Action.Input(name), name)
	}
	assert.Equal(t, "docker.io", *res.Action.Input("registry").Default)
	names := stepNames(res.Action.Steps)
	assert.Equal(t, []string{"Log in to container registry", "Build Docker image 1", "Push Docker image 1"}, names)
	assert.Equal(t, `docker build -t "app" .`, res.Action.Steps[1].Run)
	assert.Equal(t, "inputs.docker-username != ''", res.Action.Steps[0].If)
}

func TestEnvInputsCarryDefaults(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{
		Env: []jenkins.EnvVar{
			{Key: "APP_ENV", Value: "staging"},
			{Key: "API_KEY", Credential: "api-key"},
		},
		Credentials: []jenkins.CredentialBinding{{Kind: jenkins.CredString, SourceID: "api-key", BoundNames: []string{"API_KEY"}}},
		Commands:    []jenkins.ShellCommand{{Text: "deploy.sh $APP_ENV $API_KEY"}},
	}

	res := Materialize("d", "D", f, nil)

	in := res.Action.Input("app-env")
	require.NotNil(t, in)
	assert.Equal(t, "staging", *in.Default)
	assert.Empty(t, in.Secret)
	assert.Nil(t, res.Action.Input("api-key").Default)

	step := res.Action.Steps[0]
	assert.Equal(t, "${{ inputs.app-env }}", step.Env["APP_ENV"])
	assert.Equal(t, "${{ inputs.api-key }}", step.Env["API_KEY"])
	assert.Equal(t, "inputs.api-key != ''", step.If)
}

func TestComplexityWeights(t *testing.T) {
	t.Parallel()
	f := jenkins.Features{
		Commands:    make([]jenkins.ShellCommand, 3),
		Credentials: make([]jenkins.CredentialBinding, 2),
		Docker:      make([]jenkins.DockerStep, 1),
		Deploy:      make([]jenkins.DeployCommand, 1),
		Sonar:       make([]jenkins.SonarStep, 1),
		Plugins:     make([]jenkins.PluginCall, 1),
		Scripts: []jenkins.ScriptBlock{
			{Lines: 2},
			{Lines: 2, UsesJenkinsAPI: true},
		},
		Post: jenkins.PostActionSet{{Condition: jenkins.PostAlways}, {Condition: jenkins.PostFailure}},
	}
	assert.Equal(t, 3+4+6+8+2+5+4, Complexity(f))
}

func TestMaterializeFromStageText(t *testing.T) {
	t.Parallel()
	st := jenkins.Stage{Name: "Build", Body: `
		steps {
			sh 'make build'
			sh 'docker build -t acme/app:latest .'
		}`}

	res := Materialize("build", st.Name, jenkins.ExtractStage(st), []jenkins.Tool{{Kind: "nodejs", Name: "node20"}})
	names := stepNames(res.Action.Steps)

	require.NotEmpty(t, names)
	assert.Equal(t, "Set up Node.js 20", names[0])
	assert.Contains(t, names, "Build Docker image 1")
	assert.Contains(t, names, "Run command 1")
	assert.NotContains(t, names, "Run command 2")
}

func TestStageToolOverridesGlobalTool(t *testing.T) {
	t.Parallel()
	global := []jenkins.Tool{{Kind: "jdk", Name: "jdk11"}, {Kind: "nodejs", Name: "node-20"}}
	f := jenkins.Features{Tools: []jenkins.Tool{{Kind: "jdk", Name: "jdk17"}}}

	res := Materialize("build", "Build", f, global)
	names := stepNames(res.Action.Steps)

	assert.Contains(t, names, "Set up JDK 17")
	assert.NotContains(t, names, "Set up JDK 11")
	assert.Contains(t, names, "Set up Node.js 20")
	assert.Less(t, indexOf(names, "Set up JDK"), indexOf(names, "Set up Node.js"))
}

func TestUnresolvedStepsNeedManualConversion(t *testing.T) {
	t.Parallel()
	f := jenkins.ExtractStage(jenkins.Stage{Name: "Build", Body: `steps { sh buildCmd; sh 'make' }`})

	res := Materialize("build", "Build", f, nil)
	names := stepNames(res.Action.Steps)

	assert.Contains(t, names, "Dynamic sh step 1 (REQUIRES MANUAL CONVERSION)")
	assert.Contains(t, res.Manual, "sh argument is a Groovy expression: sh buildCmd")
	for _, s := range res.Action.Steps {
		assert.NotEqual(t, "buildCmd", s.Run)
	}
}
