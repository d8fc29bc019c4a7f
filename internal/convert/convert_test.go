package convert

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jenkins2gha/internal/actions"
	"github.com/mattjoyce/jenkins2gha/internal/gha"
	"github.com/mattjoyce/jenkins2gha/internal/jenkins"
)

func convert(t *testing.T, text string) *Result {
	t.Helper()
	res, err := New(DefaultOptions(), nil).Convert(text)
	require.NoError(t, err)
	return res
}

func TestSingleStagePipeline(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    stages {
        stage('Build') {
            steps {
                sh 'make build'
            }
        }
    }
}`)

	require.Len(t, res.Workflow.Jobs, 1)
	job := res.Workflow.Jobs[0]
	assert.Equal(t, "build", job.ID)
	assert.Empty(t, job.Needs)
	assert.Equal(t, gha.RunsOn{"ubuntu-latest"}, job.RunsOn)
	assert.Equal(t, 60, job.TimeoutMinutes)
	assert.Equal(t, "./.github/actions/build", job.Steps[1].Uses)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, ".github/actions/build/action.yml", res.Actions[0].Path)
	steps := res.Actions[0].Action.Steps
	require.Len(t, steps, 1)
	assert.Equal(t, "make build", steps[0].Run)
	assert.Empty(t, res.Diagnostics)
}

func TestParallelForkJoin(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    stages {
        stage('Prepare') { steps { sh 'make deps' } }
        stage('Checks') {
            parallel {
                stage('A') { steps { sh 'make a' } }
                stage('B') { steps { sh 'make b' } }
            }
        }
        stage('C') { steps { sh 'make c' } }
    }
}`)

	wf := res.Workflow
	require.Len(t, wf.Jobs, 4)
	assert.Equal(t, []string{"prepare"}, wf.Job("a").Needs)
	assert.Equal(t, []string{"prepare"}, wf.Job("b").Needs)
	assert.Equal(t, []string{"a", "b"}, wf.Job("c").Needs)
	assert.Nil(t, wf.Job("checks"))

	layers, err := Layers(wf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"prepare"}, {"a", "b"}, {"c"}}, layers)
	assert.Equal(t, "Checks", res.Stages[1].ParallelGroup)
}

func TestParallelFirstHasNoNeeds(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    stages {
        stage('Tests') {
            parallel {
                stage('A') { steps { sh 'a' } }
                stage('B') { steps { sh 'b' } }
            }
        }
    }
}`)
	assert.Empty(t, res.Workflow.Job("a").Needs)
	assert.Empty(t, res.Workflow.Job("b").Needs)
}

func TestStageEnvFilteredAgainstGlobal(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    environment {
        REGION = 'us-east-1'
        APP = 'web'
    }
    stages {
        stage('Deploy') {
            environment {
                REGION = 'us-east-1'
                APP = 'api'
            }
            steps { sh 'echo $APP' }
        }
    }
}`)

	assert.Equal(t, map[string]string{"REGION": "us-east-1", "APP": "web"}, res.Workflow.Env)
	job := res.Workflow.Job("deploy")
	require.NotNil(t, job)
	assert.Equal(t, map[string]string{"APP": "api"}, job.Env)
}

func TestDeterministicOutput(t *testing.T) {
	t.Parallel()
	src := `
pipeline {
    agent { label 'linux' }
    environment { A = '1' }
    stages {
        stage('Build') { steps { sh 'make' } }
        stage('Publish') {
            steps {
                withCredentials([usernamePassword(credentialsId: 'docker-hub', usernameVariable: 'U', passwordVariable: 'P')]) {
                    sh 'docker push acme/app'
                }
            }
        }
    }
    post { always { archiveArtifacts artifacts: 'out/**' } }
}`
	first := convert(t, src)
	second := convert(t, src)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.True(t, strings.HasPrefix(first.Fingerprint, "blake3:"))

	a, err := gha.Marshal(first.Workflow)
	require.NoError(t, err)
	b, err := gha.Marshal(second.Workflow)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestPipelinePostJob(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent { docker { image 'maven:3-jdk-11' } }
    stages {
        stage('One') { steps { sh 'one' } }
        stage('Two') { steps { sh 'two' } }
    }
    post {
        always { junit 'target/*.xml' }
        failure { slackSend channel: '#ci', message: 'failed' }
    }
}`)

	post := res.Workflow.Job(PostJobID)
	require.NotNil(t, post)
	assert.Equal(t, "Pipeline Post Actions", post.Name)
	assert.Equal(t, "always()", post.If)
	assert.Equal(t, []string{"one", "two"}, post.Needs)
	assert.Equal(t, 30, post.TimeoutMinutes)
	require.NotNil(t, post.Container)
	assert.Equal(t, "maven:3-jdk-11", post.Container.Image)
	assert.Contains(t, res.RequiredSecrets(), "SLACK_WEBHOOK_URL")
}

func TestFallbackOnStagePanic(t *testing.T) {
	t.Parallel()
	c := New(DefaultOptions(), nil)
	orig := c.materialize
	c.materialize = func(id, name string, f jenkins.Features, tools []jenkins.Tool) *actions.Result {
		if name == "Broken" {
			panic("boom")
		}
		return orig(id, name, f, tools)
	}

	res, err := c.Convert(`
pipeline {
    agent any
    stages {
        stage('Good') { steps { sh 'ok' } }
        stage('Broken') { steps { sh 'bad' } }
        stage('After') { steps { sh 'after' } }
    }
}`)
	require.NoError(t, err)

	broken := res.Workflow.Job("broken")
	require.NotNil(t, broken)
	assert.Equal(t, 30, broken.TimeoutMinutes)
	require.Len(t, broken.Steps, 2)
	assert.Equal(t, "Manual Conversion Required", broken.Steps[1].Name)
	assert.Contains(t, broken.Steps[1].Run, "boom")
	assert.NotContains(t, broken.Steps[1].Run, "exit 1")
	assert.Equal(t, []string{"broken"}, res.Workflow.Job("after").Needs)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, DiagFallback, res.Diagnostics[0].Kind)
	assert.Len(t, res.Actions, 2)
}

func TestUnterminatedStageKeepsEarlierStages(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    stages {
        stage('A') { steps { sh 'a' } }
        stage('B') { steps { sh 'b' } }
        stage('C') { steps { sh 'c' }
`)
	require.Len(t, res.Workflow.Jobs, 2)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, DiagTruncated, res.Diagnostics[0].Kind)
}

func TestMissingStructuralBlocks(t *testing.T) {
	t.Parallel()
	_, err := New(DefaultOptions(), nil).Convert(`node { sh 'x' }`)
	assert.True(t, errors.Is(err, jenkins.ErrNoPipeline))

	_, err = New(DefaultOptions(), nil).Convert(`pipeline { agent any }`)
	assert.True(t, errors.Is(err, jenkins.ErrNoStages))
}

func TestDuplicateStageNames(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    stages {
        stage('Test') { steps { sh 'one' } }
        stage('Test') { steps { sh 'two' } }
    }
}`)
	ids := []string{res.Workflow.Jobs[0].ID, res.Workflow.Jobs[1].ID}
	assert.Equal(t, []string{"test", "test-2"}, ids)
	assert.Equal(t, []string{"test"}, res.Workflow.Jobs[1].Needs)
	assert.Equal(t, DiagDuplicate, res.Diagnostics[0].Kind)
	assert.Equal(t, ".github/actions/test-2/action.yml", res.Actions[1].Path)
}

func TestDeployJobGuards(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    options { timeout(time: 20, unit: 'MINUTES') }
    stages {
        stage('Deploy Production') {
            input { message 'Ship it?' }
            steps {
                sh 'kubectl apply -f k8s/'
                milestone(1)
            }
        }
    }
}`)
	job := res.Workflow.Job("deploy-production")
	require.NotNil(t, job)
	require.NotNil(t, job.Concurrency)
	assert.Equal(t, "deployment-deploy-production", job.Concurrency.Group)
	assert.False(t, job.Concurrency.CancelInProgress)
	assert.Equal(t, "approval-deploy-production", job.Environment)
	assert.Equal(t, 20, job.TimeoutMinutes)
	assert.False(t, job.ContinueOnError)
	assert.Equal(t, 30, job.Steps[1].TimeoutMinutes)
}

func TestWhenBecomesIf(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    parameters { booleanParam(name: 'DEPLOY', defaultValue: false, description: 'Deploy?') }
    stages {
        stage('Ship') {
            when { branch 'main' }
            steps { sh 'ship' }
        }
        stage('Maybe') {
            when { expression { return params.DEPLOY == true } }
            steps { sh 'maybe' }
        }
    }
}`)
	assert.Equal(t, "github.ref == 'refs/heads/main' || github.ref == 'refs/heads/master'", res.Workflow.Job("ship").If)
	assert.Equal(t, "github.event_name == 'workflow_dispatch' && inputs.DEPLOY == true", res.Workflow.Job("maybe").If)

	inputs := res.Workflow.On.WorkflowDispatch.Inputs
	require.Len(t, inputs, 1)
	assert.Equal(t, "boolean", inputs[0].Type)
	assert.Equal(t, "false", *inputs[0].Default)
}

func TestRunnerLabels(t *testing.T) {
	t.Parallel()
	o := DefaultOptions()
	assert.Equal(t, gha.RunsOn{"windows-2019"}, o.RunnerFor("win2019"))
	assert.Equal(t, gha.RunsOn{"ubuntu-latest"}, o.RunnerFor("docker-builders"))
	assert.Equal(t, gha.RunsOn{"self-hosted", "gpu-box"}, o.RunnerFor("gpu-box"))
	assert.Equal(t, gha.RunsOn{"macos-latest"}, o.RunnerFor("Darwin"))
}

func TestStageToolsOverridePipelineTools(t *testing.T) {
	t.Parallel()
	res := convert(t, `
pipeline {
    agent any
    tools { jdk 'jdk11' }
    stages {
        stage('Checks') {
            parallel {
                stage('Modern') {
                    tools { jdk 'jdk17' }
                    steps { sh 'mvn verify' }
                }
                stage('Legacy') { steps { sh 'mvn verify' } }
            }
        }
    }
}`)

	setup := func(path string) []string {
		for _, a := range res.Actions {
			if a.Path == path {
				var names []string
				for _, s := range a.Action.Steps {
					if strings.HasPrefix(s.Name, "Set up JDK") {
						names = append(names, s.Name)
					}
				}
				return names
			}
		}
		t.Fatalf("no action at %s", path)
		return nil
	}
	assert.Equal(t, []string{"Set up JDK 17"}, setup(".github/actions/modern/action.yml"))
	assert.Equal(t, []string{"Set up JDK 11"}, setup(".github/actions/legacy/action.yml"))
}
