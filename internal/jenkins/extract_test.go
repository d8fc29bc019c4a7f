package jenkins

import (
	"strings"
	"testing"
)

const deployStage = `
    agent { label 'linux' }
    tools { maven 'Maven 3.8'; jdk 'jdk17' }
    environment {
        IMAGE = 'shop/api'
        KUBE_TOKEN = credentials('kube-token')
    }
    when {
        branch 'main'
        environment name: 'DEPLOY_ENV', value: 'prod'
    }
    options { timeout(time: 1, unit: 'HOURS') }
    input { message 'Ship it?'; ok 'Yes' }
    steps {
        checkout scm
        git branch: 'main', url: 'https://github.com/acme/charts.git', credentialsId: 'gh-token'
        withCredentials([usernamePassword(credentialsId: 'docker-hub', usernameVariable: 'DOCKER_USER', passwordVariable: 'DOCKER_PASS')]) {
            sh 'docker login -u $DOCKER_USER -p $DOCKER_PASS registry.example.com'
        }
        withSonarQubeEnv('sonar') {
            sh 'mvn sonar:sonar -Dsonar.projectKey=shop-api'
        }
        sh """
            docker build -t shop/api:latest -f Dockerfile .
            docker push shop/api:latest
            kubectl apply -f k8s/
            helm upgrade --install shop charts/shop
            echo deployed
        """
        script {
            def targets = ['a', 'b']
            targets.each { t -> echo t }
        }
        publishHTML(target: [reportDir: 'out', reportFiles: 'index.html', reportName: 'Report'])
    }
    post {
        always { archiveArtifacts artifacts: 'target/*.jar', allowEmptyArchive: true }
        unstable { junit 'reports/*.xml' }
        failure {
            slackSend channel: '#builds', message: 'failed'
            sh 'make clean'
        }
    }
`

func TestExtractStageFeatures(t *testing.T) {
	f := ExtractStage(Stage{Name: "Deploy", Body: deployStage})

	if f.Agent == nil || f.Agent.Kind != AgentLabel || f.Agent.Label != "linux" {
		t.Errorf("agent = %+v", f.Agent)
	}
	if len(f.Tools) != 2 || f.Tools[0].Kind != "maven" || f.Tools[1].Name != "jdk17" {
		t.Errorf("tools = %+v", f.Tools)
	}
	if len(f.Env) != 2 || f.Env[1].Credential != "kube-token" {
		t.Errorf("env = %+v", f.Env)
	}
	if f.When == nil || len(f.When.Predicates) != 2 || f.When.Complex() {
		t.Fatalf("when = %+v", f.When)
	}
	if f.When.Predicates[1].Name != "DEPLOY_ENV" || f.When.Predicates[1].Value != "prod" {
		t.Errorf("env predicate = %+v", f.When.Predicates[1])
	}
	if f.TimeoutMinutes != 60 {
		t.Errorf("timeout = %d", f.TimeoutMinutes)
	}
	if len(f.Inputs) != 1 || f.Inputs[0].Message != "Ship it?" || f.Inputs[0].OK != "Yes" {
		t.Errorf("inputs = %+v", f.Inputs)
	}
	if len(f.Git) != 2 || f.Git[0].Kind != GitSCM || f.Git[1].CredentialsID != "gh-token" {
		t.Errorf("git = %+v", f.Git)
	}
	if len(f.CredentialBlocks) != 1 || len(f.CredentialBlocks[0].Commands) != 1 {
		t.Fatalf("credential blocks = %+v", f.CredentialBlocks)
	}
	ids := map[string]CredentialKind{}
	for _, c := range f.Credentials {
		ids[c.SourceID] = c.Kind
	}
	if ids["docker-hub"] != CredUsernamePassword || ids["kube-token"] != CredString || ids["gh-token"] != CredString {
		t.Errorf("credentials = %+v", f.Credentials)
	}
	if len(f.Sonar) != 1 || f.Sonar[0].Server != "sonar" || f.Sonar[0].ProjectKey != "shop-api" {
		t.Errorf("sonar = %+v", f.Sonar)
	}
	kinds := []DockerKind{}
	for _, d := range f.Docker {
		kinds = append(kinds, d.Kind)
	}
	if len(kinds) != 3 || kinds[0] != DockerLogin || kinds[1] != DockerBuild || kinds[2] != DockerPush {
		t.Errorf("docker kinds = %v", kinds)
	}
	if f.Docker[1].Image != "shop/api:latest" || f.Docker[1].Dockerfile != "Dockerfile" || f.Docker[1].Context != "." {
		t.Errorf("docker build = %+v", f.Docker[1])
	}
	if len(f.Deploy) != 2 || f.Deploy[0].Tool != "kubectl" || f.Deploy[1].Tool != "helm" {
		t.Errorf("deploy = %+v", f.Deploy)
	}
	if len(f.Scripts) != 1 || !f.Scripts[0].RequiresManualConversion() {
		t.Errorf("scripts = %+v", f.Scripts)
	}
	if len(f.Plugins) != 1 || f.Plugins[0].Plugin != "publishHTML" {
		t.Errorf("plugins = %+v", f.Plugins)
	}
	if got := f.Post.Conditions(); len(got) != 3 || got[0] != PostAlways || got[1] != PostFailure || got[2] != PostUnstable {
		t.Errorf("post conditions = %v", got)
	}
	archive, ok := f.Post[0].Effects[0].(ArchiveEffect)
	if !ok || !archive.AllowEmpty || archive.Artifacts != "target/*.jar" {
		t.Errorf("archive = %+v", f.Post[0].Effects)
	}
	failure := f.Post[1].Effects
	if len(failure) != 2 {
		t.Fatalf("failure effects = %+v", failure)
	}
	if _, ok := failure[0].(SlackEffect); !ok {
		t.Errorf("first failure effect = %T", failure[0])
	}
	if cmd, ok := failure[1].(CommandEffect); !ok || cmd.Command != "make clean" {
		t.Errorf("second failure effect = %+v", failure[1])
	}
}

func TestExtractStageCommandsStayInSteps(t *testing.T) {
	f := ExtractStage(Stage{Name: "Deploy", Body: deployStage})
	for _, c := range f.Commands {
		if c.Text == "make clean" {
			t.Fatal("post commands must not leak into stage commands")
		}
	}
	found := false
	for _, c := range f.Commands {
		if c.Text == `echo deployed` {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing generic command, got %+v", f.Commands)
	}
}

func TestExtractWhenCombinators(t *testing.T) {
	w := ExtractWhen(`when { anyOf { branch 'main'; branch 'release' } }`)
	if w == nil || !w.Complex() || w.Combinators[0] != "anyOf" {
		t.Fatalf("when = %+v", w)
	}
}

func TestExtractWhenExpression(t *testing.T) {
	w := ExtractWhen(`when { expression { return params.DEPLOY == true } }`)
	if w == nil || len(w.Predicates) != 1 || w.Predicates[0].Value != "params.DEPLOY == true" {
		t.Fatalf("when = %+v", w)
	}
}

func TestExtractAgentShapes(t *testing.T) {
	tests := []struct {
		text string
		want Agent
	}{
		{"agent any", Agent{Kind: AgentAny}},
		{"agent none", Agent{Kind: AgentNone}},
		{"agent { label 'windows' }", Agent{Kind: AgentLabel, Label: "windows"}},
		{"agent { node { label 'mac' } }", Agent{Kind: AgentLabel, Label: "mac"}},
		{"agent { docker 'node:20' }", Agent{Kind: AgentDocker, Image: "node:20"}},
		{"agent {\n docker {\n image 'golang:1.22'\n reuseNode true\n }\n}", Agent{Kind: AgentDocker, Image: "golang:1.22", ReuseNode: true}},
	}
	for _, tt := range tests {
		got := ExtractAgent(tt.text)
		if got == nil || *got != tt.want {
			t.Errorf("ExtractAgent(%q) = %+v, want %+v", tt.text, got, tt.want)
		}
	}
}

func TestExtractCommandsKeepsStructuredScripts(t *testing.T) {
	text := "sh '''\nif [ -f x ]; then\n  echo yes\nfi\n'''"
	cmds := ExtractCommands(text)
	if len(cmds) != 1 || !strings.HasPrefix(cmds[0].Text, "if [ -f x ]") {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestParseDockerCommand(t *testing.T) {
	step, ok := ParseDockerCommand("sudo docker build --build-arg V=1 --tag=app:1 ./svc")
	if !ok || step.Kind != DockerBuild || step.Image != "app:1" || step.Context != "./svc" {
		t.Fatalf("step = %+v ok=%v", step, ok)
	}
	if _, ok := ParseDockerCommand("docker run --rm app"); ok {
		t.Fatal("docker run is a generic command")
	}
}

func TestExtractPluginsRequiresBlockForWrappers(t *testing.T) {
	text := "timeout(time: 5, unit: 'MINUTES') {\n sh 'x'\n}\nbuild job: 'downstream'\nretry(3)"
	plugins := ExtractPlugins(text)
	if len(plugins) != 2 || plugins[0].Plugin != "timeout" || plugins[1].Plugin != "build job" {
		t.Fatalf("plugins = %+v", plugins)
	}
}

func TestExtractCommandsSkipsGroovyArguments(t *testing.T) {
	text := "sh buildCmd\necho message\nsh 'make'\necho \"done\"\necho 42\necho 'Built ' + version"
	cmds := ExtractCommands(text)
	var got []string
	for _, c := range cmds {
		got = append(got, c.Text)
	}
	want := []string{"make", `echo "done"`, `echo "42"`}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("commands = %q, want %q", got, want)
	}

	unresolved := ExtractUnresolved(text)
	if len(unresolved) != 3 {
		t.Fatalf("unresolved = %+v", unresolved)
	}
	if unresolved[0].Step != "sh" || unresolved[0].Source != "sh buildCmd" {
		t.Errorf("first unresolved = %+v", unresolved[0])
	}
	if unresolved[1].Step != "echo" || unresolved[1].Source != "echo message" {
		t.Errorf("second unresolved = %+v", unresolved[1])
	}
}

func TestExtractStageUnresolvedOutsideManualScripts(t *testing.T) {
	f := ExtractStage(Stage{Name: "Build", Body: `
    steps {
        sh buildCmd
        script {
            def targets = ['a', 'b']
            targets.each { t -> echo t }
        }
    }
    post {
        always { sh cleanupCmd }
    }`})

	if len(f.Unresolved) != 1 || f.Unresolved[0].Source != "sh buildCmd" {
		t.Fatalf("unresolved = %+v", f.Unresolved)
	}
	for _, c := range f.Commands {
		if c.Text == "buildCmd" || c.Text == `echo "t"` {
			t.Errorf("expression argument emitted as a command: %q", c.Text)
		}
	}
	if len(f.Post) != 1 || len(f.Post[0].Effects) != 1 {
		t.Fatalf("post = %+v", f.Post)
	}
	if s, ok := f.Post[0].Effects[0].(ScriptEffect); !ok || s.Body != "sh cleanupCmd" {
		t.Errorf("post effect = %+v", f.Post[0].Effects[0])
	}
}
