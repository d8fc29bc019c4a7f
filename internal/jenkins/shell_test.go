package jenkins

import (
	"reflect"
	"testing"
)

func TestInvocations(t *testing.T) {
	tests := []struct {
		cmd  string
		want []Invocation
	}{
		{
			cmd: "cd app && docker build -t x .",
			want: []Invocation{
				{Program: "cd", Args: []string{"app"}},
				{Program: "docker", Args: []string{"build", "-t", "x", "."}},
			},
		},
		{
			cmd:  "FOO=1 sudo /usr/local/bin/kubectl apply -f k8s/",
			want: []Invocation{{Program: "kubectl", Args: []string{"apply", "-f", "k8s/"}}},
		},
		{
			cmd:  `echo a\ b 'c d' "e \"f\""`,
			want: []Invocation{{Program: "echo", Args: []string{"a b", "c d", `e "f"`}}},
		},
		{
			cmd: "make test; make lint | tee lint.log",
			want: []Invocation{
				{Program: "make", Args: []string{"test"}},
				{Program: "make", Args: []string{"lint"}},
				{Program: "tee", Args: []string{"lint.log"}},
			},
		},
		{
			cmd:  `helm upgrade app "$CHART"`,
			want: []Invocation{{Program: "helm", Args: []string{"upgrade", "app", "$CHART"}}},
		},
	}
	for _, tt := range tests {
		if got := Invocations(tt.cmd); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Invocations(%q) = %+v, want %+v", tt.cmd, got, tt.want)
		}
	}
}

func TestCompoundCommandsAreClassified(t *testing.T) {
	step, ok := ParseDockerCommand("cd svc && docker build -t shop/api:1 .")
	if !ok || step.Kind != DockerBuild || step.Image != "shop/api:1" || step.Context != "." {
		t.Fatalf("docker step = %+v ok=%v", step, ok)
	}
	if step.Command != "cd svc && docker build -t shop/api:1 ." {
		t.Errorf("docker step must keep the whole line, got %q", step.Command)
	}
	if !IsDeployCommand("export KUBECONFIG=/tmp/kube && kubectl apply -f k8s/") {
		t.Error("kubectl after export must be an orchestration command")
	}
	if !IsGitClone("mkdir -p src && git clone -b dev https://example.com/repo.git src") {
		t.Error("git clone after mkdir must be recognised")
	}

	deploy := ExtractDeploy(`sh 'export KUBECONFIG=/tmp/kube && helm upgrade --install shop charts/shop'`)
	if len(deploy) != 1 || deploy[0].Tool != "helm" {
		t.Fatalf("deploy = %+v", deploy)
	}
}

func TestGroovyInterpolationFallsBackToFields(t *testing.T) {
	step, ok := ParseDockerCommand("docker build -t app:${env.BUILD_ID} .")
	if !ok || step.Kind != DockerBuild || step.Context != "." {
		t.Fatalf("docker step = %+v ok=%v", step, ok)
	}
}

func TestDockerBuildArgumentsSplit(t *testing.T) {
	steps := ExtractDocker(`docker.build("shop/api", "-f 'build/Docker file' ./svc")`)
	if len(steps) != 1 || steps[0].Image != "shop/api" || steps[0].Context != "./svc" {
		t.Fatalf("steps = %+v", steps)
	}
}
