package jenkins

import (
	"errors"
	"testing"
)

func TestSplitStagesOrder(t *testing.T) {
	body := `
		stage('Build') { steps { sh 'make' } }
		stage("Test") {
			steps { sh 'make test' }
		}
		stage(name: 'Ship') { steps { echo 'ok' } }
	`
	stages := SplitStages(body)
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(stages))
	}
	for i, want := range []string{"Build", "Test", "Ship"} {
		if stages[i].Name != want {
			t.Errorf("stage %d = %q, want %q", i, stages[i].Name, want)
		}
	}
}

func TestSplitStagesUnterminated(t *testing.T) {
	body := `
		stage('A') { steps { sh 'a' } }
		stage('B') { steps { sh 'b' } }
		stage('C') { steps { sh 'c' }
	`
	stages, truncated := splitStages(body)
	if !truncated {
		t.Fatal("expected truncation to be reported")
	}
	if len(stages) != 2 || stages[0].Name != "A" || stages[1].Name != "B" {
		t.Fatalf("unexpected stages %+v", stages)
	}
}

func TestExtractParallel(t *testing.T) {
	body := `
		parallel {
			stage('Unit') { steps { sh 'make unit' } }
			stage('Lint') { steps { sh 'make lint' } }
		}
	`
	members := ExtractParallel(body)
	if len(members) != 2 || members[0].Name != "Unit" || members[1].Name != "Lint" {
		t.Fatalf("unexpected members %+v", members)
	}
}

func TestDecomposeNestedStagesAreNotTopLevel(t *testing.T) {
	body := `
		stage('Checks') {
			parallel {
				stage('Unit') { steps { sh 'make unit' } }
				stage('Lint') { steps { sh 'make lint' } }
			}
		}
		stage('Package') { steps { sh 'make pkg' } }
	`
	nodes, truncated := Decompose(body)
	if truncated {
		t.Fatal("unexpected truncation")
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(nodes))
	}
	if !nodes[0].IsParallel() || len(nodes[0].Parallel) != 2 {
		t.Fatalf("first node should be a parallel group: %+v", nodes[0])
	}
	if nodes[1].IsParallel() {
		t.Fatal("second node should be sequential")
	}
}

func TestParseMissingBlocks(t *testing.T) {
	if _, err := Parse("node { sh 'x' }"); !errors.Is(err, ErrNoPipeline) {
		t.Fatalf("expected ErrNoPipeline, got %v", err)
	}
	if _, err := Parse("pipeline { agent any }"); !errors.Is(err, ErrNoStages) {
		t.Fatalf("expected ErrNoStages, got %v", err)
	}
}

func TestParsePipelineLevelDirectives(t *testing.T) {
	text := `
// leading comment
pipeline {
    agent { docker { image 'maven:3.9-eclipse-temurin-17'; args '-v /tmp:/tmp' } }
    environment {
        APP = 'shop'
        REGISTRY = "registry.example.com"
    }
    parameters {
        string(name: 'VERSION', defaultValue: '1.0', description: 'Release version')
        booleanParam(name: 'DEPLOY', defaultValue: false, description: 'Deploy?')
        choice(name: 'TARGET', choices: ['dev', 'prod'], description: 'Where')
    }
    stages {
        stage('Build') {
            environment { APP = 'shop' }
            steps { sh 'mvn -B package' }
        }
    }
    post {
        always { junit 'target/surefire-reports/*.xml' }
    }
}
`
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Agent.Kind != AgentDocker || p.Agent.Image != "maven:3.9-eclipse-temurin-17" || p.Agent.Args != "-v /tmp:/tmp" {
		t.Fatalf("agent = %+v", p.Agent)
	}
	if len(p.Env) != 2 || p.Env[1].Value != "registry.example.com" {
		t.Fatalf("env = %+v", p.Env)
	}
	if len(p.Parameters) != 3 {
		t.Fatalf("parameters = %+v", p.Parameters)
	}
	if p.Parameters[1].Kind != ParamBoolean || p.Parameters[1].Default != "false" {
		t.Errorf("boolean param = %+v", p.Parameters[1])
	}
	if p.Parameters[2].Kind != ParamChoice || len(p.Parameters[2].Choices) != 2 {
		t.Errorf("choice param = %+v", p.Parameters[2])
	}
	if len(p.Stages) != 1 || p.Stages[0].Name != "Build" {
		t.Fatalf("stages = %+v", p.Stages)
	}
	if len(p.Post) != 1 || p.Post[0].Condition != PostAlways {
		t.Fatalf("post = %+v", p.Post)
	}
}
