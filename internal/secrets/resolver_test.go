package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"docker-hub":     "DOCKER_HUB",
		"sonar.token":    "SONAR_TOKEN",
		"aws creds/prod": "AWS_CREDS_PROD",
		"1password":      "_1PASSWORD",
		"":               "SECRET",
	}
	for in, want := range tests {
		assert.Equal(t, want, TargetName(in), in)
	}
}

func TestTargetNameDeterministic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, TargetName("kube-config"), TargetName("kube-config"))
}

func TestPairNames(t *testing.T) {
	t.Parallel()
	user, pass := PairNames("docker-hub")
	assert.Equal(t, "DOCKER_HUB_USERNAME", user)
	assert.Equal(t, "DOCKER_HUB_PASSWORD", pass)
}

func TestInputName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "docker-hub-username", InputName("DOCKER_HUB_USERNAME"))
	assert.Equal(t, "app-version", InputName("APP_VERSION"))
}

func TestClassify(t *testing.T) {
	t.Parallel()
	assert.Equal(t, TypeSSHKey, Classify("deploy-ssh"))
	assert.Equal(t, TypeToken, Classify("github-token"))
	assert.Equal(t, TypePassword, Classify("db-password"))
	assert.Equal(t, TypeKubeconfig, Classify("prod-kubeconfig"))
	assert.Equal(t, TypeCertificate, Classify("tls-cert"))
	assert.Equal(t, TypeGeneric, Classify("nexus"))
	assert.Equal(t, "Docker registry authentication", Purpose("docker-hub"))
	assert.Equal(t, "Authentication for nexus", Purpose("nexus"))
}
