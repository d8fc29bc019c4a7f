// Package secrets maps Jenkins credential identifiers to GitHub secret and
// action input names.
package secrets

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// TargetName converts a credential id into a secret name: uppercase with
// every non-alphanumeric byte replaced by an underscore.
func TargetName(sourceID string) string {
	name := nonAlnum.ReplaceAllString(strings.ToUpper(sourceID), "_")
	if name == "" {
		return "SECRET"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// PairNames returns the username and password secret names of a
// username/password credential.
func PairNames(sourceID string) (string, string) {
	base := TargetName(sourceID)
	return base + "_USERNAME", base + "_PASSWORD"
}

// InputName converts a secret or environment name into an action input
// name: lowercase with underscores turned into dashes.
func InputName(name string) string {
	return strings.Trim(strings.ReplaceAll(strings.ToLower(name), "_", "-"), "-")
}

// Type is an advisory classification of a credential id.
type Type string

const (
	TypeSSHKey      Type = "SSH Key"
	TypeToken       Type = "Token/API Key"
	TypePassword    Type = "Password"
	TypeUsername    Type = "Username"
	TypeKubeconfig  Type = "File (Kubeconfig)"
	TypeCertificate Type = "Certificate"
	TypeGeneric     Type = "Credential"
)

// Classify guesses the kind of material a credential id refers to. The
// result is used for documentation only.
func Classify(sourceID string) Type {
	id := strings.ToLower(sourceID)
	switch {
	case strings.Contains(id, "ssh"):
		return TypeSSHKey
	case strings.Contains(id, "kubeconfig"):
		return TypeKubeconfig
	case containsAny(id, "token", "api", "key"):
		return TypeToken
	case containsAny(id, "password", "pwd"):
		return TypePassword
	case containsAny(id, "username", "user"):
		return TypeUsername
	case containsAny(id, "cert", "certificate", "pem"):
		return TypeCertificate
	default:
		return TypeGeneric
	}
}

// Purpose describes what a credential is probably used for.
func Purpose(sourceID string) string {
	id := strings.ToLower(sourceID)
	switch {
	case strings.Contains(id, "docker"):
		return "Docker registry authentication"
	case containsAny(id, "git", "github"):
		return "Git repository access"
	case strings.Contains(id, "sonar"):
		return "SonarQube server authentication"
	case containsAny(id, "kubeconfig", "k8s", "kube"):
		return "Kubernetes cluster access"
	case strings.Contains(id, "aws"):
		return "AWS service authentication"
	case strings.Contains(id, "ssh"):
		return "SSH server access"
	default:
		return "Authentication for " + sourceID
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
