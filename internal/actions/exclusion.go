package actions

import "github.com/mattjoyce/jenkins2gha/internal/jenkins"

// category is a specialised step family that absorbs generic commands.
type category string

const (
	catSourceControl   category = "source-control"
	catQualityScan     category = "quality-scan"
	catContainer       category = "container"
	catOrchestration   category = "orchestration"
	catCredentialScope category = "credential-scope"
)

// exclusion decides once per generic command whether a specialised
// category that fired for the stage already represents it.
type exclusion struct {
	fired       map[category]bool
	sonarScopes []jenkins.Span
	credScopes  []jenkins.Span
}

// match returns the category that absorbs cmd. Commands inside a
// withCredentials body belong to their credential step unless scoped is
// false, which is the case while building that step.
func (e exclusion) match(cmd jenkins.ShellCommand, scoped bool) (category, bool) {
	switch {
	case e.fired[catSourceControl] && jenkins.IsGitClone(cmd.Text):
		return catSourceControl, true
	case e.fired[catQualityScan] && (jenkins.IsSonarCommand(cmd.Text) || inSpans(cmd.Offset, e.sonarScopes)):
		return catQualityScan, true
	case e.fired[catContainer] && isContainerCommand(cmd.Text):
		return catContainer, true
	case e.fired[catOrchestration] && jenkins.IsDeployCommand(cmd.Text):
		return catOrchestration, true
	case scoped && inSpans(cmd.Offset, e.credScopes):
		return catCredentialScope, true
	}
	return "", false
}

func isContainerCommand(cmd string) bool {
	_, ok := jenkins.ParseDockerCommand(cmd)
	return ok
}

func inSpans(off int, spans []jenkins.Span) bool {
	for _, s := range spans {
		if s.Contains(off) {
			return true
		}
	}
	return false
}
