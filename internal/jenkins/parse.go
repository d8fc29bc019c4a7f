package jenkins

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPipeline is returned when the input has no pipeline { } block.
	ErrNoPipeline = errors.New("no pipeline block found")
	// ErrNoStages is returned when the pipeline has no stages { } block.
	ErrNoStages = errors.New("no stages block found")
)

// Parse extracts the pipeline-level directives and the stage forest from
// a declarative Jenkinsfile. Only missing pipeline or stages blocks are
// errors; everything else is best effort.
func Parse(text string) (*Pipeline, error) {
	clean := StripComments(text)
	pipeSpan, _, pipeTruncated, err := locateLenient(clean, "pipeline")
	if err != nil {
		return nil, fmt.Errorf("parse jenkinsfile: %w", ErrNoPipeline)
	}
	body := pipeSpan.Text(clean)

	stagesSpan, stagesOuter, stagesTruncated, err := locateLenient(body, "stages")
	if err != nil {
		return nil, fmt.Errorf("parse jenkinsfile: %w", ErrNoStages)
	}
	nodes, splitTruncated := Decompose(stagesSpan.Text(body))

	global := mask(body, stagesOuter)
	p := &Pipeline{
		Stages:         nodes,
		Tools:          ExtractTools(global),
		Env:            ExtractEnv(global),
		Parameters:     ExtractParameters(global),
		Post:           ExtractPost(global),
		TimeoutMinutes: ExtractTimeout(global),
		Truncated:      pipeTruncated || stagesTruncated || splitTruncated,
	}
	if a := ExtractAgent(mask(global, postSpan(global))); a != nil {
		p.Agent = *a
	}
	return p, nil
}

func postSpan(text string) Span {
	if b, err := Locate(text, "post"); err == nil {
		return b.Outer()
	}
	return Span{}
}

// ExtractStage runs every feature extractor over one stage body.
func ExtractStage(st Stage) Features {
	own := stageDirectives(st.Body)
	steps := stageSteps(st.Body)
	directives := mask(own, stepsSpan(own))
	return Features{
		Agent:            ExtractAgent(mask(directives, postSpan(directives))),
		Tools:            ExtractTools(directives),
		Env:              ExtractEnv(directives),
		Credentials:      ExtractCredentials(mask(own, postSpan(own))),
		CredentialBlocks: ExtractCredentialBlocks(steps),
		Git:              ExtractGit(steps),
		Sonar:            ExtractSonar(steps),
		Docker:           ExtractDocker(steps),
		Deploy:           ExtractDeploy(steps),
		Inputs:           ExtractInputs(mask(own, postSpan(own))),
		Scripts:          ExtractScripts(steps),
		Plugins:          ExtractPlugins(steps),
		When:             ExtractWhen(directives),
		Post:             ExtractPost(directives),
		Commands:         ExtractCommands(steps),
		Unresolved:       ExtractUnresolved(mask(steps, manualScripts(steps)...)),
		TimeoutMinutes:   ExtractTimeout(directives),
	}
}

func stepsSpan(text string) Span {
	if b, err := Locate(text, "steps"); err == nil {
		return b.Outer()
	}
	return Span{}
}
