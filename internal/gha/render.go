package gha

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML implements yaml.Marshaler, keeping jobs and inputs in
// declaration order.
func (w *Workflow) MarshalYAML() (any, error) {
	root := mapping()
	if err := addPair(root, "name", w.Name); err != nil {
		return nil, err
	}
	on := mapping()
	if w.On.Push != nil {
		if err := addPair(on, "push", w.On.Push); err != nil {
			return nil, err
		}
	}
	if w.On.PullRequest != nil {
		if err := addPair(on, "pull_request", w.On.PullRequest); err != nil {
			return nil, err
		}
	}
	if w.On.WorkflowDispatch != nil {
		dispatch := mapping()
		if len(w.On.WorkflowDispatch.Inputs) > 0 {
			inputs, err := inputsNode(w.On.WorkflowDispatch.Inputs)
			if err != nil {
				return nil, err
			}
			dispatch.Content = append(dispatch.Content, scalar("inputs"), inputs)
		}
		on.Content = append(on.Content, scalar("workflow_dispatch"), dispatch)
	}
	root.Content = append(root.Content, scalar("on"), on)
	if len(w.Env) > 0 {
		if err := addPair(root, "env", w.Env); err != nil {
			return nil, err
		}
	}
	if len(w.Permissions) > 0 {
		if err := addPair(root, "permissions", w.Permissions); err != nil {
			return nil, err
		}
	}
	jobs := mapping()
	for _, j := range w.Jobs {
		node, err := jobNode(j)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", j.ID, err)
		}
		jobs.Content = append(jobs.Content, scalar(j.ID), node)
	}
	root.Content = append(root.Content, scalar("jobs"), jobs)
	return root, nil
}

func jobNode(j *Job) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(j); err != nil {
		return nil, err
	}
	if j.IfNote == "" {
		return &n, nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "if" {
			n.Content[i+1].LineComment = j.IfNote
		}
	}
	return &n, nil
}

// MarshalYAML implements yaml.Marshaler.
func (a *Action) MarshalYAML() (any, error) {
	root := mapping()
	if err := addPair(root, "name", a.Name); err != nil {
		return nil, err
	}
	if err := addPair(root, "description", a.Description); err != nil {
		return nil, err
	}
	if len(a.Inputs) > 0 {
		inputs, err := inputsNode(a.Inputs)
		if err != nil {
			return nil, err
		}
		root.Content = append(root.Content, scalar("inputs"), inputs)
	}
	runs := mapping()
	if err := addPair(runs, "using", "composite"); err != nil {
		return nil, err
	}
	steps := a.Steps
	if steps == nil {
		steps = []Step{}
	}
	if err := addPair(runs, "steps", steps); err != nil {
		return nil, err
	}
	root.Content = append(root.Content, scalar("runs"), runs)
	return root, nil
}

func inputsNode(inputs []Input) (*yaml.Node, error) {
	m := mapping()
	for _, in := range inputs {
		if err := addPair(m, in.Name, in); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func mapping() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"} }

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func addPair(m *yaml.Node, key string, v any) error {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return err
	}
	m.Content = append(m.Content, scalar(key), &n)
	return nil
}

// Marshal renders v (a *Workflow or *Action) as two-space indented YAML.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
