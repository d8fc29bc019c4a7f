package convert

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
)

// Layers groups the workflow's jobs into waves: every job's needs lie in
// earlier waves. It fails on unknown needs or cycles.
func Layers(wf *gha.Workflow) ([][]string, error) {
	inDegree := make(map[string]int, len(wf.Jobs))
	adj := make(map[string][]string, len(wf.Jobs))
	order := make(map[string]int, len(wf.Jobs))

	for i, j := range wf.Jobs {
		if _, dup := inDegree[j.ID]; dup {
			return nil, fmt.Errorf("duplicate job id %q", j.ID)
		}
		inDegree[j.ID] = 0
		order[j.ID] = i
	}
	for _, j := range wf.Jobs {
		for _, need := range j.Needs {
			if _, ok := inDegree[need]; !ok {
				return nil, fmt.Errorf("job %q needs unknown job %q", j.ID, need)
			}
			adj[need] = append(adj[need], j.ID)
			inDegree[j.ID]++
		}
	}

	var wave []string
	for _, j := range wf.Jobs {
		if inDegree[j.ID] == 0 {
			wave = append(wave, j.ID)
		}
	}

	var layers [][]string
	visited := 0
	for len(wave) > 0 {
		layers = append(layers, wave)
		visited += len(wave)
		var next []string
		for _, id := range wave {
			for _, to := range adj[id] {
				inDegree[to]--
				if inDegree[to] == 0 {
					next = append(next, to)
				}
			}
		}
		sort.Slice(next, func(a, b int) bool { return order[next[a]] < order[next[b]] })
		wave = next
	}

	if visited != len(wf.Jobs) {
		return nil, fmt.Errorf("job graph contains a cycle")
	}
	return layers, nil
}

// Validate checks the job graph is a DAG over known jobs.
func Validate(wf *gha.Workflow) error {
	_, err := Layers(wf)
	return err
}

// Fingerprint hashes the synthesized workflow and actions. Equal inputs
// always produce equal fingerprints.
func Fingerprint(wf *gha.Workflow, files []ActionFile) (string, error) {
	type fingerprintShape struct {
		Name    string       `json:"name"`
		Env     []string     `json:"env"`
		Jobs    []*gha.Job   `json:"jobs"`
		Actions []ActionFile `json:"actions"`
	}

	jobs := append([]*gha.Job(nil), wf.Jobs...)
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	acts := append([]ActionFile(nil), files...)
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Path < acts[j].Path })

	env := make([]string, 0, len(wf.Env))
	for k, v := range wf.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	body, err := json.Marshal(fingerprintShape{Name: wf.Name, Env: env, Jobs: jobs, Actions: acts})
	if err != nil {
		return "", fmt.Errorf("marshal workflow fingerprint input: %w", err)
	}
	sum := blake3.Sum256(body)
	return "blake3:" + hex.EncodeToString(sum[:]), nil
}
