package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jenkins2gha/internal/gha"
)

func TestValidateRejectsBadGraphs(t *testing.T) {
	t.Parallel()
	unknown := &gha.Workflow{Jobs: []*gha.Job{{ID: "a", Needs: []string{"ghost"}}}}
	assert.ErrorContains(t, Validate(unknown), "unknown job")

	cycle := &gha.Workflow{Jobs: []*gha.Job{
		{ID: "a", Needs: []string{"b"}},
		{ID: "b", Needs: []string{"a"}},
	}}
	assert.ErrorContains(t, Validate(cycle), "cycle")

	dup := &gha.Workflow{Jobs: []*gha.Job{{ID: "a"}, {ID: "a"}}}
	assert.ErrorContains(t, Validate(dup), "duplicate")
}

func TestLayersKeepDeclarationOrder(t *testing.T) {
	t.Parallel()
	wf := &gha.Workflow{Jobs: []*gha.Job{
		{ID: "root"},
		{ID: "z", Needs: []string{"root"}},
		{ID: "a", Needs: []string{"root"}},
		{ID: "end", Needs: []string{"z", "a"}},
	}}
	layers, err := Layers(wf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"root"}, {"z", "a"}, {"end"}}, layers)
}

func TestFingerprintChangesWithGraph(t *testing.T) {
	t.Parallel()
	base := &gha.Workflow{Name: "CI", Jobs: []*gha.Job{{ID: "a"}, {ID: "b", Needs: []string{"a"}}}}
	other := &gha.Workflow{Name: "CI", Jobs: []*gha.Job{{ID: "a"}, {ID: "b"}}}

	f1, err := Fingerprint(base, nil)
	require.NoError(t, err)
	f2, err := Fingerprint(other, nil)
	require.NoError(t, err)
	assert.NotEqual(t, f1, f2)
	assert.Len(t, f1, len("blake3:")+64)
}
