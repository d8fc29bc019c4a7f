package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jenkins2gha/internal/output"
	"github.com/mattjoyce/jenkins2gha/internal/report"
	"github.com/mattjoyce/jenkins2gha/internal/simulate"
)

func sampleInput() Input {
	return Input{
		Report: &report.Report{
			Status:      report.StatusReview,
			Workflow:    "CI Pipeline",
			Fingerprint: "blake3:abc",
			Stats:       report.Stats{Jobs: 3, Actions: 2, ManualItems: 2},
			Stages: []report.Stage{
				{Name: "Build", JobID: "build", Path: ".github/actions/build/action.yml", Features: []string{"docker"}, Complexity: 3},
				{Name: "Deploy", JobID: "deploy", Complexity: 8, Manual: 2},
			},
			Manual: []report.ManualItem{
				{Stage: "Deploy", Item: "script block uses Groovy"},
				{Stage: "Deploy", Item: "input step needs an environment reviewer"},
			},
		},
		Plan: &simulate.Plan{
			Context: simulate.Context{Event: "push", Ref: "refs/heads/main"},
			Waves: []simulate.Wave{
				{Index: 0, Jobs: []simulate.Decision{{Job: "build", Run: true, State: simulate.StateSucceeded}}},
				{Index: 1, Jobs: []simulate.Decision{{Job: "deploy", Condition: "github.ref == 'refs/heads/main'", Run: true, State: simulate.StateSucceeded}}},
			},
		},
		Files: []output.File{
			{Path: ".github/workflows/ci.yml", Content: []byte("name: CI Pipeline\n")},
			{Path: ".github/actions/build/action.yml", Content: []byte("runs:\n  using: composite\n")},
		},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func TestReviewStartsOnStages(t *testing.T) {
	m := New(sampleInput())
	assert.Equal(t, ViewStages, m.Active())
	assert.Contains(t, m.Detail(), "Stage    : Build")
	assert.Contains(t, m.Detail(), "Features : docker")
	assert.Equal(t, "Loading review...", m.View())
}

func TestReviewCursorUpdatesDetail(t *testing.T) {
	m := New(sampleInput())
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, key(tea.KeyDown))

	detail := m.Detail()
	assert.Contains(t, detail, "Stage    : Deploy")
	assert.Contains(t, detail, "script block uses Groovy")

	view := m.View()
	assert.Contains(t, view, "CI Pipeline")
	assert.Contains(t, view, "NEEDS REVIEW")
}

func TestReviewTabsCycle(t *testing.T) {
	m := New(sampleInput())
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m = update(t, m, key(tea.KeyTab))
	assert.Equal(t, ViewPlan, m.Active())
	assert.Contains(t, m.Detail(), "Job       : build")

	m = update(t, m, key(tea.KeyDown))
	assert.Contains(t, m.Detail(), "Condition : github.ref == 'refs/heads/main'")

	m = update(t, m, key(tea.KeyTab))
	assert.Equal(t, ViewFiles, m.Active())
	assert.Equal(t, "name: CI Pipeline\n", m.Detail())

	m = update(t, m, key(tea.KeyTab))
	assert.Equal(t, ViewManual, m.Active())

	m = update(t, m, key(tea.KeyTab))
	assert.Equal(t, ViewStages, m.Active())

	m = update(t, m, key(tea.KeyShiftTab))
	assert.Equal(t, ViewManual, m.Active())
}

func TestReviewChecklistToggle(t *testing.T) {
	m := New(sampleInput())
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, key(tea.KeyShiftTab))
	require.Equal(t, ViewManual, m.Active())
	assert.Len(t, m.Pending(), 2)

	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.Len(t, m.Reviewed(), 1)
	assert.Equal(t, "script block uses Groovy", m.Reviewed()[0].Item)
	assert.Len(t, m.Pending(), 1)

	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Empty(t, m.Reviewed())
}

func TestReviewSpaceIgnoredOutsideChecklist(t *testing.T) {
	m := New(sampleInput())
	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Empty(t, m.Reviewed())
}

func TestReviewQuit(t *testing.T) {
	m := New(sampleInput())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestReviewEmptyInput(t *testing.T) {
	m := New(Input{})
	assert.Equal(t, "No stages.", m.Detail())
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, m.View(), "jenkins2gha review")
}
