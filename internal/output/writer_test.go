package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/jenkins2gha/internal/convert"
)

func TestWriteCreatesFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := NewFSWriter(root, Options{})
	require.NoError(t, err)

	m, err := w.Write(context.Background(), []File{
		{Path: ".github/workflows/ci.yml", Content: []byte("name: CI\n")},
		{Path: ".github/actions/build/action.yml", Content: []byte("name: Build\n")},
	})
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, ChangeCreate, m.Entries[0].Change)

	b, err := os.ReadFile(filepath.Join(root, ".github", "actions", "build", "action.yml"))
	require.NoError(t, err)
	assert.Equal(t, "name: Build\n", string(b))

	_, err = os.Stat(filepath.Join(root, LockName))
	assert.True(t, os.IsNotExist(err), "lock file is removed after the write")
}

func TestWriteRefusesToOverwriteWithoutForce(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	target := filepath.Join(root, "ci.yml")
	require.NoError(t, os.WriteFile(target, []byte("old\n"), 0o644))

	w, err := NewFSWriter(root, Options{})
	require.NoError(t, err)
	_, err = w.Write(context.Background(), []File{
		{Path: "new.yml", Content: []byte("x\n")},
		{Path: "ci.yml", Content: []byte("new\n")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	_, statErr := os.Stat(filepath.Join(root, "new.yml"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written when a file is rejected")

	same, err := w.Write(context.Background(), []File{{Path: "ci.yml", Content: []byte("old\n")}})
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, same.Entries[0].Change)

	forced, err := NewFSWriter(root, Options{Force: true})
	require.NoError(t, err)
	m, err := forced.Write(context.Background(), []File{{Path: "ci.yml", Content: []byte("new\n")}})
	require.NoError(t, err)
	assert.Equal(t, ChangeOverwrite, m.Entries[0].Change)
	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(b))
}

func TestWriteDryRunTouchesNothing(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "out")
	w, err := NewFSWriter(root, Options{DryRun: true})
	require.NoError(t, err)

	m, err := w.Write(context.Background(), []File{{Path: ".github/workflows/ci.yml", Content: []byte("a")}})
	require.NoError(t, err)
	assert.True(t, m.DryRun)
	assert.Equal(t, 1, m.Entries[0].Bytes)

	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRejectsEscapingPaths(t *testing.T) {
	t.Parallel()
	w, err := NewFSWriter(t.TempDir(), Options{})
	require.NoError(t, err)

	for _, p := range []string{"", "/etc/passwd", "../x.yml", "a/../../x", `a\b.yml`, "./a.yml"} {
		_, err := w.Write(context.Background(), []File{{Path: p, Content: []byte("x")}})
		assert.Error(t, err, "path %q", p)
	}
}

func TestDirLockIsExclusive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l, err := acquireDirLock(dir)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, LockName))
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(b)))

	_, err = acquireDirLock(dir)
	assert.ErrorContains(t, err, "locked by another conversion")

	require.NoError(t, l.release())
	again, err := acquireDirLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.release())
}

func TestRenderConversion(t *testing.T) {
	t.Parallel()
	res, err := convert.New(convert.DefaultOptions(), nil).Convert(`
pipeline {
    agent any
    stages {
        stage('Build') { steps { sh 'make' } }
    }
}`)
	require.NoError(t, err)

	files, err := Render(res, ".github/workflows/ci.yml")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, ".github/workflows/ci.yml", files[0].Path)
	assert.Contains(t, string(files[0].Content), "uses: ./.github/actions/build")
	assert.Equal(t, ".github/actions/build/action.yml", files[1].Path)
	assert.Contains(t, string(files[1].Content), "using: composite")
}
