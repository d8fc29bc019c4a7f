// Package output persists a conversion as workflow and composite action
// files under a repository root.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/jenkins2gha/internal/convert"
	"github.com/mattjoyce/jenkins2gha/internal/gha"
)

// ErrExists is returned when a target file exists with different content
// and Force is not set.
var ErrExists = errors.New("file already exists")

// File change kinds reported in a Manifest.
const (
	ChangeCreate    = "create"
	ChangeOverwrite = "overwrite"
	ChangeUnchanged = "unchanged"
)

// File is one rendered file, addressed relative to the output root.
type File struct {
	Path    string
	Content []byte
}

// Entry records what Write did (or would do) for one file.
type Entry struct {
	Path   string `json:"path"`
	Bytes  int    `json:"bytes"`
	Change string `json:"change"`
}

// Manifest lists every file of one write, in write order.
type Manifest struct {
	Root    string  `json:"root"`
	DryRun  bool    `json:"dry_run"`
	Entries []Entry `json:"files"`
}

// Writer persists rendered files.
type Writer interface {
	Write(ctx context.Context, files []File) (Manifest, error)
}

// Options controls a filesystem writer.
type Options struct {
	// Force overwrites files whose content differs.
	Force bool
	// DryRun computes the manifest without touching the disk.
	DryRun bool
}

type fsWriter struct {
	root string
	opts Options
}

var _ Writer = (*fsWriter)(nil)

// NewFSWriter returns a writer rooted at dir.
func NewFSWriter(dir string, opts Options) (*fsWriter, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	return &fsWriter{root: filepath.Clean(trimmed), opts: opts}, nil
}

// Render turns a conversion into the files it consists of: the workflow
// at workflowPath followed by each action.yml.
func Render(res *convert.Result, workflowPath string) ([]File, error) {
	wf, err := gha.Marshal(res.Workflow)
	if err != nil {
		return nil, fmt.Errorf("render workflow: %w", err)
	}
	files := []File{{Path: workflowPath, Content: wf}}
	for _, a := range res.Actions {
		data, err := gha.Marshal(a.Action)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", a.Path, err)
		}
		files = append(files, File{Path: a.Path, Content: data})
	}
	return files, nil
}

// Write plans every file first, then writes them under the directory
// lock. Nothing is written when any file is rejected.
func (w *fsWriter) Write(ctx context.Context, files []File) (Manifest, error) {
	m := Manifest{Root: w.root, DryRun: w.opts.DryRun}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		target, err := w.target(f.Path)
		if err != nil {
			return m, err
		}
		change, err := w.change(target, f.Content)
		if err != nil {
			return m, err
		}
		m.Entries = append(m.Entries, Entry{Path: f.Path, Bytes: len(f.Content), Change: change})
	}
	if w.opts.DryRun {
		return m, nil
	}

	lock, err := acquireDirLock(w.root)
	if err != nil {
		return m, err
	}
	defer func() { _ = lock.release() }()

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		if m.Entries[i].Change == ChangeUnchanged {
			continue
		}
		target, _ := w.target(f.Path)
		if err := writeAtomic(target, f.Content); err != nil {
			return m, fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return m, nil
}

func (w *fsWriter) change(target string, content []byte) (string, error) {
	existing, err := os.ReadFile(target)
	switch {
	case os.IsNotExist(err):
		return ChangeCreate, nil
	case err != nil:
		return "", fmt.Errorf("read %s: %w", target, err)
	case bytes.Equal(existing, content):
		return ChangeUnchanged, nil
	case !w.opts.Force:
		return "", fmt.Errorf("%s: %w (use --force to overwrite)", target, ErrExists)
	default:
		return ChangeOverwrite, nil
	}
}

func (w *fsWriter) target(rel string) (string, error) {
	if err := validatePath(rel); err != nil {
		return "", err
	}
	return filepath.Join(w.root, filepath.FromSlash(rel)), nil
}

func validatePath(rel string) error {
	trimmed := strings.TrimSpace(rel)
	if trimmed == "" {
		return fmt.Errorf("file path is empty")
	}
	if path.IsAbs(trimmed) || strings.Contains(trimmed, `\`) {
		return fmt.Errorf("file path %q must be relative with forward slashes", rel)
	}
	clean := path.Clean(trimmed)
	if clean != trimmed || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("file path %q is invalid", rel)
	}
	return nil
}

func writeAtomic(target string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
