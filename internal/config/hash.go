package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile is written next to a locked config.
const ChecksumFile = ".checksums"

// ChecksumManifest pins the content of config files by base name.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// HashFile returns the hex BLAKE3 digest of a file.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Lock writes a .checksums manifest into each directory holding one of
// files and returns the manifest paths.
func Lock(files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no config files to lock")
	}
	dirs, byDir := groupByDir(files)
	var written []string
	for _, dir := range dirs {
		m := ChecksumManifest{
			Version:     1,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Hashes:      map[string]string{},
		}
		for _, f := range byDir[dir] {
			h, err := HashFile(f)
			if err != nil {
				return written, err
			}
			m.Hashes[filepath.Base(f)] = h
		}
		data, err := yaml.Marshal(m)
		if err != nil {
			return written, fmt.Errorf("marshal checksums: %w", err)
		}
		out := filepath.Join(dir, ChecksumFile)
		if err := os.WriteFile(out, data, 0o600); err != nil {
			return written, fmt.Errorf("write checksums: %w", err)
		}
		written = append(written, out)
	}
	return written, nil
}

func groupByDir(files []string) ([]string, map[string][]string) {
	byDir := map[string][]string{}
	for _, f := range files {
		byDir[filepath.Dir(f)] = append(byDir[filepath.Dir(f)], f)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, byDir
}

// verifyChecksums checks files against the manifest in their directory.
// Directories without a manifest are not checked.
func verifyChecksums(files []string) error {
	dirs, byDir := groupByDir(files)
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, ChecksumFile))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read checksums in %s: %w", dir, err)
		}
		var m ChecksumManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("parse checksums in %s: %w", dir, err)
		}
		if m.Version != 1 {
			return fmt.Errorf("unsupported checksums version %d in %s", m.Version, dir)
		}
		for _, f := range byDir[dir] {
			want, ok := m.Hashes[filepath.Base(f)]
			if !ok {
				return fmt.Errorf("config file %s has no hash in %s\n"+
					"Run: jenkins2gha config lock", f, ChecksumFile)
			}
			got, err := HashFile(f)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("config file %s changed since it was locked\n"+
					"If you edited it intentionally, run: jenkins2gha config lock", f)
			}
		}
	}
	return nil
}
