// Package manifest parses sources.toml, the repo-root file declaring the
// source set and classpath a driver run compiles.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// SourcesManifestFile is the default filename for the source declaration.
const SourcesManifestFile = "sources.toml"

// SourcesFile is the root structure of sources.toml.
type SourcesFile struct {
	Version   int      `toml:"version"`
	Sources   []string `toml:"sources"`
	Classpath []string `toml:"classpath"`
	OutputDir string   `toml:"output_dir"`
}

// Manifest is the resolved, repo-relative view of sources.toml that the
// driver CLI consumes: a glob-expanded source set plus classpath ordering.
type Manifest struct {
	Version   int
	Sources   map[string]bool
	Classpath []string
	OutputDir string
}

// Parse parses a sources.toml file at filePath.
func Parse(filePath string) (*SourcesFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(filePath), err)
	}

	var sf SourcesFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filePath), err)
	}

	if sf.Version < 1 {
		sf.Version = 1
	}
	if sf.OutputDir == "" {
		sf.OutputDir = "out"
	}
	return &sf, nil
}

// Load reads sources.toml from repoRoot and resolves its source patterns
// (plain repo-relative paths or filepath.Match globs) against the
// filesystem into a concrete source set.
func Load(repoRoot string) (*Manifest, error) {
	return LoadFrom(repoRoot, SourcesManifestFile)
}

// LoadFrom reads manifestFile (relative to repoRoot) instead of the
// default sources.toml, used by tests and by callers pointing at an
// alternate manifest.
func LoadFrom(repoRoot, manifestFile string) (*Manifest, error) {
	path := filepath.Join(repoRoot, manifestFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest: %s not found in %s", manifestFile, repoRoot)
	}

	sf, err := Parse(path)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]bool)
	for _, pattern := range sf.Sources {
		matches, err := resolvePattern(repoRoot, pattern)
		if err != nil {
			return nil, fmt.Errorf("manifest: invalid source pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			resolved[m] = true
		}
	}

	return &Manifest{
		Version:   sf.Version,
		Sources:   resolved,
		Classpath: append([]string(nil), sf.Classpath...),
		OutputDir: sf.OutputDir,
	}, nil
}

// resolvePattern expands a single sources.toml entry into repo-relative,
// slash-separated paths. An entry with no glob metacharacters is returned
// as-is without touching the filesystem, whether or not the file exists, so
// a manifest can declare not-yet-created sources for a scaffolding workflow.
func resolvePattern(repoRoot, pattern string) ([]string, error) {
	if !containsMeta(pattern) {
		return []string{filepath.ToSlash(pattern)}, nil
	}

	matches, err := filepath.Glob(filepath.Join(repoRoot, pattern))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(repoRoot, m)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

func containsMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}
