package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// CanonicalizePath converts an absolute path to a repo-relative canonical path:
//   - Resolves symlinks to real paths
//   - Makes path relative to repo root
//   - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			repoRootResolved = repoRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRepo checks if a path is within the repository root.
func IsWithinRepo(path string, repoRoot string) bool {
	canonical, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(canonical, "..")
}

// NormalizePath normalizes a path by converting backslashes to forward slashes.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// JoinRepoPath joins a repo root with a canonical (forward-slash) path.
func JoinRepoPath(repoRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}

// FindRepoRoot returns the current working directory as the compile root.
func FindRepoRoot() (string, error) {
	return os.Getwd()
}

// DefaultDataDir is the project-local directory holding staging, the
// persisted Analysis database, and config.
const DefaultDataDir = ".incrc"

// StagingDir returns the class-file manager's staging directory for repoRoot.
func StagingDir(repoRoot string) string {
	return filepath.Join(repoRoot, DefaultDataDir, "staging")
}

// AnalysisDBPath returns the path to the persisted Analysis database.
func AnalysisDBPath(repoRoot string) string {
	return filepath.Join(repoRoot, DefaultDataDir, "analysis.db")
}

// EnsureDataDir creates repoRoot's .incrc directory if it doesn't exist.
func EnsureDataDir(repoRoot string) (string, error) {
	dir := filepath.Join(repoRoot, DefaultDataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
