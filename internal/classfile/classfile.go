// Package classfile implements the class-file manager: a scoped
// resource that tracks generated and deleted build artifacts for one
// compile run and either commits or rolls them back at Complete.
package classfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"incrc/internal/errors"
)

// Policy selects how Delete behaves.
type Policy int

const (
	// DeleteImmediately unlinks on Delete; Complete is a no-op.
	DeleteImmediately Policy = iota
	// Transactional moves deleted files into a staging area and only
	// unlinks newly generated files on rollback.
	Transactional
)

// Manager is a scoped resource: `Generated(paths)`, `Delete(paths)`,
// `Complete(success)`. It lives for one full compile run across all
// invalidation cycles.
type Manager struct {
	policy     Policy
	stagingDir string // root under which per-run staging areas are created

	mu        sync.Mutex
	runID     string
	runDir    string
	generated map[string]bool
	staged    []StagedEntry
}

// New creates a Manager. stagingDir is only consulted under Transactional;
// it holds one subdirectory per run, named by a fresh run ID.
func New(policy Policy, stagingDir string) *Manager {
	return &Manager{
		policy:     policy,
		stagingDir: stagingDir,
		runID:      uuid.New().String(),
		generated:  make(map[string]bool),
	}
}

// Generated records that paths were newly written by the compile step.
// Under Transactional the staging manifest is rewritten immediately: a
// crash after the compiler emits class files but before the next Delete
// or Complete must still leave RecoverStaging enough to unlink them.
func (m *Manager) Generated(paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		m.generated[p] = true
	}
	if m.policy == DeleteImmediately {
		return nil
	}
	if err := m.ensureRunDirLocked(); err != nil {
		return err
	}
	return m.writeManifestLocked()
}

// Delete removes paths from the managed output set. Under
// DeleteImmediately they are unlinked at once; under Transactional they
// are moved into this run's staging area and restored if the run is later
// rolled back.
func (m *Manager) Delete(paths []string) error {
	if m.policy == DeleteImmediately {
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(errors.CompileFailed, "cannot delete "+p, err)
			}
		}
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureRunDirLocked(); err != nil {
		return err
	}

	for _, p := range paths {
		delete(m.generated, p)

		stagedPath := filepath.Join(m.runDir, fmt.Sprintf("%d", len(m.staged)))
		if err := os.Rename(p, stagedPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrap(errors.CompileFailed, "cannot stage "+p, err)
		}
		m.staged = append(m.staged, StagedEntry{OriginalPath: p, StagedPath: stagedPath})
	}

	return m.writeManifestLocked()
}

func (m *Manager) ensureRunDirLocked() error {
	if m.runDir != "" {
		return nil
	}
	dir := filepath.Join(m.stagingDir, m.runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.CompileFailed, "cannot create staging dir", err)
	}
	m.runDir = dir
	return nil
}

func (m *Manager) writeManifestLocked() error {
	generated := make([]string, 0, len(m.generated))
	for p := range m.generated {
		generated = append(generated, p)
	}
	man := Manifest{RunID: m.runID, Staged: m.staged, Generated: generated}
	path := filepath.Join(m.runDir, manifestName)
	if err := writeManifest(path, man); err != nil {
		return errors.Wrap(errors.CompileFailed, "cannot write staging manifest", err)
	}
	return nil
}

// Complete finalizes the run. On success (true) any staging area is
// discarded. On failure (false), under Transactional, every staged file is
// restored to its original path and every newly generated file is
// unlinked, so that the on-disk output set equals what was observed at
// Manager creation.
func (m *Manager) Complete(success bool) error {
	if m.policy == DeleteImmediately {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runDir == "" {
		return nil // nothing was ever staged or generated
	}

	if success {
		return os.RemoveAll(m.runDir)
	}

	// Unlink before restoring: a path deleted and regenerated within the
	// run appears in both sets, and the restored original must win. The
	// staged list is replayed newest-first so that when one path was staged
	// more than once, the pre-run copy (staged first) lands last.
	for p := range m.generated {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(errors.CompileFailed, "cannot unlink generated "+p, err)
		}
	}
	for i := len(m.staged) - 1; i >= 0; i-- {
		entry := m.staged[i]
		if err := os.Rename(entry.StagedPath, entry.OriginalPath); err != nil {
			return errors.Wrap(errors.CompileFailed, "cannot restore "+entry.OriginalPath, err)
		}
	}

	return os.RemoveAll(m.runDir)
}

// RecoverStaging inspects stagingDir on startup for run directories left
// behind by a crash between Delete and Complete, and restores each one.
// Restoration is idempotent: a run directory with nothing left to move is
// simply removed. Returns the run IDs that were recovered.
func RecoverStaging(stagingDir string) ([]string, error) {
	entries, err := os.ReadDir(stagingDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CompileFailed, "cannot read staging root", err)
	}

	var recovered []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runDir := filepath.Join(stagingDir, entry.Name())
		manifestPath := filepath.Join(runDir, manifestName)

		man, err := readManifest(manifestPath)
		if err != nil {
			// No readable manifest: nothing safe to do but leave it for
			// manual inspection.
			continue
		}

		for _, p := range man.Generated {
			_ = os.Remove(p)
		}
		for i := len(man.Staged) - 1; i >= 0; i-- {
			staged := man.Staged[i]
			if _, err := os.Stat(staged.StagedPath); err == nil {
				_ = os.Rename(staged.StagedPath, staged.OriginalPath)
			}
		}
		if err := os.RemoveAll(runDir); err != nil {
			return recovered, errors.Wrap(errors.CompileFailed, "cannot clean up staging dir", err)
		}
		recovered = append(recovered, man.RunID)
	}
	return recovered, nil
}
