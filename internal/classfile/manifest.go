package classfile

import (
	"os"

	"github.com/BurntSushi/toml"
)

// manifestName is the file written into a run's staging directory so that
// a crash between Delete and Complete can be recovered on next startup.
const manifestName = "MANIFEST.toml"

// StagedEntry is one file moved into the staging area by Delete: the
// original on-disk path and where its bytes were relocated to.
type StagedEntry struct {
	OriginalPath string `toml:"original_path"`
	StagedPath   string `toml:"staged_path"`
}

// Manifest records everything a transactional run needs to either discard
// its staging area (commit) or restore it (rollback), even if the process
// crashes before Complete runs.
type Manifest struct {
	RunID     string        `toml:"run_id"`
	Staged    []StagedEntry `toml:"staged"`
	Generated []string      `toml:"generated"`
}

func writeManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(m)
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	_, err := toml.DecodeFile(path, &m)
	return m, err
}
