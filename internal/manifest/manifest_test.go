package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifestFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, SourcesManifestFile), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", SourcesManifestFile, err)
	}
}

func TestParseDefaultsVersionAndOutputDir(t *testing.T) {
	dir := t.TempDir()
	writeManifestFile(t, dir, `sources = ["A.scala"]`)

	sf, err := Parse(filepath.Join(dir, SourcesManifestFile))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sf.Version != 1 {
		t.Errorf("Version = %d, want 1", sf.Version)
	}
	if sf.OutputDir != "out" {
		t.Errorf("OutputDir = %q, want out", sf.OutputDir)
	}
}

func TestLoadResolvesPlainPaths(t *testing.T) {
	dir := t.TempDir()
	writeManifestFile(t, dir, `
version = 1
sources = ["src/pkg/A.scala", "src/pkg/B.scala"]
classpath = ["lib/foo.jar", "lib/bar.jar"]
output_dir = "build"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Sources) != 2 || !m.Sources["src/pkg/A.scala"] || !m.Sources["src/pkg/B.scala"] {
		t.Errorf("Sources = %v", m.Sources)
	}
	if len(m.Classpath) != 2 || m.Classpath[0] != "lib/foo.jar" {
		t.Errorf("Classpath = %v", m.Classpath)
	}
	if m.OutputDir != "build" {
		t.Errorf("OutputDir = %q, want build", m.OutputDir)
	}
}

func TestLoadResolvesGlobPatterns(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", "pkg"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, name := range []string{"A.scala", "B.scala"} {
		if err := os.WriteFile(filepath.Join(dir, "src", "pkg", name), []byte("class"), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	writeManifestFile(t, dir, `sources = ["src/pkg/*.scala"]`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Sources) != 2 {
		t.Fatalf("expected 2 resolved sources, got %d: %v", len(m.Sources), m.Sources)
	}
	if !m.Sources["src/pkg/A.scala"] || !m.Sources["src/pkg/B.scala"] {
		t.Errorf("Sources = %v", m.Sources)
	}
}

func TestLoadMissingManifestFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a missing sources.toml")
	}
}

func TestLoadFromAlternatePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.toml"), []byte(`sources = ["A.scala"]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := LoadFrom(dir, "custom.toml")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !m.Sources["A.scala"] {
		t.Errorf("Sources = %v", m.Sources)
	}
}
