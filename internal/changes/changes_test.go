package changes

import (
	"os"
	"path/filepath"
	"testing"

	"incrc/internal/analysis"
	"incrc/internal/stamp"
)

type fakeLookup struct {
	known map[string]*analysis.AnalyzedClass
}

func (f fakeLookup) LookupAnalysis(binaryName string) (*analysis.AnalyzedClass, bool) {
	c, ok := f.known[binaryName]
	return c, ok
}

func writeSrc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func analysisWithSource(t *testing.T, path string, oracle *stamp.Oracle) *analysis.Analysis {
	t.Helper()
	s, err := oracle.Source(path)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	a, err := analysis.Empty().AddSource(analysis.SourceInput{
		Source: path,
		Stamp:  s,
		Classes: map[string]*analysis.AnalyzedClass{
			"pkg.A": {SrcClassName: "pkg.A"},
		},
	})
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	return a
}

func TestDetectAddedAndRemoved(t *testing.T) {
	dir := t.TempDir()
	oracle := stamp.New(true)

	a := writeSrc(t, dir, "A.scala", "object A")
	prev := analysisWithSource(t, a, oracle)

	b := writeSrc(t, dir, "B.scala", "object B")
	current := map[string]bool{b: true}

	result, err := Detect(prev, current, oracle, fakeLookup{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !result.Added[b] {
		t.Error("B.scala should be Added")
	}
	if !result.Removed[a] {
		t.Error("A.scala should be Removed")
	}
}

func TestDetectModifiedSrc(t *testing.T) {
	dir := t.TempDir()
	oracle := stamp.New(true)

	a := writeSrc(t, dir, "A.scala", "object A")
	prev := analysisWithSource(t, a, oracle)

	if err := os.WriteFile(a, []byte("object A2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Detect runs against a fresh Oracle, as each driver run does.
	result, err := Detect(prev, map[string]bool{a: true}, stamp.New(true), fakeLookup{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !result.ModifiedSrc[a] {
		t.Error("A.scala should be ModifiedSrc after content change")
	}
	if result.IsEmpty() {
		t.Error("Changes should not report IsEmpty when a source was modified")
	}
}

func TestDetectUnmodifiedSrcProducesNoDelta(t *testing.T) {
	dir := t.TempDir()
	oracle := stamp.New(true)

	a := writeSrc(t, dir, "A.scala", "object A")
	prev := analysisWithSource(t, a, oracle)

	result, err := Detect(prev, map[string]bool{a: true}, oracle, fakeLookup{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !result.IsEmpty() {
		t.Errorf("expected no deltas for an untouched source, got %+v", result)
	}
}

func TestDetectLibraryDeltaOnNoLongerResolving(t *testing.T) {
	dir := t.TempDir()
	oracle := stamp.New(true)

	a := writeSrc(t, dir, "A.scala", "object A")
	prev := analysisWithSource(t, a, oracle)

	libPath := filepath.Join(dir, "lib.jar")
	if err := os.WriteFile(libPath, []byte("jar bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	libStamp, err := oracle.Library(libPath)
	if err != nil {
		t.Fatalf("Library: %v", err)
	}
	prev = prev.WithLibStamp(libPath, libStamp)

	if err := os.Remove(libPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	result, err := Detect(prev, map[string]bool{a: true}, stamp.New(true), fakeLookup{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !result.LibraryDeltas[libPath] {
		t.Error("a library that no longer resolves should be reported in LibraryDeltas")
	}
}

func TestDetectExternalApiDeltaOnHashChange(t *testing.T) {
	dir := t.TempDir()
	oracle := stamp.New(true)

	a := writeSrc(t, dir, "A.scala", "object A")
	s, err := oracle.Source(a)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	prevExternal := &analysis.AnalyzedClass{SrcClassName: "ext.Lib", ApiHash: 1}
	prev, err := analysis.Empty().AddSource(analysis.SourceInput{
		Source:  a,
		Stamp:   s,
		Classes: map[string]*analysis.AnalyzedClass{"pkg.A": {SrcClassName: "pkg.A"}},
		ExternalDeps: []analysis.ExternalDependency{
			{FromSrcClass: "pkg.A", ToBinaryClass: "ext/Lib.class", ToAnalyzedClass: prevExternal, Context: analysis.DependencyByMemberRef},
		},
	})
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	currentExternal := &analysis.AnalyzedClass{SrcClassName: "ext.Lib", ApiHash: 2}
	lookup := fakeLookup{known: map[string]*analysis.AnalyzedClass{"ext/Lib.class": currentExternal}}

	result, err := Detect(prev, map[string]bool{a: true}, oracle, lookup)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !result.ExternalApiDeltas["ext/Lib.class"] {
		t.Error("a changed external apiHash should be reported in ExternalApiDeltas")
	}
}
