package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"incrc/internal/analysis"
	"incrc/internal/callback"
	"incrc/internal/classfile"
	"incrc/internal/driver"
	"incrc/internal/stamp"
)

type fakePrevious struct{}

func (fakePrevious) SrcClassOfBinary(string) (string, bool) { return "", false }

type fakeLookup struct{}

func (fakeLookup) LookupExternalClass(string) (*analysis.AnalyzedClass, bool) { return nil, false }

func TestClassNameOf(t *testing.T) {
	tests := map[string]string{
		"A.scala":         "A",
		"pkg/sub/B.scala": "pkg.sub.B",
		"./C.scala":       "C",
	}
	for src, want := range tests {
		if got := classNameOf(src); got != want {
			t.Errorf("classNameOf(%q) = %q, want %q", src, got, want)
		}
	}
}

func TestReferenceCompileProducesApiAndClassFile(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	if err := os.WriteFile(filepath.Join(root, "A.scala"), []byte("class A"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cb := callback.New(callback.Options{StrictMode: true}, fakePrevious{}, fakeLookup{}, stamp.New(true))
	manager := classfile.New(classfile.DeleteImmediately, "")

	ref := NewReference(root, out)
	if err := ref.Compile(context.Background(), map[string]bool{"A.scala": true}, driver.DependencyChanges{}, cb, manager); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	input, ok := delta["A.scala"]
	if !ok {
		t.Fatal("expected a delta entry for A.scala")
	}
	if _, ok := input.Classes["A"]; !ok {
		t.Errorf("expected class A in delta, got %+v", input.Classes)
	}

	if _, err := os.Stat(filepath.Join(out, "A.class")); err != nil {
		t.Errorf("expected A.class to be written: %v", err)
	}
}

func TestReferenceCompilePropagatesCancellation(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "A.scala"), []byte("class A"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cb := callback.New(callback.Options{StrictMode: true}, fakePrevious{}, fakeLookup{}, stamp.New(true))
	manager := classfile.New(classfile.DeleteImmediately, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ref := NewReference(root, filepath.Join(root, "out"))
	err := ref.Compile(ctx, map[string]bool{"A.scala": true}, driver.DependencyChanges{}, cb, manager)
	if err == nil {
		t.Fatal("expected Compile to observe the cancelled context")
	}
}
