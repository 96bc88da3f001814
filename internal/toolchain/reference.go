// Package toolchain provides Reference, a minimal driver.CompileFunc
// implementation. The compiler frontend proper (parsing and API
// extraction) is supplied externally; Reference is the stand-in that lets
// cmd/incrc run the driver end-to-end without committing this module to a
// parser for any one source language. A real frontend satisfies
// driver.CompileFunc directly and replaces it.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"incrc/internal/callback"
	"incrc/internal/classfile"
	"incrc/internal/driver"
	"incrc/internal/hashing"
)

// Reference compiles each source into exactly one top-level class named
// by classNameOf (the source's directory dot-joined with its base filename,
// extension dropped), with a public API hash derived from the
// file's full content. It performs no member-level dependency extraction,
// so ClassDependency/BinaryDependency are never called; every source is
// treated as self-contained.
type Reference struct {
	RepoRoot  string
	OutputDir string
}

// NewReference creates a Reference rooted at repoRoot, writing class files
// under outputDir (repo-relative or absolute).
func NewReference(repoRoot, outputDir string) *Reference {
	return &Reference{RepoRoot: repoRoot, OutputDir: outputDir}
}

// Compile implements driver.CompileFunc.
func (r *Reference) Compile(ctx context.Context, sources map[string]bool, _ driver.DependencyChanges, cb *callback.Callback, manager *classfile.Manager) error {
	for src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.compileOne(src, cb, manager); err != nil {
			return fmt.Errorf("toolchain: compiling %s: %w", src, err)
		}
	}
	return nil
}

func (r *Reference) compileOne(src string, cb *callback.Callback, manager *classfile.Manager) error {
	if err := cb.StartSource(src); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(r.RepoRoot, src))
	if err != nil {
		return err
	}

	className := classNameOf(src)
	sigHash := hashing.Hash64(data)

	cb.Api(src, className, callback.ClassShape{
		Kind:          callback.ClassDef,
		PublicMembers: []string{fmt.Sprintf("sig:%d", sigHash)},
	})

	outPath := filepath.Join(r.OutputDir, strings.ReplaceAll(className, ".", string(filepath.Separator))+".class")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, []byte(fmt.Sprintf("class %s compiled from %s\n", className, src)), 0o644); err != nil {
		return err
	}
	if err := manager.Generated([]string{outPath}); err != nil {
		return err
	}

	cb.GeneratedNonLocalClass(src, outPath, className, className)
	return nil
}

// classNameOf derives a source class name from a repo-relative source path:
// the base filename without its extension, dot-joined to its directory so
// two sources named the same in different directories don't collide.
func classNameOf(src string) string {
	dir := filepath.Dir(src)
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "." || dir == "" {
		return name
	}
	pkg := strings.ReplaceAll(filepath.ToSlash(dir), "/", ".")
	return pkg + "." + name
}
