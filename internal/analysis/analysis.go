package analysis

import (
	"fmt"

	"incrc/internal/errors"
	"incrc/internal/stamp"
)

// Compilation records one compile step's identity, for the "compilations"
// half of an Analysis.
type Compilation struct {
	StartTimeNanos int64
	Sources        []string
}

// Analysis is an immutable snapshot of {stamps, apis, relations, infos,
// compilations}. It is never mutated in place; every operation returns a
// new Analysis.
type Analysis struct {
	stamps       map[string]stamp.Stamp // source path -> stamp
	productStamps map[string]stamp.Stamp // product path -> stamp
	libStamps    map[string]stamp.Stamp // library path -> stamp
	apis         map[string]ApiInfo     // srcClass -> ApiInfo
	infos        map[string]*AnalyzedClass // srcClass -> AnalyzedClass
	sourceInfos  map[string]SourceInfo  // source path -> diagnostics + main classes
	relations    *Relations
	compilations []Compilation
	// externalClasses caches the AnalyzedClass last observed for each
	// external binary name this Analysis depends on, so the change
	// detector can compare against the classpath's current state without
	// recontacting the compiler.
	externalClasses map[string]*AnalyzedClass
}

// Empty returns an Analysis with no sources, suitable as the starting
// point for a clean build.
func Empty() *Analysis {
	return &Analysis{
		stamps:          make(map[string]stamp.Stamp),
		productStamps:   make(map[string]stamp.Stamp),
		libStamps:       make(map[string]stamp.Stamp),
		apis:            make(map[string]ApiInfo),
		infos:           make(map[string]*AnalyzedClass),
		sourceInfos:     make(map[string]SourceInfo),
		relations:       NewRelations(),
		externalClasses: make(map[string]*AnalyzedClass),
	}
}

// NonLocalProduct ties one emitted class file to the binary class name it
// exports and the srcClass that produced it.
type NonLocalProduct struct {
	SrcClassName string
	BinaryName   string
	Path         string
}

// SourceInput bundles everything addSource needs for one source,
// assembled by the callback's get() from its per-cycle bookkeeping.
type SourceInput struct {
	Source           string
	Stamp            stamp.Stamp
	Info             SourceInfo
	Classes          map[string]*AnalyzedClass // srcClassName -> record
	Apis             map[string]ApiInfo        // srcClassName -> info
	NonLocalProducts []NonLocalProduct
	LocalProducts    []string // product paths with no owning srcClass exposure
	InternalDeps     []InternalDependency
	ExternalDeps     []ExternalDependency
	LibDeps          []string
	UsedNames        map[string][]UsedName // srcClassName -> used names
}

// AddSource returns a new Analysis with input folded in. It is purely
// additive: callers that need to replace an existing source's record
// wholesale build the replacement in a fresh Analysis and fold it in with
// Merge, whose other-wins-on-conflict rule implements that replacement
// without disturbing unrelated sources' dependency edges onto the
// replaced classes. A non-local product's binary class name must not
// already be bound to a different srcClass.
func (a *Analysis) AddSource(input SourceInput) (*Analysis, error) {
	out := a.clone()

	out.stamps[input.Source] = input.Stamp
	out.sourceInfos[input.Source] = input.Info

	for srcClass, rec := range input.Classes {
		out.relations.addClass(input.Source, srcClass)
		out.infos[srcClass] = rec
	}
	for srcClass, info := range input.Apis {
		out.apis[srcClass] = info
	}
	for _, p := range input.NonLocalProducts {
		out.relations.addProduct(input.Source, p.Path)
		if boundSrc, bound := out.relations.SrcClassOfBinary(p.BinaryName); bound && boundSrc != p.SrcClassName {
			return nil, errors.New(errors.InconsistentAnalysis,
				fmt.Sprintf("binary class name %q already bound to %q, cannot bind to %q", p.BinaryName, boundSrc, p.SrcClassName))
		}
		out.relations.setProductClassName(p.SrcClassName, p.BinaryName)
	}
	for _, p := range input.LocalProducts {
		out.relations.addProduct(input.Source, p)
	}
	for _, dep := range input.InternalDeps {
		if dep.FromSrcClass == dep.ToSrcClass {
			continue // no self-deps
		}
		out.relations.addClassDep(dep.FromSrcClass, dep.ToSrcClass, dep.Context)
	}
	for _, dep := range input.ExternalDeps {
		out.relations.addBinaryDep(dep.FromSrcClass, dep.ToBinaryClass, dep.Context)
		if dep.ToAnalyzedClass != nil {
			out.externalClasses[dep.ToBinaryClass] = dep.ToAnalyzedClass
		}
	}
	for _, lib := range input.LibDeps {
		out.relations.addLibDep(input.Source, lib)
	}
	for srcClass, names := range input.UsedNames {
		for _, un := range names {
			for scope := range un.Scopes {
				out.relations.addUsedName(srcClass, un.Name, scope)
			}
		}
	}

	return out, nil
}

// Drop returns a new Analysis with the given sources (and everything keyed
// under them) removed.
func (a *Analysis) Drop(sources map[string]bool) *Analysis {
	out := a.clone()
	out.dropSourcesInPlace(sources)
	return out
}

func (out *Analysis) dropSourcesInPlace(sources map[string]bool) {
	for src := range sources {
		for class := range out.relations.srcToClasses[src] {
			delete(out.apis, class)
			delete(out.infos, class)
		}
		delete(out.stamps, src)
		delete(out.sourceInfos, src)
	}
	out.relations = out.relations.withoutSources(sources)
}

// Merge returns a new Analysis combining a and other. Merging is
// commutative only for non-conflicting sources: where both contain a
// source S, other wins wholesale, used when a source is recompiled and
// the callback's delta replaces the prior record.
func (a *Analysis) Merge(other *Analysis) *Analysis {
	out := a.clone()

	conflicting := make(map[string]bool)
	for src := range other.stamps {
		if _, ok := out.stamps[src]; ok {
			conflicting[src] = true
		}
	}
	if len(conflicting) > 0 {
		out.dropSourcesInPlace(conflicting)
	}

	for src, s := range other.stamps {
		out.stamps[src] = s
	}
	for src, info := range other.sourceInfos {
		out.sourceInfos[src] = info
	}
	for path, s := range other.productStamps {
		out.productStamps[path] = s
	}
	for path, s := range other.libStamps {
		out.libStamps[path] = s
	}
	for class, info := range other.apis {
		out.apis[class] = info
	}
	for class, rec := range other.infos {
		out.infos[class] = rec
	}
	for binaryName, rec := range other.externalClasses {
		out.externalClasses[binaryName] = rec
	}
	out.relations = mergeRelations(out.relations, other.relations)
	out.compilations = append(out.compilations, other.compilations...)
	return out
}

func mergeRelations(base, incoming *Relations) *Relations {
	merged := base.clone()
	for src, classes := range incoming.srcToClasses {
		for class := range classes {
			merged.addClass(src, class)
		}
	}
	for src, products := range incoming.srcToProducts {
		for p := range products {
			merged.addProduct(src, p)
		}
	}
	for src, libs := range incoming.srcToLibDeps {
		for l := range libs {
			merged.addLibDep(src, l)
		}
	}
	for ctx, fwd := range incoming.classDepsFwd {
		for from, tos := range fwd {
			for to := range tos {
				merged.addClassDep(from, to, ctx)
			}
		}
	}
	for ctx, fwd := range incoming.binaryDepsFwd {
		for from, tos := range fwd {
			for to := range tos {
				merged.addBinaryDep(from, to, ctx)
			}
		}
	}
	for srcClass, binary := range incoming.srcClassToBinary {
		merged.setProductClassName(srcClass, binary)
	}
	for srcClass, names := range incoming.usedNames {
		for _, un := range names {
			for scope := range un.Scopes {
				merged.addUsedName(srcClass, un.Name, scope)
			}
		}
	}
	return merged
}

// clone returns a shallow-structural copy whose maps are independent of a's,
// so that callers can mutate the copy freely before publishing it.
func (a *Analysis) clone() *Analysis {
	out := &Analysis{
		stamps:        make(map[string]stamp.Stamp, len(a.stamps)),
		productStamps: make(map[string]stamp.Stamp, len(a.productStamps)),
		libStamps:     make(map[string]stamp.Stamp, len(a.libStamps)),
		apis:            make(map[string]ApiInfo, len(a.apis)),
		infos:           make(map[string]*AnalyzedClass, len(a.infos)),
		sourceInfos:     make(map[string]SourceInfo, len(a.sourceInfos)),
		relations:       a.relations.clone(),
		compilations:    append([]Compilation(nil), a.compilations...),
		externalClasses: make(map[string]*AnalyzedClass, len(a.externalClasses)),
	}
	for k, v := range a.stamps {
		out.stamps[k] = v
	}
	for k, v := range a.productStamps {
		out.productStamps[k] = v
	}
	for k, v := range a.libStamps {
		out.libStamps[k] = v
	}
	for k, v := range a.apis {
		out.apis[k] = v
	}
	for k, v := range a.infos {
		out.infos[k] = v
	}
	for k, v := range a.sourceInfos {
		out.sourceInfos[k] = v
	}
	for k, v := range a.externalClasses {
		out.externalClasses[k] = v
	}
	return out
}

// ExternalClass returns the last-observed AnalyzedClass for an external
// binary name this Analysis depends on, if any.
func (a *Analysis) ExternalClass(binaryName string) (*AnalyzedClass, bool) {
	c, ok := a.externalClasses[binaryName]
	return c, ok
}

// SrcClassOfBinary delegates to the underlying Relations, so an *Analysis
// itself satisfies the callback package's PreviousAnalysis interface.
func (a *Analysis) SrcClassOfBinary(binaryName string) (string, bool) {
	return a.relations.SrcClassOfBinary(binaryName)
}

// Sources returns the set of sources currently recorded.
func (a *Analysis) Sources() map[string]bool {
	out := make(map[string]bool, len(a.stamps))
	for s := range a.stamps {
		out[s] = true
	}
	return out
}

// SourceInfoOf returns the diagnostics and main classes recorded for src.
func (a *Analysis) SourceInfoOf(src string) (SourceInfo, bool) {
	info, ok := a.sourceInfos[src]
	return info, ok
}

// SourceStamp returns the stamp recorded for src, and whether it is present.
func (a *Analysis) SourceStamp(src string) (stamp.Stamp, bool) {
	s, ok := a.stamps[src]
	return s, ok
}

// Api returns the ApiInfo recorded for srcClass, and whether it is present.
func (a *Analysis) Api(srcClass string) (ApiInfo, bool) {
	info, ok := a.apis[srcClass]
	return info, ok
}

// ClassInfo returns the AnalyzedClass recorded for srcClass.
func (a *Analysis) ClassInfo(srcClass string) (*AnalyzedClass, bool) {
	rec, ok := a.infos[srcClass]
	return rec, ok
}

// Relations returns the relations held by this Analysis. The returned
// value must be treated as read-only by callers.
func (a *Analysis) Relations() *Relations {
	return a.relations
}

// LibStamp returns the stamp recorded for a library entry at path.
func (a *Analysis) LibStamp(path string) (stamp.Stamp, bool) {
	s, ok := a.libStamps[path]
	return s, ok
}

// WithLibStamp returns a new Analysis with path's library stamp recorded.
func (a *Analysis) WithLibStamp(path string, s stamp.Stamp) *Analysis {
	out := a.clone()
	out.libStamps[path] = s
	return out
}

// LibPaths returns every library path with a recorded stamp.
func (a *Analysis) LibPaths() []string {
	out := make([]string, 0, len(a.libStamps))
	for p := range a.libStamps {
		out = append(out, p)
	}
	return out
}

// RecordCompilation appends a compilation record, returning a new Analysis.
func (a *Analysis) RecordCompilation(c Compilation) *Analysis {
	out := a.clone()
	out.compilations = append(out.compilations, c)
	return out
}

// Compilations returns the recorded compilation history.
func (a *Analysis) Compilations() []Compilation {
	return append([]Compilation(nil), a.compilations...)
}
