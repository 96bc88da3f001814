// Package changes implements the change detector: given the previous
// Analysis and the current input set, computes added/removed/modified
// sources plus library and external-API deltas.
package changes

import (
	"incrc/internal/analysis"
	"incrc/internal/stamp"
)

// Lookup resolves an external binary name against the current classpath,
// used to detect externally-originated API changes.
type Lookup interface {
	LookupAnalysis(binaryName string) (*analysis.AnalyzedClass, bool)
}

// Changes is the output of one run of Detect: the raw deltas the
// invalidation engine turns into an initial invalidated set.
type Changes struct {
	Added             map[string]bool
	Removed           map[string]bool
	ModifiedSrc       map[string]bool
	LibraryDeltas     map[string]bool // library paths whose stamp changed or no longer resolve
	ExternalApiDeltas map[string]bool // binary class names whose apiHash/extraHash changed, that no longer resolve, or that have no previous record
}

// IsEmpty reports whether no deltas were found at all.
func (c Changes) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.ModifiedSrc) == 0 &&
		len(c.LibraryDeltas) == 0 && len(c.ExternalApiDeltas) == 0
}

// Detect computes Changes between previous and the current input set,
// using oracle to stamp current sources/libraries and lookup to resolve
// current external APIs.
func Detect(previous *analysis.Analysis, currentSources map[string]bool, oracle *stamp.Oracle, lookup Lookup) (Changes, error) {
	out := Changes{
		Added:             make(map[string]bool),
		Removed:           make(map[string]bool),
		ModifiedSrc:       make(map[string]bool),
		LibraryDeltas:     make(map[string]bool),
		ExternalApiDeltas: make(map[string]bool),
	}

	prevSources := previous.Sources()

	for s := range currentSources {
		if !prevSources[s] {
			out.Added[s] = true
		}
	}
	for s := range prevSources {
		if !currentSources[s] {
			out.Removed[s] = true
		}
	}

	for s := range currentSources {
		if !prevSources[s] {
			continue
		}
		prevStamp, _ := previous.SourceStamp(s)
		curStamp, err := oracle.Source(s)
		if err != nil {
			// StampUnavailable: treated as "changed".
			out.ModifiedSrc[s] = true
			continue
		}
		if !prevStamp.Equiv(curStamp) {
			out.ModifiedSrc[s] = true
		}
	}

	for _, libPath := range previous.LibPaths() {
		prevStamp, _ := previous.LibStamp(libPath)
		curStamp, err := oracle.Library(libPath)
		if err != nil {
			out.LibraryDeltas[libPath] = true // no longer resolves
			continue
		}
		if !prevStamp.Equiv(curStamp) {
			out.LibraryDeltas[libPath] = true
		}
	}

	referencedBinaries := make(map[string]bool)
	for _, srcClass := range allSrcClasses(previous) {
		for _, ctx := range depContexts {
			for _, binaryName := range previous.Relations().BinaryDepsFrom(srcClass, ctx) {
				referencedBinaries[binaryName] = true
			}
		}
	}

	for binaryName := range referencedBinaries {
		current, ok := lookup.LookupAnalysis(binaryName)
		if !ok {
			out.ExternalApiDeltas[binaryName] = true
			continue
		}
		prevClass, ok := previous.ExternalClass(binaryName)
		if !ok {
			out.ExternalApiDeltas[binaryName] = true
			continue
		}
		if prevClass.ApiHash != current.ApiHash || prevClass.ExtraHash != current.ExtraHash {
			out.ExternalApiDeltas[binaryName] = true
		}
	}

	return out, nil
}

var depContexts = []analysis.DependencyContext{
	analysis.DependencyByMemberRef,
	analysis.DependencyByInheritance,
	analysis.LocalDependencyByInheritance,
}

func allSrcClasses(a *analysis.Analysis) []string {
	var out []string
	for src := range a.Sources() {
		out = append(out, a.Relations().ClassesOf(src)...)
	}
	return out
}
