// Package invalidate implements the invalidation engine: seeds the
// invalidated set from detected changes, then recomputes it after each
// compile cycle from actual API-hash deltas via name-hashing rules.
package invalidate

import (
	"incrc/internal/analysis"
	"incrc/internal/changes"
)

var depContexts = []analysis.DependencyContext{
	analysis.DependencyByMemberRef,
	analysis.DependencyByInheritance,
	analysis.LocalDependencyByInheritance,
}

// InitialSeed computes the initial invalidated class and source sets from
// a Changes value: the classes of added, modified, and removed sources,
// plus the srcClasses implicated by LibraryDeltas and ExternalApiDeltas.
//
// Dependents of a modified source are NOT invalidated here: whether they
// need recompiling depends on whether the modified source's API actually
// changed, which is only knowable after it recompiles. Propagation to
// dependents happens per cycle in ExpandFromApiChanges. The exception is
// removed sources: their classes are gone wholesale, there is no
// recompile coming that could prove dependents unaffected, so every
// direct dependent is invalidated now.
func InitialSeed(ch changes.Changes, previous *analysis.Analysis) (invalidatedClasses, invalidatedSources map[string]bool) {
	invalidatedClasses = make(map[string]bool)

	addSourceClasses := func(sources map[string]bool) {
		for src := range sources {
			for _, class := range previous.Relations().ClassesOf(src) {
				invalidatedClasses[class] = true
			}
		}
	}
	addSourceClasses(ch.Added)
	addSourceClasses(ch.ModifiedSrc)
	addSourceClasses(ch.Removed)

	for src := range ch.Removed {
		for _, class := range previous.Relations().ClassesOf(src) {
			for _, ctx := range depContexts {
				for _, dependent := range previous.Relations().ClassDepsOnto(class, ctx) {
					invalidatedClasses[dependent] = true
				}
			}
		}
	}

	for libPath := range ch.LibraryDeltas {
		addSourceClasses(boolSet(previous.Relations().SourcesDependingOnLib(libPath)))
	}
	for binaryName := range ch.ExternalApiDeltas {
		for _, ctx := range depContexts {
			for _, srcClass := range previous.Relations().BinaryDepsOnto(binaryName, ctx) {
				invalidatedClasses[srcClass] = true
			}
		}
	}

	invalidatedSources = make(map[string]bool)
	for class := range invalidatedClasses {
		if src, ok := previous.Relations().SourceOf(class); ok {
			invalidatedSources[src] = true
		}
	}
	for src := range ch.Removed {
		invalidatedSources[src] = true
	}
	for src := range ch.Added {
		invalidatedSources[src] = true
	}
	return invalidatedClasses, invalidatedSources
}

// ExpandFromApiChanges recomputes the invalidated-class set after one
// cycle: given the classes recompiled in that cycle, compare their API
// hashes between previous and current, then invalidate dependents by the
// name-hashing rules:
//   - a member-ref dependent is invalidated if a name it uses is among the
//     names whose hash changed on the dependency;
//   - any member-ref dependent of a macro-bearing class is invalidated
//     unconditionally once that class recompiled;
//   - an inheritance (or local-inheritance, for this cycle) dependent is
//     invalidated unconditionally if the dependency's extraHash changed.
//
// Classes recompiled this cycle are never re-invalidated: they already
// compiled against the newest state of everything else in the cycle.
//
// The dependency graph walked is previous's: it reflects the edges that
// were in force when the cycle's inputs were chosen.
func ExpandFromApiChanges(recompiled map[string]bool, previous, current *analysis.Analysis) map[string]bool {
	invalidated := make(map[string]bool)

	for class := range recompiled {
		prevInfo, hadPrev := previous.ClassInfo(class)
		curInfo, hasCur := current.ClassInfo(class)
		if !hadPrev && !hasCur {
			continue
		}

		extraChanged := !hadPrev || !hasCur || prevInfo.ExtraHash != curInfo.ExtraHash
		macro := (hadPrev && prevInfo.HasMacro) || (hasCur && curInfo.HasMacro)
		changed := changedNames(prevInfo, curInfo)

		if macro || len(changed) > 0 {
			for _, dependent := range previous.Relations().ClassDepsOnto(class, analysis.DependencyByMemberRef) {
				if recompiled[dependent] || invalidated[dependent] {
					continue
				}
				if macro || usesAny(previous, dependent, changed) {
					invalidated[dependent] = true
				}
			}
		}
		if extraChanged {
			for _, ctx := range []analysis.DependencyContext{analysis.DependencyByInheritance, analysis.LocalDependencyByInheritance} {
				for _, dependent := range previous.Relations().ClassDepsOnto(class, ctx) {
					if !recompiled[dependent] {
						invalidated[dependent] = true
					}
				}
			}
		}
	}

	return invalidated
}

// changedNames returns the set of names whose hash differs between prev
// and cur, including names only added or only removed. A nil side
// contributes no hashes, so against a nil prev every current name counts
// as changed, and against a nil cur every previous name does.
func changedNames(prev, cur *analysis.AnalyzedClass) map[string]bool {
	prevHashes := make(map[string]uint64)
	if prev != nil {
		for _, nh := range prev.NameHashes {
			prevHashes[nh.Name] = nh.Hash
		}
	}
	curHashes := make(map[string]uint64)
	if cur != nil {
		for _, nh := range cur.NameHashes {
			curHashes[nh.Name] = nh.Hash
		}
	}

	out := make(map[string]bool)
	for name, hash := range curHashes {
		if prevHash, ok := prevHashes[name]; !ok || prevHash != hash {
			out[name] = true
		}
	}
	for name := range prevHashes {
		if _, ok := curHashes[name]; !ok {
			out[name] = true
		}
	}
	return out
}

func usesAny(a *analysis.Analysis, srcClass string, names map[string]bool) bool {
	for _, un := range a.Relations().UsedNamesOf(srcClass) {
		if names[un.Name] {
			return true
		}
	}
	return false
}

func boolSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}
