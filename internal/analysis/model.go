// Package analysis implements the analysis store and relations algebra:
// an immutable snapshot of sources, products, APIs,
// relations, stamps, used-names, and compilations, plus the bidirectional
// maps that connect them.
package analysis

import "incrc/internal/stamp"

// DependencyContext classifies why one class depends on another.
type DependencyContext int

const (
	// DependencyByMemberRef means A refers to a member of B.
	DependencyByMemberRef DependencyContext = iota
	// DependencyByInheritance means A extends or implements B.
	DependencyByInheritance
	// LocalDependencyByInheritance means A extends or implements a
	// locally-defined (non-top-level) class B; treated as inheritance for
	// the current cycle only.
	LocalDependencyByInheritance
)

// NameScope is a scope under which a used name was observed.
type NameScope int

const (
	// ScopePatMatTarget is a name used as a pattern-match target.
	ScopePatMatTarget NameScope = iota
	// ScopeDefault is an ordinarily-referenced name.
	ScopeDefault
	// ScopeImplicit is a name resolved through implicit search.
	ScopeImplicit
)

// UsedName is a name observed in a class, together with the scopes under
// which it was used.
type UsedName struct {
	Name   string
	Scopes map[NameScope]bool
}

// ApiInfo is the minimized public shape of a class as seen by its
// dependents: a pair of 64-bit hashes plus the (optionally retained) full
// shape when apiDebug is enabled.
type ApiInfo struct {
	PublicHash uint64
	ExtraHash  uint64
	// ClassLike holds the full API shape. Only populated when apiDebug is
	// enabled; otherwise nil to keep the in-memory footprint small.
	ClassLike interface{}
}

// NameHash is the hash of one name within one scope, as contributed by a
// single class.
type NameHash struct {
	Name  string
	Scope NameScope
	Hash  uint64
}

// AnalyzedClass is the durable record of one class as of the compile that
// produced it.
type AnalyzedClass struct {
	CompileTimestamp int64
	SrcClassName     string
	// Companions holds the source class names of a class/module pair that
	// share a source file; resolved lazily since the pairing is not known
	// until both halves have been seen.
	Companions []string
	ApiHash    uint64
	NameHashes []NameHash
	HasMacro   bool
	ExtraHash  uint64
}

// InternalDependency is a dependency between two classes defined within
// the set of sources under analysis.
type InternalDependency struct {
	FromSrcClass string
	ToSrcClass   string
	Context      DependencyContext
}

// ExternalDependency is a dependency from a class under analysis onto a
// class resolved from the classpath.
type ExternalDependency struct {
	FromSrcClass   string
	ToBinaryClass  string
	ToAnalyzedClass *AnalyzedClass
	Context        DependencyContext
}

// Severity is a diagnostic's severity level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// Problem is one compiler diagnostic, buffered during a compile step and
// attached to the owning source's SourceInfo.
type Problem struct {
	Category string
	Pos      string
	Message  string
	Severity Severity
	Reported bool
}

// SourceInfo is the per-source metadata half of an Analysis: buffered
// diagnostics, split by whether the compiler already showed them to the
// user, plus the source's entry-point candidates.
type SourceInfo struct {
	ReportedProblems   []Problem
	UnreportedProblems []Problem
	MainClasses        []string
}

// Product is a generated artifact with its product stamp. Non-local
// products are visible outside the owning source (they participate in
// Relations.productClassName); local products are not.
type Product struct {
	Path  string
	Stamp stamp.Stamp
}
