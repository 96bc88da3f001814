// Package callback implements the analysis callback: a thread-safe
// sink invoked by the compiler during one compile step, finalized into an
// Analysis delta by get().
package callback

import "incrc/internal/analysis"

// DefinitionKind classifies what api() was given: ClassDef
// and Trait feed the class-API tables; Module and PackageModule feed the
// object-API tables.
type DefinitionKind int

const (
	ClassDef DefinitionKind = iota
	Trait
	Module
	PackageModule
)

// NameUse is one name observed within a class, with the scope it was used
// under. Signature is the member's definition as the frontend renders it
// (e.g. "foo(): Long"), the same kind of string ClassShape.PublicMembers
// carries, so its hash changes when the member's signature changes, not
// only when the name itself is added or removed.
type NameUse struct {
	Name      string
	Scope     analysis.NameScope
	Signature string
}

// ClassShape is the opaque API shape api() is given for one class. Only
// the signature members contribute to PublicHash; a Trait's PrivateMembers
// additionally contribute to ExtraHash. SealedChildren lists the known
// direct subtypes of a sealed class; under useOptimizedSealed they feed a
// pattern-match name hash so adding a case invalidates exhaustive matches.
type ClassShape struct {
	Kind           DefinitionKind
	PublicMembers  []string
	PrivateMembers []string
	Names          []NameUse
	HasMacro       bool
	SealedChildren []string
}

// Options are the knobs that change how a Callback records and finalizes
// one cycle's bookkeeping.
type Options struct {
	// StrictMode makes a second startSource for the same source an error.
	StrictMode bool
	// ApiDebug retains the full ClassShape on the produced ApiInfo instead
	// of keeping only the hashes.
	ApiDebug bool
	// UseOptimizedSealed emits a pattern-match name hash over a sealed
	// class's children, so exhaustiveness-dependent code is invalidated
	// when a case is added or removed.
	UseOptimizedSealed bool
}

// Severity and Problem are the analysis model's diagnostic types, aliased
// here so compiler integrations only import this package.
type (
	Severity = analysis.Severity
	Problem  = analysis.Problem
)

const (
	SeverityInfo  = analysis.SeverityInfo
	SeverityWarn  = analysis.SeverityWarn
	SeverityError = analysis.SeverityError
)

// ExternalLookup resolves a binary class name against the classpath,
// consulted by binaryDependency's third resolution step.
type ExternalLookup interface {
	LookupExternalClass(binaryName string) (*analysis.AnalyzedClass, bool)
}

// PreviousAnalysis is the read-only view of the prior Analysis that
// binaryDependency consults first, to recognize a binary name that maps to
// a srcClass already known internally.
type PreviousAnalysis interface {
	SrcClassOfBinary(binaryName string) (string, bool)
}
