package callback

import (
	"testing"

	"incrc/internal/analysis"
	incrcerrors "incrc/internal/errors"
	"incrc/internal/stamp"
)

type fakePrevious struct {
	byBinary map[string]string
}

func (f fakePrevious) SrcClassOfBinary(binaryName string) (string, bool) {
	s, ok := f.byBinary[binaryName]
	return s, ok
}

type fakeLookup struct {
	known map[string]*analysis.AnalyzedClass
}

func (f fakeLookup) LookupExternalClass(binaryName string) (*analysis.AnalyzedClass, bool) {
	c, ok := f.known[binaryName]
	return c, ok
}

func newTestCallback(t *testing.T, strict bool, previous PreviousAnalysis, lookup ExternalLookup) *Callback {
	t.Helper()
	return New(Options{StrictMode: strict}, previous, lookup, stamp.New(true))
}

func TestStartSourceStrictModeRejectsDoubleStart(t *testing.T) {
	cb := newTestCallback(t, true, fakePrevious{}, fakeLookup{})
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("first StartSource: %v", err)
	}
	err := cb.StartSource("A.scala")
	if err == nil {
		t.Fatal("expected an error on double startSource under strict mode")
	}
	if code, ok := incrcerrors.CodeOf(err); !ok || code != incrcerrors.DoubleStartSource {
		t.Errorf("CodeOf(err) = %v, want DoubleStartSource", code)
	}
}

func TestStartSourceNonStrictAllowsDoubleStart(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("first StartSource: %v", err)
	}
	if err := cb.StartSource("A.scala"); err != nil {
		t.Errorf("expected no error on double startSource outside strict mode, got %v", err)
	}
}

func TestClassDependencySelfDepDropped(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	cb.ClassDependency("pkg.A", "pkg.A", analysis.DependencyByMemberRef)
	if len(cb.internalDeps) != 0 {
		t.Errorf("expected self-dep to be dropped, got %v", cb.internalDeps)
	}
}

func TestBinaryDependencyResolvesViaPreviousAnalysis(t *testing.T) {
	prev := fakePrevious{byBinary: map[string]string{"pkg/B.class": "pkg.B"}}
	cb := newTestCallback(t, false, prev, fakeLookup{})
	cb.BinaryDependency("out/B.class", "pkg/B.class", "pkg.A", "A.scala", analysis.DependencyByMemberRef)

	if len(cb.internalDeps) != 1 {
		t.Fatalf("expected 1 internal dep, got %d", len(cb.internalDeps))
	}
	if cb.internalDeps[0].ToSrcClass != "pkg.B" {
		t.Errorf("ToSrcClass = %q, want pkg.B", cb.internalDeps[0].ToSrcClass)
	}
}

func TestBinaryDependencyResolvesViaEarlierProductInSameCycle(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	cb.GeneratedNonLocalClass("B.scala", "out/B.class", "pkg/B.class", "pkg.B")
	cb.BinaryDependency("out/B.class", "pkg/B.class", "pkg.A", "A.scala", analysis.DependencyByMemberRef)

	if len(cb.internalDeps) != 1 || cb.internalDeps[0].ToSrcClass != "pkg.B" {
		t.Errorf("expected internal dep to pkg.B, got %v", cb.internalDeps)
	}
}

func TestBinaryDependencyResolvesViaExternalLookup(t *testing.T) {
	known := &analysis.AnalyzedClass{SrcClassName: "ext.Lib"}
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{known: map[string]*analysis.AnalyzedClass{"ext/Lib.class": known}})
	cb.BinaryDependency("unused", "ext/Lib.class", "pkg.A", "A.scala", analysis.DependencyByMemberRef)

	if len(cb.externalDeps) != 1 {
		t.Fatalf("expected 1 external dep, got %d", len(cb.externalDeps))
	}
	if cb.externalDeps[0].ToAnalyzedClass != known {
		t.Error("expected the resolved AnalyzedClass to be attached")
	}
}

func TestBinaryDependencyFallsBackToLibraryDep(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	cb.BinaryDependency("unused", "unknown/Thing.class", "pkg.A", "A.scala", analysis.DependencyByMemberRef)

	if len(cb.internalDeps) != 0 || len(cb.externalDeps) != 0 {
		t.Error("unresolved binary name should not produce internal or external deps")
	}
	if !cb.libDeps["A.scala"]["unknown/Thing.class"] {
		t.Error("unresolved binary name should be recorded as a library dep")
	}
}

func TestGetFailsOnSecondCall(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	if _, err := cb.Get(); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	_, err := cb.Get()
	if err == nil {
		t.Fatal("expected an error on second Get call")
	}
	if code, ok := incrcerrors.CodeOf(err); !ok || code != incrcerrors.DoubleGet {
		t.Errorf("CodeOf(err) = %v, want DoubleGet", code)
	}
}

func TestGetMergesCompanionHalves(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	cb.Api("A.scala", "pkg.A", ClassShape{Kind: ClassDef, PublicMembers: []string{"def foo(): Int"}})
	cb.Api("A.scala", "pkg.A$", ClassShape{Kind: Module, PublicMembers: []string{"val x: Int"}})

	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	input := delta["A.scala"]
	classRec, ok := input.Classes["pkg.A"]
	if !ok {
		t.Fatal("expected pkg.A in the delta")
	}
	if len(classRec.Companions) != 1 || classRec.Companions[0] != "pkg.A$" {
		t.Errorf("Companions = %v, want [pkg.A$]", classRec.Companions)
	}
}

func TestGetPropagatesStampUnavailableAsEmptyStamp(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	// A source that was never written to disk: the oracle cannot stamp it.
	if err := cb.StartSource("missing.scala"); err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !delta["missing.scala"].Stamp.IsEmpty() {
		t.Error("an unreadable source should get an empty stamp, not fail Get")
	}
}

func TestApiDebugRetainsFullShape(t *testing.T) {
	cb := New(Options{ApiDebug: true}, fakePrevious{}, fakeLookup{}, stamp.New(true))
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	cb.Api("A.scala", "pkg.A", ClassShape{Kind: ClassDef, PublicMembers: []string{"def foo(): Int"}})

	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	info := delta["A.scala"].Apis["pkg.A"]
	shape, ok := info.ClassLike.(ClassShape)
	if !ok {
		t.Fatalf("ClassLike = %T, want the retained ClassShape", info.ClassLike)
	}
	if len(shape.PublicMembers) != 1 || shape.PublicMembers[0] != "def foo(): Int" {
		t.Errorf("retained shape members = %v", shape.PublicMembers)
	}
}

func TestApiWithoutDebugDropsShape(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	cb.Api("A.scala", "pkg.A", ClassShape{Kind: ClassDef, PublicMembers: []string{"def foo(): Int"}})

	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if delta["A.scala"].Apis["pkg.A"].ClassLike != nil {
		t.Error("ClassLike should be dropped when apiDebug is off")
	}
}

func TestOptimizedSealedChildListChangesPatMatHash(t *testing.T) {
	patMatHash := func(children ...string) (uint64, bool) {
		t.Helper()
		cb := New(Options{UseOptimizedSealed: true}, fakePrevious{}, fakeLookup{}, stamp.New(true))
		if err := cb.StartSource("S.scala"); err != nil {
			t.Fatalf("StartSource: %v", err)
		}
		cb.Api("S.scala", "pkg.S", ClassShape{Kind: Trait, SealedChildren: children})
		delta, err := cb.Get()
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		for _, nh := range delta["S.scala"].Classes["pkg.S"].NameHashes {
			if nh.Name == "S" && nh.Scope == analysis.ScopePatMatTarget {
				return nh.Hash, true
			}
		}
		return 0, false
	}

	two, ok := patMatHash("pkg.A", "pkg.B")
	if !ok {
		t.Fatal("expected a pattern-match name hash for the sealed class")
	}
	three, ok := patMatHash("pkg.A", "pkg.B", "pkg.C")
	if !ok {
		t.Fatal("expected a pattern-match name hash for the sealed class")
	}
	if two == three {
		t.Error("adding a sealed child must change the pattern-match hash")
	}
}

func TestGetAttachesProblemsAndMainClasses(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	if err := cb.StartSource("A.scala"); err != nil {
		t.Fatalf("StartSource: %v", err)
	}
	cb.Problem("A.scala", Problem{Category: "typer", Message: "type mismatch", Severity: SeverityError, Reported: true})
	cb.Problem("A.scala", Problem{Category: "typer", Message: "unused import", Severity: SeverityWarn, Reported: false})
	cb.MainClass("A.scala", "pkg.Main")

	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	info := delta["A.scala"].Info
	if len(info.ReportedProblems) != 1 || info.ReportedProblems[0].Message != "type mismatch" {
		t.Errorf("ReportedProblems = %v", info.ReportedProblems)
	}
	if len(info.UnreportedProblems) != 1 || info.UnreportedProblems[0].Message != "unused import" {
		t.Errorf("UnreportedProblems = %v", info.UnreportedProblems)
	}
	if len(info.MainClasses) != 1 || info.MainClasses[0] != "pkg.Main" {
		t.Errorf("MainClasses = %v", info.MainClasses)
	}
}

func TestProblemWithoutStartedSourceIsDropped(t *testing.T) {
	cb := newTestCallback(t, false, fakePrevious{}, fakeLookup{})
	cb.Problem("never-started.scala", Problem{Message: "orphan diagnostic"})

	delta, err := cb.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := delta["never-started.scala"]; ok {
		t.Error("diagnostics for a source that never started must not create a delta entry")
	}
}
