// Package driver glues the change detector and invalidation engine with
// the class-file manager and the external compile function.
package driver

import (
	"context"
	stderrors "errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"incrc/internal/analysis"
	"incrc/internal/callback"
	"incrc/internal/changes"
	"incrc/internal/classfile"
	"incrc/internal/errors"
	"incrc/internal/invalidate"
	"incrc/internal/logging"
	"incrc/internal/stamp"
)

// CompileFunc is the external compile function: it must report into cb,
// write all emitted artifacts via manager, and raise Cancelled or a
// compile error.
type CompileFunc func(ctx context.Context, sources map[string]bool, depChanges DependencyChanges, cb *callback.Callback, manager *classfile.Manager) error

// Lookup is the combined external-API resolver the driver threads through
// to both the change detector and each cycle's callback.
type Lookup interface {
	changes.Lookup
	callback.ExternalLookup
}

// Driver runs one full incremental compile: it opens the class-file
// manager scope, runs the change detector, then the invalidation engine's
// cycle loop. A Driver value serves a single Run: its Oracle memoizes
// stamps for that run, so the next run needs a fresh Driver (or at least
// a fresh Oracle) to re-observe edited sources.
type Driver struct {
	StagingDir string
	Oracle     *stamp.Oracle
	Lookup     Lookup
	Logger     *logging.Logger
	Options    Options
	Compile    CompileFunc
}

// Run executes one incremental compile over sources against previous.
// Returns whether anything changed and the resulting Analysis; on any
// error other than cancellation the class-file manager is rolled back and
// the error is propagated, with previous still valid for the caller to
// keep using.
func (d *Driver) Run(ctx context.Context, previous *analysis.Analysis, sources map[string]bool) (bool, *analysis.Analysis, error) {
	policy := classfile.DeleteImmediately
	if d.Options.Transactional {
		policy = classfile.Transactional
	}
	manager := classfile.New(policy, d.StagingDir)

	ch, err := changes.Detect(previous, sources, d.Oracle, d.Lookup)
	if err != nil {
		_ = manager.Complete(false)
		return false, previous, err
	}
	if ch.IsEmpty() {
		_ = manager.Complete(true)
		return false, previous, nil
	}

	_, invSrcs := invalidate.InitialSeed(ch, previous)

	if d.shouldRecompileAll(invSrcs, sources) {
		d.logf("escalating to full recompile: invalidated fraction exceeds %.2f", d.Options.RecompileAllFraction)
		invSrcs = make(map[string]bool, len(sources)+len(ch.Removed))
		for src := range sources {
			invSrcs[src] = true
		}
		for src := range ch.Removed {
			invSrcs[src] = true
		}
	}
	if len(invSrcs) == 0 {
		_ = manager.Complete(true)
		return false, previous, nil
	}

	depChanges := DependencyChanges{
		ModifiedLibraries: keysOf(ch.LibraryDeltas),
		ModifiedClasses:   keysOf(ch.ExternalApiDeltas),
	}

	running := previous
	cycle := 0
	for len(invSrcs) > 0 {
		if ctx.Err() != nil {
			_ = manager.Complete(false)
			d.logf("cancellation observed before cycle %d", cycle)
			return false, previous, nil
		}
		if cycle >= d.Options.MaxCycles {
			_ = manager.Complete(false)
			return false, previous, errors.New(errors.CycleLimitExceeded,
				"invalidation did not reach a fixed point within max-cycles")
		}

		if err := manager.Delete(productsOwnedBy(running, invSrcs)); err != nil {
			_ = manager.Complete(false)
			return false, previous, err
		}

		base := running.Drop(invSrcs)

		// Removed sources are pruned and dropped but never handed to the
		// compiler; if only removals remain, the run is already done.
		compileSrcs := intersect(invSrcs, sources)
		if len(compileSrcs) == 0 {
			running = base
			break
		}

		cb := callback.New(callback.Options{
			StrictMode:         d.Options.StrictMode,
			ApiDebug:           d.Options.ApiDebug,
			UseOptimizedSealed: d.Options.UseOptimizedSealed,
		}, running, d.Lookup, d.Oracle)

		if err := d.Compile(ctx, compileSrcs, depChanges, cb, manager); err != nil {
			if isCancelled(err) {
				_ = manager.Complete(false)
				d.logf("compiler reported cancellation mid-cycle %d", cycle)
				return false, previous, nil
			}
			_ = manager.Complete(false)
			return false, previous, err
		}

		delta, err := cb.Get()
		if err != nil {
			_ = manager.Complete(false)
			return false, previous, err
		}

		deltaAnalysis, err := buildDeltaAnalysis(delta)
		if err != nil {
			_ = manager.Complete(false)
			return false, previous, err
		}

		merged := base.Merge(deltaAnalysis)

		recompiled := classesOf(compileSrcs, running, merged)
		invClasses := invalidate.ExpandFromApiChanges(recompiled, running, merged)

		running = merged
		cycle++
		invSrcs = sourcesOwning(invClasses, merged)

		if d.Options.RelationsDebug {
			d.dumpRelations(cycle, running)
		}
	}

	if err := manager.Complete(true); err != nil {
		return false, previous, err
	}
	return true, running, nil
}

// shouldRecompileAll reports whether the invalidated fraction of the
// current input set exceeds the escalation threshold. Sources no longer
// in the input set do not count: they cannot be recompiled, only pruned.
func (d *Driver) shouldRecompileAll(invSrcs, allSources map[string]bool) bool {
	if d.Options.RecompileAllFraction <= 0 || len(allSources) == 0 {
		return false
	}
	live := 0
	for src := range invSrcs {
		if allSources[src] {
			live++
		}
	}
	fraction := float64(live) / float64(len(allSources))
	return fraction > d.Options.RecompileAllFraction
}

// isCancelled matches both the driver's own Cancelled code and a raw
// context cancellation surfaced by a compile function that returns
// ctx.Err() directly.
func isCancelled(err error) bool {
	if code, ok := errors.CodeOf(err); ok && code == errors.Cancelled {
		return true
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// dumpRelations logs a YAML rendering of the running Analysis's relations
// after a cycle, for relationsDebug troubleshooting.
func (d *Driver) dumpRelations(cycle int, a *analysis.Analysis) {
	if d.Logger == nil {
		return
	}
	rendered, err := yaml.Marshal(a.DebugDump(d.Options.ApiDebug))
	if err != nil {
		d.Logger.Warn("cannot render relations dump", map[string]interface{}{"error": err.Error()})
		return
	}
	d.Logger.Debug("relations after cycle", map[string]interface{}{
		"cycle":     cycle,
		"relations": string(rendered),
	})
}

func (d *Driver) logf(format string, args ...interface{}) {
	if d.Logger == nil {
		return
	}
	d.Logger.Info(fmt.Sprintf(format, args...), nil)
}

func productsOwnedBy(a *analysis.Analysis, sources map[string]bool) []string {
	var out []string
	for src := range sources {
		out = append(out, a.Relations().ProductsOf(src)...)
	}
	return out
}

// classesOf collects every class the given sources own in either analysis:
// before gives the classes that existed going into the cycle (including
// ones the recompile dropped), after gives the ones it produced.
func classesOf(sources map[string]bool, before, after *analysis.Analysis) map[string]bool {
	out := make(map[string]bool)
	for src := range sources {
		for _, class := range before.Relations().ClassesOf(src) {
			out[class] = true
		}
		for _, class := range after.Relations().ClassesOf(src) {
			out[class] = true
		}
	}
	return out
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func sourcesOwning(classes map[string]bool, a *analysis.Analysis) map[string]bool {
	out := make(map[string]bool)
	for class := range classes {
		if src, ok := a.Relations().SourceOf(class); ok {
			out[src] = true
		}
	}
	return out
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// buildDeltaAnalysis folds a callback's per-source delta into a fresh
// Analysis, the way a compile cycle's Get() result is meant to be
// consumed.
func buildDeltaAnalysis(delta map[string]analysis.SourceInput) (*analysis.Analysis, error) {
	out := analysis.Empty()
	for _, input := range delta {
		var err error
		out, err = out.AddSource(input)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
