package driver

// Options are the external knobs of a driver run.
type Options struct {
	// StrictMode asserts a single startSource per source within one cycle.
	StrictMode bool
	// ApiDebug retains full (un-minimized) API shapes in memory.
	ApiDebug bool
	// UseOptimizedSealed affects name-hash computation for sealed
	// hierarchies.
	UseOptimizedSealed bool
	// RelationsDebug logs a YAML dump of the running Analysis's relations
	// at debug level after each cycle; individual relation mutations are
	// not logged.
	RelationsDebug bool
	// Transactional selects the transactional class-file manager policy
	// over delete-immediately.
	Transactional bool
	// RecompileAllFraction escalates to a full recompile when the
	// fraction of invalidated sources exceeds it.
	RecompileAllFraction float64
	// MaxCycles hard-caps the invalidation loop.
	MaxCycles int
}

// DefaultOptions returns the stock knobs; max-cycles defaults to 16 and
// the rest are conservative, debug-off defaults.
func DefaultOptions() Options {
	return Options{
		StrictMode:           true,
		Transactional:        true,
		RecompileAllFraction: 0.5,
		MaxCycles:            16,
	}
}

// DependencyChanges summarizes, for one compile invocation, which
// libraries and externally-resolved classes changed since the previous
// Analysis.
type DependencyChanges struct {
	ModifiedLibraries []string
	ModifiedClasses   []string
}

// IsEmpty reports whether neither libraries nor classes changed.
func (d DependencyChanges) IsEmpty() bool {
	return len(d.ModifiedLibraries) == 0 && len(d.ModifiedClasses) == 0
}
