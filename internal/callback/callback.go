package callback

import (
	"strings"
	"sync"

	"incrc/internal/analysis"
	"incrc/internal/errors"
	"incrc/internal/hashing"
	"incrc/internal/stamp"
)

// Callback is a single instance alive for one compile cycle. It accepts
// concurrent writes from compiler threads; add-if-absent is atomic and
// iteration only happens inside get(), after the compile step has
// returned.
type Callback struct {
	opts     Options
	previous PreviousAnalysis
	lookup     ExternalLookup
	stamps     *stamp.Oracle

	mu sync.Mutex

	started map[string]bool

	problems map[string][]Problem

	internalDeps []analysis.InternalDependency
	externalDeps []analysis.ExternalDependency

	// productToSrcClass lets a later binaryDependency call recognize a
	// classFile produced earlier in this same compile step.
	productToSrcClass map[string]string

	nonLocalProducts map[string][]analysis.NonLocalProduct // src -> products emitted for it
	localProducts    map[string][]string          // src -> []classFile

	classShapes  map[string]ClassShape // srcClassName -> shape, ClassDef/Trait half
	objectShapes map[string]ClassShape // srcClassName -> shape, Module/PackageModule half

	mainClasses map[string][]string

	usedNames map[string]map[string]map[analysis.NameScope]bool

	libDeps map[string]map[string]bool // src -> library binary/class-file identifiers

	srcClassToSrc map[string]string // srcClassName -> owning source, from startSource+api bookkeeping

	gotten bool
}

// New creates a Callback for one compile cycle. previous is the prior
// Analysis (for resolving already-known binary names); lookup resolves
// classpath-originated binary names; stamps computes source stamps for the
// delta's addSource arguments.
func New(opts Options, previous PreviousAnalysis, lookup ExternalLookup, stamps *stamp.Oracle) *Callback {
	return &Callback{
		opts:              opts,
		previous:          previous,
		lookup:            lookup,
		stamps:            stamps,
		started:           make(map[string]bool),
		problems:          make(map[string][]Problem),
		productToSrcClass: make(map[string]string),
		nonLocalProducts:  make(map[string][]analysis.NonLocalProduct),
		localProducts:     make(map[string][]string),
		classShapes:       make(map[string]ClassShape),
		objectShapes:      make(map[string]ClassShape),
		mainClasses:       make(map[string][]string),
		usedNames:         make(map[string]map[string]map[analysis.NameScope]bool),
		libDeps:           make(map[string]map[string]bool),
		srcClassToSrc:     make(map[string]string),
	}
}

// StartSource registers src as seen in this cycle. Under strictMode it is
// an error to call this more than once for the same source.
func (c *Callback) StartSource(src string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started[src] {
		if c.opts.StrictMode {
			return errors.New(errors.DoubleStartSource, "startSource called twice for "+src)
		}
		return nil
	}
	c.started[src] = true
	return nil
}

// Problem buffers a compiler diagnostic for src.
func (c *Callback) Problem(src string, p Problem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.problems[src] = append(c.problems[src], p)
}

// ClassDependency records an internal dependency of from on a class
// defined locally. Self-dependencies are dropped.
func (c *Callback) ClassDependency(on, from string, ctx analysis.DependencyContext) {
	if on == from {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.internalDeps = append(c.internalDeps, analysis.InternalDependency{
		FromSrcClass: from,
		ToSrcClass:   on,
		Context:      ctx,
	})
}

// BinaryDependency resolves a dependency on an externally-named class
// reached through classFile, trying internal resolution before external.
func (c *Callback) BinaryDependency(classFile, onBinaryName, fromClass, fromSrc string, ctx analysis.DependencyContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if toSrcClass, ok := c.previous.SrcClassOfBinary(onBinaryName); ok {
		c.internalDeps = append(c.internalDeps, analysis.InternalDependency{
			FromSrcClass: fromClass,
			ToSrcClass:   toSrcClass,
			Context:      ctx,
		})
		return
	}

	if toSrcClass, ok := c.productToSrcClass[classFile]; ok {
		c.internalDeps = append(c.internalDeps, analysis.InternalDependency{
			FromSrcClass: fromClass,
			ToSrcClass:   toSrcClass,
			Context:      ctx,
		})
		return
	}

	if analyzed, ok := c.lookup.LookupExternalClass(onBinaryName); ok {
		c.externalDeps = append(c.externalDeps, analysis.ExternalDependency{
			FromSrcClass:    fromClass,
			ToBinaryClass:   onBinaryName,
			ToAnalyzedClass: analyzed,
			Context:         ctx,
		})
		return
	}

	if c.libDeps[fromSrc] == nil {
		c.libDeps[fromSrc] = make(map[string]bool)
	}
	c.libDeps[fromSrc][onBinaryName] = true
}

// GeneratedNonLocalClass records a product visible outside its owning
// source, and the bidirectional binary/src mapping future binaryDependency
// calls may need.
func (c *Callback) GeneratedNonLocalClass(src, classFile, binaryName, srcClassName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonLocalProducts[src] = append(c.nonLocalProducts[src], analysis.NonLocalProduct{
		SrcClassName: srcClassName,
		BinaryName:   binaryName,
		Path:         classFile,
	})
	c.productToSrcClass[classFile] = srcClassName
	c.srcClassToSrc[srcClassName] = src
}

// GeneratedLocalClass records a local product: generated, but invisible
// outside the owning source.
func (c *Callback) GeneratedLocalClass(src, classFile string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localProducts[src] = append(c.localProducts[src], classFile)
}

// Api records the API shape of srcClassName within src, classifying by
// definition kind into the class-API or object-API half so that
// companions can be merged at get().
func (c *Callback) Api(src, srcClassName string, shape ClassShape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.srcClassToSrc[srcClassName] = src
	switch shape.Kind {
	case ClassDef, Trait:
		c.classShapes[srcClassName] = shape
	case Module, PackageModule:
		c.objectShapes[srcClassName] = shape
	}
}

// MainClass buffers an entry-point candidate for src.
func (c *Callback) MainClass(src, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mainClasses[src] = append(c.mainClasses[src], name)
}

// UsedName records that name was used within className under scope.
func (c *Callback) UsedName(className, name string, scope analysis.NameScope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usedNames[className] == nil {
		c.usedNames[className] = make(map[string]map[analysis.NameScope]bool)
	}
	if c.usedNames[className][name] == nil {
		c.usedNames[className][name] = make(map[analysis.NameScope]bool)
	}
	c.usedNames[className][name][scope] = true
}

// Enabled reports whether the compiler should emit dependency and API
// callbacks at all; always true for this driver, which exists to consume
// them.
func (c *Callback) Enabled() bool { return true }

// DependencyPhaseCompleted, ApiPhaseCompleted and ClassesInOutputJar are
// forwarded to the class-file manager by the compile function itself; the
// callback only needs to exist as the named hook compiler code expects.
func (c *Callback) DependencyPhaseCompleted() {}
func (c *Callback) ApiPhaseCompleted()        {}
func (c *Callback) ClassesInOutputJar()       {}

// companionBase strips the module-suffix convention ("$") so a class half
// and its companion object half resolve to the same lazy pairing key.
func companionBase(srcClassName string) string {
	return strings.TrimSuffix(srcClassName, "$")
}

// Get is terminal: it fails if called more than once, and otherwise
// produces the cycle's Analysis delta, one SourceInput per seen source.
func (c *Callback) Get() (map[string]analysis.SourceInput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gotten {
		return nil, errors.New(errors.DoubleGet, "Get called more than once on this Callback")
	}
	c.gotten = true

	classRecords, apis := c.buildClassRecords()

	out := make(map[string]analysis.SourceInput, len(c.started))
	for src := range c.started {
		s, err := c.stamps.Source(src)
		if err != nil {
			s = stamp.Stamp{} // StampUnavailable: treated as changed, never fatal
		}

		input := analysis.SourceInput{
			Source:           src,
			Stamp:            s,
			Info:             c.sourceInfo(src),
			Classes:          make(map[string]*analysis.AnalyzedClass),
			Apis:             make(map[string]analysis.ApiInfo),
			NonLocalProducts: c.nonLocalProducts[src],
			LocalProducts:    c.localProducts[src],
			UsedNames:        make(map[string][]analysis.UsedName),
		}

		for srcClass, owner := range c.srcClassToSrc {
			if owner != src {
				continue
			}
			if rec, ok := classRecords[srcClass]; ok {
				input.Classes[srcClass] = rec
			}
			if info, ok := apis[srcClass]; ok {
				input.Apis[srcClass] = info
			}
			if names, ok := c.usedNames[srcClass]; ok {
				for name, scopes := range names {
					input.UsedNames[srcClass] = append(input.UsedNames[srcClass], analysis.UsedName{
						Name:   name,
						Scopes: scopes,
					})
				}
			}
		}

		for _, dep := range c.internalDeps {
			if c.srcClassToSrc[dep.FromSrcClass] == src {
				input.InternalDeps = append(input.InternalDeps, dep)
			}
		}
		for _, dep := range c.externalDeps {
			if c.srcClassToSrc[dep.FromSrcClass] == src {
				input.ExternalDeps = append(input.ExternalDeps, dep)
			}
		}
		for lib := range c.libDeps[src] {
			input.LibDeps = append(input.LibDeps, lib)
		}

		out[src] = input
	}

	return out, nil
}

// sourceInfo packages src's buffered diagnostics (split by whether the
// compiler already reported them) and entry-point candidates. Diagnostics
// recorded against a source that never started are dropped with the rest
// of the cycle's bookkeeping.
func (c *Callback) sourceInfo(src string) analysis.SourceInfo {
	var info analysis.SourceInfo
	for _, p := range c.problems[src] {
		if p.Reported {
			info.ReportedProblems = append(info.ReportedProblems, p)
		} else {
			info.UnreportedProblems = append(info.UnreportedProblems, p)
		}
	}
	info.MainClasses = append(info.MainClasses, c.mainClasses[src]...)
	return info
}

// buildClassRecords merges each class-API half with its companion
// object-API half (if any), and computes the resulting hashes.
func (c *Callback) buildClassRecords() (map[string]*analysis.AnalyzedClass, map[string]analysis.ApiInfo) {
	records := make(map[string]*analysis.AnalyzedClass)
	apis := make(map[string]analysis.ApiInfo)

	companionOf := make(map[string]string) // base -> the other half's srcClassName, if present

	allNames := make(map[string]bool)
	for name := range c.classShapes {
		allNames[companionBase(name)] = true
	}
	for name := range c.objectShapes {
		allNames[companionBase(name)] = true
	}

	for base := range allNames {
		classShape, hasClass := findByBase(c.classShapes, base)
		objectShape, hasObject := findByBase(c.objectShapes, base)

		if hasClass && hasObject {
			companionOf[classShape.name] = objectShape.name
			companionOf[objectShape.name] = classShape.name
		}

		if hasClass {
			rec, info := c.buildRecord(classShape.name, classShape.shape, companionOf[classShape.name])
			records[classShape.name] = rec
			apis[classShape.name] = info
		}
		if hasObject {
			rec, info := c.buildRecord(objectShape.name, objectShape.shape, companionOf[objectShape.name])
			records[objectShape.name] = rec
			apis[objectShape.name] = info
		}
	}

	return records, apis
}

type namedShape struct {
	name  string
	shape ClassShape
}

// findByBase finds the single entry in shapes whose companionBase matches
// base. There is at most one class-half and one object-half per base name.
func findByBase(shapes map[string]ClassShape, base string) (namedShape, bool) {
	for name, shape := range shapes {
		if companionBase(name) == base {
			return namedShape{name: name, shape: shape}, true
		}
	}
	return namedShape{}, false
}

func (c *Callback) buildRecord(srcClassName string, shape ClassShape, companion string) (*analysis.AnalyzedClass, analysis.ApiInfo) {
	publicParts := make([]uint64, 0, len(shape.PublicMembers))
	for _, m := range shape.PublicMembers {
		publicParts = append(publicParts, hashing.Hash64([]byte(m)))
	}
	publicHash := hashing.Combine(publicParts...)

	extraParts := append([]uint64(nil), publicParts...)
	if shape.Kind == Trait {
		for _, m := range shape.PrivateMembers {
			extraParts = append(extraParts, hashing.Hash64([]byte(m)))
		}
	}
	extraHash := hashing.Combine(extraParts...)

	nameHashes := make([]analysis.NameHash, 0, len(shape.Names))
	for _, n := range shape.Names {
		nameHashes = append(nameHashes, analysis.NameHash{
			Name:  n.Name,
			Scope: n.Scope,
			Hash:  hashing.Hash64([]byte(n.Name + "\x00" + n.Signature)),
		})
	}
	if c.opts.UseOptimizedSealed && len(shape.SealedChildren) > 0 {
		// One pattern-match hash over the child list: adding or removing a
		// case changes it, and only pattern-matching users care.
		parts := make([]uint64, 0, len(shape.SealedChildren))
		for _, child := range shape.SealedChildren {
			parts = append(parts, hashing.Hash64([]byte(child)))
		}
		nameHashes = append(nameHashes, analysis.NameHash{
			Name:  simpleName(srcClassName),
			Scope: analysis.ScopePatMatTarget,
			Hash:  hashing.CombineUnordered(parts...),
		})
	}

	var companions []string
	if companion != "" {
		companions = []string{companion}
	}

	rec := &analysis.AnalyzedClass{
		SrcClassName: srcClassName,
		Companions:   companions,
		ApiHash:      publicHash,
		NameHashes:   nameHashes,
		HasMacro:     shape.HasMacro,
		ExtraHash:    extraHash,
	}
	info := analysis.ApiInfo{PublicHash: publicHash, ExtraHash: extraHash}
	if c.opts.ApiDebug {
		info.ClassLike = shape
	}
	return rec, info
}

// simpleName strips the package qualifier from a dotted srcClass name.
func simpleName(srcClassName string) string {
	if i := strings.LastIndex(srcClassName, "."); i >= 0 {
		return srcClassName[i+1:]
	}
	return srcClassName
}
