package analysis

// Relations holds every bidirectional map the invalidation engine and
// change detector need to navigate without a linear scan of the Analysis.
// All maps are keyed and valued by stable string identifiers (source
// paths, source class names, binary class names); Relations itself never
// interprets those identifiers.
type Relations struct {
	srcToClasses   map[string]map[string]bool
	classToSrc     map[string]string
	srcToProducts  map[string]map[string]bool
	productToSrc   map[string]string
	srcToLibDeps   map[string]map[string]bool
	libDepToSrcs   map[string]map[string]bool

	// internal dependencies, split by context in both directions
	classDepsFwd map[DependencyContext]map[string]map[string]bool // from -> {to}
	classDepsRev map[DependencyContext]map[string]map[string]bool // to -> {from}

	// external dependencies, split by context in both directions
	binaryDepsFwd map[DependencyContext]map[string]map[string]bool // srcClass -> {binaryClass}
	binaryDepsRev map[DependencyContext]map[string]map[string]bool // binaryClass -> {srcClass}

	// productClassName is a bijection between emitted non-local srcClasses
	// and their binary class names.
	srcClassToBinary map[string]string
	binaryToSrcClass map[string]string

	usedNames map[string]map[string]UsedName // srcClass -> name -> UsedName
}

// NewRelations returns an empty Relations.
func NewRelations() *Relations {
	r := &Relations{
		srcToClasses:     make(map[string]map[string]bool),
		classToSrc:       make(map[string]string),
		srcToProducts:    make(map[string]map[string]bool),
		productToSrc:     make(map[string]string),
		srcToLibDeps:     make(map[string]map[string]bool),
		libDepToSrcs:     make(map[string]map[string]bool),
		classDepsFwd:     make(map[DependencyContext]map[string]map[string]bool),
		classDepsRev:     make(map[DependencyContext]map[string]map[string]bool),
		binaryDepsFwd:    make(map[DependencyContext]map[string]map[string]bool),
		binaryDepsRev:    make(map[DependencyContext]map[string]map[string]bool),
		srcClassToBinary: make(map[string]string),
		binaryToSrcClass: make(map[string]string),
		usedNames:        make(map[string]map[string]UsedName),
	}
	for _, ctx := range []DependencyContext{DependencyByMemberRef, DependencyByInheritance, LocalDependencyByInheritance} {
		r.classDepsFwd[ctx] = make(map[string]map[string]bool)
		r.classDepsRev[ctx] = make(map[string]map[string]bool)
		r.binaryDepsFwd[ctx] = make(map[string]map[string]bool)
		r.binaryDepsRev[ctx] = make(map[string]map[string]bool)
	}
	return r
}

// clone returns a deep-enough copy for building a new Analysis without
// mutating a shared one; Analysis values are treated as immutable once
// published.
func (r *Relations) clone() *Relations {
	out := NewRelations()
	for src, classes := range r.srcToClasses {
		for class := range classes {
			out.addClass(src, class)
		}
	}
	for src, products := range r.srcToProducts {
		for product := range products {
			out.addProduct(src, product)
		}
	}
	for src, deps := range r.srcToLibDeps {
		for dep := range deps {
			out.addLibDep(src, dep)
		}
	}
	for ctx, fwd := range r.classDepsFwd {
		for from, tos := range fwd {
			for to := range tos {
				out.addClassDep(from, to, ctx)
			}
		}
	}
	for ctx, fwd := range r.binaryDepsFwd {
		for from, tos := range fwd {
			for to := range tos {
				out.addBinaryDep(from, to, ctx)
			}
		}
	}
	for srcClass, binary := range r.srcClassToBinary {
		out.setProductClassName(srcClass, binary)
	}
	for srcClass, names := range r.usedNames {
		for name, un := range names {
			for scope := range un.Scopes {
				out.addUsedName(srcClass, name, scope)
			}
			_ = name
		}
	}
	return out
}

// addClass records that srcClass is defined in src.
func (r *Relations) addClass(src, srcClass string) {
	if r.srcToClasses[src] == nil {
		r.srcToClasses[src] = make(map[string]bool)
	}
	r.srcToClasses[src][srcClass] = true
	r.classToSrc[srcClass] = src
}

// addProduct records that src produced a product (local or non-local) at path.
func (r *Relations) addProduct(src, path string) {
	if r.srcToProducts[src] == nil {
		r.srcToProducts[src] = make(map[string]bool)
	}
	r.srcToProducts[src][path] = true
	r.productToSrc[path] = src
}

// addLibDep records that src depends on the library entry at path.
func (r *Relations) addLibDep(src, path string) {
	if r.srcToLibDeps[src] == nil {
		r.srcToLibDeps[src] = make(map[string]bool)
	}
	r.srcToLibDeps[src][path] = true
	if r.libDepToSrcs[path] == nil {
		r.libDepToSrcs[path] = make(map[string]bool)
	}
	r.libDepToSrcs[path][src] = true
}

// addClassDep records an internal dependency from -> to under ctx.
// Self-deps are rejected by the caller; Relations itself
// just stores whatever it is given.
func (r *Relations) addClassDep(from, to string, ctx DependencyContext) {
	if r.classDepsFwd[ctx][from] == nil {
		r.classDepsFwd[ctx][from] = make(map[string]bool)
	}
	r.classDepsFwd[ctx][from][to] = true
	if r.classDepsRev[ctx][to] == nil {
		r.classDepsRev[ctx][to] = make(map[string]bool)
	}
	r.classDepsRev[ctx][to][from] = true
}

// addBinaryDep records an external dependency from srcClass onto binaryClass
// under ctx.
func (r *Relations) addBinaryDep(srcClass, binaryClass string, ctx DependencyContext) {
	if r.binaryDepsFwd[ctx][srcClass] == nil {
		r.binaryDepsFwd[ctx][srcClass] = make(map[string]bool)
	}
	r.binaryDepsFwd[ctx][srcClass][binaryClass] = true
	if r.binaryDepsRev[ctx][binaryClass] == nil {
		r.binaryDepsRev[ctx][binaryClass] = make(map[string]bool)
	}
	r.binaryDepsRev[ctx][binaryClass][srcClass] = true
}

// setProductClassName records the productClassName bijection entry for a
// non-local class.
func (r *Relations) setProductClassName(srcClass, binaryClass string) {
	r.srcClassToBinary[srcClass] = binaryClass
	r.binaryToSrcClass[binaryClass] = srcClass
}

// addUsedName records that name was used within srcClass under scope.
func (r *Relations) addUsedName(srcClass, name string, scope NameScope) {
	if r.usedNames[srcClass] == nil {
		r.usedNames[srcClass] = make(map[string]UsedName)
	}
	un, ok := r.usedNames[srcClass][name]
	if !ok {
		un = UsedName{Name: name, Scopes: make(map[NameScope]bool)}
	}
	un.Scopes[scope] = true
	r.usedNames[srcClass][name] = un
}

// ClassesOf returns the srcClasses defined in src.
func (r *Relations) ClassesOf(src string) []string {
	out := make([]string, 0, len(r.srcToClasses[src]))
	for c := range r.srcToClasses[src] {
		out = append(out, c)
	}
	return out
}

// SourceOf returns the source that defines srcClass, and whether it was found.
func (r *Relations) SourceOf(srcClass string) (string, bool) {
	s, ok := r.classToSrc[srcClass]
	return s, ok
}

// ProductsOf returns the product paths, local and non-local, owned by src.
func (r *Relations) ProductsOf(src string) []string {
	out := make([]string, 0, len(r.srcToProducts[src]))
	for p := range r.srcToProducts[src] {
		out = append(out, p)
	}
	return out
}

// SourceOwningProduct returns the source that produced the product at path.
func (r *Relations) SourceOwningProduct(path string) (string, bool) {
	s, ok := r.productToSrc[path]
	return s, ok
}

// LibDepsOf returns the library paths src depends on.
func (r *Relations) LibDepsOf(src string) []string {
	out := make([]string, 0, len(r.srcToLibDeps[src]))
	for p := range r.srcToLibDeps[src] {
		out = append(out, p)
	}
	return out
}

// SourcesDependingOnLib returns the sources that depend on the library entry
// at path.
func (r *Relations) SourcesDependingOnLib(path string) []string {
	out := make([]string, 0, len(r.libDepToSrcs[path]))
	for s := range r.libDepToSrcs[path] {
		out = append(out, s)
	}
	return out
}

// ClassDepsFrom returns the srcClasses that from depends on under ctx.
func (r *Relations) ClassDepsFrom(from string, ctx DependencyContext) []string {
	out := make([]string, 0, len(r.classDepsFwd[ctx][from]))
	for to := range r.classDepsFwd[ctx][from] {
		out = append(out, to)
	}
	return out
}

// ClassDepsOnto returns the srcClasses that depend on to under ctx.
func (r *Relations) ClassDepsOnto(to string, ctx DependencyContext) []string {
	out := make([]string, 0, len(r.classDepsRev[ctx][to]))
	for from := range r.classDepsRev[ctx][to] {
		out = append(out, from)
	}
	return out
}

// BinaryDepsFrom returns the binary class names that srcClass depends on
// under ctx.
func (r *Relations) BinaryDepsFrom(srcClass string, ctx DependencyContext) []string {
	out := make([]string, 0, len(r.binaryDepsFwd[ctx][srcClass]))
	for to := range r.binaryDepsFwd[ctx][srcClass] {
		out = append(out, to)
	}
	return out
}

// BinaryDepsOnto returns the srcClasses depending on binaryClass under ctx.
func (r *Relations) BinaryDepsOnto(binaryClass string, ctx DependencyContext) []string {
	out := make([]string, 0, len(r.binaryDepsRev[ctx][binaryClass]))
	for from := range r.binaryDepsRev[ctx][binaryClass] {
		out = append(out, from)
	}
	return out
}

// BinaryNameOf returns the binary class name bound to srcClass, if any.
func (r *Relations) BinaryNameOf(srcClass string) (string, bool) {
	b, ok := r.srcClassToBinary[srcClass]
	return b, ok
}

// SrcClassOfBinary returns the srcClass bound to binaryClass, if any.
func (r *Relations) SrcClassOfBinary(binaryClass string) (string, bool) {
	s, ok := r.binaryToSrcClass[binaryClass]
	return s, ok
}

// UsedNamesOf returns the names used within srcClass.
func (r *Relations) UsedNamesOf(srcClass string) []UsedName {
	out := make([]UsedName, 0, len(r.usedNames[srcClass]))
	for _, un := range r.usedNames[srcClass] {
		out = append(out, un)
	}
	return out
}

// withoutSources returns a clone of r with everything the given sources
// own removed: their classes, products, lib deps, outgoing class and
// binary deps, productClassName entries, and used names. Incoming edges
// from surviving classes onto a dropped class are kept: the depending
// class owns them, and they are what lets a later change to a
// same-named replacement class find its dependents.
func (r *Relations) withoutSources(sources map[string]bool) *Relations {
	doomedClasses := make(map[string]bool)
	for src := range sources {
		for class := range r.srcToClasses[src] {
			doomedClasses[class] = true
		}
	}

	out := NewRelations()
	for src, classes := range r.srcToClasses {
		if sources[src] {
			continue
		}
		for class := range classes {
			out.addClass(src, class)
		}
	}
	for src, products := range r.srcToProducts {
		if sources[src] {
			continue
		}
		for p := range products {
			out.addProduct(src, p)
		}
	}
	for src, deps := range r.srcToLibDeps {
		if sources[src] {
			continue
		}
		for d := range deps {
			out.addLibDep(src, d)
		}
	}
	for ctx, fwd := range r.classDepsFwd {
		for from, tos := range fwd {
			if doomedClasses[from] {
				continue
			}
			for to := range tos {
				out.addClassDep(from, to, ctx)
			}
		}
	}
	for ctx, fwd := range r.binaryDepsFwd {
		for from, tos := range fwd {
			if doomedClasses[from] {
				continue
			}
			for to := range tos {
				out.addBinaryDep(from, to, ctx)
			}
		}
	}
	for srcClass, binary := range r.srcClassToBinary {
		if doomedClasses[srcClass] {
			continue
		}
		out.setProductClassName(srcClass, binary)
	}
	for srcClass, names := range r.usedNames {
		if doomedClasses[srcClass] {
			continue
		}
		for name, un := range names {
			for scope := range un.Scopes {
				out.addUsedName(srcClass, name, scope)
			}
		}
	}
	return out
}
