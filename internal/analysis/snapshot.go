package analysis

import "incrc/internal/stamp"

// Snapshot is a gob-friendly flattening of an Analysis, used by the
// persist package to write/read the Analysis store between driver runs.
// It carries only the forward-facing
// half of Relations; the reverse indexes and bijections are rebuilt by
// replaying the same mutators Relations uses internally.
type Snapshot struct {
	Stamps          map[string]stamp.Stamp
	ProductStamps   map[string]stamp.Stamp
	LibStamps       map[string]stamp.Stamp
	Apis            map[string]ApiInfo
	Infos           map[string]*AnalyzedClass
	SourceInfos     map[string]SourceInfo
	ExternalClasses map[string]*AnalyzedClass
	Compilations    []Compilation

	SrcToClasses map[string]map[string]bool
	SrcToProducts map[string]map[string]bool
	SrcToLibDeps  map[string]map[string]bool
	ClassDepsFwd  map[DependencyContext]map[string]map[string]bool
	BinaryDepsFwd map[DependencyContext]map[string]map[string]bool
	SrcClassToBinary map[string]string
	UsedNames map[string]map[string]UsedName
}

// Snapshot flattens a into a Snapshot suitable for gob encoding.
func (a *Analysis) Snapshot() Snapshot {
	s := Snapshot{
		Stamps:           copyStampMap(a.stamps),
		ProductStamps:    copyStampMap(a.productStamps),
		LibStamps:        copyStampMap(a.libStamps),
		Apis:             make(map[string]ApiInfo, len(a.apis)),
		Infos:            make(map[string]*AnalyzedClass, len(a.infos)),
		SourceInfos:      make(map[string]SourceInfo, len(a.sourceInfos)),
		ExternalClasses:  make(map[string]*AnalyzedClass, len(a.externalClasses)),
		Compilations:     append([]Compilation(nil), a.compilations...),
		SrcToClasses:     make(map[string]map[string]bool),
		SrcToProducts:    make(map[string]map[string]bool),
		SrcToLibDeps:     make(map[string]map[string]bool),
		ClassDepsFwd:     make(map[DependencyContext]map[string]map[string]bool),
		BinaryDepsFwd:    make(map[DependencyContext]map[string]map[string]bool),
		SrcClassToBinary: make(map[string]string),
		UsedNames:        make(map[string]map[string]UsedName),
	}
	for k, v := range a.apis {
		// Retained full shapes are an in-memory debugging aid; only the
		// hashes are persisted.
		v.ClassLike = nil
		s.Apis[k] = v
	}
	for k, v := range a.infos {
		s.Infos[k] = v
	}
	for k, v := range a.sourceInfos {
		s.SourceInfos[k] = v
	}
	for k, v := range a.externalClasses {
		s.ExternalClasses[k] = v
	}

	r := a.relations
	for src, classes := range r.srcToClasses {
		s.SrcToClasses[src] = copyBoolMap(classes)
	}
	for src, products := range r.srcToProducts {
		s.SrcToProducts[src] = copyBoolMap(products)
	}
	for src, deps := range r.srcToLibDeps {
		s.SrcToLibDeps[src] = copyBoolMap(deps)
	}
	for ctx, fwd := range r.classDepsFwd {
		s.ClassDepsFwd[ctx] = make(map[string]map[string]bool, len(fwd))
		for from, tos := range fwd {
			s.ClassDepsFwd[ctx][from] = copyBoolMap(tos)
		}
	}
	for ctx, fwd := range r.binaryDepsFwd {
		s.BinaryDepsFwd[ctx] = make(map[string]map[string]bool, len(fwd))
		for from, tos := range fwd {
			s.BinaryDepsFwd[ctx][from] = copyBoolMap(tos)
		}
	}
	for srcClass, binary := range r.srcClassToBinary {
		s.SrcClassToBinary[srcClass] = binary
	}
	for srcClass, names := range r.usedNames {
		s.UsedNames[srcClass] = make(map[string]UsedName, len(names))
		for name, un := range names {
			s.UsedNames[srcClass][name] = un
		}
	}
	return s
}

// FromSnapshot rebuilds a full Analysis from a Snapshot, replaying the
// forward-facing relations through Relations' mutators so the reverse
// indexes and bijections come back consistent.
func FromSnapshot(s Snapshot) *Analysis {
	out := Empty()
	out.stamps = copyStampMap(s.Stamps)
	out.productStamps = copyStampMap(s.ProductStamps)
	out.libStamps = copyStampMap(s.LibStamps)
	out.compilations = append([]Compilation(nil), s.Compilations...)
	for k, v := range s.Apis {
		out.apis[k] = v
	}
	for k, v := range s.Infos {
		out.infos[k] = v
	}
	for k, v := range s.SourceInfos {
		out.sourceInfos[k] = v
	}
	for k, v := range s.ExternalClasses {
		out.externalClasses[k] = v
	}

	r := out.relations
	for src, classes := range s.SrcToClasses {
		for class := range classes {
			r.addClass(src, class)
		}
	}
	for src, products := range s.SrcToProducts {
		for p := range products {
			r.addProduct(src, p)
		}
	}
	for src, deps := range s.SrcToLibDeps {
		for d := range deps {
			r.addLibDep(src, d)
		}
	}
	for ctx, fwd := range s.ClassDepsFwd {
		for from, tos := range fwd {
			for to := range tos {
				r.addClassDep(from, to, ctx)
			}
		}
	}
	for ctx, fwd := range s.BinaryDepsFwd {
		for from, tos := range fwd {
			for to := range tos {
				r.addBinaryDep(from, to, ctx)
			}
		}
	}
	for srcClass, binary := range s.SrcClassToBinary {
		r.setProductClassName(srcClass, binary)
	}
	for srcClass, names := range s.UsedNames {
		for _, un := range names {
			for scope := range un.Scopes {
				r.addUsedName(srcClass, un.Name, scope)
			}
		}
	}
	return out
}

func copyStampMap(m map[string]stamp.Stamp) map[string]stamp.Stamp {
	out := make(map[string]stamp.Stamp, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
