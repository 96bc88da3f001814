package analysis

// RelationsDump is a YAML-friendly view of an Analysis's relations and API
// hashes, produced for relationsDebug/apiDebug logging. Maps are keyed by
// source path or srcClass name, values are sorted-insensitive sets; it is
// a diagnostic rendering, not a serialization format.
type RelationsDump struct {
	Sources map[string]SourceDump `yaml:"sources"`
	Apis    map[string]ApiDump    `yaml:"apis,omitempty"`
}

// SourceDump is one source's slice of the relations.
type SourceDump struct {
	Classes  []string            `yaml:"classes,omitempty"`
	Products []string            `yaml:"products,omitempty"`
	LibDeps  []string            `yaml:"libDeps,omitempty"`
	Deps     map[string][]string `yaml:"deps,omitempty"` // context name -> targets
}

// ApiDump is one class's hash pair, with the retained full shape when
// apiDebug kept one.
type ApiDump struct {
	PublicHash uint64      `yaml:"publicHash"`
	ExtraHash  uint64      `yaml:"extraHash"`
	ClassLike  interface{} `yaml:"classLike,omitempty"`
}

var contextNames = map[DependencyContext]string{
	DependencyByMemberRef:        "memberRef",
	DependencyByInheritance:      "inheritance",
	LocalDependencyByInheritance: "localInheritance",
}

// DebugDump flattens a into a RelationsDump. includeApis additionally
// renders the per-class hash table (and any retained shapes).
func (a *Analysis) DebugDump(includeApis bool) RelationsDump {
	dump := RelationsDump{Sources: make(map[string]SourceDump, len(a.stamps))}

	for src := range a.stamps {
		sd := SourceDump{
			Classes:  a.relations.ClassesOf(src),
			Products: a.relations.ProductsOf(src),
			LibDeps:  a.relations.LibDepsOf(src),
		}
		for ctx, name := range contextNames {
			for _, class := range sd.Classes {
				targets := a.relations.ClassDepsFrom(class, ctx)
				targets = append(targets, a.relations.BinaryDepsFrom(class, ctx)...)
				if len(targets) == 0 {
					continue
				}
				if sd.Deps == nil {
					sd.Deps = make(map[string][]string)
				}
				sd.Deps[name] = append(sd.Deps[name], targets...)
			}
		}
		dump.Sources[src] = sd
	}

	if includeApis {
		dump.Apis = make(map[string]ApiDump, len(a.apis))
		for class, info := range a.apis {
			dump.Apis[class] = ApiDump{
				PublicHash: info.PublicHash,
				ExtraHash:  info.ExtraHash,
				ClassLike:  info.ClassLike,
			}
		}
	}
	return dump
}
