package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"incrc/internal/analysis"
	"incrc/internal/changes"
	"incrc/internal/invalidate"
	"incrc/internal/manifest"
	"incrc/internal/paths"
	"incrc/internal/persist"
	"incrc/internal/stamp"
)

var explainCmd = &cobra.Command{
	Use:   "explain <source>",
	Short: "Explain why a source would be (or was) invalidated",
	Long: `explain loads the last persisted Analysis, detects changes against
the current on-disk state, and reports whether <source> falls in the
invalidated set, and if so, which changed dependency pulled it in.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	target := args[0]
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg)

	mf, err := manifest.Load(repoRoot)
	if err != nil {
		return err
	}
	if !mf.Sources[target] {
		return fmt.Errorf("%s is not declared in %s", target, manifest.SourcesManifestFile)
	}

	store, err := persist.Open(paths.JoinRepoPath(repoRoot, cfg.AnalysisDB), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	previous, err := loadPreviousOrEmpty(store)
	if err != nil {
		return err
	}

	oracle := stamp.NewAt(repoRoot, cfg.Stamp.UseContentHash)
	ch, err := changes.Detect(previous, mf.Sources, oracle, emptyLookup{})
	if err != nil {
		return err
	}

	if ch.Added[target] {
		fmt.Printf("%s is new: not present in the last compiled Analysis\n", target)
		return nil
	}
	if ch.ModifiedSrc[target] {
		fmt.Printf("%s changed directly: its stamp no longer matches the last compile\n", target)
		return nil
	}

	invClasses, invSrcs := invalidate.InitialSeed(ch, previous)
	if !invSrcs[target] {
		fmt.Printf("%s would not be invalidated: no changed source, library, or external class reaches it\n", target)
		return nil
	}

	fmt.Printf("%s would be invalidated:\n", target)
	for _, class := range previous.Relations().ClassesOf(target) {
		if invClasses[class] {
			fmt.Printf("  %s\n", explainChain(previous, class, invClasses))
		}
	}
	return nil
}

// explainChain walks ClassDepsFrom from class through other invalidated
// classes, one step at a time, until it reaches a class with no further
// invalidated dependency, the root cause of the invalidation.
func explainChain(a *analysis.Analysis, class string, invalidated map[string]bool) string {
	contexts := []analysis.DependencyContext{
		analysis.DependencyByMemberRef,
		analysis.DependencyByInheritance,
		analysis.LocalDependencyByInheritance,
	}

	visited := map[string]bool{class: true}
	chain := []string{class}
	current := class

	for {
		next := ""
		for _, ctx := range contexts {
			for _, dep := range a.Relations().ClassDepsFrom(current, ctx) {
				if invalidated[dep] && !visited[dep] {
					next = dep
					break
				}
			}
			if next != "" {
				break
			}
		}
		if next == "" {
			break
		}
		visited[next] = true
		chain = append(chain, next)
		current = next
	}

	out := chain[0]
	for _, c := range chain[1:] {
		out += " <- depends on <- " + c
	}
	return out
}
