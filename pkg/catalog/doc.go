// Package catalog builds and serves the static registry of analytics tools.
//
// Invariants:
// - Tool names are namespaced "<domain>.<action>" and globally unique.
// - A name collision at build time is fatal, never resolved by renaming.
// - The catalog is immutable after Build and safe for concurrent reads.
//
// Usage:
//
//	cat, err := catalog.Build(repoService, issueService)
//	if err != nil {
//		// duplicate tool name or invalid definition; do not start serving
//	}
//	def, ok := cat.Lookup("repo.get_repo_info")
//	_ = def
//	_ = ok
package catalog
