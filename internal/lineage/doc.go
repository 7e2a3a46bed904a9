// Package lineage turns resolved dependency lists into typed lineage edges.
//
// Dependencies in a dbt manifest are opaque IDs ("source.proj.raw.events",
// "model.proj.orders", "macro.proj.cents_to_dollars"). An Index maps those
// IDs to EntityIDs and macro records; Build partitions a dependency list by
// prefix and resolves each ID through the index.
//
// # Ordering
//
// Edge lists keep the first-seen order of the input and contain no
// duplicates. No cycle detection happens here: a node listed as its own
// dependency passes through unchanged.
//
// # Failures
//
// An ID absent from the index yields a *core.DanglingReferenceError. The
// edge is omitted and the remaining IDs are still resolved.
//
// # Basic Usage
//
//	idx := lineage.NewIndex()
//	idx.Sources["source.proj.raw.events"] = datasetID
//	idx.Models["model.proj.orders"] = viewID
//
//	edges, errs := lineage.Build("model.proj.summary", node.DependencyNodes(), node.DependencyMacros(), idx)
//	for _, err := range errs {
//	    logger.Warn("dropping lineage edge", "error", err)
//	}
package lineage
