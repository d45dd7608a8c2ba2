// Package tandem is the composition root for the Tandem coordination layer.
//
// Several agent sessions, usually separate OS processes, share one workspace
// directory holding four markdown documents: the shared context, the decision
// log, the progress summary and the quality metrics. Tandem keeps those
// documents consistent with best-effort advisory coordination:
//
//   - **Versioning**: bounded per-type snapshots with provenance and rollback.
//   - **Conflict detection**: foreign versions inside a time window flag a
//     concurrent modification.
//   - **Type-aware merge**: decision logs, task lists and shared context are
//     unioned; everything else falls back to last-writer-wins.
//   - **Advisory locks**: one TTL-scoped lock file per document type.
//   - **Handoffs**: role-filtered packages rendered for the next agent, scored
//     for structural completeness and tracked in a registry with an audit trail.
//
// Nothing here is a consensus protocol: writes that bypass the lock manager
// simply win, and timestamps come from each process's wall clock.
//
// Usage:
//
//	ws, err := tandem.Open(ctx, "./.agent-context",
//		tandem.WithLogger(logger),
//	)
//
//	// Snapshot, merge-aware write and handoff
//	res, err := ws.Service.Update(ctx, core.UpdateRequest{...})
//	h, v, err := ws.Handoffs.Create(ctx, handoff.Request{SourceAgent: "dev", TargetAgent: "qa"})
package tandem
