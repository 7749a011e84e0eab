// Package preflight implements the doctor checks: environment validation
// (data directory writable, free disk, file descriptor limit) and index
// health (database integrity, store/vector consistency, embedding
// dimensions, provider reachability).
//
// Checks never repair anything. A failed required check means the index
// cannot be trusted; the remediation is reported in the result, usually a
// rebuild.
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to serve
//	}
package preflight
