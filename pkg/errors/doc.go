// Package errors provides structured error types for better observability
// and programmatic error handling across the harness.
//
// Every failure the harness can report carries a code, so the taxonomy is
// explicit instead of being encoded in log text:
//
//   - RESOURCE_EXHAUSTED: recovered inside a worker, never fails a round
//   - DEVICE_UNAVAILABLE: the worker fails fast
//   - SPAWN_FAILED, TIMEOUT: recorded as a failed worker outcome
//   - DISCOVERY_FAILED, RUNTIME_MISSING: the round is skipped, no worker is spawned
//   - ANOMALY: a kernel log match fails the round even if every worker passed
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeDiscoveryFailed,
//	    "failed to list MIG partitions",
//	    ctx.Err(),
//	    map[string]any{
//	        "command": "nvidia-smi",
//	    },
//	)
package errors
