// Package provisioning runs ordered plans of idempotent setup actions.
//
// # Subpackages
//
//   - host/: packages, files, services, users and shell commands on the target
//   - database/: guarded SQL statements and natural-key seed rows
//
// # Core Types
//
// Action is one step: a side-effect-free Guard and a mutating Apply run
// under a principal. Run walks the actions in order, skips those whose guard
// holds, and aborts on the first error without rolling anything back.
// Context carries the run id, dry-run flag, observer and metrics; Report
// records the outcome of every action.
package provisioning
