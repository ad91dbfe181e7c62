// Package host implements the provisioning actions that act on the target
// machine: packages, files, services, users and guarded shell commands.
//
// Every action talks to the machine through an Executor, so the same plan
// runs locally (LocalExecutor) or over SSH (see internal/platform/ssh).
package host
