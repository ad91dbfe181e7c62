// Package async runs independent tasks concurrently and collects their
// errors.
//
// It is used by the preflight checks to look up the tools a plan needs on
// its target in parallel.
package async
