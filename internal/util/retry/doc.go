// Package retry provides exponential backoff retry logic for transient failures.
//
// [Do] is used for SSH dials and database connections, both of which may fail
// while the target host is still coming up (for example right after the
// postgresql service restarts). Wrap an error with [Fatal] to stop retrying.
package retry
