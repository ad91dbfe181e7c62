// Package overview implements the overview page helpers: section toggles
// and incremental loading of page fragments.
//
// The helpers operate on a Document passed in explicitly rather than on a
// global page, so they run the same against a MemoryDocument in tests and
// tools as against a real rendering backend.
package overview
