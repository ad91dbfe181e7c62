// Package database implements the provisioning actions that act on the
// application database: guarded seed rows and raw SQL steps.
//
// Access goes through gorm. The postgres driver is used in production; the
// tests run the same code against an in-memory SQLite database. Statements
// that should run as a specific database role are wrapped in a transaction
// that issues SET LOCAL ROLE first (postgres only).
package database
