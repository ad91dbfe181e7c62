package database

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// petSchema is the subset of the pet schema the seed steps touch.
var petSchema = []string{
	`CREATE TABLE team (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		maintainer TEXT,
		url TEXT
	)`,
	`CREATE TABLE repository (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		root TEXT NOT NULL,
		web_root TEXT,
		team_id INTEGER NOT NULL REFERENCES team(id)
	)`,
	`CREATE TABLE package (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		repository_id INTEGER NOT NULL REFERENCES repository(id)
	)`,
	`CREATE TABLE archive (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		web_root TEXT
	)`,
	`CREATE TABLE suite (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		archive_id INTEGER NOT NULL REFERENCES archive(id),
		name TEXT NOT NULL
	)`,
}

// testingT is satisfied by both *testing.T and GinkgoT().
type testingT interface {
	require.TestingT
	Helper()
	Cleanup(func())
}

// openTestDB creates an in-memory SQLite DB, optionally with the pet schema.
func openTestDB(tb testingT, withSchema bool) *gorm.DB {
	tb.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(tb, err)

	// Every connection to :memory: is its own database.
	sqlDB, err := db.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(tb, db.Exec("PRAGMA foreign_keys = ON").Error)
	if withSchema {
		for _, stmt := range petSchema {
			require.NoError(tb, db.Exec(stmt).Error)
		}
	}
	return db
}

// staticProvider always returns the same store.
type staticProvider struct {
	store *Store
}

func (p staticProvider) Store(context.Context) (*Store, error) { return p.store, nil }

func teamRow() SeedRow {
	return SeedRow{
		Table: "team",
		Key:   map[string]any{"name": "pkg-perl"},
		Columns: map[string]any{
			"name":       "pkg-perl",
			"maintainer": "Debian Perl Group <pkg-perl-maintainers@lists.alioth.debian.org>",
			"url":        "http://pkg-perl.alioth.debian.org/",
		},
		Role: "pet",
	}
}

func repositoryRow() SeedRow {
	return SeedRow{
		Table: "repository",
		Key:   map[string]any{"name": "git"},
		Columns: map[string]any{
			"type":     "git",
			"root":     "https://pet.alioth.debian.org/pet2-data/pkg-perl/git-pkg-perl-packages.json",
			"web_root": "http://anonscm.debian.org/gitweb/?p=pkg-perl/packages",
			"team_id":  Ref{Table: "team", Key: map[string]any{"name": "pkg-perl"}},
		},
		Role: "pet",
	}
}

func countRows(tb testing.TB, db *gorm.DB, table string) int64 {
	tb.Helper()
	var n int64
	require.NoError(tb, db.Table(table).Count(&n).Error)
	return n
}
