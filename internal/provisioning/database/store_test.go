package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pkg-perl/petprov/internal/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRow_InsertsOnce(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	store := New(db)
	ctx := context.Background()

	inserted, err := store.EnsureRow(ctx, teamRow())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.EnsureRow(ctx, teamRow())
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Equal(t, int64(1), countRows(t, db, "team"))

	var maintainer string
	require.NoError(t, db.Table("team").Select("maintainer").Where("name = ?", "pkg-perl").Row().Scan(&maintainer))
	assert.Contains(t, maintainer, "Debian Perl Group")
}

func TestInsertRow_ResolvesReference(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	store := New(db)
	ctx := context.Background()

	_, err := store.EnsureRow(ctx, teamRow())
	require.NoError(t, err)
	_, err = store.EnsureRow(ctx, repositoryRow())
	require.NoError(t, err)

	var teamID, repoTeamID int64
	require.NoError(t, db.Table("team").Select("id").Where("name = ?", "pkg-perl").Row().Scan(&teamID))
	require.NoError(t, db.Table("repository").Select("team_id").Where("name = ?", "git").Row().Scan(&repoTeamID))
	assert.Equal(t, teamID, repoTeamID)
}

func TestInsertRow_MissingReference(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	store := New(db)

	err := store.InsertRow(context.Background(), repositoryRow())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReferenceNotFound))
	assert.Contains(t, err.Error(), "team.id where name=pkg-perl")
	assert.Equal(t, int64(0), countRows(t, db, "repository"))
}

func TestInsertRow_CustomReferenceColumn(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	store := New(db)
	ctx := context.Background()

	_, err := store.EnsureRow(ctx, teamRow())
	require.NoError(t, err)

	row := SeedRow{
		Table: "archive",
		Key:   map[string]any{"name": "debian"},
		Columns: map[string]any{
			"url":      "http://cdn.debian.net/debian",
			"web_root": Ref{Table: "team", Key: map[string]any{"name": "pkg-perl"}, Column: "url"},
		},
	}
	_, err = store.EnsureRow(ctx, row)
	require.NoError(t, err)

	var webRoot string
	require.NoError(t, db.Table("archive").Select("web_root").Row().Scan(&webRoot))
	assert.Equal(t, "http://pkg-perl.alioth.debian.org/", webRoot)
}

func TestEnsureRow_KeyWinsOverColumn(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	store := New(db)
	ctx := context.Background()

	row := SeedRow{
		Table:   "archive",
		Key:     map[string]any{"name": "debian"},
		Columns: map[string]any{"name": "Debian", "url": "http://cdn.debian.net/debian"},
	}
	for i := 0; i < 3; i++ {
		inserted, err := store.EnsureRow(ctx, row)
		require.NoError(t, err, "run %d", i+1)
		assert.Equal(t, i == 0, inserted, "run %d", i+1)
	}

	var name string
	require.NoError(t, db.Table("archive").Select("name").Row().Scan(&name))
	assert.Equal(t, "debian", name)
	assert.Equal(t, int64(1), countRows(t, db, "archive"))
}

func TestRowExists_MissingTable(t *testing.T) {
	t.Parallel()
	store := New(openTestDB(t, false))

	_, err := store.RowExists(context.Background(), teamRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed team name=pkg-perl")
}

func TestSeedAction(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	action := &Seed{Stores: staticProvider{New(db)}, Row: teamRow()}
	ctx := context.Background()

	assert.Equal(t, "seed", action.Kind())
	assert.Equal(t, "pet", action.Principal())
	assert.Equal(t, "seed team name=pkg-perl", action.Description())

	satisfied, err := action.Guard(ctx)
	require.NoError(t, err)
	require.False(t, satisfied)
	require.NoError(t, action.Apply(ctx))

	satisfied, err = action.Guard(ctx)
	require.NoError(t, err)
	assert.True(t, satisfied)

	action.Label = "database insert team table"
	assert.Equal(t, "database insert team table", action.Description())
}

func TestSeedAction_ProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	action := &Seed{
		Stores: NewLazyFunc(func(context.Context) (*Store, error) { return nil, boom }),
		Row:    teamRow(),
	}

	_, err := action.Guard(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, provisioning.ErrGuardUnavailable)

	err = action.Apply(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, provisioning.ErrGuardUnavailable)
}

func TestDryRun_DatabaseNotCreatedYet(t *testing.T) {
	t.Parallel()
	stores := NewLazyFunc(func(context.Context) (*Store, error) {
		return nil, errors.New(`database "pet" does not exist`)
	})
	actions := []provisioning.Action{
		&SQL{Stores: stores, Role: "pet", Statements: []string{"CREATE TABLE team (id INTEGER)"},
			UnlessQuery: "SELECT 1 FROM pg_tables WHERE tablename = 'team'"},
		&Seed{Stores: stores, Row: teamRow()},
		&Seed{Stores: stores, Row: repositoryRow()},
	}

	ctx := provisioning.NewContext(context.Background(), "pet", nil)
	ctx.DryRun = true
	report, err := provisioning.Run(ctx, actions)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(provisioning.StatusPending))
	assert.False(t, stores.Opened())
}

func TestSQLAction(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	action := &SQL{
		Stores:      staticProvider{New(db)},
		Label:       "load debversion",
		Role:        "pet",
		Statements:  []string{"CREATE TABLE debversion_marker (id INTEGER)", "INSERT INTO debversion_marker VALUES (1)"},
		UnlessQuery: "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'debversion_marker'",
	}
	ctx := context.Background()

	satisfied, err := action.Guard(ctx)
	require.NoError(t, err)
	require.False(t, satisfied)

	require.NoError(t, action.Apply(ctx))
	assert.Equal(t, int64(1), countRows(t, db, "debversion_marker"))

	satisfied, err = action.Guard(ctx)
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.Equal(t, "pet", action.Principal())
}

func TestSQLAction_RollsBackOnFailure(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, true)
	action := &SQL{
		Stores:     staticProvider{New(db)},
		Statements: []string{"INSERT INTO archive (name, url) VALUES ('debian', 'x')", "INSERT INTO nope VALUES (1)"},
	}

	err := action.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2")
	assert.Equal(t, int64(0), countRows(t, db, "archive"))
	assert.Equal(t, "sql (2 statements)", action.Description())

	satisfied, err := action.Guard(context.Background())
	require.NoError(t, err)
	assert.False(t, satisfied, "no unless query means always apply")
}

func TestLazy(t *testing.T) {
	t.Parallel()
	db := openTestDB(t, false)
	opens := 0
	fail := true
	lazy := NewLazyFunc(func(context.Context) (*Store, error) {
		opens++
		if fail {
			return nil, errors.New("database \"pet\" does not exist")
		}
		return New(db), nil
	})
	ctx := context.Background()

	assert.False(t, lazy.Opened())
	_, err := lazy.Store(ctx)
	require.Error(t, err)
	assert.False(t, lazy.Opened(), "failures are not cached")

	fail = false
	s1, err := lazy.Store(ctx)
	require.NoError(t, err)
	s2, err := lazy.Store(ctx)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 2, opens)
	assert.True(t, lazy.Opened())

	require.NoError(t, lazy.Close())
	assert.False(t, lazy.Opened())
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"pet"`, quoteIdent("pet"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
