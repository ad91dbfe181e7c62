package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pkg-perl/petprov/internal/provisioning"
)

// Seed ensures one SeedRow exists. The guard counts rows by key; the
// effect inserts the row.
type Seed struct {
	Stores StoreProvider
	Label  string
	Row    SeedRow
}

func (a *Seed) Kind() string { return "seed" }
func (a *Seed) Description() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Row.String()
}
func (a *Seed) Principal() string { return a.Row.Role }

// Guard implements provisioning.Action.
func (a *Seed) Guard(ctx context.Context) (bool, error) {
	store, err := a.Stores.Store(ctx)
	if err != nil {
		return false, unavailable(err)
	}
	return store.RowExists(ctx, a.Row)
}

// Apply implements provisioning.Action.
func (a *Seed) Apply(ctx context.Context) error {
	store, err := a.Stores.Store(ctx)
	if err != nil {
		return err
	}
	return store.InsertRow(ctx, a.Row)
}

// SQL runs statements as Role in one transaction. When UnlessQuery is set
// and returns at least one row, the statements are skipped.
type SQL struct {
	Stores      StoreProvider
	Label       string
	Role        string
	Statements  []string
	UnlessQuery string
}

func (a *SQL) Kind() string { return "sql" }
func (a *SQL) Description() string {
	if a.Label != "" {
		return a.Label
	}
	return fmt.Sprintf("sql (%d statements)", len(a.Statements))
}
func (a *SQL) Principal() string { return a.Role }
func (a *SQL) Unguarded() bool   { return a.UnlessQuery == "" }

// Guard implements provisioning.Action.
func (a *SQL) Guard(ctx context.Context) (bool, error) {
	if a.UnlessQuery == "" {
		return false, nil
	}
	store, err := a.Stores.Store(ctx)
	if err != nil {
		return false, unavailable(err)
	}

	var found bool
	err = store.withRole(ctx, a.Role, func(tx *gorm.DB) error {
		rows, err := tx.Raw(a.UnlessQuery).Rows()
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		found = rows.Next()
		return rows.Err()
	})
	if err != nil {
		return false, fmt.Errorf("unless query failed: %w", err)
	}
	return found, nil
}

// Apply implements provisioning.Action.
func (a *SQL) Apply(ctx context.Context) error {
	store, err := a.Stores.Store(ctx)
	if err != nil {
		return err
	}
	return store.withRole(ctx, a.Role, func(tx *gorm.DB) error {
		for i, stmt := range a.Statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// unavailable marks a failed open so a dry run can report the action as
// pending; earlier steps may be what creates the database.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", provisioning.ErrGuardUnavailable, err)
}
