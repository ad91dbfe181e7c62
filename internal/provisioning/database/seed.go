package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pkg-perl/petprov/internal/config"
)

// ErrReferenceNotFound is returned when a seed column refers to a row that
// does not exist.
var ErrReferenceNotFound = errors.New("referenced row not found")

// Ref is a column value taken from another row at insert time.
type Ref struct {
	Table  string
	Key    map[string]any
	Column string
}

func (r Ref) column() string {
	if r.Column == "" {
		return "id"
	}
	return r.Column
}

func (r Ref) String() string {
	return fmt.Sprintf("%s.%s where %s", r.Table, r.column(), config.FormatKey(r.Key))
}

// SeedRow is a row that must exist, identified by its natural key.
type SeedRow struct {
	Table string
	// Key identifies the row; its columns are also inserted.
	Key map[string]any
	// Columns holds the remaining values. A Ref value is resolved on insert.
	Columns map[string]any
	// Role is the database role the row is checked and inserted as.
	Role string
}

func (r SeedRow) String() string {
	return fmt.Sprintf("seed %s %s", r.Table, config.FormatKey(r.Key))
}

// RowExists reports whether a row matching the seed key exists.
func (s *Store) RowExists(ctx context.Context, row SeedRow) (bool, error) {
	var count int64
	err := s.withRole(ctx, row.Role, func(tx *gorm.DB) error {
		return tx.Table(row.Table).Where(row.Key).Count(&count).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", row, err)
	}
	return count > 0, nil
}

// InsertRow inserts the seed row, resolving references first. Key values
// take precedence over columns of the same name. It does not check whether
// the row already exists.
func (s *Store) InsertRow(ctx context.Context, row SeedRow) error {
	err := s.withRole(ctx, row.Role, func(tx *gorm.DB) error {
		values := make(map[string]any, len(row.Key)+len(row.Columns))
		for k, v := range row.Columns {
			ref, ok := v.(Ref)
			if !ok {
				values[k] = v
				continue
			}
			resolved, err := resolve(tx, ref)
			if err != nil {
				return err
			}
			values[k] = resolved
		}
		// Key values win so the guard finds the row on the next run.
		for k, v := range row.Key {
			values[k] = v
		}
		return tx.Table(row.Table).Create(values).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", row, err)
	}
	return nil
}

// EnsureRow inserts row unless a row with its key exists. It reports
// whether a row was inserted.
func (s *Store) EnsureRow(ctx context.Context, row SeedRow) (bool, error) {
	exists, err := s.RowExists(ctx, row)
	if err != nil || exists {
		return false, err
	}
	if err := s.InsertRow(ctx, row); err != nil {
		return false, err
	}
	return true, nil
}

func resolve(tx *gorm.DB, ref Ref) (any, error) {
	var value any
	err := tx.Table(ref.Table).Select(ref.column()).Where(ref.Key).Limit(1).Row().Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	return value, nil
}
