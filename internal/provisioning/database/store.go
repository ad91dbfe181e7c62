package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pkg-perl/petprov/internal/config"
	"github.com/pkg-perl/petprov/internal/util/retry"
)

// Store wraps the gorm handle used by the database actions.
type Store struct {
	db *gorm.DB
}

// New wraps an already opened gorm DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to postgres, retrying while the server is unreachable. The
// database may only just have been created by earlier plan steps.
func Open(ctx context.Context, dsn string, timeouts *config.Timeouts) (*Store, error) {
	var db *gorm.DB
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return retry.Fatal(err)
		}
		return sqlDB.PingContext(ctx)
	},
		retry.WithMaxAttempts(timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(timeouts.RetryInitialDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// DB exposes the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRole runs fn in a transaction. On postgres the transaction first
// switches to role; other dialects ignore the role.
func (s *Store) withRole(ctx context.Context, role string, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if role != "" && tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SET LOCAL ROLE " + quoteIdent(role)).Error; err != nil {
				return fmt.Errorf("failed to switch to role %s: %w", role, err)
			}
		}
		return fn(tx)
	})
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// StoreProvider hands out the Store on demand.
type StoreProvider interface {
	Store(ctx context.Context) (*Store, error)
}

// Lazy opens the database on first use and keeps it open afterwards. A
// failed open is not cached, so a later action retries.
type Lazy struct {
	mu    sync.Mutex
	store *Store
	open  func(ctx context.Context) (*Store, error)
}

// NewLazy returns a provider that opens dsn with Open when first asked.
func NewLazy(dsn string, timeouts *config.Timeouts) *Lazy {
	return &Lazy{open: func(ctx context.Context) (*Store, error) {
		return Open(ctx, dsn, timeouts)
	}}
}

// NewLazyFunc returns a provider backed by a custom open function.
func NewLazyFunc(open func(ctx context.Context) (*Store, error)) *Lazy {
	return &Lazy{open: open}
}

// Store implements StoreProvider.
func (l *Lazy) Store(ctx context.Context) (*Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	store, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.store = store
	return store, nil
}

// Opened reports whether the database has been opened.
func (l *Lazy) Opened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store != nil
}

// Close closes the store if it was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
