package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Manager owns the database handle and exposes the repositories built on it
type Manager struct {
	db    *bun.DB
	users *Users
}

// Open connects to the sqlite database at dsn
func Open(dsn string) (*Manager, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").Wrap(err)
	}
	// sqlite serializes writers; a single connection also keeps
	// shared in-memory databases alive for the process lifetime.
	sqldb.SetMaxOpenConns(1)

	return NewManager(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

// NewManager wraps an existing bun.DB
func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:    db,
		users: NewUsersRepository(db),
	}
}

// Validate checks every repository was initialized
func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	return nil
}

// DB returns the underlying bun.DB
func (m *Manager) DB() *bun.DB {
	return m.db
}

// Users returns the users repository
func (m *Manager) Users() *Users {
	return m.users
}

// Migrate applies the pending embedded schema migrations
func (m *Manager) Migrate(ctx context.Context) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	_, err = Migrate(ctx, m.db, migrations)
	return err
}

// RunInTx runs f in a transaction with repositories bound to it
func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, users *Users) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return f(ctx, m.users.WithTx(tx))
		})
	}
}

// Ping checks the database is reachable
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// CountUsers returns the number of registered users
func (m *Manager) CountUsers(ctx context.Context) (int, error) {
	return m.users.Count(ctx)
}

// Close releases the database handle
func (m *Manager) Close() error {
	return m.db.Close()
}
