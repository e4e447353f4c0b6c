package repository

import (
	"context"
	"embed"
	"io/fs"

	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrations returns the embedded schema migrations
func Migrations() (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("STORE_MIGRATE_FAILED").Wrap(err)
	}
	return LoadMigrations(sub)
}

// LoadMigrations discovers NNNN_name.[tx.]up.sql / down.sql files in fsys
func LoadMigrations(fsys fs.FS) (*migrate.Migrations, error) {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(fsys); err != nil {
		return nil, oops.Code("STORE_MIGRATE_FAILED").Wrap(err)
	}
	return migrations, nil
}

// Migrate applies the migrations not yet recorded in bun_migrations and
// returns the group it applied. A migration is recorded only once it succeeds.
func Migrate(ctx context.Context, db *bun.DB, migrations *migrate.Migrations) (*migrate.MigrationGroup, error) {
	var group *migrate.MigrationGroup
	err := withMigrator(ctx, db, migrations, func(m *migrate.Migrator) error {
		var err error
		group, err = m.Migrate(ctx)
		return err
	})
	return group, err
}

// Rollback reverts the last applied migration group
func Rollback(ctx context.Context, db *bun.DB, migrations *migrate.Migrations) (*migrate.MigrationGroup, error) {
	var group *migrate.MigrationGroup
	err := withMigrator(ctx, db, migrations, func(m *migrate.Migrator) error {
		var err error
		group, err = m.Rollback(ctx)
		return err
	})
	return group, err
}

func withMigrator(ctx context.Context, db *bun.DB, migrations *migrate.Migrations, fn func(*migrate.Migrator) error) error {
	migrator := migrate.NewMigrator(db, migrations, migrate.WithMarkAppliedOnSuccess(true))

	if err := migrator.Init(ctx); err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").With("step", "init").Wrap(err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return oops.Code("STORE_MIGRATE_LOCKED").Wrap(err)
	}
	defer func() {
		_ = migrator.Unlock(ctx)
	}()

	if err := fn(migrator); err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").Wrap(err)
	}
	return nil
}
