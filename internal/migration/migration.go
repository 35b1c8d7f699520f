package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Status is the schema state of a database.
type Status struct {
	Version  uint   `json:"version"`
	Dirty    bool   `json:"dirty"`
	Latest   uint   `json:"latest"`
	Checksum string `json:"checksum"`
}

// Pending reports whether embedded migrations are not applied yet.
func (s Status) Pending() bool { return s.Version < s.Latest }

// Up applies every embedded migration under the advisory lock.
func Up(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	manifest, err := ReadManifest()
	if err != nil {
		return err
	}
	return withAdvisoryLock(ctx, db, func(conn *sql.Conn) error {
		m, err := newMigrator(ctx, conn)
		if err != nil {
			return err
		}
		before, err := version(m)
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		after, err := version(m)
		if err != nil {
			return err
		}
		if after != manifest.Latest {
			return fmt.Errorf("schema version mismatch after migrate: got %d want %d", after, manifest.Latest)
		}
		log.Info("schema is current",
			zap.Uint("from_version", before),
			zap.Uint("version", after),
			zap.String("checksum", manifest.Checksum),
		)
		return nil
	})
}

// Down rolls back the given number of migrations.
func Down(ctx context.Context, db *sql.DB, steps int, log *zap.Logger) error {
	if steps <= 0 {
		return errors.New("migration: steps must be positive")
	}
	return withAdvisoryLock(ctx, db, func(conn *sql.Conn) error {
		m, err := newMigrator(ctx, conn)
		if err != nil {
			return err
		}
		if _, err := version(m); err != nil {
			return err
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back migrations: %w", err)
		}
		current, _, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return err
		}
		log.Info("schema rolled back", zap.Int("steps", steps), zap.Uint("version", current))
		return nil
	})
}

// Inspect reads the applied version without changing the schema.
func Inspect(ctx context.Context, db *sql.DB) (Status, error) {
	manifest, err := ReadManifest()
	if err != nil {
		return Status{}, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return Status{}, err
	}
	defer conn.Close()

	m, err := newMigrator(ctx, conn)
	if err != nil {
		return Status{}, err
	}
	st := Status{Latest: manifest.Latest, Checksum: manifest.Checksum}
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return Status{}, fmt.Errorf("read migration version: %w", err)
	default:
		st.Version, st.Dirty = v, dirty
	}
	return st, nil
}

func newMigrator(ctx context.Context, conn *sql.Conn) (*migrate.Migrate, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// version fails on a dirty schema, which needs manual repair.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", v)
	}
	return v, nil
}
