// Package migrations applies the MongoDB index migrations embedded in the
// binary with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed mongodb/*.json
var files embed.FS

// Up applies all pending migrations. It reports whether anything changed.
func Up(uri, database string) (bool, error) {
	const op = "migrations.Up"

	m, err := open(uri, database)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// Down rolls back the given number of migrations.
func Down(uri, database string, steps int) error {
	const op = "migrations.Down"

	if steps <= 0 {
		return fmt.Errorf("%s: steps must be positive", op)
	}

	m, err := open(uri, database)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Version returns the current migration version and whether it is dirty.
func Version(uri, database string) (uint, bool, error) {
	const op = "migrations.Version"

	m, err := open(uri, database)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	v, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	return v, dirty, nil
}

func open(uri, database string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "mongodb")
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	dbURL, err := DatabaseURL(uri, database)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return m, nil
}

// DatabaseURL puts the database name into the path of a MongoDB connection
// string, which is where the migrate driver reads it from.
func DatabaseURL(uri, database string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse mongo uri: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", fmt.Errorf("unsupported mongo uri scheme %q", u.Scheme)
	}

	if database != "" {
		u.Path = "/" + database
	} else if strings.Trim(u.Path, "/") == "" {
		return "", errors.New("database name is required")
	}

	return u.String(), nil
}

// Files exposes the embedded migration set, mainly for tests.
func Files() embed.FS {
	return files
}
