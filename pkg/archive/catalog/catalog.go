// Package catalog is a secondary, SQLite-backed search index over the
// descriptor tables of every archive opened in this process. It is not
// a replacement for pkg/archive.Store's in-memory hashed indexes —
// those remain the path for point lookups during a fetch — this index
// exists purely so pmdump -search can find a metric name across many
// already-opened archives without re-scanning each one's log.
//
// Grounded on internal/repository/dbConnection.go (sqlhooks-wrapped
// sqlite3 driver, sqlx handle) and internal/repository/migration.go
// (golang-migrate schema versioning via an embedded iofs source).
package catalog

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	sqlite3drv "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/pmcore/pmcore/pkg/log"
	"github.com/pmcore/pmcore/pkg/pdu"
	"github.com/pmcore/pmcore/pkg/pdu/wire"
)

//go:embed migrations/*
var migrationFiles embed.FS

var registerOnce sync.Once

// Catalog is one open connection to the cross-archive search index.
type Catalog struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the catalog database at path and
// migrates it to the latest schema version.
func Open(path string) (*Catalog, error) {
	registerOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3drv.SQLiteDriver{}, &hooks{}))
	})

	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		log.Errorf("catalog.Open(%q): %v", path, err)
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := migrateSchema(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func migrateSchema(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("catalog: migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("catalog: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("catalog: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("catalog: migrate up: %w", err)
	}
	return nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// Descriptors is the narrow view of pkg/archive.Store that Index
// needs — kept minimal so catalog doesn't import archive's internals.
type Descriptors interface {
	Each(func(pmid pdu.MetricID, d wire.Descriptor, names []string))
}

// Index upserts every descriptor from one opened archive into the
// catalog under archiveBase, replacing any prior entries for that
// archive so re-indexing is idempotent.
func (c *Catalog) Index(archiveBase string, descs Descriptors) error {
	tx, err := c.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM descriptors WHERE archive = ?`, archiveBase); err != nil {
		return err
	}

	insert := sq.Insert("descriptors").Columns("archive", "pmid", "name", "type", "indom", "sem", "units")
	rows := 0
	descs.Each(func(pmid pdu.MetricID, d wire.Descriptor, names []string) {
		for _, n := range names {
			insert = insert.Values(archiveBase, uint32(pmid), n, d.Type, d.Indom, d.Sem, d.Units.Pack())
			rows++
		}
	})
	if rows > 0 {
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Match is one hit from Search.
type Match struct {
	Archive string
	PMID    pdu.MetricID
	Name    string
}

// Search finds every (archive, name) pair whose metric name matches
// the SQL LIKE pattern, across every archive ever indexed into this
// catalog — the basis for "pmdump -search <pattern>".
func (c *Catalog) Search(pattern string) ([]Match, error) {
	query, args, err := sq.Select("archive", "pmid", "name").
		From("descriptors").
		Where(sq.Like{"name": pattern}).
		OrderBy("archive", "name").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Archive string `db:"archive"`
		PMID    uint32 `db:"pmid"`
		Name    string `db:"name"`
	}
	if err := c.db.Select(&rows, query, args...); err != nil {
		log.Errorf("catalog.Search(%q): %v", pattern, err)
		return nil, err
	}
	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{Archive: r.Archive, PMID: pdu.MetricID(r.PMID), Name: r.Name})
	}
	return matches, nil
}
