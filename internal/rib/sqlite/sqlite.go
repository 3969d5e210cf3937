// Package sqlite persists the RIB so a restarted daemon can rebuild its
// topology before the first collection cycle completes. The in-memory
// store remains the query path; this backend only mirrors it.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/DrC0ns0le/net-topo/internal/rib"
)

// SchemaVersion is written to the sqlite user_version pragma. Databases
// with a newer version than this build understands are rejected.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS rib (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	router TEXT NOT NULL,
	loopback_ip TEXT NOT NULL DEFAULT '',
	protocol TEXT NOT NULL,
	destination TEXT NOT NULL,
	interface TEXT NOT NULL DEFAULT '',
	next_hop TEXT NOT NULL DEFAULT '',
	UNIQUE(router, loopback_ip, protocol, destination, interface, next_hop)
);
CREATE INDEX IF NOT EXISTS idx_rib_router ON rib (router);
`

type Backend struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (or creates) the RIB database at path.
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "checking schema version")
	}
	if version > SchemaVersion {
		db.Close()
		return nil, errors.Errorf("database schema version %d is newer than supported %d", version, SchemaVersion)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting up schema")
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "writing schema version")
	}

	return &Backend{db: db}, nil
}

// Load returns all persisted entries.
func (b *Backend) Load() ([]rib.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, err := b.db.Query(
		"SELECT router, loopback_ip, protocol, destination, interface, next_hop FROM rib ORDER BY router, id")
	if err != nil {
		return nil, errors.Wrap(err, "querying rib")
	}
	defer rows.Close()

	var entries []rib.Entry
	for rows.Next() {
		var e rib.Entry
		var protocol string
		if err := rows.Scan(&e.Router, &e.Loopback, &protocol, &e.Destination, &e.Interface, &e.NextHop); err != nil {
			return nil, errors.Wrap(err, "scanning rib row")
		}
		e.Protocol = rib.Protocol(protocol)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceRouter transactionally replaces one router's rows, mirroring the
// store's per-device refresh. Duplicate rows are ignored.
func (b *Backend) ReplaceRouter(router string, entries []rib.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM rib WHERE router = ?", router); err != nil {
		return errors.Wrapf(err, "clearing rows for %s", router)
	}

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO rib (router, loopback_ip, protocol, destination, interface, next_hop) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(router, e.Loopback, string(e.Protocol), e.Destination, e.Interface, e.NextHop); err != nil {
			return errors.Wrapf(err, "inserting row for %s", router)
		}
	}
	return errors.Wrap(tx.Commit(), "committing")
}

// RemoveRouter drops one router's rows.
func (b *Backend) RemoveRouter(router string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.Exec("DELETE FROM rib WHERE router = ?", router)
	return errors.Wrapf(err, "removing rows for %s", router)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Close()
}
