// Package store provides the persistent store (C1): five SQLite-backed
// relations — blocks, transactions, inputs, outputs, balances — and the
// transactional operations the chain state engine drives them through.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a handle to the persistent UTXO ledger tables. All mutating
// methods run as a single SQL transaction — all-or-nothing, so a failure
// partway through never leaves a partial block or rewind visible to
// readers.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database named by dsn and ensures the
// schema exists. dsn is expected to already carry the WAL/busy-timeout
// pragmas internal/config.Load appends for a bare file path.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite serializes writers internally; a single connection avoids
	// "database is locked" errors from the driver racing itself and
	// matches the writer-serialization contract the engine enforces
	// in-process anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable, used by the health endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS blocks (
		id     TEXT PRIMARY KEY,
		height INTEGER NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id       TEXT PRIMARY KEY,
		block_id TEXT NOT NULL REFERENCES blocks(id) ON DELETE CASCADE,
		tx_order INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_block ON transactions(block_id);

	CREATE TABLE IF NOT EXISTS inputs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		tx_id            TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		spent_utxo_txid  TEXT NOT NULL,
		spent_utxo_index INTEGER NOT NULL,
		input_order      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inputs_tx ON inputs(tx_id);
	CREATE INDEX IF NOT EXISTS idx_inputs_spent_utxo ON inputs(spent_utxo_txid, spent_utxo_index);

	CREATE TABLE IF NOT EXISTS outputs (
		txid     TEXT NOT NULL,
		idx      INTEGER NOT NULL,
		address  TEXT NOT NULL,
		value    INTEGER NOT NULL,
		is_spent INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (txid, idx)
	);
	CREATE INDEX IF NOT EXISTS idx_outputs_address ON outputs(address);
	CREATE INDEX IF NOT EXISTS idx_outputs_spent ON outputs(is_spent);

	CREATE TABLE IF NOT EXISTS balances (
		address TEXT PRIMARY KEY,
		balance INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
