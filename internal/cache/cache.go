// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache stores fetched raw traces in a local SQLite database so a
// transaction can be re-profiled without touching the node again. Entries
// are keyed by endpoint, transaction hash and tracer name: the same
// transaction traced by a different tracer is a different document.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles trace cache operations.
type Store struct {
	db *sql.DB
}

// Entry is one cached raw trace.
type Entry struct {
	RPCURL    string
	TxHash    string
	Tracer    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Open initializes the cache database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, "traces.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening trace cache: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rpc_url TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		tracer TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(rpc_url, tx_hash, tracer)
	);
	CREATE INDEX IF NOT EXISTS idx_traces_tx_hash ON traces(tx_hash);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("initializing cache schema: %w", err)
	}
	return nil
}

// Get returns the cached trace for the key, or nil when absent.
func (s *Store) Get(rpcURL, txHash, tracer string) (json.RawMessage, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM traces WHERE rpc_url = ? AND tx_hash = ? AND tracer = ?`,
		rpcURL, txHash, tracer,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading trace cache: %w", err)
	}
	return payload, nil
}

// Put stores a raw trace, replacing any previous entry for the key.
func (s *Store) Put(rpcURL, txHash, tracer string, payload json.RawMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO traces (rpc_url, tx_hash, tracer, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(rpc_url, tx_hash, tracer) DO UPDATE SET payload = excluded.payload,
		 created_at = CURRENT_TIMESTAMP`,
		rpcURL, txHash, tracer, []byte(payload),
	)
	if err != nil {
		return fmt.Errorf("writing trace cache: %w", err)
	}
	return nil
}

// Count returns the number of cached traces.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM traces`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting trace cache: %w", err)
	}
	return n, nil
}

// Flush removes every cached trace.
func (s *Store) Flush() error {
	if _, err := s.db.Exec(`DELETE FROM traces`); err != nil {
		return fmt.Errorf("flushing trace cache: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
