// Package store provides the SQLite-backed implementation of the order
// transaction store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ecomkit/cyberpay/order"
)

// SQLiteStore persists order transactions in a WAL-mode SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS order_transactions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		amount REAL NOT NULL,
		currency TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_order_transactions_txn_id
		ON order_transactions (json_extract(details, '$.transaction_id'));
	`
	return s.retry(func() error {
		_, err := s.db.Exec(query)
		return err
	})
}

// retry re-runs an operation when SQLite reports the database as busy, with
// a short exponential backoff.
func (s *SQLiteStore) retry(operation func() error) error {
	const maxRetries = 4
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") && !strings.Contains(err.Error(), "SQLITE_BUSY") {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(10*(1<<attempt)) * time.Millisecond)
	}
	return fmt.Errorf("store: operation failed after retries: %w", lastErr)
}

// Get loads a transaction by its local id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*order.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, amount, currency, details FROM order_transactions WHERE id = ?`, id)
	return scanRecord(row)
}

// GetByProcessorTransactionID loads the transaction whose payment details
// carry the given processor transaction id.
func (s *SQLiteStore) GetByProcessorTransactionID(ctx context.Context, transactionID string) (*order.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, amount, currency, details FROM order_transactions
		 WHERE json_extract(details, '$.transaction_id') = ?`, transactionID)
	return scanRecord(row)
}

// Create inserts a new transaction record.
func (s *SQLiteStore) Create(ctx context.Context, record *order.TransactionRecord) error {
	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("store: failed to marshal details: %w", err)
	}
	return s.retry(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO order_transactions (id, state, amount, currency, details) VALUES (?, ?, ?, ?, ?)`,
			record.ID, string(record.State), record.Amount, record.Currency, string(details))
		return err
	})
}

// UpdateState moves a transaction to the given state.
func (s *SQLiteStore) UpdateState(ctx context.Context, id string, state order.State) error {
	return s.exec(ctx,
		`UPDATE order_transactions SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(state), id)
}

// UpdateDetails replaces the payment details blob.
func (s *SQLiteStore) UpdateDetails(ctx context.Context, id string, details order.PaymentDetails) error {
	blob, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("store: failed to marshal details: %w", err)
	}
	return s.exec(ctx,
		`UPDATE order_transactions SET details = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(blob), id)
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) error {
	return s.retry(func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return order.ErrNotFound
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(row *sql.Row) (*order.TransactionRecord, error) {
	var record order.TransactionRecord
	var state, details string
	err := row.Scan(&record.ID, &state, &record.Amount, &record.Currency, &details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load transaction: %w", err)
	}
	record.State = order.State(state)
	if err := json.Unmarshal([]byte(details), &record.Details); err != nil {
		return nil, fmt.Errorf("store: failed to decode details: %w", err)
	}
	return &record, nil
}
