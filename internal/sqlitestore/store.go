// Package sqlitestore implements the interaction tracking store on an
// embedded SQLite database for standalone operation.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/neuropharmdb-server/internal/domain"
)

// Store implements domain.Store using SQLite.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

var _ domain.Store = (*Store)(nil)

// Open creates the database file and schema if they don't exist and
// returns a ready store. SQLite allows a single writer, so the pool is
// limited to one connection.
func Open(dbPath string, logger *logrus.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("SQLite store opened")
	return New(db, logger), nil
}

// New wraps an already opened database. The schema is expected to exist.
func New(db *sql.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'patient' CHECK (role IN ('admin', 'doctor', 'patient')),
		age INTEGER,
		medical_history TEXT
	);

	CREATE TABLE IF NOT EXISTS drugs (
		drug_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class TEXT,
		mechanism TEXT
	);

	CREATE TABLE IF NOT EXISTS neuro_effects (
		effect_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		default_severity REAL CHECK (default_severity IS NULL OR (default_severity >= 0 AND default_severity <= 10))
	);

	CREATE TABLE IF NOT EXISTS interactions (
		interaction_id TEXT PRIMARY KEY,
		drug_a_id TEXT NOT NULL REFERENCES drugs(drug_id),
		drug_b_id TEXT NOT NULL REFERENCES drugs(drug_id),
		effect_id TEXT NOT NULL,
		severity_score REAL NOT NULL CHECK (severity_score >= 0 AND severity_score <= 10),
		mechanism TEXT,
		evidence_level TEXT CHECK (evidence_level IS NULL OR evidence_level IN ('low', 'moderate', 'high')),
		created_at DATETIME NOT NULL,
		CHECK (drug_a_id < drug_b_id),
		UNIQUE (drug_a_id, drug_b_id, effect_id)
	);

	CREATE TABLE IF NOT EXISTS timeline (
		timeline_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		drug_id TEXT NOT NULL REFERENCES drugs(drug_id),
		dosage TEXT,
		frequency TEXT,
		time_of_day TEXT,
		start_date TEXT,
		end_date TEXT
	);

	CREATE TABLE IF NOT EXISTS alerts (
		alert_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		source_ref TEXT,
		drug1_id TEXT NOT NULL,
		drug2_id TEXT NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unread' CHECK (status IN ('unread', 'read')),
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		suggestion_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		drug_a_id TEXT NOT NULL,
		drug_b_id TEXT NOT NULL,
		predicted_effect TEXT NOT NULL,
		predicted_severity REAL NOT NULL CHECK (predicted_severity >= 0 AND predicted_severity <= 10),
		explanation TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'APPROVED', 'DENIED')),
		reviewed_by TEXT,
		reviewed_at DATETIME,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_pair ON interactions(drug_a_id, drug_b_id);
	CREATE INDEX IF NOT EXISTS idx_timeline_user ON timeline(user_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON alerts(user_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_unread_source
		ON alerts(user_id, source_ref) WHERE status = 'unread' AND source_ref IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_suggestions_status ON suggestions(status, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// translate maps SQLite constraint failures onto domain sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	code := serr.Code()
	msg := serr.Error()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, code == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE"):
		return fmt.Errorf("%v: %w", err, domain.ErrAlreadyExists)
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "FOREIGN KEY"):
		return fmt.Errorf("referenced record missing: %w", domain.ErrNotFound)
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "CHECK"):
		return domain.NewValidationError("record", msg, nil)
	}
	return err
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func now() time.Time {
	return time.Now().UTC()
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
