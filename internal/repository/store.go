// Package repository is the PostgreSQL implementation of domain.Store used
// by the API server. Schema changes live in internal/database/migrations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

// PostgreSQL error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Store handles persistence of the interaction catalog, timelines, alerts
// and suggestions
type Store struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewStore creates a new PostgreSQL store
func NewStore(db *pgxpool.Pool, logger *logrus.Logger) *Store {
	return &Store{
		db:  db,
		log: logger,
	}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.db, fn)
}

// translate maps driver errors onto domain errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrAlreadyExists)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrNotFound)
		case pgCheckViolation:
			return domain.NewValidationError(pgErr.ConstraintName, "violates check constraint", pgErr.Detail)
		}
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}
