package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const suggestionColumns = `suggestion_id, user_id, drug_a_id, drug_b_id, predicted_effect,
	predicted_severity, explanation, status, reviewed_by, reviewed_at, created_at`

func scanSuggestion(s scanner) (*domain.Suggestion, error) {
	sg := &domain.Suggestion{}
	var status string
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	err := s.Scan(
		&sg.SuggestionID, &sg.UserID, &sg.DrugA, &sg.DrugB, &sg.PredictedEffect,
		&sg.PredictedSeverity, &sg.Explanation, &status, &reviewedBy, &reviewedAt, &sg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sg.Status = domain.SuggestionStatus(status)
	sg.ReviewedBy = stringPtr(reviewedBy)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		sg.ReviewedAt = &t
	}
	return sg, nil
}

// InsertSuggestion stores a new suggestion and assigns its id.
func (s *Store) InsertSuggestion(ctx context.Context, sg *domain.Suggestion) error {
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = now()
	}
	if sg.Status == "" {
		sg.Status = domain.SuggestionPending
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO suggestions (
			user_id, drug_a_id, drug_b_id, predicted_effect, predicted_severity,
			explanation, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sg.UserID, sg.DrugA, sg.DrugB, sg.PredictedEffect, sg.PredictedSeverity,
		sg.Explanation, string(sg.Status), sg.CreatedAt,
	)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": sg.UserID, "error": err}).Error("Failed to insert suggestion")
		return fmt.Errorf("inserting suggestion: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	sg.SuggestionID = id
	return nil
}

// GetSuggestion returns a suggestion by id.
func (s *Store) GetSuggestion(ctx context.Context, id int64) (*domain.Suggestion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE suggestion_id = ?`, id)
	sg, err := scanSuggestion(row)
	if err != nil {
		return nil, fmt.Errorf("getting suggestion %d: %w", id, translate(err))
	}
	return sg, nil
}

// FindPendingSuggestion returns the pending suggestion of the user for
// the pair and effect.
func (s *Store) FindPendingSuggestion(ctx context.Context, userID string, pair domain.DrugPair, effect string) (*domain.Suggestion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+suggestionColumns+` FROM suggestions
		WHERE user_id = ? AND drug_a_id = ? AND drug_b_id = ? AND predicted_effect = ? AND status = 'PENDING'
		ORDER BY suggestion_id
		LIMIT 1
	`, userID, pair.A, pair.B, effect)
	sg, err := scanSuggestion(row)
	if err != nil {
		return nil, fmt.Errorf("finding pending suggestion: %w", translate(err))
	}
	return sg, nil
}

// ListPendingSuggestions returns all pending suggestions, newest first.
func (s *Store) ListPendingSuggestions(ctx context.Context) ([]*domain.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+suggestionColumns+` FROM suggestions
		WHERE status = 'PENDING'
		ORDER BY created_at DESC, suggestion_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing pending suggestions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		result = append(result, sg)
	}
	return result, rows.Err()
}

// ResolveSuggestion moves a pending suggestion to its terminal status and
// inserts the decision alert in the same transaction.
func (s *Store) ResolveSuggestion(ctx context.Context, id int64, status domain.SuggestionStatus, reviewedBy string, reviewedAt time.Time, alert *domain.Alert) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE suggestions SET status = ?, reviewed_by = ?, reviewed_at = ?
			WHERE suggestion_id = ? AND status = 'PENDING'
		`, string(status), reviewedBy, reviewedAt, id)
		if err != nil {
			return fmt.Errorf("updating suggestion %d: %w", id, translate(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating suggestion %d: %w", id, err)
		}
		if n == 0 {
			var current string
			err := tx.QueryRowContext(ctx, `SELECT status FROM suggestions WHERE suggestion_id = ?`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("suggestion %d: %w", id, domain.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("reading suggestion %d: %w", id, err)
			}
			return fmt.Errorf("suggestion %d is %s: %w", id, current, domain.ErrInvalidTransition)
		}

		if alert != nil {
			return insertAlert(ctx, tx, alert)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"suggestion_id": id,
		"status":        status,
		"reviewed_by":   reviewedBy,
	}).Info("Suggestion resolved")
	return nil
}
