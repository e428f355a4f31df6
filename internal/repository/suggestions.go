package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const suggestionColumns = `suggestion_id, user_id, drug_a_id, drug_b_id, predicted_effect,
	predicted_severity, explanation, status, reviewed_by, reviewed_at, created_at`

func scanSuggestion(row pgx.Row) (*domain.Suggestion, error) {
	var sg domain.Suggestion
	var status string
	err := row.Scan(
		&sg.SuggestionID, &sg.UserID, &sg.DrugA, &sg.DrugB, &sg.PredictedEffect,
		&sg.PredictedSeverity, &sg.Explanation, &status, &sg.ReviewedBy, &sg.ReviewedAt, &sg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sg.Status = domain.SuggestionStatus(status)
	return &sg, nil
}

// InsertSuggestion stores a new suggestion and assigns its id
func (s *Store) InsertSuggestion(ctx context.Context, sg *domain.Suggestion) error {
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = now()
	}
	if sg.Status == "" {
		sg.Status = domain.SuggestionPending
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO suggestions (
			user_id, drug_a_id, drug_b_id, predicted_effect, predicted_severity,
			explanation, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING suggestion_id
	`,
		sg.UserID, sg.DrugA, sg.DrugB, sg.PredictedEffect, sg.PredictedSeverity,
		sg.Explanation, string(sg.Status), sg.CreatedAt,
	).Scan(&sg.SuggestionID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": sg.UserID,
			"error":   err,
		}).Error("Failed to insert suggestion")
		return fmt.Errorf("inserting suggestion: %w", translate(err))
	}
	return nil
}

// GetSuggestion retrieves a suggestion by id
func (s *Store) GetSuggestion(ctx context.Context, id int64) (*domain.Suggestion, error) {
	sg, err := scanSuggestion(s.db.QueryRow(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE suggestion_id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("getting suggestion %d: %w", id, translate(err))
	}
	return sg, nil
}

// FindPendingSuggestion returns the user's pending suggestion for the pair and effect
func (s *Store) FindPendingSuggestion(ctx context.Context, userID string, pair domain.DrugPair, effect string) (*domain.Suggestion, error) {
	sg, err := scanSuggestion(s.db.QueryRow(ctx, `
		SELECT `+suggestionColumns+` FROM suggestions
		WHERE user_id = $1 AND drug_a_id = $2 AND drug_b_id = $3 AND predicted_effect = $4 AND status = 'PENDING'
		ORDER BY suggestion_id
		LIMIT 1
	`, userID, pair.A, pair.B, effect))
	if err != nil {
		return nil, fmt.Errorf("finding pending suggestion: %w", translate(err))
	}
	return sg, nil
}

// ListPendingSuggestions returns all pending suggestions, newest first
func (s *Store) ListPendingSuggestions(ctx context.Context) ([]*domain.Suggestion, error) {
	rows, err := s.db.Query(ctx, `
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
// inserts the decision alert in the same transaction
func (s *Store) ResolveSuggestion(ctx context.Context, id int64, status domain.SuggestionStatus, reviewedBy string, reviewedAt time.Time, alert *domain.Alert) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE suggestions SET status = $1, reviewed_by = $2, reviewed_at = $3
			WHERE suggestion_id = $4 AND status = 'PENDING'
		`, string(status), reviewedBy, reviewedAt, id)
		if err != nil {
			return fmt.Errorf("updating suggestion %d: %w", id, translate(err))
		}
		if tag.RowsAffected() == 0 {
			var current string
			err := tx.QueryRow(ctx, `SELECT status FROM suggestions WHERE suggestion_id = $1`, id).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
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

	s.log.WithFields(logrus.Fields{
		"suggestion_id": id,
		"status":        status,
		"reviewed_by":   reviewedBy,
	}).Info("Suggestion resolved")
	return nil
}
