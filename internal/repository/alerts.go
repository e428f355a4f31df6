package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const alertColumns = `alert_id, user_id, source_ref, drug1_id, drug2_id, message, status, created_at`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var status string
	err := row.Scan(&a.AlertID, &a.UserID, &a.SourceRef, &a.Drug1ID, &a.Drug2ID, &a.Message, &status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = domain.AlertStatus(status)
	return &a, nil
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func alertDefaults(alert *domain.Alert) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now()
	}
	if alert.Status == "" {
		alert.Status = domain.AlertUnread
	}
}

func insertAlert(ctx context.Context, db execer, alert *domain.Alert) error {
	alertDefaults(alert)
	_, err := db.Exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		alert.AlertID, alert.UserID, alert.SourceRef, alert.Drug1ID, alert.Drug2ID,
		alert.Message, string(alert.Status), alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", translate(err))
	}
	return nil
}

// HasUnreadAlert reports whether the user has an unread alert for the source
func (s *Store) HasUnreadAlert(ctx context.Context, userID, sourceRef string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM alerts WHERE user_id = $1 AND source_ref = $2 AND status = 'unread')`,
		userID, sourceRef,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking unread alert: %w", err)
	}
	return exists, nil
}

// InsertAlert inserts an alert unconditionally
func (s *Store) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	if err := insertAlert(ctx, s.db, alert); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": alert.UserID,
			"error":   err,
		}).Error("Failed to insert alert")
		return err
	}
	return nil
}

// InsertAlertIfNoUnread inserts the alert unless an unread alert with the
// same source exists. The partial unique index on unread alerts arbitrates
// between concurrent writers across instances.
func (s *Store) InsertAlertIfNoUnread(ctx context.Context, alert *domain.Alert) (bool, error) {
	if alert.SourceRef == nil {
		return true, s.InsertAlert(ctx, alert)
	}

	alertDefaults(alert)
	tag, err := s.db.Exec(ctx, `
		INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, source_ref) WHERE status = 'unread' AND source_ref IS NOT NULL
		DO NOTHING
	`,
		alert.AlertID, alert.UserID, alert.SourceRef, alert.Drug1ID, alert.Drug2ID,
		alert.Message, string(alert.Status), alert.CreatedAt,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id":    alert.UserID,
			"source_ref": *alert.SourceRef,
			"error":      err,
		}).Error("Failed to insert alert")
		return false, fmt.Errorf("inserting alert: %w", translate(err))
	}
	return tag.RowsAffected() == 1, nil
}

// GetAlert retrieves an alert by id
func (s *Store) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	a, err := scanAlert(s.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = $1`, alertID))
	if err != nil {
		return nil, fmt.Errorf("getting alert %s: %w", alertID, translate(err))
	}
	return a, nil
}

// ListAlerts returns the user's most recent alerts, newest first
func (s *Store) ListAlerts(ctx context.Context, userID string, limit int) ([]*domain.Alert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC, alert_id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountUnreadAlerts returns the number of unread alerts of the user
func (s *Store) CountUnreadAlerts(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE user_id = $1 AND status = 'unread'`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread alerts: %w", err)
	}
	return count, nil
}

// MarkAllRead marks every unread alert of the user as read
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE alerts SET status = 'read' WHERE user_id = $1 AND status = 'unread'`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking alerts read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
