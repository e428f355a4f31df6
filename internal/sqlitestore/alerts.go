package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const alertColumns = `alert_id, user_id, source_ref, drug1_id, drug2_id, message, status, created_at`

func scanAlert(s scanner) (*domain.Alert, error) {
	a := &domain.Alert{}
	var source sql.NullString
	var status string
	err := s.Scan(&a.AlertID, &a.UserID, &source, &a.Drug1ID, &a.Drug2ID, &a.Message, &status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.SourceRef = stringPtr(source)
	a.Status = domain.AlertStatus(status)
	return a, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertAlert(ctx context.Context, db execer, alert *domain.Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now()
	}
	if alert.Status == "" {
		alert.Status = domain.AlertUnread
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.AlertID, alert.UserID, nullString(alert.SourceRef), alert.Drug1ID, alert.Drug2ID,
		alert.Message, string(alert.Status), alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", translate(err))
	}
	return nil
}

// HasUnreadAlert reports whether the user has an unread alert for the source.
func (s *Store) HasUnreadAlert(ctx context.Context, userID, sourceRef string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM alerts WHERE user_id = ? AND source_ref = ? AND status = 'unread')`,
		userID, sourceRef,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking unread alert: %w", err)
	}
	return exists, nil
}

// InsertAlert inserts an alert unconditionally.
func (s *Store) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	if err := insertAlert(ctx, s.db, alert); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": alert.UserID, "error": err}).Error("Failed to insert alert")
		return err
	}
	return nil
}

// InsertAlertIfNoUnread inserts the alert unless the user already has an
// unread alert with the same source reference.
func (s *Store) InsertAlertIfNoUnread(ctx context.Context, alert *domain.Alert) (bool, error) {
	if alert.SourceRef == nil {
		return true, s.InsertAlert(ctx, alert)
	}

	inserted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM alerts WHERE user_id = ? AND source_ref = ? AND status = 'unread')`,
			alert.UserID, *alert.SourceRef,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking unread alert: %w", err)
		}
		if exists {
			return nil
		}
		if err := insertAlert(ctx, tx, alert); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id":    alert.UserID,
			"source_ref": *alert.SourceRef,
			"error":      err,
		}).Error("Failed to insert alert")
		return false, err
	}
	return inserted, nil
}

// GetAlert returns an alert by id.
func (s *Store) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?`, alertID)
	a, err := scanAlert(row)
	if err != nil {
		return nil, fmt.Errorf("getting alert %s: %w", alertID, translate(err))
	}
	return a, nil
}

// ListAlerts returns the user's most recent alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, userID string, limit int) ([]*domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var result []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// CountUnreadAlerts returns the number of unread alerts of the user.
func (s *Store) CountUnreadAlerts(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE user_id = ? AND status = 'unread'`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread alerts: %w", err)
	}
	return count, nil
}

// MarkAllRead marks every unread alert of the user as read.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = 'read' WHERE user_id = ? AND status = 'unread'`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking alerts read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking alerts read: %w", err)
	}
	return int(n), nil
}
