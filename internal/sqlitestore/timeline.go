package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const timelineColumns = `timeline_id, user_id, drug_id, dosage, frequency, time_of_day, start_date, end_date`

func scanTimeline(s scanner) (*domain.TimelineEntry, error) {
	e := &domain.TimelineEntry{}
	var dosage, frequency, timeOfDay, start, end sql.NullString
	err := s.Scan(&e.TimelineID, &e.UserID, &e.DrugID, &dosage, &frequency, &timeOfDay, &start, &end)
	if err != nil {
		return nil, err
	}
	e.Dosage = stringPtr(dosage)
	e.Frequency = stringPtr(frequency)
	e.TimeOfDay = stringPtr(timeOfDay)
	e.StartDate = stringPtr(start)
	e.EndDate = stringPtr(end)
	return e, nil
}

// AddTimelineEntry appends a drug to a user's timeline.
func (s *Store) AddTimelineEntry(ctx context.Context, entry *domain.TimelineEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timeline (`+timelineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TimelineID, entry.UserID, entry.DrugID,
		nullString(entry.Dosage), nullString(entry.Frequency), nullString(entry.TimeOfDay),
		nullString(entry.StartDate), nullString(entry.EndDate),
	)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": entry.UserID,
			"drug_id": entry.DrugID,
			"error":   err,
		}).Error("Failed to add timeline entry")
		return fmt.Errorf("adding timeline entry: %w", translate(err))
	}
	return nil
}

// ListTimeline returns the user's timeline entries.
func (s *Store) ListTimeline(ctx context.Context, userID string) ([]*domain.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+timelineColumns+` FROM timeline WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing timeline: %w", err)
	}
	defer rows.Close()

	var result []*domain.TimelineEntry
	for rows.Next() {
		e, err := scanTimeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning timeline entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ListActiveDrugs returns the sorted distinct drug ids on the user's timeline.
func (s *Store) ListActiveDrugs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT drug_id FROM timeline WHERE user_id = ? ORDER BY drug_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing active drugs: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning drug id: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}
