package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const timelineColumns = `timeline_id, user_id, drug_id, dosage, frequency, time_of_day, start_date, end_date`

func scanTimeline(row pgx.Row) (*domain.TimelineEntry, error) {
	var e domain.TimelineEntry
	err := row.Scan(&e.TimelineID, &e.UserID, &e.DrugID, &e.Dosage, &e.Frequency, &e.TimeOfDay, &e.StartDate, &e.EndDate)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AddTimelineEntry appends a drug to a user's timeline
func (s *Store) AddTimelineEntry(ctx context.Context, entry *domain.TimelineEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO timeline (`+timelineColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.TimelineID, entry.UserID, entry.DrugID,
		entry.Dosage, entry.Frequency, entry.TimeOfDay, entry.StartDate, entry.EndDate,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": entry.UserID,
			"drug_id": entry.DrugID,
			"error":   err,
		}).Error("Failed to add timeline entry")
		return fmt.Errorf("adding timeline entry: %w", translate(err))
	}
	return nil
}

// ListTimeline returns the user's timeline in insertion order
func (s *Store) ListTimeline(ctx context.Context, userID string) ([]*domain.TimelineEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+timelineColumns+` FROM timeline WHERE user_id = $1 ORDER BY added_at, timeline_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing timeline: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TimelineEntry
	for rows.Next() {
		e, err := scanTimeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning timeline entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListActiveDrugs returns the sorted distinct drug ids on the user's timeline
func (s *Store) ListActiveDrugs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT drug_id FROM timeline WHERE user_id = $1 ORDER BY drug_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing active drugs: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning drug id: %w", err)
	}
	return ids, nil
}
