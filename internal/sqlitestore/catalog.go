package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const drugColumns = `drug_id, name, class, mechanism`

func scanDrug(s scanner) (*domain.Drug, error) {
	d := &domain.Drug{}
	var class, mechanism sql.NullString
	if err := s.Scan(&d.DrugID, &d.Name, &class, &mechanism); err != nil {
		return nil, err
	}
	d.Class = stringPtr(class)
	d.Mechanism = stringPtr(mechanism)
	return d, nil
}

// CreateDrug inserts a drug into the catalog.
func (s *Store) CreateDrug(ctx context.Context, drug *domain.Drug) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drugs (`+drugColumns+`) VALUES (?, ?, ?, ?)`,
		drug.DrugID, drug.Name, nullString(drug.Class), nullString(drug.Mechanism),
	)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"drug_id": drug.DrugID, "error": err}).Error("Failed to create drug")
		return fmt.Errorf("creating drug: %w", translate(err))
	}
	return nil
}

// GetDrug returns a drug by id.
func (s *Store) GetDrug(ctx context.Context, drugID string) (*domain.Drug, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+drugColumns+` FROM drugs WHERE drug_id = ?`, drugID)
	d, err := scanDrug(row)
	if err != nil {
		return nil, fmt.Errorf("getting drug %s: %w", drugID, translate(err))
	}
	return d, nil
}

// ListDrugs returns the catalog ordered by name.
func (s *Store) ListDrugs(ctx context.Context) ([]*domain.Drug, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+drugColumns+` FROM drugs ORDER BY name, drug_id`)
	if err != nil {
		return nil, fmt.Errorf("listing drugs: %w", err)
	}
	defer rows.Close()

	var result []*domain.Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning drug: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// DeleteDrug removes a drug that no interaction or timeline entry references.
func (s *Store) DeleteDrug(ctx context.Context, drugID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var refs int
		err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM interactions WHERE drug_a_id = ? OR drug_b_id = ?) +
				(SELECT COUNT(*) FROM timeline WHERE drug_id = ?)
		`, drugID, drugID, drugID).Scan(&refs)
		if err != nil {
			return fmt.Errorf("counting references to drug %s: %w", drugID, err)
		}
		if refs > 0 {
			return fmt.Errorf("deleting drug %s: %w", drugID, domain.ErrDrugInUse)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM drugs WHERE drug_id = ?`, drugID)
		if err != nil {
			return fmt.Errorf("deleting drug %s: %w", drugID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("deleting drug %s: %w", drugID, domain.ErrNotFound)
		}
		return nil
	})
}

const effectColumns = `effect_id, name, category, default_severity`

func scanEffect(s scanner) (*domain.NeuroEffect, error) {
	e := &domain.NeuroEffect{}
	var category sql.NullString
	var severity sql.NullFloat64
	if err := s.Scan(&e.EffectID, &e.Name, &category, &severity); err != nil {
		return nil, err
	}
	e.Category = stringPtr(category)
	e.DefaultSeverity = floatPtr(severity)
	return e, nil
}

// CreateEffect inserts a neurological effect.
func (s *Store) CreateEffect(ctx context.Context, effect *domain.NeuroEffect) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO neuro_effects (`+effectColumns+`) VALUES (?, ?, ?, ?)`,
		effect.EffectID, effect.Name, nullString(effect.Category), nullFloat(effect.DefaultSeverity),
	)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"effect_id": effect.EffectID, "error": err}).Error("Failed to create effect")
		return fmt.Errorf("creating effect: %w", translate(err))
	}
	return nil
}

// GetEffect returns an effect by id.
func (s *Store) GetEffect(ctx context.Context, effectID string) (*domain.NeuroEffect, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+effectColumns+` FROM neuro_effects WHERE effect_id = ?`, effectID)
	e, err := scanEffect(row)
	if err != nil {
		return nil, fmt.Errorf("getting effect %s: %w", effectID, translate(err))
	}
	return e, nil
}

// ListEffects returns all effects ordered by name.
func (s *Store) ListEffects(ctx context.Context) ([]*domain.NeuroEffect, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+effectColumns+` FROM neuro_effects ORDER BY name, effect_id`)
	if err != nil {
		return nil, fmt.Errorf("listing effects: %w", err)
	}
	defer rows.Close()

	var result []*domain.NeuroEffect
	for rows.Next() {
		e, err := scanEffect(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning effect: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// interactionSelect joins the effect record; a missing effect leaves the
// raw effect id as the name.
const interactionSelect = `
	SELECT i.interaction_id, i.drug_a_id, i.drug_b_id, i.effect_id, i.severity_score,
		i.mechanism, i.evidence_level, i.created_at,
		COALESCE(e.name, i.effect_id), e.category
	FROM interactions i
	LEFT JOIN neuro_effects e ON e.effect_id = i.effect_id`

func scanInteraction(s scanner) (*domain.InteractionDetail, error) {
	d := &domain.InteractionDetail{}
	var mechanism, evidence, category sql.NullString
	err := s.Scan(
		&d.InteractionID, &d.DrugA, &d.DrugB, &d.EffectID, &d.SeverityScore,
		&mechanism, &evidence, &d.CreatedAt,
		&d.EffectName, &category,
	)
	if err != nil {
		return nil, err
	}
	d.Mechanism = stringPtr(mechanism)
	if evidence.Valid {
		lvl := domain.EvidenceLevel(evidence.String)
		d.EvidenceLevel = &lvl
	}
	d.EffectCategory = stringPtr(category)
	return d, nil
}

func (s *Store) queryInteractions(ctx context.Context, query string, args ...interface{}) ([]*domain.InteractionDetail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var result []*domain.InteractionDetail
	for rows.Next() {
		d, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// FindInteractionByPair returns the interactions of the pair, highest
// severity first.
func (s *Store) FindInteractionByPair(ctx context.Context, pair domain.DrugPair) ([]*domain.InteractionDetail, error) {
	return s.queryInteractions(ctx,
		interactionSelect+` WHERE i.drug_a_id = ? AND i.drug_b_id = ?
		ORDER BY i.severity_score DESC, i.interaction_id ASC`,
		pair.A, pair.B,
	)
}

// GetInteraction returns an interaction by id.
func (s *Store) GetInteraction(ctx context.Context, interactionID string) (*domain.InteractionDetail, error) {
	row := s.db.QueryRowContext(ctx, interactionSelect+` WHERE i.interaction_id = ?`, interactionID)
	d, err := scanInteraction(row)
	if err != nil {
		return nil, fmt.Errorf("getting interaction %s: %w", interactionID, translate(err))
	}
	return d, nil
}

// UpsertInteraction inserts the interaction or replaces the one with the
// same id. Another id already covering the pair and effect is rejected.
func (s *Store) UpsertInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now()
	}

	var evidence sql.NullString
	if in.EvidenceLevel != nil {
		evidence = sql.NullString{String: string(*in.EvidenceLevel), Valid: true}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, `
			SELECT interaction_id FROM interactions
			WHERE drug_a_id = ? AND drug_b_id = ? AND effect_id = ? AND interaction_id <> ?
		`, in.DrugA, in.DrugB, in.EffectID, in.InteractionID).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("pair %s+%s effect %s recorded as %s: %w",
				in.DrugA, in.DrugB, in.EffectID, existing, domain.ErrDuplicateInteraction)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("checking duplicate interaction: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO interactions (
				interaction_id, drug_a_id, drug_b_id, effect_id, severity_score,
				mechanism, evidence_level, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (interaction_id) DO UPDATE SET
				drug_a_id = excluded.drug_a_id,
				drug_b_id = excluded.drug_b_id,
				effect_id = excluded.effect_id,
				severity_score = excluded.severity_score,
				mechanism = excluded.mechanism,
				evidence_level = excluded.evidence_level
		`,
			in.InteractionID, in.DrugA, in.DrugB, in.EffectID, in.SeverityScore,
			nullString(in.Mechanism), evidence, in.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting interaction: %w", translate(err))
		}

		return tx.QueryRowContext(ctx,
			`SELECT created_at FROM interactions WHERE interaction_id = ?`, in.InteractionID,
		).Scan(&in.CreatedAt)
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"interaction_id": in.InteractionID,
			"error":          err,
		}).Error("Failed to upsert interaction")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"interaction_id": in.InteractionID,
		"drug_a":         in.DrugA,
		"drug_b":         in.DrugB,
		"severity":       in.SeverityScore,
	}).Info("Interaction stored")
	return nil
}

// DeleteInteraction removes an interaction by id.
func (s *Store) DeleteInteraction(ctx context.Context, interactionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE interaction_id = ?`, interactionID)
	if err != nil {
		return fmt.Errorf("deleting interaction %s: %w", interactionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deleting interaction %s: %w", interactionID, domain.ErrNotFound)
	}
	return nil
}

// ListInteractions returns all interactions ordered by id.
func (s *Store) ListInteractions(ctx context.Context) ([]*domain.InteractionDetail, error) {
	return s.queryInteractions(ctx, interactionSelect+` ORDER BY i.interaction_id`)
}

// TopInteractions returns the highest-severity interactions.
func (s *Store) TopInteractions(ctx context.Context, limit int) ([]*domain.InteractionDetail, error) {
	return s.queryInteractions(ctx,
		interactionSelect+` ORDER BY i.severity_score DESC, i.interaction_id ASC LIMIT ?`, limit)
}
