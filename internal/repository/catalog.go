package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

const drugColumns = `drug_id, name, class, mechanism`

func scanDrug(row pgx.Row) (*domain.Drug, error) {
	var d domain.Drug
	if err := row.Scan(&d.DrugID, &d.Name, &d.Class, &d.Mechanism); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDrug inserts a drug
func (s *Store) CreateDrug(ctx context.Context, drug *domain.Drug) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO drugs (`+drugColumns+`) VALUES ($1, $2, $3, $4)`,
		drug.DrugID, drug.Name, drug.Class, drug.Mechanism,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"drug_id": drug.DrugID,
			"error":   err,
		}).Error("Failed to create drug")
		return fmt.Errorf("creating drug: %w", translate(err))
	}
	return nil
}

// GetDrug retrieves a drug by id
func (s *Store) GetDrug(ctx context.Context, drugID string) (*domain.Drug, error) {
	d, err := scanDrug(s.db.QueryRow(ctx, `SELECT `+drugColumns+` FROM drugs WHERE drug_id = $1`, drugID))
	if err != nil {
		return nil, fmt.Errorf("getting drug %s: %w", drugID, translate(err))
	}
	return d, nil
}

// ListDrugs returns the catalog ordered by name
func (s *Store) ListDrugs(ctx context.Context) ([]*domain.Drug, error) {
	rows, err := s.db.Query(ctx, `SELECT `+drugColumns+` FROM drugs ORDER BY name, drug_id`)
	if err != nil {
		return nil, fmt.Errorf("listing drugs: %w", err)
	}
	defer rows.Close()

	var drugs []*domain.Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning drug: %w", err)
		}
		drugs = append(drugs, d)
	}
	return drugs, rows.Err()
}

// DeleteDrug removes an unreferenced drug
func (s *Store) DeleteDrug(ctx context.Context, drugID string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var refs int
		err := tx.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM interactions WHERE drug_a_id = $1 OR drug_b_id = $1) +
				(SELECT COUNT(*) FROM timeline WHERE drug_id = $1)
		`, drugID).Scan(&refs)
		if err != nil {
			return fmt.Errorf("counting references to drug %s: %w", drugID, err)
		}
		if refs > 0 {
			return fmt.Errorf("deleting drug %s: %w", drugID, domain.ErrDrugInUse)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM drugs WHERE drug_id = $1`, drugID)
		if err != nil {
			return fmt.Errorf("deleting drug %s: %w", drugID, translate(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("deleting drug %s: %w", drugID, domain.ErrNotFound)
		}
		return nil
	})
}

const effectColumns = `effect_id, name, category, default_severity`

func scanEffect(row pgx.Row) (*domain.NeuroEffect, error) {
	var e domain.NeuroEffect
	if err := row.Scan(&e.EffectID, &e.Name, &e.Category, &e.DefaultSeverity); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEffect inserts a neurological effect
func (s *Store) CreateEffect(ctx context.Context, effect *domain.NeuroEffect) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO neuro_effects (`+effectColumns+`) VALUES ($1, $2, $3, $4)`,
		effect.EffectID, effect.Name, effect.Category, effect.DefaultSeverity,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"effect_id": effect.EffectID,
			"error":     err,
		}).Error("Failed to create effect")
		return fmt.Errorf("creating effect: %w", translate(err))
	}
	return nil
}

// GetEffect retrieves an effect by id
func (s *Store) GetEffect(ctx context.Context, effectID string) (*domain.NeuroEffect, error) {
	e, err := scanEffect(s.db.QueryRow(ctx, `SELECT `+effectColumns+` FROM neuro_effects WHERE effect_id = $1`, effectID))
	if err != nil {
		return nil, fmt.Errorf("getting effect %s: %w", effectID, translate(err))
	}
	return e, nil
}

// ListEffects returns all effects ordered by name
func (s *Store) ListEffects(ctx context.Context) ([]*domain.NeuroEffect, error) {
	rows, err := s.db.Query(ctx, `SELECT `+effectColumns+` FROM neuro_effects ORDER BY name, effect_id`)
	if err != nil {
		return nil, fmt.Errorf("listing effects: %w", err)
	}
	defer rows.Close()

	var effects []*domain.NeuroEffect
	for rows.Next() {
		e, err := scanEffect(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning effect: %w", err)
		}
		effects = append(effects, e)
	}
	return effects, rows.Err()
}

const interactionSelect = `
	SELECT i.interaction_id, i.drug_a_id, i.drug_b_id, i.effect_id, i.severity_score,
		i.mechanism, i.evidence_level, i.created_at,
		COALESCE(e.name, i.effect_id), e.category
	FROM interactions i
	LEFT JOIN neuro_effects e ON e.effect_id = i.effect_id`

func scanInteraction(row pgx.Row) (*domain.InteractionDetail, error) {
	var d domain.InteractionDetail
	var evidence *string
	err := row.Scan(
		&d.InteractionID, &d.DrugA, &d.DrugB, &d.EffectID, &d.SeverityScore,
		&d.Mechanism, &evidence, &d.CreatedAt,
		&d.EffectName, &d.EffectCategory,
	)
	if err != nil {
		return nil, err
	}
	if evidence != nil {
		lvl := domain.EvidenceLevel(*evidence)
		d.EvidenceLevel = &lvl
	}
	return &d, nil
}

func (s *Store) queryInteractions(ctx context.Context, query string, args ...any) ([]*domain.InteractionDetail, error) {
	rows, err := s.db.Query(ctx, query, args...)
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

// FindInteractionByPair returns the interactions of a canonical pair, highest severity first
func (s *Store) FindInteractionByPair(ctx context.Context, pair domain.DrugPair) ([]*domain.InteractionDetail, error) {
	return s.queryInteractions(ctx,
		interactionSelect+` WHERE i.drug_a_id = $1 AND i.drug_b_id = $2
		ORDER BY i.severity_score DESC, i.interaction_id ASC`,
		pair.A, pair.B,
	)
}

// GetInteraction retrieves an interaction by id
func (s *Store) GetInteraction(ctx context.Context, interactionID string) (*domain.InteractionDetail, error) {
	d, err := scanInteraction(s.db.QueryRow(ctx, interactionSelect+` WHERE i.interaction_id = $1`, interactionID))
	if err != nil {
		return nil, fmt.Errorf("getting interaction %s: %w", interactionID, translate(err))
	}
	return d, nil
}

// UpsertInteraction inserts or replaces an interaction by id
func (s *Store) UpsertInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now()
	}

	var evidence *string
	if in.EvidenceLevel != nil {
		v := string(*in.EvidenceLevel)
		evidence = &v
	}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT interaction_id FROM interactions
			WHERE drug_a_id = $1 AND drug_b_id = $2 AND effect_id = $3 AND interaction_id <> $4
		`, in.DrugA, in.DrugB, in.EffectID, in.InteractionID).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("pair %s+%s effect %s recorded as %s: %w",
				in.DrugA, in.DrugB, in.EffectID, existing, domain.ErrDuplicateInteraction)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("checking duplicate interaction: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO interactions (
				interaction_id, drug_a_id, drug_b_id, effect_id, severity_score,
				mechanism, evidence_level, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (interaction_id) DO UPDATE SET
				drug_a_id = EXCLUDED.drug_a_id,
				drug_b_id = EXCLUDED.drug_b_id,
				effect_id = EXCLUDED.effect_id,
				severity_score = EXCLUDED.severity_score,
				mechanism = EXCLUDED.mechanism,
				evidence_level = EXCLUDED.evidence_level
			RETURNING created_at
		`,
			in.InteractionID, in.DrugA, in.DrugB, in.EffectID, in.SeverityScore,
			in.Mechanism, evidence, in.CreatedAt,
		).Scan(&in.CreatedAt)
		if err != nil {
			return fmt.Errorf("upserting interaction: %w", translate(err))
		}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"interaction_id": in.InteractionID,
			"error":          err,
		}).Error("Failed to upsert interaction")
		return err
	}

	s.log.WithFields(logrus.Fields{
		"interaction_id": in.InteractionID,
		"drug_a":         in.DrugA,
		"drug_b":         in.DrugB,
		"severity":       in.SeverityScore,
	}).Info("Interaction stored")
	return nil
}

// DeleteInteraction removes an interaction by id
func (s *Store) DeleteInteraction(ctx context.Context, interactionID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM interactions WHERE interaction_id = $1`, interactionID)
	if err != nil {
		return fmt.Errorf("deleting interaction %s: %w", interactionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting interaction %s: %w", interactionID, domain.ErrNotFound)
	}
	return nil
}

// ListInteractions returns all interactions ordered by id
func (s *Store) ListInteractions(ctx context.Context) ([]*domain.InteractionDetail, error) {
	return s.queryInteractions(ctx, interactionSelect+` ORDER BY i.interaction_id`)
}

// TopInteractions returns the highest-severity interactions
func (s *Store) TopInteractions(ctx context.Context, limit int) ([]*domain.InteractionDetail, error) {
	return s.queryInteractions(ctx,
		interactionSelect+` ORDER BY i.severity_score DESC, i.interaction_id ASC LIMIT $1`, limit)
}
