package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

// CatalogService manages drugs, effects, users and timelines. Catalog and
// account writes are restricted to admins.
type CatalogService struct {
	store  domain.Store
	logger *logrus.Logger
}

// NewCatalogService creates a catalog service
func NewCatalogService(store domain.Store, logger *logrus.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

func requireAdmin(sess domain.Session, action string) error {
	if sess.Role != domain.RoleAdmin {
		return fmt.Errorf("%s: %w", action, domain.ErrPermissionDenied)
	}
	return nil
}

// CreateDrug adds a drug to the catalog.
func (c *CatalogService) CreateDrug(ctx context.Context, sess domain.Session, drug *domain.Drug) error {
	if err := requireAdmin(sess, "creating drug"); err != nil {
		return err
	}
	drug.DrugID = strings.TrimSpace(drug.DrugID)
	drug.Name = strings.TrimSpace(drug.Name)
	if drug.DrugID == "" {
		return domain.NewValidationError("drug_id", "is required", drug.DrugID)
	}
	if drug.Name == "" {
		return domain.NewValidationError("name", "is required", drug.Name)
	}
	return c.store.CreateDrug(ctx, drug)
}

// GetDrug returns a drug by id.
func (c *CatalogService) GetDrug(ctx context.Context, drugID string) (*domain.Drug, error) {
	return c.store.GetDrug(ctx, drugID)
}

// ListDrugs returns the drug catalog.
func (c *CatalogService) ListDrugs(ctx context.Context) ([]*domain.Drug, error) {
	return c.store.ListDrugs(ctx)
}

// DeleteDrug removes a drug no interaction or timeline references.
func (c *CatalogService) DeleteDrug(ctx context.Context, sess domain.Session, drugID string) error {
	if err := requireAdmin(sess, "deleting drug"); err != nil {
		return err
	}
	if err := c.store.DeleteDrug(ctx, drugID); err != nil {
		return err
	}
	c.logger.WithFields(logrus.Fields{"drug_id": drugID, "by": sess.UserID}).Info("Drug deleted")
	return nil
}

// CreateEffect adds a neurological effect.
func (c *CatalogService) CreateEffect(ctx context.Context, sess domain.Session, effect *domain.NeuroEffect) error {
	if err := requireAdmin(sess, "creating effect"); err != nil {
		return err
	}
	effect.EffectID = strings.TrimSpace(effect.EffectID)
	effect.Name = strings.TrimSpace(effect.Name)
	if effect.EffectID == "" {
		return domain.NewValidationError("effect_id", "is required", effect.EffectID)
	}
	if effect.Name == "" {
		return domain.NewValidationError("name", "is required", effect.Name)
	}
	if effect.DefaultSeverity != nil && !domain.ValidSeverity(*effect.DefaultSeverity) {
		return domain.NewValidationError("default_severity", "must be between 0 and 10", *effect.DefaultSeverity)
	}
	return c.store.CreateEffect(ctx, effect)
}

// GetEffect returns an effect by id.
func (c *CatalogService) GetEffect(ctx context.Context, effectID string) (*domain.NeuroEffect, error) {
	return c.store.GetEffect(ctx, effectID)
}

// ListEffects returns all effects.
func (c *CatalogService) ListEffects(ctx context.Context) ([]*domain.NeuroEffect, error) {
	return c.store.ListEffects(ctx)
}

// CreateUser registers an account. The role defaults to patient.
func (c *CatalogService) CreateUser(ctx context.Context, sess domain.Session, user *domain.User) error {
	if err := requireAdmin(sess, "creating user"); err != nil {
		return err
	}
	role, err := domain.ParseRole(string(user.Role))
	if err != nil {
		return err
	}
	user.Role = role
	user.UserID = strings.TrimSpace(user.UserID)
	user.Email = strings.TrimSpace(user.Email)
	if user.UserID == "" {
		return domain.NewValidationError("user_id", "is required", user.UserID)
	}
	if user.Email == "" {
		return domain.NewValidationError("email", "is required", user.Email)
	}
	if user.Age != nil && (*user.Age < 0 || *user.Age > 150) {
		return domain.NewValidationError("age", "must be between 0 and 150", *user.Age)
	}

	if err := c.store.CreateUser(ctx, user); err != nil {
		return err
	}
	c.logger.WithFields(logrus.Fields{"user_id": user.UserID, "role": user.Role}).Info("User created")
	return nil
}

// ListUsers returns all accounts. Admin only.
func (c *CatalogService) ListUsers(ctx context.Context, sess domain.Session) ([]*domain.User, error) {
	if err := requireAdmin(sess, "listing users"); err != nil {
		return nil, err
	}
	return c.store.ListUsers(ctx)
}

// DeleteUser removes an account with its timeline, alerts and suggestions.
func (c *CatalogService) DeleteUser(ctx context.Context, sess domain.Session, userID string) error {
	if err := requireAdmin(sess, "deleting user"); err != nil {
		return err
	}
	return c.store.DeleteUser(ctx, userID)
}

// ListTimeline returns a user's timeline. Patients may only read their own.
func (c *CatalogService) ListTimeline(ctx context.Context, sess domain.Session, userID string) ([]*domain.TimelineEntry, error) {
	if sess.Role == domain.RolePatient && sess.UserID != userID {
		return nil, fmt.Errorf("listing timeline: %w", domain.ErrPermissionDenied)
	}
	return c.store.ListTimeline(ctx, userID)
}
