package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

// SuggestionWorkflow turns predictor output into suggestions that a doctor
// approves or denies. Each decision raises exactly one alert for the
// owning user.
type SuggestionWorkflow struct {
	store     domain.Store
	predictor domain.Predictor
	engine    *AlertEngine
	locks     *keyedMutex
	logger    *logrus.Logger
}

// NewSuggestionWorkflow creates a suggestion workflow. The engine supplies
// the post-commit side effects of decision alerts.
func NewSuggestionWorkflow(store domain.Store, predictor domain.Predictor, engine *AlertEngine, logger *logrus.Logger) *SuggestionWorkflow {
	return &SuggestionWorkflow{
		store:     store,
		predictor: predictor,
		engine:    engine,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// Predict validates the pair and asks the predictor about it.
func (w *SuggestionWorkflow) Predict(ctx context.Context, drugA, drugB string) (*domain.Prediction, error) {
	pair, err := domain.NewDrugPair(drugA, drugB)
	if err != nil {
		return nil, err
	}
	return w.predictor.Predict(ctx, pair)
}

// Submit stores a prediction as a PENDING suggestion for the user. A
// pending suggestion for the same pair and effect is returned instead of
// creating a second one.
func (w *SuggestionWorkflow) Submit(ctx context.Context, userID, drugA, drugB string, p *domain.Prediction) (*domain.Suggestion, error) {
	pair, err := domain.NewDrugPair(drugA, drugB)
	if err != nil {
		return nil, err
	}
	if p == nil || strings.TrimSpace(p.Effect) == "" {
		return nil, domain.NewValidationError("predicted_effect", "is required", nil)
	}
	if !domain.ValidSeverity(p.Severity) {
		return nil, domain.NewValidationError("predicted_severity", "must be between 0 and 10", p.Severity)
	}

	unlock := w.locks.Lock(userID)
	defer unlock()

	existing, err := w.store.FindPendingSuggestion(ctx, userID, pair, p.Effect)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	sg := &domain.Suggestion{
		UserID:            userID,
		DrugA:             pair.A,
		DrugB:             pair.B,
		PredictedEffect:   p.Effect,
		PredictedSeverity: p.Severity,
		Explanation:       p.Explanation,
		Status:            domain.SuggestionPending,
		CreatedAt:         time.Now().UTC(),
	}
	if err := w.store.InsertSuggestion(ctx, sg); err != nil {
		return nil, err
	}
	w.engine.metrics.RecordSuggestion(string(domain.SuggestionPending))

	w.logger.WithFields(logrus.Fields{
		"suggestion_id": sg.SuggestionID,
		"user_id":       userID,
		"pair":          pair.Key(),
	}).Info("Suggestion submitted")
	return sg, nil
}

// Resolve approves or denies a PENDING suggestion. Only doctors and admins
// may resolve; a suggestion that is already APPROVED or DENIED is rejected
// with domain.ErrInvalidTransition.
func (w *SuggestionWorkflow) Resolve(ctx context.Context, sess domain.Session, suggestionID int64, approved bool) (*domain.Suggestion, error) {
	if !sess.Role.CanReview() {
		return nil, fmt.Errorf("resolving suggestion: %w", domain.ErrPermissionDenied)
	}

	sg, err := w.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if sg.Status.IsTerminal() {
		return nil, fmt.Errorf("suggestion %d is %s: %w", suggestionID, sg.Status, domain.ErrInvalidTransition)
	}

	status, verb := domain.SuggestionDenied, "denied"
	if approved {
		status, verb = domain.SuggestionApproved, "approved"
	}

	msg := fmt.Sprintf("Doctor %s %s AI-predicted interaction: %s + %s -> %s (predicted severity %.1f/10).",
		sess.UserID, verb, w.engine.drugName(ctx, sg.DrugA), w.engine.drugName(ctx, sg.DrugB),
		sg.PredictedEffect, sg.PredictedSeverity)
	alert := newAlert(sg.UserID, domain.SuggestionRef(sg.SuggestionID), sg.DrugA, sg.DrugB, msg)

	reviewedAt := time.Now().UTC()
	if err := w.store.ResolveSuggestion(ctx, suggestionID, status, sess.UserID, reviewedAt, alert); err != nil {
		return nil, err
	}

	sg.Status = status
	sg.ReviewedBy = &sess.UserID
	sg.ReviewedAt = &reviewedAt

	w.engine.metrics.RecordSuggestion(string(status))
	w.engine.committed(ctx, alert, "suggestion")
	return sg, nil
}

// ListPending returns all PENDING suggestions, newest first.
func (w *SuggestionWorkflow) ListPending(ctx context.Context) ([]*domain.Suggestion, error) {
	return w.store.ListPendingSuggestions(ctx)
}
