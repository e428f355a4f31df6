package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuropharmdb-server/internal/domain"
)

func newWorkflow(t *testing.T) (*SuggestionWorkflow, *engineFixture, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	f := newEngineFixture(t, WithNotifier(notifier))
	w := NewSuggestionWorkflow(f.store, NewHeuristicPredictor(f.resolver), f.engine, quietLogger())
	return w, f, notifier
}

func TestSuggestionWorkflow_Submit(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newWorkflow(t)

	p, err := w.Predict(ctx, "D004", "D003")
	require.NoError(t, err)

	sg, err := w.Submit(ctx, "U001", "D004", "D003", p)
	require.NoError(t, err)
	assert.NotZero(t, sg.SuggestionID)
	assert.Equal(t, domain.SuggestionPending, sg.Status)
	assert.Equal(t, "D003", sg.DrugA)
	assert.Equal(t, "D004", sg.DrugB)

	again, err := w.Submit(ctx, "U001", "D003", "D004", p)
	require.NoError(t, err)
	assert.Equal(t, sg.SuggestionID, again.SuggestionID)

	pending, err := w.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSuggestionWorkflow_Submit_Validation(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newWorkflow(t)

	_, err := w.Submit(ctx, "U001", "D003", "D003", &domain.Prediction{Effect: "Sedation", Severity: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidPair)

	_, err = w.Submit(ctx, "U001", "D003", "D004", &domain.Prediction{Effect: " ", Severity: 5})
	assert.Error(t, err)

	_, err = w.Submit(ctx, "U001", "D003", "D004", &domain.Prediction{Effect: "Sedation", Severity: 11})
	assert.Error(t, err)

	_, err = w.Submit(ctx, "U001", "D003", "D004", nil)
	assert.Error(t, err)
}

func TestSuggestionWorkflow_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Approve_Raises_Alert_Once", func(t *testing.T) {
		w, f, notifier := newWorkflow(t)
		sg, err := w.Submit(ctx, "U001", "D003", "D004", &domain.Prediction{Effect: "Dizziness", Severity: 6.2, Explanation: "guess"})
		require.NoError(t, err)

		resolved, err := w.Resolve(ctx, doctorSession, sg.SuggestionID, true)
		require.NoError(t, err)
		assert.Equal(t, domain.SuggestionApproved, resolved.Status)
		require.NotNil(t, resolved.ReviewedBy)
		assert.Equal(t, "DR01", *resolved.ReviewedBy)
		assert.NotNil(t, resolved.ReviewedAt)

		_, err = w.Resolve(ctx, doctorSession, sg.SuggestionID, false)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		views, err := f.engine.ListAlerts(ctx, "U001", 0)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, domain.SuggestionRef(sg.SuggestionID), *views[0].SourceRef)
		assert.Equal(t, "Doctor DR01 approved AI-predicted interaction: Ibuprofen + Melatonin -> Dizziness (predicted severity 6.2/10).", views[0].Message)
		require.NotNil(t, views[0].Severity)
		assert.Equal(t, 6.2, *views[0].Severity)
		assert.Equal(t, 1, notifier.count())

		exp, err := f.engine.Explain(ctx, views[0].AlertID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExplanationSourceAISuggestion, exp.Source)
		assert.Equal(t, "guess", *exp.PredictedExplanation)

		stored, err := f.store.GetSuggestion(ctx, sg.SuggestionID)
		require.NoError(t, err)
		assert.Equal(t, domain.SuggestionApproved, stored.Status)

		pending, err := w.ListPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("Deny_Also_Alerts", func(t *testing.T) {
		w, f, _ := newWorkflow(t)
		sg, err := w.Submit(ctx, "U001", "D003", "D004", &domain.Prediction{Effect: "Seizures", Severity: 4})
		require.NoError(t, err)

		resolved, err := w.Resolve(ctx, adminSession, sg.SuggestionID, false)
		require.NoError(t, err)
		assert.Equal(t, domain.SuggestionDenied, resolved.Status)

		count, err := f.engine.UnreadCount(ctx, "U001")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		alerts, err := f.store.ListAlerts(ctx, "U001", 1)
		require.NoError(t, err)
		assert.Contains(t, alerts[0].Message, "Doctor A001 denied")
	})

	t.Run("Patient_Denied", func(t *testing.T) {
		w, _, _ := newWorkflow(t)
		sg, err := w.Submit(ctx, "U001", "D003", "D004", &domain.Prediction{Effect: "Seizures", Severity: 4})
		require.NoError(t, err)

		_, err = w.Resolve(ctx, patientSession, sg.SuggestionID, true)
		assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("Unknown_Suggestion", func(t *testing.T) {
		w, _, _ := newWorkflow(t)
		_, err := w.Resolve(ctx, doctorSession, 999, true)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
