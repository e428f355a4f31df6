package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/service"
	"github.com/neuropharmdb-server/internal/sqlitestore"
)

type toolFixture struct {
	store  *sqlitestore.Store
	server *Server
}

func newToolFixture(t *testing.T, userID string) *toolFixture {
	t.Helper()
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "mcp.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, d := range []*domain.Drug{
		{DrugID: "D001", Name: "Sertraline"},
		{DrugID: "D002", Name: "Lorazepam"},
		{DrugID: "D003", Name: "Ibuprofen"},
	} {
		require.NoError(t, store.CreateDrug(ctx, d))
	}
	require.NoError(t, store.CreateEffect(ctx, &domain.NeuroEffect{EffectID: "E001", Name: "Sedation"}))
	require.NoError(t, store.CreateUser(ctx, &domain.User{UserID: "U001", Email: "pat@example.com", Role: domain.RolePatient}))
	require.NoError(t, store.CreateUser(ctx, &domain.User{UserID: "U002", Email: "sam@example.com", Role: domain.RolePatient}))
	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "I001", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 8.5,
	}))

	resolver := service.NewInteractionResolver(store, service.ResolverConfig{}, nil, logger)
	engine := service.NewAlertEngine(store, resolver, logger)
	workflow := service.NewSuggestionWorkflow(store, service.NewHeuristicPredictor(resolver), engine, logger)

	sess, err := ResolveSession(ctx, store, userID)
	require.NoError(t, err)
	srv, err := NewServer(Config{}, sess, engine, workflow, logger)
	require.NoError(t, err)
	return &toolFixture{store: store, server: srv}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestResolveSession(t *testing.T) {
	f := newToolFixture(t, "U001")
	ctx := context.Background()

	sess, err := ResolveSession(ctx, f.store, " U001 ")
	require.NoError(t, err)
	assert.Equal(t, domain.Session{UserID: "U001", Role: domain.RolePatient}, sess)

	_, err = ResolveSession(ctx, f.store, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = ResolveSession(ctx, f.store, "NOPE")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestNewServer_RequiresUser(t *testing.T) {
	_, err := NewServer(Config{}, domain.Session{}, nil, nil, logrus.New())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestCheckDrugPairTool(t *testing.T) {
	f := newToolFixture(t, "U001")
	ctx := context.Background()

	res, out, err := f.server.handleCheckDrugPair(ctx, nil, CheckDrugPairParams{DrugA: "D002", DrugB: "D001"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "high")
	assert.Contains(t, textOf(t, res), "alert created")

	eval, ok := out.(*domain.PairEvaluation)
	require.True(t, ok)
	assert.True(t, eval.AlertCreated)

	res, _, err = f.server.handleCheckDrugPair(ctx, nil, CheckDrugPairParams{DrugA: "D001", DrugB: "D001"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), domain.ErrCodeInvalidPair)

	low := 9.0
	res, out, err = f.server.handleCheckDrugPair(ctx, nil, CheckDrugPairParams{DrugA: "D001", DrugB: "D002", Threshold: &low})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskMedium, out.(*domain.PairEvaluation).Status)

	negative := -0.5
	res, _, err = f.server.handleCheckDrugPair(ctx, nil, CheckDrugPairParams{DrugA: "D001", DrugB: "D002", Threshold: &negative})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), domain.ErrCodeValidation)
}

func TestRecheckAndListAlertsTools(t *testing.T) {
	f := newToolFixture(t, "U001")
	ctx := context.Background()
	for _, drug := range []string{"D001", "D002", "D003"} {
		require.NoError(t, f.store.AddTimelineEntry(ctx, &domain.TimelineEntry{
			TimelineID: "T" + drug, UserID: "U001", DrugID: drug,
		}))
	}

	_, out, err := f.server.handleRecheck(ctx, nil, RecheckParams{})
	require.NoError(t, err)
	assert.Equal(t, RecheckResult{UserID: "U001", HighRiskPairs: 1}, out)

	res, out, err := f.server.handleListAlerts(ctx, nil, ListAlertsParams{})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "1 alert(s), 1 unread")
	list := out.(ListAlertsResult)
	require.Len(t, list.Alerts, 1)
	assert.Equal(t, "U001", list.Alerts[0].UserID)

	_, out, err = f.server.handleExplainAlert(ctx, nil, ExplainAlertParams{AlertID: list.Alerts[0].AlertID})
	require.NoError(t, err)
	assert.Equal(t, domain.ExplanationSourceDatabase, out.(*domain.AlertExplanation).Source)

	res, _, err = f.server.handleExplainAlert(ctx, nil, ExplainAlertParams{AlertID: "AL404"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), domain.ErrCodeNotFound)

	other := newToolFixture(t, "U002")
	other.server.engine = f.server.engine
	res, _, err = other.server.handleExplainAlert(ctx, nil, ExplainAlertParams{AlertID: list.Alerts[0].AlertID})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), domain.ErrCodeNotFound)

	for _, bad := range []float64{-1, 10.5} {
		res, _, err = f.server.handleRecheck(ctx, nil, RecheckParams{MinSeverity: &bad})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, textOf(t, res), domain.ErrCodeValidation)
	}
}

func TestPredictTool(t *testing.T) {
	f := newToolFixture(t, "U001")
	ctx := context.Background()

	_, out, err := f.server.handlePredict(ctx, nil, PredictParams{DrugA: "D001", DrugB: "D003"})
	require.NoError(t, err)
	result := out.(PredictResult)
	require.NotNil(t, result.Prediction)
	assert.NotEmpty(t, result.Prediction.Effect)
	assert.Nil(t, result.Suggestion)

	res, out, err := f.server.handlePredict(ctx, nil, PredictParams{DrugA: "D001", DrugB: "D003", Submit: true})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "submitted as suggestion")
	result = out.(PredictResult)
	require.NotNil(t, result.Suggestion)
	assert.Equal(t, domain.SuggestionPending, result.Suggestion.Status)
	assert.Equal(t, "U001", result.Suggestion.UserID)

	res, _, err = f.server.handlePredict(ctx, nil, PredictParams{DrugA: "D001"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
