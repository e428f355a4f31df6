package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/neuropharmdb-server/internal/database"
	"github.com/neuropharmdb-server/internal/domain"
)

var _ domain.Store = (*Store)(nil)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	url := fmt.Sprintf("postgres://testuser:%s@%s:%d/testdb?sslmode=disable", testPassword, host, port.Int())
	runner, err := database.NewMigrationRunner(url, logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewStore(db.Pool, logger)
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []*domain.Drug{
		{DrugID: "D001", Name: "Sertraline", Class: domain.StringPtr("SSRI")},
		{DrugID: "D002", Name: "Lorazepam"},
		{DrugID: "D003", Name: "Ibuprofen"},
	} {
		require.NoError(t, s.CreateDrug(ctx, d))
	}
	require.NoError(t, s.CreateEffect(ctx, &domain.NeuroEffect{EffectID: "E001", Name: "Sedation"}))
	require.NoError(t, s.CreateUser(ctx, &domain.User{UserID: "U001", Name: "Pat", Email: "pat@example.com", Role: domain.RolePatient}))
	require.NoError(t, s.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "I001", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 8.5,
	}))
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgUniqueViolation}), domain.ErrAlreadyExists)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgForeignKeyViolation}), domain.ErrNotFound)

	var verr *domain.ValidationError
	assert.ErrorAs(t, translate(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: "interactions_canonical_pair"}), &verr)

	other := fmt.Errorf("boom")
	assert.Equal(t, other, translate(other))
}

func TestStore_Catalog(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	assert.ErrorIs(t, s.CreateDrug(ctx, &domain.Drug{DrugID: "D001", Name: "Dup"}), domain.ErrAlreadyExists)

	d, err := s.GetDrug(ctx, "D001")
	require.NoError(t, err)
	assert.Equal(t, "SSRI", *d.Class)
	assert.Nil(t, d.Mechanism)

	pair, err := domain.NewDrugPair("D002", "D001")
	require.NoError(t, err)
	found, err := s.FindInteractionByPair(ctx, pair)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Sedation", found[0].EffectName)

	err = s.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "I002", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 3,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateInteraction)

	err = s.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "I003", DrugA: "D001", DrugB: "D999", EffectID: "E001", SeverityScore: 3,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	original, err := s.GetInteraction(ctx, "I001")
	require.NoError(t, err)
	require.NoError(t, s.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "I001", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 9.1,
	}))
	updated, err := s.GetInteraction(ctx, "I001")
	require.NoError(t, err)
	assert.Equal(t, 9.1, updated.SeverityScore)
	assert.True(t, original.CreatedAt.Equal(updated.CreatedAt))

	assert.ErrorIs(t, s.DeleteDrug(ctx, "D001"), domain.ErrDrugInUse)
	require.NoError(t, s.DeleteDrug(ctx, "D003"))
	assert.ErrorIs(t, s.DeleteDrug(ctx, "D003"), domain.ErrNotFound)
}

func TestStore_AlertsAndSuggestions(t *testing.T) {
	s := setupTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.AddTimelineEntry(ctx, &domain.TimelineEntry{TimelineID: "T1", UserID: "U001", DrugID: "D002"}))
	require.NoError(t, s.AddTimelineEntry(ctx, &domain.TimelineEntry{TimelineID: "T2", UserID: "U001", DrugID: "D001"}))
	active, err := s.ListActiveDrugs(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, []string{"D001", "D002"}, active)

	ref := domain.InteractionRef("I001")
	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.InsertAlertIfNoUnread(ctx, &domain.Alert{
				AlertID: fmt.Sprintf("AL%d", i), UserID: "U001", SourceRef: &ref,
				Drug1ID: "D001", Drug2ID: "D002", Message: "High-risk interaction",
			})
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, ok := range results {
		if ok {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)

	n, err := s.CountUnreadAlerts(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	marked, err := s.MarkAllRead(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	sg := &domain.Suggestion{UserID: "U001", DrugA: "D001", DrugB: "D003", PredictedEffect: "Dizziness", PredictedSeverity: 5}
	require.NoError(t, s.InsertSuggestion(ctx, sg))
	assert.NotZero(t, sg.SuggestionID)

	sref := domain.SuggestionRef(sg.SuggestionID)
	alert := &domain.Alert{AlertID: "ALS", UserID: "U001", SourceRef: &sref, Drug1ID: "D001", Drug2ID: "D003", Message: "approved"}
	require.NoError(t, s.ResolveSuggestion(ctx, sg.SuggestionID, domain.SuggestionApproved, "DR01", time.Now(), alert))

	err = s.ResolveSuggestion(ctx, sg.SuggestionID, domain.SuggestionDenied, "DR01", time.Now(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	err = s.ResolveSuggestion(ctx, 999, domain.SuggestionDenied, "DR01", time.Now(), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.GetSuggestion(ctx, sg.SuggestionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "DR01", *got.ReviewedBy)

	alerts, err := s.ListAlerts(ctx, "U001", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "ALS", alerts[0].AlertID)

	require.NoError(t, s.DeleteUser(ctx, "U001"))
	n, err = s.CountUnreadAlerts(ctx, "U001")
	require.NoError(t, err)
	assert.Zero(t, n)
}
