package sqlitestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuropharmdb-server/internal/domain"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	store, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCatalog(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []*domain.Drug{
		{DrugID: "D001", Name: "Sertraline", Class: domain.StringPtr("SSRI")},
		{DrugID: "D002", Name: "Tramadol", Class: domain.StringPtr("Opioid")},
		{DrugID: "D003", Name: "Lorazepam"},
	} {
		require.NoError(t, store.CreateDrug(ctx, d))
	}
	sev := 8.5
	require.NoError(t, store.CreateEffect(ctx, &domain.NeuroEffect{
		EffectID: "E001", Name: "Seizures", Category: domain.StringPtr("Neurological"), DefaultSeverity: &sev,
	}))
	require.NoError(t, store.CreateUser(ctx, &domain.User{
		UserID: "U001", Name: "Pat", Email: "pat@example.com", Role: domain.RolePatient,
	}))
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	store, err := Open(dbPath, logrus.New())

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestStore_Users(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	age := 42
	user := &domain.User{UserID: "U100", Name: "Dr. Grey", Email: "grey@example.com", Role: domain.RoleDoctor, Age: &age}
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUser(ctx, "U100")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDoctor, got.Role)
	require.NotNil(t, got.Age)
	assert.Equal(t, 42, *got.Age)
	assert.Nil(t, got.MedicalHistory)

	err = store.CreateUser(ctx, user)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.DeleteUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DeleteUserCascades(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	require.NoError(t, store.AddTimelineEntry(ctx, &domain.TimelineEntry{TimelineID: "T1", UserID: "U001", DrugID: "D001"}))
	require.NoError(t, store.InsertAlert(ctx, &domain.Alert{
		AlertID: "AL00000001", UserID: "U001", Drug1ID: "D001", Drug2ID: "D002", Message: "m",
	}))
	require.NoError(t, store.InsertSuggestion(ctx, &domain.Suggestion{
		UserID: "U001", DrugA: "D001", DrugB: "D002", PredictedEffect: "Sedation", PredictedSeverity: 5,
	}))

	require.NoError(t, store.DeleteUser(ctx, "U001"))

	drugs, err := store.ListActiveDrugs(ctx, "U001")
	require.NoError(t, err)
	assert.Empty(t, drugs)

	alerts, err := store.ListAlerts(ctx, "U001", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	pending, err := store.ListPendingSuggestions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_UpsertInteraction(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	lvl := domain.EvidenceHigh
	in := &domain.Interaction{
		InteractionID: "INT001", DrugA: "D001", DrugB: "D002", EffectID: "E001",
		SeverityScore: 8.5, Mechanism: domain.StringPtr("Serotonergic"), EvidenceLevel: &lvl,
	}
	require.NoError(t, store.UpsertInteraction(ctx, in))
	assert.False(t, in.CreatedAt.IsZero())

	found, err := store.FindInteractionByPair(ctx, domain.DrugPair{A: "D001", B: "D002"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Seizures", found[0].EffectName)
	assert.Equal(t, "Neurological", *found[0].EffectCategory)
	assert.Equal(t, domain.EvidenceHigh, *found[0].EvidenceLevel)

	t.Run("Duplicate pair and effect rejected", func(t *testing.T) {
		dup := &domain.Interaction{InteractionID: "INT999", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 3}
		err := store.UpsertInteraction(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateInteraction)

		all, err := store.ListInteractions(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Same id updates in place", func(t *testing.T) {
		created := in.CreatedAt
		update := &domain.Interaction{InteractionID: "INT001", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 9.0}
		require.NoError(t, store.UpsertInteraction(ctx, update))

		got, err := store.GetInteraction(ctx, "INT001")
		require.NoError(t, err)
		assert.Equal(t, 9.0, got.SeverityScore)
		assert.Nil(t, got.Mechanism)
		assert.WithinDuration(t, created, got.CreatedAt, time.Second)
	})

	t.Run("Unknown drug rejected", func(t *testing.T) {
		bad := &domain.Interaction{InteractionID: "INT002", DrugA: "D001", DrugB: "D999", EffectID: "E001", SeverityScore: 3}
		err := store.UpsertInteraction(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_DanglingEffectFallsBackToID(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "INT010", DrugA: "D002", DrugB: "D003", EffectID: "E404", SeverityScore: 6,
	}))

	found, err := store.FindInteractionByPair(ctx, domain.DrugPair{A: "D002", B: "D003"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "E404", found[0].EffectName)
	assert.Nil(t, found[0].EffectCategory)
}

func TestStore_TopInteractions(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{InteractionID: "INT1", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 4}))
	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{InteractionID: "INT2", DrugA: "D001", DrugB: "D003", EffectID: "E001", SeverityScore: 9}))
	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{InteractionID: "INT3", DrugA: "D002", DrugB: "D003", EffectID: "E001", SeverityScore: 7}))

	top, err := store.TopInteractions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "INT2", top[0].InteractionID)
	assert.Equal(t, "INT3", top[1].InteractionID)

	require.NoError(t, store.DeleteInteraction(ctx, "INT2"))
	assert.ErrorIs(t, store.DeleteInteraction(ctx, "INT2"), domain.ErrNotFound)
}

func TestStore_DeleteDrugGuard(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{InteractionID: "INT1", DrugA: "D001", DrugB: "D002", EffectID: "E001", SeverityScore: 4}))
	require.NoError(t, store.AddTimelineEntry(ctx, &domain.TimelineEntry{TimelineID: "T1", UserID: "U001", DrugID: "D003"}))

	assert.ErrorIs(t, store.DeleteDrug(ctx, "D001"), domain.ErrDrugInUse)
	assert.ErrorIs(t, store.DeleteDrug(ctx, "D003"), domain.ErrDrugInUse)
	assert.ErrorIs(t, store.DeleteDrug(ctx, "D999"), domain.ErrNotFound)

	require.NoError(t, store.CreateDrug(ctx, &domain.Drug{DrugID: "D004", Name: "Unused"}))
	require.NoError(t, store.DeleteDrug(ctx, "D004"))
	_, err := store.GetDrug(ctx, "D004")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListActiveDrugs(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	for i, drug := range []string{"D003", "D001", "D003"} {
		require.NoError(t, store.AddTimelineEntry(ctx, &domain.TimelineEntry{
			TimelineID: "T" + string(rune('A'+i)), UserID: "U001", DrugID: drug, Dosage: domain.StringPtr("10mg"),
		}))
	}

	drugs, err := store.ListActiveDrugs(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, []string{"D001", "D003"}, drugs)

	entries, err := store.ListTimeline(ctx, "U001")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "10mg", *entries[0].Dosage)

	err = store.AddTimelineEntry(ctx, &domain.TimelineEntry{TimelineID: "TX", UserID: "U001", DrugID: "D999"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_InsertAlertIfNoUnread(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	ref := domain.InteractionRef("INT001")
	newAlert := func(id string) *domain.Alert {
		return &domain.Alert{AlertID: id, UserID: "U001", SourceRef: &ref, Drug1ID: "D001", Drug2ID: "D002", Message: "High-risk"}
	}

	inserted, err := store.InsertAlertIfNoUnread(ctx, newAlert("AL00000001"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertAlertIfNoUnread(ctx, newAlert("AL00000002"))
	require.NoError(t, err)
	assert.False(t, inserted)

	has, err := store.HasUnreadAlert(ctx, "U001", ref)
	require.NoError(t, err)
	assert.True(t, has)

	count, err := store.CountUnreadAlerts(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	marked, err := store.MarkAllRead(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	inserted, err = store.InsertAlertIfNoUnread(ctx, newAlert("AL00000003"))
	require.NoError(t, err)
	assert.True(t, inserted, "a read alert does not block a new one")

	alerts, err := store.ListAlerts(ctx, "U001", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "AL00000003", alerts[0].AlertID)
	assert.Equal(t, domain.AlertUnread, alerts[0].Status)
	assert.Equal(t, domain.AlertRead, alerts[1].Status)

	got, err := store.GetAlert(ctx, "AL00000001")
	require.NoError(t, err)
	assert.Equal(t, ref, *got.SourceRef)
}

func TestStore_SuggestionLifecycle(t *testing.T) {
	store := createTestStore(t)
	seedCatalog(t, store)
	ctx := context.Background()

	sg := &domain.Suggestion{
		UserID: "U001", DrugA: "D001", DrugB: "D003", PredictedEffect: "Sedation",
		PredictedSeverity: 7.3, Explanation: "heuristic",
	}
	require.NoError(t, store.InsertSuggestion(ctx, sg))
	assert.NotZero(t, sg.SuggestionID)
	assert.Equal(t, domain.SuggestionPending, sg.Status)

	found, err := store.FindPendingSuggestion(ctx, "U001", domain.DrugPair{A: "D001", B: "D003"}, "Sedation")
	require.NoError(t, err)
	assert.Equal(t, sg.SuggestionID, found.SuggestionID)

	ref := domain.SuggestionRef(sg.SuggestionID)
	alert := &domain.Alert{AlertID: "AL0000000A", UserID: "U001", SourceRef: &ref, Drug1ID: "D001", Drug2ID: "D003", Message: "approved"}
	reviewedAt := time.Now().UTC()
	require.NoError(t, store.ResolveSuggestion(ctx, sg.SuggestionID, domain.SuggestionApproved, "DR1", reviewedAt, alert))

	got, err := store.GetSuggestion(ctx, sg.SuggestionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "DR1", *got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	assert.WithinDuration(t, reviewedAt, *got.ReviewedAt, time.Second)

	second := &domain.Alert{AlertID: "AL0000000B", UserID: "U001", SourceRef: &ref, Drug1ID: "D001", Drug2ID: "D003", Message: "again"}
	err = store.ResolveSuggestion(ctx, sg.SuggestionID, domain.SuggestionDenied, "DR2", time.Now(), second)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	err = store.ResolveSuggestion(ctx, 9999, domain.SuggestionDenied, "DR2", time.Now(), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	alerts, err := store.ListAlerts(ctx, "U001", 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	_, err = store.FindPendingSuggestion(ctx, "U001", domain.DrugPair{A: "D001", B: "D003"}, "Sedation")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
