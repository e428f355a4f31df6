package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/sqlitestore"
)

var (
	adminSession   = domain.Session{UserID: "A001", Role: domain.RoleAdmin}
	doctorSession  = domain.Session{UserID: "DR01", Role: domain.RoleDoctor}
	patientSession = domain.Session{UserID: "U001", Role: domain.RolePatient}
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func createTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "service.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedStore loads three drugs, two effects, one patient and a doctor. The
// only recorded interaction is D001+D002 causing Sedation at 8.5.
func seedStore(t *testing.T, store *sqlitestore.Store) {
	t.Helper()
	ctx := context.Background()

	for _, d := range []*domain.Drug{
		{DrugID: "D001", Name: "Sertraline", Class: domain.StringPtr("SSRI")},
		{DrugID: "D002", Name: "Lorazepam", Class: domain.StringPtr("Benzodiazepine")},
		{DrugID: "D003", Name: "Ibuprofen"},
		{DrugID: "D004", Name: "Melatonin"},
	} {
		require.NoError(t, store.CreateDrug(ctx, d))
	}
	for _, e := range []*domain.NeuroEffect{
		{EffectID: "E001", Name: "Sedation", Category: domain.StringPtr("CNS")},
		{EffectID: "E002", Name: "Headache"},
	} {
		require.NoError(t, store.CreateEffect(ctx, e))
	}
	for _, u := range []*domain.User{
		{UserID: "U001", Name: "Pat", Email: "pat@example.com", Role: domain.RolePatient},
		{UserID: "DR01", Name: "Grey", Email: "grey@example.com", Role: domain.RoleDoctor},
	} {
		require.NoError(t, store.CreateUser(ctx, u))
	}
	require.NoError(t, store.UpsertInteraction(ctx, &domain.Interaction{
		InteractionID: "I001",
		DrugA:         "D001",
		DrugB:         "D002",
		EffectID:      "E001",
		SeverityScore: 8.5,
		Mechanism:     domain.StringPtr("Additive CNS depression"),
	}))
}

type engineFixture struct {
	store    *sqlitestore.Store
	resolver *InteractionResolver
	engine   *AlertEngine
}

func newEngineFixture(t *testing.T, opts ...AlertEngineOption) *engineFixture {
	t.Helper()
	store := createTestStore(t)
	seedStore(t, store)
	resolver := NewInteractionResolver(store, ResolverConfig{}, nil, quietLogger())
	return &engineFixture{
		store:    store,
		resolver: resolver,
		engine:   NewAlertEngine(store, resolver, quietLogger(), opts...),
	}
}

func (f *engineFixture) addTimeline(t *testing.T, userID, drugID string) {
	t.Helper()
	require.NoError(t, f.store.AddTimelineEntry(context.Background(), &domain.TimelineEntry{
		TimelineID: userID + "-" + drugID,
		UserID:     userID,
		DrugID:     drugID,
	}))
}

// recordingNotifier collects notified alerts.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*domain.Alert
}

func (r *recordingNotifier) NotifyAlert(_ context.Context, alert *domain.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// counterValue returns the counter sample of family name carrying label value.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// mapCounter is an in-memory domain.UnreadCounter.
type mapCounter struct {
	mu     sync.Mutex
	counts map[string]int
	sets   int
}

func newMapCounter() *mapCounter {
	return &mapCounter{counts: make(map[string]int)}
}

func (c *mapCounter) Get(_ context.Context, userID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.counts[userID]
	return n, ok
}

func (c *mapCounter) Set(_ context.Context, userID string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID] = count
	c.sets++
}

func (c *mapCounter) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, userID)
}
