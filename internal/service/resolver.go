package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/metrics"
)

// ResolverConfig represents configuration for the interaction resolver
type ResolverConfig struct {
	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`
}

// resolved is a cache entry; a nil detail records a known absence.
type resolved struct {
	detail *domain.InteractionDetail
}

// InteractionResolver answers "do these two drugs interact, and how badly"
// with a memory LRU in front of the catalog store.
type InteractionResolver struct {
	store   domain.CatalogStore
	cache   *expirable.LRU[domain.DrugPair, resolved]
	metrics *metrics.EngineMetrics

	// mu orders cache fills against invalidations; gen counts invalidations
	// so a lookup that raced a write does not cache what it read.
	mu  sync.Mutex
	gen uint64
	logger  *logrus.Logger
}

// NewInteractionResolver creates a resolver over the catalog store
func NewInteractionResolver(store domain.CatalogStore, config ResolverConfig, m *metrics.EngineMetrics, logger *logrus.Logger) *InteractionResolver {
	if config.CacheSize <= 0 {
		config.CacheSize = 4096
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Minute
	}

	return &InteractionResolver{
		store:   store,
		cache:   expirable.NewLRU[domain.DrugPair, resolved](config.CacheSize, nil, config.CacheTTL),
		metrics: m,
		logger:  logger,
	}
}

// Find returns the interaction recorded for the unordered pair. When several
// effects are recorded the highest severity wins, ties broken by id. It
// returns domain.ErrNotFound when the drugs do not interact.
func (r *InteractionResolver) Find(ctx context.Context, drugA, drugB string) (*domain.InteractionDetail, error) {
	pair, err := domain.NewDrugPair(drugA, drugB)
	if err != nil {
		return nil, err
	}

	if entry, ok := r.cache.Get(pair); ok {
		r.metrics.RecordResolverLookup(true)
		return copyDetail(entry.detail)
	}
	r.metrics.RecordResolverLookup(false)

	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	found, err := r.store.FindInteractionByPair(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", pair.Key(), err)
	}

	var best *domain.InteractionDetail
	for _, d := range found {
		if best == nil || d.SeverityScore > best.SeverityScore ||
			(d.SeverityScore == best.SeverityScore && d.InteractionID < best.InteractionID) {
			best = d
		}
	}
	if best != nil && best.EffectName == "" {
		best.EffectName = best.EffectID
	}

	r.mu.Lock()
	if r.gen == gen {
		r.cache.Add(pair, resolved{detail: best})
	}
	r.mu.Unlock()
	return copyDetail(best)
}

func copyDetail(d *domain.InteractionDetail) (*domain.InteractionDetail, error) {
	if d == nil {
		return nil, domain.ErrNotFound
	}
	c := *d
	return &c, nil
}

// Add validates and stores an interaction, replacing one with the same id.
// Only doctors and admins may curate interactions.
func (r *InteractionResolver) Add(ctx context.Context, sess domain.Session, in *domain.Interaction) error {
	if !sess.Role.CanReview() {
		return fmt.Errorf("adding interaction: %w", domain.ErrPermissionDenied)
	}

	pair, err := domain.NewDrugPair(in.DrugA, in.DrugB)
	if err != nil {
		return err
	}
	in.DrugA, in.DrugB = pair.A, pair.B

	in.EffectID = strings.TrimSpace(in.EffectID)
	if in.EffectID == "" {
		return domain.NewValidationError("effect_id", "is required", in.EffectID)
	}
	if !domain.ValidSeverity(in.SeverityScore) {
		return domain.NewValidationError("severity_score", "must be between 0 and 10", in.SeverityScore)
	}
	if in.EvidenceLevel != nil && !in.EvidenceLevel.IsValid() {
		return domain.NewValidationError("evidence_level", "must be one of low, moderate, high", *in.EvidenceLevel)
	}
	if in.InteractionID == "" {
		in.InteractionID = newShortID("INT")
	}

	// An upsert may move an existing id onto another pair
	stale := []domain.DrugPair{pair}
	existing, err := r.store.GetInteraction(ctx, in.InteractionID)
	switch {
	case err == nil:
		if old := existing.Pair(); old != pair {
			stale = append(stale, old)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	if err := r.store.UpsertInteraction(ctx, in); err != nil {
		return err
	}
	r.invalidate(stale...)

	r.logger.WithFields(logrus.Fields{
		"interaction_id": in.InteractionID,
		"pair":           pair.Key(),
		"by":             sess.UserID,
	}).Info("Interaction recorded")
	return nil
}

// Delete removes an interaction. Only doctors and admins may curate.
func (r *InteractionResolver) Delete(ctx context.Context, sess domain.Session, interactionID string) error {
	if !sess.Role.CanReview() {
		return fmt.Errorf("deleting interaction: %w", domain.ErrPermissionDenied)
	}

	existing, err := r.store.GetInteraction(ctx, interactionID)
	if err != nil {
		return err
	}
	if err := r.store.DeleteInteraction(ctx, interactionID); err != nil {
		return err
	}
	r.invalidate(existing.Pair())
	return nil
}

func (r *InteractionResolver) invalidate(pairs ...domain.DrugPair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	for _, p := range pairs {
		r.cache.Remove(p)
	}
}

// List returns every recorded interaction.
func (r *InteractionResolver) List(ctx context.Context) ([]*domain.InteractionDetail, error) {
	return r.store.ListInteractions(ctx)
}

// Top returns the highest-severity interactions, ten by default.
func (r *InteractionResolver) Top(ctx context.Context, limit int) ([]*domain.InteractionDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.store.TopInteractions(ctx, limit)
}

// Purge drops every cached lookup.
func (r *InteractionResolver) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.cache.Purge()
}

// newShortID returns prefix followed by eight upper-case hex characters.
func newShortID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(hex[:8])
}
