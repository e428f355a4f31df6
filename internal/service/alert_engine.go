package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/metrics"
)

// DefaultAlertListLimit is the number of alerts listed when no limit is given.
const DefaultAlertListLimit = 20

// AlertEngine evaluates a user's active drugs against the interaction
// catalog and raises deduplicated alerts.
type AlertEngine struct {
	store     domain.Store
	resolver  *InteractionResolver
	notifier  domain.AlertNotifier
	counter   domain.UnreadCounter
	metrics   *metrics.EngineMetrics
	locks     *keyedMutex
	threshold float64
	listLimit int
	logger    *logrus.Logger
}

// AlertEngineOption configures optional collaborators of the engine
type AlertEngineOption func(*AlertEngine)

// WithNotifier pushes every committed alert to n.
func WithNotifier(n domain.AlertNotifier) AlertEngineOption {
	return func(e *AlertEngine) { e.notifier = n }
}

// WithUnreadCounter serves unread counts from c.
func WithUnreadCounter(c domain.UnreadCounter) AlertEngineOption {
	return func(e *AlertEngine) { e.counter = c }
}

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.EngineMetrics) AlertEngineOption {
	return func(e *AlertEngine) { e.metrics = m }
}

// WithThreshold sets the alert threshold used by transports.
func WithThreshold(t float64) AlertEngineOption {
	return func(e *AlertEngine) { e.threshold = t }
}

// WithListLimit sets the default alert list size.
func WithListLimit(n int) AlertEngineOption {
	return func(e *AlertEngine) { e.listLimit = n }
}

// NewAlertEngine creates an alert engine
func NewAlertEngine(store domain.Store, resolver *InteractionResolver, logger *logrus.Logger, opts ...AlertEngineOption) *AlertEngine {
	e := &AlertEngine{
		store:     store,
		resolver:  resolver,
		locks:     newKeyedMutex(),
		threshold: DefaultAlertThreshold,
		listLimit: DefaultAlertListLimit,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured alert threshold.
func (e *AlertEngine) Threshold() float64 {
	return e.threshold
}

// SetNotifier replaces the alert notifier.
func (e *AlertEngine) SetNotifier(n domain.AlertNotifier) {
	e.notifier = n
}

// EvaluatePair classifies one drug pair for a user and raises an alert when
// the pair is high risk and no unread alert for the interaction exists.
// Repeated calls create at most one unread alert.
func (e *AlertEngine) EvaluatePair(ctx context.Context, userID, drugA, drugB string, threshold float64) (*domain.PairEvaluation, error) {
	drugA, drugB = strings.TrimSpace(drugA), strings.TrimSpace(drugB)
	if _, err := domain.NewDrugPair(drugA, drugB); err != nil {
		return nil, err
	}
	if err := checkSeverityArg("threshold", threshold); err != nil {
		return nil, err
	}

	detail, err := e.resolver.Find(ctx, drugA, drugB)
	if errors.Is(err, domain.ErrNotFound) {
		e.metrics.RecordPairEvaluation(string(domain.RiskSafe))
		return &domain.PairEvaluation{Status: domain.RiskSafe}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &domain.PairEvaluation{
		Status:      ClassifyWithThreshold(detail.SeverityScore, threshold),
		Interaction: detail,
	}
	e.metrics.RecordPairEvaluation(string(result.Status))

	if result.Status != domain.RiskHigh {
		return result, nil
	}

	msg := fmt.Sprintf("High-risk interaction: %s + %s -> %s (severity %.1f/10).",
		drugA, drugB, detail.EffectName, detail.SeverityScore)
	if detail.Mechanism != nil && *detail.Mechanism != "" {
		msg += " Mechanism: " + *detail.Mechanism
	}

	created, err := e.raise(ctx, newAlert(userID, domain.InteractionRef(detail.InteractionID), drugA, drugB, msg))
	if err != nil {
		return nil, err
	}
	result.AlertCreated = created
	return result, nil
}

// OnDrugAdded checks a newly added drug against the user's other active
// drugs and returns the number of alerts created. Pairs without an
// interaction, below minSeverity or with an unread alert are skipped.
func (e *AlertEngine) OnDrugAdded(ctx context.Context, userID, newDrugID string, minSeverity float64) (int, error) {
	newDrugID = strings.TrimSpace(newDrugID)
	if err := checkSeverityArg("min_severity", minSeverity); err != nil {
		return 0, err
	}

	active, err := e.store.ListActiveDrugs(ctx, userID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, other := range active {
		if other == newDrugID {
			continue
		}

		detail, err := e.resolver.Find(ctx, newDrugID, other)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return created, err
		}
		if detail.SeverityScore < minSeverity {
			continue
		}

		msg := fmt.Sprintf("Drug interaction detected: %s + %s -> %s (severity %.1f/10).",
			e.drugName(ctx, newDrugID), e.drugName(ctx, other), detail.EffectName, detail.SeverityScore)
		if detail.Mechanism != nil && *detail.Mechanism != "" {
			msg += " Mechanism: " + *detail.Mechanism
		}

		ok, err := e.raise(ctx, newAlert(userID, domain.InteractionRef(detail.InteractionID), newDrugID, other, msg))
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		e.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"drug_id": newDrugID,
			"alerts":  created,
		}).Info("Alerts raised for new drug")
	}
	return created, nil
}

// AddTimelineEntry records a drug on the user's timeline and then checks it
// against the other active drugs. It returns the number of alerts created.
func (e *AlertEngine) AddTimelineEntry(ctx context.Context, entry *domain.TimelineEntry, minSeverity float64) (int, error) {
	entry.UserID = strings.TrimSpace(entry.UserID)
	entry.DrugID = strings.TrimSpace(entry.DrugID)
	if entry.UserID == "" {
		return 0, domain.NewValidationError("user_id", "is required", entry.UserID)
	}
	if entry.DrugID == "" {
		return 0, domain.NewValidationError("drug_id", "is required", entry.DrugID)
	}
	if err := checkSeverityArg("min_severity", minSeverity); err != nil {
		return 0, err
	}
	if entry.TimelineID == "" {
		entry.TimelineID = newShortID("T")
	}

	if err := e.store.AddTimelineEntry(ctx, entry); err != nil {
		return 0, err
	}
	return e.OnDrugAdded(ctx, entry.UserID, entry.DrugID, minSeverity)
}

// OnBulkRecheck evaluates every pair of the user's active drugs and returns
// the number of high-risk pairs, whether or not each raised a new alert.
// The cost is quadratic in the number of active drugs.
func (e *AlertEngine) OnBulkRecheck(ctx context.Context, userID string, minSeverity float64) (int, error) {
	if err := checkSeverityArg("min_severity", minSeverity); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { e.metrics.ObserveRecheck(time.Since(start).Seconds()) }()

	drugs, err := e.store.ListActiveDrugs(ctx, userID)
	if err != nil {
		return 0, err
	}

	high := 0
	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			if err := ctx.Err(); err != nil {
				return high, err
			}
			res, err := e.EvaluatePair(ctx, userID, drugs[i], drugs[j], minSeverity)
			if err != nil {
				return high, err
			}
			if res.Status == domain.RiskHigh {
				high++
			}
		}
	}
	return high, nil
}

// checkSeverityArg rejects caller-supplied cutoffs outside the severity scale
func checkSeverityArg(field string, v float64) error {
	if !domain.ValidSeverity(v) {
		return domain.NewValidationError(field, "must be between 0 and 10", v)
	}
	return nil
}

// raise inserts the alert unless an unread one with the same source exists.
// The per-user lock keeps concurrent evaluations of one user from racing
// between the check and the insert.
func (e *AlertEngine) raise(ctx context.Context, alert *domain.Alert) (bool, error) {
	unlock := e.locks.Lock(alert.UserID)
	defer unlock()

	kind, _ := domain.ParseSourceRef(domain.Deref(alert.SourceRef, ""))
	inserted, err := e.store.InsertAlertIfNoUnread(ctx, alert)
	if err != nil {
		return false, err
	}
	if !inserted {
		e.metrics.RecordAlertDeduplicated(kind)
		return false, nil
	}

	e.committed(ctx, alert, kind)
	return true, nil
}

// committed runs the side effects of a stored alert.
func (e *AlertEngine) committed(ctx context.Context, alert *domain.Alert, kind string) {
	e.metrics.RecordAlertCreated(kind)
	if e.counter != nil {
		e.counter.Invalidate(ctx, alert.UserID)
	}
	if e.notifier != nil {
		e.notifier.NotifyAlert(ctx, alert)
	}
	e.logger.WithFields(logrus.Fields{
		"alert_id": alert.AlertID,
		"user_id":  alert.UserID,
		"source":   domain.Deref(alert.SourceRef, ""),
	}).Info("Alert created")
}

func (e *AlertEngine) drugName(ctx context.Context, drugID string) string {
	d, err := e.store.GetDrug(ctx, drugID)
	if err != nil || d.Name == "" {
		return drugID
	}
	return d.Name
}

// ListAlerts returns the user's most recent alerts, newest first, enriched
// with the severity and effect of their source.
func (e *AlertEngine) ListAlerts(ctx context.Context, userID string, limit int) ([]*domain.AlertView, error) {
	if limit <= 0 {
		limit = e.listLimit
	}

	alerts, err := e.store.ListAlerts(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.AlertView, 0, len(alerts))
	for _, a := range alerts {
		view := &domain.AlertView{Alert: *a}
		kind, id := domain.ParseSourceRef(domain.Deref(a.SourceRef, ""))
		switch kind {
		case "interaction":
			if in, err := e.store.GetInteraction(ctx, id); err == nil {
				sev := in.SeverityScore
				name := in.EffectName
				view.Severity = &sev
				view.EffectName = &name
			}
		case "suggestion":
			if sg, err := e.lookupSuggestion(ctx, id); err == nil {
				sev := sg.PredictedSeverity
				name := sg.PredictedEffect
				view.Severity = &sev
				view.EffectName = &name
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// UnreadCount returns the number of unread alerts, served from the counter
// cache when one is configured.
func (e *AlertEngine) UnreadCount(ctx context.Context, userID string) (int, error) {
	if e.counter != nil {
		if n, ok := e.counter.Get(ctx, userID); ok {
			return n, nil
		}
	}

	n, err := e.store.CountUnreadAlerts(ctx, userID)
	if err != nil {
		return 0, err
	}
	if e.counter != nil {
		e.counter.Set(ctx, userID, n)
	}
	return n, nil
}

// MarkAllRead marks every unread alert of the user as read.
func (e *AlertEngine) MarkAllRead(ctx context.Context, userID string) (int, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	n, err := e.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if e.counter != nil {
		e.counter.Invalidate(ctx, userID)
	}
	return n, nil
}

// Explain describes why an alert was raised. Missing drug, effect or
// interaction records degrade to raw identifiers.
func (e *AlertEngine) Explain(ctx context.Context, alertID string) (*domain.AlertExplanation, error) {
	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	exp := &domain.AlertExplanation{
		Alert:  *alert,
		Drug1:  e.drugSummary(ctx, alert.Drug1ID),
		Drug2:  e.drugSummary(ctx, alert.Drug2ID),
		Source: domain.ExplanationSourceUnknown,
	}

	kind, id := domain.ParseSourceRef(domain.Deref(alert.SourceRef, ""))
	switch kind {
	case "interaction":
		in, err := e.store.GetInteraction(ctx, id)
		if err != nil {
			break
		}
		exp.Source = domain.ExplanationSourceDatabase
		sev := in.SeverityScore
		name := in.EffectName
		exp.Severity = &sev
		exp.Mechanism = in.Mechanism
		exp.EffectName = &name
		exp.EffectCategory = in.EffectCategory
	case "suggestion":
		sg, err := e.lookupSuggestion(ctx, id)
		if err != nil {
			break
		}
		exp.Source = domain.ExplanationSourceAISuggestion
		sev := sg.PredictedSeverity
		name := sg.PredictedEffect
		explanation := sg.Explanation
		exp.Severity = &sev
		exp.EffectName = &name
		exp.PredictedExplanation = &explanation
	}
	return exp, nil
}

func (e *AlertEngine) lookupSuggestion(ctx context.Context, id string) (*domain.Suggestion, error) {
	var n int64
	if _, err := fmt.Sscanf(id, "%d", &n); err != nil {
		return nil, domain.ErrNotFound
	}
	return e.store.GetSuggestion(ctx, n)
}

func (e *AlertEngine) drugSummary(ctx context.Context, drugID string) domain.DrugSummary {
	summary := domain.DrugSummary{DrugID: drugID, Name: drugID}
	d, err := e.store.GetDrug(ctx, drugID)
	if err != nil {
		return summary
	}
	if d.Name != "" {
		summary.Name = d.Name
	}
	summary.Class = d.Class
	summary.Mechanism = d.Mechanism
	return summary
}

func newAlert(userID, sourceRef, drug1, drug2, message string) *domain.Alert {
	return &domain.Alert{
		AlertID:   newShortID("AL"),
		UserID:    userID,
		SourceRef: &sourceRef,
		Drug1ID:   drug1,
		Drug2ID:   drug2,
		Message:   message,
		Status:    domain.AlertUnread,
		CreatedAt: time.Now().UTC(),
	}
}
