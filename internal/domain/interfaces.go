package domain

import (
	"context"
	"time"
)

// UserStore persists user accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	// DeleteUser removes the user together with its timeline, alerts and suggestions.
	DeleteUser(ctx context.Context, userID string) error
}

// CatalogStore persists drugs, effects and interactions
type CatalogStore interface {
	CreateDrug(ctx context.Context, drug *Drug) error
	GetDrug(ctx context.Context, drugID string) (*Drug, error)
	ListDrugs(ctx context.Context) ([]*Drug, error)
	// DeleteDrug fails with ErrDrugInUse while interactions or timeline entries reference the drug.
	DeleteDrug(ctx context.Context, drugID string) error

	CreateEffect(ctx context.Context, effect *NeuroEffect) error
	GetEffect(ctx context.Context, effectID string) (*NeuroEffect, error)
	ListEffects(ctx context.Context) ([]*NeuroEffect, error)

	// FindInteractionByPair returns every interaction recorded for the canonical pair.
	FindInteractionByPair(ctx context.Context, pair DrugPair) ([]*InteractionDetail, error)
	GetInteraction(ctx context.Context, interactionID string) (*InteractionDetail, error)
	// UpsertInteraction inserts or replaces by id. It fails with
	// ErrDuplicateInteraction when another id covers the same pair and effect.
	UpsertInteraction(ctx context.Context, interaction *Interaction) error
	DeleteInteraction(ctx context.Context, interactionID string) error
	ListInteractions(ctx context.Context) ([]*InteractionDetail, error)
	TopInteractions(ctx context.Context, limit int) ([]*InteractionDetail, error)
}

// TimelineStore persists medication timelines
type TimelineStore interface {
	AddTimelineEntry(ctx context.Context, entry *TimelineEntry) error
	ListTimeline(ctx context.Context, userID string) ([]*TimelineEntry, error)
	// ListActiveDrugs returns the sorted distinct drug ids on the user's timeline.
	ListActiveDrugs(ctx context.Context, userID string) ([]string, error)
}

// NotificationStore persists alerts
type NotificationStore interface {
	HasUnreadAlert(ctx context.Context, userID, sourceRef string) (bool, error)
	InsertAlert(ctx context.Context, alert *Alert) error
	// InsertAlertIfNoUnread inserts the alert unless an unread alert with the
	// same user and source reference exists. Check and insert share one transaction.
	InsertAlertIfNoUnread(ctx context.Context, alert *Alert) (bool, error)
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	ListAlerts(ctx context.Context, userID string, limit int) ([]*Alert, error)
	CountUnreadAlerts(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// SuggestionStore persists AI suggestions
type SuggestionStore interface {
	// InsertSuggestion assigns SuggestionID on success.
	InsertSuggestion(ctx context.Context, s *Suggestion) error
	GetSuggestion(ctx context.Context, id int64) (*Suggestion, error)
	FindPendingSuggestion(ctx context.Context, userID string, pair DrugPair, effect string) (*Suggestion, error)
	ListPendingSuggestions(ctx context.Context) ([]*Suggestion, error)
	// ResolveSuggestion moves a PENDING suggestion to status and inserts alert
	// in the same transaction. It fails with ErrInvalidTransition when the
	// suggestion is no longer PENDING.
	ResolveSuggestion(ctx context.Context, id int64, status SuggestionStatus, reviewedBy string, reviewedAt time.Time, alert *Alert) error
}

// Store is the complete data-access contract of the service
type Store interface {
	UserStore
	CatalogStore
	TimelineStore
	NotificationStore
	SuggestionStore
	Close() error
}

// Predictor produces an interaction prediction for a canonical drug pair
type Predictor interface {
	Predict(ctx context.Context, pair DrugPair) (*Prediction, error)
}

// AlertNotifier is told about every committed alert
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, alert *Alert)
}

// UnreadCounter caches per-user unread alert counts
type UnreadCounter interface {
	Get(ctx context.Context, userID string) (int, bool)
	Set(ctx context.Context, userID string, count int)
	Invalidate(ctx context.Context, userID string)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
}
