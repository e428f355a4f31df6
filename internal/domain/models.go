package domain

import (
	"time"
)

// User represents an account of the interaction tracker
type User struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Role           Role    `json:"role"`
	Age            *int    `json:"age,omitempty"`
	MedicalHistory *string `json:"medical_history,omitempty"`
}

// Drug represents a catalog entry for a medication
type Drug struct {
	DrugID    string  `json:"drug_id"`
	Name      string  `json:"name"`
	Class     *string `json:"class,omitempty"`
	Mechanism *string `json:"mechanism,omitempty"`
}

// NeuroEffect represents a neurological effect an interaction may cause
type NeuroEffect struct {
	EffectID        string   `json:"effect_id"`
	Name            string   `json:"name"`
	Category        *string  `json:"category,omitempty"`
	DefaultSeverity *float64 `json:"default_severity,omitempty"`
}

// SeverityLabel returns the categorical label of the default severity, or
// an empty label when none is recorded.
func (e *NeuroEffect) SeverityLabel() SeverityLabel {
	if e.DefaultSeverity == nil {
		return ""
	}
	return SeverityLabelFor(*e.DefaultSeverity)
}

// Interaction represents a recorded pairwise drug interaction. DrugA and
// DrugB are stored in canonical order.
type Interaction struct {
	InteractionID string         `json:"interaction_id"`
	DrugA         string         `json:"drug_a"`
	DrugB         string         `json:"drug_b"`
	EffectID      string         `json:"effect_id"`
	SeverityScore float64        `json:"severity_score"`
	Mechanism     *string        `json:"mechanism,omitempty"`
	EvidenceLevel *EvidenceLevel `json:"evidence_level,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Pair returns the canonical pair of the interaction.
func (i *Interaction) Pair() DrugPair {
	return DrugPair{A: i.DrugA, B: i.DrugB}
}

// InteractionDetail is an interaction joined with its effect record.
// EffectName falls back to the raw effect id when the effect is missing.
type InteractionDetail struct {
	Interaction
	EffectName     string  `json:"effect_name"`
	EffectCategory *string `json:"effect_category,omitempty"`
}

// TimelineEntry records a drug on a user's medication timeline
type TimelineEntry struct {
	TimelineID string  `json:"timeline_id"`
	UserID     string  `json:"user_id"`
	DrugID     string  `json:"drug_id"`
	Dosage     *string `json:"dosage,omitempty"`
	Frequency  *string `json:"frequency,omitempty"`
	TimeOfDay  *string `json:"time_of_day,omitempty"`
	StartDate  *string `json:"start_date,omitempty"`
	EndDate    *string `json:"end_date,omitempty"`
}

// Alert represents a notification raised for a user
type Alert struct {
	AlertID   string      `json:"alert_id"`
	UserID    string      `json:"user_id"`
	SourceRef *string     `json:"source_ref,omitempty"`
	Drug1ID   string      `json:"drug1_id"`
	Drug2ID   string      `json:"drug2_id"`
	Message   string      `json:"message"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// AlertView is an alert enriched with the severity and effect of its source
type AlertView struct {
	Alert
	Severity   *float64 `json:"severity,omitempty"`
	EffectName *string  `json:"effect_name,omitempty"`
}

// Alert explanation sources
const (
	ExplanationSourceDatabase     = "database"
	ExplanationSourceAISuggestion = "ai_suggestion"
	ExplanationSourceUnknown      = "unknown"
)

// DrugSummary is the display form of a drug inside an explanation.
// Name falls back to the raw id when the drug record is missing.
type DrugSummary struct {
	DrugID    string  `json:"drug_id"`
	Name      string  `json:"name"`
	Class     *string `json:"class,omitempty"`
	Mechanism *string `json:"mechanism,omitempty"`
}

// AlertExplanation answers "why was I alerted?"
type AlertExplanation struct {
	Alert                Alert       `json:"alert"`
	Drug1                DrugSummary `json:"drug1"`
	Drug2                DrugSummary `json:"drug2"`
	Source               string      `json:"source"`
	Severity             *float64    `json:"severity,omitempty"`
	Mechanism            *string     `json:"mechanism,omitempty"`
	EffectName           *string     `json:"effect_name,omitempty"`
	EffectCategory       *string     `json:"effect_category,omitempty"`
	PredictedExplanation *string     `json:"predicted_explanation,omitempty"`
}

// Suggestion is an AI-predicted interaction awaiting doctor review
type Suggestion struct {
	SuggestionID      int64            `json:"suggestion_id"`
	UserID            string           `json:"user_id"`
	DrugA             string           `json:"drug_a"`
	DrugB             string           `json:"drug_b"`
	PredictedEffect   string           `json:"predicted_effect"`
	PredictedSeverity float64          `json:"predicted_severity"`
	Explanation       string           `json:"explanation"`
	Status            SuggestionStatus `json:"status"`
	ReviewedBy        *string          `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Prediction is the output of an interaction predictor
type Prediction struct {
	Effect      string  `json:"effect"`
	Severity    float64 `json:"severity"`
	Explanation string  `json:"explanation"`
	Source      string  `json:"source"`
}

// PairEvaluation is the result of checking one drug pair for a user
type PairEvaluation struct {
	Status       RiskTier           `json:"status"`
	Interaction  *InteractionDetail `json:"interaction,omitempty"`
	AlertCreated bool               `json:"alert_created"`
}

// Session identifies the authenticated caller of role-gated operations
type Session struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or fallback when p is nil or empty.
func Deref(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
