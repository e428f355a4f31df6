// Package domain contains the core entities, value types and data-access
// contracts for drug interaction tracking: the drug catalog, per-user
// medication timelines, severity-scored interactions, alerts and
// AI-predicted interaction suggestions awaiting doctor review.
package domain

import (
	"fmt"
	"strings"
)

// Severity bounds for interaction and effect scores.
const (
	MinSeverity = 0.0
	MaxSeverity = 10.0
)

// RiskTier is the result of classifying a severity score.
type RiskTier string

const (
	RiskSafe   RiskTier = "safe" // no known interaction for the pair
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// IsValid reports whether the tier is one of the known values.
func (r RiskTier) IsValid() bool {
	switch r {
	case RiskSafe, RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (r RiskTier) String() string {
	return string(r)
}

// Role is the access role of an authenticated user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// IsValid reports whether the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	default:
		return false
	}
}

// CanReview reports whether the role may curate interactions and review
// AI suggestions.
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleDoctor
}

// ParseRole normalises a role string. Empty input defaults to patient.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RolePatient, nil
	}
	role := Role(s)
	if !role.IsValid() {
		return "", NewValidationError("role", "must be one of admin, doctor, patient", s)
	}
	return role, nil
}

// AlertStatus tracks whether the owning user has seen an alert.
type AlertStatus string

const (
	AlertUnread AlertStatus = "unread"
	AlertRead   AlertStatus = "read"
)

// SuggestionStatus is the review state of an AI suggestion.
// PENDING is the only non-terminal state.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionApproved SuggestionStatus = "APPROVED"
	SuggestionDenied   SuggestionStatus = "DENIED"
)

// IsTerminal reports whether no further transition is allowed.
func (s SuggestionStatus) IsTerminal() bool {
	return s == SuggestionApproved || s == SuggestionDenied
}

// EvidenceLevel grades the literature support for an interaction.
type EvidenceLevel string

const (
	EvidenceLow      EvidenceLevel = "low"
	EvidenceModerate EvidenceLevel = "moderate"
	EvidenceHigh     EvidenceLevel = "high"
)

// IsValid reports whether the level is known.
func (e EvidenceLevel) IsValid() bool {
	switch e {
	case EvidenceLow, EvidenceModerate, EvidenceHigh:
		return true
	default:
		return false
	}
}

// SeverityLabel is the categorical form of a numeric severity.
type SeverityLabel string

const (
	SeverityLabelLow    SeverityLabel = "Low"
	SeverityLabelMedium SeverityLabel = "Medium"
	SeverityLabelHigh   SeverityLabel = "High"
)

// SeverityLabelFor derives the categorical label of an effect's default
// severity: below 5.0 is Low, below 8.0 is Medium, otherwise High.
func SeverityLabelFor(severity float64) SeverityLabel {
	switch {
	case severity >= 8.0:
		return SeverityLabelHigh
	case severity >= 5.0:
		return SeverityLabelMedium
	default:
		return SeverityLabelLow
	}
}

// ValidSeverity reports whether s lies within [MinSeverity, MaxSeverity].
func ValidSeverity(s float64) bool {
	return s >= MinSeverity && s <= MaxSeverity
}

// DrugPair is an unordered pair of drug identifiers kept in canonical order
// (A < B) so that (x, y) and (y, x) compare and hash identically.
type DrugPair struct {
	A string
	B string
}

// NewDrugPair builds the canonical pair for two drug ids. It returns
// ErrInvalidPair when either id is empty or both are the same drug.
func NewDrugPair(a, b string) (DrugPair, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return DrugPair{}, fmt.Errorf("drug ids must not be empty: %w", ErrInvalidPair)
	}
	if a == b {
		return DrugPair{}, fmt.Errorf("drug %s cannot interact with itself: %w", a, ErrInvalidPair)
	}
	if b < a {
		a, b = b, a
	}
	return DrugPair{A: a, B: b}, nil
}

// Key returns a stable string key for caches and hashing.
func (p DrugPair) Key() string {
	return p.A + "|" + p.B
}

// Source reference prefixes distinguishing what raised an alert.
const (
	interactionRefPrefix = "INT:"
	suggestionRefPrefix  = "SUG:"
)

// InteractionRef returns the alert source reference for a known interaction.
func InteractionRef(interactionID string) string {
	return interactionRefPrefix + interactionID
}

// SuggestionRef returns the alert source reference for an AI suggestion.
func SuggestionRef(suggestionID int64) string {
	return fmt.Sprintf("%s%d", suggestionRefPrefix, suggestionID)
}

// ParseSourceRef splits a source reference into its kind and identifier.
// Kind is "interaction", "suggestion" or "" when the reference is unknown.
func ParseSourceRef(ref string) (kind, id string) {
	switch {
	case strings.HasPrefix(ref, interactionRefPrefix):
		return "interaction", strings.TrimPrefix(ref, interactionRefPrefix)
	case strings.HasPrefix(ref, suggestionRefPrefix):
		return "suggestion", strings.TrimPrefix(ref, suggestionRefPrefix)
	default:
		return "", ref
	}
}
