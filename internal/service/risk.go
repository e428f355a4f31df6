package service

import "github.com/neuropharmdb-server/internal/domain"

// Risk thresholds on the 0-10 severity scale.
const (
	DefaultAlertThreshold = 7.0
	MediumRiskThreshold   = 4.0
)

// Classify maps a severity score onto a risk tier using the default alert
// threshold.
func Classify(severity float64) domain.RiskTier {
	return ClassifyWithThreshold(severity, DefaultAlertThreshold)
}

// ClassifyWithThreshold maps a severity score onto a risk tier. Only the
// high cutoff is configurable; medium always starts at MediumRiskThreshold.
func ClassifyWithThreshold(severity, highThreshold float64) domain.RiskTier {
	switch {
	case severity >= highThreshold:
		return domain.RiskHigh
	case severity >= MediumRiskThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
