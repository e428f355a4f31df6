package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuropharmdb-server/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		severity float64
		want     domain.RiskTier
	}{
		{10.0, domain.RiskHigh},
		{7.0, domain.RiskHigh},
		{6.999, domain.RiskMedium},
		{4.0, domain.RiskMedium},
		{3.999, domain.RiskLow},
		{0.0, domain.RiskLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.severity), "severity %v", tt.severity)
	}
}

func TestClassifyWithThreshold(t *testing.T) {
	assert.Equal(t, domain.RiskHigh, ClassifyWithThreshold(5.0, 5.0))
	assert.Equal(t, domain.RiskMedium, ClassifyWithThreshold(8.5, 9.0))
	assert.Equal(t, domain.RiskLow, ClassifyWithThreshold(3.0, 5.0))
}
