package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/metrics"
)

// Prediction sources
const (
	PredictionSourceHeuristic = "heuristic"
	PredictionSourceModel     = "model"
)

// heuristicEffects is the vocabulary used for pairs with no recorded interaction.
var heuristicEffects = []string{"Dizziness", "Sedation", "Seizures", "Weight Gain"}

const heuristicDisclaimer = "Heuristic estimate, not medical advice; requires doctor review."

// HeuristicPredictor is a deterministic placeholder for an interaction
// model. Known interactions are perturbed by at most half a point; unknown
// pairs get an effect from a fixed vocabulary and a severity in [3.0, 9.5].
type HeuristicPredictor struct {
	resolver *InteractionResolver
}

// NewHeuristicPredictor creates a heuristic predictor backed by resolver
func NewHeuristicPredictor(resolver *InteractionResolver) *HeuristicPredictor {
	return &HeuristicPredictor{resolver: resolver}
}

// Predict implements domain.Predictor
func (h *HeuristicPredictor) Predict(ctx context.Context, pair domain.DrugPair) (*domain.Prediction, error) {
	known, err := h.resolver.Find(ctx, pair.A, pair.B)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if known != nil {
		rng := seededRand(pair.Key() + "|" + known.EffectID)
		jitter := rng.Float64() - 0.5
		severity := roundTenth(clamp(known.SeverityScore+jitter, domain.MinSeverity, domain.MaxSeverity))

		explanation := fmt.Sprintf("Recorded interaction %s suggests %s.", known.InteractionID, known.EffectName)
		if known.Mechanism != nil && *known.Mechanism != "" {
			explanation += " Mechanism: " + *known.Mechanism + "."
		}
		return &domain.Prediction{
			Effect:      known.EffectName,
			Severity:    severity,
			Explanation: explanation + " " + heuristicDisclaimer,
			Source:      PredictionSourceHeuristic,
		}, nil
	}

	rng := seededRand(pair.Key())
	effect := heuristicEffects[rng.IntN(len(heuristicEffects))]
	severity := roundTenth(3.0 + rng.Float64()*6.5)
	return &domain.Prediction{
		Effect:      effect,
		Severity:    severity,
		Explanation: fmt.Sprintf("No recorded interaction between %s and %s. %s", pair.A, pair.B, heuristicDisclaimer),
		Source:      PredictionSourceHeuristic,
	}, nil
}

// seededRand returns a PCG source seeded by the FNV-1a hash of key.
func seededRand(key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// RemotePredictorConfig represents configuration for the remote model client
type RemotePredictorConfig struct {
	URL       string        `json:"url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rate_limit"` // requests per second
}

// RemotePredictor calls an HTTP model endpoint and falls back to the
// heuristic when the model fails or its circuit breaker is open.
type RemotePredictor struct {
	url        string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	fallback   domain.Predictor
	metrics    *metrics.EngineMetrics
	logger     *logrus.Logger
}

type remoteRequest struct {
	DrugA string `json:"drug_a"`
	DrugB string `json:"drug_b"`
}

type remoteResponse struct {
	Effect      string  `json:"effect"`
	Severity    float64 `json:"severity"`
	Explanation string  `json:"explanation"`
}

// NewRemotePredictor creates a remote predictor client
func NewRemotePredictor(config RemotePredictorConfig, fallback domain.Predictor, m *metrics.EngineMetrics, logger *logrus.Logger) *RemotePredictor {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "InteractionModel",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RemotePredictor{
		url:        config.URL,
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    breaker,
		fallback:   fallback,
		metrics:    m,
		logger:     logger,
	}
}

// Predict implements domain.Predictor
func (p *RemotePredictor) Predict(ctx context.Context, pair domain.DrugPair) (*domain.Prediction, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.call(ctx, pair)
	})
	if err == nil {
		return result.(*domain.Prediction), nil
	}

	reason := "model_error"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		reason = "breaker_open"
	}
	p.metrics.RecordPredictorFallback(reason)
	p.logger.WithFields(logrus.Fields{
		"pair":   pair.Key(),
		"reason": reason,
		"error":  err,
	}).Warn("Remote predictor unavailable, using heuristic")

	return p.fallback.Predict(ctx, pair)
}

func (p *RemotePredictor) call(ctx context.Context, pair domain.DrugPair) (*domain.Prediction, error) {
	if err := p.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := json.Marshal(remoteRequest{DrugA: pair.A, DrugB: pair.B})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	if out.Effect == "" || !domain.ValidSeverity(out.Severity) {
		return nil, fmt.Errorf("model returned invalid prediction")
	}

	return &domain.Prediction{
		Effect:      out.Effect,
		Severity:    roundTenth(out.Severity),
		Explanation: out.Explanation,
		Source:      PredictionSourceModel,
	}, nil
}
