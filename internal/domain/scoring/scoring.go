// Package scoring defines the augmentation boundary between the rule-based
// fall-risk scorer and an optional external ML model. The rule-based path is
// the default and the only one guaranteed: the model may override the
// composite score, never replace the pipeline.
package scoring

import (
	"context"
	"time"

	"github.com/motionlab/stride/internal/domain/fallrisk"
)

// Missing inputs are encoded with this sentinel in the feature vector.
const (
	MissingFeature      = -1.0
	defaultModelTimeout = 200 * time.Millisecond
)

// Scorer produces a fall-risk assessment from summary inputs.
type Scorer interface {
	Score(ctx context.Context, in fallrisk.Inputs) (fallrisk.Assessment, error)
}

// RuleScorer is the default implementation: a thin, infallible wrapper over
// the pure rule-based assessment.
type RuleScorer struct{}

// NewRuleScorer creates the rule-based scorer.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

// Score runs the rule-based assessment. It never fails.
func (s *RuleScorer) Score(_ context.Context, in fallrisk.Inputs) (fallrisk.Assessment, error) {
	return fallrisk.Assess(in), nil
}

// ModelClient is the external ML collaborator. It receives a fixed-order
// feature vector and returns a composite score in [0, 100], or fails.
type ModelClient interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// Option applies a configuration option to the AugmentedScorer.
type Option func(*AugmentedScorer)

// WithModelTimeout bounds each model call.
func WithModelTimeout(d time.Duration) Option {
	return func(s *AugmentedScorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// AugmentedScorer decorates a rule scorer with a model override. All state
// accumulation and factor computation stay in the wrapped scorer so both
// paths see identical underlying data; only the composite score and its
// bucket may be replaced. Any model failure falls back to the unmodified
// rule-based result.
type AugmentedScorer struct {
	rules   Scorer
	model   ModelClient
	timeout time.Duration
}

// NewAugmentedScorer wraps rules with a model override.
func NewAugmentedScorer(rules Scorer, model ModelClient, opts ...Option) *AugmentedScorer {
	s := &AugmentedScorer{
		rules:   rules,
		model:   model,
		timeout: defaultModelTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score delegates to the rule scorer, then offers the model a chance to
// override the composite. Missing model or model error returns the rule
// result unchanged.
func (s *AugmentedScorer) Score(ctx context.Context, in fallrisk.Inputs) (fallrisk.Assessment, error) {
	base, err := s.rules.Score(ctx, in)
	if err != nil {
		return base, err
	}
	if s.model == nil {
		return base, nil
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	predicted, err := s.model.Predict(mctx, FeatureVector(in))
	if err != nil || predicted < 0 || predicted > 100 {
		return base, nil
	}

	augmented := base
	augmented.CompositeScore = predicted
	augmented.RiskLevel = riskBucket(predicted)
	return augmented, nil
}

// FeatureVector builds the fixed-order numeric feature vector the model
// expects; absent inputs are encoded as -1.
func FeatureVector(in fallrisk.Inputs) []float64 {
	return []float64{
		feature(in.SwayVelocityMMS),
		feature(in.SwayAreaCm2),
		feature(in.GaitSpeedMS),
		feature(in.CadenceCVPct),
		feature(in.StepTimeAsymmetryPct),
		feature(in.AvgTurnDurationSec),
		feature(in.FatigueIndex),
	}
}

func feature(v *float64) float64 {
	if v == nil {
		return MissingFeature
	}
	return *v
}

func riskBucket(score float64) fallrisk.RiskLevel {
	switch {
	case score < 25:
		return fallrisk.RiskLow
	case score < 50:
		return fallrisk.RiskModerate
	case score < 75:
		return fallrisk.RiskHigh
	default:
		return fallrisk.RiskVeryHigh
	}
}
