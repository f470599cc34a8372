// Package types contains common types shared across layers.
package types

import (
	"github.com/motionlab/stride/internal/domain/balance"
	"github.com/motionlab/stride/internal/domain/fallrisk"
	"github.com/motionlab/stride/internal/domain/fatigue"
	"github.com/motionlab/stride/internal/domain/gaitpattern"
	"github.com/motionlab/stride/internal/domain/reba"
	"github.com/motionlab/stride/internal/domain/rom"
	"github.com/motionlab/stride/internal/domain/smoothness"
	"github.com/motionlab/stride/internal/domain/stepdetect"
	"github.com/motionlab/stride/internal/domain/trunk"
)

// Snapshot is the immutable per-session metrics bundle handed to consumers:
// one struct per analyzer, recomputed by the session worker.
type Snapshot struct {
	SessionID string  `json:"session_id"`
	UpdatedAt float64 `json:"updated_at"` // capture-clock seconds

	Balance    balance.Metrics        `json:"balance"`
	Romberg    *balance.RombergResult `json:"romberg,omitempty"`
	StepCount  int                    `json:"step_count"`
	CadenceSPM float64                `json:"cadence_spm"`
	LastStep   *stepdetect.StepEvent  `json:"last_step,omitempty"`
	Smoothness smoothness.Metrics     `json:"smoothness"`
	Trunk      trunk.Metrics          `json:"trunk"`
	Fatigue    fatigue.Assessment     `json:"fatigue"`
	ROM        rom.SessionSummary     `json:"rom"`
	Ergonomics reba.Result            `json:"ergonomics"`
	Gait       gaitpattern.Result     `json:"gait"`
	FallRisk   fallrisk.Assessment    `json:"fall_risk"`

	ExternalSteps *ExternalStepCheck `json:"external_steps,omitempty"`
}

// ExternalStepCheck aggregates validation of collaborator-reported steps
// against the filtered acceleration trace.
type ExternalStepCheck struct {
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// SessionEntry is one row of the fall-risk ranked session listing.
type SessionEntry struct {
	Rank      int     `json:"rank"`
	SessionID string  `json:"session_id"`
	FallRisk  float64 `json:"fall_risk"`
}
