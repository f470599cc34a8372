package app

import (
	"context"
	"math"
	"time"

	"github.com/motionlab/stride/internal/adapters/mq/queue"
	"github.com/motionlab/stride/internal/adapters/repository"
	"github.com/motionlab/stride/internal/domain/balance"
	"github.com/motionlab/stride/internal/domain/fallrisk"
	"github.com/motionlab/stride/internal/domain/fatigue"
	"github.com/motionlab/stride/internal/domain/gaitpattern"
	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/reba"
	"github.com/motionlab/stride/internal/domain/rom"
	"github.com/motionlab/stride/internal/domain/scoring"
	"github.com/motionlab/stride/internal/domain/smoothness"
	"github.com/motionlab/stride/internal/domain/stepdetect"
	"github.com/motionlab/stride/internal/domain/trunk"
	"github.com/motionlab/stride/internal/domain/types"
	"github.com/motionlab/stride/internal/domain/window"
	"github.com/motionlab/stride/pkg/logger"
	"github.com/motionlab/stride/pkg/metrics"
)

// Session-worker tuning constants.
const (
	snapshotIntervalSec = 0.5

	speedWindowSec      = 2.0
	minSpeedSpanSec     = 0.5
	cadenceRingSize     = 50
	minCadenceCVSamples = 5
	stepIntervalCap     = 64
	minAsymIntervals    = 4
	minWalkSteps        = 4

	minBalanceFrames = 15
	minROMFrames     = 30
	minFatiguePoints = 20

	postureLeanPenalty = 2.0 // score points per degree of lean
	degPerRad          = 180.0 / math.Pi
)

// session owns every analyzer for one capture session. A single worker
// goroutine drains the session queue, so no analyzer needs locking.
type session struct {
	id     string
	q      *queue.InMemoryQueue
	store  repository.Store
	scorer scoring.Scorer
	log    logger.Logger

	// onSnapshot fans a freshly stored snapshot out to live subscribers.
	// Called from the worker goroutine; must not block.
	onSnapshot func(types.Snapshot)

	balance *balance.Analyzer
	steps   *stepdetect.Detector
	smooth  *smoothness.Analyzer
	trunk   *trunk.Analyzer
	fatigue *fatigue.Analyzer
	rom     *rom.Analyzer

	// derived state, owned by the worker goroutine
	lastBalance  balance.Metrics
	romberg      *balance.RombergResult
	lastStep     *stepdetect.StepEvent
	lastReba     reba.Result
	rootTrack    *window.Store[model.Vec3]
	cadences     *window.Ring
	stepTimes    []float64
	extStepCount int
	extStepConf  float64
	frameCount   int
	imuCount     int
	lastClock    float64
	snapshotAt   float64
	haveSnapshot bool

	done chan struct{}
}

func newSession(
	id string,
	q *queue.InMemoryQueue,
	store repository.Store,
	scorer scoring.Scorer,
	log logger.Logger,
	imuRateHz, swayWindowSec, fundamentalHz float64,
	onSnapshot func(types.Snapshot),
) (*session, error) {
	det, err := stepdetect.NewDetector(imuRateHz)
	if err != nil {
		return nil, err
	}
	return &session{
		id:         id,
		q:          q,
		store:      store,
		scorer:     scorer,
		log:        log,
		onSnapshot: onSnapshot,
		balance:    balance.NewAnalyzer(balance.WithWindow(swayWindowSec)),
		steps:      det,
		smooth:     smoothness.NewAnalyzer(smoothness.WithFundamental(fundamentalHz)),
		trunk:      trunk.NewAnalyzer(),
		fatigue:    fatigue.NewAnalyzer(),
		rom:        rom.NewAnalyzer(),
		rootTrack:  window.NewStore[model.Vec3](speedWindowSec),
		cadences:   window.NewRing(cadenceRingSize),
		done:       make(chan struct{}),
	}, nil
}

// run drains the queue until it closes, then persists one final snapshot so
// the last samples before shutdown are never lost.
func (s *session) run(ctx context.Context) {
	defer close(s.done)
	for item := range s.q.Dequeue(ctx) {
		switch {
		case item.Frame != nil:
			s.processFrame(ctx, *item.Frame)
		case item.IMU != nil:
			s.processIMU(ctx, *item.IMU)
		case item.Control != nil:
			s.handleControl(ctx, *item.Control)
		case item.ExternalStep != nil:
			s.processExternalStep(ctx, *item.ExternalStep)
		}
	}
	s.rebuildSnapshot(ctx)
}

func (s *session) processFrame(ctx context.Context, frame model.JointFrame) {
	started := time.Now()
	s.frameCount++
	s.lastClock = frame.Timestamp
	metrics.RecordSampleIngested("frame")

	if root, ok := frame.Position(model.JointRoot); ok {
		s.lastBalance = s.balance.ProcessFrame(root, frame.Timestamp)
		s.rootTrack.Push(frame.Timestamp, root)
	}
	s.rom.RecordFrame(frame)
	s.lastReba = reba.Score(reba.FromFrame(frame))

	if score, lean, ok := postureFromFrame(frame); ok {
		s.fatigue.Record(fatigue.Point{
			Timestamp:    frame.Timestamp,
			PostureScore: score,
			TrunkLeanDeg: lean,
			LateralSway:  s.lastBalance.MLRangeMM,
			CadenceSPM:   s.steps.CurrentCadenceSPM(),
			SpeedMS:      s.gaitSpeed(),
		})
	}

	metrics.RecordAnalyzerLatency("frame", float64(time.Since(started).Microseconds())/1000)
	s.maybeSnapshot(ctx)
}

func (s *session) processIMU(ctx context.Context, sample model.IMUSample) {
	started := time.Now()
	s.imuCount++
	s.lastClock = sample.Timestamp
	metrics.RecordSampleIngested("imu")

	if ev, ok := s.steps.Process(sample.UserAccel.Y, sample.Timestamp); ok {
		step := ev
		s.lastStep = &step
		metrics.RecordStepDetected()
		if ev.InstantCadenceSPM > 0 {
			s.cadences.Push(ev.InstantCadenceSPM)
		}
		s.stepTimes = append(s.stepTimes, ev.Timestamp)
		if len(s.stepTimes) > stepIntervalCap {
			s.stepTimes = s.stepTimes[len(s.stepTimes)-stepIntervalCap:]
		}
	}
	s.smooth.Record(sample.UserAccel, sample.Timestamp)
	s.trunk.Record(sample)

	metrics.RecordAnalyzerLatency("imu", float64(time.Since(started).Microseconds())/1000)
	s.maybeSnapshot(ctx)
}

// processExternalStep scores a collaborator-reported step against the
// buffered acceleration trace. The running mean of confidences, not the
// individual values, is what the snapshot reports.
func (s *session) processExternalStep(ctx context.Context, timestamp float64) {
	conf := s.steps.ValidateExternalStep(timestamp)
	s.extStepConf += conf
	s.extStepCount++
	// Claims are rare and do not advance capture time, so the usual
	// snapshot throttle would swallow them; rebuild directly.
	s.rebuildSnapshot(ctx)
}

func (s *session) handleControl(ctx context.Context, ctl queue.Control) {
	var reply any
	switch ctl.Op {
	case queue.ControlStartEyesOpen:
		if !s.balance.IsStanding() {
			reply = ErrNotStanding
			break
		}
		s.balance.StartEyesOpen()
	case queue.ControlStartEyesClosed:
		s.balance.StartEyesClosed()
	case queue.ControlCompleteRomberg:
		res, ok := s.balance.CompleteRomberg()
		if !ok {
			reply = ErrRombergIncomplete
			break
		}
		s.romberg = &res
		reply = &res
	case queue.ControlReset:
		s.reset()
	}

	s.rebuildSnapshot(ctx)
	if ctl.Reply != nil {
		ctl.Reply <- reply
	}
}

// reset returns every analyzer to a fresh state while keeping the session
// identity and queue alive.
func (s *session) reset() {
	s.balance.Reset()
	s.steps.Reset()
	s.smooth.Reset()
	s.trunk.Reset()
	s.fatigue.Reset()
	s.rom.Reset()
	s.rootTrack.Reset()
	s.cadences.Reset()
	s.stepTimes = s.stepTimes[:0]
	s.extStepCount = 0
	s.extStepConf = 0
	s.lastBalance = balance.Metrics{}
	s.romberg = nil
	s.lastStep = nil
	s.lastReba = reba.Result{}
	s.frameCount = 0
	s.imuCount = 0
	s.haveSnapshot = false
}

// maybeSnapshot rebuilds at most every half second of capture time; the
// expensive spectral and trend analyses run here rather than per sample.
func (s *session) maybeSnapshot(ctx context.Context) {
	if s.haveSnapshot && s.lastClock-s.snapshotAt < snapshotIntervalSec {
		return
	}
	s.rebuildSnapshot(ctx)
}

func (s *session) rebuildSnapshot(ctx context.Context) {
	started := time.Now()

	snap := types.Snapshot{
		SessionID:  s.id,
		UpdatedAt:  s.lastClock,
		Balance:    s.lastBalance,
		Romberg:    s.romberg,
		StepCount:  s.steps.StepCount(),
		CadenceSPM: s.steps.CurrentCadenceSPM(),
		LastStep:   s.lastStep,
		Smoothness: s.smooth.Analyze(),
		Trunk:      s.trunk.Analyze(),
		Fatigue:    s.fatigue.Assess(),
		ROM:        s.rom.Summary(),
		Ergonomics: s.lastReba,
	}
	if s.extStepCount > 0 {
		snap.ExternalSteps = &types.ExternalStepCheck{
			Count:          s.extStepCount,
			MeanConfidence: s.extStepConf / float64(s.extStepCount),
		}
	}
	snap.Gait = gaitpattern.Classify(s.gaitInputs(snap))

	assessment, err := s.scorer.Score(ctx, s.riskInputs(snap))
	if err != nil {
		s.log.Warn(ctx, "fall-risk scoring failed", logger.String("session_id", s.id), logger.Error(err))
		assessment = fallrisk.Assess(s.riskInputs(snap))
	}
	snap.FallRisk = assessment

	if err := s.store.Put(ctx, snap); err != nil {
		s.log.Error(ctx, "snapshot store failed", logger.String("session_id", s.id), logger.Error(err))
		metrics.RecordErrorByComponent("repository", "put")
	}
	s.snapshotAt = s.lastClock
	s.haveSnapshot = true
	metrics.RecordAnalyzerLatency("snapshot", float64(time.Since(started).Microseconds())/1000)

	if s.onSnapshot != nil {
		s.onSnapshot(snap)
	}
}

// riskInputs assembles the optional fall-risk statistics, leaving fields nil
// until the producing analyzer has enough data to be trusted.
func (s *session) riskInputs(snap types.Snapshot) fallrisk.Inputs {
	var in fallrisk.Inputs

	if s.frameCount >= minBalanceFrames {
		in.SwayVelocityMMS = ptr(snap.Balance.SwayVelocityMMS)
		in.SwayAreaCm2 = ptr(snap.Balance.SwayAreaCm2)
	}
	if snap.StepCount >= minWalkSteps {
		if speed := s.gaitSpeed(); speed > 0 {
			in.GaitSpeedMS = ptr(speed)
		}
	}
	if cv, ok := s.cadenceCV(); ok {
		in.CadenceCVPct = ptr(cv)
	}
	if asym, ok := s.stepTimeAsymmetry(); ok {
		in.StepTimeAsymmetryPct = ptr(asym)
	}
	if snap.Trunk.TurnCount > 0 {
		in.AvgTurnDurationSec = ptr(snap.Trunk.AvgTurnDurationSec)
	}
	if s.fatigue.PointCount() >= minFatiguePoints {
		in.FatigueIndex = ptr(snap.Fatigue.FatigueIndex)
	}
	return in
}

// gaitInputs maps the snapshot onto the classifier's optional statistics.
// Step-length asymmetry and variability need per-step positional
// segmentation this pipeline does not perform, so those fields stay nil.
func (s *session) gaitInputs(snap types.Snapshot) gaitpattern.Inputs {
	var in gaitpattern.Inputs

	if asym, ok := s.stepTimeAsymmetry(); ok {
		in.StanceTimeAsymmetryPct = ptr(asym)
	}
	if snap.CadenceSPM > 0 {
		in.CadenceSPM = ptr(snap.CadenceSPM)
	}
	var speed float64
	if snap.StepCount >= minWalkSteps {
		if speed = s.gaitSpeed(); speed > 0 {
			in.GaitSpeedMS = ptr(speed)
		}
	}
	if speed > 0 && snap.CadenceSPM > 0 {
		in.StepLengthM = ptr(speed * 60 / snap.CadenceSPM)
	}
	if s.frameCount >= minBalanceFrames {
		in.SwayVelocityMMS = ptr(snap.Balance.SwayVelocityMMS)
	}
	if s.rom.FrameCount() >= minROMFrames {
		in.ArmSwingAsymmetryPct = ptr(snap.ROM.ArmSwingAsymmetryPct)
		in.ArmSwingRangeDeg = ptr((snap.ROM.ArmSwingLeftRangeDeg + snap.ROM.ArmSwingRightRangeDeg) / 2)
		in.PelvicObliquityDeg = ptr(snap.ROM.PelvicTiltRangeDeg / 2)
		in.HipFlexionRangeDeg = ptr(math.Max(snap.ROM.HipFlexionLeftRangeDeg, snap.ROM.HipFlexionRightRangeDeg))
		in.KneeFlexionRangeDeg = ptr(math.Max(snap.ROM.KneeFlexionLeftRangeDeg, snap.ROM.KneeFlexionRightRangeDeg))
	}
	return in
}

// gaitSpeed estimates walking speed from the planar root displacement across
// the trailing 2 s of frames. Returns 0 until 0.5 s of track is buffered.
func (s *session) gaitSpeed() float64 {
	samples := s.rootTrack.Samples()
	if len(samples) < 2 {
		return 0
	}
	first, last := samples[0], samples[len(samples)-1]
	span := last.Timestamp - first.Timestamp
	if span < minSpeedSpanSec {
		return 0
	}
	dx := last.Payload.X - first.Payload.X
	dz := last.Payload.Z - first.Payload.Z
	return math.Hypot(dx, dz) / span
}

// cadenceCV is the coefficient of variation over recent instant cadences.
func (s *session) cadenceCV() (float64, bool) {
	vals := s.cadences.Slice()
	if len(vals) < minCadenceCVSamples {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if mean <= 0 {
		return 0, false
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(len(vals)-1))
	return sd / mean * 100, true
}

// stepTimeAsymmetry compares the alternating step intervals: consecutive
// intervals belong to opposite limbs, so the odd/even mean difference
// approximates left/right timing asymmetry.
func (s *session) stepTimeAsymmetry() (float64, bool) {
	n := len(s.stepTimes)
	if n < minAsymIntervals+1 {
		return 0, false
	}
	var evenSum, oddSum float64
	var evenN, oddN int
	for i := 1; i < n; i++ {
		interval := s.stepTimes[i] - s.stepTimes[i-1]
		if i%2 == 0 {
			evenSum += interval
			evenN++
		} else {
			oddSum += interval
			oddN++
		}
	}
	if evenN == 0 || oddN == 0 {
		return 0, false
	}
	meanEven := evenSum / float64(evenN)
	meanOdd := oddSum / float64(oddN)
	if peak := math.Max(meanEven, meanOdd); peak > 0 {
		return math.Abs(meanEven-meanOdd) / peak * 100, true
	}
	return 0, false
}

// postureFromFrame scores upright posture 0-100 from the total spine tilt:
// 100 at vertical, minus 2 points per degree of lean.
func postureFromFrame(frame model.JointFrame) (score, leanDeg float64, ok bool) {
	base, found := frame.Position(model.JointSpineBase)
	if !found {
		return 0, 0, false
	}
	top, found := frame.Position(model.JointSpineShoulder)
	if !found {
		return 0, 0, false
	}
	spine := top.Sub(base)
	mag := spine.Magnitude()
	if mag < 1e-9 {
		return 0, 0, false
	}
	cos := spine.Y / mag
	cos = math.Max(-1, math.Min(1, cos))
	leanDeg = math.Acos(cos) * degPerRad
	score = math.Max(0, math.Min(100, 100-leanDeg*postureLeanPenalty))
	return score, leanDeg, true
}

func ptr(v float64) *float64 {
	return &v
}
