// Package app wires the capture pipeline together: per-session queues and
// workers, the snapshot repository, ingest deduplication, and fall-risk
// scoring.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/stride/internal/adapters/mq/queue"
	"github.com/motionlab/stride/internal/adapters/repository"
	"github.com/motionlab/stride/internal/adapters/riskmodel"
	"github.com/motionlab/stride/internal/config"
	"github.com/motionlab/stride/internal/domain/dedupe"
	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/scoring"
	"github.com/motionlab/stride/internal/domain/types"
	"github.com/motionlab/stride/pkg/logger"
	"github.com/motionlab/stride/pkg/metrics"
)

// SnapshotPublisher receives every stored snapshot, e.g. for MQTT fan-out.
// Implementations must not block the caller.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap types.Snapshot)
}

// Service is the application service coordinating capture sessions.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	store     repository.Store
	deduper   dedupe.Deduper
	scorer    scoring.Scorer
	publisher SnapshotPublisher

	mu       sync.RWMutex
	sessions map[string]*session

	subMu sync.RWMutex
	subs  map[string]map[chan types.Snapshot]struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	started   bool
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore overrides the snapshot repository.
func WithStore(s repository.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithDeduper overrides the ingest batch deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(svc *Service) { svc.deduper = d }
}

// WithScorer overrides the fall-risk scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(svc *Service) { svc.scorer = s }
}

// WithPublisher attaches an external snapshot publisher.
func WithPublisher(p SnapshotPublisher) Option {
	return func(svc *Service) { svc.publisher = p }
}

// WithLogger overrides the service logger.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// NewService creates the application service.
func NewService(cfg *config.Config, opts ...Option) *Service {
	svc := &Service{
		cfg:      cfg,
		sessions: make(map[string]*session),
		subs:     make(map[string]map[chan types.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start constructs any components not injected via options and makes the
// service ready to accept sessions.
func (svc *Service) Start(ctx context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.started {
		return nil
	}

	if svc.log == nil {
		svc.log = logger.Named("app")
	}
	if svc.store == nil {
		svc.store = repository.NewTreapStore(ctx)
	}
	if svc.deduper == nil {
		svc.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(svc.cfg.DedupeSize))
	}
	if svc.scorer == nil {
		svc.scorer = scoring.NewRuleScorer()
		if svc.cfg.ModelURL != "" {
			svc.scorer = scoring.NewAugmentedScorer(
				svc.scorer,
				riskmodel.NewClient(svc.cfg.ModelURL),
				scoring.WithModelTimeout(time.Duration(svc.cfg.ModelTimeoutMs)*time.Millisecond),
			)
			svc.log.Info(ctx, "fall-risk model enabled", logger.String("url", svc.cfg.ModelURL))
		}
	}

	svc.runCtx, svc.runCancel = context.WithCancel(context.Background())
	svc.started = true
	svc.log.Info(ctx, "service started")
	return nil
}

// Stop closes every session queue and waits for the workers to drain.
func (svc *Service) Stop(ctx context.Context) error {
	svc.mu.Lock()
	if !svc.started {
		svc.mu.Unlock()
		return nil
	}
	svc.started = false
	sessions := make([]*session, 0, len(svc.sessions))
	for _, s := range svc.sessions {
		sessions = append(sessions, s)
	}
	svc.sessions = make(map[string]*session)
	svc.mu.Unlock()

	for _, s := range sessions {
		_ = s.q.Close()
	}
	for _, s := range sessions {
		select {
		case <-s.done:
		case <-ctx.Done():
			svc.runCancel()
			return ctx.Err()
		}
	}
	svc.runCancel()
	metrics.UpdateActiveSessions(0)
	svc.log.Info(ctx, "service stopped")
	return nil
}

// CreateSession registers a new capture session and starts its worker.
func (svc *Service) CreateSession(ctx context.Context) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if !svc.started {
		return "", ErrNotStarted
	}

	id := uuid.NewString()
	q := queue.NewInMemoryQueue(queue.WithCapacity(svc.cfg.SampleQueueSize))
	s, err := newSession(
		id, q, svc.store, svc.scorer, svc.log.Named("session"),
		svc.cfg.IMUSampleRateHz, svc.cfg.SwayWindowSec, svc.cfg.HarmonicFundamentalHz,
		func(snap types.Snapshot) { svc.fanOut(snap) },
	)
	if err != nil {
		return "", err
	}
	svc.sessions[id] = s
	go s.run(svc.runCtx)

	metrics.UpdateActiveSessions(len(svc.sessions))
	svc.log.Info(ctx, "session created", logger.String("session_id", id))
	return id, nil
}

// EndSession stops a session's worker, waits for its queue to drain, and
// returns the final snapshot. The snapshot is removed from the ranked store;
// a finished session no longer competes in the risk listing.
func (svc *Service) EndSession(ctx context.Context, sessionID string) (types.Snapshot, error) {
	svc.mu.Lock()
	s, ok := svc.sessions[sessionID]
	if ok {
		delete(svc.sessions, sessionID)
	}
	active := len(svc.sessions)
	svc.mu.Unlock()
	if !ok {
		return types.Snapshot{}, ErrSessionNotFound
	}

	_ = s.q.Close()
	select {
	case <-s.done:
	case <-ctx.Done():
		return types.Snapshot{}, ctx.Err()
	}

	snap, err := svc.store.Get(ctx, sessionID)
	svc.store.Remove(ctx, sessionID)
	svc.closeSubscribers(sessionID)
	metrics.UpdateActiveSessions(active)
	svc.log.Info(ctx, "session ended", logger.String("session_id", sessionID))
	if err != nil {
		return types.Snapshot{}, err
	}
	return snap, nil
}

// EnqueueFrames ingests a batch of body-tracking frames. A non-empty batchID
// makes the call idempotent: a replayed batch returns ErrDuplicateBatch
// without reprocessing. A full queue unrecords the batch so the client can
// retry, and returns ErrBackpressure.
func (svc *Service) EnqueueFrames(ctx context.Context, sessionID, batchID string, frames []model.JointFrame) error {
	if len(frames) == 0 {
		return ErrEmptyBatch
	}
	s, err := svc.session(sessionID)
	if err != nil {
		return err
	}

	if batchID != "" && svc.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordBatchDuplicate()
		return ErrDuplicateBatch
	}
	for i := range frames {
		frame := frames[i]
		if !s.q.Enqueue(ctx, queue.Item{Frame: &frame}) {
			if batchID != "" {
				svc.deduper.Unrecord(ctx, batchID)
			}
			metrics.RecordSampleDropped("backpressure")
			return ErrBackpressure
		}
	}
	return nil
}

// EnqueueIMU ingests a batch of inertial samples with the same idempotency
// and backpressure contract as EnqueueFrames. externalSteps are optional
// collaborator-reported step timestamps; they are enqueued after the samples
// so validation sees the acceleration they claim to match.
func (svc *Service) EnqueueIMU(ctx context.Context, sessionID, batchID string, samples []model.IMUSample, externalSteps []float64) error {
	if len(samples) == 0 && len(externalSteps) == 0 {
		return ErrEmptyBatch
	}
	s, err := svc.session(sessionID)
	if err != nil {
		return err
	}

	if batchID != "" && svc.deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordBatchDuplicate()
		return ErrDuplicateBatch
	}
	for i := range samples {
		sample := samples[i]
		if !s.q.Enqueue(ctx, queue.Item{IMU: &sample}) {
			if batchID != "" {
				svc.deduper.Unrecord(ctx, batchID)
			}
			metrics.RecordSampleDropped("backpressure")
			return ErrBackpressure
		}
	}
	for i := range externalSteps {
		step := externalSteps[i]
		if !s.q.Enqueue(ctx, queue.Item{ExternalStep: &step}) {
			if batchID != "" {
				svc.deduper.Unrecord(ctx, batchID)
			}
			metrics.RecordSampleDropped("backpressure")
			return ErrBackpressure
		}
	}
	return nil
}

// Control runs a serialized session command and waits for the worker's
// reply. The command travels the sample queue, so it observes every sample
// enqueued before it.
func (svc *Service) Control(ctx context.Context, sessionID string, op queue.ControlOp) (any, error) {
	s, err := svc.session(sessionID)
	if err != nil {
		return nil, err
	}

	reply := make(chan any, 1)
	if !s.q.Enqueue(ctx, queue.Item{Control: &queue.Control{Op: op, Reply: reply}}) {
		return nil, ErrBackpressure
	}
	select {
	case res := <-reply:
		if err, ok := res.(error); ok {
			return nil, err
		}
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns the latest stored snapshot for a session.
func (svc *Service) Snapshot(ctx context.Context, sessionID string) (types.Snapshot, error) {
	snap, err := svc.store.Get(ctx, sessionID)
	if err != nil {
		return types.Snapshot{}, ErrSessionNotFound
	}
	return snap, nil
}

// TopN lists up to n sessions ranked by fall-risk composite.
func (svc *Service) TopN(ctx context.Context, n int) ([]types.SessionEntry, error) {
	if max := svc.cfg.MaxSessionListLimit; n > max {
		n = max
	}
	return svc.store.TopN(ctx, n)
}

// Rank returns a session's position in the fall-risk ranking.
func (svc *Service) Rank(ctx context.Context, sessionID string) (types.SessionEntry, error) {
	entry, err := svc.store.Rank(ctx, sessionID)
	if err != nil {
		return types.SessionEntry{}, ErrSessionNotFound
	}
	return entry, nil
}

// Subscribe registers a live snapshot feed for a session. The returned
// cancel function must be called to release the subscription; the channel
// closes when the session ends.
func (svc *Service) Subscribe(sessionID string) (<-chan types.Snapshot, func(), error) {
	if _, err := svc.session(sessionID); err != nil {
		return nil, nil, err
	}

	ch := make(chan types.Snapshot, 8)
	svc.subMu.Lock()
	if svc.subs[sessionID] == nil {
		svc.subs[sessionID] = make(map[chan types.Snapshot]struct{})
	}
	svc.subs[sessionID][ch] = struct{}{}
	svc.subMu.Unlock()

	cancel := func() {
		svc.subMu.Lock()
		if set, ok := svc.subs[sessionID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(svc.subs, sessionID)
			}
		}
		svc.subMu.Unlock()
	}
	return ch, cancel, nil
}

// fanOut delivers a snapshot to live subscribers and the external publisher.
// Slow subscribers lose intermediate snapshots rather than stalling the
// session worker.
func (svc *Service) fanOut(snap types.Snapshot) {
	svc.subMu.RLock()
	for ch := range svc.subs[snap.SessionID] {
		select {
		case ch <- snap:
		default:
		}
	}
	svc.subMu.RUnlock()

	if svc.publisher != nil {
		svc.publisher.Publish(svc.runCtx, snap)
	}
}

func (svc *Service) closeSubscribers(sessionID string) {
	svc.subMu.Lock()
	for ch := range svc.subs[sessionID] {
		close(ch)
	}
	delete(svc.subs, sessionID)
	svc.subMu.Unlock()
}

// session looks up a live session by id.
func (svc *Service) session(sessionID string) (*session, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if !svc.started {
		return nil, ErrNotStarted
	}
	s, ok := svc.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// GetStats reports service-level counters for the stats endpoint.
func (svc *Service) GetStats(ctx context.Context) map[string]any {
	svc.mu.RLock()
	active := len(svc.sessions)
	svc.mu.RUnlock()

	return map[string]any{
		"active_sessions": active,
		"stored_sessions": svc.store.Count(ctx),
		"dedupe_size":     svc.deduper.Size(),
	}
}
