package repository

import (
	"context"
	"math"
	"sync"

	"github.com/motionlab/stride/internal/domain/types"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: fall-risk composite DESC, then session id ASC (deterministic).
// "Less" means ranks earlier, so in-order traversal produces the session
// list from highest risk to lowest.

// scoreScale is the fixed-point scaling applied to the composite score so
// node comparisons avoid float equality issues. Composites live in [0, 100].
const scoreScale = 1_000_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	return scoreFP(math.Round(x * scoreScale))
}

// node is one size-augmented treap node.
type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks earlier than (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// scoreToPriority keeps higher-risk sessions near the root.
func scoreToPriority(score scoreFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(score) + offset
}

func insert(n *node, id string, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: scoreToPriority(score), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// rankOf counts the nodes ranking strictly earlier than (score, id).
func rankOf(n *node, id string, score scoreFP) int {
	rank := 0
	for n != nil {
		if less(score, id, n.score, n.id) {
			n = n.left
		} else if n.id == id && n.score == score {
			return rank + nsize(n.left)
		} else {
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return rank
}

func collectTopN(n *node, limit int, out *[]types.SessionEntry, snaps map[string]types.Snapshot) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out, snaps)
	if len(*out) < limit {
		if snap, ok := snaps[n.id]; ok {
			*out = append(*out, types.SessionEntry{
				Rank:      len(*out) + 1,
				SessionID: n.id,
				FallRisk:  snap.FallRisk.CompositeScore,
			})
		}
	}
	collectTopN(n.right, limit, out, snaps)
}

// TreapStore is the in-memory Store. Safe for concurrent use; writes come
// from many session workers but each session writes only its own key.
type TreapStore struct {
	mu    sync.RWMutex
	root  *node
	byID  map[string]types.Snapshot
	score map[string]scoreFP
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore(_ context.Context) *TreapStore {
	return &TreapStore{
		byID:  make(map[string]types.Snapshot),
		score: make(map[string]scoreFP),
	}
}

// Put replaces the stored snapshot for a session, re-keying its treap
// position by the new composite.
func (s *TreapStore) Put(_ context.Context, snap types.Snapshot) error {
	ns := toFixedPoint(snap.FallRisk.CompositeScore)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.score[snap.SessionID]; ok {
		s.root = deleteNode(s.root, snap.SessionID, old)
	}
	s.root = insert(s.root, snap.SessionID, ns)
	s.byID[snap.SessionID] = snap
	s.score[snap.SessionID] = ns
	return nil
}

// Get returns the latest snapshot for a session.
func (s *TreapStore) Get(_ context.Context, sessionID string) (types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byID[sessionID]
	if !ok {
		return types.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// Rank returns the session's 1-based rank by composite desc.
func (s *TreapStore) Rank(_ context.Context, sessionID string) (types.SessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.score[sessionID]
	if !ok {
		return types.SessionEntry{}, ErrNotFound
	}
	return types.SessionEntry{
		Rank:      rankOf(s.root, sessionID, score) + 1,
		SessionID: sessionID,
		FallRisk:  s.byID[sessionID].FallRisk.CompositeScore,
	}, nil
}

// TopN returns up to n sessions ordered by composite desc.
func (s *TreapStore) TopN(_ context.Context, n int) ([]types.SessionEntry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SessionEntry, 0, n)
	collectTopN(s.root, n, &out, s.byID)
	return out, nil
}

// Remove drops a session's snapshot.
func (s *TreapStore) Remove(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.score[sessionID]
	if !ok {
		return
	}
	s.root = deleteNode(s.root, sessionID, score)
	delete(s.byID, sessionID)
	delete(s.score, sessionID)
}

// Count returns the number of tracked sessions.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
