package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/motionlab/stride/internal/domain/fallrisk"
	"github.com/motionlab/stride/internal/domain/types"
)

func snap(id string, composite float64) types.Snapshot {
	return types.Snapshot{
		SessionID: id,
		FallRisk:  fallrisk.Assessment{CompositeScore: composite},
	}
}

func ids(entries []types.SessionEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.SessionID)
	}
	return out
}

func TestTreapStoreOrdering(t *testing.T) {
	convey.Convey("Given a treap store with ranked sessions", t, func() {
		ctx := context.Background()
		s := NewTreapStore(ctx)
		convey.So(s.Put(ctx, snap("s-a", 30)), convey.ShouldBeNil)
		convey.So(s.Put(ctx, snap("s-b", 80)), convey.ShouldBeNil)
		convey.So(s.Put(ctx, snap("s-c", 55)), convey.ShouldBeNil)

		convey.Convey("When the full listing is requested", func() {
			top, err := s.TopN(ctx, 10)

			convey.Convey("Then sessions come back by composite descending with 1-based ranks", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids(top), convey.ShouldResemble, []string{"s-b", "s-c", "s-a"})
				convey.So(top[0].Rank, convey.ShouldEqual, 1)
				convey.So(top[2].Rank, convey.ShouldEqual, 3)
				convey.So(top[0].FallRisk, convey.ShouldEqual, 80)
			})
		})

		convey.Convey("When the limit truncates the listing", func() {
			top, err := s.TopN(ctx, 2)

			convey.So(err, convey.ShouldBeNil)
			convey.So(ids(top), convey.ShouldResemble, []string{"s-b", "s-c"})
		})

		convey.Convey("When two sessions share a composite", func() {
			convey.So(s.Put(ctx, snap("s-z", 55)), convey.ShouldBeNil)
			top, err := s.TopN(ctx, 10)

			convey.Convey("Then the session id breaks the tie ascending", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids(top), convey.ShouldResemble, []string{"s-b", "s-c", "s-z", "s-a"})
			})
		})

		convey.Convey("When a session's composite changes", func() {
			convey.So(s.Put(ctx, snap("s-a", 95)), convey.ShouldBeNil)

			convey.Convey("Then it is re-ranked, not duplicated", func() {
				top, err := s.TopN(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids(top), convey.ShouldResemble, []string{"s-a", "s-b", "s-c"})
				convey.So(s.Count(ctx), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When a single rank is queried", func() {
			entry, err := s.Rank(ctx, "s-c")

			convey.So(err, convey.ShouldBeNil)
			convey.So(entry.Rank, convey.ShouldEqual, 2)
			convey.So(entry.FallRisk, convey.ShouldEqual, 55)
		})

		convey.Convey("When an unknown session is queried", func() {
			_, getErr := s.Get(ctx, "nope")
			_, rankErr := s.Rank(ctx, "nope")

			convey.So(getErr, convey.ShouldEqual, ErrNotFound)
			convey.So(rankErr, convey.ShouldEqual, ErrNotFound)
		})

		convey.Convey("When the limit is not positive", func() {
			_, err := s.TopN(ctx, 0)

			convey.So(err, convey.ShouldEqual, ErrInvalidLimit)
		})
	})
}

func TestTreapStoreRemove(t *testing.T) {
	convey.Convey("Given a populated treap store", t, func() {
		ctx := context.Background()
		s := NewTreapStore(ctx)
		for i := 0; i < 5; i++ {
			convey.So(s.Put(ctx, snap(fmt.Sprintf("s-%d", i), float64(i*10))), convey.ShouldBeNil)
		}

		convey.Convey("When a session is removed", func() {
			s.Remove(ctx, "s-2")

			convey.Convey("Then it disappears from lookups and the listing closes ranks", func() {
				convey.So(s.Count(ctx), convey.ShouldEqual, 4)
				_, err := s.Get(ctx, "s-2")
				convey.So(err, convey.ShouldEqual, ErrNotFound)
				top, err := s.TopN(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids(top), convey.ShouldResemble, []string{"s-4", "s-3", "s-1", "s-0"})
				convey.So(top[2].Rank, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When an unknown session is removed", func() {
			s.Remove(ctx, "ghost")

			convey.So(s.Count(ctx), convey.ShouldEqual, 5)
		})
	})
}

func TestTreapStoreScale(t *testing.T) {
	convey.Convey("Given many sessions with adversarially close scores", t, func() {
		ctx := context.Background()
		s := NewTreapStore(ctx)
		const n = 500
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("s-%04d", i)
			convey.So(s.Put(ctx, snap(id, float64(i)*0.1)), convey.ShouldBeNil)
		}

		convey.Convey("When the top slice is listed", func() {
			top, err := s.TopN(ctx, 3)

			convey.Convey("Then the highest fixed-point scores win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids(top), convey.ShouldResemble, []string{"s-0499", "s-0498", "s-0497"})
			})
		})

		convey.Convey("When the last-ranked session asks for its rank", func() {
			entry, err := s.Rank(ctx, "s-0000")

			convey.So(err, convey.ShouldBeNil)
			convey.So(entry.Rank, convey.ShouldEqual, n)
		})
	})
}
