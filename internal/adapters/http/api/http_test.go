package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/motionlab/stride/internal/adapters/http/api"
	"github.com/motionlab/stride/internal/adapters/mq/queue"
	"github.com/motionlab/stride/internal/app"
	"github.com/motionlab/stride/internal/domain/balance"
	"github.com/motionlab/stride/internal/domain/fallrisk"
	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/types"
	"github.com/motionlab/stride/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeService is a canned-response Service for handler tests.
type fakeService struct {
	createID  string
	createErr error

	endSnap types.Snapshot
	endErr  error

	framesErr error
	imuErr    error

	controlRes any
	controlErr error

	snap    types.Snapshot
	snapErr error
	top     []types.SessionEntry
	topErr  error
	rank    types.SessionEntry
	rankErr error

	lastSessionID string
	lastBatchID   string
	lastFrames    []model.JointFrame
	lastSamples   []model.IMUSample
	lastSteps     []float64
	lastOp        queue.ControlOp
	lastLimit     int
}

func (f *fakeService) CreateSession(context.Context) (string, error) {
	return f.createID, f.createErr
}

func (f *fakeService) EndSession(_ context.Context, sessionID string) (types.Snapshot, error) {
	f.lastSessionID = sessionID
	return f.endSnap, f.endErr
}

func (f *fakeService) EnqueueFrames(_ context.Context, sessionID, batchID string, frames []model.JointFrame) error {
	f.lastSessionID = sessionID
	f.lastBatchID = batchID
	f.lastFrames = frames
	return f.framesErr
}

func (f *fakeService) EnqueueIMU(_ context.Context, sessionID, batchID string, samples []model.IMUSample, externalSteps []float64) error {
	f.lastSessionID = sessionID
	f.lastBatchID = batchID
	f.lastSamples = samples
	f.lastSteps = externalSteps
	return f.imuErr
}

func (f *fakeService) Control(_ context.Context, sessionID string, op queue.ControlOp) (any, error) {
	f.lastSessionID = sessionID
	f.lastOp = op
	return f.controlRes, f.controlErr
}

func (f *fakeService) Snapshot(_ context.Context, sessionID string) (types.Snapshot, error) {
	f.lastSessionID = sessionID
	return f.snap, f.snapErr
}

func (f *fakeService) TopN(_ context.Context, n int) ([]types.SessionEntry, error) {
	f.lastLimit = n
	return f.top, f.topErr
}

func (f *fakeService) Rank(_ context.Context, sessionID string) (types.SessionEntry, error) {
	f.lastSessionID = sessionID
	return f.rank, f.rankErr
}

func (f *fakeService) Subscribe(string) (<-chan types.Snapshot, func(), error) {
	ch := make(chan types.Snapshot)
	close(ch)
	return ch, func() {}, nil
}

type fakeStats struct{}

func (fakeStats) GetStats(context.Context) map[string]any {
	return map[string]any{"active_sessions": 2}
}

func serve(svc *fakeService, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(svc, fakeStats{}, 100).Register(context.Background(), mux)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given the session routes", t, func() {
		Convey("When a session is created", func() {
			svc := &fakeService{createID: "sess-1"}
			rec := serve(svc, http.MethodPost, "/sessions", "")

			Convey("Then 201 returns the new id", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				var resp map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["session_id"], ShouldEqual, "sess-1")
			})
		})

		Convey("When a session is ended", func() {
			svc := &fakeService{endSnap: types.Snapshot{SessionID: "sess-1"}}
			rec := serve(svc, http.MethodDelete, "/sessions/sess-1", "")

			Convey("Then the final snapshot comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(svc.lastSessionID, ShouldEqual, "sess-1")
				var snap types.Snapshot
				So(json.Unmarshal(rec.Body.Bytes(), &snap), ShouldBeNil)
				So(snap.SessionID, ShouldEqual, "sess-1")
			})
		})

		Convey("When an unknown session is ended", func() {
			svc := &fakeService{endErr: app.ErrSessionNotFound}
			rec := serve(svc, http.MethodDelete, "/sessions/ghost", "")

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When session metrics are fetched", func() {
			svc := &fakeService{snap: types.Snapshot{
				SessionID: "sess-1",
				FallRisk:  fallrisk.Assessment{CompositeScore: 42, RiskLevel: fallrisk.RiskModerate},
			}}
			rec := serve(svc, http.MethodGet, "/sessions/sess-1/metrics", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"composite_score":42`)
		})

		Convey("When metrics for an unknown session are fetched", func() {
			svc := &fakeService{snapErr: app.ErrSessionNotFound}
			rec := serve(svc, http.MethodGet, "/sessions/ghost/metrics", "")

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a rank is fetched", func() {
			svc := &fakeService{rank: types.SessionEntry{Rank: 3, SessionID: "sess-1", FallRisk: 42}}
			rec := serve(svc, http.MethodGet, "/sessions/sess-1/rank", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"rank":3`)
		})
	})
}

func TestListRoute(t *testing.T) {
	Convey("Given the ranked session listing", t, func() {
		Convey("When no limit is given", func() {
			svc := &fakeService{top: []types.SessionEntry{{Rank: 1, SessionID: "a"}}}
			rec := serve(svc, http.MethodGet, "/sessions", "")

			Convey("Then the configured maximum is used", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(svc.lastLimit, ShouldEqual, 100)
			})
		})

		Convey("When an explicit limit is given", func() {
			svc := &fakeService{}
			rec := serve(svc, http.MethodGet, "/sessions?limit=5", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(svc.lastLimit, ShouldEqual, 5)
		})

		Convey("When the limit is malformed or out of range", func() {
			for _, q := range []string{"limit=abc", "limit=0", "limit=-2", "limit=101"} {
				rec := serve(&fakeService{}, http.MethodGet, "/sessions?"+q, "")
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			}
		})
	})
}

func TestIngestRoutes(t *testing.T) {
	Convey("Given the ingest routes", t, func() {
		body := `{"batch_id":"b1","frames":[{"timestamp":0.1,"joints":{}}]}`

		Convey("When a frame batch is accepted", func() {
			svc := &fakeService{}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/frames", body)

			Convey("Then 202 acknowledges it", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(svc.lastSessionID, ShouldEqual, "sess-1")
				So(svc.lastBatchID, ShouldEqual, "b1")
				So(len(svc.lastFrames), ShouldEqual, 1)
			})
		})

		Convey("When the batch is a replay", func() {
			svc := &fakeService{framesErr: app.ErrDuplicateBatch}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/frames", body)

			Convey("Then 200 marks it duplicate without reprocessing", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the session queue is full", func() {
			svc := &fakeService{framesErr: app.ErrBackpressure}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/frames", body)

			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the session does not exist", func() {
			svc := &fakeService{framesErr: app.ErrSessionNotFound}
			rec := serve(svc, http.MethodPost, "/sessions/ghost/frames", body)

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the batch is empty", func() {
			svc := &fakeService{framesErr: app.ErrEmptyBatch}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/frames", `{"batch_id":"b1","frames":[]}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not JSON", func() {
			rec := serve(&fakeService{}, http.MethodPost, "/sessions/sess-1/frames", "not json")

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an inertial batch is accepted", func() {
			svc := &fakeService{}
			imuBody := `{"batch_id":"b2","samples":[{"timestamp":0.01}]}`
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/imu", imuBody)

			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(svc.lastBatchID, ShouldEqual, "b2")
		})

		Convey("When an inertial batch carries collaborator step claims", func() {
			svc := &fakeService{}
			imuBody := `{"batch_id":"b3","samples":[{"timestamp":0.01}],"external_steps":[0.25,0.75]}`
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/imu", imuBody)

			Convey("Then the claims reach the service in order", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(svc.lastSteps, ShouldResemble, []float64{0.25, 0.75})
			})
		})
	})
}

func TestTimestampFormats(t *testing.T) {
	Convey("Given batches with mixed timestamp encodings", t, func() {
		Convey("When a frame timestamp is an RFC3339 string", func() {
			svc := &fakeService{}
			body := `{"batch_id":"b1","frames":[{"timestamp":"2026-08-25T10:00:00.5Z","joints":{}}]}`
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/frames", body)

			Convey("Then it is converted to epoch seconds", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(len(svc.lastFrames), ShouldEqual, 1)
				want := float64(time.Date(2026, 8, 25, 10, 0, 0, 500_000_000, time.UTC).UnixNano()) / 1e9
				So(svc.lastFrames[0].Timestamp, ShouldAlmostEqual, want, 1e-6)
			})
		})

		Convey("When an inertial timestamp is an RFC3339 string", func() {
			svc := &fakeService{}
			body := `{"batch_id":"b2","samples":[{"timestamp":"2026-08-25T10:00:01Z"}]}`
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/imu", body)

			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(len(svc.lastSamples), ShouldEqual, 1)
			want := float64(time.Date(2026, 8, 25, 10, 0, 1, 0, time.UTC).Unix())
			So(svc.lastSamples[0].Timestamp, ShouldAlmostEqual, want, 1e-6)
		})

		Convey("When numeric seconds are used", func() {
			svc := &fakeService{}
			body := `{"batch_id":"b3","frames":[{"timestamp":12.5,"joints":{}}]}`
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/frames", body)

			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(svc.lastFrames[0].Timestamp, ShouldAlmostEqual, 12.5)
		})

		Convey("When the timestamp string is not RFC3339", func() {
			rec := serve(&fakeService{}, http.MethodPost, "/sessions/sess-1/frames",
				`{"batch_id":"b4","frames":[{"timestamp":"yesterday","joints":{}}]}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestControlRoutes(t *testing.T) {
	Convey("Given the control routes", t, func() {
		Convey("When a Romberg phase starts", func() {
			svc := &fakeService{}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/romberg", `{"action":"start_eyes_open"}`)

			Convey("Then the serialized command carries the right op", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(svc.lastOp, ShouldEqual, queue.ControlStartEyesOpen)
			})
		})

		Convey("When the Romberg test completes", func() {
			svc := &fakeService{controlRes: &balance.RombergResult{VelocityRatio: 2.1}}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/romberg", `{"action":"complete"}`)

			Convey("Then the result rides on the response", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(svc.lastOp, ShouldEqual, queue.ControlCompleteRomberg)
				var resp struct {
					Romberg *balance.RombergResult `json:"romberg"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Romberg, ShouldNotBeNil)
				So(resp.Romberg.VelocityRatio, ShouldAlmostEqual, 2.1)
			})
		})

		Convey("When the action is unknown", func() {
			rec := serve(&fakeService{}, http.MethodPost, "/sessions/sess-1/romberg", `{"action":"handstand"}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the subject is not standing", func() {
			svc := &fakeService{controlErr: app.ErrNotStanding}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/romberg", `{"action":"start_eyes_open"}`)

			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When completion lacks both phases", func() {
			svc := &fakeService{controlErr: app.ErrRombergIncomplete}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/romberg", `{"action":"complete"}`)

			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When a session is reset", func() {
			svc := &fakeService{}
			rec := serve(svc, http.MethodPost, "/sessions/sess-1/reset", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(svc.lastOp, ShouldEqual, queue.ControlReset)
		})
	})
}

func TestInfraRoutes(t *testing.T) {
	Convey("Given the infrastructure routes", t, func() {
		Convey("When health is probed", func() {
			rec := serve(&fakeService{}, http.MethodGet, "/healthz", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the scrape endpoint is probed", func() {
			rec := serve(&fakeService{}, http.MethodGet, "/metrics", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When stats are fetched", func() {
			rec := serve(&fakeService{}, http.MethodGet, "/stats", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "active_sessions")
		})

		Convey("When the method does not match the route", func() {
			rec := serve(&fakeService{}, http.MethodPut, "/sessions", "")

			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
