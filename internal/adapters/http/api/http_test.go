package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tovren/raidledger/internal/adapters/http/api"
	"github.com/tovren/raidledger/internal/adapters/notify"
	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/app"
	"github.com/tovren/raidledger/internal/domain/types"
	"github.com/tovren/raidledger/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

// stubService implements api.Dependencies with canned responses.
type stubService struct {
	locked  bool
	lockErr error
	entries []repository.SnapshotEntry
	rewards []repository.ManualReward
}

func (s *stubService) Scoreboard(_ context.Context, eventID string) (*types.Report, error) {
	return &types.Report{EventID: eventID, Mode: types.ModeComputed, RaidTotal: 300}, nil
}

func (s *stubService) SnapshotStatus(context.Context, string) (types.SnapshotStatus, error) {
	return types.SnapshotStatus{Locked: s.locked}, nil
}

func (s *stubService) SnapshotEntries(context.Context, string) ([]repository.SnapshotEntry, error) {
	return s.entries, nil
}

func (s *stubService) LockSnapshot(_ context.Context, _ string, actor types.Actor, _ []repository.SnapshotEntry) error {
	if !actor.Manager {
		return app.ErrPermissionDenied
	}
	if s.lockErr != nil {
		return s.lockErr
	}
	s.locked = true
	return nil
}

func (s *stubService) UnlockSnapshot(_ context.Context, _ string, actor types.Actor) error {
	if !actor.Manager {
		return app.ErrPermissionDenied
	}
	if !s.locked {
		return repository.ErrNotLocked
	}
	s.locked = false
	return nil
}

func (s *stubService) UpsertEntry(_ context.Context, _ string, actor types.Actor, up app.EntryUpsert) (app.UpsertResult, error) {
	if !actor.Manager {
		return app.UpsertResult{}, app.ErrPermissionDenied
	}
	if up.Version == 99 {
		return app.UpsertResult{Entry: repository.SnapshotEntry{Version: 2}}, repository.ErrVersionConflict
	}
	entry := repository.SnapshotEntry{
		PanelKey:      up.PanelKey,
		CharacterName: up.CharacterName,
		PointsEdited:  up.PointsEdited,
		Version:       up.Version + 1,
	}
	return app.UpsertResult{Entry: entry}, nil
}

func (s *stubService) ListRewards(context.Context, string) ([]repository.ManualReward, error) {
	return s.rewards, nil
}

func (s *stubService) CreateReward(_ context.Context, actor types.Actor, r repository.ManualReward) (repository.ManualReward, error) {
	if !actor.Manager {
		return repository.ManualReward{}, app.ErrPermissionDenied
	}
	r.ID = "r-1"
	s.rewards = append(s.rewards, r)
	return r, nil
}

func (s *stubService) UpdateReward(_ context.Context, actor types.Actor, r repository.ManualReward) error {
	if !actor.Manager {
		return app.ErrPermissionDenied
	}
	if r.ID != "r-1" {
		return repository.ErrRewardNotFound
	}
	return nil
}

func (s *stubService) DeleteReward(_ context.Context, actor types.Actor, _, id string) error {
	if !actor.Manager {
		return app.ErrPermissionDenied
	}
	if id != "r-1" {
		return repository.ErrRewardNotFound
	}
	return nil
}

func (s *stubService) Stats() map[string]interface{} {
	return map[string]interface{}{"categories": 31}
}

func newTestServer(svc *stubService, broker *notify.Broker) *httptest.Server {
	mux := http.NewServeMux()
	server := api.NewServer(svc, broker, api.WithStreamHeartbeat(50*time.Millisecond))
	server.Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func doJSON(t *testing.T, method, url, body string, manager bool) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Name", "Meriel")
	if manager {
		req.Header.Set("X-Raid-Manager", "true")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestScoreboardEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		srv := newTestServer(&stubService{}, notify.NewBroker())
		defer srv.Close()

		Convey("When the scoreboard is fetched", func() {
			resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/events/ev-1/scoreboard", "", false)

			Convey("Then it returns the report", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["event_id"], ShouldEqual, "ev-1")
				So(body["mode"], ShouldEqual, "computed")
			})
		})
	})
}

func TestSnapshotEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		svc := &stubService{}
		srv := newTestServer(svc, notify.NewBroker())
		defer srv.Close()

		Convey("When a non-manager locks", func() {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/events/ev-1/snapshot/lock", "", false)

			Convey("Then the request is forbidden", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
				So(body["code"], ShouldEqual, "permission_denied")
			})
		})

		Convey("When a manager locks with an empty body", func() {
			resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/events/ev-1/snapshot/lock", "", true)

			Convey("Then the lock succeeds", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When locking an already locked event", func() {
			svc.lockErr = repository.ErrAlreadyLocked
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/events/ev-1/snapshot/lock", "", true)

			Convey("Then the conflict maps to 409", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "already_locked")
			})
		})

		Convey("When unlocking an unlocked event", func() {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/events/ev-1/snapshot/unlock", "", true)

			Convey("Then the conflict maps to 409", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "not_locked")
			})
		})

		Convey("When an entry edit is applied", func() {
			edit := `{"panel_key":"damage","character_name":"Vexia","version":1,"points_edited":95}`
			resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/events/ev-1/snapshot/entry", edit, true)

			Convey("Then the updated entry comes back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				entry := body["entry"].(map[string]any)
				So(entry["points"], ShouldEqual, 95)
				So(entry["version"], ShouldEqual, 2)
			})
		})

		Convey("When an entry edit loses a version race", func() {
			edit := `{"panel_key":"damage","character_name":"Vexia","version":99,"points_edited":95}`
			resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/events/ev-1/snapshot/entry", edit, true)

			Convey("Then 409 carries the current row to rebase against", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				entry := body["entry"].(map[string]any)
				So(entry["version"], ShouldEqual, 2)
			})
		})

		Convey("When the edit body is malformed", func() {
			resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/events/ev-1/snapshot/entry", "{nope", true)

			Convey("Then the request is rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "invalid_body")
			})
		})
	})
}

func TestRewardEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		svc := &stubService{}
		srv := newTestServer(svc, notify.NewBroker())
		defer srv.Close()

		Convey("When a manager creates a reward", func() {
			body := `{"character_name":"Vexia","amount":500,"is_gold":true,"description":"carried"}`
			resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/events/ev-1/rewards", body, true)

			Convey("Then it is created with the gold flag intact", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				So(decoded["id"], ShouldEqual, "r-1")
				So(decoded["is_gold"], ShouldEqual, true)
			})
		})

		Convey("When the reward amount is zero", func() {
			body := `{"character_name":"Vexia","amount":0}`
			resp, decoded := doJSON(t, http.MethodPost, srv.URL+"/api/events/ev-1/rewards", body, true)

			Convey("Then validation rejects it", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(decoded["code"], ShouldEqual, "invalid_reward")
			})
		})

		Convey("When updating an unknown reward", func() {
			body := `{"character_name":"Vexia","amount":10}`
			resp, decoded := doJSON(t, http.MethodPut, srv.URL+"/api/events/ev-1/rewards/nope", body, true)

			Convey("Then it maps to 404", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
				So(decoded["code"], ShouldEqual, "reward_not_found")
			})
		})
	})
}

func TestUpdatesStream(t *testing.T) {
	Convey("Given a subscribed SSE client", t, func() {
		broker := notify.NewBroker()
		srv := newTestServer(&stubService{}, broker)
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/ev-1/updates", nil)
		So(err, ShouldBeNil)
		resp, err := http.DefaultClient.Do(req)
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")

		Convey("When a change is published", func() {
			// Wait for the subscription to register before publishing.
			for range 50 {
				if broker.SubscriberCount() > 0 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			broker.Publish(context.Background(), notify.Event{
				Type:    notify.TypeSnapshotLocked,
				EventID: "ev-1",
			})

			Convey("Then the client receives the event frame", func() {
				buf := make([]byte, 4096)
				var received string
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					n, readErr := resp.Body.Read(buf)
					received += string(buf[:n])
					if strings.Contains(received, "event: snapshot_locked") {
						break
					}
					if readErr != nil {
						break
					}
				}
				So(received, ShouldContainSubstring, "event: snapshot_locked")
				So(received, ShouldContainSubstring, `"event_id":"ev-1"`)
			})
		})
	})
}

// streamClientsGauge scrapes the current stream-clients gauge value.
func streamClientsGauge(t *testing.T) float64 {
	t.Helper()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	m := regexp.MustCompile(`(?m)^raidledger_notify_stream_clients (\S+)$`).FindStringSubmatch(rec.Body.String())
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		t.Fatalf("parse gauge: %v", err)
	}
	return v
}

func TestStreamClientGauge(t *testing.T) {
	Convey("Given an idle updates endpoint", t, func() {
		broker := notify.NewBroker()
		srv := newTestServer(&stubService{}, broker)
		defer srv.Close()

		before := streamClientsGauge(t)

		Convey("When one SSE client connects", func() {
			ctx, cancel := context.WithCancel(context.Background())
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/ev-1/updates", nil)
			So(err, ShouldBeNil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			for range 50 {
				if broker.SubscriberCount() > 0 {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}

			Convey("Then the gauge counts the client exactly once", func() {
				So(streamClientsGauge(t)-before, ShouldEqual, 1)

				Convey("And disconnecting returns it to the baseline", func() {
					cancel()
					deadline := time.Now().Add(2 * time.Second)
					for time.Now().Before(deadline) {
						if streamClientsGauge(t) == before {
							break
						}
						time.Sleep(10 * time.Millisecond)
					}
					So(streamClientsGauge(t), ShouldEqual, before)
				})
			})

			Reset(cancel)
		})
	})
}
