// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tovren/raidledger/internal/adapters/notify"
	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/app"
	"github.com/tovren/raidledger/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Scoreboard(ctx context.Context, eventID string) (*types.Report, error)

	SnapshotStatus(ctx context.Context, eventID string) (types.SnapshotStatus, error)
	SnapshotEntries(ctx context.Context, eventID string) ([]repository.SnapshotEntry, error)
	LockSnapshot(ctx context.Context, eventID string, actor types.Actor, entries []repository.SnapshotEntry) error
	UnlockSnapshot(ctx context.Context, eventID string, actor types.Actor) error
	UpsertEntry(ctx context.Context, eventID string, actor types.Actor, up app.EntryUpsert) (app.UpsertResult, error)

	ListRewards(ctx context.Context, eventID string) ([]repository.ManualReward, error)
	CreateReward(ctx context.Context, actor types.Actor, r repository.ManualReward) (repository.ManualReward, error)
	UpdateReward(ctx context.Context, actor types.Actor, r repository.ManualReward) error
	DeleteReward(ctx context.Context, actor types.Actor, eventID, id string) error

	Stats() map[string]interface{}
}

// Subscriber is the side of the notification broker the SSE handler uses.
type Subscriber interface {
	Subscribe(scope string) (<-chan notify.Event, func())
}

// Server wires HTTP routes for the business API.
type Server struct {
	scoreboardHandler *ScoreboardHandler
	snapshotHandler   *SnapshotHandler
	rewardsHandler    *RewardsHandler
	updatesHandler    *UpdatesHandler
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, broker Subscriber, opts ...Option) *Server {
	o := newOptions(opts...)
	return &Server{
		scoreboardHandler: NewScoreboardHandler(deps),
		snapshotHandler:   NewSnapshotHandler(deps),
		rewardsHandler:    NewRewardsHandler(deps),
		updatesHandler:    NewUpdatesHandler(broker, o.heartbeat),
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/events/{id}/scoreboard", MetricsMiddleware(s.scoreboardHandler.HandleGetScoreboard, "scoreboard"))

	mux.HandleFunc("GET /api/events/{id}/snapshot", MetricsMiddleware(s.snapshotHandler.HandleGetStatus, "snapshot_status"))
	mux.HandleFunc("GET /api/events/{id}/snapshot/entries", MetricsMiddleware(s.snapshotHandler.HandleGetEntries, "snapshot_entries"))
	mux.HandleFunc("POST /api/events/{id}/snapshot/lock", MetricsMiddleware(s.snapshotHandler.HandleLock, "snapshot_lock"))
	mux.HandleFunc("POST /api/events/{id}/snapshot/unlock", MetricsMiddleware(s.snapshotHandler.HandleUnlock, "snapshot_unlock"))
	mux.HandleFunc("PUT /api/events/{id}/snapshot/entry", MetricsMiddleware(s.snapshotHandler.HandlePutEntry, "snapshot_entry"))

	mux.HandleFunc("GET /api/events/{id}/rewards", MetricsMiddleware(s.rewardsHandler.HandleList, "rewards_list"))
	mux.HandleFunc("POST /api/events/{id}/rewards", MetricsMiddleware(s.rewardsHandler.HandleCreate, "rewards_create"))
	mux.HandleFunc("PUT /api/events/{id}/rewards/{rewardID}", MetricsMiddleware(s.rewardsHandler.HandleUpdate, "rewards_update"))
	mux.HandleFunc("DELETE /api/events/{id}/rewards/{rewardID}", MetricsMiddleware(s.rewardsHandler.HandleDelete, "rewards_delete"))

	// SSE stream; intentionally unwrapped so the duration histogram is not
	// skewed by long-lived connections.
	mux.HandleFunc("GET /api/events/{id}/updates", s.updatesHandler.HandleStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
