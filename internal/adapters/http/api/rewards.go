package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tovren/raidledger/internal/adapters/repository"
)

// RewardsHandler serves manual reward CRUD.
type RewardsHandler struct {
	deps Dependencies
}

// NewRewardsHandler creates a rewards handler.
func NewRewardsHandler(deps Dependencies) *RewardsHandler {
	return &RewardsHandler{deps: deps}
}

type rewardRequest struct {
	CharacterName string `json:"character_name"`
	DiscordUserID string `json:"discord_user_id"`
	Amount        int64  `json:"amount"`
	IsGold        bool   `json:"is_gold"`
	Description   string `json:"description"`
}

func (r rewardRequest) validate() error {
	switch {
	case strings.TrimSpace(r.CharacterName) == "":
		return errors.New("missing character_name")
	case r.Amount == 0:
		return errors.New("amount must be nonzero")
	}
	return nil
}

type rewardView struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	CharacterName string    `json:"character_name"`
	DiscordUserID string    `json:"discord_user_id,omitempty"`
	Amount        int64     `json:"amount"`
	IsGold        bool      `json:"is_gold"`
	Description   string    `json:"description,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func rewardViewOf(r repository.ManualReward) rewardView {
	return rewardView{
		ID:            r.ID,
		EventID:       r.EventID,
		CharacterName: r.CharacterName,
		DiscordUserID: r.DiscordUserID,
		Amount:        r.Amount,
		IsGold:        r.IsGold,
		Description:   r.Description,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
	}
}

// HandleList returns all manual rewards of an event.
func (h *RewardsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	rewards, err := h.deps.ListRewards(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]rewardView, 0, len(rewards))
	for _, rw := range rewards {
		views = append(views, rewardViewOf(rw))
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleCreate grants a new manual reward.
func (h *RewardsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	actor := actorFrom(r)

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_reward", err)
		return
	}

	created, err := h.deps.CreateReward(r.Context(), actor, repository.ManualReward{
		EventID:       eventID,
		CharacterName: req.CharacterName,
		DiscordUserID: req.DiscordUserID,
		Amount:        req.Amount,
		IsGold:        req.IsGold,
		Description:   req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rewardViewOf(created))
}

// HandleUpdate replaces an existing reward's fields.
func (h *RewardsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	rewardID := r.PathValue("rewardID")
	actor := actorFrom(r)

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_reward", err)
		return
	}

	err := h.deps.UpdateReward(r.Context(), actor, repository.ManualReward{
		ID:            rewardID,
		EventID:       eventID,
		CharacterName: req.CharacterName,
		DiscordUserID: req.DiscordUserID,
		Amount:        req.Amount,
		IsGold:        req.IsGold,
		Description:   req.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleDelete removes a reward.
func (h *RewardsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	rewardID := r.PathValue("rewardID")
	actor := actorFrom(r)

	if err := h.deps.DeleteReward(r.Context(), actor, eventID, rewardID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
