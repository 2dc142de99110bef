package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/app"
)

// SnapshotHandler serves snapshot lock state and mutations.
type SnapshotHandler struct {
	deps Dependencies
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(deps Dependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// HandleGetStatus returns the event's lock state.
func (h *SnapshotHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	status, err := h.deps.SnapshotStatus(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type entryView struct {
	PanelKey       string  `json:"panel_key"`
	CharacterName  string  `json:"character_name"`
	AuxKey         string  `json:"aux_key,omitempty"`
	Points         int     `json:"points"`
	Details        string  `json:"details,omitempty"`
	Rank           int     `json:"rank"`
	DiscordUserID  string  `json:"discord_user_id,omitempty"`
	CharacterClass string  `json:"character_class,omitempty"`
	Primary        float64 `json:"primary,omitempty"`
	Edited         bool    `json:"edited,omitempty"`
	Version        int64   `json:"version"`
}

func viewOf(e repository.SnapshotEntry) entryView {
	return entryView{
		PanelKey:       e.PanelKey,
		CharacterName:  e.CharacterName,
		AuxKey:         e.AuxKey,
		Points:         e.EffectivePoints(),
		Details:        e.EffectiveDetails(),
		Rank:           e.RankingNumber,
		DiscordUserID:  e.DiscordUserID,
		CharacterClass: e.CharacterClass,
		Primary:        e.PrimaryNumeric,
		Edited:         e.Edited(),
		Version:        e.Version,
	}
}

// HandleGetEntries returns all frozen rows of a locked event.
func (h *SnapshotHandler) HandleGetEntries(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	entries, err := h.deps.SnapshotEntries(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e))
	}
	writeJSON(w, http.StatusOK, views)
}

type lockRequest struct {
	Entries []lockEntry `json:"entries"`
}

type lockEntry struct {
	PanelKey       string  `json:"panel_key"`
	CharacterName  string  `json:"character_name"`
	AuxKey         string  `json:"aux_key"`
	Points         int     `json:"points"`
	Details        string  `json:"details"`
	Rank           int     `json:"rank"`
	DiscordUserID  string  `json:"discord_user_id"`
	CharacterClass string  `json:"character_class"`
	Primary        float64 `json:"primary"`
}

// HandleLock freezes the event's displayed rows. With an empty body or
// empty entries list the capture is rebuilt server side from the live
// computation.
func (h *SnapshotHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	actor := actorFrom(r)

	var req lockRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
			return
		}
	}

	entries := make([]repository.SnapshotEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, repository.SnapshotEntry{
			EventID:         eventID,
			PanelKey:        e.PanelKey,
			CharacterName:   e.CharacterName,
			AuxKey:          e.AuxKey,
			PointsOriginal:  e.Points,
			DetailsOriginal: e.Details,
			RankingNumber:   e.Rank,
			DiscordUserID:   e.DiscordUserID,
			CharacterClass:  e.CharacterClass,
			PrimaryNumeric:  e.Primary,
		})
	}

	if err := h.deps.LockSnapshot(r.Context(), eventID, actor, entries); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

// HandleUnlock reverts the event to computed mode, discarding all edits.
func (h *SnapshotHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	actor := actorFrom(r)

	if err := h.deps.UnlockSnapshot(r.Context(), eventID, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

type entryEditRequest struct {
	PanelKey      string  `json:"panel_key"`
	CharacterName string  `json:"character_name"`
	AuxKey        string  `json:"aux_key"`
	Version       int64   `json:"version"`
	PointsEdited  *int    `json:"points_edited"`
	DetailsEdited *string `json:"details_edited"`

	// Current display values, used to synthesize the row if the snapshot
	// drifted and no longer contains it.
	CurrentPoints  int     `json:"current_points"`
	CurrentDetails string  `json:"current_details"`
	CurrentRank    int     `json:"current_rank"`
	CurrentPrimary float64 `json:"current_primary"`
	DiscordUserID  string  `json:"discord_user_id"`
	CharacterClass string  `json:"character_class"`
}

type entryEditResponse struct {
	Entry   entryView `json:"entry"`
	Rebuilt bool      `json:"rebuilt,omitempty"`
}

// HandlePutEntry applies one edit to a frozen row.
func (h *SnapshotHandler) HandlePutEntry(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	actor := actorFrom(r)

	var req entryEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}

	res, err := h.deps.UpsertEntry(r.Context(), eventID, actor, app.EntryUpsert{
		PanelKey:       req.PanelKey,
		CharacterName:  req.CharacterName,
		AuxKey:         req.AuxKey,
		Version:        req.Version,
		PointsEdited:   req.PointsEdited,
		DetailsEdited:  req.DetailsEdited,
		CurrentPoints:  req.CurrentPoints,
		CurrentDetails: req.CurrentDetails,
		CurrentRank:    req.CurrentRank,
		CurrentPrimary: req.CurrentPrimary,
		DiscordUserID:  req.DiscordUserID,
		CharacterClass: req.CharacterClass,
	})
	if err != nil {
		if errors.Is(err, app.ErrSnapshotRebuilt) {
			writeJSON(w, http.StatusConflict, entryEditResponse{Rebuilt: true})
			return
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			// Return the current row so the client can rebase the edit.
			writeJSON(w, http.StatusConflict, entryEditResponse{Entry: viewOf(res.Entry)})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entryEditResponse{Entry: viewOf(res.Entry), Rebuilt: res.Rebuilt})
}
