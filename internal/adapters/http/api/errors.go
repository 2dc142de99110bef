package api

import (
	"errors"
	"net/http"

	"github.com/tovren/raidledger/internal/adapters/gateway"
	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/app"
)

// writeServiceError translates service layer sentinel errors to HTTP
// responses. Unknown errors become 500 with a generic message so internal
// detail does not leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err)
	case errors.Is(err, app.ErrInvalidEdit):
		writeError(w, http.StatusBadRequest, "invalid_edit", err)
	case errors.Is(err, app.ErrSnapshotRebuilt):
		writeError(w, http.StatusConflict, "snapshot_rebuilt", err)
	case errors.Is(err, repository.ErrAlreadyLocked):
		writeError(w, http.StatusConflict, "already_locked", err)
	case errors.Is(err, repository.ErrNotLocked):
		writeError(w, http.StatusConflict, "not_locked", err)
	case errors.Is(err, repository.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err)
	case errors.Is(err, repository.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", err)
	case errors.Is(err, repository.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, "reward_not_found", err)
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", nil)
	}
}
