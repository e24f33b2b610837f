package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/middleware"
)

type guestFollowRequest struct {
	MasjidID int64 `json:"masjid_id"`
}

// GuestFollow points a device at a masjid. The upsert is idempotent: a
// repeat with the same pair changes nothing, a different masjid replaces
// the previous follow.
func (h *Handlers) GuestFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID := middleware.SubjectID(r)
	if deviceID == "" {
		RespondBadRequest(w, "X-Device-ID header is required")
		return
	}

	var req guestFollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MasjidID <= 0 {
		RespondBadRequest(w, "body must carry a positive masjid_id")
		return
	}

	collective, err := h.owners.IsCollective(ctx, req.MasjidID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if !collective {
		RespondError(w, r, errs.Newf(errs.Permanent, "owner %d is not a masjid", req.MasjidID))
		return
	}

	if err := h.owners.Follow(ctx, deviceID, req.MasjidID); err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"following": req.MasjidID})
}
