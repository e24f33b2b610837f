package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Quraeshi99/NoorTime/internal/middleware"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

// OwnerSettings applies a settings change and triggers the invalidation
// hook. Prayer-rule changes are rejected with 409 while the subject
// follows a masjid.
func (h *Handlers) OwnerSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var next models.OwnerSettings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		RespondBadRequest(w, "invalid settings body")
		return
	}
	if next.OwnerID <= 0 {
		RespondBadRequest(w, "owner_id is required")
		return
	}

	subjectID := middleware.SubjectID(r)
	if err := h.settings.Update(ctx, subjectID, &next); err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"updated": next.OwnerID})
}
