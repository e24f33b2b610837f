package handlers

import (
	"net/http"
	"strconv"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/middleware"
)

// ScheduleMonthly serves the materializer's object verbatim. The caller
// resolves to an owner: an explicit owner_id, or the collective owner the
// subject follows.
func (h *Handlers) ScheduleMonthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	now := h.clock.Now()
	year, month := now.Year(), int(now.Month())
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			RespondBadRequest(w, "invalid year")
			return
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			RespondBadRequest(w, "invalid month")
			return
		}
		month = m
	}

	ownerID, err := h.resolveOwner(r, q.Get("owner_id"))
	if err != nil {
		RespondError(w, r, err)
		return
	}

	sched, err := h.schedules.GetMonthly(ctx, ownerID, year, month)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, sched)
}

// resolveOwner maps the request onto the owner whose data it reads.
func (h *Handlers) resolveOwner(r *http.Request, ownerParam string) (int64, error) {
	if ownerParam != "" {
		id, err := strconv.ParseInt(ownerParam, 10, 64)
		if err != nil || id <= 0 {
			return 0, errs.Newf(errs.Permanent, "invalid owner_id %q", ownerParam)
		}
		return id, nil
	}

	subjectID := middleware.SubjectID(r)
	if subjectID == "" {
		return 0, errs.New(errs.NotFound, "no subject identity and no owner_id")
	}
	return h.owners.FollowedOwner(r.Context(), subjectID)
}
