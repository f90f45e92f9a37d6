package recurrence

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/middleware"
)

type Handler struct {
	Events  *event.Service
	Horizon time.Duration
}

func NewHandler(events *event.Service, horizon time.Duration) *Handler {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Handler{Events: events, Horizon: horizon}
}

type occurrenceView struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ===========================
// 🔁 Preview Occurrences - GET /events/:id/occurrences?from=&to=
// @Summary Preview recurring occurrences
// @Description Instants a recurring event would produce within the window. Defaults to the next 30 days.
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/events/{id}/occurrences [get]
func (h *Handler) PreviewOccurrences(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := event.ParseID(c)
	if !ok {
		return
	}

	from := time.Now()
	if t, ok := event.ParseTime(c.Query("from")); ok {
		from = t
	}
	to := from.Add(h.Horizon)
	if t, ok := event.ParseTime(c.Query("to")); ok {
		to = t
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not be before from"})
		return
	}

	tmpl, err := h.Events.GetEvent(c.Request.Context(), userID, id)
	if err != nil {
		event.RespondError(c, err)
		return
	}
	if !tmpl.Recurring.IsRecurring {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event is not recurring"})
		return
	}

	instants, err := Preview(tmpl, from, to)
	if err != nil {
		event.RespondError(c, err)
		return
	}
	out := make([]occurrenceView, 0, len(instants))
	for _, t := range instants {
		out = append(out, occurrenceView{Start: t, End: t.Add(tmpl.Duration())})
	}
	c.JSON(http.StatusOK, gin.H{"event_id": tmpl.ID, "from": from, "to": to, "occurrences": out})
}
