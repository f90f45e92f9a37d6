package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/middleware"
)

type Handler struct {
	Events *event.Service
	Now    func() time.Time
}

func NewHandler(events *event.Service) *Handler {
	return &Handler{Events: events, Now: time.Now}
}

// ===========================
// 📤 Export Events - GET /events/export?format=ics|xlsx|pdf
// @Summary Export events
// @Description Every event matching the list filters, unpaginated, as an iCalendar, Excel or PDF file.
// @Tags Events
// @Produce octet-stream
// @Param format query string false "ics (default), xlsx or pdf"
// @Param start query string false "Range start"
// @Param end query string false "Range end"
// @Param category query string false "Category"
// @Param search query string false "Substring of title or description"
// @Param status query string false "active (default), cancelled, completed or all"
// @Success 200 {file} file
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/events/export [get]
func (h *Handler) ExportEvents(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", FormatICS))
	if !supported(format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of " + strings.Join(Formats, ", ")})
		return
	}

	var q event.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}
	f, err := q.Filter()
	if err != nil {
		event.RespondError(c, err)
		return
	}

	events, err := h.Events.ExportEvents(c.Request.Context(), userID, f)
	if err != nil {
		event.RespondError(c, err)
		return
	}

	loc := time.UTC
	if u := middleware.CurrentUser(c); u != nil {
		loc = u.Preferences.Location()
	}
	file, err := Export(format, events, loc, h.Now())
	if err != nil {
		slog.Error("export failed", "user_id", userID, "format", format, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export events"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func supported(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}
