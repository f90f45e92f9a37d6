package event

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/calendar-backend/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// RespondError maps service errors onto HTTP statuses.
func RespondError(c *gin.Context, err error) {
	var verr *ValidationError
	var serr *StoreError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &serr):
		slog.Error("store failure", "op", serr.Op, "error", serr.Err, "path", c.FullPath())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable, retry later"})
	default:
		slog.Error("request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// ParseID reads the :id path parameter.
func ParseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return 0, false
	}
	return uint(id), true
}

// ===========================
// 📄 List Events - GET /events?start=&end=&category=&search=&status=&page=&limit=
// @Summary List events
// @Description Paginated list of the caller's events. start/end filter by overlap and only apply when both are valid.
// @Tags Events
// @Produce json
// @Param start query string false "Range start (RFC3339 or YYYY-MM-DD)"
// @Param end query string false "Range end (RFC3339 or YYYY-MM-DD)"
// @Param category query string false "Category"
// @Param search query string false "Substring of title or description"
// @Param status query string false "active (default), cancelled, completed or all"
// @Param page query int false "Page (default 1; malformed values fall back to the default)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} Page
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}
	f, err := q.Filter()
	if err != nil {
		RespondError(c, err)
		return
	}

	page, err := h.Service.ListEvents(c.Request.Context(), userID, f)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ===========================
// 🎯 Create Event - POST /events
// @Summary Create event
// @Tags Events
// @Accept json
// @Produce json
// @Param event body CreateEventRequest true "Event"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	ip := middleware.GetIPFromContext(c)
	e, err := h.Service.CreateEvent(c.Request.Context(), userID, &req, ip)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "event created successfully", "event": e})
}

// ===========================
// 🔍 Get Event - GET /events/:id
func (h *Handler) GetEvent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := ParseID(c)
	if !ok {
		return
	}

	e, err := h.Service.GetEvent(c.Request.Context(), userID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// ===========================
// 🛠 Update Event - PUT /events/:id
// @Summary Update event
// @Description Partial update. Omitted fields keep their stored value.
// @Tags Events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param event body UpdateEventRequest true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/events/{id} [put]
func (h *Handler) UpdateEvent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := ParseID(c)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	if req.IsEmpty() {
		RespondError(c, invalid("body", "at least one field to update is required"))
		return
	}

	ip := middleware.GetIPFromContext(c)
	e, err := h.Service.UpdateEvent(c.Request.Context(), userID, id, &req, ip)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event updated successfully", "event": e})
}

// ===========================
// ❌ Delete Event - DELETE /events/:id
func (h *Handler) DeleteEvent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := ParseID(c)
	if !ok {
		return
	}

	ip := middleware.GetIPFromContext(c)
	if err := h.Service.DeleteEvent(c.Request.Context(), userID, id, ip); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted successfully"})
}

// ===========================
// 📆 Upcoming Events - GET /events/upcoming?limit=
func (h *Handler) ListUpcoming(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	events, err := h.Service.ListUpcoming(c.Request.Context(), userID, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ===========================
// 🗓 Events In Range - GET /events/range?start=&end=
func (h *Handler) ListByDateRange(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	v := &ValidationError{}
	from, fromOK := ParseTime(c.Query("start"))
	if c.Query("start") != "" && !fromOK {
		v.Add("start", "start must be RFC3339 or YYYY-MM-DD")
	}
	to, toOK := ParseTime(c.Query("end"))
	if c.Query("end") != "" && !toOK {
		v.Add("end", "end must be RFC3339 or YYYY-MM-DD")
	}
	if err := v.Err(); err != nil {
		RespondError(c, err)
		return
	}

	events, err := h.Service.ListByDateRange(c.Request.Context(), userID, from, to)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ===========================
// 🏷 Events By Category - GET /events/category/:category
func (h *Handler) ListByCategory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	result, err := h.Service.ListByCategory(c.Request.Context(), userID, c.Param("category"), page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ===========================
// 📊 Event Stats - GET /events/stats
func (h *Handler) GetStats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	stats, err := h.Service.GetStats(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ===========================
// 📦 Bulk Update - PUT /events/bulk
// @Summary Bulk update events
// @Description Applies the same partial update to every listed event owned by the caller. Foreign ids are ignored.
// @Tags Events
// @Accept json
// @Produce json
// @Param body body BulkUpdateRequest true "Ids and fields"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/events/bulk [put]
func (h *Handler) BulkUpdate(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	ip := middleware.GetIPFromContext(c)
	modified, err := h.Service.BulkUpdate(c.Request.Context(), userID, req.EventIDs, &req.Updates, ip)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "events updated successfully", "modified_count": modified})
}
