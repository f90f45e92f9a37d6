package notification

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

type deviceRequest struct {
	DeviceToken string `json:"device_token" binding:"required"`
	DeviceType  string `json:"device_type"` // android, ios, web
	DeviceName  string `json:"device_name"`
}

// POST /api/v1/notifications/devices
func (h *Handler) RegisterDevice(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.Service.RegisterDevice(c.Request.Context(), userID, req.DeviceToken, req.DeviceType, req.DeviceName)
	if errors.Is(err, ErrInvalidDevice) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("device registration failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device token registered successfully", "device": token})
}

// DELETE /api/v1/notifications/devices
func (h *Handler) RemoveDevice(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req struct {
		DeviceToken string `json:"device_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Service.RemoveDevice(c.Request.Context(), userID, req.DeviceToken)
	if errors.Is(err, ErrTokenNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device token not found"})
		return
	}
	if err != nil {
		slog.Error("device removal failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister device token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device token removed successfully"})
}

// GET /api/v1/notifications/logs?limit=
func (h *Handler) ListLogs(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLogLimit)))
	logs, err := h.Service.ListLogs(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// GET /api/v1/notifications/stream (SSE)
func (h *Handler) Stream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	if h.Service.Redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "in-app notifications are not enabled"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	sub := h.Service.Redis.Subscribe(ctx, InAppChannel(userID))
	defer sub.Close()

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	flusher.Flush()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = c.Writer.Write([]byte("event: reminder\n"))
			_, _ = c.Writer.Write([]byte("data: " + msg.Payload + "\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
