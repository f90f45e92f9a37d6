package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/calendar-backend/internal/event"
)

func TestExportEventsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := event.NewService(event.NewMemoryRepository(), nil, nil)
	start := time.Date(2024, time.March, 18, 9, 0, 0, 0, time.UTC)
	if _, err := svc.CreateEvent(context.Background(), 1, &event.CreateEventRequest{
		Title: "Standup", Start: start, End: start.Add(15 * time.Minute),
	}, ""); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(svc)
	h.Now = func() time.Time { return now }
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", uint(1)); c.Next() })
	r.GET("/events/export", h.ExportEvents)

	tests := []struct {
		query string
		code  int
	}{
		{"", http.StatusOK},
		{"?format=pdf", http.StatusOK},
		{"?format=csv", http.StatusBadRequest},
		{"?status=archived", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/export"+tt.query, nil))
		if w.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.query, w.Code, tt.code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/export", nil))
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=events_20240314_120000.ics" {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "SUMMARY:Standup") {
		t.Errorf("body missing event:\n%s", w.Body)
	}
}
