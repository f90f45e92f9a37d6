package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIsHappeningNow(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	e := &Event{Start: start, End: start.Add(30 * time.Minute)}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", start.Add(-time.Nanosecond), false},
		{"at start", start, true},
		{"midway", start.Add(15 * time.Minute), true},
		{"at end", e.End, true},
		{"after end", e.End.Add(time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.IsHappeningNow(tt.now); got != tt.want {
				t.Fatalf("IsHappeningNow(%s) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestIsHappeningNowZeroLength(t *testing.T) {
	at := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	e := &Event{Start: at, End: at}
	if !e.IsHappeningNow(at) {
		t.Error("zero-length event not happening at its own instant")
	}
	if e.IsHappeningNow(at.Add(time.Second)) {
		t.Error("zero-length event still happening after it ended")
	}
}

func TestMarshalJSONDuration(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(Event{ID: 7, Start: start, End: start.Add(90 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		ID         uint  `json:"id"`
		DurationMS int64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != 7 || out.DurationMS != 90*60*1000 {
		t.Fatalf("got %+v from %s", out, raw)
	}
}
