package event

import (
	"errors"
	"testing"
	"time"
)

func day(d int, h int) time.Time {
	return time.Date(2024, time.March, d, h, 0, 0, 0, time.UTC)
}

func TestDateRangeOverlaps(t *testing.T) {
	r := DateRange{From: day(10, 0), To: day(12, 0)}
	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", day(10, 9), day(10, 10), true},
		{"starts inside", day(11, 23), day(14, 0), true},
		{"ends inside", day(8, 0), day(10, 1), true},
		{"covers range", day(1, 0), day(20, 0), true},
		{"touches start", day(9, 0), day(10, 0), true},
		{"touches end", day(12, 0), day(13, 0), true},
		{"entirely before", day(8, 0), day(9, 23), false},
		{"entirely after", day(12, 1), day(13, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Overlaps(tt.start, tt.end); got != tt.want {
				t.Fatalf("Overlaps(%s, %s) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestListQueryFilter(t *testing.T) {
	t.Run("range needs both bounds", func(t *testing.T) {
		f, err := ListQuery{Start: "2024-03-10"}.Filter()
		if err != nil {
			t.Fatal(err)
		}
		if f.Range != nil {
			t.Fatalf("range set from a single bound: %+v", f.Range)
		}
	})

	t.Run("malformed bound disables range", func(t *testing.T) {
		f, err := ListQuery{Start: "2024-03-10", End: "next tuesday"}.Filter()
		if err != nil {
			t.Fatal(err)
		}
		if f.Range != nil {
			t.Fatal("range set from a malformed bound")
		}
	})

	t.Run("both bounds", func(t *testing.T) {
		f, err := ListQuery{Start: "2024-03-10", End: "2024-03-12T18:00:00Z"}.Filter()
		if err != nil {
			t.Fatal(err)
		}
		if f.Range == nil || !f.Range.From.Equal(day(10, 0)) || !f.Range.To.Equal(day(12, 18)) {
			t.Fatalf("unexpected range %+v", f.Range)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		f, err := ListQuery{}.Filter()
		if err != nil {
			t.Fatal(err)
		}
		if f.Status != StatusActive || f.Page != DefaultPage || f.Limit != DefaultPageSize {
			t.Fatalf("defaults not applied: %+v", f)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := ListQuery{Status: "archived"}.Filter()
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Fields[0].Field != "status" {
			t.Fatalf("expected status validation error, got %v", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := ListQuery{Category: "party"}.Filter()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestPageCoercion(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, 20},
		{-3, -1, 1, 20},
		{2, 50, 2, 50},
		{1, 101, 1, 100},
		{4, 100, 4, 100},
	}
	for _, tt := range tests {
		f := Filter{Page: tt.page, Limit: tt.limit}.normalized()
		if f.Page != tt.wantPage || f.Limit != tt.wantLimit {
			t.Errorf("normalized(%d, %d) = (%d, %d), want (%d, %d)",
				tt.page, tt.limit, f.Page, f.Limit, tt.wantPage, tt.wantLimit)
		}
	}
}

func TestNewPagination(t *testing.T) {
	for total := int64(0); total <= 45; total++ {
		for _, limit := range []int{1, 7, 20} {
			for page := 1; page <= 4; page++ {
				p := NewPagination(page, limit, total)
				wantPages := int((total + int64(limit) - 1) / int64(limit))
				if p.TotalPages != wantPages {
					t.Fatalf("total=%d limit=%d: TotalPages = %d, want %d", total, limit, p.TotalPages, wantPages)
				}
				if p.HasPrevPage != (page > 1) {
					t.Fatalf("page=%d: HasPrevPage = %v", page, p.HasPrevPage)
				}
				if p.HasNextPage != (int64(page*limit) < total) {
					t.Fatalf("total=%d limit=%d page=%d: HasNextPage = %v", total, limit, page, p.HasNextPage)
				}
			}
		}
	}
}

func TestStatsWindows(t *testing.T) {
	// Thursday.
	now := time.Date(2024, time.March, 14, 15, 30, 0, 0, time.UTC)
	week, month := statsWindows(now)
	if want := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC); !week.Equal(want) {
		t.Errorf("week start = %s, want %s", week, want)
	}
	if want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC); !month.Equal(want) {
		t.Errorf("month start = %s, want %s", month, want)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}
