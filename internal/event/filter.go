package event

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPage          = 1
	DefaultPageSize      = 20
	MaxPageSize          = 100
	DefaultUpcomingLimit = 10
)

// DateRange is a closed interval [From, To].
type DateRange struct {
	From time.Time
	To   time.Time
}

// Overlaps reports whether an event spanning [start, end] touches the range:
// start inside, end inside, or the event covering the whole range.
func (r DateRange) Overlaps(start, end time.Time) bool {
	within := func(t time.Time) bool { return !t.Before(r.From) && !t.After(r.To) }
	return within(start) || within(end) || (!start.After(r.From) && !end.Before(r.To))
}

type Filter struct {
	Range    *DateRange
	Category string
	Search   string
	// Status "" means active; StatusAll disables the predicate.
	Status string
	Page   int
	Limit  int
}

// ListQuery is the raw query string form of a Filter.
type ListQuery struct {
	Start    string `form:"start"`
	End      string `form:"end"`
	Category string `form:"category"`
	Search   string `form:"search"`
	Status   string `form:"status"`
	// Page and Limit stay strings so malformed values coerce to the
	// defaults instead of failing the bind.
	Page  string `form:"page"`
	Limit string `form:"limit"`
}

// Filter converts the query. A range is only set when both bounds are
// present and parse; anything else silently disables range filtering.
func (q ListQuery) Filter() (Filter, error) {
	f := Filter{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Status:   strings.TrimSpace(q.Status),
	}
	f.Page, _ = strconv.Atoi(strings.TrimSpace(q.Page))
	f.Limit, _ = strconv.Atoi(strings.TrimSpace(q.Limit))
	if from, ok := ParseTime(q.Start); ok {
		if to, ok := ParseTime(q.End); ok {
			f.Range = &DateRange{From: from, To: to}
		}
	}
	if err := f.check(); err != nil {
		return Filter{}, err
	}
	return f.normalized(), nil
}

// ParseTime accepts RFC 3339 timestamps and plain dates.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (f Filter) check() error {
	v := &ValidationError{}
	if f.Status != "" && f.Status != StatusAll && !contains(Statuses, f.Status) {
		v.Add("status", "status must be one of "+strings.Join(append(Statuses, StatusAll), ", "))
	}
	if f.Category != "" && !contains(Categories, f.Category) {
		v.Add("category", "category must be one of "+strings.Join(Categories, ", "))
	}
	return v.Err()
}

func (f Filter) normalized() Filter {
	if f.Status == "" {
		f.Status = StatusActive
	}
	f.Page, f.Limit = coercePage(f.Page, f.Limit)
	return f
}

func coercePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	return page, coerceLimit(limit, DefaultPageSize)
}

func coerceLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

// Offset of the first row of the current page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches evaluates the filter in memory, with the same semantics as the
// SQL built by the gorm repository.
func (f Filter) Matches(e *Event) bool {
	if f.Status != StatusAll && e.Status != f.Status {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Range != nil && !f.Range.Overlaps(e.Start, e.End) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Title), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) {
			return false
		}
	}
	return true
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalEvents int64 `json:"total_events"`
	PageSize    int   `json:"page_size"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalEvents: total,
		PageSize:    limit,
		HasNextPage: int64(page)*int64(limit) < total,
		HasPrevPage: page > 1,
	}
}

type Page struct {
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}

// ============================
// 📊 Dashboard stats
type Stats struct {
	Total      int64            `json:"total"`
	ThisWeek   int64            `json:"this_week"`
	ThisMonth  int64            `json:"this_month"`
	Upcoming   int64            `json:"upcoming"`
	ByCategory map[string]int64 `json:"by_category"`
}

// statsWindows returns the start of the current week (Sunday) and month.
func statsWindows(now time.Time) (weekStart, monthStart time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	weekStart = time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
	monthStart = time.Date(y, m, 1, 0, 0, 0, 0, loc)
	return weekStart, monthStart
}

// escapeLike escapes the LIKE metacharacters so search text is matched
// literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
