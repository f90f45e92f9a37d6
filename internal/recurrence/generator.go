package recurrence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/eventbus"
	"github.com/sharath018/calendar-backend/internal/metrics"
)

const (
	DefaultHorizon        = 30 * 24 * time.Hour
	DefaultMaxPerTemplate = 1
)

// Generator materializes the next occurrences of every active recurring
// template that fall within the horizon.
type Generator struct {
	Repo           event.Repository
	Bus            eventbus.Publisher
	Horizon        time.Duration
	MaxPerTemplate int
	// StoreTimeout bounds each store call made by a run.
	StoreTimeout time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

type RunResult struct {
	Templates int `json:"templates"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

func NewGenerator(repo event.Repository, bus eventbus.Publisher, logger *slog.Logger) *Generator {
	return &Generator{
		Repo:           repo,
		Bus:            bus,
		Horizon:        DefaultHorizon,
		MaxPerTemplate: DefaultMaxPerTemplate,
		StoreTimeout:   event.DefaultStoreTimeout,
		Now:            time.Now,
		Logger:         logger,
	}
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *Generator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.StoreTimeout)
}

// Run processes every template once. Per-template failures are logged and
// counted; only a failure to list templates is returned.
func (g *Generator) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	horizon := g.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	limit := now.Add(horizon)

	listCtx, cancel := g.storeCtx(ctx)
	templates, err := g.Repo.ListTemplates(listCtx)
	cancel()
	if err != nil {
		return res, err
	}
	res.Templates = len(templates)

	for i := range templates {
		if ctx.Err() != nil {
			g.logger().Warn("recurrence run interrupted", "processed", i, "templates", len(templates))
			return res, nil
		}
		g.processTemplate(ctx, &templates[i], limit, &res)
	}
	return res, nil
}

func (g *Generator) processTemplate(ctx context.Context, tmpl *event.Event, limit time.Time, res *RunResult) {
	log := g.logger().With("template_id", tmpl.ID)
	perRun := g.MaxPerTemplate
	if perRun < 1 {
		perRun = DefaultMaxPerTemplate
	}

	for n := 0; n < perRun; n++ {
		prev := tmpl.Recurring.LastOccurrence
		next, err := Next(tmpl.Recurring.Pattern, tmpl.Recurring.Interval, Seed(tmpl))
		if err != nil {
			log.Error("cannot compute next occurrence", "error", err)
			res.Failed++
			return
		}
		if next.After(limit) {
			return
		}

		var occ *event.Event
		if IsException(tmpl, next) {
			log.Info("occurrence falls on an exception date, skipping", "start", next)
		} else {
			occ = Occurrence(tmpl, next)
		}

		storeCtx, cancel := g.storeCtx(ctx)
		err = g.Repo.AddOccurrence(storeCtx, tmpl.ID, prev, next, occ)
		cancel()
		switch {
		case errors.Is(err, event.ErrConflict):
			// Another run advanced this template first.
			log.Info("template already advanced elsewhere", "start", next)
			res.Conflicts++
			return
		case err != nil:
			log.Error("failed to store occurrence", "start", next, "error", err)
			res.Failed++
			return
		}

		advanced := next
		tmpl.Recurring.LastOccurrence = &advanced
		if occ == nil {
			res.Skipped++
			continue
		}
		res.Generated++
		metrics.OccurrencesGenerated.Inc()
		log.Info("occurrence generated", "event_id", occ.ID, "start", next)
		g.publish(ctx, tmpl, occ)
	}
}

func (g *Generator) publish(ctx context.Context, tmpl, occ *event.Event) {
	if g.Bus == nil {
		return
	}
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	msg := eventbus.NewMessage(eventbus.TypeOccurrenceCreated, tmpl.OwnerID, occ.ID, now, map[string]interface{}{
		"template_id": tmpl.ID,
		"start":       occ.Start,
		"end":         occ.End,
	})
	if err := g.Bus.Publish(ctx, msg); err != nil {
		g.logger().Warn("event bus publish failed", "type", msg.Type, "error", err)
	}
}
