package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/sharath018/calendar-backend/config"
	"github.com/sharath018/calendar-backend/database"
	"github.com/sharath018/calendar-backend/internal/auditlog"
	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/eventbus"
	"github.com/sharath018/calendar-backend/internal/export"
	"github.com/sharath018/calendar-backend/internal/notification"
	"github.com/sharath018/calendar-backend/internal/recurrence"
	"github.com/sharath018/calendar-backend/internal/reminder"
	"github.com/sharath018/calendar-backend/internal/retention"
	"github.com/sharath018/calendar-backend/internal/scheduler"
	"github.com/sharath018/calendar-backend/internal/user"
	"github.com/sharath018/calendar-backend/middleware"
	"github.com/sharath018/calendar-backend/routes"
	"github.com/sharath018/calendar-backend/utils"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// @title Calendar Events API
// @version 1.0
// @description Calendar event lifecycle and scheduling service.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "calendar-backend",
		Usage: "Calendar events API and background scheduler.",
		Commands: []*cli.Command{
			serveCommand(cfg, logger),
			migrateCommand(cfg),
			taskCommand(cfg, logger),
			usersCommand(cfg, logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.RFC1123Z,
	}))
}

// ===========================
// 🧩 Wiring

type application struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB

	events        event.Repository
	users         *user.Directory
	audit         auditlog.Service
	bus           eventbus.Publisher
	eventSvc      *event.Service
	notifications *notification.Service
	scheduler     *scheduler.Scheduler
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	a := &application{cfg: cfg, logger: logger}

	var (
		userRepo   user.Repository
		auditRepo  auditlog.Repository
		notifyRepo notification.Repository
	)
	if cfg.UseMemoryStore() {
		logger.Warn("using in-memory store, data is lost on exit")
		a.events = event.NewMemoryRepository()
		userRepo = user.NewMemoryRepository()
		auditRepo = auditlog.NewMemoryRepository()
		notifyRepo = notification.NewMemoryRepository()
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.events = event.NewRepository(db)
		userRepo = user.NewRepository(db)
		auditRepo = auditlog.NewRepository(db)
		notifyRepo = notification.NewRepository(db)
	}

	if err := utils.InitRedis(cfg); err != nil {
		a.close()
		return nil, err
	}

	a.bus = eventbus.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		a.bus = eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}

	a.users = user.NewDirectory(userRepo)
	a.audit = auditlog.NewService(auditRepo)

	a.eventSvc = event.NewService(a.events, a.audit, a.bus)
	a.eventSvc.Users = a.users
	a.eventSvc.Timeout = cfg.StoreTimeout
	a.eventSvc.Logger = logger

	a.notifications = notification.NewService(ctx, notifyRepo, cfg, utils.RedisClient, a.bus, logger)

	var locker scheduler.Locker
	if utils.RedisClient != nil {
		locker = scheduler.NewRedisLocker(utils.RedisClient)
	}
	a.scheduler = scheduler.New(locker, cfg.TaskLockTTL, logger)
	a.scheduler.RunTimeout = cfg.TaskTimeout
	if err := a.registerTasks(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *application) registerTasks() error {
	gen := recurrence.NewGenerator(a.events, a.bus, a.logger)
	gen.Horizon = a.cfg.RecurrenceHorizon
	gen.MaxPerTemplate = a.cfg.RecurrenceMaxPerTemplate
	gen.StoreTimeout = a.cfg.StoreTimeout

	reminders := reminder.NewScheduler(a.events, a.users, a.notifications, a.logger)
	reminders.Window = a.cfg.ReminderWindow
	reminders.StoreTimeout = a.cfg.StoreTimeout

	sweeper := retention.NewSweeper(a.events, a.bus, a.logger)
	sweeper.Window = a.cfg.RetentionWindow
	sweeper.StoreTimeout = a.cfg.StoreTimeout

	tasks := []scheduler.Task{
		{Name: "recurrence", Spec: a.cfg.RecurrenceCron, Run: func(ctx context.Context) error {
			_, err := gen.Run(ctx)
			return err
		}},
		{Name: "reminders", Spec: a.cfg.ReminderCron, Run: func(ctx context.Context) error {
			_, err := reminders.Run(ctx)
			return err
		}},
		{Name: "retention", Spec: a.cfg.RetentionCron, Run: func(ctx context.Context) error {
			_, err := sweeper.Run(ctx)
			return err
		}},
	}
	for _, t := range tasks {
		if err := a.scheduler.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (a *application) ready() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (a *application) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("event bus close failed", "error", err)
		}
	}
	utils.CloseRedis()
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func (a *application) router() *gin.Engine {
	if a.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(a.logger))

	routes.Setup(r, a.cfg, routes.Handlers{
		Events:        event.NewHandler(a.eventSvc),
		Occurrences:   recurrence.NewHandler(a.eventSvc, a.cfg.RecurrenceHorizon),
		Export:        export.NewHandler(a.eventSvc),
		Notifications: notification.NewHandler(a.notifications),
		AuditLogs:     auditlog.NewHandler(a.audit),
		Users:         a.users,
		Redis:         utils.RedisClient,
		Ready:         a.ready,
	})
	return r
}

func (a *application) issueToken(u *user.User) (string, error) {
	if a.cfg.JWTAccessSecret == "" {
		return "", errors.New("JWT_ACCESS_SECRET is not set")
	}
	return user.IssueAccessToken(a.cfg.JWTAccessSecret, u, time.Duration(a.cfg.JWTAccessTTLHours)*time.Hour)
}

// ===========================
// 🚀 Commands

func serveCommand(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the periodic tasks.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "Run database migrations before serving."},
			&cli.BoolFlag{Name: "no-scheduler", Usage: "Serve HTTP only; do not run periodic tasks."},
			&cli.StringFlag{Name: "demo-user", Usage: "Create a user with this email at startup and log a token for it."},
		},
		Action: func(c *cli.Context) error {
			if cfg.JWTAccessSecret == "" {
				return errors.New("JWT_ACCESS_SECRET is not set")
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			if c.Bool("migrate") && a.db != nil {
				if err := database.Migrate(a.db); err != nil {
					return err
				}
			}
			if email := c.String("demo-user"); email != "" {
				if err := a.createDemoUser(ctx, email); err != nil {
					return err
				}
			}

			if !c.Bool("no-scheduler") {
				a.scheduler.Start()
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           a.router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown failed", "error", err)
			}
			if err := a.scheduler.Stop(shutdownCtx); err != nil {
				logger.Error("scheduler shutdown incomplete", "error", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}
}

func (a *application) createDemoUser(ctx context.Context, email string) error {
	u, err := a.users.Register(ctx, "Demo User", email, "")
	if errors.Is(err, user.ErrEmailTaken) {
		u, err = a.users.Repo.GetByEmail(ctx, email)
	}
	if err != nil {
		return fmt.Errorf("demo user: %w", err)
	}
	token, err := a.issueToken(u)
	if err != nil {
		return err
	}
	a.logger.Info("demo user ready", "user_id", u.ID, "email", u.Email, "token", token)
	return nil
}

func migrateCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema.",
		Action: func(c *cli.Context) error {
			if cfg.UseMemoryStore() {
				return errors.New("nothing to migrate with DB_DRIVER=memory")
			}
			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			return database.Migrate(db)
		},
	}
}

func taskCommand(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Inspect or run the periodic tasks by hand.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List task names and schedules.",
				Action: func(c *cli.Context) error {
					fmt.Printf("recurrence\t%s\n", cfg.RecurrenceCron)
					fmt.Printf("reminders\t%s\n", cfg.ReminderCron)
					fmt.Printf("retention\t%s\n", cfg.RetentionCron)
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "Run one task once, under the shared task lock.",
				ArgsUsage: "<recurrence|reminders|retention>",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return errors.New("task name required")
					}
					a, err := bootstrap(c.Context, cfg, logger)
					if err != nil {
						return err
					}
					defer a.close()
					return a.scheduler.RunNow(c.Context, name)
				},
			},
		},
	}
}

func usersCommand(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage accounts.",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user and print an access token for it.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "timezone", Usage: "IANA zone, default UTC"},
				},
				Action: func(c *cli.Context) error {
					a, err := bootstrap(c.Context, cfg, logger)
					if err != nil {
						return err
					}
					defer a.close()

					u, err := a.users.Register(c.Context, c.String("name"), c.String("email"), c.String("timezone"))
					if err != nil {
						return err
					}
					token, err := a.issueToken(u)
					if err != nil {
						return err
					}
					fmt.Printf("user_id=%d\ntoken=%s\n", u.ID, token)
					return nil
				},
			},
			{
				Name:      "token",
				Usage:     "Print a fresh access token for an existing user.",
				ArgsUsage: "<email>",
				Action: func(c *cli.Context) error {
					a, err := bootstrap(c.Context, cfg, logger)
					if err != nil {
						return err
					}
					defer a.close()

					u, err := a.users.Repo.GetByEmail(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					token, err := a.issueToken(u)
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
		},
	}
}
