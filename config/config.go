package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// "postgres" (default) or "memory"
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTAccessSecret   string
	JWTAccessTTLHours int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string

	FCMCredentialsPath string
	FCMProjectID       string

	CORSOrigins     []string
	RateLimit       int64
	RateLimitPeriod time.Duration

	// Bound on every store call made on behalf of a request.
	StoreTimeout time.Duration

	RecurrenceCron           string
	RecurrenceHorizon        time.Duration
	RecurrenceMaxPerTemplate int
	ReminderCron             string
	ReminderWindow           time.Duration
	RetentionCron            string
	RetentionWindow          time.Duration
	TaskLockTTL              time.Duration
	TaskTimeout              time.Duration
	ShutdownTimeout          time.Duration
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file, using environment variables")
	}

	return &Config{
		Port:     getString("PORT", "8080"),
		LogLevel: getString("LOG_LEVEL", "info"),

		DBDriver:   strings.ToLower(getString("DB_DRIVER", "postgres")),
		DBHost:     getString("DB_HOST", "localhost"),
		DBPort:     getString("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getString("DB_NAME", "calendar"),
		DBSSLMode:  getString("DB_SSLMODE", "disable"),

		JWTAccessSecret:   os.Getenv("JWT_ACCESS_SECRET"),
		JWTAccessTTLHours: getInt("JWT_ACCESS_TTL_HOURS", 24),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		KafkaBrokers: getList("KAFKA_BROKERS"),
		KafkaTopic:   getString("KAFKA_TOPIC", "calendar.events"),

		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getString("SMTP_PORT", "587"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  getString("SMTP_FROM_NAME", "Calendar"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),

		FCMCredentialsPath: os.Getenv("FCM_CREDENTIALS_PATH"),
		FCMProjectID:       os.Getenv("FCM_PROJECT_ID"),

		CORSOrigins:     getListDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		RateLimit:       int64(getInt("RATE_LIMIT", 100)),
		RateLimitPeriod: getDuration("RATE_LIMIT_PERIOD", time.Minute),

		StoreTimeout: getDuration("STORE_TIMEOUT", 5*time.Second),

		RecurrenceCron:           getString("RECURRENCE_CRON", "0 1 * * 0"),
		RecurrenceHorizon:        getDuration("RECURRENCE_HORIZON", 30*24*time.Hour),
		RecurrenceMaxPerTemplate: getInt("RECURRENCE_MAX_PER_TEMPLATE", 1),
		ReminderCron:             getString("REMINDER_CRON", "@every 1m"),
		ReminderWindow:           getDuration("REMINDER_WINDOW", time.Minute),
		RetentionCron:            getString("RETENTION_CRON", "0 2 * * *"),
		RetentionWindow:          getDuration("RETENTION_WINDOW", 30*24*time.Hour),
		TaskLockTTL:              getDuration("TASK_LOCK_TTL", 10*time.Minute),
		TaskTimeout:              getDuration("TASK_TIMEOUT", 5*time.Minute),
		ShutdownTimeout:          getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// UseMemoryStore reports whether persistence is in process only.
func (c *Config) UseMemoryStore() bool {
	return c.DBDriver == "memory"
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

// getDuration accepts Go durations plus a whole-day form such as "30d".
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return d
}

func ParseDuration(raw string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func getList(key string) []string {
	return getListDefault(key, nil)
}

func getListDefault(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
