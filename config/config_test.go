package config

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDuration(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("RETENTION_WINDOW", "7d")
	t.Setenv("REMINDER_WINDOW", "-5m")
	t.Setenv("RATE_LIMIT", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("TASK_TIMEOUT", "90s")

	cfg := Load()
	if !cfg.UseMemoryStore() {
		t.Errorf("DBDriver = %q, want memory", cfg.DBDriver)
	}
	if cfg.RetentionWindow != 7*24*time.Hour {
		t.Errorf("RetentionWindow = %s", cfg.RetentionWindow)
	}
	if cfg.ReminderWindow != time.Minute {
		t.Errorf("negative window not replaced by default: %s", cfg.ReminderWindow)
	}
	if cfg.RateLimit != 100 {
		t.Errorf("RateLimit = %d", cfg.RateLimit)
	}
	if cfg.TaskTimeout != 90*time.Second {
		t.Errorf("TaskTimeout = %s", cfg.TaskTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}
