package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/opensource-finance/tally/internal/domain"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig failed: %v", err)
		}
		if cfg.Tier != domain.TierLocal || cfg.Repository.Driver != "sqlite" {
			t.Errorf("expected local sqlite defaults, got %s/%s", cfg.Tier, cfg.Repository.Driver)
		}
		if cfg.Policy.MonthlyTarget != 500000 {
			t.Errorf("expected default monthly target, got %v", cfg.Policy.MonthlyTarget)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("TALLY_TIER", "pro")
		t.Setenv("TALLY_DB_DRIVER", "mysql")
		t.Setenv("TALLY_MYSQL_DSN", "mysql://shop:secret@db:3306/tally")
		t.Setenv("TALLY_PORT", "9090")
		t.Setenv("TALLY_MONTHLY_TARGET", "750000")
		t.Setenv("TALLY_SCAN_SCHEDULE", "")
		t.Setenv("TALLY_NATS_URL", "nats://bus:4222")
		t.Setenv("TALLY_LOG_FORMAT", "text")

		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig failed: %v", err)
		}
		if cfg.Tier != domain.TierPro {
			t.Errorf("expected pro tier, got %s", cfg.Tier)
		}
		if cfg.Repository.Driver != "mysql" || cfg.Repository.MySQLDSN == "" {
			t.Errorf("expected mysql override, got %+v", cfg.Repository)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", cfg.Server.Port)
		}
		if cfg.Policy.MonthlyTarget != 750000 {
			t.Errorf("expected target 750000, got %v", cfg.Policy.MonthlyTarget)
		}
		if cfg.EventBus.NATSUrl != "nats://bus:4222" || cfg.EventBus.NATSQueueGroup == "" {
			t.Errorf("expected pro bus with override, got %+v", cfg.EventBus)
		}
		if cfg.Logging.Format != "text" {
			t.Errorf("expected text logs, got %q", cfg.Logging.Format)
		}
		if cfg.Scheduler.ReminderScanSchedule != "" {
			t.Errorf("expected scan disabled, got %q", cfg.Scheduler.ReminderScanSchedule)
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		for key, value := range map[string]string{
			"TALLY_PORT":           "eighty",
			"TALLY_MONTHLY_TARGET": "-5",
		} {
			t.Run(key, func(t *testing.T) {
				t.Setenv(key, value)
				if _, err := loadConfig(); err == nil {
					t.Errorf("expected error for %s=%s", key, value)
				}
			})
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Setenv("TALLY_DEBUG", "")
	ctx := context.Background()

	if l := newLogger(domain.LoggingConfig{Level: "warn"}); l.Enabled(ctx, slog.LevelInfo) {
		t.Error("warn logger should drop info records")
	}
	if l := newLogger(domain.LoggingConfig{Level: "bogus"}); !l.Enabled(ctx, slog.LevelInfo) {
		t.Error("unknown level should fall back to info")
	}

	t.Setenv("TALLY_DEBUG", "true")
	if l := newLogger(domain.LoggingConfig{Level: "error", Format: "text"}); !l.Enabled(ctx, slog.LevelDebug) {
		t.Error("TALLY_DEBUG should force debug level")
	}
}
