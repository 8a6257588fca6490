package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/opensource-finance/tally/internal/domain"
)

// loadConfig starts from the tier defaults and applies TALLY_* overrides.
func loadConfig() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if os.Getenv("TALLY_TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	if v := os.Getenv("TALLY_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("TALLY_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("TALLY_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("TALLY_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("TALLY_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("TALLY_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("TALLY_POSTGRES_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}
	if v := os.Getenv("TALLY_MYSQL_DSN"); v != "" {
		cfg.Repository.MySQLDSN = v
	}
	if v, ok := os.LookupEnv("TALLY_SCAN_SCHEDULE"); ok {
		// An explicit empty value disables the scan.
		cfg.Scheduler.ReminderScanSchedule = v
	}
	if v := os.Getenv("TALLY_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("TALLY_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("TALLY_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("TALLY_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}
	if v := os.Getenv("TALLY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TALLY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TALLY_SALE_WORKER"); v != "" {
		cfg.Scheduler.SaleWorker = v == "true"
	}

	if err := intEnv("TALLY_PORT", &cfg.Server.Port); err != nil {
		return nil, err
	}
	if err := intEnv("TALLY_POSTGRES_PORT", &cfg.Repository.PostgresPort); err != nil {
		return nil, err
	}
	if v := os.Getenv("TALLY_MONTHLY_TARGET"); v != "" {
		target, err := strconv.ParseFloat(v, 64)
		if err != nil || target <= 0 {
			return nil, fmt.Errorf("invalid TALLY_MONTHLY_TARGET %q", v)
		}
		cfg.Policy.MonthlyTarget = target
	}

	return cfg, nil
}

func intEnv(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
