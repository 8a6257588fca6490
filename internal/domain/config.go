package domain

import "time"

// Config is everything cmd/tally needs to assemble a running service.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Tier       DeploymentTier   `json:"tier"`
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Policy     PolicyConfig     `json:"policy"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Logging    LoggingConfig    `json:"logging"`
}

// DeploymentTier selects a family of backends. Local runs on one device with SQLite,
// an in-process cache and channels; pro shares PostgreSQL, Redis and NATS
// between several instances.
type DeploymentTier string

const (
	TierLocal DeploymentTier = "local"
	TierPro   DeploymentTier = "pro"
)

// PolicyConfig holds the shop-level thresholds the heuristics apply.
type PolicyConfig struct {
	// A sale by the same client within DuplicateWindow of another is a possible duplicate.
	DuplicateWindow time.Duration `json:"duplicateWindow"`

	// Unpaid credit older than OverdueReminderAfter gets a reminder;
	// older than DelinquentAfter it counts against the client's score.
	OverdueReminderAfter time.Duration `json:"overdueReminderAfter"`
	DelinquentAfter      time.Duration `json:"delinquentAfter"`

	// Clients with fewer than NewClientSales sales are new; credit above
	// NewClientCreditLimit to them is flagged.
	NewClientCreditLimit float64 `json:"newClientCreditLimit"`
	NewClientSales       int     `json:"newClientSales"`

	// Amounts in CFA.
	MonthlyTarget  float64 `json:"monthlyTarget"`
	BigClientSpend float64 `json:"bigClientSpend"`
}

// DefaultPolicy returns the thresholds shops start with.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		DuplicateWindow:      time.Minute,
		OverdueReminderAfter: 7 * 24 * time.Hour,
		DelinquentAfter:      30 * 24 * time.Hour,
		NewClientCreditLimit: 20_000,
		NewClientSales:       3,
		MonthlyTarget:        500_000,
		BigClientSpend:       100_000,
	}
}

// SchedulerConfig controls the background jobs.
type SchedulerConfig struct {
	// ReminderScanSchedule is a cron expression such as "@every 1h"; empty disables the scan.
	ReminderScanSchedule string        `json:"reminderScanSchedule"`
	ScanLeaseTTL         time.Duration `json:"scanLeaseTTL"`

	// SaleWorker checks every sale published on TopicSaleRecorded.
	SaleWorker bool `json:"saleWorker"`
}

type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn or error
	Format string `json:"format"` // json or text
}

// DefaultConfig is the local tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, ReadTimeout: 30, WriteTimeout: 30},
		Tier:   TierLocal,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./tally.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Policy: DefaultPolicy(),
		Scheduler: SchedulerConfig{
			ReminderScanSchedule: "@every 1h",
			ScanLeaseTTL:         10 * time.Minute,
			SaleWorker:           true,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// ProConfig is the shared tier, pointed at services on localhost.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "tally",
		MaxOpenConns: 20,
	}
	cfg.Cache.Type = "redis"
	cfg.Cache.RedisAddr = "localhost:6379"
	cfg.Cache.EnableTwoPhase = true
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "tally-workers",
	}
	return cfg
}
