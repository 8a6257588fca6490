package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/opensource-finance/tally/internal/domain"
	_ "modernc.org/sqlite"
)

// dialect captures what differs between the supported SQL backends.
type dialect struct {
	// driverName is the database/sql driver to open.
	driverName string

	// dsn builds the connection string from the repository config.
	dsn func(cfg domain.RepositoryConfig) (string, error)

	// numbered placeholders ($1, $2) instead of ?.
	numbered bool

	// onConflict renders the upsert tail for a key column and the updated columns.
	onConflict func(key string, cols []string) string

	schemas []string
}

var dialects = map[string]dialect{
	"sqlite": {
		driverName: "sqlite",
		dsn:        sqliteDSN,
		onConflict: excludedUpsert,
		schemas:    AllSchemas(),
	},
	"postgres": {
		driverName: "postgres",
		dsn:        postgresDSN,
		numbered:   true,
		onConflict: excludedUpsert,
		schemas:    AllSchemas(),
	},
	"mysql": {
		driverName: "mysql",
		dsn: func(cfg domain.RepositoryConfig) (string, error) {
			mc, err := mysqlConfig(cfg.MySQLDSN)
			if err != nil {
				return "", err
			}
			return mc.FormatDSN(), nil
		},
		onConflict: func(_ string, cols []string) string {
			sets := make([]string, len(cols))
			for i, col := range cols {
				sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
			}
			return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		},
		schemas: mysqlSchemas(),
	},
}

func excludedUpsert(key string, cols []string) string {
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
	}
	return fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
}

// open connects and pings within a short deadline so a bad address fails fast.
func (d dialect) open(cfg domain.RepositoryConfig) (*sql.DB, error) {
	dsn, err := d.dsn(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.driverName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.driverName, err)
	}
	return db, nil
}

// sqliteDSN points modernc.org/sqlite at the file, creating its directory.
// WAL lets the API read while the scanner writes reminders.
func sqliteDSN(cfg domain.RepositoryConfig) (string, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./tally.db"
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"busy_timeout(5000)",
		"foreign_keys(ON)",
	}
	return "file:" + path + "?_pragma=" + strings.Join(pragmas, "&_pragma="), nil
}

// postgresDSN renders a postgres:// URL, which lib/pq accepts directly.
func postgresDSN(cfg domain.RepositoryConfig) (string, error) {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "tally"
	}
	sslmode := cfg.PostgresSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + dbname,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	if cfg.PostgresUser != "" {
		u.User = url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword)
	}
	return u.String(), nil
}
