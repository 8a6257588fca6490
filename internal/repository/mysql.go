package repository

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlConfig accepts a driver DSN or a mysql:// or mariadb:// URL and normalizes it so timestamps scan into time.Time in UTC and
// UPDATE reports matched rather than changed rows.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: mysql dsn is required", ErrInvalidInput)
	}

	var mc *mysql.Config
	if strings.HasPrefix(dsn, "mysql://") || strings.HasPrefix(dsn, "mariadb://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mysql url: %w", err)
		}
		dbName := strings.TrimPrefix(u.Path, "/")
		if u.User == nil || u.Host == "" || dbName == "" {
			return nil, fmt.Errorf("%w: mysql url needs user, host and database", ErrInvalidInput)
		}

		mc = mysql.NewConfig()
		mc.User = u.User.Username()
		mc.Passwd, _ = u.User.Password()
		mc.Net = "tcp"
		mc.Addr = u.Host
		mc.DBName = dbName
	} else {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
		mc = parsed
	}

	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	return mc, nil
}
