package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported relational drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const sqliteMemoryDSN = "file::memory:?cache=shared"

// normaliseDriver maps accepted aliases onto the supported driver names.
func normaliseDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "sqlite3":
		return DriverSQLite
	case "postgresql", "pg":
		return DriverPostgres
	default:
		return d
	}
}

// dialectorFor returns the gorm dialector and the normalised driver name for cfg.
func dialectorFor(cfg Config) (gorm.Dialector, string, error) {
	driver := normaliseDriver(cfg.Driver)

	switch driver {
	case DriverSQLite:
		dsn, err := sqliteDSN(cfg)
		if err != nil {
			return nil, driver, err
		}
		return sqlite.Open(dsn), driver, nil
	case DriverPostgres:
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, driver, err
		}
		return postgres.Open(dsn), driver, nil
	case DriverMySQL:
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, driver, err
		}
		return mysql.Open(dsn), driver, nil
	default:
		return nil, driver, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteDSN resolves the file DSN, creating the parent directory of on-disk databases.
func sqliteDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return sqliteMemoryDSN, nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	query := url.Values{}
	query.Set("_journal_mode", "WAL")
	query.Set("_busy_timeout", "5000")
	for key, value := range cfg.Options {
		query.Set(key, value)
	}
	return "file:" + filepath.ToSlash(path) + "?" + query.Encode(), nil
}

// postgresDSN builds a postgres:// URL so credentials are escaped.
func postgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	query := url.Values{}
	query.Set("sslmode", "disable")
	for key, value := range cfg.Options {
		query.Set(key, value)
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     hostPort(cfg.Host, "localhost", cfg.Port, 5432),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String(), nil
}

// mysqlDSN formats the DSN through the driver's own config type.
func mysqlDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = hostPort(cfg.Host, "127.0.0.1", cfg.Port, 3306)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		mc.Params[key] = value
	}
	return mc.FormatDSN(), nil
}

func hostPort(host, defaultHost string, port, defaultPort int) string {
	if host = strings.TrimSpace(host); host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
