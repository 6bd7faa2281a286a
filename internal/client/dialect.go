package client

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"           // Register Postgres driver
	_ "github.com/mattn/go-sqlite3" // Register SQLite driver
)

// Options are driver-level settings shared by every session.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	SSLMode        string
}

// Dialect describes how to reach one database engine.
type Dialect struct {
	Driver      string
	DefaultPort int
	// ShowTables lists table names in its first column.
	ShowTables string
	// NeedsCredentials is false for file-backed engines.
	NeedsCredentials bool

	dsn func(p Params, opts Options) string
}

func (d Dialect) DSN(p Params, opts Options) string {
	if p.Port == 0 {
		p.Port = d.DefaultPort
	}
	return d.dsn(p, opts)
}

var (
	MySQL = Dialect{
		Driver:           "mysql",
		DefaultPort:      3306,
		ShowTables:       "SHOW TABLES",
		NeedsCredentials: true,
		dsn:              mysqlDSN,
	}

	Postgres = Dialect{
		Driver:           "postgres",
		DefaultPort:      5432,
		ShowTables:       "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name",
		NeedsCredentials: true,
		dsn:              postgresDSN,
	}

	SQLite = Dialect{
		Driver:     "sqlite3",
		ShowTables: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		dsn:        sqliteDSN,
	}
)

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", "mysql":
		return MySQL, nil
	case "postgres":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func mysqlDSN(p Params, opts Options) string {
	c := mysql.NewConfig()
	c.User = p.User
	c.Passwd = p.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	c.DBName = p.Database
	c.ParseTime = true
	c.Timeout = opts.ConnectTimeout
	c.ReadTimeout = opts.ReadTimeout
	return c.FormatDSN()
}

func postgresDSN(p Params, opts Options) string {
	q := url.Values{}
	if opts.SSLMode != "" {
		q.Set("sslmode", opts.SSLMode)
	}
	if opts.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(opts.ConnectTimeout/time.Second)))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func sqliteDSN(p Params, _ Options) string {
	if p.Database == "" {
		return ":memory:"
	}
	return p.Database
}
