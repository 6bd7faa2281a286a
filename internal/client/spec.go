package client

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/aqaranewbiz/mysql-server/internal/config"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
)

// Params is the resolved set of values used to open one session.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// ConnectionSpec is either Ambient or CallerSupplied. The two are never
// merged: a caller-supplied spec replaces the ambient one entirely.
type ConnectionSpec interface {
	Params() Params
	Source() string
	String() string

	isConnectionSpec()
}

// Ambient is the process-wide connection taken from configuration.
type Ambient struct {
	params Params
}

func AmbientFromConfig(cfg config.DatabaseConfig) Ambient {
	return Ambient{params: Params{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Name,
	}}
}

func (a Ambient) Params() Params { return a.params }
func (a Ambient) Source() string { return "ambient" }
func (a Ambient) String() string { return describe(a.params) }
func (Ambient) isConnectionSpec() {}

// CallerSupplied is a connection object sent along with a tool call.
type CallerSupplied struct {
	params Params
}

func (c CallerSupplied) Params() Params { return c.params }
func (c CallerSupplied) Source() string { return "caller" }
func (c CallerSupplied) String() string { return describe(c.params) }
func (CallerSupplied) isConnectionSpec() {}

// ParseCallerSupplied validates a connection override object. Dialects that
// authenticate require host, user and a password key (the value may be
// empty); file-based dialects only need a database.
func ParseCallerSupplied(raw map[string]interface{}, dialect Dialect) (CallerSupplied, error) {
	var p Params
	var err error

	if p.Host, err = optionalString(raw, "host"); err != nil {
		return CallerSupplied{}, err
	}
	if p.User, err = optionalString(raw, "user"); err != nil {
		return CallerSupplied{}, err
	}
	if p.Password, err = optionalString(raw, "password"); err != nil {
		return CallerSupplied{}, err
	}
	if p.Database, err = optionalString(raw, "database"); err != nil {
		return CallerSupplied{}, err
	}
	if p.Port, err = parsePort(raw["port"]); err != nil {
		return CallerSupplied{}, err
	}

	if dialect.NeedsCredentials {
		var missing []string
		if p.Host == "" {
			missing = append(missing, "host")
		}
		if p.User == "" {
			missing = append(missing, "user")
		}
		if _, ok := raw["password"]; !ok {
			missing = append(missing, "password")
		}
		if len(missing) > 0 {
			return CallerSupplied{}, mcpdb.InvalidParams("missing credentials in connection: %s", strings.Join(missing, ", "))
		}
	} else if p.Database == "" {
		return CallerSupplied{}, mcpdb.InvalidParams("missing database in connection")
	}

	return CallerSupplied{params: p}, nil
}

func optionalString(raw map[string]interface{}, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", mcpdb.InvalidParams("connection.%s must be a string", key)
	}
	return s, nil
}

func parsePort(v interface{}) (int, error) {
	var port int
	switch p := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if p != math.Trunc(p) {
			return 0, mcpdb.InvalidParams("connection.port must be an integer")
		}
		port = int(p)
	case int:
		port = p
	case string:
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, mcpdb.InvalidParams("connection.port must be an integer")
		}
		port = n
	default:
		return 0, mcpdb.InvalidParams("connection.port must be an integer")
	}
	if port < 1 || port > 65535 {
		return 0, mcpdb.InvalidParams("connection.port out of range: %d", port)
	}
	return port, nil
}

func describe(p Params) string {
	addr := p.Host
	if p.Port > 0 {
		addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	}
	if p.User != "" {
		addr = p.User + "@" + addr
	}
	return fmt.Sprintf("%s/%s", addr, p.Database)
}
