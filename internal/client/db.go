package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aqaranewbiz/mysql-server/internal/config"
	"github.com/aqaranewbiz/mysql-server/internal/logger"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
)

// OpenFunc matches sql.Open; tests swap it for a mock.
type OpenFunc func(driverName, dataSourceName string) (*sql.DB, error)

// Gateway opens one short-lived session per call. Nothing is pooled or
// reused between calls.
type Gateway struct {
	dialect Dialect
	opts    Options
	open    OpenFunc
}

func NewGateway(cfg config.DatabaseConfig) (*Gateway, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return NewGatewayWithOpener(dialect, Options{
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		SSLMode:        cfg.SSLMode,
	}, sql.Open), nil
}

func NewGatewayWithOpener(dialect Dialect, opts Options, open OpenFunc) *Gateway {
	if open == nil {
		open = sql.Open
	}
	return &Gateway{dialect: dialect, opts: opts, open: open}
}

func (g *Gateway) Dialect() Dialect {
	return g.dialect
}

// WithConnection opens a session for spec, hands fn a single connection and
// releases everything before returning, whatever fn does.
func WithConnection[T any](ctx context.Context, g *Gateway, spec ConnectionSpec, fn func(ctx context.Context, conn *sql.Conn) (T, error)) (T, error) {
	var zero T

	db, err := g.open(g.dialect.Driver, g.dialect.DSN(spec.Params(), g.opts))
	if err != nil {
		logger.LogConnectionEvent("open", spec.String(), g.dialect.Driver, err)
		return zero, mcpdb.DatabaseError(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		logger.LogConnectionEvent("connect", spec.String(), g.dialect.Driver, err)
		return zero, mcpdb.DatabaseError(err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		logger.LogConnectionEvent("connect", spec.String(), g.dialect.Driver, err)
		return zero, mcpdb.DatabaseError(err)
	}
	defer conn.Close()

	logger.LogConnectionEvent("connect", spec.String(), g.dialect.Driver, nil)
	return fn(ctx, conn)
}

// Execute runs exactly one statement and returns its normalized result.
func (g *Gateway) Execute(ctx context.Context, spec ConnectionSpec, statement string) (mcpdb.Result, error) {
	return WithConnection(ctx, g, spec, func(ctx context.Context, conn *sql.Conn) (mcpdb.Result, error) {
		result, err := runStatement(ctx, conn, statement)
		logger.LogDatabaseOperation("QUERY", statement, result.AffectedRows(), err)
		return result, err
	})
}

// ListTables returns the first column of the dialect's table listing, in the
// order the database reports it.
func (g *Gateway) ListTables(ctx context.Context, spec ConnectionSpec) ([]string, error) {
	return WithConnection(ctx, g, spec, func(ctx context.Context, conn *sql.Conn) ([]string, error) {
		rows, err := conn.QueryContext(ctx, g.dialect.ShowTables)
		if err != nil {
			logger.LogDatabaseOperation("LIST_TABLES", g.dialect.ShowTables, 0, err)
			return nil, mcpdb.DatabaseError(err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return nil, mcpdb.DatabaseError(err)
		}

		tables := []string{}
		for rows.Next() {
			values := make([]interface{}, len(columns))
			valuePtrs := make([]interface{}, len(columns))
			for i := range values {
				valuePtrs[i] = &values[i]
			}
			if err := rows.Scan(valuePtrs...); err != nil {
				return nil, mcpdb.DatabaseError(err)
			}
			tables = append(tables, tableName(values[0]))
		}
		if err := rows.Err(); err != nil {
			return nil, mcpdb.DatabaseError(err)
		}

		logger.LogDatabaseOperation("LIST_TABLES", g.dialect.ShowTables, int64(len(tables)), nil)
		return tables, nil
	})
}

// Ping checks that a session can be opened.
func (g *Gateway) Ping(ctx context.Context, spec ConnectionSpec) error {
	_, err := WithConnection(ctx, g, spec, func(ctx context.Context, conn *sql.Conn) (struct{}, error) {
		return struct{}{}, nil
	})
	return err
}

func tableName(v interface{}) string {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
