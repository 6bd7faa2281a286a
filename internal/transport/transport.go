package transport

import (
	"context"

	"github.com/aqaranewbiz/mysql-server/internal/server"
)

// Dispatcher is the part of *server.Dispatcher the transports use.
type Dispatcher interface {
	Handle(ctx context.Context, raw []byte) []byte
	Status() server.Status
}

var _ Dispatcher = (*server.Dispatcher)(nil)
