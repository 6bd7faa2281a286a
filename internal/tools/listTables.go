package tools

import (
	"context"

	"github.com/aqaranewbiz/mysql-server/internal/client"
)

type ListTablesInput struct{}

func GetListTablesTool(gw Gateway) *ToolDefinition {
	return NewToolDefinition(
		"list_tables",
		"List all tables in the database.",
		func(ctx context.Context, _ ListTablesInput, conn client.ConnectionSpec) (interface{}, error) {
			return gw.ListTables(ctx, conn)
		},
	).UsesDatabase()
}
