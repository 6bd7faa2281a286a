package tools

import (
	"context"
	"strings"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
)

type QueryInput struct {
	Query string `json:"query" jsonschema:"SQL statement to execute"`
}

// GetQueryTool executes one SQL statement as given. The text is not
// inspected or rewritten; whoever can call this tool can run any SQL the
// connected account is allowed to.
func GetQueryTool(gw Gateway) *ToolDefinition {
	return NewToolDefinition(
		"query",
		"Execute a SQL statement. Row-returning statements yield {rows}, everything else {affectedRows}.",
		func(ctx context.Context, input QueryInput, conn client.ConnectionSpec) (interface{}, error) {
			if strings.TrimSpace(input.Query) == "" {
				return nil, mcpdb.InvalidParams("query must not be empty")
			}
			return gw.Execute(ctx, conn, input.Query)
		},
	).UsesDatabase()
}
