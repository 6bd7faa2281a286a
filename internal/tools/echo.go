package tools

import (
	"context"

	"github.com/aqaranewbiz/mysql-server/internal/client"
)

type EchoInput struct {
	Message string `json:"message" jsonschema:"Text to echo back"`
}

type EchoOutput struct {
	Echo string `json:"echo"`
}

func GetEchoTool() *ToolDefinition {
	return NewToolDefinition(
		"echo",
		"Return the message unchanged. Does not touch the database.",
		func(_ context.Context, input EchoInput, _ client.ConnectionSpec) (interface{}, error) {
			return EchoOutput{Echo: input.Message}, nil
		},
	)
}
