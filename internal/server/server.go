package server

import (
	"fmt"

	"github.com/aqaranewbiz/mysql-server/internal/client"
	"github.com/aqaranewbiz/mysql-server/internal/config"
	"github.com/aqaranewbiz/mysql-server/internal/logger"
	"github.com/aqaranewbiz/mysql-server/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// New wires the gateway, the tool registry and the dispatcher from
// configuration. Nothing connects to the database here.
func New(cfg *config.Config) (*Dispatcher, error) {
	gateway, err := client.NewGateway(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database gateway: %w", err)
	}

	ambient := client.AmbientFromConfig(cfg.Database)
	registry := tools.NewRegistry(gateway, tools.Options{
		Ambient:       ambient,
		AllowOverride: cfg.Database.AllowOverride,
	})

	logger.Info("Dispatcher ready", map[string]interface{}{
		"driver":         cfg.Database.Driver,
		"target":         ambient.String(),
		"allow_override": cfg.Database.AllowOverride,
		"tools":          registry.Names(),
	})

	return NewDispatcher(registry, gateway, Options{
		Info:              &mcp.Implementation{Name: cfg.Server.Name, Version: cfg.Server.Version},
		Ambient:           ambient,
		ProbeOnInitialize: cfg.Database.ProbeOnInitialize,
	}), nil
}
