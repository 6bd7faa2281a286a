package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aqaranewbiz/mysql-server/internal/config"
	"github.com/aqaranewbiz/mysql-server/internal/logger"
	"github.com/aqaranewbiz/mysql-server/internal/server"
	"github.com/aqaranewbiz/mysql-server/internal/transport"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Shutdown()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		logLevel    string
		readTimeout int
		cfg         *config.Config
	)

	root := &cobra.Command{
		Use:   "mysql-mcp-server",
		Short: "JSON-RPC server exposing SQL tools",
		Long:  `Serves list_tables, query and echo over JSON-RPC 2.0 on stdio, HTTP or WebSocket.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				loaded.Logging.Level = logLevel
			}
			if cmd.Flags().Changed("read-timeout") {
				loaded.Database.ReadTimeoutSeconds = readTimeout
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			if err := logger.Initialize(logger.ConfigFromLoggingConfig(loaded.Logging)); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "Config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&readTimeout, "read-timeout", 0, "Database read timeout in seconds")

	// Subcommand: stdio (local transport, newline-delimited frames)
	root.AddCommand(&cobra.Command{
		Use:   "stdio",
		Short: "Serve over stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := server.New(cfg)
			if err != nil {
				return err
			}
			return transport.ServeStdio(cmd.Context(), d, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	})

	// Subcommand: serve (HTTP + WebSocket)
	var port int
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve over HTTP (/rpc) and WebSocket (/ws)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			d, err := server.New(cfg)
			if err != nil {
				return err
			}
			return transport.ListenAndServe(cmd.Context(), ":"+strconv.Itoa(cfg.Server.Port), d)
		},
	}
	serveCmd.Flags().IntVarP(&port, "port", "p", 8000, "Port to listen on (overrides config)")
	root.AddCommand(serveCmd)

	return root
}
