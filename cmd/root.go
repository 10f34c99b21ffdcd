package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

func newRootCmd() *cobra.Command {
	cfg := &Config{}

	rootCmd := &cobra.Command{
		Use:           "broadcast-relay",
		Short:         "WebSocket broadcast relay",
		Long:          "Accepts WebSocket clients and relays every message to all other clients, or only records what clients send.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", logger.FormatConsole, "log format (console, json, text)")
	flags.StringVar(&cfg.LogFile, "log-file", "console", "log file path, or console for stdout")
	flags.IntVar(&cfg.SendBuffer, "send-buffer", 256, "messages buffered per connection before sends to it are skipped")
	flags.DurationVar(&cfg.WriteTimeout, "write-timeout", 10*time.Second, "deadline for a single frame write")
	flags.DurationVar(&cfg.PongTimeout, "pong-timeout", 60*time.Second, "drop a client after this long without a pong")
	flags.UintVar(&cfg.BindRetries, "bind-retries", 0, "extra attempts to bind the listen address before exiting")

	rootCmd.AddCommand(
		newModeCmd(cfg, hub.ModeRelay, defaultRelayAddress, "Relay every message to all other connected clients"),
		newModeCmd(cfg, hub.ModeObserve, defaultObserveAddress, "Log text sent by clients without relaying it"),
	)

	return rootCmd
}

func newModeCmd(cfg *Config, mode, defaultAddress, short string) *cobra.Command {
	// each mode has its own default address, so it is not bound into cfg directly
	var listenAddress string

	cmd := &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setFlagsFromEnvVars(cmd.Flags()); err != nil {
				return fmt.Errorf("apply environment: %w", err)
			}
			modeCfg := *cfg
			modeCfg.ListenAddress = listenAddress
			if err := modeCfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return run(cmd.Context(), modeCfg, mode)
		},
	}

	cmd.Flags().StringVarP(&listenAddress, "listen-address", "l", defaultAddress, "listen address")
	if mode == hub.ModeObserve {
		cmd.Flags().StringVar(&cfg.TranscriptFile, "transcript-file", "", "also append observed text to this rotated file")
	}

	return cmd
}
