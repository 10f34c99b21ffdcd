package main

import (
	"fmt"
	"time"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
	"go-broadcast-relay/internal/infrastructure/server"
)

const (
	defaultRelayAddress   = ":8765"
	defaultObserveAddress = ":8086"

	minPongTimeout = time.Second
)

type Config struct {
	ListenAddress string
	LogLevel      string
	LogFormat     string
	LogFile       string
	// TranscriptFile receives observed text in observe mode
	TranscriptFile string
	SendBuffer     int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	BindRetries    uint
}

func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case logger.FormatConsole, logger.FormatJSON, logger.FormatText:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout)
	}
	if c.PongTimeout < minPongTimeout {
		return fmt.Errorf("pong timeout must be at least %s, got %s", minPongTimeout, c.PongTimeout)
	}
	return nil
}

func (c Config) LoggerConfig() *logger.Config {
	lCfg := logger.NewDefaultConfig().WithFile(c.LogFile)
	// validated before use
	lCfg.Level, _ = logger.ParseLevel(c.LogLevel)
	lCfg.Format = c.LogFormat
	return lCfg
}

func (c Config) ConnectionOptions() hub.ConnectionOptions {
	opts := hub.DefaultConnectionOptions()
	opts.SendBuffer = c.SendBuffer
	opts.WriteTimeout = c.WriteTimeout
	opts.PongTimeout = c.PongTimeout
	opts.PingPeriod = c.PongTimeout * 9 / 10
	return opts
}

func (c Config) ServerConfig() server.Config {
	return server.Config{
		Address:     c.ListenAddress,
		BindRetries: uint64(c.BindRetries),
	}
}
