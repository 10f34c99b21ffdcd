package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
	"go-broadcast-relay/internal/infrastructure/metrics"
	"go-broadcast-relay/internal/infrastructure/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "broadcast-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, mode string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sctx := WithSignal(ctx)

	log := logger.NewLogrusLogger(cfg.LoggerConfig())

	m, err := metrics.New("")
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}
	relayMetrics, err := metrics.NewRelayMetrics(m.Meter, mode)
	if err != nil {
		return fmt.Errorf("setup relay metrics: %w", err)
	}

	relay, closers := newRelay(cfg, mode, log, relayMetrics)

	if err := relay.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", mode, err)
	}

	accessLog := log.WithField("component", "http").Writer()
	closers = append(closers, accessLog)

	router := InitRouter(relay, log, accessLog, m, cfg.ConnectionOptions())
	httpSrv := server.NewHTTPServer(router, cfg.ServerConfig(), log)

	// Bind before announcing readiness; a bind failure ends the process.
	if err := httpSrv.Bind(sctx); err != nil {
		_ = relay.Stop(context.Background())
		for _, c := range closers {
			_ = c.Close()
		}
		return err
	}
	log.Infof("WebSocket server running on ws://%s/ws (mode: %s)", httpSrv.Addr(), mode)

	app := newApplication(log, httpSrv, relay, m, closers)
	return app.Run(sctx)
}

func newRelay(cfg Config, mode string, log logger.Logger, relayMetrics *metrics.RelayMetrics) (hub.Relay, []io.Closer) {
	if mode != hub.ModeObserve {
		return hub.New(log, relayMetrics), nil
	}

	recorders := hub.MultiRecorder{hub.NewLogRecorder(log)}
	var closers []io.Closer
	if cfg.TranscriptFile != "" {
		transcript := &lumberjack.Logger{
			Filename:   cfg.TranscriptFile,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		}
		recorders = append(recorders, hub.NewWriterRecorder(transcript))
		closers = append(closers, transcript)
	}

	return hub.NewObserver(log, recorders, relayMetrics), closers
}

type Application struct {
	logger  logger.Logger
	httpSrv server.Server
	relay   hub.Relay
	metrics *metrics.Metrics
	closers []io.Closer
}

func newApplication(
	logger logger.Logger,
	httpSrv *server.HTTPServer,
	relay hub.Relay,
	m *metrics.Metrics,
	closers []io.Closer,
) *Application {
	return &Application{
		logger:  logger.WithField("app", relay.Mode()),
		httpSrv: httpSrv,
		relay:   relay,
		metrics: m,
		closers: closers,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.httpSrv.Start(gctx)
	})

	eg.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down")

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()

		return app.shutdown(gracefulshutdownCtx)
	})

	return eg.Wait()
}

func (app *Application) shutdown(ctx context.Context) error {
	var errs error

	// Stop the relay first so clients get a close frame
	if err := app.relay.Stop(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to stop %s: %w", app.relay.Mode(), err))
	}

	if err := app.httpSrv.Stop(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}

	if err := app.metrics.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to stop metrics: %w", err))
	}

	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)

		select {
		case <-sigc:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}
