package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/capture"
	"github.com/LdDl/scanbridge/codec"
	"github.com/LdDl/scanbridge/events"
	"github.com/LdDl/scanbridge/host/luahost"
	"github.com/LdDl/scanbridge/internal/platform/config"
	"github.com/LdDl/scanbridge/internal/platform/otel"
	"github.com/LdDl/scanbridge/selection"
	"github.com/LdDl/scanbridge/transport/httpapi"
)

const (
	serviceName     = "scanbridge"
	shutdownTimeout = 5 * time.Second
)

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	shutdown, err := otel.Setup(ctx, serviceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return errors.Wrap(err, "otel")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Printf("scanbridge: otel shutdown: %v", err)
		}
	}()

	broadcaster := events.NewBroadcaster(cfg.EventBuffer, logger)
	dispatchers := events.Multi{broadcaster}

	var b *bridge.Bridge
	var host *luahost.Host
	if cfg.LuaScript != "" {
		script, err := os.ReadFile(cfg.LuaScript)
		if err != nil {
			return errors.Wrap(err, "read lua script")
		}
		finisher := finisherFunc(func(ctx context.Context, call codec.FinishCall) error {
			return b.Finish(ctx, call)
		})
		host, err = luahost.New(string(script), finisher, luahost.Options{Logger: logger})
		if err != nil {
			return errors.Wrapf(err, "lua script %s", cfg.LuaScript)
		}
		dispatchers = append(dispatchers, host)
	}

	selectionSession := selection.NewSession()
	b = bridge.New(bridge.Options{
		Dispatcher: dispatchers,
		Selection:  selectionSession,
		Timeout:    cfg.CallbackTimeout,
		Logger:     logger,
		Defaults: bridge.Defaults{
			Brush:               cfg.Brush(),
			CodeDuplicateFilter: cfg.DuplicateFilter(),
		},
	})
	defer b.Reset()

	if host != nil {
		for _, listener := range host.Listeners() {
			if err := b.SubscribeListener(listener); err != nil {
				return err
			}
		}
		go func() {
			if err := host.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("scanbridge: lua host stopped: %v", err)
			}
		}()
		defer host.Close()
	}

	pipeline := newPipeline(b, cfg, selectionSession, logger)

	if cfg.HTTPEnabled {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(b, broadcaster, pipeline, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("scanbridge: http: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Printf("scanbridge: listening addr=%s", cfg.HTTPAddr)
	}

	frames, closeFrames, err := openFrames(cfg.FramesPath)
	if err != nil {
		return err
	}
	defer closeFrames()
	// a read blocked on an idle stream returns once the frames are closed
	stopClosing := context.AfterFunc(ctx, closeFrames)
	defer stopClosing()

	err = pipeline.Run(ctx, frames)
	stats := b.Stats()
	logger.Printf("scanbridge: done resolved=%d timed_out=%d skipped=%d released=%d",
		stats.Resolved, stats.TimedOut, stats.Skipped, stats.Released)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newPipeline(b *bridge.Bridge, cfg config.Config, session *selection.Session, logger *log.Logger) *capture.Pipeline {
	newTracker := func() capture.Tracker {
		switch cfg.Tracker {
		case "bytetrack":
			return capture.NewByteTracker(cfg.TrackerMaxNoMatch, cfg.TrackerIoUThreshold)
		case "centroid":
			return capture.NewCentroidTracker(cfg.TrackerMaxNoMatch, cfg.TrackerMinDistance)
		}
		return capture.NewIoUTracker(cfg.TrackerMaxNoMatch, cfg.TrackerIoUThreshold)
	}
	return &capture.Pipeline{
		Capture:   capture.NewCapture(b, capture.NewMode("barcodeCapture", true), cfg.DuplicateFilter(), logger),
		Tracking:  capture.NewTracking(b, capture.NewMode("barcodeTracking", true), newTracker, logger),
		Selection: capture.NewSelection(b, capture.NewMode("barcodeSelection", true), session),
		Logger:    logger,
	}
}

// openFrames opens the frames file, stdin when path is empty. The returned
// close func may be called more than once.
func openFrames(path string) (io.Reader, func(), error) {
	f := os.Stdin
	if path != "" {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, nil, errors.Wrap(err, "open frames")
		}
	}
	var once sync.Once
	return f, func() { once.Do(func() { f.Close() }) }, nil
}

type finisherFunc func(ctx context.Context, call codec.FinishCall) error

func (f finisherFunc) Finish(ctx context.Context, call codec.FinishCall) error {
	return f(ctx, call)
}
