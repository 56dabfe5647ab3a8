// Command voxengine runs the real-time voice pipeline: microphone capture,
// spectral analysis, the bidirectional live conversation, and cached clip
// playback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/danakov/voxengine/internal/config"
	"github.com/danakov/voxengine/internal/engine"
	"github.com/danakov/voxengine/internal/health"
	"github.com/danakov/voxengine/internal/live"
	"github.com/danakov/voxengine/internal/observe"
	"github.com/danakov/voxengine/internal/resilience"
	"github.com/danakov/voxengine/pkg/audio/device"
	providerlive "github.com/danakov/voxengine/pkg/provider/live"
	geminilive "github.com/danakov/voxengine/pkg/provider/live/gemini"
	geminitts "github.com/danakov/voxengine/pkg/provider/tts/gemini"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	ambientOnly := flag.Bool("ambient-only", false, "run capture and analysis without opening a conversation")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxengine: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxengine: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("voxengine starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"metrics_addr", cfg.Server.MetricsAddr,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	var liveOpts []geminilive.Option
	if cfg.Live.Model != "" {
		liveOpts = append(liveOpts, geminilive.WithModel(cfg.Live.Model))
	}
	if cfg.Live.BaseURL != "" {
		liveOpts = append(liveOpts, geminilive.WithBaseURL(cfg.Live.BaseURL))
	}
	liveOpts = append(liveOpts, geminilive.WithDecodeErrorHook(func(err error) {
		metrics.DecodeErrors.Add(context.Background(), 1)
	}))
	liveProvider := geminilive.New(cfg.Live.APIKey, liveOpts...)

	var ttsOpts []geminitts.Option
	if cfg.TTS.Model != "" {
		ttsOpts = append(ttsOpts, geminitts.WithModel(cfg.TTS.Model))
	}
	if cfg.TTS.BaseURL != "" {
		ttsOpts = append(ttsOpts, geminitts.WithBaseURL(cfg.TTS.BaseURL))
	}
	ttsBackend, err := geminitts.New(cfg.TTS.APIKey, ttsOpts...)
	if err != nil {
		slog.Error("failed to create synthesizer", "err", err)
		return 1
	}
	synth := resilience.NewSynthesizer(ttsBackend, resilience.BreakerConfig{Name: "gemini-tts"})

	// ── Audio devices ─────────────────────────────────────────────────────────
	speaker, err := device.NewSpeaker()
	if err != nil {
		slog.Error("failed to open playback device", "err", err)
		return 1
	}
	capture := device.NewCapture()

	// ── Engine ────────────────────────────────────────────────────────────────
	eng := engine.New(engine.Params{
		Capture: capture,
		Sink:    speaker,
		Live:    liveProvider,
		Synth:   synth,
		LiveConfig: providerlive.Config{
			Voice:        cfg.Live.Voice,
			Instructions: cfg.Live.Instructions,
		},
		ClipVoice: cfg.TTS.Voice,
		FFTSize:   cfg.Engine.FFTSize,
		Metrics:   metrics,
		OnSessionState: func(s live.State) {
			slog.Debug("session state changed", "state", s)
		},
	})

	if err := eng.StartAmbient(ctx); err != nil {
		slog.Error("failed to start capture", "err", err)
		return 1
	}
	if !*ambientOnly {
		if err := eng.StartConversation(ctx); err != nil {
			slog.Error("failed to open conversation", "err", err)
			_ = eng.Close()
			return 1
		}
	}

	// ── Background work ───────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Clips.Preload) > 0 {
		g.Go(func() error {
			eng.PreloadClips(gctx, cfg.Clips.Preload)
			slog.Info("clip preload finished", "loaded", eng.ClipsLoaded(), "requested", len(cfg.Clips.Preload))
			return nil
		})
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(
			health.Check{Name: "capture", Probe: func(context.Context) error {
				if !eng.AmbientRunning() {
					return errors.New("microphone stream not running")
				}
				return nil
			}},
			health.Check{Name: "session", Probe: func(context.Context) error {
				if s := eng.SessionState(); s == live.StateErrored {
					return fmt.Errorf("session state %s", s)
				}
				return nil
			}},
			health.Check{Name: "synthesis", Probe: func(context.Context) error {
				if s := synth.BreakerState(); s == resilience.BreakerOpen {
					return errors.New("synthesis breaker open")
				}
				return nil
			}},
		).Register(mux)
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	slog.Info("pipeline ready — press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := eng.Close(); err != nil {
		slog.Warn("engine close error", "err", err)
	}
	if err := g.Wait(); err != nil {
		slog.Error("background task error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
