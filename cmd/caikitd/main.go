package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/config"
	"github.com/markstur/caikit/internal/httpapi"
	"github.com/markstur/caikit/internal/modelmgmt"
	"github.com/markstur/caikit/internal/modules/llama"
	"github.com/markstur/caikit/internal/modules/sample"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8080"
	if v := os.Getenv("CAIKIT_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", os.Getenv("CAIKIT_CONFIG"), "Path to config file (.yaml/.json/.toml)")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "Log format: console or json")
	maxBody := flag.Int64("max-body-bytes", 0, "Maximum request body size in bytes (0=default)")
	flag.Parse()

	cfg := config.Config{}
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			l := zerolog.New(os.Stderr)
			l.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
		cfg = c
	}
	if cfg.Addr != "" && *addr == defaultAddr {
		*addr = cfg.Addr
	}
	if cfg.LogLevel != "" {
		*logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		*logFormat = cfg.LogFormat
	}

	log := newLogger(*logLevel, *logFormat)

	reg := backends.NewRegistry()
	if err := sample.Register(reg); err != nil {
		log.Fatal().Err(err).Msg("failed to register sample module")
	}
	if err := llama.Register(reg); err != nil {
		log.Fatal().Err(err).Msg("failed to register llama module")
	}

	table := modelmgmt.BatchingTable{}
	for key, e := range cfg.Batching {
		table[key] = modelmgmt.BatchConfig{Size: e.Size, CollectDelay: e.Delay()}
	}

	loader, err := modelmgmt.NewLoader(reg, table, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct model loader")
	}
	mgr := modelmgmt.NewManager(loader, log)
	defer mgr.Close()

	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)
	if *maxBody > 0 {
		httpapi.SetMaxBodyBytes(*maxBody)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(mgr)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Info().Str("addr", *addr).Msg("caikitd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
}

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w = os.Stderr
	if format == "console" {
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
