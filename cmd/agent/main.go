package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xavierca1/prospect-agent/internal/app"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/infra/http/handlers"
	"github.com/xavierca1/prospect-agent/internal/infra/http/router"
	"github.com/xavierca1/prospect-agent/internal/infra/worker"
	"github.com/xavierca1/prospect-agent/internal/usecase"
)

// Set at build time via -ldflags
var Version = "dev"

const usage = `usage: agent [-config agent.yaml] [-limit N|*] <command>

commands:
  discover   search the web for new contacts
  verify     language, deliverability and interest gates
  enrich     build the contact persona
  draft      write the outreach email
  dispatch   send ready emails
  run        every stage in order
  reclaim    return contacts with an expired dispatch lease to ready
  serve      operator HTTP API and lease reclaim worker
`

func main() {
	configPath := flag.String("config", "", "run configuration file (default agent.yaml)")
	limit := flag.String("limit", "", `override the stage limit: a non-negative integer or "*"`)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *configPath, *limit); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func run(command, configPath, limit string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	closeLog := setupLogging(cfg.Log)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "serve":
		return serve(ctx, a)
	case "run":
		in, verrs := usecase.ValidateRunLimit(limit)
		if len(verrs) > 0 {
			return verrs[0]
		}
		summaries, err := a.Pipeline.RunAll(ctx, in)
		printSummaries(os.Stdout, summaries)
		return err
	default:
		stage, in, verrs := usecase.ValidateRunRequest(usecase.RunRequest{Stage: command, Limit: limit})
		if len(verrs) > 0 {
			return verrs[0]
		}
		summary, err := a.Pipeline.RunStage(ctx, stage, in)
		if summary != nil {
			printSummaries(os.Stdout, []*usecase.Summary{summary})
		}
		return err
	}
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config

	go worker.NewLeaseReclaimWorker(a.Reclaim, cfg.HTTP.ReclaimEvery).Start(ctx)

	var db handlers.Pinger
	if a.DB != nil {
		db = a.DB
	}
	var broker handlers.Broker
	if a.RabbitMQ != nil {
		broker = a.RabbitMQ
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: router.New(router.Handlers{
			Health: handlers.NewHealthHandler(db, broker, Version),
			Runs:   handlers.NewRunHandler(a.Pipeline),
			Stats:  handlers.NewStatsHandler(a.Contacts),
		}, cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🔥 operator API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupLogging mirrors the log to a rotating file when log.file (LOG_FILE) is set.
func setupLogging(cfg config.LogConfig) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if cfg.File == "" {
		return func() {}
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return func() {
		log.SetOutput(os.Stderr)
		rotating.Close()
	}
}

func printSummaries(w io.Writer, summaries []*usecase.Summary) {
	if len(summaries) == 0 {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		log.Printf("⚠️ print summary: %v", err)
	}
}
