package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/rishabhdvn/Secure-Collab/internal/app"
	execx "github.com/rishabhdvn/Secure-Collab/internal/exec"
	httpx "github.com/rishabhdvn/Secure-Collab/internal/http"
	"github.com/rishabhdvn/Secure-Collab/internal/session"
	store "github.com/rishabhdvn/Secure-Collab/internal/store"
	ws "github.com/rishabhdvn/Secure-Collab/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional postgres-backed run history
	var pg *store.Postgres
	if cfg.PGURL != "" {
		var err error
		pg, err = store.NewPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("postgres connect", "err", err)
			log.Fatal(err)
		}
		defer pg.Close()
		if err := store.RunMigrations(ctx, pg, logger); err != nil {
			logger.Error("migrations", "err", err)
			log.Fatal(err)
		}
	}

	// Optional redis bus for cross-instance room fanout
	var bus *ws.Bus
	if cfg.RedisAddr != "" {
		var err error
		bus, err = ws.NewBus(ctx, cfg, logger)
		if err != nil {
			logger.Error("redis connect", "err", err)
			log.Fatal(err)
		}
		defer bus.Close()
	}

	// Session registry (rooms + identity)
	reg := session.NewRegistry()

	// Sandbox engine
	engine, err := execx.NewDocker(ctx, execx.Limits{
		MemoryBytes: int64(cfg.SandboxMemoryMB) * 1024 * 1024,
		NanoCPUs:    cfg.SandboxNanoCPUs,
		Pids:        cfg.SandboxPids,
	}, logger)
	if err != nil {
		logger.Error("sandbox init", "err", err)
		log.Fatal(err)
	}

	// Supervisor + broker + hub; the hub is the supervisor's output sink
	sup := execx.NewSupervisor(logger, nil)
	hub := ws.NewHub(logger, reg, sup, bus)
	sup.SetSink(hub)
	if pg != nil {
		sup.SetRecorder(func(rec execx.RunRecord) {
			recCtx, recCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer recCancel()
			_ = pg.RecordRun(recCtx, store.Run{
				JobID:        rec.JobID,
				ConnectionID: rec.ConnectionID,
				Username:     rec.Username,
				Language:     rec.Language,
				Status:       rec.Status,
				ExitCode:     rec.ExitCode,
				DurationMS:   rec.Duration.Milliseconds(),
			})
		})
	}
	broker := execx.NewBroker(logger, engine, sup, reg, cfg.ScratchDir)
	go hub.Run(ctx)

	// HTTP + WS router
	router := httpx.NewRouter(cfg, logger, hub, broker, pg)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	// Kill live jobs before the listener goes away
	sup.Shutdown()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
