package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/alecthomas/kong"

	"device-maintenance-backend/config"
	"device-maintenance-backend/internal/api"
	"device-maintenance-backend/internal/db"
	"device-maintenance-backend/internal/engine"
	"device-maintenance-backend/internal/notification"
	"device-maintenance-backend/internal/sla"
	"device-maintenance-backend/internal/store"
)

type serveCmd struct{}

type runCmd struct {
	Task   string `arg:"" optional:"" default:"all" enum:"pm,sla,calibration,spare_parts,cleanup,all" help:"Task to run (pm|sla|calibration|spare_parts|cleanup|all)."`
	DryRun bool   `help:"Evaluate and log without persisting changes."`
}

var cli struct {
	Config string   `help:"Path to the configuration file." env:"CONFIG_PATH" default:"./config/config.yaml"`
	Serve  serveCmd `cmd:"" default:"1" help:"Run the maintenance scheduler daemon and HTTP API."`
	Run    runCmd   `cmd:"" help:"Run one maintenance task immediately and exit."`
}

// app wires the engine components once; both commands share the same graph.
type app struct {
	cfg       *config.Config
	store     store.Store
	pool      *notification.WorkerPool
	scheduler *engine.Scheduler
	prop      *engine.Propagator
	webpush   *webpush.Options
}

func newApp(logger *log.Logger) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", cli.Config, err)
	}
	logger.Printf("configuration loaded successfully from %s", cli.Config)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			return nil, errors.New("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("push notifications disabled; system inbox only")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)
	cooldown := time.Duration(cfg.Scheduler.BreachCooldownHours) * time.Hour
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, cooldown)

	resolver := sla.NewResolver(gormDB, cfg.SLA.DefaultResponseHours, cfg.SLA.DefaultResolutionHours)
	generator := engine.NewGenerator(appStore, resolver, pool, nil)
	reconciler := engine.NewReconciler(appStore, nil)
	scheduler := engine.NewScheduler(&cfg.Scheduler, generator, reconciler, appStore, nil)
	propagator := engine.NewPropagator(appStore, nil)

	return &app{
		cfg:       cfg,
		store:     appStore,
		pool:      pool,
		scheduler: scheduler,
		prop:      propagator,
		webpush:   webpushOptions,
	}, nil
}

func main() {
	logger := log.New(os.Stdout, "cmmsd ", log.LstdFlags)

	kctx := kong.Parse(&cli,
		kong.Name("cmmsd"),
		kong.Description("Medical-device maintenance scheduler and operational API."),
		kong.UsageOnError(),
	)

	a, err := newApp(logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	switch kctx.Command() {
	case "serve":
		serve(logger, a)
	case "run", "run <task>":
		runOnce(logger, a, cli.Run.Task, cli.Run.DryRun)
	default:
		logger.Fatalf("unknown command %q", kctx.Command())
	}
}

func serve(logger *log.Logger, a *app) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pool.Start(ctx)
	go a.scheduler.Run(ctx)

	router := api.NewRouter(a.store, a.scheduler, a.prop, a.webpush, &a.cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", a.cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	logger.Println("Server gracefully stopped")
}

func runOnce(logger *log.Logger, a *app, task string, dryRun bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pool.Start(ctx)

	result, err := a.scheduler.RunTask(ctx, task, dryRun)
	if err != nil {
		logger.Printf("task %s failed: %v", task, err)
		os.Exit(1)
	}
	logger.Printf("task %s finished: %s", task, result)

	drainNotifications(a.pool, 10*time.Second)
}

// drainNotifications gives the worker pool a bounded window to flush queued
// events before the one-shot process exits.
func drainNotifications(pool *notification.WorkerPool, budget time.Duration) {
	deadline := time.Now().Add(budget)
	for len(pool.Jobs()) > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	// Let in-flight deliveries settle.
	time.Sleep(200 * time.Millisecond)
}
