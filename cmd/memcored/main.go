// Command memcored runs the background memory processing service: the
// priority-queued processor, relationship engine, consolidation scheduler,
// and the HTTP API that binds them.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/flags"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/scheduler"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/server"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage/postgres"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage/sqlite"
	"github.com/stephabauva/wellness-ai-rep-sub006/web/handlers"
)

func main() {
	flagsPath := flag.String("flags", "", "Path to rollout config file (default: MEMCORE_FLAGS_PATH)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *flagsPath != "" {
		cfg.Flags.ConfigPath = *flagsPath
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rollout controller with hot reload when a config file is set.
	controller := flags.NewController()
	var flagWatcher *flags.Watcher
	if cfg.Flags.ConfigPath != "" {
		flagWatcher = flags.NewWatcher(cfg.Flags.ConfigPath, controller)
		if err := flagWatcher.Start(); err != nil {
			log.Fatalf("Failed to start rollout watcher: %v", err)
		}
		defer flagWatcher.Stop()
	}

	relationships := engine.NewRelationshipEngine(cfg.Engine)
	breaker := engine.NewCircuitBreaker(cfg.Breaker)
	monitor := engine.NewPerformanceMonitor()
	consolidator := engine.NewConsolidator(store, cfg.Engine, monitor)

	processor := engine.NewProcessor(store, relationships, breaker, monitor,
		controller, cfg.Processor, cfg.Engine)
	if err := processor.Start(ctx); err != nil {
		log.Fatalf("Failed to start processor: %v", err)
	}

	sched := scheduler.New(cfg.Scheduler, consolidator)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	addr, wsHub, err := server.Start(ctx, cfg, server.Deps{
		Store:         store,
		Processor:     processor,
		Relationships: relationships,
		Consolidator:  consolidator,
		Breaker:       breaker,
		Monitor:       monitor,
		Flags:         controller,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	processor.SetOnTaskDone(func(outcome engine.TaskOutcome) {
		wsHub.Broadcast(handlers.NewTaskEvent(outcome))
	})
	log.Printf("Memory processing service running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	sched.Stop()
	if err := processor.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down processor: %v", err)
	}

	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the configured storage backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return sqlite.NewStore(filepath.Join(cfg.Storage.DataPath, "memcore.db"))
	}
}
