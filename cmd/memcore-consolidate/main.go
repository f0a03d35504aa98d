// Command memcore-consolidate runs a one-off duplicate consolidation sweep
// against the configured store and prints the summary report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage/postgres"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/storage/sqlite"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report duplicate groups without modifying any memory")
	userID := flag.Int("user", 0, "Restrict the sweep to one user (0 = all users)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Abort the sweep after this long")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	consolidator := engine.NewConsolidator(store, cfg.Engine, engine.NewPerformanceMonitor())
	report, err := consolidator.Run(ctx, engine.ConsolidationOptions{
		DryRun: *dryRun,
		UserID: *userID,
	})
	if err != nil {
		log.Fatalf("Consolidation failed: %v", err)
	}

	mode := "applied"
	if report.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("Consolidation (%s): %d memories scanned, %d duplicate groups\n",
		mode, report.TotalMemories, report.DuplicateGroups)
	fmt.Printf("  deactivated: %d\n", report.MemoriesDeactivated)
	fmt.Printf("  updated:     %d\n", report.MemoriesUpdated)
	fmt.Printf("  elapsed:     %dms\n", report.ProcessingTimeMs)
	for _, g := range report.Groups {
		fmt.Printf("  group (%s): primary=%s dups=%d\n",
			g.Reason, g.PrimaryID, len(g.DuplicateIDs))
	}

	if len(report.GroupErrors) > 0 {
		fmt.Printf("  %d group(s) failed:\n", len(report.GroupErrors))
		for _, ge := range report.GroupErrors {
			fmt.Printf("    %s\n", ge)
		}
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return sqlite.NewStore(filepath.Join(cfg.Storage.DataPath, "memcore.db"))
	}
}
