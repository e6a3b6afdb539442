package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Shiv7/trading-dashboard-sub004/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "exitengine.db", "sqlite database path")
	scrip := flag.String("scrip", "", "only this option scrip code")
	limit := flag.Int("n", 50, "number of decisions")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath, storage.DefaultMaxAge())
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	decisions, err := store.ListExitDecisions(ctx, *scrip, *limit)
	if err != nil {
		fmt.Printf("Failed to list decisions: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d decisions:\n", len(decisions))
	for _, d := range decisions {
		fmt.Printf("- %s %s T%d qty=%d remaining=%d closeAll=%v %q\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"), d.ScripCode, d.TargetIndex,
			d.Quantity, d.RemainingQuantity, d.CloseAll, d.Reason)
	}
}
