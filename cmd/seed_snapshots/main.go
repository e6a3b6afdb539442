package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/infrastructure/storage"
)

// seedFile mirrors what the upstream writers publish: pivots per underlying,
// OI per option and one-minute candles per option.
type seedFile struct {
	Pivots  []domain.MultiTimeframePivots `json:"pivots"`
	OI      []domain.OISnapshot           `json:"oi"`
	Candles map[string][]domain.Candle    `json:"candles"`
}

func main() {
	dbPath := flag.String("db", "exitengine.db", "sqlite database path")
	input := flag.String("in", "", "JSON file with pivots, oi and candles")
	timeframe := flag.String("tf", "1m", "candle timeframe key")
	flag.Parse()

	if *input == "" {
		log.Fatal("-in is required")
	}

	raw, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *input, err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("Failed to decode %s: %v", *input, err)
	}

	store, err := storage.NewSQLiteStore(*dbPath, storage.DefaultMaxAge())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := range seed.Pivots {
		if err := store.PutPivots(ctx, &seed.Pivots[i]); err != nil {
			log.Fatalf("Failed to save pivots for %s: %v", seed.Pivots[i].ScripCode, err)
		}
		fmt.Printf("pivots  %s\n", seed.Pivots[i].ScripCode)
	}
	for i := range seed.OI {
		if err := store.PutOISnapshot(ctx, &seed.OI[i]); err != nil {
			log.Fatalf("Failed to save OI for %s: %v", seed.OI[i].ScripCode, err)
		}
		fmt.Printf("oi      %s %s (%.2f)\n", seed.OI[i].ScripCode, seed.OI[i].Interpretation, seed.OI[i].InterpretationConfidence)
	}
	for code, candles := range seed.Candles {
		if err := store.PutCandles(ctx, code, *timeframe, candles); err != nil {
			log.Fatalf("Failed to save candles for %s: %v", code, err)
		}
		fmt.Printf("candles %s x%d\n", code, len(candles))
	}
}
