// Command export writes the open-position and closed-trade CSV exports from
// a stored ledger database without starting the interactive tool.
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"spotChecklist/internal/adapters/logger"
	"spotChecklist/internal/adapters/sqlite"
	"spotChecklist/internal/analytics"
	"spotChecklist/internal/utils"
)

func main() {
	dbPath := flag.String("db", "./data/spot_checklist.db", "path to the ledger database")
	price := flag.Float64("price", 0, "current price for P&L columns (0 = unknown)")
	outDir := flag.String("out", ".", "directory to write the CSV files into")
	flag.Parse()

	ctx := context.Background()
	appLogger := logger.NewZapLogger(logger.LevelInfo)
	defer appLogger.Sync()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer repo.Close()

	positions, err := repo.FindAllPositions(ctx)
	if err != nil {
		log.Fatalf("failed to load positions: %v", err)
	}
	trades, err := repo.FindAllTrades(ctx)
	if err != nil {
		log.Fatalf("failed to load trades: %v", err)
	}

	reports := analytics.Compute(positions, *price, time.Now().UTC())

	openPath := filepath.Join(*outDir, "open_positions.csv")
	if err := utils.WriteOpenPositionsCSV(positions, reports, *price, openPath); err != nil {
		log.Fatalf("failed to write %s: %v", openPath, err)
	}
	closedPath := filepath.Join(*outDir, "closed_trades.csv")
	if err := utils.WriteClosedTradesCSV(trades, closedPath); err != nil {
		log.Fatalf("failed to write %s: %v", closedPath, err)
	}

	appLogger.Info(ctx, "Exports written", map[string]interface{}{
		"openPositions": len(positions),
		"closedTrades":  len(trades),
		"dir":           *outDir,
	})
}
