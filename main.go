package main

import (
	"bufio"
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"spotChecklist/config"
	"spotChecklist/internal/adapters/binanceclient"
	"spotChecklist/internal/adapters/logger"
	"spotChecklist/internal/adapters/marketdata"
	"spotChecklist/internal/adapters/sqlite"
	"spotChecklist/internal/app"
	"spotChecklist/internal/ledger"
	"spotChecklist/internal/ports"
	"spotChecklist/internal/utils"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.LogLevel)
	defer appLogger.Sync()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Market Data Source (with optional exchange ticker fallback)
	var ticker ports.TickerSource
	if cfg.UseExchangeTicker {
		tickerClient, err := binanceclient.New(binanceclient.Config{
			Symbol: cfg.Symbol,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize exchange ticker client")
			log.Fatalf("FATAL: Failed to initialize exchange ticker client: %v", err)
		}
		ticker = tickerClient
	}

	source, err := marketdata.New(marketdata.Config{
		RSIURL:    cfg.RSISourceURL,
		MACDURL:   cfg.MACDSourceURL,
		MarketURL: cfg.MarketSourceURL,
		VolumeURL: cfg.VolumeSourceURL,
		PriceURL:  cfg.PriceSourceURL,
		APIToken:  cfg.SourceAPIToken,
		Timeout:   cfg.FetchTimeout,
		MaxTries:  uint(cfg.FetchMaxTries),
		Ticker:    ticker,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market data client")
		log.Fatalf("FATAL: Failed to initialize market data client: %v", err)
	}

	// 5. Initialize Ledger and Application Service
	ldgr, err := ledger.New(appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize ledger")
		log.Fatalf("FATAL: Failed to initialize ledger: %v", err)
	}

	service, err := app.NewService(cfg, appLogger, source, repo, ldgr)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize service")
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}
	service.Load(ctx)
	service.Refresh(ctx)

	// 6. Command loop
	runCommandLoop(ctx, cfg, service)
}

const helpText = `Commands:
  r                  refresh the snapshot and re-evaluate
  s                  show verdict, unmet criteria and positions
  b [amount]         buy a tranche at the current price (default: last amount)
  c <id> <fraction>  close a fraction (0,1] of a position
  x <id>             close a position entirely
  n <text>           set the note attached to the next buy
  t on|off           toggle the near-support requirement
  e                  export open positions and closed trades to CSV
  q                  quit`

func runCommandLoop(ctx context.Context, cfg *config.Config, service *app.Service) {
	printStatus(service)
	fmt.Println(helpText)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit":
			return
		case "r", "refresh":
			service.Refresh(ctx)
			printStatus(service)
		case "s", "status":
			printStatus(service)
		case "b", "buy":
			amount := service.LastAmount()
			if len(fields) > 1 {
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					fmt.Printf("bad amount %q\n", fields[1])
					continue
				}
				amount = v
			}
			pos, err := service.Buy(ctx, amount)
			if err != nil {
				fmt.Printf("buy rejected: %v\n", err)
				continue
			}
			fmt.Printf("opened %s: %v @ %v\n", pos.ID, pos.Quantity, pos.EntryPrice)
		case "c", "close":
			if len(fields) < 3 {
				fmt.Println("usage: c <id> <fraction>")
				continue
			}
			id, err := uuid.Parse(fields[1])
			if err != nil {
				fmt.Printf("bad position id %q\n", fields[1])
				continue
			}
			fraction, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				fmt.Printf("bad fraction %q\n", fields[2])
				continue
			}
			trade, err := service.ClosePortion(ctx, id, fraction)
			if err != nil {
				fmt.Printf("close rejected: %v\n", err)
				continue
			}
			fmt.Printf("closed %v @ %v, realized %.2f\n", trade.Quantity, trade.ExitPrice, trade.PNL)
		case "x", "exit":
			if len(fields) < 2 {
				fmt.Println("usage: x <id>")
				continue
			}
			id, err := uuid.Parse(fields[1])
			if err != nil {
				fmt.Printf("bad position id %q\n", fields[1])
				continue
			}
			trade, err := service.CloseAll(ctx, id)
			if err != nil {
				fmt.Printf("close rejected: %v\n", err)
				continue
			}
			fmt.Printf("closed %v @ %v, realized %.2f\n", trade.Quantity, trade.ExitPrice, trade.PNL)
		case "n", "note":
			service.SetNoteDraft(ctx, strings.Join(fields[1:], " "))
			fmt.Println("note set for next buy")
		case "t", "toggle-support":
			if len(fields) < 2 || (fields[1] != "on" && fields[1] != "off") {
				fmt.Println("usage: t on|off")
				continue
			}
			service.SetSupportRequired(ctx, fields[1] == "on")
			printStatus(service)
		case "e", "export":
			openPath := filepath.Join(cfg.ExportDir, "open_positions.csv")
			closedPath := filepath.Join(cfg.ExportDir, "closed_trades.csv")
			if err := utils.WriteOpenPositionsCSV(service.Positions(), service.Reports(), service.Snapshot().Price, openPath); err != nil {
				fmt.Printf("export failed: %v\n", err)
				continue
			}
			if err := utils.WriteClosedTradesCSV(service.Trades(), closedPath); err != nil {
				fmt.Printf("export failed: %v\n", err)
				continue
			}
			fmt.Printf("wrote %s and %s\n", openPath, closedPath)
		default:
			fmt.Println(helpText)
		}
	}
}

func printStatus(service *app.Service) {
	snap := service.Snapshot()
	result := service.Checklist()

	fmt.Printf("price: %v  verdict: %s\n", snap.Price, result.Verdict)
	for _, unmet := range result.Unmet {
		fmt.Printf("  unmet: %s\n", unmet)
	}

	positions := service.Positions()
	reports := service.Reports()
	if len(positions) == 0 {
		fmt.Println("no open positions")
	}
	for i, p := range positions {
		if i < len(reports) {
			r := reports[i]
			stall := ""
			if r.Stalled {
				stall = "  [stalled]"
			}
			fmt.Printf("  %s  entry %v  qty %v  pnl %.2f%% (%.2f USD)  %s -> %s  held %dd  best %.2f%%%s\n",
				p.ID, p.EntryPrice, p.Quantity, r.PnlPct, r.PnlUSD, r.Tier, r.Recommendation, r.DaysHeld, r.BestGainPct, stall)
		}
	}
	fmt.Printf("realized total: %.2f\n", service.RealizedTotal())
}
