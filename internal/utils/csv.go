package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"spotChecklist/internal/analytics"
	"spotChecklist/internal/domain"
)

// Column sets and order are fixed for compatibility with downstream
// consumers of these exports.

// WriteOpenPositionsCSV writes the open-position export, one row per
// position, enriched with the matching analytics report.
func WriteOpenPositionsCSV(positions []*domain.Position, reports []analytics.Report, currentPrice float64, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	byID := make(map[uuid.UUID]analytics.Report, len(reports))
	for _, r := range reports {
		byID[r.PositionID] = r
	}

	writer.Write([]string{
		"id", "opened_at", "side", "entry_price", "quantity", "notional",
		"current_price", "pnl_usd", "pnl_pct", "tier", "recommendation",
		"days_held", "best_gain_pct", "stalled", "note",
	})

	for _, p := range positions {
		r := byID[p.ID]
		writer.Write([]string{
			p.ID.String(),
			p.OpenedAt.Format(time.RFC3339),
			string(p.Side),
			strconv.FormatFloat(p.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(p.Quantity, 'f', -1, 64),
			strconv.FormatFloat(p.Notional, 'f', -1, 64),
			strconv.FormatFloat(currentPrice, 'f', -1, 64),
			strconv.FormatFloat(r.PnlUSD, 'f', -1, 64),
			strconv.FormatFloat(r.PnlPct, 'f', -1, 64),
			string(r.Tier),
			r.Recommendation,
			strconv.Itoa(r.DaysHeld),
			strconv.FormatFloat(r.BestGainPct, 'f', -1, 64),
			strconv.FormatBool(r.Stalled),
			p.Note,
		})
	}
	return writer.Error()
}

// WriteClosedTradesCSV writes the closed-trade export, one row per exit slice.
func WriteClosedTradesCSV(trades []*domain.ClosedTrade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{
		"id", "opened_at", "closed_at", "side", "entry_price", "exit_price",
		"quantity", "pnl", "note",
	})

	for _, t := range trades {
		writer.Write([]string{
			t.PositionID.String(),
			t.OpenedAt.Format(time.RFC3339),
			t.ClosedAt.Format(time.RFC3339),
			string(t.Side),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.PNL, 'f', -1, 64),
			t.Note,
		})
	}
	return writer.Error()
}
