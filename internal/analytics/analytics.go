// Package analytics derives per-position P&L, profit tier, exit
// recommendation and the stall flag from the open positions and the current
// price. Compute is pure; the caller writes BestGainPct back into the
// ledger, which is the only analytics output that persists.
package analytics

import (
	"math"
	"time"

	"github.com/google/uuid"

	"spotChecklist/internal/domain"
)

// Stall ("time to bounce") thresholds: a position held at least this many
// days whose best-ever gain never reached the minimum is flagged.
const (
	stallAgeDays    = 5
	stallMinGainPct = 3.0
)

// Report is the derived view of one open position at the current price.
type Report struct {
	PositionID     uuid.UUID
	PnlPct         float64     // unrealized gain %, rounded to 2 decimals; 0 when price unknown
	PnlUSD         float64     // unrealized quote-currency P&L on the remaining notional
	BestGainPct    float64     // max(previous best, current gain), rounded
	Tier           domain.Tier // profit bracket on the unrounded gain
	Recommendation string      // suggested exit action for the tier
	DaysHeld       int         // whole days since open, clamped to >= 0
	Stalled        bool        // time-to-bounce flag
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute derives a report per open position. Idempotent: recomputing with
// the same inputs yields the same output, and the input positions are never
// mutated.
func Compute(positions []*domain.Position, price float64, now time.Time) []Report {
	reports := make([]Report, 0, len(positions))
	for _, pos := range positions {
		var rawPct float64
		if price > 0 {
			rawPct = (price - pos.EntryPrice) / pos.EntryPrice * 100
		}
		pct := round2(rawPct)

		// Only upside counts toward the high-water mark.
		gain := pct
		if gain < 0 {
			gain = 0
		}
		best := pos.BestGainPct
		if gain > best {
			best = gain
		}
		best = round2(best)

		days := int(now.Sub(pos.OpenedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}

		tier := domain.TierFor(rawPct)
		reports = append(reports, Report{
			PositionID:     pos.ID,
			PnlPct:         pct,
			PnlUSD:         round2(pct / 100 * pos.Notional),
			BestGainPct:    best,
			Tier:           tier,
			Recommendation: tier.Recommendation(),
			DaysHeld:       days,
			Stalled:        days >= stallAgeDays && best < stallMinGainPct,
		})
	}
	return reports
}
