package domain

// Side represents the direction of a position. The ledger tracks spot
// tranches only, so every position is long; the constant exists so storage
// and exports carry an explicit side column.
type Side string

const (
	SideLong Side = "LONG"
)

// Verdict is the outcome of evaluating the buy checklist against a snapshot.
type Verdict string

const (
	VerdictBuy        Verdict = "BUY"
	VerdictTakeProfit Verdict = "TP"
	VerdictTrail      Verdict = "TRAIL"
	VerdictHold       Verdict = "HOLD"
)

// OITrend describes the open-interest direction reported by the market source.
type OITrend string

const (
	OIRising  OITrend = "rising"
	OIFlat    OITrend = "flat"
	OIFalling OITrend = "falling"
)

// Tier is the profit bracket a position currently sits in.
type Tier string

const (
	TierBelow5 Tier = "<5%"
	TierPlus5  Tier = "+5%"
	TierPlus7  Tier = "+7%"
	TierPlus10 Tier = "+10%+"
)

// TierFor selects the profit bracket for an unrounded gain percentage.
func TierFor(pnlPct float64) Tier {
	switch {
	case pnlPct >= 10:
		return TierPlus10
	case pnlPct >= 7:
		return TierPlus7
	case pnlPct >= 5:
		return TierPlus5
	default:
		return TierBelow5
	}
}

// Recommendation returns the suggested exit action for the tier.
func (t Tier) Recommendation() string {
	switch t {
	case TierPlus5:
		return "Exit 50%"
	case TierPlus7:
		return "Exit 30% (after 50%)"
	case TierPlus10:
		return "Exit 20% or Trail"
	default:
		return "Hold"
	}
}
