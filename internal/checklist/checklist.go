// Package checklist evaluates the fixed six-point buy checklist against an
// indicator snapshot and produces a verdict. Evaluation is pure: it depends
// only on the input snapshot and never reads the clock or any other state.
package checklist

import "spotChecklist/internal/domain"

// Checklist thresholds.
const (
	rsiBandLow      = 35.0 // lower bound of the pullback RSI band
	rsiBandHigh     = 45.0 // upper bound of the pullback RSI band
	rsiOverbought   = 65.0 // RSI level that arms the take-profit verdict
	spotVolumeRatio = 0.9  // required spot volume as a fraction of futures volume
)

// Human-readable criterion labels, in fixed display order:
// RSI, MACD, funding, OI, spot-volume, support.
const (
	LabelRSIBand = "RSI: 1h or 4h in 35-45 pullback band"
	LabelMACD    = "MACD: 4h flattening or histogram >= 0"
	LabelFunding = "Funding: rate <= 0"
	LabelOI      = "OI: open interest not rising"
	LabelSpotVol = "Volume: spot >= 90% of futures"
	LabelSupport = "Support: price near support level"
)

// Result carries the verdict, the six per-criterion flags, and the list of
// unmet criteria explaining why BUY was not reached. Unmet is populated
// independently of the final verdict.
type Result struct {
	Verdict domain.Verdict

	RSIBand   bool
	MACDOK    bool
	FundingOK bool
	OIOK      bool
	SpotOK    bool
	SupportOK bool

	Unmet []string
}

// AllMet reports whether every checklist criterion holds.
func (r Result) AllMet() bool {
	return r.RSIBand && r.MACDOK && r.FundingOK && r.OIOK && r.SpotOK && r.SupportOK
}

func inBand(rsi float64) bool {
	return rsi >= rsiBandLow && rsi <= rsiBandHigh
}

// Evaluate maps a snapshot to a verdict plus the unmet criteria.
//
// Verdict precedence, first match wins:
//  1. BUY when all six criteria hold.
//  2. TP when any RSI timeframe is overbought and the 4h MACD histogram is
//     negative. Independent of the six criteria and outranks TRAIL.
//  3. TRAIL when momentum is intact (MACD OK), RSI has left the pullback
//     band upward, and open interest is not rising.
//  4. HOLD otherwise.
func Evaluate(s domain.IndicatorSnapshot) Result {
	r := Result{
		RSIBand:   inBand(s.RSI1h) || inBand(s.RSI4h),
		MACDOK:    s.MACD4hFlattening || s.MACDHist4h >= 0,
		FundingOK: s.FundingRate <= 0,
		OIOK:      s.OITrend != domain.OIRising,
		SpotOK:    s.SpotVolume24h >= spotVolumeRatio*s.FuturesVolume24h,
		SupportOK: !s.SupportRequired || s.NearSupport,
	}

	for _, c := range []struct {
		met   bool
		label string
	}{
		{r.RSIBand, LabelRSIBand},
		{r.MACDOK, LabelMACD},
		{r.FundingOK, LabelFunding},
		{r.OIOK, LabelOI},
		{r.SpotOK, LabelSpotVol},
		{r.SupportOK, LabelSupport},
	} {
		if !c.met {
			r.Unmet = append(r.Unmet, c.label)
		}
	}

	overbought := s.RSI1h >= rsiOverbought || s.RSI4h >= rsiOverbought || s.RSI1d >= rsiOverbought

	switch {
	case r.AllMet():
		r.Verdict = domain.VerdictBuy
	case overbought && s.MACDHist4h < 0:
		r.Verdict = domain.VerdictTakeProfit
	case r.MACDOK && (s.RSI1h > rsiBandHigh || s.RSI4h > rsiBandHigh) && r.OIOK:
		r.Verdict = domain.VerdictTrail
	default:
		r.Verdict = domain.VerdictHold
	}

	return r
}
