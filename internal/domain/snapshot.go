package domain

// IndicatorSnapshot is one immutable set of market metrics used for exactly
// one checklist evaluation. A refresh replaces the snapshot wholesale;
// individual fields are never mutated after it has been produced.
type IndicatorSnapshot struct {
	RSI1h float64 // Relative Strength Index on the 1h timeframe (0-100)
	RSI4h float64 // Relative Strength Index on the 4h timeframe (0-100)
	RSI1d float64 // Relative Strength Index on the 1d timeframe (0-100)

	MACDHist1h float64 // MACD histogram value on the 1h timeframe (signed)
	MACDHist4h float64 // MACD histogram value on the 4h timeframe (signed)
	MACDHist1d float64 // MACD histogram value on the 1d timeframe (signed)

	MACD4hFlattening bool // Whether the 4h MACD histogram is flattening out

	FundingRate float64 // Perpetual funding rate in percent (signed)
	OITrend     OITrend // Open-interest direction (rising, flat, falling)

	SpotVolume24h    float64 // 24h spot volume, same unit as futures volume
	FuturesVolume24h float64 // 24h futures volume

	NearSupport     bool // Whether price currently sits near a support level
	SupportRequired bool // User toggle: require NearSupport for a BUY verdict

	Price float64 // Current spot price; 0 means unknown/unavailable
}

// IsZero reports whether the snapshot has never been populated. Only market
// fields count; SupportRequired is a user toggle, not fetched data.
func (s IndicatorSnapshot) IsZero() bool {
	z := s
	z.SupportRequired = false
	return z == IndicatorSnapshot{}
}

// DemoSnapshot returns the fixed built-in snapshot used when no data source
// is configured or reachable, so the checklist stays exercisable.
func DemoSnapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		RSI1h:            38.2,
		RSI4h:            41.7,
		RSI1d:            47.5,
		MACDHist1h:       -3.1,
		MACDHist4h:       12.4,
		MACDHist1d:       85.0,
		MACD4hFlattening: true,
		FundingRate:      -0.004,
		OITrend:          OIFlat,
		SpotVolume24h:    1.28e9,
		FuturesVolume24h: 1.31e9,
		NearSupport:      true,
		Price:            64250.0,
	}
}
