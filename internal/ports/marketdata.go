package ports

import (
	"context"

	"spotChecklist/internal/domain"
)

// SnapshotSource assembles a fresh indicator snapshot for one evaluation.
//
// Fetch never fails: any field no source can provide keeps prev's value, and
// a fully unreachable/unconfigured source set degrades to a built-in demo
// snapshot when prev carries no data yet.
type SnapshotSource interface {
	Fetch(ctx context.Context, prev domain.IndicatorSnapshot) domain.IndicatorSnapshot
}

// TickerSource supplies the last trade price and 24h quote volume for one
// symbol. Used as a fallback when the dedicated price/volume endpoints are
// not configured.
type TickerSource interface {
	SpotTicker(ctx context.Context) (price, quoteVolume float64, err error)
}
