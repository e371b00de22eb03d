package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuantityEpsilon is the residual base quantity below which a position is
// considered fully closed. It absorbs floating-point error from repeated
// partial exits.
const QuantityEpsilon = 1e-10

// Position is a single long spot tranche held in the ledger.
//
// Invariant: Notional ≈ Quantity * EntryPrice at all times. The entry price
// never changes; partial exits shrink quantity and notional together.
type Position struct {
	ID          uuid.UUID // Unique identifier, assigned on open
	Side        Side      // Always SideLong for spot tranches
	EntryPrice  float64   // Price at which the tranche was bought
	Quantity    float64   // Remaining size in base units
	Notional    float64   // Remaining quote-currency value at entry price
	OpenedAt    time.Time // Timestamp when the tranche was opened
	Note        string    // Optional free-text note captured at open
	BestGainPct float64   // Highest unrealized gain % ever reached, never decreases
}

// Clone returns a copy of the position so callers outside the ledger can
// hold it without racing ledger mutations.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}
