package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClosedTrade records one partial or final exit slice of a position.
// It is immutable once created.
type ClosedTrade struct {
	PositionID uuid.UUID // Identifier of the position this slice came from
	Side       Side      // Side of the originating position
	EntryPrice float64   // Entry price of the originating position
	ExitPrice  float64   // Price at which this slice was sold
	Quantity   float64   // Base units closed in this slice
	PNL        float64   // Realized quote-currency profit for this slice
	OpenedAt   time.Time // When the originating position was opened
	ClosedAt   time.Time // When this slice was closed
	Note       string    // Note carried over from the originating position
}
