// Package ledger holds the open positions and closed-trade history and owns
// both collections exclusively. Mutations are serialized by an internal
// mutex and applied all-or-nothing: a rejected operation leaves no partial
// state behind.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"spotChecklist/internal/domain"
	"spotChecklist/internal/ports"
)

// Ledger is the in-memory store of spot tranches and their exit history.
type Ledger struct {
	logger ports.Logger

	mu        sync.Mutex
	positions []*domain.Position
	trades    []*domain.ClosedTrade // newest first
}

// New creates an empty ledger.
func New(logger ports.Logger) (*Ledger, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for ledger")
	}
	return &Ledger{logger: logger}, nil
}

// Open buys a tranche of amount quote currency at price and inserts the
// resulting position. Rejects non-positive amounts and unknown prices
// without mutating anything.
func (l *Ledger) Open(amount, price float64, note string) (*domain.Position, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("tranche amount must be positive, got %v: %w", amount, ports.ErrInvalidRequest)
	}
	if price <= 0 {
		return nil, fmt.Errorf("cannot open a position: %w", ports.ErrPriceUnknown)
	}

	pos := &domain.Position{
		ID:         uuid.New(),
		Side:       domain.SideLong,
		EntryPrice: price,
		Quantity:   amount / price,
		Notional:   amount,
		OpenedAt:   time.Now().UTC(),
		Note:       note,
	}

	l.mu.Lock()
	l.positions = append(l.positions, pos)
	l.mu.Unlock()

	l.logger.Info(context.Background(), "Position opened", map[string]interface{}{
		"positionID": pos.ID.String(),
		"entryPrice": pos.EntryPrice,
		"quantity":   pos.Quantity,
		"notional":   pos.Notional,
	})
	return pos.Clone(), nil
}

// ClosePortion sells fraction of the position's remaining quantity at price
// and records the realized slice as a ClosedTrade. When the remainder drops
// to the epsilon the position is removed entirely; otherwise quantity and
// notional shrink together and the entry price stays untouched.
func (l *Ledger) ClosePortion(id uuid.UUID, fraction, price float64) (*domain.ClosedTrade, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("close fraction must be in (0,1], got %v: %w", fraction, ports.ErrInvalidRequest)
	}
	if price <= 0 {
		return nil, fmt.Errorf("cannot close position %s: %w", id, ports.ErrPriceUnknown)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfLocked(id)
	if idx < 0 {
		return nil, fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
	}
	pos := l.positions[idx]

	quantity := pos.Quantity * fraction
	costBasis := quantity * pos.EntryPrice
	exitValue := quantity * price

	trade := &domain.ClosedTrade{
		PositionID: pos.ID,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Quantity:   quantity,
		PNL:        exitValue - costBasis,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   time.Now().UTC(),
		Note:       pos.Note,
	}
	l.trades = append([]*domain.ClosedTrade{trade}, l.trades...)

	remaining := pos.Quantity - quantity
	if remaining <= domain.QuantityEpsilon {
		l.positions = append(l.positions[:idx], l.positions[idx+1:]...)
		l.logger.Info(context.Background(), "Position fully closed", map[string]interface{}{
			"positionID": pos.ID.String(),
			"exitPrice":  price,
			"pnl":        trade.PNL,
		})
	} else {
		pos.Quantity = remaining
		pos.Notional = remaining * pos.EntryPrice
		l.logger.Info(context.Background(), "Position partially closed", map[string]interface{}{
			"positionID": pos.ID.String(),
			"fraction":   fraction,
			"exitPrice":  price,
			"pnl":        trade.PNL,
			"remaining":  remaining,
		})
	}

	t := *trade
	return &t, nil
}

// CloseAll sells the position's entire remaining quantity at price.
func (l *Ledger) CloseAll(id uuid.UUID, price float64) (*domain.ClosedTrade, error) {
	return l.ClosePortion(id, 1, price)
}

// RealizedTotal sums the realized P&L over all closed trades. It is derived
// fresh on every call, never kept as a running accumulator.
func (l *Ledger) RealizedTotal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, t := range l.trades {
		total += t.PNL
	}
	return total
}

// UpdateBestGain raises the position's best-ever favorable excursion to pct.
// Lower values are ignored; the field never decreases. Reports whether the
// position exists.
func (l *Ledger) UpdateBestGain(id uuid.UUID, pct float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfLocked(id)
	if idx < 0 {
		return false
	}
	if pct > l.positions[idx].BestGainPct {
		l.positions[idx].BestGainPct = pct
	}
	return true
}

// Positions returns copies of the open positions in opening order.
func (l *Ledger) Positions() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.Clone())
	}
	return out
}

// Trades returns copies of the closed trades, newest first.
func (l *Ledger) Trades() []*domain.ClosedTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.ClosedTrade, 0, len(l.trades))
	for _, t := range l.trades {
		c := *t
		out = append(out, &c)
	}
	return out
}

// Restore replaces the ledger contents with previously persisted state.
// Intended for startup only.
func (l *Ledger) Restore(positions []*domain.Position, trades []*domain.ClosedTrade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make([]*domain.Position, 0, len(positions))
	for _, p := range positions {
		l.positions = append(l.positions, p.Clone())
	}
	l.trades = make([]*domain.ClosedTrade, 0, len(trades))
	for _, t := range trades {
		c := *t
		l.trades = append(l.trades, &c)
	}
}

// indexOfLocked finds a position by id. Caller holds mu.
func (l *Ledger) indexOfLocked(id uuid.UUID) int {
	for i, p := range l.positions {
		if p.ID == id {
			return i
		}
	}
	return -1
}
