package ports

import (
	"context"

	"spotChecklist/internal/domain"
)

// LedgerRepository defines the interface for durably round-tripping the
// ledger and controller state across process restarts.
//
// Implementations must tolerate absent stored state: finders return empty
// slices and GetState returns "" without error when nothing was persisted.
type LedgerRepository interface {
	// ReplacePositions overwrites the stored open-position set in a single
	// all-or-nothing operation.
	ReplacePositions(ctx context.Context, positions []*domain.Position) error
	// FindAllPositions retrieves every stored open position.
	FindAllPositions(ctx context.Context) ([]*domain.Position, error)
	// CreateTrade appends a closed-trade record.
	CreateTrade(ctx context.Context, trade *domain.ClosedTrade) error
	// FindAllTrades retrieves the closed-trade history, newest first.
	FindAllTrades(ctx context.Context) ([]*domain.ClosedTrade, error)
	// GetState retrieves an opaque controller state value by key.
	// Returns "" with a nil error when the key was never stored.
	GetState(ctx context.Context, key string) (string, error)
	// SetState stores an opaque controller state value under key.
	SetState(ctx context.Context, key, value string) error
}
