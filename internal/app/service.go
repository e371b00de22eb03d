// Package app hosts the controller that owns the snapshot, the ledger and
// the derived analytics. Every state transition goes through its methods,
// and analytics are explicitly recomputed after each snapshot replacement or
// ledger mutation.
package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"spotChecklist/config"
	"spotChecklist/internal/analytics"
	"spotChecklist/internal/checklist"
	"spotChecklist/internal/domain"
	"spotChecklist/internal/ledger"
	"spotChecklist/internal/ports"
)

// State keys persisted in the app_state table.
const (
	stateKeyLastAmount      = "last_tranche_amount"
	stateKeyNoteDraft       = "note_draft"
	stateKeySupportRequired = "support_required"
)

// Service orchestrates refreshes, ledger mutations and analytics recompute.
type Service struct {
	cfg    *config.Config
	logger ports.Logger
	source ports.SnapshotSource
	repo   ports.LedgerRepository
	ledger *ledger.Ledger

	// mu guards the controller state below. The ledger carries its own
	// lock; the service always acquires mu before touching the ledger, so
	// lock order is fixed.
	mu              sync.Mutex
	snapshot        domain.IndicatorSnapshot
	checklist       checklist.Result
	reports         []analytics.Report
	lastAmount      float64
	noteDraft       string
	supportRequired bool
}

// NewService creates the application controller.
func NewService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.SnapshotSource,
	repo ports.LedgerRepository,
	ldgr *ledger.Ledger,
) (*Service, error) {
	if cfg == nil || logger == nil || source == nil || repo == nil || ldgr == nil {
		return nil, fmt.Errorf("missing required dependencies for service")
	}
	return &Service{
		cfg:             cfg,
		logger:          logger,
		source:          source,
		repo:            repo,
		ledger:          ldgr,
		lastAmount:      cfg.DefaultTrancheAmount,
		supportRequired: cfg.SupportRequired,
	}, nil
}

// Load restores ledger and controller state from the repository. Absent or
// corrupt stored state degrades to empty defaults; Load never fails startup
// over state problems.
func (s *Service) Load(ctx context.Context) {
	positions, err := s.repo.FindAllPositions(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Failed to load stored positions, starting empty", map[string]interface{}{"error": err.Error()})
		positions = nil
	}
	trades, err := s.repo.FindAllTrades(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Failed to load stored trades, starting empty", map[string]interface{}{"error": err.Error()})
		trades = nil
	}
	s.ledger.Restore(positions, trades)

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw := s.loadState(ctx, stateKeyLastAmount); raw != "" {
		if v, perr := strconv.ParseFloat(raw, 64); perr == nil && v > 0 {
			s.lastAmount = v
		} else {
			s.logger.Warn(ctx, "Ignoring corrupt stored tranche amount", map[string]interface{}{"value": raw})
		}
	}
	if raw := s.loadState(ctx, stateKeyNoteDraft); raw != "" {
		s.noteDraft = raw
	}
	if raw := s.loadState(ctx, stateKeySupportRequired); raw != "" {
		if v, perr := strconv.ParseBool(raw); perr == nil {
			s.supportRequired = v
		} else {
			s.logger.Warn(ctx, "Ignoring corrupt stored support toggle", map[string]interface{}{"value": raw})
		}
	}
	s.snapshot.SupportRequired = s.supportRequired

	s.logger.Info(ctx, "State restored", map[string]interface{}{
		"openPositions": len(positions),
		"closedTrades":  len(trades),
	})
	s.recomputeLocked()
}

func (s *Service) loadState(ctx context.Context, key string) string {
	raw, err := s.repo.GetState(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "Failed to load stored state key", map[string]interface{}{"key": key, "error": err.Error()})
		return ""
	}
	return raw
}

// Refresh fetches a new snapshot and re-evaluates everything. The fetch runs
// outside the lock; overlapping refreshes are a benign race where the most
// recently completing one wins.
func (s *Service) Refresh(ctx context.Context) domain.IndicatorSnapshot {
	s.mu.Lock()
	prev := s.snapshot
	prev.SupportRequired = s.supportRequired
	s.mu.Unlock()

	next := s.source.Fetch(ctx, prev)

	s.mu.Lock()
	defer s.mu.Unlock()
	next.SupportRequired = s.supportRequired
	s.snapshot = next
	s.recomputeLocked()
	s.persistLocked(ctx)

	s.logger.Info(ctx, "Snapshot refreshed", map[string]interface{}{
		"price":   next.Price,
		"verdict": string(s.checklist.Verdict),
		"unmet":   len(s.checklist.Unmet),
	})
	return next
}

// Buy opens a tranche of amount quote currency at the snapshot price. The
// pending note draft is attached to the position and cleared on success.
func (s *Service) Buy(ctx context.Context, amount float64) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.ledger.Open(amount, s.snapshot.Price, s.noteDraft)
	if err != nil {
		return nil, err
	}

	s.lastAmount = amount
	s.noteDraft = "" // Consumed by the buy
	s.recomputeLocked()
	s.persistLocked(ctx)
	return pos, nil
}

// ClosePortion sells fraction of the position's remaining quantity at the
// snapshot price and records the realized slice.
func (s *Service) ClosePortion(ctx context.Context, id uuid.UUID, fraction float64) (*domain.ClosedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, err := s.ledger.ClosePortion(id, fraction, s.snapshot.Price)
	if err != nil {
		return nil, err
	}

	if perr := s.repo.CreateTrade(ctx, trade); perr != nil {
		s.logger.Warn(ctx, "Failed to persist closed trade", map[string]interface{}{"positionID": id.String(), "error": perr.Error()})
	}
	s.recomputeLocked()
	s.persistLocked(ctx)
	return trade, nil
}

// CloseAll sells the position's entire remaining quantity at the snapshot price.
func (s *Service) CloseAll(ctx context.Context, id uuid.UUID) (*domain.ClosedTrade, error) {
	return s.ClosePortion(ctx, id, 1)
}

// SetNoteDraft stores a note to attach to the next buy.
func (s *Service) SetNoteDraft(ctx context.Context, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteDraft = note
	s.persistLocked(ctx)
}

// SetSupportRequired toggles the near-support checklist requirement and
// re-evaluates the verdict.
func (s *Service) SetSupportRequired(ctx context.Context, required bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supportRequired = required
	s.snapshot.SupportRequired = required
	s.recomputeLocked()
	s.persistLocked(ctx)
}

// Snapshot returns the current indicator snapshot.
func (s *Service) Snapshot() domain.IndicatorSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Checklist returns the latest checklist evaluation.
func (s *Service) Checklist() checklist.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checklist
}

// Reports returns the latest per-position analytics.
func (s *Service) Reports() []analytics.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]analytics.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Positions returns the open positions.
func (s *Service) Positions() []*domain.Position {
	return s.ledger.Positions()
}

// Trades returns the closed trades, newest first.
func (s *Service) Trades() []*domain.ClosedTrade {
	return s.ledger.Trades()
}

// RealizedTotal returns the summed realized P&L over all closed trades.
func (s *Service) RealizedTotal() float64 {
	return s.ledger.RealizedTotal()
}

// LastAmount returns the most recently entered tranche amount.
func (s *Service) LastAmount() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAmount
}

// NoteDraft returns the pending note for the next buy.
func (s *Service) NoteDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noteDraft
}

// recomputeLocked re-evaluates the checklist and per-position analytics and
// writes the best-gain high-water mark back into the ledger. The write-back
// is the only analytics side effect. Caller holds mu.
func (s *Service) recomputeLocked() {
	s.checklist = checklist.Evaluate(s.snapshot)
	reports := analytics.Compute(s.ledger.Positions(), s.snapshot.Price, time.Now().UTC())
	for _, r := range reports {
		s.ledger.UpdateBestGain(r.PositionID, r.BestGainPct)
	}
	s.reports = reports
}

// persistLocked writes ledger and controller state through the repository.
// Persistence failures are logged, never rolled back into memory. Caller
// holds mu.
func (s *Service) persistLocked(ctx context.Context) {
	if err := s.repo.ReplacePositions(ctx, s.ledger.Positions()); err != nil {
		s.logger.Warn(ctx, "Failed to persist positions", map[string]interface{}{"error": err.Error()})
	}
	s.saveState(ctx, stateKeyLastAmount, strconv.FormatFloat(s.lastAmount, 'f', -1, 64))
	s.saveState(ctx, stateKeyNoteDraft, s.noteDraft)
	s.saveState(ctx, stateKeySupportRequired, strconv.FormatBool(s.supportRequired))
}

func (s *Service) saveState(ctx context.Context, key, value string) {
	if err := s.repo.SetState(ctx, key, value); err != nil {
		s.logger.Warn(ctx, "Failed to persist state key", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
