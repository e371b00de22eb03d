package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotChecklist/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a repository backed by a temp database file.
func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewRepository(Config{DBPath: dbPath, Logger: &mockLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testPosition(openedAt time.Time) *domain.Position {
	return &domain.Position{
		ID:          uuid.New(),
		Side:        domain.SideLong,
		EntryPrice:  100000,
		Quantity:    0.1,
		Notional:    10000,
		OpenedAt:    openedAt,
		Note:        "first tranche",
		BestGainPct: 4.2,
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	repo, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
	assert.Nil(t, repo)
}

func TestReplacePositions_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	first := testPosition(now.Add(-48 * time.Hour))
	second := testPosition(now)
	second.Note = ""
	second.BestGainPct = 0

	require.NoError(t, repo.ReplacePositions(ctx, []*domain.Position{second, first}))

	got, err := repo.FindAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Retrieval orders by opening time regardless of insert order.
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Equal(t, first.EntryPrice, got[0].EntryPrice)
	assert.Equal(t, first.Quantity, got[0].Quantity)
	assert.Equal(t, first.Notional, got[0].Notional)
	assert.Equal(t, "first tranche", got[0].Note)
	assert.Equal(t, 4.2, got[0].BestGainPct)
	assert.True(t, first.OpenedAt.Equal(got[0].OpenedAt))
}

func TestReplacePositions_Overwrites(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.ReplacePositions(ctx, []*domain.Position{testPosition(now), testPosition(now)}))
	survivor := testPosition(now)
	require.NoError(t, repo.ReplacePositions(ctx, []*domain.Position{survivor}))

	got, err := repo.FindAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, survivor.ID, got[0].ID)
}

func TestReplacePositions_EmptyClearsTable(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplacePositions(ctx, []*domain.Position{testPosition(time.Now().UTC())}))
	require.NoError(t, repo.ReplacePositions(ctx, nil))

	got, err := repo.FindAllPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateTrade_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	opened := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)
	closed := opened.Add(20 * time.Hour)
	trade := &domain.ClosedTrade{
		PositionID: uuid.New(),
		Side:       domain.SideLong,
		EntryPrice: 100000,
		ExitPrice:  107500,
		Quantity:   0.03,
		PNL:        225,
		OpenedAt:   opened,
		ClosedAt:   closed,
		Note:       "partial exit",
	}
	require.NoError(t, repo.CreateTrade(ctx, trade))

	got, err := repo.FindAllTrades(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, trade.PositionID, got[0].PositionID)
	assert.Equal(t, trade.ExitPrice, got[0].ExitPrice)
	assert.Equal(t, trade.PNL, got[0].PNL)
	assert.Equal(t, "partial exit", got[0].Note)
	assert.True(t, closed.Equal(got[0].ClosedAt))
}

func TestFindAllTrades_NewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		trade := &domain.ClosedTrade{
			PositionID: uuid.New(),
			Side:       domain.SideLong,
			EntryPrice: 100,
			ExitPrice:  float64(100 + i),
			Quantity:   1,
			PNL:        float64(i),
			OpenedAt:   base.Add(-time.Hour),
			ClosedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateTrade(ctx, trade))
	}

	got, err := repo.FindAllTrades(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 102.0, got[0].ExitPrice)
	assert.Equal(t, 100.0, got[2].ExitPrice)
}

func TestFindAllPositions_SkipsCorruptRows(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	good := testPosition(time.Now().UTC())
	require.NoError(t, repo.ReplacePositions(ctx, []*domain.Position{good}))

	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO positions (id, side, entry_price, quantity, notional, opened_at, note, best_gain_pct)
		VALUES ('not-a-uuid', 'LONG', 1, 1, 1, ?, '', 0)`, time.Now().UTC())
	require.NoError(t, err)

	got, err := repo.FindAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "corrupt row is skipped, not fatal")
	assert.Equal(t, good.ID, got[0].ID)
}

func TestState(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	// Absent key reads as empty without error.
	value, err := repo.GetState(ctx, "last_tranche_amount")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, repo.SetState(ctx, "last_tranche_amount", "2500"))
	value, err = repo.GetState(ctx, "last_tranche_amount")
	require.NoError(t, err)
	assert.Equal(t, "2500", value)

	// Upsert overwrites in place.
	require.NoError(t, repo.SetState(ctx, "last_tranche_amount", "5000"))
	value, err = repo.GetState(ctx, "last_tranche_amount")
	require.NoError(t, err)
	assert.Equal(t, "5000", value)
}
