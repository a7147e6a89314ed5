package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetPortfolioRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cfg := types.RebalanceConfig{Cash: d("1000"), IncludeCommission: true}
	result := &types.RebalanceResult{
		Final: []types.FinalPosition{
			{Symbol: "MSFT", Shares: 77, Price: d("200"), Value: d("15400"), TargetWeight: d("0.5"), RealizedWeight: d("0.4967741935483871")},
			{Symbol: "AAPL", Shares: 155, Price: d("100"), Value: d("15500"), TargetWeight: d("0.5"), RealizedWeight: d("0.5")},
		},
		CashAfterSelling:    d("5588.5"),
		CashAfterBuying:     d("74.75"),
		TotalSellCommission: d("11.5"),
		TotalBuyCommission:  d("13.75"),
	}

	run := NewPortfolioRun(cfg, result)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, ModePortfolio, got.Mode)
	assert.True(t, got.IncludeCommission)
	assert.True(t, d("1000").Equal(got.Cash))
	assert.True(t, d("74.75").Equal(got.CashAfterBuying))
	assert.True(t, d("25.25").Equal(got.TotalCommission))
	assert.Equal(t, run.CreatedAt.Unix(), got.CreatedAt.Unix())

	require.Len(t, got.Positions, 2)
	assert.Equal(t, "AAPL", got.Positions[0].Symbol)
	assert.Equal(t, int64(155), got.Positions[0].Shares)
	assert.True(t, d("15500").Equal(got.Positions[0].Value))
	assert.True(t, d("0.4967741935483871").Equal(got.Positions[1].RealizedWeight))
}

func TestStore_IndexRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cfg := types.RebalanceConfig{
		Cash:         d("10000"),
		IndexWeights: []types.IndexWeight{{Symbol: "AAPL", Weight: d("0.6")}, {Symbol: "MSFT", Weight: d("0.4")}},
	}
	result := &types.IndexRebalanceResult{
		Orders: []types.Order{
			{Symbol: "AAPL", Shares: 60, Price: d("100"), Value: d("6000")},
			{Symbol: "MSFT", Shares: 20, Price: d("200"), Value: d("4000")},
		},
		TotalValue:    d("10000"),
		RemainingCash: decimal.Zero,
	}

	run := NewIndexRun(cfg, result)
	require.NoError(t, store.SaveRun(ctx, run))

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)

	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, ModeIndex, latest.Mode)
	require.Len(t, latest.Positions, 2)
	assert.True(t, d("0.6").Equal(latest.Positions[0].RealizedWeight))
	assert.True(t, d("0.6").Equal(latest.Positions[0].TargetWeight))
}

func TestStore_LatestRunEmpty(t *testing.T) {
	store := openTestStore(t)

	run, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestStore_GetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestStore_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	store, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)

	run := NewIndexRun(types.RebalanceConfig{Cash: d("5")}, &types.IndexRebalanceResult{RemainingCash: d("5")})
	require.NoError(t, store.SaveRun(ctx, run))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Positions)
	assert.True(t, d("5").Equal(got.CashAfterBuying))
}
