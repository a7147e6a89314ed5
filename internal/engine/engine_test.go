package engine

import (
	"testing"

	"github.com/opsxjacky/index-rebalance/internal/allocation"
	"github.com/opsxjacky/index-rebalance/internal/cost"
	"github.com/opsxjacky/index-rebalance/internal/validation"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine() *Engine {
	return New(
		cost.NewDefaultCostModel(types.DefaultCommissionConfig()),
		validation.NewDefault(),
		zerolog.Nop(),
	)
}

func indexConfig(cash string) types.RebalanceConfig {
	return types.RebalanceConfig{
		Cash: d(cash),
		IndexWeights: []types.IndexWeight{
			{Symbol: "AAPL", Weight: d("0.6")},
			{Symbol: "MSFT", Weight: d("0.4")},
		},
		Prices: []types.PriceQuote{
			{Symbol: "AAPL", Name: "Apple Inc.", Price: d("100")},
			{Symbol: "MSFT", Name: "Microsoft Corp.", Price: d("200")},
		},
	}
}

func TestRebalanceIndex_TwoStocks(t *testing.T) {
	result, err := newTestEngine().RebalanceIndex(indexConfig("10000"))
	require.NoError(t, err)

	require.Len(t, result.Orders, 2)
	assert.Equal(t, "AAPL", result.Orders[0].Symbol)
	assert.Equal(t, int64(60), result.Orders[0].Shares)
	assert.True(t, d("6000").Equal(result.Orders[0].Value))
	assert.Equal(t, "MSFT", result.Orders[1].Symbol)
	assert.Equal(t, int64(20), result.Orders[1].Shares)
	assert.True(t, d("4000").Equal(result.Orders[1].Value))

	assert.True(t, d("10000").Equal(result.TotalValue))
	assert.True(t, result.TotalCommission.IsZero())
	assert.True(t, result.RemainingCash.IsZero())
}

func TestRebalanceIndex_MissingPriceSkipped(t *testing.T) {
	cfg := indexConfig("10000")
	cfg.Prices = cfg.Prices[:1]

	result, err := newTestEngine().RebalanceIndex(cfg)
	require.NoError(t, err)

	require.Len(t, result.Orders, 1)
	assert.Equal(t, "AAPL", result.Orders[0].Symbol)
	assert.Equal(t, int64(60), result.Orders[0].Shares)

	warnings := MissingPriceWarnings(cfg)
	require.Len(t, warnings, 1)
	assert.Equal(t, "MSFT", warnings[0].Symbol)
	assert.Equal(t, types.WarnMissingPrice, warnings[0].Code)
}

func TestRebalanceIndex_ZeroPriceSkipped(t *testing.T) {
	cfg := indexConfig("10000")
	cfg.Prices[1].Price = decimal.Zero

	result, err := newTestEngine().RebalanceIndex(cfg)
	require.NoError(t, err)

	for _, o := range result.Orders {
		assert.NotEqual(t, "MSFT", o.Symbol)
	}
}

func TestRebalanceIndex_ZeroCashOrWeight(t *testing.T) {
	t.Run("zero cash", func(t *testing.T) {
		result, err := newTestEngine().RebalanceIndex(indexConfig("0"))
		require.NoError(t, err)

		assert.Empty(t, result.Orders)
		assert.True(t, result.TotalValue.IsZero())
		assert.True(t, result.TotalCommission.IsZero())
		assert.True(t, result.RemainingCash.IsZero())
	})

	t.Run("all weights zero", func(t *testing.T) {
		cfg := indexConfig("2500")
		cfg.IndexWeights[0].Weight = decimal.Zero
		cfg.IndexWeights[1].Weight = decimal.Zero

		result, err := newTestEngine().RebalanceIndex(cfg)
		require.NoError(t, err)

		assert.Empty(t, result.Orders)
		assert.True(t, d("2500").Equal(result.RemainingCash))
	})
}

func TestRebalanceIndex_ValidationErrors(t *testing.T) {
	e := newTestEngine()

	_, err := e.RebalanceIndex(indexConfig("-1"))
	assert.ErrorIs(t, err, validation.ErrInvalidCashAmount)

	_, err = e.RebalanceIndex(indexConfig("1000000001"))
	assert.ErrorIs(t, err, validation.ErrInvalidCashAmount)

	cfg := indexConfig("100")
	cfg.IndexWeights = nil
	_, err = e.RebalanceIndex(cfg)
	assert.ErrorIs(t, err, validation.ErrEmptyIndex)

	_, err = e.RebalanceCurrentPortfolio(cfg)
	assert.ErrorIs(t, err, validation.ErrEmptyIndex)
}

func TestRebalanceIndex_WithCommission(t *testing.T) {
	cfg := indexConfig("10000")
	cfg.IncludeCommission = true

	result, err := newTestEngine().RebalanceIndex(cfg)
	require.NoError(t, err)

	// 6000 × 0.25% + 4000 × 0.25%
	assert.True(t, d("25").Equal(result.TotalCommission))
	// 全部资金已用完, 佣金使剩余现金为负
	assert.True(t, d("-25").Equal(result.RemainingCash))
}

func TestRebalanceIndex_Conservation(t *testing.T) {
	configs := []types.RebalanceConfig{
		indexConfig("10000"),
		indexConfig("12345.67"),
		{
			Cash: d("98765.43"),
			IndexWeights: []types.IndexWeight{
				{Symbol: "AAA", Weight: d("0.12")},
				{Symbol: "BBB", Weight: d("0.33")},
				{Symbol: "CCC", Weight: d("0.07")},
				{Symbol: "DDD", Weight: d("0.48")},
			},
			Prices: []types.PriceQuote{
				{Symbol: "AAA", Price: d("9.87")},
				{Symbol: "BBB", Price: d("143.2")},
				{Symbol: "CCC", Price: d("11.99")},
				{Symbol: "DDD", Price: d("512.05")},
			},
		},
	}

	for _, cfg := range configs {
		for _, withCommission := range []bool{false, true} {
			cfg.IncludeCommission = withCommission

			result, err := newTestEngine().RebalanceIndex(cfg)
			require.NoError(t, err)

			sum := result.TotalValue.Add(result.TotalCommission).Add(result.RemainingCash)
			assert.True(t, cfg.Cash.Equal(sum), "cash %s, sum %s", cfg.Cash, sum)
			if !withCommission {
				assert.True(t, result.TotalCommission.IsZero())
			}
		}
	}
}

func TestRebalanceIndex_Proportionality(t *testing.T) {
	cfg := types.RebalanceConfig{
		Cash: d("54321"),
		IndexWeights: []types.IndexWeight{
			{Symbol: "AAA", Weight: d("3")},
			{Symbol: "BBB", Weight: d("5")},
			{Symbol: "CCC", Weight: d("1")},
			{Symbol: "DDD", Weight: d("2.5")},
		},
		Prices: []types.PriceQuote{
			{Symbol: "AAA", Price: d("37.5")},
			{Symbol: "BBB", Price: d("37.5")},
			{Symbol: "CCC", Price: d("37.5")},
			{Symbol: "DDD", Price: d("37.5")},
		},
	}
	totalWeight := allocation.TotalWeight(cfg.IndexWeights)
	weights := allocation.NewWeightLookup(cfg.IndexWeights)

	result, err := newTestEngine().RebalanceIndex(cfg)
	require.NoError(t, err)
	require.Len(t, result.Orders, 4)

	for _, o := range result.Orders {
		ideal := cfg.Cash.Mul(weights.Get(o.Symbol)).Div(totalWeight)
		gap := ideal.Sub(o.Value)

		assert.True(t, gap.GreaterThanOrEqual(decimal.Zero), o.Symbol)
		assert.True(t, gap.LessThan(o.Price), o.Symbol)
		assert.True(t, o.Price.Mul(decimal.NewFromInt(o.Shares)).Equal(o.Value))
	}
}

func TestRebalanceIndex_PermissiveWeights(t *testing.T) {
	cfg := types.RebalanceConfig{
		Cash: d("1000"),
		IndexWeights: []types.IndexWeight{
			{Symbol: "AAA", Weight: d("3")},
			{Symbol: "BBB", Weight: d("1")},
		},
		Prices: []types.PriceQuote{
			{Symbol: "AAA", Price: d("10")},
			{Symbol: "BBB", Price: d("10")},
		},
	}

	result, err := newTestEngine().RebalanceIndex(cfg)
	require.NoError(t, err)

	require.Len(t, result.Orders, 2)
	assert.Equal(t, int64(75), result.Orders[0].Shares)
	assert.Equal(t, int64(25), result.Orders[1].Shares)
}

func portfolioConfig() types.RebalanceConfig {
	return types.RebalanceConfig{
		Cash: decimal.Zero,
		IndexWeights: []types.IndexWeight{
			{Symbol: "AAPL", Weight: d("0.5")},
			{Symbol: "MSFT", Weight: d("0.5")},
		},
		Holdings: []types.Holding{
			{Symbol: "AAPL", Shares: 100, Price: d("100")},
			{Symbol: "MSFT", Shares: 100, Price: d("200")},
		},
		Prices: []types.PriceQuote{
			{Symbol: "AAPL", Price: d("100")},
			{Symbol: "MSFT", Price: d("200")},
		},
	}
}

func TestRebalanceCurrentPortfolio_TwoStocks(t *testing.T) {
	result, err := newTestEngine().RebalanceCurrentPortfolio(portfolioConfig())
	require.NoError(t, err)

	require.Len(t, result.Sells, 1)
	assert.Equal(t, "MSFT", result.Sells[0].Symbol)
	assert.Equal(t, int64(25), result.Sells[0].Shares)
	assert.True(t, d("200").Equal(result.Sells[0].Price))
	assert.True(t, d("5000").Equal(result.Sells[0].Value))

	require.Len(t, result.Buys, 1)
	assert.Equal(t, "AAPL", result.Buys[0].Symbol)
	assert.Equal(t, int64(50), result.Buys[0].Shares)
	assert.True(t, d("5000").Equal(result.Buys[0].Value))

	require.Len(t, result.Final, 2)
	assert.Equal(t, int64(150), result.Final[0].Shares)
	assert.Equal(t, int64(75), result.Final[1].Shares)

	assert.True(t, d("5000").Equal(result.CashAfterSelling))
	assert.True(t, result.CashAfterBuying.IsZero())
	assert.True(t, d("5000").Equal(result.TotalSellValue))
	assert.True(t, d("5000").Equal(result.TotalBuyValue))
}

func TestRebalanceCurrentPortfolio_CashFlowWithCommission(t *testing.T) {
	cfg := portfolioConfig()
	cfg.IncludeCommission = true
	cfg.Cash = d("1000")

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	expectedAfterSelling := cfg.Cash.Add(result.TotalSellValue).Sub(result.TotalSellCommission)
	assert.True(t, expectedAfterSelling.Equal(result.CashAfterSelling))

	expectedAfterBuying := result.CashAfterSelling.Sub(result.TotalBuyValue).Sub(result.TotalBuyCommission)
	assert.True(t, expectedAfterBuying.Equal(result.CashAfterBuying))

	assert.True(t, result.TotalSellCommission.IsPositive())
	assert.True(t, result.TotalBuyCommission.IsPositive())
	for _, p := range result.Final {
		assert.True(t, p.Commission.IsZero())
	}
}

func TestRebalanceCurrentPortfolio_Idempotent(t *testing.T) {
	cfg := portfolioConfig()
	cfg.Holdings = []types.Holding{
		{Symbol: "AAPL", Shares: 150, Price: d("90")},
		{Symbol: "MSFT", Shares: 75, Price: d("210")},
	}

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	assert.Empty(t, result.Sells)
	assert.Empty(t, result.Buys)
	assert.Len(t, result.Final, 2)
	assert.True(t, result.CashAfterBuying.IsZero())
}

func TestRebalanceCurrentPortfolio_MissingPriceSkipped(t *testing.T) {
	cfg := portfolioConfig()
	cfg.IndexWeights = append(cfg.IndexWeights, types.IndexWeight{Symbol: "NVDA", Weight: d("0.2")})
	cfg.Holdings = append(cfg.Holdings, types.Holding{Symbol: "GE", Shares: 10, Price: d("80")})

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	for _, list := range [][]types.Order{result.Sells, result.Buys} {
		for _, o := range list {
			assert.NotContains(t, []string{"NVDA", "GE"}, o.Symbol)
			assert.Greater(t, o.Shares, int64(0))
		}
	}
	for _, p := range result.Final {
		assert.NotEqual(t, "NVDA", p.Symbol)
	}

	warnings := MissingPriceWarnings(cfg)
	require.Len(t, warnings, 2)
	assert.Equal(t, "GE", warnings[0].Symbol)
	assert.Equal(t, "NVDA", warnings[1].Symbol)
}

func TestRebalanceCurrentPortfolio_SellsHoldingOutsideIndex(t *testing.T) {
	cfg := portfolioConfig()
	cfg.Holdings = append(cfg.Holdings, types.Holding{Symbol: "IBM", Shares: 10, Price: d("120")})
	cfg.Prices = append(cfg.Prices, types.PriceQuote{Symbol: "IBM", Price: d("150")})

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	var ibm *types.Order
	for i := range result.Sells {
		if result.Sells[i].Symbol == "IBM" {
			ibm = &result.Sells[i]
		}
	}
	require.NotNil(t, ibm)
	assert.Equal(t, int64(10), ibm.Shares)
	assert.True(t, d("1500").Equal(ibm.Value))

	assert.Empty(t, MissingPriceWarnings(cfg))
}

func TestNew_Defaults(t *testing.T) {
	e := New(nil, nil, zerolog.Nop())

	cfg := indexConfig("10000")
	cfg.IncludeCommission = true
	result, err := e.RebalanceIndex(cfg)
	require.NoError(t, err)

	// 零成本模型
	assert.True(t, result.TotalCommission.IsZero())
}

func TestRebalanceCurrentPortfolio_ZeroShareHoldingNotWarned(t *testing.T) {
	cfg := portfolioConfig()
	cfg.Holdings = append(cfg.Holdings, types.Holding{Symbol: "OLD", Shares: 0, Price: d("4")})
	cfg.Prices = append(cfg.Prices, types.PriceQuote{Symbol: "OLD", Price: d("5")})

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	for _, o := range append(result.Sells, result.Buys...) {
		assert.NotEqual(t, "OLD", o.Symbol)
	}
	assert.Empty(t, MissingPriceWarnings(cfg))
}

func TestRebalanceCurrentPortfolio_NegativeWeight(t *testing.T) {
	cfg := types.RebalanceConfig{
		Cash: decimal.Zero,
		IndexWeights: []types.IndexWeight{
			{Symbol: "AAA", Weight: d("-0.2")},
			{Symbol: "BBB", Weight: d("1.2")},
		},
		Holdings: []types.Holding{
			{Symbol: "AAA", Shares: 10, Price: d("10")},
			{Symbol: "BBB", Shares: 10, Price: d("10")},
		},
		Prices: []types.PriceQuote{
			{Symbol: "AAA", Price: d("10")},
			{Symbol: "BBB", Price: d("10")},
		},
	}

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	// 负权重的目标为负, 卖出超过持有数量
	require.Len(t, result.Sells, 1)
	assert.Equal(t, "AAA", result.Sells[0].Symbol)
	assert.Equal(t, int64(14), result.Sells[0].Shares)

	require.Len(t, result.Buys, 1)
	assert.Equal(t, "BBB", result.Buys[0].Symbol)
	assert.Equal(t, int64(14), result.Buys[0].Shares)

	require.Len(t, result.Final, 2)
	assert.Equal(t, int64(-4), result.Final[0].Shares)
	assert.True(t, d("-0.2").Equal(result.Final[0].RealizedWeight))
	assert.Equal(t, int64(24), result.Final[1].Shares)

	assert.True(t, d("140").Equal(result.CashAfterSelling))
	assert.True(t, result.CashAfterBuying.IsZero())
}

func TestRebalanceCurrentPortfolio_ZeroTotalWeight(t *testing.T) {
	cfg := portfolioConfig()
	cfg.Cash = d("300")
	cfg.IndexWeights[0].Weight = decimal.Zero
	cfg.IndexWeights[1].Weight = decimal.Zero

	result, err := newTestEngine().RebalanceCurrentPortfolio(cfg)
	require.NoError(t, err)

	assert.Empty(t, result.Sells)
	assert.Empty(t, result.Buys)

	require.Len(t, result.Final, 2)
	assert.Equal(t, "AAPL", result.Final[0].Symbol)
	assert.Equal(t, int64(100), result.Final[0].Shares)
	assert.True(t, result.Final[0].TargetWeight.IsZero())
	assert.Equal(t, int64(100), result.Final[1].Shares)

	assert.True(t, d("300").Equal(result.CashAfterSelling))
	assert.True(t, d("300").Equal(result.CashAfterBuying))
}
