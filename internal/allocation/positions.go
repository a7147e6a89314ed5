package allocation

import (
	"sort"

	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// FinalPositions 计算再平衡后的持仓及实际权重
// 实际权重 = 市值 / 总金额, 分母不扣除佣金; 快照不记佣金
func FinalPositions(cfg types.RebalanceConfig, targets map[string]int64) []types.FinalPosition {
	prices := NewPriceLookup(cfg.Prices)
	weights := NewWeightLookup(cfg.IndexWeights)
	totalValue := TotalValue(cfg)

	positions := make([]types.FinalPosition, 0, len(targets))
	for symbol, shares := range targets {
		price, ok := prices.Get(symbol)
		if !ok {
			continue
		}

		value := price.Mul(decimal.NewFromInt(shares))
		realized := decimal.Zero
		if !totalValue.IsZero() {
			realized = value.Div(totalValue)
		}

		positions = append(positions, types.FinalPosition{
			Symbol:         symbol,
			Shares:         shares,
			Value:          value,
			Commission:     decimal.Zero,
			Price:          price,
			TargetWeight:   weights.Get(symbol),
			RealizedWeight: realized,
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}
