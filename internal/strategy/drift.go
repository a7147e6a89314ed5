package strategy

import (
	"sort"

	"github.com/opsxjacky/index-rebalance/internal/allocation"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// Drift 单个标的当前权重与目标权重的偏离
type Drift struct {
	Symbol        string          `json:"symbol"`
	CurrentWeight decimal.Decimal `json:"current_weight"`
	TargetWeight  decimal.Decimal `json:"target_weight"` // 已按总权重归一化
	Deviation     decimal.Decimal `json:"deviation"`     // 当前 - 目标
}

// CurrentDrift 计算指数成分和持仓的权重偏离
// 无有效报价的标的不参与计算
func CurrentDrift(cfg types.RebalanceConfig) []Drift {
	prices := allocation.NewPriceLookup(cfg.Prices)
	totalValue := allocation.TotalValue(cfg)
	totalWeight := allocation.TotalWeight(cfg.IndexWeights)

	current := make(map[string]decimal.Decimal)
	for _, h := range cfg.Holdings {
		price, ok := prices.Get(h.Symbol)
		if !ok || totalValue.IsZero() {
			continue
		}
		current[h.Symbol] = price.Mul(decimal.NewFromInt(h.Shares)).Div(totalValue)
	}

	target := make(map[string]decimal.Decimal)
	for _, w := range cfg.IndexWeights {
		if _, ok := prices.Get(w.Symbol); !ok {
			continue
		}
		if totalWeight.IsZero() {
			target[w.Symbol] = decimal.Zero
			continue
		}
		target[w.Symbol] = w.Weight.Div(totalWeight)
	}

	symbols := make(map[string]bool, len(current)+len(target))
	for s := range current {
		symbols[s] = true
	}
	for s := range target {
		symbols[s] = true
	}

	drifts := make([]Drift, 0, len(symbols))
	for symbol := range symbols {
		cw := current[symbol]
		tw := target[symbol]
		drifts = append(drifts, Drift{
			Symbol:        symbol,
			CurrentWeight: cw,
			TargetWeight:  tw,
			Deviation:     cw.Sub(tw),
		})
	}

	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].Symbol < drifts[j].Symbol
	})
	return drifts
}

// ShouldRebalance 判断是否需要再平衡
// 阈值 <= 0 时总是再平衡; 否则任一标的偏离绝对值超过阈值才再平衡
func ShouldRebalance(cfg types.RebalanceConfig, threshold decimal.Decimal) bool {
	if !threshold.IsPositive() {
		return true
	}

	for _, d := range CurrentDrift(cfg) {
		if d.Deviation.Abs().GreaterThan(threshold) {
			return true
		}
	}
	return false
}

// MaxDeviation 最大偏离绝对值
func MaxDeviation(drifts []Drift) decimal.Decimal {
	max := decimal.Zero
	for _, d := range drifts {
		if abs := d.Deviation.Abs(); abs.GreaterThan(max) {
			max = abs
		}
	}
	return max
}
