// Package allocation 根据指数权重计算目标持仓和买卖订单
package allocation

import (
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// PriceLookup 代码 -> 有效现价
type PriceLookup map[string]decimal.Decimal

// NewPriceLookup 构建报价表, 价格 <= 0 的报价不收录
func NewPriceLookup(quotes []types.PriceQuote) PriceLookup {
	lookup := make(PriceLookup, len(quotes))
	for _, q := range quotes {
		if q.Price.IsPositive() {
			lookup[q.Symbol] = q.Price
		}
	}
	return lookup
}

// Get 获取现价
func (l PriceLookup) Get(symbol string) (decimal.Decimal, bool) {
	price, ok := l[symbol]
	return price, ok
}

// WeightLookup 代码 -> 指数权重
type WeightLookup map[string]decimal.Decimal

// NewWeightLookup 构建权重表
func NewWeightLookup(weights []types.IndexWeight) WeightLookup {
	lookup := make(WeightLookup, len(weights))
	for _, w := range weights {
		lookup[w.Symbol] = w.Weight
	}
	return lookup
}

// Get 获取权重, 不存在时为0
func (l WeightLookup) Get(symbol string) decimal.Decimal {
	if w, ok := l[symbol]; ok {
		return w
	}
	return decimal.Zero
}

// HeldShares 代码 -> 当前持股数
type HeldShares map[string]int64

// NewHeldShares 构建持仓表
func NewHeldShares(holdings []types.Holding) HeldShares {
	held := make(HeldShares, len(holdings))
	for _, h := range holdings {
		held[h.Symbol] = h.Shares
	}
	return held
}

// TotalValue 总可投资金额 = 现金 + 持仓按现价估值
// 没有报价的持仓按0计
func TotalValue(cfg types.RebalanceConfig) decimal.Decimal {
	prices := NewPriceLookup(cfg.Prices)

	total := cfg.Cash
	for _, h := range cfg.Holdings {
		price, ok := prices.Get(h.Symbol)
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(h.Shares)))
	}
	return total
}

// TotalWeight 全部指数权重之和, 不做截断
func TotalWeight(weights []types.IndexWeight) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w.Weight)
	}
	return total
}

// TargetShares 计算每个标的的目标股数
// 目标股数 = floor(总金额 × 权重 / 总权重 / 现价); 无有效报价的标的不出现在结果中
func TargetShares(cfg types.RebalanceConfig) map[string]int64 {
	targets := make(map[string]int64)

	totalWeight := TotalWeight(cfg.IndexWeights)
	if totalWeight.IsZero() {
		// 调用方负责处理总权重为0的情况
		return targets
	}

	return sharesFor(TotalValue(cfg), totalWeight, cfg.IndexWeights, NewPriceLookup(cfg.Prices), targets)
}

// SharesForCash 只用现金计算每个标的可买入的股数
func SharesForCash(cash decimal.Decimal, weights []types.IndexWeight, quotes []types.PriceQuote) map[string]int64 {
	targets := make(map[string]int64)

	totalWeight := TotalWeight(weights)
	if totalWeight.IsZero() {
		return targets
	}

	return sharesFor(cash, totalWeight, weights, NewPriceLookup(quotes), targets)
}

func sharesFor(total, totalWeight decimal.Decimal, weights []types.IndexWeight, prices PriceLookup, out map[string]int64) map[string]int64 {
	for _, w := range weights {
		price, ok := prices.Get(w.Symbol)
		if !ok {
			continue
		}

		// 先乘后除, 避免权重比例的除法截断
		targetValue := total.Mul(w.Weight).Div(totalWeight)
		out[w.Symbol] = floorShares(targetValue, price)
	}
	return out
}

// floorShares 向零截断
func floorShares(value, price decimal.Decimal) int64 {
	q, _ := value.QuoRem(price, 0)
	return q.IntPart()
}
