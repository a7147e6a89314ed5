package cost

import (
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// CostModel 成本模型接口
type CostModel interface {
	// Commission 计算一笔交易的佣金
	Commission(price decimal.Decimal, shares int64) decimal.Decimal
}

// DefaultCostModel 默认成本模型
type DefaultCostModel struct {
	MinimumPrice   decimal.Decimal // 低价股阈值
	FixedRate      decimal.Decimal // 每股固定费用
	PercentageRate decimal.Decimal // 成交额费率
}

// NewDefaultCostModel 创建默认成本模型
func NewDefaultCostModel(config types.CommissionConfig) *DefaultCostModel {
	return &DefaultCostModel{
		MinimumPrice:   config.MinimumPrice,
		FixedRate:      config.FixedRate,
		PercentageRate: config.PercentageRate,
	}
}

// NewZeroCostModel 创建零成本模型 (用于测试)
func NewZeroCostModel() *DefaultCostModel {
	return &DefaultCostModel{
		MinimumPrice:   decimal.Zero,
		FixedRate:      decimal.Zero,
		PercentageRate: decimal.Zero,
	}
}

// Commission 计算佣金
// 价格低于阈值时按股收取固定费用, 否则按成交额比例收取; 恰好等于阈值走比例分支
func (m *DefaultCostModel) Commission(price decimal.Decimal, shares int64) decimal.Decimal {
	qty := decimal.NewFromInt(shares)

	if price.LessThan(m.MinimumPrice) {
		return m.FixedRate.Mul(qty)
	}

	return price.Mul(qty).Mul(m.PercentageRate)
}
