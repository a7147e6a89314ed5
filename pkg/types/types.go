package types

import (
	"github.com/shopspring/decimal"
)

// IndexWeight 指数成分权重
type IndexWeight struct {
	Symbol string          `json:"symbol"`
	Weight decimal.Decimal `json:"weight"` // 不要求总和为1, 按总权重归一化
}

// PriceQuote 最新报价
type PriceQuote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Holding 当前持仓
type Holding struct {
	Symbol string          `json:"symbol"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"` // 成本价, 不是现价
}

// RebalanceConfig 再平衡计算输入
type RebalanceConfig struct {
	IncludeCommission bool
	Cash              decimal.Decimal
	IndexWeights      []IndexWeight
	Holdings          []Holding
	Prices            []PriceQuote
}

// Order 交易订单
type Order struct {
	Symbol     string          `json:"symbol"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Value      decimal.Decimal `json:"value"` // Shares × Price
	Commission decimal.Decimal `json:"commission"`
}

// FinalPosition 再平衡后的持仓快照
type FinalPosition struct {
	Symbol         string          `json:"symbol"`
	Shares         int64           `json:"shares"`
	Value          decimal.Decimal `json:"value"`
	Commission     decimal.Decimal `json:"commission"`
	Price          decimal.Decimal `json:"price"`
	TargetWeight   decimal.Decimal `json:"target_weight"`
	RealizedWeight decimal.Decimal `json:"realized_weight"`
}

// RebalanceResult 当前组合再平衡结果
type RebalanceResult struct {
	Sells               []Order         `json:"sells"`
	Buys                []Order         `json:"buys"`
	Final               []FinalPosition `json:"final"`
	CashAfterSelling    decimal.Decimal `json:"cash_after_selling"`
	CashAfterBuying     decimal.Decimal `json:"cash_after_buying"`
	TotalSellValue      decimal.Decimal `json:"total_sell_value"`
	TotalBuyValue       decimal.Decimal `json:"total_buy_value"`
	TotalSellCommission decimal.Decimal `json:"total_sell_commission"`
	TotalBuyCommission  decimal.Decimal `json:"total_buy_commission"`
}

// IndexRebalanceResult 纯现金按指数配置结果
type IndexRebalanceResult struct {
	Orders          []Order         `json:"orders"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	RemainingCash   decimal.Decimal `json:"remaining_cash"`
}

// CommissionConfig 佣金配置
type CommissionConfig struct {
	MinimumPrice   decimal.Decimal // 低于此价格按股收取固定费用
	FixedRate      decimal.Decimal // 每股固定费用
	PercentageRate decimal.Decimal // 成交额百分比费率
}

// DefaultCommissionConfig 默认佣金配置
func DefaultCommissionConfig() CommissionConfig {
	return CommissionConfig{
		MinimumPrice:   decimal.NewFromInt(12),
		FixedRate:      decimal.RequireFromString("0.03"),
		PercentageRate: decimal.RequireFromString("0.0025"),
	}
}

// ValidationConfig 输入校验边界
type ValidationConfig struct {
	MinimumCashAmount decimal.Decimal
	MaximumCashAmount decimal.Decimal
	MinimumPrice      decimal.Decimal
	MaximumPrice      decimal.Decimal
	MinimumShares     int64
	MaximumShares     int64
	MinimumWeight     decimal.Decimal
	MaximumWeight     decimal.Decimal
	MinSymbolLength   int
	MaxSymbolLength   int
}

// DefaultValidationConfig 默认校验边界
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MinimumCashAmount: decimal.Zero,
		MaximumCashAmount: decimal.NewFromInt(1_000_000_000),
		MinimumPrice:      decimal.RequireFromString("0.0001"),
		MaximumPrice:      decimal.NewFromInt(1_000_000),
		MinimumShares:     0,
		MaximumShares:     1_000_000_000,
		MinimumWeight:     decimal.Zero,
		MaximumWeight:     decimal.NewFromInt(1),
		MinSymbolLength:   1,
		MaxSymbolLength:   12,
	}
}

// WarningCode 警告代码
type WarningCode string

const (
	WarnMissingPrice WarningCode = "W2001" // 缺少有效报价, 该标的被跳过
)

// Warning 非致命问题
type Warning struct {
	Code    WarningCode `json:"code"`
	Symbol  string      `json:"symbol"`
	Message string      `json:"message"`
}
