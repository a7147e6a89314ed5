package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// Validator 输入校验器
type Validator struct {
	config types.ValidationConfig
}

// New 创建校验器
func New(config types.ValidationConfig) *Validator {
	return &Validator{config: config}
}

// NewDefault 使用默认边界创建校验器
func NewDefault() *Validator {
	return New(types.DefaultValidationConfig())
}

// Config 返回校验边界
func (v *Validator) Config() types.ValidationConfig {
	return v.config
}

// ValidateConfig 校验再平衡输入
// 只检查现金和指数非空; 单个价格/权重由上游导入时校验
func (v *Validator) ValidateConfig(cfg types.RebalanceConfig) error {
	if err := v.ValidateCash(cfg.Cash); err != nil {
		return err
	}
	return v.ValidateIndex(cfg.IndexWeights)
}

// ValidateCash 校验现金金额
func (v *Validator) ValidateCash(cash decimal.Decimal) error {
	if cash.LessThan(v.config.MinimumCashAmount) || cash.GreaterThan(v.config.MaximumCashAmount) {
		return newError(ErrInvalidCashAmount, cash)
	}
	return nil
}

// ValidateIndex 校验指数非空
func (v *Validator) ValidateIndex(weights []types.IndexWeight) error {
	if len(weights) == 0 {
		return newError(ErrEmptyIndex, nil)
	}
	return nil
}

// ValidatePortfolio 校验持仓非空
func (v *Validator) ValidatePortfolio(holdings []types.Holding) error {
	if len(holdings) == 0 {
		return newError(ErrEmptyPortfolio, nil)
	}
	return nil
}

// ValidateSymbol 校验代码
func (v *Validator) ValidateSymbol(symbol string) error {
	trimmed := strings.TrimSpace(symbol)
	if trimmed == "" {
		return newError(ErrInvalidSymbol, symbol)
	}

	n := utf8.RuneCountInString(trimmed)
	if n < v.config.MinSymbolLength || n > v.config.MaxSymbolLength {
		return newError(ErrInvalidSymbol, symbol)
	}
	return nil
}

// ValidatePrice 校验价格, 必须为正且在边界内
func (v *Validator) ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return newError(ErrInvalidPrice, price)
	}
	if price.LessThan(v.config.MinimumPrice) || price.GreaterThan(v.config.MaximumPrice) {
		return newError(ErrInvalidPrice, price)
	}
	return nil
}

// ValidateShares 校验股数
func (v *Validator) ValidateShares(shares int64) error {
	if shares < 0 || shares < v.config.MinimumShares || shares > v.config.MaximumShares {
		return newError(ErrInvalidShares, shares)
	}
	return nil
}

// ValidateWeight 校验权重
func (v *Validator) ValidateWeight(weight decimal.Decimal) error {
	if weight.LessThan(v.config.MinimumWeight) || weight.GreaterThan(v.config.MaximumWeight) {
		return newError(ErrInvalidWeight, weight)
	}
	return nil
}

// ValidatePriceCoverage 检查每个指数成分和持仓都有有效报价
// 返回第一个缺失的代码
func (v *Validator) ValidatePriceCoverage(cfg types.RebalanceConfig) error {
	priced := make(map[string]bool, len(cfg.Prices))
	for _, q := range cfg.Prices {
		if q.Price.IsPositive() {
			priced[q.Symbol] = true
		}
	}

	for _, w := range cfg.IndexWeights {
		if !priced[w.Symbol] {
			return newError(ErrMissingPriceData, w.Symbol)
		}
	}
	for _, h := range cfg.Holdings {
		if !priced[h.Symbol] {
			return newError(ErrMissingPriceData, h.Symbol)
		}
	}
	return nil
}
