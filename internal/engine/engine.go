package engine

import (
	"github.com/opsxjacky/index-rebalance/internal/allocation"
	"github.com/opsxjacky/index-rebalance/internal/cost"
	"github.com/opsxjacky/index-rebalance/internal/validation"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Engine 再平衡计算引擎
// 无可变状态, 可在多个 goroutine 间共享
type Engine struct {
	costModel cost.CostModel
	validator *validation.Validator
	log       zerolog.Logger
}

// New 创建计算引擎
func New(costModel cost.CostModel, validator *validation.Validator, log zerolog.Logger) *Engine {
	if costModel == nil {
		costModel = cost.NewZeroCostModel()
	}
	if validator == nil {
		validator = validation.NewDefault()
	}

	return &Engine{
		costModel: costModel,
		validator: validator,
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// RebalanceIndex 只用现金按指数权重建仓
func (e *Engine) RebalanceIndex(cfg types.RebalanceConfig) (*types.IndexRebalanceResult, error) {
	if err := e.validator.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	totalWeight := allocation.TotalWeight(cfg.IndexWeights)
	if cfg.Cash.IsZero() || totalWeight.IsZero() {
		e.log.Debug().
			Str("cash", cfg.Cash.String()).
			Str("total_weight", totalWeight.String()).
			Msg("Nothing to allocate")

		return &types.IndexRebalanceResult{
			Orders:          []types.Order{},
			TotalValue:      decimal.Zero,
			TotalCommission: decimal.Zero,
			RemainingCash:   cfg.Cash,
		}, nil
	}

	orders := allocation.IndexOrders(cfg, e.costModel)
	totalValue, totalCommission := allocation.SumOrders(orders)

	result := &types.IndexRebalanceResult{
		Orders:          orders,
		TotalValue:      totalValue,
		TotalCommission: totalCommission,
		// 开启佣金且资金全部用完时可能为负, 作为结果如实返回
		RemainingCash: cfg.Cash.Sub(totalValue).Sub(totalCommission),
	}

	e.log.Debug().
		Int("orders", len(orders)).
		Str("total_value", totalValue.String()).
		Str("remaining_cash", result.RemainingCash.String()).
		Msg("Index rebalance calculated")

	return result, nil
}

// RebalanceCurrentPortfolio 对现有持仓再平衡
// 假定先卖后买, 卖出所得用于买入
func (e *Engine) RebalanceCurrentPortfolio(cfg types.RebalanceConfig) (*types.RebalanceResult, error) {
	if err := e.validator.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	targets := allocation.TargetShares(cfg)
	if allocation.TotalWeight(cfg.IndexWeights).IsZero() {
		// 总权重为0时不调仓, 现有持仓原样保留
		e.log.Debug().Msg("Total index weight is zero, keeping current holdings")
		targets = allocation.NewHeldShares(cfg.Holdings)
	}

	sells := allocation.SellOrders(cfg, targets, e.costModel)
	buys := allocation.BuyOrders(cfg, targets, e.costModel)
	final := allocation.FinalPositions(cfg, targets)

	sellValue, sellCommission := allocation.SumOrders(sells)
	buyValue, buyCommission := allocation.SumOrders(buys)

	cashAfterSelling := cfg.Cash.Add(sellValue).Sub(sellCommission)
	cashAfterBuying := cashAfterSelling.Sub(buyValue).Sub(buyCommission)

	e.log.Debug().
		Int("sells", len(sells)).
		Int("buys", len(buys)).
		Int("positions", len(final)).
		Str("cash_after_selling", cashAfterSelling.String()).
		Str("cash_after_buying", cashAfterBuying.String()).
		Msg("Portfolio rebalance calculated")

	return &types.RebalanceResult{
		Sells:               sells,
		Buys:                buys,
		Final:               final,
		CashAfterSelling:    cashAfterSelling,
		CashAfterBuying:     cashAfterBuying,
		TotalSellValue:      sellValue,
		TotalBuyValue:       buyValue,
		TotalSellCommission: sellCommission,
		TotalBuyCommission:  buyCommission,
	}, nil
}
