package allocation

import (
	"sort"

	"github.com/opsxjacky/index-rebalance/internal/cost"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// SellOrders 生成卖出订单
// 持股数超过目标股数的持仓按现价卖出差额, 目标中不存在的持仓目标视为0
func SellOrders(cfg types.RebalanceConfig, targets map[string]int64, costModel cost.CostModel) []types.Order {
	prices := NewPriceLookup(cfg.Prices)
	orders := make([]types.Order, 0)

	for _, h := range cfg.Holdings {
		price, ok := prices.Get(h.Symbol)
		if !ok {
			continue
		}

		target := targets[h.Symbol]
		if h.Shares <= target {
			continue
		}

		orders = append(orders, newOrder(cfg, h.Symbol, h.Shares-target, price, costModel))
	}

	sortBySymbol(orders)
	return orders
}

// BuyOrders 生成买入订单
// 目标股数超过当前持股数 (未持有视为0) 的标的买入差额
func BuyOrders(cfg types.RebalanceConfig, targets map[string]int64, costModel cost.CostModel) []types.Order {
	prices := NewPriceLookup(cfg.Prices)
	held := NewHeldShares(cfg.Holdings)
	orders := make([]types.Order, 0)

	for symbol, target := range targets {
		price, ok := prices.Get(symbol)
		if !ok {
			continue
		}

		current := held[symbol]
		if target <= current {
			continue
		}

		orders = append(orders, newOrder(cfg, symbol, target-current, price, costModel))
	}

	sortBySymbol(orders)
	return orders
}

// IndexOrders 纯现金按指数权重生成买入订单, 0股的标的不生成订单
func IndexOrders(cfg types.RebalanceConfig, costModel cost.CostModel) []types.Order {
	prices := NewPriceLookup(cfg.Prices)
	shares := SharesForCash(cfg.Cash, cfg.IndexWeights, cfg.Prices)
	orders := make([]types.Order, 0, len(shares))

	for _, w := range cfg.IndexWeights {
		n, ok := shares[w.Symbol]
		if !ok || n <= 0 {
			continue
		}
		price, _ := prices.Get(w.Symbol)
		orders = append(orders, newOrder(cfg, w.Symbol, n, price, costModel))
	}

	return orders
}

// SumOrders 汇总订单金额和佣金
func SumOrders(orders []types.Order) (value, commission decimal.Decimal) {
	value, commission = decimal.Zero, decimal.Zero
	for _, o := range orders {
		value = value.Add(o.Value)
		commission = commission.Add(o.Commission)
	}
	return value, commission
}

func newOrder(cfg types.RebalanceConfig, symbol string, shares int64, price decimal.Decimal, costModel cost.CostModel) types.Order {
	commission := decimal.Zero
	if cfg.IncludeCommission && costModel != nil {
		commission = costModel.Commission(price, shares)
	}

	return types.Order{
		Symbol:     symbol,
		Shares:     shares,
		Price:      price,
		Value:      price.Mul(decimal.NewFromInt(shares)),
		Commission: commission,
	}
}

func sortBySymbol(orders []types.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Symbol < orders[j].Symbol
	})
}
