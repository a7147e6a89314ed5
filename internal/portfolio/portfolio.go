package portfolio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrInsufficientShares 卖出数量超过持仓, 推演不支持做空
var ErrInsufficientShares = errors.New("insufficient shares")

// Manager 推演再平衡后的持仓
// 只在内存中按订单调整持仓和现金, 不涉及真实下单
type Manager struct {
	cash      decimal.Decimal
	positions map[string]types.Holding
}

// NewManager 用当前持仓和现金创建管理器
func NewManager(cash decimal.Decimal, holdings []types.Holding) *Manager {
	positions := make(map[string]types.Holding, len(holdings))
	for _, h := range holdings {
		positions[h.Symbol] = h
	}
	return &Manager{
		cash:      cash,
		positions: positions,
	}
}

// Cash 当前现金
func (m *Manager) Cash() decimal.Decimal {
	return m.cash
}

// Holdings 当前持仓, 按代码排序
func (m *Manager) Holdings() []types.Holding {
	holdings := make([]types.Holding, 0, len(m.positions))
	for _, h := range m.positions {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})
	return holdings
}

// Apply 按先卖后买的顺序应用再平衡结果
func (m *Manager) Apply(result *types.RebalanceResult) error {
	for _, order := range result.Sells {
		if err := m.ExecuteSell(order); err != nil {
			return fmt.Errorf("sell %s: %w", order.Symbol, err)
		}
	}
	for _, order := range result.Buys {
		if err := m.ExecuteBuy(order); err != nil {
			return fmt.Errorf("buy %s: %w", order.Symbol, err)
		}
	}
	return nil
}

// ExecuteBuy 买入, 现金允许为负 (佣金可能超出剩余现金)
func (m *Manager) ExecuteBuy(order types.Order) error {
	if order.Shares <= 0 {
		return fmt.Errorf("invalid order shares: %d", order.Shares)
	}

	// 扣减现金
	m.cash = m.cash.Sub(order.Value).Sub(order.Commission)

	// 更新持仓
	pos, exists := m.positions[order.Symbol]
	if exists {
		// 计算新的平均成本
		totalShares := pos.Shares + order.Shares
		totalCostBasis := pos.Price.Mul(decimal.NewFromInt(pos.Shares)).Add(order.Value)
		pos.Price = totalCostBasis.Div(decimal.NewFromInt(totalShares))
		pos.Shares = totalShares
	} else {
		pos = types.Holding{
			Symbol: order.Symbol,
			Shares: order.Shares,
			Price:  order.Price,
		}
	}
	m.positions[order.Symbol] = pos

	return nil
}

// ExecuteSell 卖出
func (m *Manager) ExecuteSell(order types.Order) error {
	pos, exists := m.positions[order.Symbol]
	if !exists {
		return fmt.Errorf("no position in %s", order.Symbol)
	}

	if pos.Shares < order.Shares {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientShares, order.Shares, pos.Shares)
	}

	// 增加现金 (扣除费用)
	m.cash = m.cash.Add(order.Value).Sub(order.Commission)

	// 更新持仓
	pos.Shares -= order.Shares
	if pos.Shares == 0 {
		// 清仓
		delete(m.positions, order.Symbol)
	} else {
		m.positions[order.Symbol] = pos
	}

	return nil
}
