package engine

import (
	"fmt"
	"sort"

	"github.com/opsxjacky/index-rebalance/internal/allocation"
	"github.com/opsxjacky/index-rebalance/pkg/types"
)

// MissingPriceWarnings 指数成分和持仓中没有有效报价的标的
// 计算时这些标的被跳过, 这里逐个给出警告
func MissingPriceWarnings(cfg types.RebalanceConfig) []types.Warning {
	prices := allocation.NewPriceLookup(cfg.Prices)

	missing := make(map[string]bool)
	for _, w := range cfg.IndexWeights {
		if _, ok := prices.Get(w.Symbol); !ok {
			missing[w.Symbol] = true
		}
	}
	for _, h := range cfg.Holdings {
		if _, ok := prices.Get(h.Symbol); !ok {
			missing[h.Symbol] = true
		}
	}

	symbols := make([]string, 0, len(missing))
	for symbol := range missing {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	warnings := make([]types.Warning, 0, len(symbols))
	for _, symbol := range symbols {
		warnings = append(warnings, types.Warning{
			Code:    types.WarnMissingPrice,
			Symbol:  symbol,
			Message: fmt.Sprintf("no valid price for %s, skipped", symbol),
		})
	}
	return warnings
}
