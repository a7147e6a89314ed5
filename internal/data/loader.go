package data

import (
	"github.com/opsxjacky/index-rebalance/pkg/types"
)

// DataLoader 数据加载器接口
type DataLoader interface {
	// LoadIndexWeights 加载指数成分权重
	LoadIndexWeights() ([]types.IndexWeight, error)

	// LoadPrices 加载最新报价
	LoadPrices() ([]types.PriceQuote, error)

	// LoadHoldings 加载当前持仓
	LoadHoldings() ([]types.Holding, error)

	// SourceType 支持的数据源类型
	SourceType() string
}
