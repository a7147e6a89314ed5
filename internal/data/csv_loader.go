package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opsxjacky/index-rebalance/internal/validation"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CSVLoader CSV数据加载器
type CSVLoader struct {
	indexFile    string
	pricesFile   string
	holdingsFile string
	validator    *validation.Validator
	log          zerolog.Logger
}

// NewCSVLoader 创建CSV加载器
// 每行数据用校验器检查, 不合法的行记录警告后跳过
func NewCSVLoader(indexFile, pricesFile, holdingsFile string, validator *validation.Validator, log zerolog.Logger) *CSVLoader {
	if validator == nil {
		validator = validation.NewDefault()
	}
	return &CSVLoader{
		indexFile:    indexFile,
		pricesFile:   pricesFile,
		holdingsFile: holdingsFile,
		validator:    validator,
		log:          log.With().Str("component", "csv_loader").Logger(),
	}
}

// SourceType 返回数据源类型
func (l *CSVLoader) SourceType() string {
	return "csv"
}

// LoadIndexWeights 加载指数权重, 列: symbol, weight
func (l *CSVLoader) LoadIndexWeights() ([]types.IndexWeight, error) {
	rows, colIndex, err := readCSV(l.indexFile)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(l.indexFile, colIndex, "symbol", "weight"); err != nil {
		return nil, err
	}

	result := make([]types.IndexWeight, 0, len(rows))
	seen := make(map[string]bool)
	for i, row := range rows {
		symbol := normalizeSymbol(field(row, colIndex, "symbol"))
		weight, err := decimal.NewFromString(field(row, colIndex, "weight"))
		if err != nil {
			l.skip(l.indexFile, i, err)
			continue
		}
		if err := l.validator.ValidateSymbol(symbol); err != nil {
			l.skip(l.indexFile, i, err)
			continue
		}
		// 权重越界只警告, 分配时按比例归一化
		if err := l.validator.ValidateWeight(weight); err != nil {
			l.log.Warn().Err(err).Str("symbol", symbol).Msg("Index weight out of bounds, kept")
		}
		if seen[symbol] {
			l.skip(l.indexFile, i, fmt.Errorf("duplicate symbol %s", symbol))
			continue
		}
		seen[symbol] = true

		result = append(result, types.IndexWeight{Symbol: symbol, Weight: weight})
	}

	l.log.Debug().Int("count", len(result)).Str("file", l.indexFile).Msg("Loaded index weights")
	return result, nil
}

// LoadPrices 加载报价, 列: symbol, name, price
func (l *CSVLoader) LoadPrices() ([]types.PriceQuote, error) {
	rows, colIndex, err := readCSV(l.pricesFile)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(l.pricesFile, colIndex, "symbol", "price"); err != nil {
		return nil, err
	}

	result := make([]types.PriceQuote, 0, len(rows))
	for i, row := range rows {
		symbol := normalizeSymbol(field(row, colIndex, "symbol"))
		if err := l.validator.ValidateSymbol(symbol); err != nil {
			l.skip(l.pricesFile, i, err)
			continue
		}

		raw := field(row, colIndex, "price")
		price, err := decimal.NewFromString(raw)
		if err != nil {
			l.skip(l.pricesFile, i, fmt.Errorf("%w: %s", validation.ErrInvalidPrice, raw))
			continue
		}
		if err := l.validator.ValidatePrice(price); err != nil {
			l.skip(l.pricesFile, i, err)
			continue
		}

		result = append(result, types.PriceQuote{
			Symbol: symbol,
			Name:   field(row, colIndex, "name"),
			Price:  price,
		})
	}

	l.log.Debug().Int("count", len(result)).Str("file", l.pricesFile).Msg("Loaded prices")
	return result, nil
}

// LoadHoldings 加载持仓, 列: symbol, shares, price (成本价)
// 文件不存在视为空仓
func (l *CSVLoader) LoadHoldings() ([]types.Holding, error) {
	if l.holdingsFile == "" {
		return []types.Holding{}, nil
	}
	if _, err := os.Stat(l.holdingsFile); os.IsNotExist(err) {
		l.log.Info().Str("file", l.holdingsFile).Msg("Holdings file not found, starting from cash")
		return []types.Holding{}, nil
	}

	records, err := readRecords(l.holdingsFile)
	if err != nil {
		return nil, err
	}
	// 只有表头也是空仓, WriteHoldings 写出空持仓时就是这种文件
	if len(records) < 2 {
		l.log.Info().Str("file", l.holdingsFile).Msg("Holdings file has no rows, starting from cash")
		return []types.Holding{}, nil
	}

	rows, colIndex := records[1:], parseHeader(records[0])
	if err := requireColumns(l.holdingsFile, colIndex, "symbol", "shares"); err != nil {
		return nil, err
	}

	merged := make(map[string]int)
	result := make([]types.Holding, 0, len(rows))
	for i, row := range rows {
		symbol := normalizeSymbol(field(row, colIndex, "symbol"))
		if err := l.validator.ValidateSymbol(symbol); err != nil {
			l.skip(l.holdingsFile, i, err)
			continue
		}

		shares, err := strconv.ParseInt(field(row, colIndex, "shares"), 10, 64)
		if err != nil {
			l.skip(l.holdingsFile, i, fmt.Errorf("%w: %s", validation.ErrInvalidShares, field(row, colIndex, "shares")))
			continue
		}
		if err := l.validator.ValidateShares(shares); err != nil {
			l.skip(l.holdingsFile, i, err)
			continue
		}

		cost := decimal.Zero
		if raw := field(row, colIndex, "price"); raw != "" {
			cost, err = decimal.NewFromString(raw)
			if err != nil {
				l.skip(l.holdingsFile, i, fmt.Errorf("%w: %s", validation.ErrInvalidPrice, raw))
				continue
			}
		}

		// 同一代码多行合并, 成本按股数加权
		if idx, ok := merged[symbol]; ok {
			result[idx] = mergeHolding(result[idx], shares, cost)
			continue
		}
		merged[symbol] = len(result)
		result = append(result, types.Holding{Symbol: symbol, Shares: shares, Price: cost})
	}

	l.log.Debug().Int("count", len(result)).Str("file", l.holdingsFile).Msg("Loaded holdings")
	return result, nil
}

// WriteHoldings 写出持仓文件, 格式与 LoadHoldings 相同
func WriteHoldings(path string, holdings []types.Holding) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"symbol", "shares", "price"}); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	for _, h := range holdings {
		row := []string{h.Symbol, strconv.FormatInt(h.Shares, 10), h.Price.String()}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (l *CSVLoader) skip(file string, row int, err error) {
	// +2: 表头占一行, 行号从1开始
	l.log.Warn().Err(err).Str("file", file).Int("row", row+2).Msg("Skipping invalid row")
}

// readCSV 读取CSV, 返回数据行和表头索引; 没有数据行时报错
func readCSV(filePath string) ([][]string, map[string]int, error) {
	records, err := readRecords(filePath)
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s: %w: CSV file has no data rows", filePath, validation.ErrInsufficientData)
	}

	return records[1:], parseHeader(records[0]), nil
}

func readRecords(filePath string) ([][]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return records, nil
}

// parseHeader 解析CSV表头
func parseHeader(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "symbol", "ticker", "code":
			colIndex["symbol"] = i
		case "name":
			colIndex["name"] = i
		case "weight", "target_weight":
			colIndex["weight"] = i
		case "price", "close", "last", "cost", "cost_basis":
			colIndex["price"] = i
		case "shares", "quantity", "qty":
			colIndex["shares"] = i
		}
	}
	return colIndex
}

func requireColumns(filePath string, colIndex map[string]int, columns ...string) error {
	for _, col := range columns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("%s: %w: missing column %q", filePath, validation.ErrInsufficientData, col)
		}
	}
	return nil
}

func field(row []string, colIndex map[string]int, name string) string {
	idx, ok := colIndex[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func mergeHolding(h types.Holding, shares int64, cost decimal.Decimal) types.Holding {
	total := h.Shares + shares
	if total > 0 {
		basis := h.Price.Mul(decimal.NewFromInt(h.Shares)).Add(cost.Mul(decimal.NewFromInt(shares)))
		h.Price = basis.Div(decimal.NewFromInt(total))
	}
	h.Shares = total
	return h
}
