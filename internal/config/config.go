package config

import (
	"fmt"
	"os"

	"github.com/opsxjacky/index-rebalance/pkg/logger"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 配置文件结构
type Config struct {
	Cash              Decimal           `yaml:"cash"`
	IncludeCommission bool              `yaml:"include_commission"`
	DriftThreshold    Decimal           `yaml:"drift_threshold"` // 0 表示总是再平衡
	Commission        CommissionSection `yaml:"commission"`
	Validation        ValidationSection `yaml:"validation"`
	Data              DataSection       `yaml:"data"`
	Output            OutputSection     `yaml:"output"`
	Log               LogSection        `yaml:"log"`
}

// Decimal 按原文精确解析的数值, 不经过 float64
type Decimal struct {
	decimal.Decimal
}

// UnmarshalYAML 解析标量数值
func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	v, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q: %w", value.Line, value.Value, err)
	}
	d.Decimal = v
	return nil
}

// CommissionSection 佣金配置
type CommissionSection struct {
	MinimumPrice   *Decimal `yaml:"minimum_price"`
	FixedRate      *Decimal `yaml:"fixed_rate"`
	PercentageRate *Decimal `yaml:"percentage_rate"`
}

// ValidationSection 校验边界配置
type ValidationSection struct {
	MinimumCashAmount *Decimal `yaml:"minimum_cash_amount"`
	MaximumCashAmount *Decimal `yaml:"maximum_cash_amount"`
	MinimumPrice      *Decimal `yaml:"minimum_price"`
	MaximumPrice      *Decimal `yaml:"maximum_price"`
	MinimumShares     *int64   `yaml:"minimum_shares"`
	MaximumShares     *int64   `yaml:"maximum_shares"`
	MinimumWeight     *Decimal `yaml:"minimum_weight"`
	MaximumWeight     *Decimal `yaml:"maximum_weight"`
	MinSymbolLength   *int     `yaml:"min_symbol_length"`
	MaxSymbolLength   *int     `yaml:"max_symbol_length"`
}

// DataSection 数据文件
type DataSection struct {
	IndexFile    string `yaml:"index_file"`
	PricesFile   string `yaml:"prices_file"`
	HoldingsFile string `yaml:"holdings_file"`
}

// OutputSection 输出配置
type OutputSection struct {
	Format   string `yaml:"format"`   // table 或 json
	Path     string `yaml:"path"`     // JSON 导出路径
	Database string `yaml:"database"` // SQLite 文件, 为空不保存
}

// LogSection 日志配置
type LogSection struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Data: DataSection{
			IndexFile:    "data/index.csv",
			PricesFile:   "data/prices.csv",
			HoldingsFile: "data/holdings.csv",
		},
		Output: OutputSection{Format: "table"},
		Log:    LogSection{Level: "info", Pretty: true},
	}
}

// LoadConfig 从文件加载配置, 未设置的字段保留默认值
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Output.Format != "table" && config.Output.Format != "json" {
		return nil, fmt.Errorf("invalid output format: %q", config.Output.Format)
	}

	return config, nil
}

// CashAmount 返回现金金额
func (c *Config) CashAmount() decimal.Decimal {
	return c.Cash.Decimal
}

// DriftThresholdAmount 返回权重偏离阈值
func (c *Config) DriftThresholdAmount() decimal.Decimal {
	return c.DriftThreshold.Decimal
}

// ToCommissionConfig 转换为佣金配置
func (c *Config) ToCommissionConfig() types.CommissionConfig {
	config := types.DefaultCommissionConfig()
	setDecimal(&config.MinimumPrice, c.Commission.MinimumPrice)
	setDecimal(&config.FixedRate, c.Commission.FixedRate)
	setDecimal(&config.PercentageRate, c.Commission.PercentageRate)
	return config
}

// ToValidationConfig 转换为校验配置
func (c *Config) ToValidationConfig() types.ValidationConfig {
	v := c.Validation
	config := types.DefaultValidationConfig()

	setDecimal(&config.MinimumCashAmount, v.MinimumCashAmount)
	setDecimal(&config.MaximumCashAmount, v.MaximumCashAmount)
	setDecimal(&config.MinimumPrice, v.MinimumPrice)
	setDecimal(&config.MaximumPrice, v.MaximumPrice)
	setDecimal(&config.MinimumWeight, v.MinimumWeight)
	setDecimal(&config.MaximumWeight, v.MaximumWeight)

	if v.MinimumShares != nil {
		config.MinimumShares = *v.MinimumShares
	}
	if v.MaximumShares != nil {
		config.MaximumShares = *v.MaximumShares
	}
	if v.MinSymbolLength != nil {
		config.MinSymbolLength = *v.MinSymbolLength
	}
	if v.MaxSymbolLength != nil {
		config.MaxSymbolLength = *v.MaxSymbolLength
	}

	return config
}

// ToLoggerConfig 转换为日志配置
func (c *Config) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
	}
}

func setDecimal(dst *decimal.Decimal, src *Decimal) {
	if src != nil {
		*dst = src.Decimal
	}
}
