package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opsxjacky/index-rebalance/internal/config"
	"github.com/opsxjacky/index-rebalance/internal/cost"
	"github.com/opsxjacky/index-rebalance/internal/data"
	"github.com/opsxjacky/index-rebalance/internal/engine"
	"github.com/opsxjacky/index-rebalance/internal/report"
	"github.com/opsxjacky/index-rebalance/internal/storage"
	"github.com/opsxjacky/index-rebalance/internal/validation"
	"github.com/opsxjacky/index-rebalance/pkg/logger"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// options 命令行参数
type options struct {
	configPath    string
	logLevel      string
	cash          string
	commission    bool
	indexFile     string
	pricesFile    string
	holdingsFile  string
	format        string
	outputPath    string
	database      string
	strict        bool
	writeHoldings string
	threshold     string
}

// app 一次命令执行所需的组件
type app struct {
	cfg       *config.Config
	engine    *engine.Engine
	validator *validation.Validator
	loader    *data.CSVLoader
	log       zerolog.Logger
	out       io.Writer
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "rebalance",
		Short:         "Calculate buy/sell orders that track an index allocation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.cash, "cash", "", "cash available, overrides config")
	flags.BoolVar(&opts.commission, "commission", false, "include commission, overrides config")
	flags.StringVar(&opts.indexFile, "index", "", "index weights CSV")
	flags.StringVar(&opts.pricesFile, "prices", "", "prices CSV")
	flags.StringVar(&opts.format, "format", "", "output format (table, json)")
	flags.StringVarP(&opts.outputPath, "output", "o", "", "export result as JSON to this path")
	flags.StringVar(&opts.database, "db", "", "SQLite database to record the run")
	flags.BoolVar(&opts.strict, "strict", false, "fail when a symbol has no valid price")

	root.AddCommand(newIndexCommand(opts), newPortfolioCommand(opts))
	return root
}

// setup 加载配置并组装组件, 命令行参数优先于配置文件
func setup(cmd *cobra.Command, opts *options) (*app, error) {
	cfg := config.Default()
	if _, err := os.Stat(opts.configPath); err == nil {
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	} else if cmd.Flags().Changed("config") {
		return nil, fmt.Errorf("config file %s: %w", opts.configPath, err)
	}

	flags := cmd.Flags()
	if flags.Changed("commission") {
		cfg.IncludeCommission = opts.commission
	}
	if opts.indexFile != "" {
		cfg.Data.IndexFile = opts.indexFile
	}
	if opts.pricesFile != "" {
		cfg.Data.PricesFile = opts.pricesFile
	}
	if opts.holdingsFile != "" {
		cfg.Data.HoldingsFile = opts.holdingsFile
	}
	if opts.format != "" {
		if opts.format != "table" && opts.format != "json" {
			return nil, fmt.Errorf("invalid output format: %q", opts.format)
		}
		cfg.Output.Format = opts.format
	}
	if opts.outputPath != "" {
		cfg.Output.Path = opts.outputPath
	}
	if opts.database != "" {
		cfg.Output.Database = opts.database
	}

	logCfg := cfg.ToLoggerConfig()
	if opts.logLevel != "" {
		logCfg.Level = opts.logLevel
	}
	logCfg.Output = cmd.ErrOrStderr()
	log := logger.New(logCfg)
	logger.SetGlobalLogger(log)

	validator := validation.New(cfg.ToValidationConfig())

	return &app{
		cfg:       cfg,
		engine:    engine.New(cost.NewDefaultCostModel(cfg.ToCommissionConfig()), validator, log),
		validator: validator,
		loader:    data.NewCSVLoader(cfg.Data.IndexFile, cfg.Data.PricesFile, cfg.Data.HoldingsFile, validator, log),
		log:       log,
		out:       cmd.OutOrStdout(),
	}, nil
}

// cashAmount 命令行 --cash 优先
func (a *app) cashAmount(opts *options) (decimal.Decimal, error) {
	if opts.cash == "" {
		return a.cfg.CashAmount(), nil
	}
	cash, err := decimal.NewFromString(opts.cash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", validation.ErrInvalidCashAmount, opts.cash)
	}
	return cash, nil
}

// loadConfig 读取数据文件组成计算输入
func (a *app) loadConfig(opts *options, withHoldings bool) (types.RebalanceConfig, error) {
	cash, err := a.cashAmount(opts)
	if err != nil {
		return types.RebalanceConfig{}, err
	}

	weights, err := a.loader.LoadIndexWeights()
	if err != nil {
		return types.RebalanceConfig{}, fmt.Errorf("failed to load index weights: %w", err)
	}
	prices, err := a.loader.LoadPrices()
	if err != nil {
		return types.RebalanceConfig{}, fmt.Errorf("failed to load prices: %w", err)
	}

	rc := types.RebalanceConfig{
		IncludeCommission: a.cfg.IncludeCommission,
		Cash:              cash,
		IndexWeights:      weights,
		Holdings:          []types.Holding{},
		Prices:            prices,
	}

	if withHoldings {
		rc.Holdings, err = a.loader.LoadHoldings()
		if err != nil {
			return types.RebalanceConfig{}, fmt.Errorf("failed to load holdings: %w", err)
		}
	}

	if opts.strict {
		if err := a.validator.ValidatePriceCoverage(rc); err != nil {
			return types.RebalanceConfig{}, err
		}
	}
	return rc, nil
}

// logWarnings 缺失报价的标的只记警告
func (a *app) logWarnings(warnings []types.Warning) {
	for _, w := range warnings {
		a.log.Warn().Str("code", string(w.Code)).Str("symbol", w.Symbol).Msg(w.Message)
	}
}

// emit 按配置输出结果
func (a *app) emit(v interface{}, printTable func(io.Writer) error) error {
	if a.cfg.Output.Path != "" {
		if err := report.ExportJSON(a.cfg.Output.Path, v); err != nil {
			return err
		}
		a.log.Info().Str("path", a.cfg.Output.Path).Msg("Results exported")
	}

	if a.cfg.Output.Format == "json" {
		return report.WriteJSON(a.out, v)
	}
	return printTable(a.out)
}

// record 保存到数据库, 未配置时跳过
func (a *app) record(ctx context.Context, run storage.Run) error {
	if a.cfg.Output.Database == "" {
		return nil
	}

	store, err := storage.Open(ctx, a.cfg.Output.Database, a.log)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveRun(ctx, run)
}

// logError 校验错误带出错值记录
func (a *app) logError(err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		a.log.Error().Str("kind", verr.Kind.Error()).Str("value", verr.Value).Msg("Validation failed")
		return
	}
	a.log.Error().Err(err).Msg("Rebalance failed")
}
