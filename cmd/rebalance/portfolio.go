package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/opsxjacky/index-rebalance/internal/data"
	"github.com/opsxjacky/index-rebalance/internal/engine"
	"github.com/opsxjacky/index-rebalance/internal/portfolio"
	"github.com/opsxjacky/index-rebalance/internal/report"
	"github.com/opsxjacky/index-rebalance/internal/storage"
	"github.com/opsxjacky/index-rebalance/internal/strategy"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newPortfolioCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Rebalance current holdings toward the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			rc, err := a.loadConfig(opts, true)
			if err != nil {
				a.logError(err)
				return err
			}

			threshold := a.cfg.DriftThresholdAmount()
			if opts.threshold != "" {
				threshold, err = decimal.NewFromString(opts.threshold)
				if err != nil {
					return fmt.Errorf("invalid threshold: %q", opts.threshold)
				}
			}
			if !strategy.ShouldRebalance(rc, threshold) {
				drifts := strategy.CurrentDrift(rc)
				r := report.DriftReport{
					Skipped:      true,
					Threshold:    threshold,
					MaxDeviation: strategy.MaxDeviation(drifts),
					Drifts:       drifts,
				}
				a.log.Info().
					Str("threshold", threshold.String()).
					Str("max_deviation", r.MaxDeviation.String()).
					Msg("Portfolio within drift threshold, skipping rebalance")
				return a.emit(r, func(w io.Writer) error {
					return report.PrintDrift(w, r)
				})
			}

			result, err := a.engine.RebalanceCurrentPortfolio(rc)
			if err != nil {
				a.logError(err)
				return err
			}

			warnings := engine.MissingPriceWarnings(rc)
			a.logWarnings(warnings)

			if opts.writeHoldings != "" {
				if err := a.project(rc, result, opts.writeHoldings); err != nil {
					return err
				}
			}

			if err := a.record(cmd.Context(), storage.NewPortfolioRun(rc, result)); err != nil {
				return err
			}

			r := report.PortfolioReport{
				Result:   result,
				Holdings: rc.Holdings,
				Names:    report.NameLookup(rc.Prices),
				Warnings: warnings,
			}
			return a.emit(r, func(w io.Writer) error {
				return report.PrintPortfolio(w, r)
			})
		},
	}

	cmd.Flags().StringVar(&opts.holdingsFile, "holdings", "", "current holdings CSV")
	cmd.Flags().StringVar(&opts.writeHoldings, "write-holdings", "", "write projected post-trade holdings to this CSV")
	cmd.Flags().StringVar(&opts.threshold, "threshold", "", "skip rebalancing while every weight deviation is within this fraction")
	return cmd
}

// project 推演交易后的持仓并写出
// 负权重会产生空头目标, 此时只记警告不写文件
func (a *app) project(rc types.RebalanceConfig, result *types.RebalanceResult, path string) error {
	m := portfolio.NewManager(rc.Cash, rc.Holdings)
	if err := m.Apply(result); err != nil {
		if errors.Is(err, portfolio.ErrInsufficientShares) {
			a.log.Warn().Err(err).Str("path", path).Msg("Projection requires a short position, holdings not written")
			return nil
		}
		return err
	}

	if err := data.WriteHoldings(path, m.Holdings()); err != nil {
		return err
	}
	a.log.Info().
		Str("path", path).
		Str("cash", m.Cash().String()).
		Msg("Projected holdings written")
	return nil
}
