package main

import (
	"io"

	"github.com/opsxjacky/index-rebalance/internal/engine"
	"github.com/opsxjacky/index-rebalance/internal/report"
	"github.com/opsxjacky/index-rebalance/internal/storage"
	"github.com/spf13/cobra"
)

func newIndexCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Allocate cash across the index from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}

			rc, err := a.loadConfig(opts, false)
			if err != nil {
				a.logError(err)
				return err
			}

			result, err := a.engine.RebalanceIndex(rc)
			if err != nil {
				a.logError(err)
				return err
			}

			warnings := engine.MissingPriceWarnings(rc)
			a.logWarnings(warnings)

			if err := a.record(cmd.Context(), storage.NewIndexRun(rc, result)); err != nil {
				return err
			}

			r := report.IndexReport{
				Result:   result,
				Names:    report.NameLookup(rc.Prices),
				Warnings: warnings,
			}
			return a.emit(r, func(w io.Writer) error {
				return report.PrintIndex(w, r)
			})
		},
	}
}
