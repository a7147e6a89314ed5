// Package report 输出再平衡结果
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/opsxjacky/index-rebalance/internal/strategy"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/shopspring/decimal"
)

// IndexReport 纯现金建仓输出
type IndexReport struct {
	Result   *types.IndexRebalanceResult `json:"result"`
	Names    map[string]string           `json:"-"`
	Warnings []types.Warning             `json:"warnings"`
}

// PortfolioReport 当前组合再平衡输出
type PortfolioReport struct {
	Result   *types.RebalanceResult `json:"result"`
	Holdings []types.Holding        `json:"-"`
	Names    map[string]string      `json:"-"`
	Warnings []types.Warning        `json:"warnings"`
}

// DriftReport 偏离未超过阈值时的输出
type DriftReport struct {
	Skipped      bool             `json:"skipped"`
	Threshold    decimal.Decimal  `json:"threshold"`
	MaxDeviation decimal.Decimal  `json:"max_deviation"`
	Drifts       []strategy.Drift `json:"drifts"`
}

// NameLookup 代码 -> 名称
func NameLookup(quotes []types.PriceQuote) map[string]string {
	names := make(map[string]string, len(quotes))
	for _, q := range quotes {
		names[q.Symbol] = q.Name
	}
	return names
}

// SortByValue 按金额从大到小排序, 返回副本
func SortByValue(orders []types.Order) []types.Order {
	sorted := make([]types.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value.GreaterThan(sorted[j].Value)
	})
	return sorted
}

// RealizedGain 卖出盈亏 = (现价 - 成本价) × 股数, 没有持仓记录时返回 false
func RealizedGain(order types.Order, holdings []types.Holding) (decimal.Decimal, bool) {
	for _, h := range holdings {
		if h.Symbol == order.Symbol {
			return order.Price.Sub(h.Price).Mul(decimal.NewFromInt(order.Shares)), true
		}
	}
	return decimal.Zero, false
}

// PrintIndex 打印纯现金建仓表格
func PrintIndex(w io.Writer, r IndexReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "Symbol\tName\tShares\tPrice\tValue\tCommission\t")
	for _, o := range SortByValue(r.Result.Orders) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t\n",
			o.Symbol, r.Names[o.Symbol], o.Shares, money(o.Price), money(o.Value), money(o.Commission))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Value:      %s\n", money(r.Result.TotalValue))
	fmt.Fprintf(w, "Total Commission: %s\n", money(r.Result.TotalCommission))
	fmt.Fprintf(w, "Remaining Cash:   %s\n", money(r.Result.RemainingCash))

	printWarnings(w, r.Warnings)
	return nil
}

// PrintPortfolio 打印当前组合再平衡表格
func PrintPortfolio(w io.Writer, r PortfolioReport) error {
	res := r.Result

	fmt.Fprintln(w, "== Sell ==")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tName\tShares\tPrice\tValue\tCommission\tGain/Loss\t")
	for _, o := range SortByValue(res.Sells) {
		gain := "-"
		if g, ok := RealizedGain(o, r.Holdings); ok {
			gain = money(g)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t\n",
			o.Symbol, r.Names[o.Symbol], o.Shares, money(o.Price), money(o.Value), money(o.Commission), gain)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n== Buy ==")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tName\tShares\tPrice\tValue\tCommission\t")
	for _, o := range SortByValue(res.Buys) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t\n",
			o.Symbol, r.Names[o.Symbol], o.Shares, money(o.Price), money(o.Value), money(o.Commission))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n== Final ==")
	final := make([]types.FinalPosition, len(res.Final))
	copy(final, res.Final)
	sort.SliceStable(final, func(i, j int) bool {
		return final[i].Value.GreaterThan(final[j].Value)
	})
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tShares\tPrice\tValue\tTarget\tActual\t")
	for _, p := range final {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
			p.Symbol, p.Shares, money(p.Price), money(p.Value), percent(p.TargetWeight), percent(p.RealizedWeight))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Sell:         %s (commission %s)\n", money(res.TotalSellValue), money(res.TotalSellCommission))
	fmt.Fprintf(w, "Cash After Selling: %s\n", money(res.CashAfterSelling))
	fmt.Fprintf(w, "Total Buy:          %s (commission %s)\n", money(res.TotalBuyValue), money(res.TotalBuyCommission))
	fmt.Fprintf(w, "Cash After Buying:  %s\n", money(res.CashAfterBuying))

	printWarnings(w, r.Warnings)
	return nil
}

// PrintDrift 打印权重偏离
func PrintDrift(w io.Writer, r DriftReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Symbol\tCurrent\tTarget\tDeviation\t")
	for _, d := range r.Drifts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			d.Symbol, percent(d.CurrentWeight), percent(d.TargetWeight), percent(d.Deviation))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Max deviation %s within threshold %s, no rebalance needed\n",
		percent(r.MaxDeviation), percent(r.Threshold))
	return nil
}

// ExportJSON 导出结果到JSON文件
func ExportJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// WriteJSON 输出JSON到 w
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(w io.Writer, warnings []types.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w, "\nWarnings:")
	for _, warn := range warnings {
		fmt.Fprintf(w, "  [%s] %s\n", warn.Code, warn.Message)
	}
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func percent(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
