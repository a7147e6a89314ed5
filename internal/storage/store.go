// Package storage 保存每次再平衡的结果和最终持仓
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opsxjacky/index-rebalance/pkg/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动
)

const schema = `
CREATE TABLE IF NOT EXISTS rebalance_runs (
	id                 TEXT PRIMARY KEY,
	mode               TEXT NOT NULL,
	created_at         INTEGER NOT NULL,
	cash               TEXT NOT NULL,
	include_commission INTEGER NOT NULL,
	cash_after_selling TEXT NOT NULL,
	cash_after_buying  TEXT NOT NULL,
	total_commission   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS final_positions (
	run_id          TEXT NOT NULL REFERENCES rebalance_runs(id) ON DELETE CASCADE,
	symbol          TEXT NOT NULL,
	shares          INTEGER NOT NULL,
	price           TEXT NOT NULL,
	value           TEXT NOT NULL,
	target_weight   TEXT NOT NULL,
	realized_weight TEXT NOT NULL,
	PRIMARY KEY (run_id, symbol)
);
`

// Mode 计算模式
type Mode string

const (
	ModeIndex     Mode = "index"
	ModePortfolio Mode = "portfolio"
)

// Run 一次再平衡记录
type Run struct {
	ID                string
	Mode              Mode
	CreatedAt         time.Time
	Cash              decimal.Decimal
	IncludeCommission bool
	CashAfterSelling  decimal.Decimal
	CashAfterBuying   decimal.Decimal
	TotalCommission   decimal.Decimal
	Positions         []types.FinalPosition
}

// Store SQLite 存储
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open 打开数据库并建表, path 为 ":memory:" 时使用内存库
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = absPath
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 单连接, 内存库每个连接是独立的库
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// NewPortfolioRun 由当前组合结果构建记录
func NewPortfolioRun(cfg types.RebalanceConfig, result *types.RebalanceResult) Run {
	return Run{
		ID:                uuid.NewString(),
		Mode:              ModePortfolio,
		CreatedAt:         time.Now().UTC(),
		Cash:              cfg.Cash,
		IncludeCommission: cfg.IncludeCommission,
		CashAfterSelling:  result.CashAfterSelling,
		CashAfterBuying:   result.CashAfterBuying,
		TotalCommission:   result.TotalSellCommission.Add(result.TotalBuyCommission),
		Positions:         result.Final,
	}
}

// NewIndexRun 由纯现金结果构建记录, 订单即最终持仓
func NewIndexRun(cfg types.RebalanceConfig, result *types.IndexRebalanceResult) Run {
	weights := make(map[string]decimal.Decimal, len(cfg.IndexWeights))
	for _, w := range cfg.IndexWeights {
		weights[w.Symbol] = w.Weight
	}

	positions := make([]types.FinalPosition, 0, len(result.Orders))
	for _, o := range result.Orders {
		realized := decimal.Zero
		if !cfg.Cash.IsZero() {
			realized = o.Value.Div(cfg.Cash)
		}
		positions = append(positions, types.FinalPosition{
			Symbol:         o.Symbol,
			Shares:         o.Shares,
			Value:          o.Value,
			Commission:     decimal.Zero,
			Price:          o.Price,
			TargetWeight:   weights[o.Symbol],
			RealizedWeight: realized,
		})
	}

	return Run{
		ID:                uuid.NewString(),
		Mode:              ModeIndex,
		CreatedAt:         time.Now().UTC(),
		Cash:              cfg.Cash,
		IncludeCommission: cfg.IncludeCommission,
		CashAfterSelling:  cfg.Cash,
		CashAfterBuying:   result.RemainingCash,
		TotalCommission:   result.TotalCommission,
		Positions:         positions,
	}
}

// SaveRun 在一个事务中保存记录和持仓
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rebalance_runs
			(id, mode, created_at, cash, include_commission, cash_after_selling, cash_after_buying, total_commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), run.CreatedAt.Unix(), run.Cash.String(), run.IncludeCommission,
		run.CashAfterSelling.String(), run.CashAfterBuying.String(), run.TotalCommission.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO final_positions (run_id, symbol, shares, price, value, target_weight, realized_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range run.Positions {
		_, err := stmt.ExecContext(ctx, run.ID, p.Symbol, p.Shares, p.Price.String(), p.Value.String(),
			p.TargetWeight.String(), p.RealizedWeight.String())
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("mode", string(run.Mode)).
		Int("positions", len(run.Positions)).
		Msg("Saved rebalance run")
	return nil
}

// GetRun 读取一次记录
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, created_at, cash, include_commission, cash_after_selling, cash_after_buying, total_commission
		FROM rebalance_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	run.Positions, err = s.positions(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun 最近一次记录
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM rebalance_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return s.GetRun(ctx, id)
}

func (s *Store) positions(ctx context.Context, runID string) ([]types.FinalPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, shares, price, value, target_weight, realized_weight
		FROM final_positions WHERE run_id = ? ORDER BY symbol`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]types.FinalPosition, 0)
	for rows.Next() {
		var p types.FinalPosition
		var price, value, target, realized string
		if err := rows.Scan(&p.Symbol, &p.Shares, &price, &value, &target, &realized); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if err := parseDecimals(map[*decimal.Decimal]string{
			&p.Price: price, &p.Value: value, &p.TargetWeight: target, &p.RealizedWeight: realized,
		}); err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		p.Commission = decimal.Zero
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var mode, cash, afterSelling, afterBuying, commission string
	var createdAt int64
	err := row.Scan(&run.ID, &mode, &createdAt, &cash, &run.IncludeCommission, &afterSelling, &afterBuying, &commission)
	if err != nil {
		return nil, err
	}

	run.Mode = Mode(mode)
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := parseDecimals(map[*decimal.Decimal]string{
		&run.Cash: cash, &run.CashAfterSelling: afterSelling, &run.CashAfterBuying: afterBuying, &run.TotalCommission: commission,
	}); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return &run, nil
}

func parseDecimals(fields map[*decimal.Decimal]string) error {
	for dst, raw := range fields {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", raw, err)
		}
		*dst = v
	}
	return nil
}
