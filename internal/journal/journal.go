// Package journal 把完成的回合持久化到 SQLite。
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"stat-arb-engine/internal/core/model"
)

// writeTimeout 单次写入超时
const writeTimeout = 2 * time.Second

// Journal 回合日志
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open 打开（必要时创建）回合日志库
// 参数 path: SQLite 文件路径
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建日志库目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开日志库失败: %w", err)
	}
	// SQLite 单连接
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, logger: logger.Named("journal")}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	j.logger.Info("回合日志库已打开", zap.String("path", path))
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS rounds (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  strategy TEXT NOT NULL,
  main_ticker TEXT NOT NULL,
  hedge_ticker TEXT NOT NULL,
  seq INTEGER NOT NULL,
  size INTEGER NOT NULL,
  gross_pnl REAL NOT NULL,
  fee REAL NOT NULL,
  net_pnl REAL NOT NULL,
  reason TEXT NOT NULL,
  closed_sec INTEGER NOT NULL,
  closed_usec INTEGER NOT NULL,
  recorded_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_strategy_seq ON rounds(strategy, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("迁移日志库失败: %w", err)
		}
	}
	return nil
}

// RecordRound 实现 strategy.RoundRecorder
func (j *Journal) RecordRound(r model.Round) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx, `
INSERT INTO rounds (strategy, main_ticker, hedge_ticker, seq, size, gross_pnl, fee, net_pnl, reason, closed_sec, closed_usec, recorded_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, r.Strategy, r.MainTicker, r.HedgeTicker, r.Seq, r.Size, r.GrossPnL, r.Fee, r.NetPnL, r.Reason,
		r.ClosedAt.Sec, r.ClosedAt.Usec, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("写入回合失败: %w", err)
	}
	return nil
}

// Rounds 按序号列出某个策略的回合
func (j *Journal) Rounds(ctx context.Context, strategy string) ([]model.Round, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT strategy, main_ticker, hedge_ticker, seq, size, gross_pnl, fee, net_pnl, reason, closed_sec, closed_usec
FROM rounds
WHERE strategy=?
ORDER BY seq ASC, id ASC
`, strategy)
	if err != nil {
		return nil, fmt.Errorf("查询回合失败: %w", err)
	}
	defer rows.Close()

	var out []model.Round
	for rows.Next() {
		var r model.Round
		if err := rows.Scan(&r.Strategy, &r.MainTicker, &r.HedgeTicker, &r.Seq, &r.Size,
			&r.GrossPnL, &r.Fee, &r.NetPnL, &r.Reason, &r.ClosedAt.Sec, &r.ClosedAt.Usec); err != nil {
			return nil, fmt.Errorf("读取回合失败: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary 某个策略的累计净盈亏与回合数
func (j *Journal) Summary(ctx context.Context, strategy string) (rounds int, netPnL float64, err error) {
	row := j.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(net_pnl), 0)
FROM rounds
WHERE strategy=?
`, strategy)
	if err := row.Scan(&rounds, &netPnL); err != nil {
		return 0, 0, fmt.Errorf("汇总回合失败: %w", err)
	}
	return rounds, netPnL, nil
}

// Close 关闭日志库
func (j *Journal) Close() error {
	return j.db.Close()
}
