package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/lighterbot/hedgeguard/internal/domain"
)

// Journal 审计日志（sqlite 落盘）
//
// 记录爆仓事件与完全成交的订单。日志属于旁路设施：
// 写入失败只降级为日志告警，绝不影响主流程。
// nil Journal 的所有方法都是安全的空操作（未配置路径时）。
type Journal struct {
	db     *sql.DB
	logger *logrus.Entry
}

const schema = `
CREATE TABLE IF NOT EXISTS liquidation_events (
	id           TEXT PRIMARY KEY,
	wallet       TEXT NOT NULL,
	pair_ref     TEXT NOT NULL,
	market       TEXT NOT NULL,
	side         TEXT NOT NULL,
	size         TEXT NOT NULL,
	price        TEXT NOT NULL,
	action_taken TEXT NOT NULL DEFAULT '',
	detected_at  TIMESTAMP NOT NULL,
	recorded_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS filled_orders (
	order_id    TEXT PRIMARY KEY,
	wallet      TEXT NOT NULL,
	market      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	price       TEXT NOT NULL,
	size        TEXT NOT NULL,
	filled_size TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	filled_at   TIMESTAMP NOT NULL,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Open 打开（或创建）审计日志数据库
// path 为空时返回 nil，所有写入自动降级为空操作
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建审计日志目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开审计日志数据库失败: %w", err)
	}

	// 单写者，WAL 模式避免读写互斥
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化审计日志表失败: %w", err)
	}

	logger := logrus.WithField("component", "journal")
	logger.Infof("✅ 审计日志已打开: %s", path)
	return &Journal{db: db, logger: logger}, nil
}

// RecordLiquidation 记录爆仓事件（含应急处理结果）
func (j *Journal) RecordLiquidation(event *domain.LiquidationEvent) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(`
		INSERT INTO liquidation_events (id, wallet, pair_ref, market, side, size, price, action_taken, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET action_taken = excluded.action_taken`,
		event.ID, event.Wallet, event.PairRef, event.Market, string(event.Side),
		event.Size.String(), event.Price.String(), event.ActionTaken, event.Timestamp)
	if err != nil {
		j.logger.Warnf("⚠️ 爆仓事件写入审计日志失败: %v", err)
	}
}

// RecordFill 记录完全成交的订单
func (j *Journal) RecordFill(o *domain.Order) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(`
		INSERT OR IGNORE INTO filled_orders (order_id, wallet, market, kind, price, size, filled_size, created_at, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Wallet, o.Market, string(o.Kind),
		o.Price.String(), o.Size.String(), o.FilledSize.String(), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		j.logger.Warnf("⚠️ 成交订单写入审计日志失败: %v", err)
	}
}

// LiquidationCount 返回已记录的爆仓事件数量（状态日志用）
func (j *Journal) LiquidationCount() int {
	if j == nil {
		return 0
	}
	var n int
	if err := j.db.QueryRow("SELECT COUNT(*) FROM liquidation_events").Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close 关闭审计日志数据库
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
