package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighterbot/hedgeguard/internal/domain"
)

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal
	j.RecordLiquidation(&domain.LiquidationEvent{ID: "x"})
	j.RecordFill(&domain.Order{ID: "y"})
	if j.LiquidationCount() != 0 {
		t.Error("nil journal 的计数应为 0")
	}
	if err := j.Close(); err != nil {
		t.Errorf("nil journal 的 Close 不应报错: %v", err)
	}
}

func TestOpenEmptyPathReturnsNil(t *testing.T) {
	j, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Error("未配置路径时应返回 nil")
	}
}

func TestRecordAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	event := &domain.LiquidationEvent{
		ID:        "ev-1",
		Wallet:    "0xAAAA11111111111111",
		PairRef:   "0xAAAA11.../0xBBBB22...",
		Market:    "SOL",
		Side:      domain.PositionSideLong,
		Size:      decimal.NewFromInt(10),
		Price:     decimal.NewFromInt(45),
		Timestamp: time.Now(),
	}
	j.RecordLiquidation(event)
	if got := j.LiquidationCount(); got != 1 {
		t.Errorf("爆仓事件计数 = %d, 期望 1", got)
	}

	// 同一事件回填 ActionTaken 时只更新, 不新增
	event.ActionTaken = "orders_cancelled_no_position"
	j.RecordLiquidation(event)
	if got := j.LiquidationCount(); got != 1 {
		t.Errorf("重复记录同一事件后计数 = %d, 期望 1", got)
	}

	now := time.Now()
	j.RecordFill(&domain.Order{
		ID:         "order-1",
		Wallet:     "0xAAAA11111111111111",
		Market:     "SOL",
		Kind:       domain.OrderKindLimitBuy,
		Price:      decimal.NewFromInt(100),
		Size:       decimal.NewFromInt(10),
		FilledSize: decimal.NewFromInt(10),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}
