package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LiquidationEvent 爆仓事件（追加式审计记录）
// 每个被爆仓的钱包在进程生命周期内只会产生一条事件
type LiquidationEvent struct {
	ID          string          // 事件 ID（uuid）
	Wallet      string          // 被爆仓的钱包地址
	PairRef     string          // 所属钱包对（"addrA/addrB"）
	Market      string          // 市场
	Side        PositionSide    // 被爆仓仓位的方向
	Size        decimal.Decimal // 被爆仓仓位的数量
	Price       decimal.Decimal // 爆仓时的标记价格
	Timestamp   time.Time       // 检测到爆仓的时间
	ActionTaken string          // 应急处理结果（unwind 完成后回填）
}

func (e *LiquidationEvent) String() string {
	action := e.ActionTaken
	if action == "" {
		action = "pending"
	}
	return fmt.Sprintf("LIQUIDATION: %s | %s %s | price=%s | action=%s",
		ShortAddr(e.Wallet), e.Side, e.Size.String(), e.Price.String(), action)
}
