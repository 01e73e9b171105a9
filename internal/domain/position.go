package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide 仓位方向
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"  // 多头
	PositionSideShort PositionSide = "short" // 空头
)

// Opposite 返回相反方向
func (s PositionSide) Opposite() PositionSide {
	if s == PositionSideLong {
		return PositionSideShort
	}
	return PositionSideLong
}

// PositionStatus 仓位健康状态
type PositionStatus string

const (
	PositionStatusHealthy    PositionStatus = "healthy"    // 健康
	PositionStatusWarning    PositionStatus = "warning"    // 接近爆仓，需要关注
	PositionStatusCritical   PositionStatus = "critical"   // 距爆仓极近
	PositionStatusLiquidated PositionStatus = "liquidated" // 已爆仓（每个钱包的最终状态）
)

// Position 仓位领域模型
//
// 状态每次轮询重新推导，不跨轮询持久化（liquidated 标记除外，
// 由监控器的 liquidated_wallets 集合把关）。
type Position struct {
	Wallet           string          // 钱包地址
	Market           string          // 市场
	Side             PositionSide    // 方向
	Size             decimal.Decimal // 仓位数量
	EntryPrice       decimal.Decimal // 入场价格
	MarkPrice        decimal.Decimal // 标记价格
	LiquidationPrice decimal.Decimal // 爆仓价格
	Margin           decimal.Decimal // 保证金
	UnrealizedPnL    decimal.Decimal // 未实现盈亏
	HealthRatio      decimal.Decimal // 健康比率（越低越危险）
	Status           PositionStatus  // 健康状态
	UpdatedAt        time.Time       // 本次观测时间
}

// DistanceToLiquidation 计算距爆仓价格的百分比距离（诊断用）
// 多头: (mark - liq) / mark * 100；空头: (liq - mark) / mark * 100
func (p *Position) DistanceToLiquidation() decimal.Decimal {
	if p.MarkPrice.IsZero() {
		return decimal.Zero
	}
	var distance decimal.Decimal
	if p.Side == PositionSideLong {
		distance = p.MarkPrice.Sub(p.LiquidationPrice).Div(p.MarkPrice)
	} else {
		distance = p.LiquidationPrice.Sub(p.MarkPrice).Div(p.MarkPrice)
	}
	return distance.Mul(decimal.NewFromInt(100))
}

func (p *Position) String() string {
	return fmt.Sprintf("Position %s | %s %s @ %s | mark=%s liq=%s | health=%s | %s",
		ShortAddr(p.Wallet), p.Side, p.Size.String(), p.EntryPrice.String(),
		p.MarkPrice.String(), p.LiquidationPrice.String(), p.HealthRatio.String(), p.Status)
}
