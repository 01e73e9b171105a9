package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

// 多头: (mark - liq) / mark * 100
func TestDistanceToLiquidationLong(t *testing.T) {
	p := &Position{
		Side:             PositionSideLong,
		MarkPrice:        decimal.NewFromInt(52),
		LiquidationPrice: decimal.NewFromInt(45),
	}
	got, _ := p.DistanceToLiquidation().Float64()
	want := 13.46
	if diff := got - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("多头距爆仓距离 = %.4f, 期望 %.2f ± 0.01", got, want)
	}
}

// 空头: (liq - mark) / mark * 100
func TestDistanceToLiquidationShort(t *testing.T) {
	p := &Position{
		Side:             PositionSideShort,
		MarkPrice:        decimal.NewFromInt(48),
		LiquidationPrice: decimal.NewFromInt(55),
	}
	got, _ := p.DistanceToLiquidation().Float64()
	want := 14.58
	if diff := got - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("空头距爆仓距离 = %.4f, 期望 %.2f ± 0.01", got, want)
	}
}

// 标记价格为 0 时不做除法，返回 0
func TestDistanceToLiquidationZeroMark(t *testing.T) {
	p := &Position{Side: PositionSideLong, MarkPrice: decimal.Zero, LiquidationPrice: decimal.NewFromInt(45)}
	if !p.DistanceToLiquidation().IsZero() {
		t.Error("标记价格为 0 时距离应为 0")
	}
}

func TestPositionSideOpposite(t *testing.T) {
	if PositionSideLong.Opposite() != PositionSideShort {
		t.Error("long 的反方向应为 short")
	}
	if PositionSideShort.Opposite() != PositionSideLong {
		t.Error("short 的反方向应为 long")
	}
}
