package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/internal/orders"
	"github.com/lighterbot/hedgeguard/internal/wallet"
)

// ActionTaken 的取值（回填进爆仓事件，进入审计日志）
const (
	ActionOrdersCancelledNoPosition = "orders_cancelled_no_position"
	ActionPositionClosed            = "orders_cancelled_position_closed"
	ActionUnexpectedConfiguration   = "unexpected_position_configuration"
	ActionCloseFailed               = "position_close_failed"
	ActionNoSurvivorHandle          = "survivor_has_no_handle"
)

// Coordinator 应急处理协调器
//
// 一腿爆仓后对幸存腿执行：撤掉全部挂单，再用市价单平掉反向仓位。
// 整个流程尽力而为：每一步失败都记录日志并继续能做的部分，
// 绝不因为单步失败丢下幸存腿不管。
type Coordinator struct {
	registry *wallet.Registry
	ledger   *orders.Ledger
	logger   *logrus.Entry
}

// NewCoordinator 创建应急处理协调器
func NewCoordinator(registry *wallet.Registry, ledger *orders.Ledger) *Coordinator {
	return &Coordinator{
		registry: registry,
		ledger:   ledger,
		logger:   logrus.WithField("component", "risk"),
	}
}

// Unwind 对爆仓钱包的幸存腿执行应急处理
// 返回值描述实际执行到的动作，调用方负责回填事件并落审计日志
func (c *Coordinator) Unwind(ctx context.Context, event *domain.LiquidationEvent) string {
	pair, ok := c.registry.PairOf(event.Wallet)
	if !ok {
		c.logger.Errorf("爆仓钱包 %s 不属于任何钱包对，无法应急处理", domain.ShortAddr(event.Wallet))
		return ActionUnexpectedConfiguration
	}

	survivor, err := pair.Other(event.Wallet)
	if err != nil {
		c.logger.Errorf("定位幸存腿失败: %v", err)
		return ActionUnexpectedConfiguration
	}

	// 只读腿无法撤单也无法平仓，记录后放弃
	handle, err := pair.Handle(survivor)
	if err != nil {
		c.logger.Errorf("幸存腿 %s 没有交易所句柄，无法应急处理: %v",
			domain.ShortAddr(survivor), err)
		return ActionNoSurvivorHandle
	}

	c.logger.Errorf("🚨 开始应急处理: 爆仓腿 %s, 幸存腿 %s",
		domain.ShortAddr(event.Wallet), domain.ShortAddr(survivor))

	// 第一步：撤掉幸存腿的全部挂单
	cancelled := c.ledger.CancelAll(ctx, survivor)
	c.logger.Infof("幸存腿 %s 已撤单 %d 笔", domain.ShortAddr(survivor), cancelled)

	// 第二步：查询幸存腿的仓位
	resp, err := handle.GetPosition(ctx, survivor, event.Market)
	if err != nil {
		c.logger.Errorf("查询幸存腿 %s 仓位失败: %v", domain.ShortAddr(survivor), err)
		return ActionCloseFailed
	}

	size := exchange.DecimalField(resp.Size)
	if size.IsZero() {
		c.logger.Infof("幸存腿 %s 无持仓，应急处理完成", domain.ShortAddr(survivor))
		return ActionOrdersCancelledNoPosition
	}

	// 第三步：校验两腿方向互补
	// 爆仓腿是多头时幸存腿必须是空头（用市价买入平仓），反之亦然
	survivorSide := domain.PositionSideLong
	if resp.Side == "short" {
		survivorSide = domain.PositionSideShort
	}
	if survivorSide != event.Side.Opposite() {
		c.logger.Errorf("⚠️ 幸存腿 %s 方向异常: 期望 %s, 实际 %s，跳过平仓",
			domain.ShortAddr(survivor), event.Side.Opposite(), survivorSide)
		return ActionUnexpectedConfiguration
	}

	// 第四步：市价单平掉幸存腿仓位
	closeKind := domain.OrderKindMarketBuy
	if survivorSide == domain.PositionSideLong {
		closeKind = domain.OrderKindMarketSell
	}

	order, err := c.ledger.Submit(ctx, survivor, event.Market, closeKind, decimal.Zero, size)
	if err != nil {
		c.logger.Errorf("幸存腿 %s 市价平仓失败: %v", domain.ShortAddr(survivor), err)
		return ActionCloseFailed
	}

	c.logger.Infof("✅ 幸存腿 %s 平仓单已提交: %s (数量 %s)",
		domain.ShortAddr(survivor), order.ID, size.String())
	return fmt.Sprintf("%s:%s", ActionPositionClosed, order.ID)
}
