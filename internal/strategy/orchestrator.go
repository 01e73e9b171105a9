package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/balance"
	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/journal"
	"github.com/lighterbot/hedgeguard/internal/orders"
	"github.com/lighterbot/hedgeguard/internal/positions"
	"github.com/lighterbot/hedgeguard/internal/risk"
	"github.com/lighterbot/hedgeguard/internal/wallet"
	"github.com/lighterbot/hedgeguard/pkg/config"
	"github.com/lighterbot/hedgeguard/pkg/sigchan"
	"github.com/lighterbot/hedgeguard/pkg/syncgroup"
)

// Orchestrator 对冲守护策略编排器
//
// 启动流程：校验余额 -> 布设对冲订单 -> 启动四个监控循环
// （订单 / 仓位 / 余额 / 状态日志）。任意一腿爆仓时由仓位监控器
// 触发应急处理，可选地升级为全局紧急停机。
type Orchestrator struct {
	cfg config.Config

	registry    *wallet.Registry
	checker     *balance.Checker
	ledger      *orders.Ledger
	monitor     *positions.Monitor
	coordinator *risk.Coordinator
	breaker     *risk.Breaker
	journal     *journal.Journal

	shutdown *sigchan.Chan
	group    *syncgroup.SyncGroup
	logger   *logrus.Entry
}

// New 创建策略编排器并完成组件接线
func New(cfg config.Config, registry *wallet.Registry, jnl *journal.Journal) *Orchestrator {
	checker := balance.NewChecker(registry,
		decimal.NewFromFloat(cfg.Trading.MinBalance),
		secs(cfg.Monitor.BalanceCacheTTL))
	ledger := orders.NewLedger(registry)
	monitor := positions.NewMonitor(registry, cfg.Trading.Market)
	coordinator := risk.NewCoordinator(registry, ledger)

	o := &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		checker:     checker,
		ledger:      ledger,
		monitor:     monitor,
		coordinator: coordinator,
		breaker:     risk.NewBreaker(cfg.MaxConsecutiveErrors),
		journal:     jnl,
		shutdown:    sigchan.New(1),
		group:       syncgroup.NewSyncGroup(),
		logger:      logrus.WithField("component", "strategy"),
	}

	// 完全成交的订单落审计日志
	ledger.SetFilledHandler(func(ord *domain.Order) {
		jnl.RecordFill(ord)
	})
	// 爆仓事件交给编排器处理（应急平仓 + 审计 + 可选停机升级）
	monitor.AddListener(o)

	return o
}

// Ledger 暴露订单台账（withdraw 模式与测试用）
func (o *Orchestrator) Ledger() *orders.Ledger { return o.ledger }

// Monitor 暴露仓位监控器（测试用）
func (o *Orchestrator) Monitor() *positions.Monitor { return o.monitor }

// Checker 暴露余额检查器（测试用）
func (o *Orchestrator) Checker() *balance.Checker { return o.checker }

// Initialize 启动前校验：所有钱包余额必须达标，否则快速失败
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.logger.Infof("🚀 初始化对冲守护: %d 个钱包对, 市场 %s",
		len(o.registry.Pairs()), o.cfg.Trading.Market)

	if err := o.checker.ValidateAll(ctx); err != nil {
		return fmt.Errorf("启动前余额校验失败: %w", err)
	}
	return nil
}

// SetupOrders 为每个钱包对布设对冲订单
// A 腿挂限价买单，B 腿挂限价卖单。单个钱包对失败时跳过该对并
// 撤回已挂出的半边，不影响其他钱包对。返回成功布设的钱包对数量
func (o *Orchestrator) SetupOrders(ctx context.Context) int {
	buyPrice := decimal.NewFromFloat(o.cfg.Trading.BuyPrice)
	sellPrice := decimal.NewFromFloat(o.cfg.Trading.SellPrice)
	size := decimal.NewFromFloat(o.cfg.Trading.OrderSize)
	market := o.cfg.Trading.Market

	ready := 0
	for _, pair := range o.registry.Pairs() {
		if err := o.breaker.Allow(); err != nil {
			o.logger.Errorf("%v，剩余钱包对不再布设", err)
			break
		}

		if _, err := o.ledger.Submit(ctx, pair.AddressA, market, domain.OrderKindLimitBuy, buyPrice, size); err != nil {
			o.logger.Errorf("钱包对 %s 买单失败，跳过该对: %v", pair.Ref(), err)
			o.breaker.OnError()
			continue
		}

		if _, err := o.ledger.Submit(ctx, pair.AddressB, market, domain.OrderKindLimitSell, sellPrice, size); err != nil {
			o.logger.Errorf("钱包对 %s 卖单失败，撤回买单并跳过该对: %v", pair.Ref(), err)
			o.breaker.OnError()
			o.ledger.CancelAll(ctx, pair.AddressA)
			continue
		}

		o.breaker.OnSuccess()
		o.logger.Infof("✅ 钱包对 %s 对冲订单已布设 (买 %s @ %s / 卖 %s @ %s)",
			pair.Ref(), size.String(), buyPrice.String(), size.String(), sellPrice.String())
		ready++
	}

	// 下单动作改变了余额，缓存作废
	o.checker.InvalidateAll()

	o.logger.Infof("订单布设完成: %d/%d 个钱包对就绪", ready, len(o.registry.Pairs()))
	return ready
}

// OnLiquidation 爆仓事件处理：应急平仓幸存腿，回填审计记录，
// 配置允许时升级为全局紧急停机
func (o *Orchestrator) OnLiquidation(ctx context.Context, event *domain.LiquidationEvent) {
	action := o.coordinator.Unwind(ctx, event)
	event.ActionTaken = action
	o.journal.RecordLiquidation(event)

	if o.cfg.EmergencyShutdownEnabled {
		o.logger.Errorf("🚨 触发全局紧急停机: 撤销所有钱包的全部挂单")
		o.breaker.Halt()
		o.ledger.CancelAll(ctx, "")
		o.shutdown.Emit()
	}
}

// Run 启动监控循环并阻塞到收到停止信号
// ctx 取消（外部信号）或内部紧急停机都会触发有序退出
func (o *Orchestrator) Run(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.group.Add(func() { o.ledger.PollLoop(loopCtx, secs(o.cfg.Monitor.OrderInterval)) })
	o.group.Add(func() { o.monitor.PollLoop(loopCtx, secs(o.cfg.Monitor.PositionInterval)) })
	o.group.Add(func() { o.checker.MonitorLoop(loopCtx, secs(o.cfg.Monitor.BalanceInterval)) })
	o.group.Add(func() { o.statusLoop(loopCtx, secs(o.cfg.Monitor.StatusInterval)) })
	o.group.Run()

	o.logger.Info("🚀 对冲守护已启动，监控循环运行中")

	select {
	case <-ctx.Done():
		o.logger.Info("收到外部停止信号，开始有序退出")
	case <-o.shutdown.C():
		o.logger.Warn("收到紧急停机信号，开始有序退出")
	}

	cancel()
	o.group.Wait()
	o.logger.Info("所有监控循环已退出")
}

// statusLoop 周期性输出运行状态概要
func (o *Orchestrator) statusLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.logger.Infof("📊 状态: %s | %s", o.ledger.Summary(), o.monitor.Summary())
		}
	}
}

// WithdrawAll 提现模式：撤销所有挂单后把每个钱包的余额全部提出
// 不启动任何监控循环
func (o *Orchestrator) WithdrawAll(ctx context.Context) error {
	o.logger.Info("💰 提现模式: 撤销所有挂单并清空钱包余额")

	o.ledger.CancelAll(ctx, "")
	o.checker.InvalidateAll()

	var failed int
	for _, addr := range o.registry.Addresses() {
		if !o.registry.HasHandle(addr) {
			o.logger.Infof("钱包 %s 是只读腿，跳过提现", domain.ShortAddr(addr))
			continue
		}
		rec, err := o.checker.Balance(ctx, addr)
		if err != nil {
			o.logger.Errorf("钱包 %s 余额查询失败，跳过提现: %v", domain.ShortAddr(addr), err)
			failed++
			continue
		}
		if rec.Balance.LessThanOrEqual(decimal.Zero) {
			o.logger.Infof("钱包 %s 余额为 0，跳过提现", domain.ShortAddr(addr))
			continue
		}

		handle, err := o.registry.Handle(addr)
		if err != nil {
			failed++
			continue
		}
		if err := handle.Withdraw(ctx, addr, rec.Balance); err != nil {
			o.logger.Errorf("钱包 %s 提现失败: %v", domain.ShortAddr(addr), err)
			failed++
			continue
		}
		o.checker.Invalidate(addr)
		o.logger.Infof("✅ 钱包 %s 已提现 %s", domain.ShortAddr(addr), rec.Balance.String())
	}

	if failed > 0 {
		return fmt.Errorf("提现完成，但有 %d 个钱包失败", failed)
	}
	return nil
}

// Close 释放所有资源
func (o *Orchestrator) Close() {
	o.registry.Close()
	if err := o.journal.Close(); err != nil {
		o.logger.Warnf("关闭审计日志失败: %v", err)
	}
}

// secs 把配置里的秒数转换成 time.Duration
func secs(f float64) time.Duration {
	if f <= 0 {
		return time.Second
	}
	return time.Duration(f * float64(time.Second))
}
