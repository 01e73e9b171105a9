package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/internal/wallet"
)

// 健康比率阈值
var (
	criticalThreshold = decimal.NewFromFloat(0.05)
	warningThreshold  = decimal.NewFromFloat(0.15)
)

// LiquidationListener 爆仓事件监听器
// 监听器按注册顺序同步调用；单个监听器失败只记录日志，不影响后续监听器
type LiquidationListener interface {
	OnLiquidation(ctx context.Context, event *domain.LiquidationEvent)
}

// Monitor 仓位健康监控器
//
// 每个钱包在进程生命周期内最多触发一次爆仓处理，
// 由 liquidated 集合保证幂等。
type Monitor struct {
	registry *wallet.Registry
	market   string

	mu         sync.RWMutex
	liquidated map[string]bool            // 已触发爆仓处理的钱包
	events     []*domain.LiquidationEvent // 追加式事件记录
	latest     map[string]*domain.Position

	listeners []LiquidationListener
	logger    *logrus.Entry
}

// NewMonitor 创建仓位监控器
func NewMonitor(registry *wallet.Registry, market string) *Monitor {
	return &Monitor{
		registry:   registry,
		market:     market,
		liquidated: make(map[string]bool),
		latest:     make(map[string]*domain.Position),
		logger:     logrus.WithField("component", "positions"),
	}
}

// AddListener 注册爆仓事件监听器（启动前调用，运行期间不加锁遍历）
func (m *Monitor) AddListener(l LiquidationListener) {
	m.listeners = append(m.listeners, l)
}

// CheckPosition 查询并分类单个钱包的仓位
// 无仓位（size 为 0）返回 (nil, nil)，不是错误
func (m *Monitor) CheckPosition(ctx context.Context, addr string) (*domain.Position, error) {
	handle, err := m.registry.Handle(addr)
	if err != nil {
		return nil, err
	}

	resp, err := handle.GetPosition(ctx, addr, m.market)
	if err != nil {
		return nil, fmt.Errorf("查询钱包 %s 仓位失败: %w", domain.ShortAddr(addr), err)
	}

	pos := buildPosition(addr, resp)
	if pos == nil {
		// 仓位已平，清掉上一次的观测
		m.mu.Lock()
		delete(m.latest, addr)
		m.mu.Unlock()
		return nil, nil
	}

	m.mu.Lock()
	m.latest[addr] = pos
	m.mu.Unlock()

	if pos.Status == domain.PositionStatusLiquidated {
		m.handleLiquidation(ctx, pos)
	}
	return pos, nil
}

// buildPosition 把交易所响应转换成领域仓位并分类健康状态
func buildPosition(addr string, resp *exchange.PositionResponse) *domain.Position {
	size := exchange.DecimalField(resp.Size)
	if size.IsZero() && !resp.IsLiquidated {
		return nil
	}

	side := domain.PositionSideLong
	if resp.Side == "short" {
		side = domain.PositionSideShort
	}

	pos := &domain.Position{
		Wallet:           addr,
		Market:           resp.Market,
		Side:             side,
		Size:             size,
		EntryPrice:       exchange.DecimalField(resp.EntryPrice),
		MarkPrice:        exchange.DecimalField(resp.MarkPrice),
		LiquidationPrice: exchange.DecimalField(resp.LiquidationPrice),
		Margin:           exchange.DecimalField(resp.Margin),
		UnrealizedPnL:    exchange.DecimalField(resp.UnrealizedPnL),
		HealthRatio:      exchange.DecimalField(resp.HealthRatio),
		UpdatedAt:        time.Now(),
	}
	pos.Status = classify(resp.IsLiquidated, pos.HealthRatio)
	return pos
}

// classify 按爆仓标记与健康比率分类仓位状态
func classify(isLiquidated bool, health decimal.Decimal) domain.PositionStatus {
	switch {
	case isLiquidated:
		return domain.PositionStatusLiquidated
	case health.LessThanOrEqual(criticalThreshold):
		return domain.PositionStatusCritical
	case health.LessThanOrEqual(warningThreshold):
		return domain.PositionStatusWarning
	default:
		return domain.PositionStatusHealthy
	}
}

// handleLiquidation 处理爆仓：记录事件并按序通知监听器
// 同一钱包只处理一次
func (m *Monitor) handleLiquidation(ctx context.Context, pos *domain.Position) {
	m.mu.Lock()
	if m.liquidated[pos.Wallet] {
		m.mu.Unlock()
		return
	}
	m.liquidated[pos.Wallet] = true

	pairRef := ""
	if p, ok := m.registry.PairOf(pos.Wallet); ok {
		pairRef = p.Ref()
	}
	event := &domain.LiquidationEvent{
		ID:        uuid.NewString(),
		Wallet:    pos.Wallet,
		PairRef:   pairRef,
		Market:    pos.Market,
		Side:      pos.Side,
		Size:      pos.Size,
		Price:     pos.MarkPrice,
		Timestamp: time.Now(),
	}
	m.events = append(m.events, event)
	m.mu.Unlock()

	m.logger.Errorf("🚨 检测到爆仓: %s", event.String())

	for _, l := range m.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Errorf("爆仓监听器 panic: %v", r)
				}
			}()
			l.OnLiquidation(ctx, event)
		}()
	}
}

// CheckAll 并发检查所有持有句柄的钱包的仓位
// 只读腿跳过；单个钱包失败只记录告警，不影响其他钱包
func (m *Monitor) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, addr := range m.registry.Addresses() {
		if !m.registry.HasHandle(addr) {
			continue
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if _, err := m.CheckPosition(ctx, addr); err != nil {
				m.logger.Warnf("⚠️ %v", err)
			}
		}(addr)
	}
	wg.Wait()

	m.analyze()
}

// analyze 汇总告警级与危急级仓位，输出距爆仓距离
func (m *Monitor) analyze() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for addr, pos := range m.latest {
		switch pos.Status {
		case domain.PositionStatusCritical:
			m.logger.Errorf("🚨 钱包 %s 仓位危急: 健康比率 %s, 距爆仓 %s%%",
				domain.ShortAddr(addr), pos.HealthRatio.String(),
				pos.DistanceToLiquidation().StringFixed(2))
		case domain.PositionStatusWarning:
			m.logger.Warnf("⚠️ 钱包 %s 仓位接近爆仓: 健康比率 %s, 距爆仓 %s%%",
				domain.ShortAddr(addr), pos.HealthRatio.String(),
				pos.DistanceToLiquidation().StringFixed(2))
		}
	}
}

// PollLoop 仓位健康轮询循环
func (m *Monitor) PollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Infof("仓位监控循环已启动 (间隔 %s)", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("仓位监控循环已退出")
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// IsLiquidated 检查钱包是否已触发过爆仓处理
func (m *Monitor) IsLiquidated(addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liquidated[addr]
}

// Events 返回爆仓事件快照
func (m *Monitor) Events() []*domain.LiquidationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.LiquidationEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Latest 返回钱包最近一次观测到的仓位
func (m *Monitor) Latest(addr string) (*domain.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.latest[addr]
	return p, ok
}

// Summary 返回仓位监控概要（状态日志用）
func (m *Monitor) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[domain.PositionStatus]int{}
	for _, pos := range m.latest {
		counts[pos.Status]++
	}
	return fmt.Sprintf("持仓 %d 个 (健康 %d / 告警 %d / 危急 %d) | 爆仓事件 %d 起",
		len(m.latest),
		counts[domain.PositionStatusHealthy],
		counts[domain.PositionStatusWarning],
		counts[domain.PositionStatusCritical],
		len(m.events))
}
