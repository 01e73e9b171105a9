package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/wallet"
)

// 交易所单笔订单的价格与数量上限
var (
	MaxPrice = decimal.NewFromInt(1_000_000)
	MaxSize  = decimal.NewFromInt(1_000_000)
)

// FilledHandler 订单完全成交时的回调（锁外调用）
type FilledHandler func(o *domain.Order)

// Ledger 订单台账
//
// 以交易所为准：本地状态只会被轮询结果推进，绝不自行猜测。
// 所有索引由单个 RWMutex 保护；遍历前先在锁内拷贝快照，
// 网络调用一律在锁外进行。
type Ledger struct {
	mu     sync.RWMutex
	active map[string]*domain.Order // 订单 ID -> 非最终状态订单
	filled []*domain.Order          // 完全成交的订单（追加式）

	registry *wallet.Registry
	onFilled FilledHandler
	logger   *logrus.Entry
}

// NewLedger 创建订单台账
func NewLedger(registry *wallet.Registry) *Ledger {
	return &Ledger{
		active:   make(map[string]*domain.Order),
		registry: registry,
		logger:   logrus.WithField("component", "orders"),
	}
}

// SetFilledHandler 注册订单完全成交时的回调
func (l *Ledger) SetFilledHandler(h FilledHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFilled = h
}

// validate 校验订单参数（市价单不校验价格）
func validate(kind domain.OrderKind, price, size decimal.Decimal) error {
	if !kind.IsMarket() {
		if price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("订单价格必须大于 0（当前: %s）", price.String())
		}
		if price.GreaterThan(MaxPrice) {
			return fmt.Errorf("订单价格超过上限 %s（当前: %s）", MaxPrice.String(), price.String())
		}
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("订单数量必须大于 0（当前: %s）", size.String())
	}
	if size.GreaterThan(MaxSize) {
		return fmt.Errorf("订单数量超过上限 %s（当前: %s）", MaxSize.String(), size.String())
	}
	return nil
}

// Submit 提交订单并登记进活跃索引
// 交易所响应缺少 order_id 视为创建失败，不登记任何状态
func (l *Ledger) Submit(ctx context.Context, walletAddr, market string, kind domain.OrderKind, price, size decimal.Decimal) (*domain.Order, error) {
	if err := validate(kind, price, size); err != nil {
		return nil, err
	}

	handle, err := l.registry.Handle(walletAddr)
	if err != nil {
		return nil, err
	}

	req := buildCreateRequest(walletAddr, market, kind, price, size)
	resp, err := handle.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("钱包 %s 下单失败: %w", domain.ShortAddr(walletAddr), err)
	}
	if resp.OrderID == "" {
		return nil, fmt.Errorf("钱包 %s 下单失败: 交易所响应缺少订单 ID", domain.ShortAddr(walletAddr))
	}

	now := time.Now()
	order := &domain.Order{
		ID:            resp.OrderID,
		Wallet:        walletAddr,
		Market:        market,
		Kind:          kind,
		Price:         price,
		Size:          size,
		FilledSize:    decimal.Zero,
		RemainingSize: size,
		Status:        domain.OrderStatusOpen, // 提交成功即视为开放，PENDING 只表示提交前
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if kind.IsMarket() {
		order.Price = decimal.Zero
	}

	l.mu.Lock()
	l.active[order.ID] = order
	l.mu.Unlock()

	l.logger.Infof("✅ 订单已提交: %s", order.String())
	snapshot := *order
	return &snapshot, nil
}

// Refresh 从交易所拉取单个订单的最新状态并应用
// 查询失败只报告错误，本地状态保持不变；最终状态不可被覆盖
func (l *Ledger) Refresh(ctx context.Context, orderID string) error {
	l.mu.RLock()
	order, ok := l.active[orderID]
	var walletAddr string
	if ok {
		walletAddr = order.Wallet
	}
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("订单 %s 不在活跃索引中", orderID)
	}

	handle, err := l.registry.Handle(walletAddr)
	if err != nil {
		return err
	}

	resp, err := handle.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("查询订单 %s 状态失败: %w", orderID, err)
	}

	status, err := domain.ParseOrderStatus(resp.Status)
	if err != nil {
		return fmt.Errorf("订单 %s: %w", orderID, err)
	}
	filled := resp.FilledSizeParsed()

	l.applyUpdate(orderID, status, filled)
	return nil
}

// applyUpdate 把远端状态应用到本地订单
func (l *Ledger) applyUpdate(orderID string, status domain.OrderStatus, filled decimal.Decimal) {
	var notifyFilled *domain.Order

	l.mu.Lock()
	order, ok := l.active[orderID]
	if !ok {
		l.mu.Unlock()
		return
	}

	// 最终状态不可逆
	if order.Status.IsTerminal() {
		l.mu.Unlock()
		return
	}

	now := time.Now()
	order.ApplyFill(filled, now)

	// 远端报 open 但已有成交量时按部分成交处理
	if !status.IsTerminal() && order.FilledSize.GreaterThan(decimal.Zero) {
		status = domain.OrderStatusPartial
	}
	// 状态只前进: 远端的 pending 不能把本地订单拉回去
	if status == domain.OrderStatusPending {
		status = order.Status
	}

	if status != order.Status {
		l.logger.Infof("订单 %s 状态: %s -> %s (成交 %s/%s)",
			orderID, order.Status, status, order.FilledSize.String(), order.Size.String())
		order.Status = status
		order.UpdatedAt = now
	}

	if status.IsTerminal() {
		delete(l.active, orderID)
		if status == domain.OrderStatusFilled {
			l.filled = append(l.filled, order)
			cp := *order
			notifyFilled = &cp
		}
	}
	handler := l.onFilled
	l.mu.Unlock()

	if notifyFilled != nil {
		l.logger.Infof("🎯 订单完全成交: %s", notifyFilled.String())
		if handler != nil {
			handler(notifyFilled)
		}
	}
}

// RefreshAll 刷新所有活跃订单的状态
// 单个订单失败不影响其他订单，失败数汇总在返回值里
func (l *Ledger) RefreshAll(ctx context.Context) (failures int) {
	for _, id := range l.activeIDs() {
		if err := l.Refresh(ctx, id); err != nil {
			failures++
			l.logger.Warnf("⚠️ %v", err)
		}
	}
	return failures
}

// CancelAll 并发撤销指定钱包的所有活跃订单（walletAddr 为空时撤销全部）
// 每笔订单独立结算成败，只有确认撤销成功的订单才会离开活跃索引
func (l *Ledger) CancelAll(ctx context.Context, walletAddr string) (cancelled int) {
	snapshot := l.ActiveOrders(walletAddr)
	if len(snapshot) == 0 {
		return 0
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, o := range snapshot {
		wg.Add(1)
		go func(o *domain.Order) {
			defer wg.Done()
			handle, err := l.registry.Handle(o.Wallet)
			if err != nil {
				l.logger.Warnf("⚠️ 撤销订单 %s 失败: %v", o.ID, err)
				return
			}
			resp, err := handle.CancelOrder(ctx, o.ID)
			if err != nil {
				l.logger.Warnf("⚠️ 撤销订单 %s 失败: %v", o.ID, err)
				return
			}
			if !resp.Success {
				l.logger.Warnf("⚠️ 交易所拒绝撤销订单 %s", o.ID)
				return
			}
			l.markCancelled(o.ID)
			mu.Lock()
			cancelled++
			mu.Unlock()
		}(o)
	}
	wg.Wait()

	l.logger.Infof("撤单完成: %d/%d 笔成功 (钱包 %s)",
		cancelled, len(snapshot), displayWallet(walletAddr))
	return cancelled
}

// markCancelled 把订单标记为已撤销并移出活跃索引
func (l *Ledger) markCancelled(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.active[orderID]
	if !ok || order.Status.IsTerminal() {
		return
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	delete(l.active, orderID)
}

// PollLoop 订单状态轮询循环
func (l *Ledger) PollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Infof("订单监控循环已启动 (间隔 %s)", interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("订单监控循环已退出")
			return
		case <-ticker.C:
			l.RefreshAll(ctx)
		}
	}
}

// activeIDs 返回活跃订单 ID 快照
func (l *Ledger) activeIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.active))
	for id := range l.active {
		ids = append(ids, id)
	}
	return ids
}

// ActiveOrders 返回活跃订单快照（walletAddr 为空时返回全部）
// 返回的是拷贝：台账内部的订单只在锁内更新，不允许外部直接读写
func (l *Ledger) ActiveOrders(walletAddr string) []*domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Order, 0, len(l.active))
	for _, o := range l.active {
		if walletAddr == "" || o.Wallet == walletAddr {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out
}

// FilledOrders 返回完全成交订单的拷贝
func (l *Ledger) FilledOrders() []*domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Order, 0, len(l.filled))
	for _, o := range l.filled {
		cp := *o
		out = append(out, &cp)
	}
	return out
}

// Get 按 ID 查找订单（活跃或已成交），返回拷贝
func (l *Ledger) Get(orderID string) (*domain.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if o, ok := l.active[orderID]; ok {
		cp := *o
		return &cp, true
	}
	for _, o := range l.filled {
		if o.ID == orderID {
			cp := *o
			return &cp, true
		}
	}
	return nil, false
}

// Summary 返回订单台账概要（状态日志用）
func (l *Ledger) Summary() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fmt.Sprintf("活跃订单 %d 笔 / 已成交 %d 笔", len(l.active), len(l.filled))
}

func displayWallet(addr string) string {
	if addr == "" {
		return "全部"
	}
	return domain.ShortAddr(addr)
}
