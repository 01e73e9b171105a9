package balance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/wallet"
	"github.com/lighterbot/hedgeguard/pkg/cache"
)

// 余额以 USDC 计价
const collateralToken = "USDC"

// Record 单个钱包的余额观测结果
// FetchedAt 始终是真正回源的时刻，命中缓存时保留原始抓取时间
type Record struct {
	Wallet    string
	Balance   decimal.Decimal
	FetchedAt time.Time
	FromCache bool
}

// cachedBalance 缓存条目，余额连同抓取时间一起缓存
type cachedBalance struct {
	amount    decimal.Decimal
	fetchedAt time.Time
}

// Checker 余额检查器
//
// 余额读取走 TTL 缓存，过期后回源交易所。单个钱包回源失败时
// 按零余额处理（记录告警），不会阻断同批次其他钱包的检查。
type Checker struct {
	registry   *wallet.Registry
	cache      *cache.InMemoryCache[string, cachedBalance]
	minBalance decimal.Decimal
	ttl        time.Duration
	logger     *logrus.Entry
}

// NewChecker 创建余额检查器
func NewChecker(registry *wallet.Registry, minBalance decimal.Decimal, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Checker{
		registry:   registry,
		cache:      cache.NewInMemoryCache[string, cachedBalance](ttl),
		minBalance: minBalance,
		ttl:        ttl,
		logger:     logrus.WithField("component", "balance"),
	}
}

// Balance 获取单个钱包的余额，优先走缓存
func (c *Checker) Balance(ctx context.Context, addr string) (Record, error) {
	if v, ok := c.cache.Get(addr); ok {
		return Record{Wallet: addr, Balance: v.amount, FetchedAt: v.fetchedAt, FromCache: true}, nil
	}

	handle, err := c.registry.Handle(addr)
	if err != nil {
		return Record{}, err
	}

	resp, err := handle.GetBalance(ctx, addr, collateralToken)
	if err != nil {
		return Record{}, fmt.Errorf("查询钱包 %s 余额失败: %w", domain.ShortAddr(addr), err)
	}

	amount := resp.Amount()
	fetchedAt := time.Now()
	c.cache.Set(addr, cachedBalance{amount: amount, fetchedAt: fetchedAt}, c.ttl)
	return Record{Wallet: addr, Balance: amount, FetchedAt: fetchedAt}, nil
}

// Invalidate 使单个钱包的余额缓存失效（下单或提现后调用）
func (c *Checker) Invalidate(addr string) {
	c.cache.Delete(addr)
}

// InvalidateAll 清空整个余额缓存
func (c *Checker) InvalidateAll() {
	c.cache.Clear()
}

// CheckAll 并发检查所有持有句柄的钱包的余额
// 只读腿跳过；单个钱包失败按零余额记录，不影响其他钱包
func (c *Checker) CheckAll(ctx context.Context) map[string]decimal.Decimal {
	addrs := c.registry.Addresses()
	results := make(map[string]decimal.Decimal, len(addrs))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, addr := range addrs {
		if !c.registry.HasHandle(addr) {
			continue
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			rec, err := c.Balance(ctx, addr)
			bal := decimal.Zero
			if err != nil {
				c.logger.Warnf("⚠️ 钱包 %s 余额查询失败，按 0 处理: %v", domain.ShortAddr(addr), err)
			} else {
				bal = rec.Balance
			}
			mu.Lock()
			results[addr] = bal
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	return results
}

// ValidateAll 校验所有钱包余额是否达到最低要求
// 返回的错误一次性列出所有不达标的钱包，供启动期快速失败
func (c *Checker) ValidateAll(ctx context.Context) error {
	balances := c.CheckAll(ctx)

	var offending []string
	for addr, bal := range balances {
		if bal.LessThan(c.minBalance) {
			offending = append(offending, fmt.Sprintf("%s (余额 %s, 要求 %s)",
				domain.ShortAddr(addr), bal.String(), c.minBalance.String()))
		}
	}
	if len(offending) == 0 {
		c.logger.Infof("✅ 余额校验通过: %d 个钱包全部达标 (最低 %s %s)",
			len(balances), c.minBalance.String(), collateralToken)
		return nil
	}

	sort.Strings(offending)
	return fmt.Errorf("余额不足的钱包 %d 个: %s", len(offending), strings.Join(offending, "; "))
}

// MonitorLoop 余额监控循环，按固定间隔检查所有钱包
// 余额低于最低要求只告警，不触发停机
func (c *Checker) MonitorLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Infof("余额监控循环已启动 (间隔 %s)", interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("余额监控循环已退出")
			return
		case <-ticker.C:
			balances := c.CheckAll(ctx)
			for addr, bal := range balances {
				if bal.LessThan(c.minBalance) {
					c.logger.Warnf("⚠️ 钱包 %s 余额不足: %s < %s",
						domain.ShortAddr(addr), bal.String(), c.minBalance.String())
				}
			}
		}
	}
}
