package wallet

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/pkg/config"
)

// ClientFactory 为单个钱包创建交易所句柄（按 API key 鉴权）
// 返回 nil 表示该钱包没有句柄，是只读腿
type ClientFactory func(address, apiKey string) exchange.Client

// Registry 钱包对注册表
// 启动时一次性构建，运行期间只读，无需加锁
type Registry struct {
	pairs  []*Pair
	byAddr map[string]*Pair
	logger *logrus.Entry
}

// NewRegistry 从配置构建钱包对注册表
// 任意一个钱包对校验失败则整体失败（启动期快速失败）
func NewRegistry(cfgs []config.WalletPairConfig, factory ClientFactory) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("未配置任何钱包对")
	}

	r := &Registry{
		byAddr: make(map[string]*Pair),
		logger: logrus.WithField("component", "wallet"),
	}

	for i, c := range cfgs {
		p := &Pair{
			AddressA: c.AddressA,
			AddressB: c.AddressB,
			HandleA:  factory(c.AddressA, c.APIKeyA),
			HandleB:  factory(c.AddressB, c.APIKeyB),
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("钱包对 #%d 配置无效: %w", i+1, err)
		}
		if _, dup := r.byAddr[p.AddressA]; dup {
			return nil, fmt.Errorf("钱包地址 %s 在多个钱包对中重复出现", domain.ShortAddr(p.AddressA))
		}
		if _, dup := r.byAddr[p.AddressB]; dup {
			return nil, fmt.Errorf("钱包地址 %s 在多个钱包对中重复出现", domain.ShortAddr(p.AddressB))
		}
		r.pairs = append(r.pairs, p)
		r.byAddr[p.AddressA] = p
		r.byAddr[p.AddressB] = p
	}

	observeOnly := 0
	for _, addr := range r.Addresses() {
		if !r.HasHandle(addr) {
			observeOnly++
		}
	}
	r.logger.Infof("✅ 钱包对注册表已构建: %d 对 / %d 个钱包 (其中只读腿 %d 个)",
		len(r.pairs), len(r.byAddr), observeOnly)
	return r, nil
}

// Pairs 返回所有钱包对
func (r *Registry) Pairs() []*Pair {
	return r.pairs
}

// PairOf 返回地址所属的钱包对
func (r *Registry) PairOf(addr string) (*Pair, bool) {
	p, ok := r.byAddr[addr]
	return p, ok
}

// Handle 返回地址对应的交易所句柄
func (r *Registry) Handle(addr string) (exchange.Client, error) {
	p, ok := r.byAddr[addr]
	if !ok {
		return nil, fmt.Errorf("未知的钱包地址: %s", domain.ShortAddr(addr))
	}
	return p.Handle(addr)
}

// HasHandle 检查地址是否持有交易所句柄（只读腿返回 false）
func (r *Registry) HasHandle(addr string) bool {
	p, ok := r.byAddr[addr]
	return ok && p.HasHandle(addr)
}

// Addresses 返回所有被监控的钱包地址（按钱包对顺序）
func (r *Registry) Addresses() []string {
	out := make([]string, 0, len(r.byAddr))
	for _, p := range r.pairs {
		out = append(out, p.AddressA, p.AddressB)
	}
	return out
}

// Close 关闭所有交易所句柄
func (r *Registry) Close() {
	for _, p := range r.pairs {
		if p.HandleA != nil {
			if err := p.HandleA.Close(); err != nil {
				r.logger.Warnf("关闭钱包 %s 句柄失败: %v", domain.ShortAddr(p.AddressA), err)
			}
		}
		if p.HandleB != nil {
			if err := p.HandleB.Close(); err != nil {
				r.logger.Warnf("关闭钱包 %s 句柄失败: %v", domain.ShortAddr(p.AddressB), err)
			}
		}
	}
}
