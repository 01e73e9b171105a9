package wallet

import (
	"fmt"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
)

// Pair 对冲钱包对
//
// A 腿持有限价买单（吃多），B 腿持有限价卖单（吃空），两腿敞口互为对冲。
// 任意一腿爆仓时，另一腿（幸存腿）需要被撤单并平仓。
// 句柄可以为 nil：没有句柄的腿是只读腿，监控与下单都会跳过它。
type Pair struct {
	AddressA string
	AddressB string
	HandleA  exchange.Client // A 腿的交易所句柄（可为 nil）
	HandleB  exchange.Client // B 腿的交易所句柄（可为 nil）
}

// Ref 返回钱包对的标识（"addrA/addrB"，用于日志与审计记录）
func (p *Pair) Ref() string {
	return fmt.Sprintf("%s/%s", domain.ShortAddr(p.AddressA), domain.ShortAddr(p.AddressB))
}

// Contains 检查地址是否属于本钱包对
func (p *Pair) Contains(addr string) bool {
	return addr == p.AddressA || addr == p.AddressB
}

// Other 返回钱包对中的另一个地址
// 传入的地址不属于本钱包对时返回错误
func (p *Pair) Other(addr string) (string, error) {
	switch addr {
	case p.AddressA:
		return p.AddressB, nil
	case p.AddressB:
		return p.AddressA, nil
	default:
		return "", fmt.Errorf("地址 %s 不属于钱包对 %s", domain.ShortAddr(addr), p.Ref())
	}
}

// Handle 返回地址对应的交易所句柄
// 只读腿（句柄为 nil）返回错误
func (p *Pair) Handle(addr string) (exchange.Client, error) {
	switch addr {
	case p.AddressA:
		if p.HandleA == nil {
			return nil, fmt.Errorf("钱包 %s 没有交易所句柄（只读腿）", domain.ShortAddr(addr))
		}
		return p.HandleA, nil
	case p.AddressB:
		if p.HandleB == nil {
			return nil, fmt.Errorf("钱包 %s 没有交易所句柄（只读腿）", domain.ShortAddr(addr))
		}
		return p.HandleB, nil
	default:
		return nil, fmt.Errorf("地址 %s 不属于钱包对 %s", domain.ShortAddr(addr), p.Ref())
	}
}

// HasHandle 检查地址是否持有交易所句柄
func (p *Pair) HasHandle(addr string) bool {
	switch addr {
	case p.AddressA:
		return p.HandleA != nil
	case p.AddressB:
		return p.HandleB != nil
	default:
		return false
	}
}

// Addresses 返回钱包对的两个地址
func (p *Pair) Addresses() []string {
	return []string{p.AddressA, p.AddressB}
}

// Validate 校验钱包对的基本合法性
// 句柄不做校验：nil 句柄表示只读腿，是合法配置
func (p *Pair) Validate() error {
	if len(p.AddressA) < 10 || len(p.AddressB) < 10 {
		return fmt.Errorf("钱包地址格式无效: %s", p.Ref())
	}
	if p.AddressA == p.AddressB {
		return fmt.Errorf("钱包对的两个地址不能相同: %s", p.AddressA)
	}
	return nil
}
