package risk

import (
	"fmt"
	"sync/atomic"
)

// ErrBreakerOpen 表示断路器已打开，禁止继续挂新订单。
var ErrBreakerOpen = fmt.Errorf("断路器已打开，停止挂单")

// Breaker 下单断路器。
//
// 连续的交易所调用失败达到上限后熔断，阻止继续布设新订单；
// 紧急停机时手动熔断。应急平仓不经过断路器：平掉幸存腿的
// 市价单永远允许提交。
// 快路径只读原子变量，任意 goroutine 并发调用都是安全的。
type Breaker struct {
	halted            atomic.Bool
	consecutiveErrors atomic.Int64
	maxErrors         atomic.Int64
}

// NewBreaker 创建断路器。maxConsecutiveErrors <= 0 表示不按错误数熔断。
func NewBreaker(maxConsecutiveErrors int64) *Breaker {
	b := &Breaker{}
	b.maxErrors.Store(maxConsecutiveErrors)
	return b
}

// Halt 手动熔断（紧急停机或人工介入）。
func (b *Breaker) Halt() {
	if b == nil {
		return
	}
	b.halted.Store(true)
}

// Resume 手动恢复，同时清空连续错误计数。
func (b *Breaker) Resume() {
	if b == nil {
		return
	}
	b.halted.Store(false)
	b.consecutiveErrors.Store(0)
}

// Allow 检查当前是否允许挂新订单。
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	if b.halted.Load() {
		return ErrBreakerOpen
	}
	max := b.maxErrors.Load()
	if max > 0 && b.consecutiveErrors.Load() >= max {
		b.halted.Store(true)
		return ErrBreakerOpen
	}
	return nil
}

// OnSuccess 一次下单成功后调用，清空连续错误计数。
func (b *Breaker) OnSuccess() {
	if b == nil {
		return
	}
	b.consecutiveErrors.Store(0)
}

// OnError 一次下单失败后调用，累计连续错误计数。
func (b *Breaker) OnError() {
	if b == nil {
		return
	}
	b.consecutiveErrors.Add(1)
}
