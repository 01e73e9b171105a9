package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind 订单类型
type OrderKind string

const (
	OrderKindLimitBuy   OrderKind = "limit_buy"   // 限价买入
	OrderKindLimitSell  OrderKind = "limit_sell"  // 限价卖出
	OrderKindMarketBuy  OrderKind = "market_buy"  // 市价买入
	OrderKindMarketSell OrderKind = "market_sell" // 市价卖出
)

// Side 返回订单方向（"buy" 或 "sell"）
func (k OrderKind) Side() string {
	switch k {
	case OrderKindLimitBuy, OrderKindMarketBuy:
		return "buy"
	default:
		return "sell"
	}
}

// Type 返回订单类型（"limit" 或 "market"）
func (k OrderKind) Type() string {
	switch k {
	case OrderKindMarketBuy, OrderKindMarketSell:
		return "market"
	default:
		return "limit"
	}
}

// IsMarket 检查是否为市价单
func (k OrderKind) IsMarket() bool {
	return k.Type() == "market"
}

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"          // 待处理
	OrderStatusOpen      OrderStatus = "open"             // 开放中
	OrderStatusPartial   OrderStatus = "partially_filled" // 部分成交
	OrderStatusFilled    OrderStatus = "filled"           // 已成交
	OrderStatusCancelled OrderStatus = "cancelled"        // 已取消
	OrderStatusFailed    OrderStatus = "failed"           // 失败
)

// IsTerminal 检查是否为最终状态（filled/cancelled/failed）
// 最终状态不应该被中间状态覆盖
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusFailed
}

// ParseOrderStatus 解析交易所返回的状态字符串
// 未知的状态值返回错误，由调用方记录日志，不做静默兜底
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch s {
	case "pending":
		return OrderStatusPending, nil
	case "open":
		return OrderStatusOpen, nil
	case "partially_filled", "partial":
		return OrderStatusPartial, nil
	case "filled":
		return OrderStatusFilled, nil
	case "cancelled", "canceled":
		return OrderStatusCancelled, nil
	case "failed":
		return OrderStatusFailed, nil
	default:
		return "", fmt.Errorf("未知的订单状态: %q", s)
	}
}

// Order 订单领域模型
//
// 不变量：RemainingSize = Size - FilledSize，始终 >= 0。
// 订单只会被轮询结果更新；到达最终状态后不再变化。
type Order struct {
	ID            string          // 交易所订单 ID
	Wallet        string          // 下单钱包地址
	Market        string          // 市场
	Kind          OrderKind       // 订单类型
	Price         decimal.Decimal // 订单价格（市价单为 0）
	Size          decimal.Decimal // 订单原始数量
	FilledSize    decimal.Decimal // 已成交数量（partial fill 累计）
	RemainingSize decimal.Decimal // 剩余数量
	Status        OrderStatus     // 订单状态
	CreatedAt     time.Time       // 创建时间
	UpdatedAt     time.Time       // 最后更新时间
}

// ApplyFill 以交易所为准更新成交数量，并维护 RemainingSize 不变量
// 只接受单调递增的 filled（绝不回退本地进度）
func (o *Order) ApplyFill(filled decimal.Decimal, now time.Time) {
	if filled.LessThan(o.FilledSize) {
		return
	}
	o.FilledSize = filled
	o.RemainingSize = o.Size.Sub(o.FilledSize)
	if o.RemainingSize.IsNegative() {
		o.RemainingSize = decimal.Zero
	}
	o.UpdatedAt = now
}

// IsActive 检查订单是否还在活跃索引中（非最终状态）
func (o *Order) IsActive() bool {
	return !o.Status.IsTerminal()
}

func (o *Order) String() string {
	return fmt.Sprintf("Order %s | %s | %s | price=%s size=%s filled=%s/%s | %s",
		shortID(o.ID), o.Kind, o.Market,
		o.Price.String(), o.Size.String(), o.FilledSize.String(), o.Size.String(), o.Status)
}

// shortID 截断长 ID/地址用于日志展示
func shortID(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "..."
}

// ShortAddr 截断钱包地址用于日志展示
func ShortAddr(addr string) string {
	return shortID(addr)
}
