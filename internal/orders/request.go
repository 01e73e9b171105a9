package orders

import (
	"github.com/shopspring/decimal"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
)

// buildCreateRequest 把领域层的订单参数转换成交易所请求
// 市价单不带价格字段
func buildCreateRequest(walletAddr, market string, kind domain.OrderKind, price, size decimal.Decimal) exchange.CreateOrderRequest {
	req := exchange.CreateOrderRequest{
		Market:    market,
		Side:      kind.Side(),
		OrderType: kind.Type(),
		Size:      size.String(),
		Wallet:    walletAddr,
	}
	if !kind.IsMarket() {
		req.Price = price.String()
	}
	return req
}
