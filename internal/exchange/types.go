package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// All numeric fields on the wire are strings. DecimalField parses them,
// treating a missing/empty field as zero. A malformed value is logged and
// also degrades to zero so a single bad field cannot poison a poll cycle.
func DecimalField(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		logrus.WithField("component", "exchange").Warnf("unparseable numeric field %q: %v", s, err)
		return decimal.Zero
	}
	return d
}

// BalanceResponse is the venue's balance payload.
type BalanceResponse struct {
	Balance string `json:"balance"`
}

// Amount returns the parsed balance.
func (r *BalanceResponse) Amount() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return DecimalField(r.Balance)
}

// PositionResponse is the venue's position payload.
// A zero Size means the wallet holds no position in the market.
type PositionResponse struct {
	Market           string `json:"market"`
	Side             string `json:"side"` // "long" | "short"
	Size             string `json:"size"`
	EntryPrice       string `json:"entry_price"`
	MarkPrice        string `json:"mark_price"`
	LiquidationPrice string `json:"liquidation_price"`
	Margin           string `json:"margin"`
	UnrealizedPnL    string `json:"unrealized_pnl"`
	HealthRatio      string `json:"health_ratio"`
	IsLiquidated     bool   `json:"is_liquidated"`
}

// CreateOrderRequest is the order submission payload.
// Price is omitted for market orders.
type CreateOrderRequest struct {
	Market    string `json:"market"`
	Side      string `json:"side"`       // "buy" | "sell"
	OrderType string `json:"order_type"` // "limit" | "market"
	Price     string `json:"price,omitempty"`
	Size      string `json:"size"`
	Wallet    string `json:"wallet_address"`
}

// OrderResponse is the venue's order creation payload.
type OrderResponse struct {
	OrderID string `json:"order_id"`
}

// OrderStatusResponse is the venue's order status payload.
type OrderStatusResponse struct {
	Status     string `json:"status"`
	FilledSize string `json:"filled_size"`
}

// FilledSizeParsed returns the parsed filled size.
func (r *OrderStatusResponse) FilledSizeParsed() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return DecimalField(r.FilledSize)
}

// CancelResponse is the venue's order cancellation payload.
type CancelResponse struct {
	Success bool `json:"success"`
}
