package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client is the venue API surface the monitoring core depends on.
// There is exactly one production implementation (RESTClient) and one
// in-memory fake (MockClient) injected in tests and dry-run mode.
//
// Every call is independently fallible; callers must treat a failure of
// one call as recoverable and never let it block sibling calls in the
// same batch. Timeouts live inside the implementation, not the callers.
type Client interface {
	GetBalance(ctx context.Context, address, token string) (*BalanceResponse, error)
	GetPosition(ctx context.Context, wallet, market string) (*PositionResponse, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderStatusResponse, error)
	CancelOrder(ctx context.Context, orderID string) (*CancelResponse, error)
	Withdraw(ctx context.Context, address string, amount decimal.Decimal) error
	Close() error
}
