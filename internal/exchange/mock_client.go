package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockClient is an in-memory Client used by tests and by dry-run mode.
// Responses are configured per wallet/order; errors can be injected per
// method name. Every call is counted so tests can assert on traffic.
type MockClient struct {
	mu sync.RWMutex

	// Calls counts invocations per method name ("GetBalance", ...).
	Calls map[string]int

	// ErrorOnNext fails the next call of the named method once.
	ErrorOnNext map[string]error

	// FailAlways fails every call of the named method.
	FailAlways map[string]error

	balances  map[string]string             // wallet -> balance
	positions map[string]*PositionResponse  // wallet -> position
	orders    map[string]*mockOrder         // orderID -> order
	withdraws map[string]decimal.Decimal    // wallet -> last withdrawn amount
	created   []CreateOrderRequest          // every accepted CreateOrder payload

	// OmitOrderID makes CreateOrder return an empty order_id, simulating
	// a malformed creation response.
	OmitOrderID bool
}

type mockOrder struct {
	req    CreateOrderRequest
	status string
	filled string
}

// NewMockClient creates an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
		FailAlways:  make(map[string]error),
		balances:    make(map[string]string),
		positions:   make(map[string]*PositionResponse),
		orders:      make(map[string]*mockOrder),
		withdraws:   make(map[string]decimal.Decimal),
	}
}

// trackCall records the invocation and returns any injected error.
func (m *MockClient) trackCall(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[method]++
	if err, ok := m.FailAlways[method]; ok && err != nil {
		return err
	}
	if err, ok := m.ErrorOnNext[method]; ok && err != nil {
		delete(m.ErrorOnNext, method)
		return err
	}
	return nil
}

// CallCount returns how many times a method was invoked.
func (m *MockClient) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[method]
}

// SetBalance configures the balance returned for a wallet.
func (m *MockClient) SetBalance(wallet, balance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[wallet] = balance
}

// SetPosition configures the position returned for a wallet.
func (m *MockClient) SetPosition(wallet string, pos *PositionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[wallet] = pos
}

// SetOrderStatus overrides the remote status of an existing order.
func (m *MockClient) SetOrderStatus(orderID, status, filled string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.status = status
		o.filled = filled
		return
	}
	m.orders[orderID] = &mockOrder{status: status, filled: filled}
}

// CreatedOrders returns a copy of every accepted CreateOrder payload.
func (m *MockClient) CreatedOrders() []CreateOrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CreateOrderRequest, len(m.created))
	copy(out, m.created)
	return out
}

// Withdrawn returns the last withdrawn amount for a wallet.
func (m *MockClient) Withdrawn(wallet string) (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	amt, ok := m.withdraws[wallet]
	return amt, ok
}

func (m *MockClient) GetBalance(_ context.Context, address, _ string) (*BalanceResponse, error) {
	if err := m.trackCall("GetBalance"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bal, ok := m.balances[address]
	if !ok {
		bal = "0"
	}
	return &BalanceResponse{Balance: bal}, nil
}

func (m *MockClient) GetPosition(_ context.Context, wallet, market string) (*PositionResponse, error) {
	if err := m.trackCall("GetPosition"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[wallet]
	if !ok {
		return &PositionResponse{Market: market, Size: "0"}, nil
	}
	cp := *pos
	return &cp, nil
}

func (m *MockClient) CreateOrder(_ context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	if err := m.trackCall("CreateOrder"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OmitOrderID {
		return &OrderResponse{}, nil
	}
	id := fmt.Sprintf("mock-%s", uuid.NewString()[:8])
	m.orders[id] = &mockOrder{req: req, status: "open", filled: "0"}
	m.created = append(m.created, req)
	return &OrderResponse{OrderID: id}, nil
}

func (m *MockClient) GetOrder(_ context.Context, orderID string) (*OrderStatusResponse, error) {
	if err := m.trackCall("GetOrder"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return &OrderStatusResponse{Status: o.status, FilledSize: o.filled}, nil
}

func (m *MockClient) CancelOrder(_ context.Context, orderID string) (*CancelResponse, error) {
	if err := m.trackCall("CancelOrder"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return &CancelResponse{Success: false}, nil
	}
	o.status = "cancelled"
	return &CancelResponse{Success: true}, nil
}

func (m *MockClient) Withdraw(_ context.Context, address string, amount decimal.Decimal) error {
	if err := m.trackCall("Withdraw"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdraws[address] = amount
	return nil
}

func (m *MockClient) Close() error {
	return nil
}
