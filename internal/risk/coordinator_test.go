package risk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/internal/orders"
	"github.com/lighterbot/hedgeguard/internal/wallet"
	"github.com/lighterbot/hedgeguard/pkg/config"
)

const (
	legA = "0xAAAA11111111111111" // 多头腿
	legB = "0xBBBB22222222222222" // 空头腿
)

func newTestCoordinator(t *testing.T) (*Coordinator, *orders.Ledger, *exchange.MockClient) {
	t.Helper()
	mock := exchange.NewMockClient()
	registry, err := wallet.NewRegistry(
		[]config.WalletPairConfig{{AddressA: legA, AddressB: legB}},
		func(_, _ string) exchange.Client { return mock },
	)
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}
	ledger := orders.NewLedger(registry)
	return NewCoordinator(registry, ledger), ledger, mock
}

func liquidationOf(addr string, side domain.PositionSide) *domain.LiquidationEvent {
	return &domain.LiquidationEvent{
		ID:        "ev-1",
		Wallet:    addr,
		Market:    "SOL",
		Side:      side,
		Size:      decimal.NewFromInt(10),
		Price:     decimal.NewFromInt(45),
		Timestamp: time.Now(),
	}
}

// A 腿(多头)爆仓: 撤掉 B 腿全部挂单, 并用一笔市价买单平掉 B 腿的空头仓位
func TestUnwindClosesSurvivingShortLeg(t *testing.T) {
	c, ledger, mock := newTestCoordinator(t)
	ctx := context.Background()

	// B 腿挂着两笔限价卖单
	for i := 0; i < 2; i++ {
		if _, err := ledger.Submit(ctx, legB, "SOL", domain.OrderKindLimitSell,
			decimal.NewFromInt(110), decimal.NewFromInt(10)); err != nil {
			t.Fatal(err)
		}
	}
	// B 腿持有空头仓位
	mock.SetPosition(legB, &exchange.PositionResponse{
		Market: "SOL", Side: "short", Size: "10", MarkPrice: "48",
	})

	action := c.Unwind(ctx, liquidationOf(legA, domain.PositionSideLong))

	if !strings.HasPrefix(action, ActionPositionClosed) {
		t.Errorf("ActionTaken = %q, 期望以 %q 开头", action, ActionPositionClosed)
	}
	if n := len(ledger.ActiveOrders(legB)); n != 1 {
		// 两笔限价卖单已撤, 剩下的是新提交的市价平仓单
		t.Errorf("B 腿活跃订单应只剩市价平仓单 1 笔, 实际 %d 笔", n)
	}

	created := mock.CreatedOrders()
	var closeOrders []exchange.CreateOrderRequest
	for _, req := range created {
		if req.OrderType == "market" {
			closeOrders = append(closeOrders, req)
		}
	}
	if len(closeOrders) != 1 {
		t.Fatalf("应恰好提交 1 笔市价平仓单, 实际 %d 笔", len(closeOrders))
	}
	if closeOrders[0].Side != "buy" {
		t.Errorf("空头仓位应用市价买入平仓, 实际方向 %s", closeOrders[0].Side)
	}
	if closeOrders[0].Size != "10" {
		t.Errorf("平仓数量应等于仓位数量 10, 实际 %s", closeOrders[0].Size)
	}
	if closeOrders[0].Wallet != legB {
		t.Errorf("平仓单应由幸存腿提交, 实际 %s", closeOrders[0].Wallet)
	}
}

// B 腿(空头)爆仓: 幸存的多头腿用市价卖出平仓
func TestUnwindClosesSurvivingLongLeg(t *testing.T) {
	c, _, mock := newTestCoordinator(t)
	mock.SetPosition(legA, &exchange.PositionResponse{
		Market: "SOL", Side: "long", Size: "7.5", MarkPrice: "52",
	})

	action := c.Unwind(context.Background(), liquidationOf(legB, domain.PositionSideShort))
	if !strings.HasPrefix(action, ActionPositionClosed) {
		t.Errorf("ActionTaken = %q, 期望以 %q 开头", action, ActionPositionClosed)
	}

	created := mock.CreatedOrders()
	if len(created) != 1 || created[0].OrderType != "market" || created[0].Side != "sell" {
		t.Errorf("多头仓位应用一笔市价卖出平仓, 实际 %+v", created)
	}
	if created[0].Size != "7.5" {
		t.Errorf("平仓数量应为 7.5, 实际 %s", created[0].Size)
	}
}

// 幸存腿无持仓: 撤单后直接结束, 不提交任何订单
func TestUnwindNoSurvivingPosition(t *testing.T) {
	c, _, mock := newTestCoordinator(t)
	mock.SetPosition(legB, &exchange.PositionResponse{Market: "SOL", Size: "0"})

	action := c.Unwind(context.Background(), liquidationOf(legA, domain.PositionSideLong))
	if action != ActionOrdersCancelledNoPosition {
		t.Errorf("ActionTaken = %q, 期望 %q", action, ActionOrdersCancelledNoPosition)
	}
	if len(mock.CreatedOrders()) != 0 {
		t.Error("无持仓时不应提交任何订单")
	}
}

// 幸存腿方向与爆仓腿相同: 配置异常, 跳过平仓
func TestUnwindUnexpectedConfiguration(t *testing.T) {
	c, _, mock := newTestCoordinator(t)
	// 爆仓腿是多头, 幸存腿却也是多头
	mock.SetPosition(legB, &exchange.PositionResponse{
		Market: "SOL", Side: "long", Size: "10", MarkPrice: "52",
	})

	action := c.Unwind(context.Background(), liquidationOf(legA, domain.PositionSideLong))
	if action != ActionUnexpectedConfiguration {
		t.Errorf("ActionTaken = %q, 期望 %q", action, ActionUnexpectedConfiguration)
	}
	if len(mock.CreatedOrders()) != 0 {
		t.Error("方向异常时不应提交平仓单")
	}
}

// 幸存腿是只读腿 (无句柄): 记录后放弃, 不撤单也不下单
func TestUnwindSurvivorWithoutHandle(t *testing.T) {
	mock := exchange.NewMockClient()
	registry, err := wallet.NewRegistry(
		[]config.WalletPairConfig{{AddressA: legA, AddressB: legB}},
		func(addr, _ string) exchange.Client {
			if addr == legB {
				return nil
			}
			return mock
		},
	)
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}
	ledger := orders.NewLedger(registry)
	c := NewCoordinator(registry, ledger)

	action := c.Unwind(context.Background(), liquidationOf(legA, domain.PositionSideLong))
	if action != ActionNoSurvivorHandle {
		t.Errorf("ActionTaken = %q, 期望 %q", action, ActionNoSurvivorHandle)
	}
	if len(mock.CreatedOrders()) != 0 {
		t.Error("无句柄时不应提交任何订单")
	}
	if mock.CallCount("CancelOrder") != 0 || mock.CallCount("GetPosition") != 0 {
		t.Error("无句柄时不应发起任何交易所调用")
	}
}

// 仓位查询失败: 撤单已完成, 平仓标记为失败
func TestUnwindPositionFetchFailure(t *testing.T) {
	c, _, mock := newTestCoordinator(t)
	mock.FailAlways["GetPosition"] = context.DeadlineExceeded

	action := c.Unwind(context.Background(), liquidationOf(legA, domain.PositionSideLong))
	if action != ActionCloseFailed {
		t.Errorf("ActionTaken = %q, 期望 %q", action, ActionCloseFailed)
	}
}
