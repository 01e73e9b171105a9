package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighterbot/hedgeguard/internal/domain"
	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/internal/wallet"
	"github.com/lighterbot/hedgeguard/pkg/config"
)

var testAddrs = []string{
	"0xA11111111111111111",
	"0xB22222222222222222",
	"0xC33333333333333333",
	"0xD44444444444444444",
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Trading.BuyPrice = 100
	cfg.Trading.SellPrice = 110
	cfg.Trading.OrderSize = 10
	cfg.Trading.MinBalance = 500
	cfg.WalletPairs = []config.WalletPairConfig{
		{AddressA: testAddrs[0], AddressB: testAddrs[1]},
		{AddressA: testAddrs[2], AddressB: testAddrs[3]},
	}
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg config.Config) (*Orchestrator, *exchange.MockClient) {
	t.Helper()
	mock := exchange.NewMockClient()
	for _, addr := range testAddrs {
		mock.SetBalance(addr, "1000")
	}
	registry, err := wallet.NewRegistry(cfg.WalletPairs,
		func(_, _ string) exchange.Client { return mock })
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}
	return New(cfg, registry, nil), mock
}

func TestInitializeFailsOnLowBalance(t *testing.T) {
	cfg := testConfig()
	orch, mock := newTestOrchestrator(t, cfg)
	mock.SetBalance(testAddrs[2], "10")

	if err := orch.Initialize(context.Background()); err == nil {
		t.Error("余额不足时初始化应失败")
	}
}

// 每对钱包各挂一买一卖, 单对失败时跳过该对, 不影响其他对
func TestSetupOrdersSkipsFailedPair(t *testing.T) {
	cfg := testConfig()
	orch, mock := newTestOrchestrator(t, cfg)

	// 第一对的买单失败
	mock.ErrorOnNext["CreateOrder"] = errors.New("拒单")

	ready := orch.SetupOrders(context.Background())
	if ready != 1 {
		t.Errorf("应只有 1 对就绪, 实际 %d 对", ready)
	}

	created := mock.CreatedOrders()
	if len(created) != 2 {
		t.Fatalf("应只提交 2 笔订单 (第二对的一买一卖), 实际 %d 笔", len(created))
	}
	if created[0].Side != "buy" || created[0].Wallet != testAddrs[2] {
		t.Errorf("第二对 A 腿应挂买单: %+v", created[0])
	}
	if created[1].Side != "sell" || created[1].Wallet != testAddrs[3] {
		t.Errorf("第二对 B 腿应挂卖单: %+v", created[1])
	}
}

func TestSetupOrdersAllPairs(t *testing.T) {
	cfg := testConfig()
	orch, mock := newTestOrchestrator(t, cfg)

	ready := orch.SetupOrders(context.Background())
	if ready != 2 {
		t.Errorf("应 2 对全部就绪, 实际 %d 对", ready)
	}
	if n := len(mock.CreatedOrders()); n != 4 {
		t.Errorf("应提交 4 笔订单, 实际 %d 笔", n)
	}
	if n := len(orch.Ledger().ActiveOrders("")); n != 4 {
		t.Errorf("活跃索引应有 4 笔订单, 实际 %d 笔", n)
	}
}

// 爆仓事件触发: 应急平仓幸存腿, 回填审计记录, 并升级为全局紧急停机
func TestOnLiquidationEscalatesToShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyShutdownEnabled = true
	orch, mock := newTestOrchestrator(t, cfg)

	if ready := orch.SetupOrders(context.Background()); ready != 2 {
		t.Fatalf("前置失败: %d 对就绪", ready)
	}

	// 第一对 B 腿持有空头仓位, A 腿爆仓
	mock.SetPosition(testAddrs[1], &exchange.PositionResponse{
		Market: "SOL", Side: "short", Size: "10", MarkPrice: "48",
	})
	event := &domain.LiquidationEvent{
		ID:     "ev-1",
		Wallet: testAddrs[0],
		Market: "SOL",
		Side:   domain.PositionSideLong,
		Size:   decimal.NewFromInt(10),
	}

	orch.OnLiquidation(context.Background(), event)

	if event.ActionTaken == "" {
		t.Error("应急处理后应回填 ActionTaken")
	}
	// 全局停机: 所有钱包的挂单全部撤销 (幸存腿的市价平仓单提交后也被撤)
	if n := len(orch.Ledger().ActiveOrders("")); n != 0 {
		t.Errorf("紧急停机后不应有活跃订单, 实际 %d 笔", n)
	}
	// 停机信号应已发出, Run 会立即退出
	select {
	case <-orchShutdown(orch):
	case <-time.After(time.Second):
		t.Error("应发出紧急停机信号")
	}
}

func orchShutdown(o *Orchestrator) <-chan struct{} {
	return o.shutdown.C()
}

// 禁用紧急停机时只处理爆仓的那一对, 其他挂单保留
func TestOnLiquidationWithoutEscalation(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyShutdownEnabled = false
	orch, mock := newTestOrchestrator(t, cfg)

	if ready := orch.SetupOrders(context.Background()); ready != 2 {
		t.Fatalf("前置失败: %d 对就绪", ready)
	}
	mock.SetPosition(testAddrs[1], &exchange.PositionResponse{
		Market: "SOL", Side: "short", Size: "10", MarkPrice: "48",
	})

	orch.OnLiquidation(context.Background(), &domain.LiquidationEvent{
		ID: "ev-2", Wallet: testAddrs[0], Market: "SOL",
		Side: domain.PositionSideLong, Size: decimal.NewFromInt(10),
	})

	// 第二对的一买一卖不受影响
	if n := len(orch.Ledger().ActiveOrders(testAddrs[2])); n != 1 {
		t.Errorf("第二对 A 腿的挂单应保留, 实际 %d 笔", n)
	}
	if n := len(orch.Ledger().ActiveOrders(testAddrs[3])); n != 1 {
		t.Errorf("第二对 B 腿的挂单应保留, 实际 %d 笔", n)
	}
}

// 提现模式: 撤掉所有挂单并清空每个钱包的余额
func TestWithdrawAll(t *testing.T) {
	cfg := testConfig()
	orch, mock := newTestOrchestrator(t, cfg)

	if ready := orch.SetupOrders(context.Background()); ready != 2 {
		t.Fatalf("前置失败: %d 对就绪", ready)
	}

	if err := orch.WithdrawAll(context.Background()); err != nil {
		t.Fatalf("提现失败: %v", err)
	}
	if n := len(orch.Ledger().ActiveOrders("")); n != 0 {
		t.Errorf("提现前应撤掉所有挂单, 实际剩余 %d 笔", n)
	}
	for _, addr := range testAddrs {
		amt, ok := mock.Withdrawn(addr)
		if !ok {
			t.Errorf("钱包 %s 未提现", addr)
			continue
		}
		if !amt.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("钱包 %s 提现金额 = %s, 期望 1000", addr, amt)
		}
	}
}

// Run 在收到外部取消信号后有序退出
func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.OrderInterval = 0.05
	cfg.Monitor.PositionInterval = 0.05
	cfg.Monitor.BalanceInterval = 0.05
	cfg.Monitor.StatusInterval = 0.05
	orch, _ := newTestOrchestrator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
}
