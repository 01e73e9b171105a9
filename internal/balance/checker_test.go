package balance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/internal/wallet"
	"github.com/lighterbot/hedgeguard/pkg/config"
)

const (
	addrA = "0xAAAA11111111111111"
	addrB = "0xBBBB22222222222222"
)

func newTestSetup(t *testing.T, minBalance string, ttl time.Duration) (*Checker, *exchange.MockClient) {
	t.Helper()
	mock := exchange.NewMockClient()
	registry, err := wallet.NewRegistry(
		[]config.WalletPairConfig{{AddressA: addrA, AddressB: addrB}},
		func(_, _ string) exchange.Client { return mock },
	)
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}
	return NewChecker(registry, decimal.RequireFromString(minBalance), ttl), mock
}

// 缓存窗口内的重复读取不产生远端调用，过期后恰好回源一次
func TestBalanceCacheTTL(t *testing.T) {
	checker, mock := newTestSetup(t, "500", 60*time.Second)

	t0 := time.Now()
	now := t0
	checker.cache.SetClock(func() time.Time { return now })

	mock.SetBalance(addrA, "1000")

	ctx := context.Background()
	first, err := checker.Balance(ctx, addrA)
	if err != nil {
		t.Fatal(err)
	}
	if first.FetchedAt.IsZero() || first.FromCache {
		t.Errorf("首次读取应回源并带抓取时间: %+v", first)
	}
	for i := 0; i < 999; i++ {
		rec, err := checker.Balance(ctx, addrA)
		if err != nil {
			t.Fatalf("第 %d 次余额读取失败: %v", i, err)
		}
		// 命中缓存时保留原始抓取时间
		if !rec.FromCache || !rec.FetchedAt.Equal(first.FetchedAt) {
			t.Fatalf("缓存命中的记录应保留回源时刻: %+v", rec)
		}
	}
	if got := mock.CallCount("GetBalance"); got != 1 {
		t.Errorf("t0 时 1000 次读取应只回源 1 次, 实际 %d 次", got)
	}

	// TTL 边界内仍命中缓存
	now = t0.Add(30 * time.Second)
	if _, err := checker.Balance(ctx, addrA); err != nil {
		t.Fatal(err)
	}
	if got := mock.CallCount("GetBalance"); got != 1 {
		t.Errorf("t0+30s 不应回源, 实际调用 %d 次", got)
	}

	// 过期后恰好回源一次
	now = t0.Add(61 * time.Second)
	if _, err := checker.Balance(ctx, addrA); err != nil {
		t.Fatal(err)
	}
	if got := mock.CallCount("GetBalance"); got != 2 {
		t.Errorf("t0+61s 应恰好回源 1 次, 累计 %d 次", got)
	}
}

// 启动校验失败时一次性列出所有不达标的钱包
func TestValidateAllAggregatesOffenders(t *testing.T) {
	checker, mock := newTestSetup(t, "500", 30*time.Second)
	mock.SetBalance(addrA, "100")
	mock.SetBalance(addrB, "499.99")

	err := checker.ValidateAll(context.Background())
	if err == nil {
		t.Fatal("两个钱包都不达标, 应返回错误")
	}
	msg := err.Error()
	if !strings.Contains(msg, "0xAAAA11") || !strings.Contains(msg, "0xBBBB22") {
		t.Errorf("错误信息应列出所有不达标钱包: %s", msg)
	}
}

func TestValidateAllPasses(t *testing.T) {
	checker, mock := newTestSetup(t, "500", 30*time.Second)
	mock.SetBalance(addrA, "500")
	mock.SetBalance(addrB, "1200.5")

	if err := checker.ValidateAll(context.Background()); err != nil {
		t.Errorf("余额达标时不应报错: %v", err)
	}
}

// 只读腿 (无句柄) 不参与余额检查
func TestCheckAllSkipsObserveOnlyLeg(t *testing.T) {
	mock := exchange.NewMockClient()
	registry, err := wallet.NewRegistry(
		[]config.WalletPairConfig{{AddressA: addrA, AddressB: addrB}},
		func(addr, _ string) exchange.Client {
			if addr == addrB {
				return nil
			}
			return mock
		},
	)
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}
	checker := NewChecker(registry, decimal.RequireFromString("500"), 30*time.Second)
	mock.SetBalance(addrA, "800")

	balances := checker.CheckAll(context.Background())
	if len(balances) != 1 {
		t.Fatalf("只读腿应被跳过, 结果应只含 1 个钱包, 实际 %d 个", len(balances))
	}
	if _, ok := balances[addrB]; ok {
		t.Error("只读腿不应出现在结果中")
	}
	if got := mock.CallCount("GetBalance"); got != 1 {
		t.Errorf("应只回源 1 次, 实际 %d 次", got)
	}
	// 只读腿不计入余额校验
	if err := checker.ValidateAll(context.Background()); err != nil {
		t.Errorf("只读腿不应导致校验失败: %v", err)
	}
}

// 单个钱包回源失败按零余额处理, 不阻断同批次其他钱包
func TestCheckAllDegradesFailureToZero(t *testing.T) {
	checker, mock := newTestSetup(t, "500", 30*time.Second)
	mock.SetBalance(addrA, "800")
	mock.SetBalance(addrB, "800")
	mock.FailAlways["GetBalance"] = context.DeadlineExceeded

	balances := checker.CheckAll(context.Background())
	if len(balances) != 2 {
		t.Fatalf("应返回全部钱包的结果, 实际 %d 个", len(balances))
	}
	for addr, bal := range balances {
		if !bal.IsZero() {
			t.Errorf("失败的钱包 %s 应按 0 处理, 实际 %s", addr, bal)
		}
	}
}
