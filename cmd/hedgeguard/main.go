package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lighterbot/hedgeguard/internal/exchange"
	"github.com/lighterbot/hedgeguard/internal/journal"
	"github.com/lighterbot/hedgeguard/internal/strategy"
	"github.com/lighterbot/hedgeguard/internal/wallet"
	"github.com/lighterbot/hedgeguard/pkg/config"
	"github.com/lighterbot/hedgeguard/pkg/logger"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "", "配置文件路径 (.yaml/.json)")
	walletPairs := flag.String("wallet-pairs", "", "钱包对: \"addrA,addrB;addrA2,addrB2\" 或 JSON 文件路径")
	buyPrice := flag.Float64("buy-price", 0, "A 腿限价买单价格")
	sellPrice := flag.Float64("sell-price", 0, "B 腿限价卖单价格")
	orderSize := flag.Float64("order-size", 0, "每笔订单数量")
	market := flag.String("market", "", "交易市场 (例如 SOL)")
	minBalance := flag.Float64("min-balance", 0, "每个钱包的最低 USDC 余额")
	monitorInterval := flag.Float64("monitor-interval", 0, "仓位监控间隔 (秒)")
	withdraw := flag.Bool("withdraw", false, "提现模式: 撤单并清空所有钱包余额后退出")
	dryRun := flag.Bool("dry-run", false, "纸交易模式: 使用内存模拟客户端")
	flag.Parse()

	// .env 不存在时静默忽略
	_ = godotenv.Load()

	if err := run(*configPath, *walletPairs, *buyPrice, *sellPrice, *orderSize,
		*market, *minBalance, *monitorInterval, *withdraw, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "hedgeguard: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, walletPairsArg string, buyPrice, sellPrice, orderSize float64,
	market string, minBalance, monitorInterval float64, withdraw, dryRun bool) error {

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	applyFlags(&cfg, buyPrice, sellPrice, orderSize, market, minBalance, monitorInterval, dryRun)

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	if walletPairsArg != "" {
		pairs, err := config.ParseWalletPairsArg(walletPairsArg)
		if err != nil {
			return fmt.Errorf("解析钱包对参数失败: %w", err)
		}
		cfg.WalletPairs = pairs
	}
	if len(cfg.WalletPairs) == 0 {
		return fmt.Errorf("未配置任何钱包对 (使用 -wallet-pairs 或配置文件)")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	log := logrus.WithField("component", "main")
	log.Infof("🚀 hedgeguard 启动: 市场=%s 钱包对=%d dryRun=%v",
		cfg.Trading.Market, len(cfg.WalletPairs), cfg.DryRun)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}

	orch := strategy.New(cfg, registry, jnl)
	defer orch.Close()

	// SIGINT / SIGTERM 触发有序退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if withdraw {
		return orch.WithdrawAll(ctx)
	}

	if err := orch.Initialize(ctx); err != nil {
		return err
	}

	ready := orch.SetupOrders(ctx)
	if ready == 0 {
		return fmt.Errorf("没有任何钱包对成功布设订单，退出")
	}

	orch.Run(ctx)
	log.Info("hedgeguard 已退出")
	return nil
}

// applyFlags 命令行参数覆盖配置文件
func applyFlags(cfg *config.Config, buyPrice, sellPrice, orderSize float64,
	market string, minBalance, monitorInterval float64, dryRun bool) {
	if buyPrice > 0 {
		cfg.Trading.BuyPrice = buyPrice
	}
	if sellPrice > 0 {
		cfg.Trading.SellPrice = sellPrice
	}
	if orderSize > 0 {
		cfg.Trading.OrderSize = orderSize
	}
	if market != "" {
		cfg.Trading.Market = market
	}
	if minBalance > 0 {
		cfg.Trading.MinBalance = minBalance
	}
	if monitorInterval > 0 {
		cfg.Monitor.PositionInterval = monitorInterval
	}
	if dryRun {
		cfg.DryRun = true
	}
}

// buildRegistry 构建钱包对注册表
// dry-run 模式下所有钱包共享一个内存模拟客户端，并预置充足余额
func buildRegistry(cfg config.Config) (*wallet.Registry, error) {
	var factory wallet.ClientFactory

	if cfg.DryRun {
		mock := exchange.NewMockClient()
		for _, p := range cfg.WalletPairs {
			seed := fmt.Sprintf("%g", cfg.Trading.MinBalance*2)
			mock.SetBalance(p.AddressA, seed)
			mock.SetBalance(p.AddressB, seed)
		}
		factory = func(_, _ string) exchange.Client { return mock }
	} else {
		base := exchange.NewRESTClient(exchange.RESTConfig{
			BaseURL: cfg.API.BaseURL,
			Timeout: time.Duration(cfg.API.Timeout * float64(time.Second)),
		})
		// 没有 API key 的腿不建句柄，作为只读腿跳过监控与下单
		factory = func(_, apiKey string) exchange.Client {
			if apiKey == "" {
				return nil
			}
			return base.WithAPIKey(apiKey)
		}
	}

	registry, err := wallet.NewRegistry(cfg.WalletPairs, factory)
	if err != nil {
		return nil, fmt.Errorf("构建钱包对注册表失败: %w", err)
	}
	return registry, nil
}
