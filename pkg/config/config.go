package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// WalletPairConfig 钱包对配置
// AddressA 负责限价买单（多头腿），AddressB 负责限价卖单（空头腿）
type WalletPairConfig struct {
	AddressA string `yaml:"addressA" json:"address_a"`
	AddressB string `yaml:"addressB" json:"address_b"`
	APIKeyA  string `yaml:"apiKeyA" json:"api_key_a"` // 可选，没有 key 的腿只做观察
	APIKeyB  string `yaml:"apiKeyB" json:"api_key_b"`
}

// TradingConfig 交易参数配置
type TradingConfig struct {
	Market     string  `yaml:"market" json:"market"`          // 交易市场，例如 SOL
	BuyPrice   float64 `yaml:"buyPrice" json:"buy_price"`     // 限价买单价格
	SellPrice  float64 `yaml:"sellPrice" json:"sell_price"`   // 限价卖单价格
	OrderSize  float64 `yaml:"orderSize" json:"order_size"`   // 每笔订单数量
	MinBalance float64 `yaml:"minBalance" json:"min_balance"` // 每个钱包的最低 USDC 余额
}

// MonitorConfig 监控循环配置（单位：秒）
type MonitorConfig struct {
	OrderInterval    float64 `yaml:"orderInterval" json:"order_interval"`       // 订单状态轮询间隔，默认 5s
	PositionInterval float64 `yaml:"positionInterval" json:"position_interval"` // 仓位健康轮询间隔，默认 3s
	BalanceInterval  float64 `yaml:"balanceInterval" json:"balance_interval"`   // 余额轮询间隔，默认 30s
	StatusInterval   float64 `yaml:"statusInterval" json:"status_interval"`     // 状态日志间隔，默认 10s
	BalanceCacheTTL  float64 `yaml:"balanceCacheTTL" json:"balance_cache_ttl"`  // 余额缓存时长，默认 30s
}

// APIConfig 交易所 API 配置
type APIConfig struct {
	BaseURL string  `yaml:"baseURL" json:"base_url"`
	Timeout float64 `yaml:"timeout" json:"timeout"` // 请求超时（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	OutputFile string `yaml:"outputFile" json:"output_file"`
}

// Config 应用配置
//
// 加载完成后不再修改：同一个值传给所有组件的构造函数，
// 避免可变的全局单例。
type Config struct {
	API                      APIConfig          `yaml:"api" json:"api"`
	Trading                  TradingConfig      `yaml:"trading" json:"trading"`
	Monitor                  MonitorConfig      `yaml:"monitor" json:"monitor"`
	Log                      LogConfig          `yaml:"log" json:"log"`
	WalletPairs              []WalletPairConfig `yaml:"walletPairs" json:"wallet_pairs"`
	JournalPath              string             `yaml:"journalPath" json:"journal_path"`                            // 审计日志 sqlite 文件路径（可选）
	MaxConsecutiveErrors     int64              `yaml:"maxConsecutiveErrors" json:"max_consecutive_errors"`         // 连续下单失败熔断阈值，<=0 表示不熔断
	EmergencyShutdownEnabled bool               `yaml:"emergencyShutdownEnabled" json:"emergency_shutdown_enabled"` // 任一腿爆仓时是否触发全局紧急停机
	DryRun                   bool               `yaml:"dryRun" json:"dry_run"`                                      // 纸交易模式，使用内存 mock 客户端
}

// Default 返回默认配置
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "https://mainnet.zklighter.elliot.ai",
			Timeout: 30,
		},
		Trading: TradingConfig{
			Market:     "SOL",
			MinBalance: 500,
			OrderSize:  10,
		},
		Monitor: MonitorConfig{
			OrderInterval:    5,
			PositionInterval: 3,
			BalanceInterval:  30,
			StatusInterval:   10,
			BalanceCacheTTL:  30,
		},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/hedgeguard.log",
		},
		MaxConsecutiveErrors:     5,
		EmergencyShutdownEnabled: true,
	}
}

// LoadFromFile 从配置文件加载配置（支持 .yaml, .yml, .json）
// 文件中缺失的字段保留默认值，环境变量最后覆盖
func LoadFromFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("读取配置文件失败: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("解析 YAML 配置失败: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("解析 JSON 配置失败: %w", err)
			}
		default:
			return cfg, fmt.Errorf("不支持的配置文件格式: %s", filepath.Ext(path))
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEDGEGUARD_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("HEDGEGUARD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HEDGEGUARD_JOURNAL_PATH"); v != "" {
		cfg.JournalPath = v
	}
	if v := os.Getenv("HEDGEGUARD_MARKET"); v != "" {
		cfg.Trading.Market = v
	}
	if v := os.Getenv("HEDGEGUARD_MIN_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Trading.MinBalance = f
		}
	}
	if v := os.Getenv("HEDGEGUARD_EMERGENCY_SHUTDOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EmergencyShutdownEnabled = b
		}
	}
	if v := os.Getenv("HEDGEGUARD_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		}
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.baseURL 不能为空")
	}
	if c.Trading.Market == "" {
		return fmt.Errorf("trading.market 不能为空")
	}
	if c.Trading.OrderSize <= 0 {
		return fmt.Errorf("trading.orderSize 必须大于 0（当前: %v）", c.Trading.OrderSize)
	}
	if c.Trading.MinBalance <= 0 {
		return fmt.Errorf("trading.minBalance 必须大于 0（当前: %v）", c.Trading.MinBalance)
	}
	// 买卖价格由命令行传入时可能为 0（例如 withdraw 模式），只在两者都设置时校验
	if c.Trading.BuyPrice > 0 && c.Trading.SellPrice > 0 && c.Trading.SellPrice <= c.Trading.BuyPrice {
		return fmt.Errorf("trading.sellPrice (%v) 必须大于 buyPrice (%v)", c.Trading.SellPrice, c.Trading.BuyPrice)
	}
	for i, p := range c.WalletPairs {
		if len(p.AddressA) < 10 || len(p.AddressB) < 10 {
			return fmt.Errorf("walletPairs[%d] 钱包地址无效: %q / %q", i, p.AddressA, p.AddressB)
		}
		if p.AddressA == p.AddressB {
			return fmt.Errorf("walletPairs[%d] 两个地址不能相同: %s", i, p.AddressA)
		}
	}
	return nil
}

// ParseWalletPairsArg 解析命令行格式的钱包对参数
// 格式: "addr1a,addr1b;addr2a,addr2b"，或指向 JSON 文件的路径
func ParseWalletPairsArg(arg string) ([]WalletPairConfig, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}

	// JSON 文件路径
	if strings.HasSuffix(arg, ".json") {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("读取钱包对文件失败: %w", err)
		}
		var pairs []WalletPairConfig
		if err := json.Unmarshal(data, &pairs); err != nil {
			return nil, fmt.Errorf("解析钱包对文件失败: %w", err)
		}
		return pairs, nil
	}

	// 命令行内联格式
	var pairs []WalletPairConfig
	for _, chunk := range strings.Split(arg, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		addrs := strings.Split(chunk, ",")
		if len(addrs) != 2 {
			return nil, fmt.Errorf("钱包对格式无效: %q（应为 addrA,addrB）", chunk)
		}
		pairs = append(pairs, WalletPairConfig{
			AddressA: strings.TrimSpace(addrs[0]),
			AddressB: strings.TrimSpace(addrs[1]),
		})
	}
	return pairs, nil
}
