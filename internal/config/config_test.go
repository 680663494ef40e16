// Package config 配置模块测试
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: stat-arb-engine, Property 7: Config Validation Correctness**

// TestConfigValidation_FeeRateRange 测试手续费率范围验证
// 属性: 费率在 [0, 1] 范围外应验证失败
func TestConfigValidation_FeeRateRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("费率超出范围应验证失败", prop.ForAll(
		func(rate float64) bool {
			cfg := createValidConfig()
			cfg.Contracts[0].OpenFeeRate = rate
			return cfg.Validate() != nil
		},
		gen.OneGenOf(
			gen.Float64Range(-1000, -0.0001),
			gen.Float64Range(1.0001, 1000),
		),
	))

	properties.Property("费率在有效范围内应通过验证", prop.ForAll(
		func(rate float64) bool {
			cfg := createValidConfig()
			cfg.Contracts[0].OpenFeeRate = rate
			cfg.Contracts[0].CloseFeeRate = rate
			cfg.Contracts[0].CloseTodayFeeRate = rate
			return cfg.Validate() == nil
		},
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// TestConfigValidation_StrategyParams 测试策略参数验证
// 属性: max_position、train_samples 必须为正数
func TestConfigValidation_StrategyParams(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("最大持仓非正数应验证失败", prop.ForAll(
		func(maxPos int64) bool {
			cfg := createValidConfig()
			cfg.Strategies[0].MaxPosition = maxPos
			return cfg.Validate() != nil
		},
		gen.Int64Range(-1000, 0),
	))

	properties.Property("标定样本数非正数应验证失败", prop.ForAll(
		func(train int) bool {
			cfg := createValidConfig()
			cfg.Strategies[0].TrainSamples = train
			return cfg.Validate() != nil
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("有效参数应通过验证", prop.ForAll(
		func(maxPos int64, train int, width float64) bool {
			cfg := createValidConfig()
			cfg.Strategies[0].MaxPosition = maxPos
			cfg.Strategies[0].TrainSamples = train
			cfg.Strategies[0].RangeWidth = width
			return cfg.Validate() == nil
		},
		gen.Int64Range(1, 100),
		gen.IntRange(1, 10000),
		gen.Float64Range(0, 10),
	))

	properties.TestingRun(t)
}

func TestConfigValidation_References(t *testing.T) {
	cfg := createValidConfig()
	cfg.Strategies[0].Contract = "missing"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "strategies[0].contract") {
		t.Fatalf("未知合约引用应报错, got %v", err)
	}

	cfg = createValidConfig()
	cfg.Strategies = append(cfg.Strategies, cfg.Strategies[0])
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "重复") {
		t.Fatalf("重复策略名应报错, got %v", err)
	}

	cfg = createValidConfig()
	cfg.Strategies[0].Variant = "grid"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "variant") {
		t.Fatalf("未知策略类型应报错, got %v", err)
	}
}

func TestConfigValidation_Maker(t *testing.T) {
	cfg := createValidConfig()
	cfg.Strategies[0].Variant = VariantMaker
	cfg.Strategies[0].TrainSamples = 0
	cfg.Strategies[0].MinTrainSample = 60
	if err := cfg.Validate(); err != nil {
		t.Fatalf("做市不需要 train_samples: %v", err)
	}
	cfg.Strategies[0].MinTrainSample = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("做市缺少 min_train_sample 应报错")
	}
}

func TestStrategyConfig_ApplyDefaults(t *testing.T) {
	maker := StrategyConfig{UniqueName: "m", Variant: VariantMaker, Contract: "BTC-USDT", MaxPosition: 2}
	maker.ApplyDefaults()
	if maker.SplitNum != 1 || maker.MinHedgeSize != 1 || maker.MinTrainSample != 60 || maker.EduranceTicks != 1 {
		t.Fatalf("做市默认值 = %+v", maker)
	}
	if err := maker.Validate(); err != nil {
		t.Fatalf("补齐默认值后应通过验证: %v", err)
	}

	// 做市不使用 split_num，未填也不报错
	maker.SplitNum = 0
	if err := maker.Validate(); err != nil {
		t.Fatalf("做市不应检查 split_num: %v", err)
	}

	spread := StrategyConfig{UniqueName: "s", Variant: VariantSpread, Contract: "BTC-USDT", MaxPosition: 1, TrainSamples: 10, SplitNum: 3}
	spread.ApplyDefaults()
	if spread.SplitNum != 3 || spread.MinTrainSample != 0 {
		t.Fatalf("已填参数不应被覆盖，套利不填做市参数: %+v", spread)
	}
	spread.SplitNum = -1
	if err := spread.Validate(); err == nil {
		t.Fatalf("套利 split_num 为负应报错")
	}
}

// createValidConfig 创建一个有效的配置用于测试
func createValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "test",
			LogLevel: "info",
			Mode:     ModePaper,
		},
		Feed: FeedConfig{
			URL:            "wss://ws.okx.com:8443/ws/v5/public",
			PingIntervalMs: 25000,
			PongTimeoutMs:  10000,
		},
		Contracts: []ContractConfig{
			{
				Name:         "BTC-USDT",
				Tickers:      []string{"BTC-USDT-SWAP", "BTC-USDT-261225"},
				MinPriceMove: 0.1,
				CancelLimit:  400,
				Multiplier:   0.01,
				OpenFeeRate:  0.0002,
				CloseFeeRate: 0.0002,
			},
		},
		Strategies: []StrategyConfig{
			{
				UniqueName:     "btc-spread",
				Variant:        VariantSpread,
				Contract:       "BTC-USDT",
				MaxPosition:    3,
				TrainSamples:   500,
				RangeWidth:     2,
				MinRange:       5,
				MinProfit:      1,
				StopLossMargin: 1.5,
				MaxLossTimes:   3,
				MaxHoldingSec:  3600,
				MaxRound:       20,
				SplitNum:       1,
				MinHedgeSize:   1,
			},
		},
		Output: OutputConfig{
			Dir:               "./output",
			MetricsIntervalMs: 10000,
			BufferSize:        1000,
		},
	}
}

// TestLoad_ValidFile 测试从有效文件加载配置
func TestLoad_ValidFile(t *testing.T) {
	content := `
app:
  name: test-engine
  log_level: info
  mode: paper
  trade_date: "2026-10-19"

feed:
  url: wss://ws.okx.com:8443/ws/v5/public

contracts:
  - name: BTC-USDT
    tickers: [BTC-USDT-SWAP, BTC-USDT-261225]
    min_price_move: 0.1
    cancel_limit: 400
    open_fee_rate: 0.0002
    close_fee_rate: 0.0002

strategies:
  - unique_name: btc-spread
    variant: spread
    contract: BTC-USDT
    max_position: 2
    train_samples: 300
    range_width: 1.5
    min_range: 3
    stop_loss_margin: 1
    max_loss_times: 2
  - unique_name: btc-maker
    variant: maker
    contract: BTC-USDT
    max_position: 1

output:
  dir: ./output
  orders_enabled: true

control:
  listen: 127.0.0.1:8090
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("创建临时文件失败: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.App.Name != "test-engine" {
		t.Errorf("App.Name = %s, want test-engine", cfg.App.Name)
	}
	if len(cfg.Strategies) != 2 {
		t.Fatalf("len(Strategies) = %d, want 2", len(cfg.Strategies))
	}
	if cfg.Strategies[0].SplitNum != 1 {
		t.Errorf("SplitNum 默认值 = %d, want 1", cfg.Strategies[0].SplitNum)
	}
	if cfg.Strategies[1].MinTrainSample != 60 {
		t.Errorf("做市 MinTrainSample 默认值 = %d, want 60", cfg.Strategies[1].MinTrainSample)
	}
	if cfg.Contracts[0].Multiplier != 1 {
		t.Errorf("Multiplier 默认值 = %v, want 1", cfg.Contracts[0].Multiplier)
	}
	if cfg.Control.Listen != "127.0.0.1:8090" || cfg.Control.RateLimit != 20 || cfg.Control.QueueSize != 64 {
		t.Errorf("Control 默认值错误: %+v", cfg.Control)
	}
	if ct, ok := cfg.Contract("BTC-USDT"); !ok || ct.CancelLimit != 400 {
		t.Errorf("Contract 查找失败: %+v", ct)
	}
}

// TestLoad_InvalidFile 测试加载无效文件
func TestLoad_InvalidFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("加载不存在的文件应返回错误")
	}
}

// TestParse_UnknownField 测试拼写错误的 key
func TestParse_UnknownField(t *testing.T) {
	content := `
app:
  log_levle: info
feed:
  url: wss://example
`
	if _, err := Parse([]byte(content)); err == nil {
		t.Fatal("未知字段应返回错误")
	}
}

// TestParse_MistypedField 测试类型错误的 key
func TestParse_MistypedField(t *testing.T) {
	content := `
feed:
  url: wss://example
contracts:
  - name: X
    tickers: [A, B]
    min_price_move: tick
`
	if _, err := Parse([]byte(content)); err == nil {
		t.Fatal("类型错误应返回错误")
	}
}

// TestParse_Empty 测试空文件
func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatal("空内容应返回错误")
	}
}

// TestLoad_ExampleFile 仓库自带的示例配置必须能通过校验
func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("加载示例配置失败: %v", err)
	}
	if len(cfg.Strategies) != 3 || cfg.Strategies[2].Variant != VariantMaker {
		t.Fatalf("策略 = %+v", cfg.Strategies)
	}
	if got := cfg.Contracts[0].Rolls["2025-06-23"]; len(got) != 2 || got[1] != "BTC-USDT-250926" {
		t.Fatalf("rolls = %v", cfg.Contracts[0].Rolls)
	}
	if cfg.Control.QueueSize != 64 {
		t.Errorf("control.queue_size 默认值 = %d, want 64", cfg.Control.QueueSize)
	}
}
