// Package config 负责加载和验证 YAML 配置文件。
// 提供进程所需的全部配置项，包括行情连接、合约与手续费、策略参数和输出设置。
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 运行模式
const (
	// ModePaper 模拟成交：订单由本地网关按最新盘口撮合
	ModePaper = "paper"
	// ModeLive 实盘：订单请求写入下游网关
	ModeLive = "live"
)

// 策略类型
const (
	// VariantSpread 价差套利
	VariantSpread = "spread"
	// VariantPair 双通道配对交易
	VariantPair = "pair"
	// VariantMaker 做市
	VariantMaker = "maker"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Feed 行情连接配置
	Feed FeedConfig `yaml:"feed"`
	// Metadata 合约元数据 API 配置
	Metadata MetadataConfig `yaml:"metadata"`
	// Contracts 合约与手续费配置
	Contracts []ContractConfig `yaml:"contracts"`
	// Strategies 策略实例配置
	Strategies []StrategyConfig `yaml:"strategies"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Journal 回合持久化配置
	Journal JournalConfig `yaml:"journal"`
	// Control HTTP 控制面配置
	Control ControlConfig `yaml:"control"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// LogFile 日志文件路径；为空时只输出到控制台
	LogFile string `yaml:"log_file"`
	// LogMaxSizeMB 单个日志文件大小上限（MB）
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	// LogMaxBackups 保留的旧日志文件数
	LogMaxBackups int `yaml:"log_max_backups"`
	// LogMaxAgeDays 旧日志保留天数
	LogMaxAgeDays int `yaml:"log_max_age_days"`
	// Mode 运行模式: paper, live
	Mode string `yaml:"mode"`
	// TradeDate 交易日（YYYY-MM-DD），用于选择换月后的合约
	TradeDate string `yaml:"trade_date"`
}

// FeedConfig 行情 WebSocket 配置
type FeedConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
}

// MetadataConfig 合约元数据 API 配置
type MetadataConfig struct {
	// OKX OKX 合约元数据 API 地址；为空时不刷新最小变动价位
	OKX string `yaml:"okx"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// ContractConfig 逻辑合约配置
type ContractConfig struct {
	// Name 逻辑名，策略通过它引用合约
	Name string `yaml:"name"`
	// Tickers 可交易合约，对冲腿在前、主腿在后
	Tickers []string `yaml:"tickers"`
	// Rolls 按交易日覆盖 Tickers（key 为 YYYY-MM-DD，取不晚于交易日的最近一项）
	Rolls map[string][]string `yaml:"rolls"`
	// MinPriceMove 最小变动价位
	MinPriceMove float64 `yaml:"min_price_move"`
	// CancelLimit 撤单次数上限
	CancelLimit int `yaml:"cancel_limit"`
	// Multiplier 合约乘数
	Multiplier float64 `yaml:"multiplier"`
	// OpenFeeRate 开仓费率（按成交额）
	OpenFeeRate float64 `yaml:"open_fee_rate"`
	// CloseFeeRate 平仓费率（按成交额）
	CloseFeeRate float64 `yaml:"close_fee_rate"`
	// CloseTodayFeeRate 平今费率（按成交额）
	CloseTodayFeeRate float64 `yaml:"close_today_fee_rate"`
	// FeePerLot 每手固定费用
	FeePerLot float64 `yaml:"fee_per_lot"`
}

// StrategyConfig 单个策略实例配置
type StrategyConfig struct {
	// UniqueName 策略唯一名
	UniqueName string `yaml:"unique_name"`
	// Variant 策略类型: spread, pair, maker
	Variant string `yaml:"variant"`
	// Contract 主合约逻辑名
	Contract string `yaml:"contract"`
	// HedgeContract 对冲合约逻辑名；为空时两腿取自同一逻辑合约
	HedgeContract string `yaml:"hedge_contract"`

	// MaxPosition 最大持仓手数
	MaxPosition int64 `yaml:"max_position"`
	// TrainSamples 标定样本数
	TrainSamples int `yaml:"train_samples"`
	// RangeWidth 标准差倍数
	RangeWidth float64 `yaml:"range_width"`
	// MinRange 最小通道半宽（价位数）
	MinRange float64 `yaml:"min_range"`
	// MinProfit 最小利润（价位数）
	MinProfit float64 `yaml:"min_profit"`
	// AddMargin 回合结束后的通道放宽量（价位数）
	AddMargin float64 `yaml:"add_margin"`
	// SpreadThreshold 可交易的最大盘口价差（价位数，标定后由 margin 推导覆盖）
	SpreadThreshold float64 `yaml:"spread_threshold"`
	// StopLossMargin 止损线倍数；<=0 不设止损
	StopLossMargin float64 `yaml:"stop_loss_margin"`
	// MaxLossTimes 止损次数上限
	MaxLossTimes int `yaml:"max_loss_times"`
	// MaxHoldingSec 最长持仓秒数
	MaxHoldingSec int64 `yaml:"max_holding_sec"`
	// MaxRound 最大回合数
	MaxRound int `yaml:"max_round"`
	// SplitNum 每次下单手数
	SplitNum int64 `yaml:"split_num"`
	// NoCloseToday 平仓按非平今计费
	NoCloseToday bool `yaml:"no_close_today"`
	// SoftClose 平仓参考均值混合最近 100 个样本
	SoftClose bool `yaml:"soft_close"`
	// MinHedgeSize 对冲腿盘口最小挂单量
	MinHedgeSize int64 `yaml:"min_hedge_size"`
	// WaitPosition 是否等待持仓同步完成才开始交易
	WaitPosition bool `yaml:"wait_position"`

	// MinTrainSample 做市一次性标定样本数
	MinTrainSample int `yaml:"min_train_sample"`
	// PriceControlTicks 做市开仓让价（价位数）
	PriceControlTicks int64 `yaml:"price_control_ticks"`
	// EduranceTicks 做市改价容忍度（价位数）
	EduranceTicks int64 `yaml:"edurance_ticks"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// OrdersEnabled 是否输出订单请求文件（实盘模式下即下游网关输入）
	OrdersEnabled bool `yaml:"orders_enabled"`
	// SnapshotsEnabled 是否输出 UI 通道快照
	SnapshotsEnabled bool `yaml:"snapshots_enabled"`
	// RoundsEnabled 是否输出回合记录
	RoundsEnabled bool `yaml:"rounds_enabled"`
	// MetricsEnabled 是否输出指标文件
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsIntervalMs 指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// JournalConfig 回合持久化配置
type JournalConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// Path SQLite 文件路径
	Path string `yaml:"path"`
}

// ControlConfig HTTP 控制面配置
type ControlConfig struct {
	// Listen 监听地址；为空时不启动控制面
	Listen string `yaml:"listen"`
	// RateLimit 每秒请求数上限
	RateLimit float64 `yaml:"rate_limit"`
	// Burst 突发请求数
	Burst int `yaml:"burst"`
	// QueueSize 待执行指令队列长度
	QueueSize int `yaml:"queue_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容
// 未知字段（拼写错误的 key）会导致解析失败。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("配置文件为空")
		}
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "stat-arb-engine"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Mode == "" {
		c.App.Mode = ModePaper
	}
	if c.App.LogMaxSizeMB == 0 {
		c.App.LogMaxSizeMB = 100
	}
	if c.App.LogMaxBackups == 0 {
		c.App.LogMaxBackups = 7
	}
	if c.App.LogMaxAgeDays == 0 {
		c.App.LogMaxAgeDays = 30
	}

	if c.Feed.PingIntervalMs == 0 {
		c.Feed.PingIntervalMs = 25000 // 25 秒
	}
	if c.Feed.PongTimeoutMs == 0 {
		c.Feed.PongTimeoutMs = 10000 // 10 秒
	}
	if c.Metadata.TimeoutMs == 0 {
		c.Metadata.TimeoutMs = 10000
	}

	for i := range c.Contracts {
		if c.Contracts[i].Multiplier == 0 {
			c.Contracts[i].Multiplier = 1
		}
	}

	for i := range c.Strategies {
		c.Strategies[i].ApplyDefaults()
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 10000
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
	if c.Journal.Path == "" {
		c.Journal.Path = c.Output.Dir + "/rounds.db"
	}

	if c.Control.RateLimit == 0 {
		c.Control.RateLimit = 20
	}
	if c.Control.Burst == 0 {
		c.Control.Burst = 50
	}
	if c.Control.QueueSize == 0 {
		c.Control.QueueSize = 64
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}
	if c.App.Mode != ModePaper && c.App.Mode != ModeLive {
		errs = append(errs, fmt.Sprintf("app.mode: 无效的运行模式 '%s'，有效值: paper, live", c.App.Mode))
	}
	if c.Feed.URL == "" {
		errs = append(errs, "feed.url: 行情 WebSocket 地址不能为空")
	}

	contracts := make(map[string]bool, len(c.Contracts))
	if len(c.Contracts) == 0 {
		errs = append(errs, "contracts: 至少需要配置一个合约")
	}
	for i, ct := range c.Contracts {
		prefix := fmt.Sprintf("contracts[%d]", i)
		if ct.Name == "" {
			errs = append(errs, prefix+".name: 合约名不能为空")
		} else if contracts[ct.Name] {
			errs = append(errs, fmt.Sprintf("%s.name: 合约名 '%s' 重复", prefix, ct.Name))
		}
		contracts[ct.Name] = true
		if len(ct.Tickers) == 0 && len(ct.Rolls) == 0 {
			errs = append(errs, prefix+".tickers: 至少需要一个可交易合约")
		}
		if ct.MinPriceMove <= 0 {
			errs = append(errs, prefix+".min_price_move: 最小变动价位必须为正数")
		}
		if ct.CancelLimit < 0 {
			errs = append(errs, prefix+".cancel_limit: 撤单上限不能为负数")
		}
		if ct.Multiplier <= 0 {
			errs = append(errs, prefix+".multiplier: 合约乘数必须为正数")
		}
		for field, rate := range map[string]float64{
			"open_fee_rate":        ct.OpenFeeRate,
			"close_fee_rate":       ct.CloseFeeRate,
			"close_today_fee_rate": ct.CloseTodayFeeRate,
		} {
			if err := validateFeeRate(rate, prefix+"."+field); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if ct.FeePerLot < 0 {
			errs = append(errs, prefix+".fee_per_lot: 每手费用不能为负数")
		}
	}

	names := make(map[string]bool, len(c.Strategies))
	if len(c.Strategies) == 0 {
		errs = append(errs, "strategies: 至少需要配置一个策略")
	}
	for i, s := range c.Strategies {
		prefix := fmt.Sprintf("strategies[%d]", i)
		if s.UniqueName == "" {
			errs = append(errs, prefix+".unique_name: 策略名不能为空")
		} else if names[s.UniqueName] {
			errs = append(errs, fmt.Sprintf("%s.unique_name: 策略名 '%s' 重复", prefix, s.UniqueName))
		}
		names[s.UniqueName] = true
		if s.Contract == "" || !contracts[s.Contract] {
			errs = append(errs, fmt.Sprintf("%s.contract: 未知合约 '%s'", prefix, s.Contract))
		}
		if s.HedgeContract != "" && !contracts[s.HedgeContract] {
			errs = append(errs, fmt.Sprintf("%s.hedge_contract: 未知合约 '%s'", prefix, s.HedgeContract))
		}
		errs = append(errs, s.validate(prefix)...)
	}

	if c.Output.BufferSize < 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小不能为负数")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path: 启用持久化时路径不能为空")
	}
	if c.Control.RateLimit < 0 || c.Control.Burst < 0 || c.Control.QueueSize < 0 {
		errs = append(errs, "control: rate_limit、burst、queue_size 不能为负数")
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ApplyDefaults 填充单个策略的默认参数
// 配置文件加载与直接构造策略走同一套默认值。
func (s *StrategyConfig) ApplyDefaults() {
	if s.SplitNum == 0 {
		s.SplitNum = 1
	}
	if s.MinHedgeSize == 0 {
		s.MinHedgeSize = 1
	}
	if s.Variant == VariantMaker {
		if s.MinTrainSample == 0 {
			s.MinTrainSample = 60
		}
		if s.EduranceTicks == 0 {
			s.EduranceTicks = 1
		}
	}
}

// Validate 验证单个策略配置（不检查合约引用）
func (s *StrategyConfig) Validate() error {
	if errs := s.validate("strategy"); len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (s *StrategyConfig) validate(prefix string) []string {
	var errs []string
	switch s.Variant {
	case VariantSpread, VariantPair, VariantMaker:
	default:
		errs = append(errs, fmt.Sprintf("%s.variant: 无效的策略类型 '%s'，有效值: spread, pair, maker", prefix, s.Variant))
	}
	if s.MaxPosition <= 0 {
		errs = append(errs, prefix+".max_position: 最大持仓必须为正数")
	}
	if s.Variant == VariantMaker {
		if s.MinTrainSample <= 0 {
			errs = append(errs, prefix+".min_train_sample: 做市标定样本数必须为正数")
		}
		if s.PriceControlTicks < 0 || s.EduranceTicks < 0 {
			errs = append(errs, prefix+": 做市价位参数不能为负数")
		}
	} else {
		if s.TrainSamples <= 0 {
			errs = append(errs, prefix+".train_samples: 标定样本数必须为正数")
		}
		if s.RangeWidth < 0 {
			errs = append(errs, prefix+".range_width: 标准差倍数不能为负数")
		}
		if s.MinRange < 0 {
			errs = append(errs, prefix+".min_range: 最小通道半宽不能为负数")
		}
		// 做市每次固定一手，不使用 split_num
		if s.SplitNum <= 0 {
			errs = append(errs, prefix+".split_num: 下单手数必须为正数")
		}
	}
	if s.MaxLossTimes < 0 {
		errs = append(errs, prefix+".max_loss_times: 止损次数上限不能为负数")
	}
	if s.MaxHoldingSec < 0 {
		errs = append(errs, prefix+".max_holding_sec: 最长持仓时间不能为负数")
	}
	if s.MaxRound < 0 {
		errs = append(errs, prefix+".max_round: 最大回合数不能为负数")
	}
	return errs
}

// validateFeeRate 验证手续费率范围
// 参数 rate: 费率值
// 参数 field: 字段名称，用于错误消息
// 返回: 若费率无效则返回错误
func validateFeeRate(rate float64, field string) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%s: 费率必须在 0-1 之间，当前值: %f", field, rate)
	}
	return nil
}

// Contract 按逻辑名查找合约配置
func (c *Config) Contract(name string) (ContractConfig, bool) {
	for _, ct := range c.Contracts {
		if ct.Name == name {
			return ct, true
		}
	}
	return ContractConfig{}, false
}
