// Package main 是统计套利引擎的入口点。
// 订阅 OKX 行情，驱动配置中的全部策略实例；paper 模式下由本地网关撮合，
// live 模式下把订单请求写入 orders.jsonl 交给下游网关。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stat-arb-engine/internal/config"
	"stat-arb-engine/internal/contract"
	"stat-arb-engine/internal/control"
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/core/orders"
	"stat-arb-engine/internal/core/paper"
	"stat-arb-engine/internal/core/registry"
	"stat-arb-engine/internal/core/strategy"
	"stat-arb-engine/internal/feed/okx"
	"stat-arb-engine/internal/journal"
	"stat-arb-engine/internal/output/jsonl"
	"stat-arb-engine/internal/stats/rounds"
	"stat-arb-engine/internal/stats/skew"
	"stat-arb-engine/internal/util/timeutil"
)

// maxReportRounds 单个事件内回报与再下单的最大轮数
const maxReportRounds = 16

type metricsSnapshot struct {
	// TsMs 指标采集时间（毫秒）
	TsMs int64 `json:"ts_ms"`
	// Feed 行情连接指标
	Feed okx.ConnectionMetrics `json:"feed"`
	// Strategies 策略状态
	Strategies []strategy.Info `json:"strategies"`
	// Rounds 回合滚动统计
	Rounds []rounds.Stats `json:"rounds"`
	// Skew 两腿时间差统计
	Skew []skew.Stats `json:"skew"`
	// Outstanding 跟踪归属的在途订单数
	Outstanding int `json:"outstanding"`
	// Resting paper 网关挂单数
	Resting int `json:"resting"`
	// UpdatesPerSec 行情更新速率
	UpdatesPerSec float64 `json:"updates_per_sec"`
	// RejectedCommands 控制面因队列满拒绝的指令数
	RejectedCommands int64 `json:"rejected_commands"`
}

// engine 事件循环持有的全部组件
type engine struct {
	logger     *zap.Logger
	reg        *registry.Registry
	strategies []*strategy.Strategy
	gateway    *paper.Gateway
	feed       *okx.Client
	orderSink  *jsonl.OrderSink
	roundStats *rounds.Calculator
	skew       *skew.Tracker
	control    *control.Server

	metricsWriter     *jsonl.Writer
	metricsIntervalMs int
}

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	var configPath, positionsPath, commandsPath string
	flag.StringVar(&configPath, "config", envOr("ARBENGINE_CONFIG", "config.yaml"), "配置文件路径")
	flag.StringVar(&positionsPath, "positions", os.Getenv("ARBENGINE_POSITIONS"), "启动持仓快照文件（YAML），为空则视为空仓")
	flag.StringVar(&commandsPath, "commands", "-", "JSON 指令输入，- 为标准输入，空字符串关闭")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App)
	defer logger.Sync()

	if err := run(cfg, positionsPath, commandsPath, logger); err != nil {
		logger.Error("引擎退出", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, positionsPath, commandsPath string, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	contracts := contract.NewWorker(cfg.Contracts, cfg.App.TradeDate)
	if cfg.Metadata.OKX != "" {
		fetcher := contract.NewHTTPFetcher(cfg.Metadata.TimeoutMs)
		n, err := contracts.RefreshTickSizes(ctx, fetcher, cfg.Metadata.OKX)
		if err != nil {
			// 元数据不可用时沿用配置中的最小变动价位
			logger.Warn("刷新最小变动价位失败", zap.Error(err))
		} else {
			logger.Info("最小变动价位已刷新", zap.Int("updated", n))
		}
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	var writers []*jsonl.Writer
	openWriter := func(enabled bool, name string) (*jsonl.Writer, error) {
		if !enabled {
			return nil, nil
		}
		w, err := jsonl.NewWriter(filepath.Join(cfg.Output.Dir, name), cfg.Output.BufferSize, logger)
		if err != nil {
			return nil, fmt.Errorf("创建 %s 失败: %w", name, err)
		}
		writers = append(writers, w)
		return w, nil
	}
	defer func() {
		for _, w := range writers {
			if err := w.Close(); err != nil {
				logger.Warn("关闭输出文件失败", zap.String("path", w.Path()), zap.Error(err))
			}
		}
	}()

	live := cfg.App.Mode == config.ModeLive
	ordersWriter, err := openWriter(cfg.Output.OrdersEnabled || live, "orders.jsonl")
	if err != nil {
		return err
	}
	snapshotsWriter, err := openWriter(cfg.Output.SnapshotsEnabled, "snapshots.jsonl")
	if err != nil {
		return err
	}
	roundsWriter, err := openWriter(cfg.Output.RoundsEnabled, "rounds.jsonl")
	if err != nil {
		return err
	}
	metricsWriter, err := openWriter(cfg.Output.MetricsEnabled, "metrics.jsonl")
	if err != nil {
		return err
	}

	e := &engine{
		logger:            logger,
		reg:               registry.New(logger),
		roundStats:        rounds.NewCalculator(1000),
		skew:              skew.NewTracker(10000),
		metricsWriter:     metricsWriter,
		metricsIntervalMs: cfg.Output.MetricsIntervalMs,
	}

	// 订单链路：归属跟踪 → 订单文件 → paper 网关
	var sender orders.Sender
	if !live {
		e.gateway = paper.NewGateway(logger)
		sender = e.gateway
	}
	if ordersWriter != nil {
		e.orderSink = jsonl.NewOrderSink(ordersWriter, sender)
		sender = e.orderSink
	}
	sender = e.reg.Sender(sender)

	recorders := []strategy.RoundRecorder{e.roundStats}
	if roundsWriter != nil {
		recorders = append(recorders, jsonl.NewRoundSink(roundsWriter))
	}
	var jr *journal.Journal
	if cfg.Journal.Enabled {
		jr, err = journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return err
		}
		defer jr.Close()
		recorders = append(recorders, jr)
	}

	for _, sc := range cfg.Strategies {
		deps := strategy.Deps{
			Orders:    sender,
			Contracts: contracts,
			Rounds:    recorders,
			Skew:      e.skew,
			TradeDate: cfg.App.TradeDate,
			Logger:    logger,
		}
		if snapshotsWriter != nil {
			deps.Snapshots = jsonl.NewSnapshotSink(snapshotsWriter)
		}
		s, err := strategy.New(sc, deps)
		if err != nil {
			return fmt.Errorf("创建策略失败: %w", err)
		}
		if err := e.reg.Register(s); err != nil {
			return err
		}
		e.strategies = append(e.strategies, s)
	}
	logger.Info("策略已注册",
		zap.Int("strategies", len(e.strategies)),
		zap.Strings("tickers", e.reg.Tickers()),
		zap.String("mode", cfg.App.Mode))

	if positionsPath != "" {
		seeds, err := loadPositions(positionsPath)
		if err != nil {
			return err
		}
		for _, p := range seeds {
			n := e.reg.SeedPosition(p.Ticker, p.Position, p.AvgCost)
			logger.Info("载入持仓", zap.String("ticker", p.Ticker), zap.Int64("position", p.Position), zap.Int("strategies", n))
		}
	}
	e.reg.DispatchPositionEnd()

	e.feed = okx.NewClient(cfg.Feed, e.reg.Tickers(), logger)
	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()
	if err := e.feed.Connect(startCtx); err != nil {
		return fmt.Errorf("OKX 连接失败: %w", err)
	}
	if err := e.feed.Subscribe(); err != nil {
		return fmt.Errorf("OKX 订阅失败: %w", err)
	}
	go e.feed.Run(ctx)

	if cfg.Control.Listen != "" {
		e.control = control.NewServer(cfg.Control, logger)
		go func() {
			if err := e.control.Run(ctx); err != nil {
				logger.Error("控制面退出", zap.Error(err))
			}
		}()
	}

	var cmdCh <-chan model.Command
	switch commandsPath {
	case "":
	case "-":
		cmdCh = readCommands(ctx, os.Stdin, logger)
	default:
		f, err := os.Open(commandsPath)
		if err != nil {
			return fmt.Errorf("打开指令文件失败: %w", err)
		}
		defer f.Close()
		cmdCh = readCommands(ctx, f, logger)
	}

	e.loop(ctx, cmdCh)

	// 输出最后一条 metrics 快照（便于离线复盘）
	e.writeMetrics(0)
	if jr != nil {
		sumCtx, sumCancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, s := range e.strategies {
			if n, net, err := jr.Summary(sumCtx, s.Name()); err == nil {
				logger.Info("回合汇总", zap.String("strategy", s.Name()), zap.Int("rounds", n), zap.Float64("net_pnl", net))
			}
		}
		sumCancel()
	}
	e.shutdown()
	return nil
}

// loop 单 goroutine 事件循环：行情、指令与定时指标
func (e *engine) loop(ctx context.Context, cmdCh <-chan model.Command) {
	intervalMs := e.metricsIntervalMs
	if intervalMs <= 0 {
		intervalMs = 10000
	}
	metricsTicker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer metricsTicker.Stop()

	snaps := e.feed.Snapshots()
	var ctrlCh <-chan model.Command
	if e.control != nil {
		ctrlCh = e.control.Commands()
	}
	e.writeMetrics(0)
	var updates int64
	lastMetricsNs := timeutil.NowNano()

	for {
		select {
		case <-ctx.Done():
			return

		case snap := <-snaps:
			if snap == nil {
				continue
			}
			updates++
			// 网关先看到盘口，策略据此下的单才能立即撮合
			if e.gateway != nil {
				e.gateway.OnMarketData(snap)
			}
			e.reg.DispatchMarketData(snap)
			e.pump()

		case cmd, ok := <-cmdCh:
			if !ok {
				cmdCh = nil
				continue
			}
			e.command(cmd)

		case cmd := <-ctrlCh:
			e.command(cmd)

		case <-metricsTicker.C:
			nowNs := timeutil.NowNano()
			elapsedSec := float64(nowNs-lastMetricsNs) / 1e9
			rate := 0.0
			if elapsedSec > 0 {
				rate = float64(updates) / elapsedSec
			}
			updates = 0
			lastMetricsNs = nowNs
			e.writeMetrics(rate)
		}
	}
}

func (e *engine) command(cmd model.Command) {
	if err := e.reg.DispatchCommand(cmd); err != nil {
		e.logger.Warn("指令分发失败", zap.String("strategy", cmd.Strategy), zap.String("action", string(cmd.Action)), zap.Error(err))
		return
	}
	e.logger.Info("指令已执行", zap.String("strategy", cmd.Strategy), zap.String("action", string(cmd.Action)))
	e.pump()
}

// pump 把 paper 网关产生的回报送回策略，直到不再产生新回报
func (e *engine) pump() {
	if e.gateway == nil {
		return
	}
	for i := 0; i < maxReportRounds; i++ {
		reps := e.gateway.Drain()
		if len(reps) == 0 {
			return
		}
		for _, rep := range reps {
			if e.orderSink != nil {
				e.orderSink.RecordReport(rep)
			}
			if err := e.reg.DispatchReport(rep); err != nil {
				e.logger.Warn("回报分发失败", zap.String("order_ref", rep.OrderRef), zap.String("ticker", rep.Ticker), zap.Error(err))
			}
		}
	}
	e.logger.Warn("回报轮数达到上限，剩余回报留待下个事件", zap.Int("rounds", maxReportRounds))
}

func (e *engine) writeMetrics(rate float64) {
	snap := metricsSnapshot{
		TsMs:          timeutil.NowMs(),
		Feed:          e.feed.Metrics(),
		Rounds:        e.roundStats.All(),
		Skew:          e.skew.All(),
		Outstanding:   e.reg.Outstanding(),
		UpdatesPerSec: rate,
	}
	for _, s := range e.strategies {
		snap.Strategies = append(snap.Strategies, s.Status())
	}
	if e.gateway != nil {
		snap.Resting = e.gateway.Resting()
	}
	if e.control != nil {
		snap.RejectedCommands = e.control.Rejected()
		e.control.Publish(snap)
	}
	if e.metricsWriter == nil {
		e.logger.Info("运行指标", zap.Any("metrics", snap))
		return
	}
	if err := jsonl.WriteMetrics(e.metricsWriter, snap); err != nil {
		e.logger.Warn("写入指标失败", zap.Error(err))
	}
}

// shutdown 关闭行情连接（10s 超时）
func (e *engine) shutdown() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.feed.Close()
	}()
	select {
	case <-time.After(10 * time.Second):
		e.logger.Warn("关闭超时，强制退出")
	case <-done:
		e.logger.Info("关闭完成")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
