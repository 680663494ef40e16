// Package okx 实现 OKX 公共行情 WebSocket 客户端。
// 连接地址: wss://ws.okx.com:8443/ws/v5/public
// 订阅频道: books5
// 心跳: 文本 ping/pong；读超时 = ping 间隔 + pong 超时，超时即断线重连
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stat-arb-engine/internal/config"
	"stat-arb-engine/internal/core/model"
	"stat-arb-engine/internal/util/backoff"
	"stat-arb-engine/internal/util/timeutil"
)

// snapBuffer 行情通道容量
const snapBuffer = 4096

// counters 读循环与心跳共享的计数器
type counters struct {
	reconnects  atomic.Int64
	parseErrors atomic.Int64
	dropped     atomic.Int64
	updates     atomic.Int64
	lastMsgNs   atomic.Int64
	pingSentNs  atomic.Int64
	rttMs       atomic.Int64
	// qps 最近一秒的更新数
	qps atomic.Int64
}

// Client OKX WebSocket 客户端
type Client struct {
	cfg     config.FeedConfig
	tickers []string
	logger  *zap.Logger
	parser  *Parser
	backoff *backoff.Backoff

	// conn 当前连接；写入经 writeMu 串行化
	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex

	snapCh chan *model.MarketSnapshot
	stats  counters
	closed atomic.Bool

	dropLog  rate.Sometimes
	parseLog rate.Sometimes
}

// NewClient 创建 OKX WebSocket 客户端
// 参数 cfg: 行情配置
// 参数 tickers: 订阅的 instId 列表
func NewClient(cfg config.FeedConfig, tickers []string, logger *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		tickers:  append([]string(nil), tickers...),
		logger:   logger.Named("okx"),
		parser:   NewParser(tickers),
		backoff:  backoff.NewDefault(),
		snapCh:   make(chan *model.MarketSnapshot, snapBuffer),
		dropLog:  rate.Sometimes{First: 1, Interval: 10 * time.Second},
		parseLog: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Connect 建立 WebSocket 连接
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("User-Agent", "stat-arb-engine/1.0")
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("连接 OKX WebSocket 失败: %w", err)
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info("OKX WebSocket 已连接", zap.String("url", c.cfg.URL))
	return nil
}

// Subscribe 订阅全部合约的 books5 频道
func (c *Client) Subscribe() error {
	args := make([]SubscribeArg, 0, len(c.tickers))
	for _, t := range c.tickers {
		args = append(args, SubscribeArg{Channel: "books5", InstId: t})
	}
	data, err := json.Marshal(SubscribeRequest{Op: "subscribe", Args: args})
	if err != nil {
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := c.write(data); err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}
	c.logger.Info("OKX 订阅请求已发送", zap.Strings("tickers", c.tickers))
	return nil
}

// Run 读行情直到 ctx 取消或 Close；断线后按退避重连并重新订阅
func (c *Client) Run(ctx context.Context) {
	go c.sample(ctx)
	for !c.closed.Load() && ctx.Err() == nil {
		conn := c.current()
		if conn == nil {
			if !c.redial(ctx) {
				return
			}
			continue
		}
		c.backoff.Reset()

		sessionCtx, stop := context.WithCancel(ctx)
		go c.heartbeat(sessionCtx, conn)
		err := c.readSession(conn)
		stop()

		if c.closed.Load() || ctx.Err() != nil {
			return
		}
		c.stats.reconnects.Add(1)
		c.logger.Warn("OKX 连接中断", zap.Error(err))
		c.drop(conn)
	}
}

// redial 等待退避后重连并重新订阅
// 返回: ctx 已取消时返回 false
func (c *Client) redial(ctx context.Context) bool {
	c.logger.Info("OKX 准备重连", zap.Int("attempt", c.backoff.Attempt()+1))
	if err := c.backoff.Wait(ctx); err != nil {
		return false
	}
	if err := c.Connect(ctx); err != nil {
		c.logger.Error("OKX 重连失败", zap.Error(err))
		return true
	}
	if err := c.Subscribe(); err != nil {
		c.logger.Error("OKX 重新订阅失败", zap.Error(err))
		c.drop(c.current())
	}
	return true
}

// readSession 读取单个连接上的消息，直到出错
func (c *Client) readSession(conn *websocket.Conn) error {
	timeout := time.Duration(c.cfg.PingIntervalMs+c.cfg.PongTimeoutMs) * time.Millisecond
	for {
		if timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		nowNs := timeutil.NowNano()
		c.stats.lastMsgNs.Store(nowNs)

		switch {
		case IsPong(data):
			if sent := c.stats.pingSentNs.Load(); sent > 0 {
				c.stats.rttMs.Store(timeutil.NanoToMs(nowNs - sent))
			}
		case IsSubscribeResponse(data):
			c.logger.Debug("收到订阅响应", zap.ByteString("data", data))
		default:
			c.dispatch(data)
		}
	}
}

func (c *Client) dispatch(data []byte) {
	snaps, err := c.parser.Parse(data)
	if err != nil {
		c.stats.parseErrors.Add(1)
		c.parseLog.Do(func() {
			sample := data
			if len(sample) > 200 {
				sample = sample[:200]
			}
			c.logger.Warn("解析 OKX 消息失败（采样）", zap.Error(err), zap.ByteString("data", sample))
		})
		return
	}
	for _, snap := range snaps {
		c.stats.updates.Add(1)
		select {
		case c.snapCh <- snap:
		default:
			c.stats.dropped.Add(1)
			c.dropLog.Do(func() {
				c.logger.Warn("OKX 行情通道已满，丢弃快照",
					zap.String("ticker", snap.Ticker),
					zap.Int64("dropped", c.stats.dropped.Load()))
			})
		}
	}
}

// heartbeat 在单个连接上定时发送文本 ping
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	if c.cfg.PingIntervalMs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(c.cfg.PingIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 OKX ping 失败", zap.Error(err))
				continue
			}
			c.stats.pingSentNs.Store(timeutil.NowNano())
		}
	}
}

// sample 每秒统计一次更新速率
func (c *Client) sample(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := c.stats.updates.Load()
			c.stats.qps.Store(n - last)
			last = n
		}
	}
}

func (c *Client) current() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) write(data []byte) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// drop 关闭并丢弃指定连接（若仍是当前连接）
func (c *Client) drop(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	conn.Close()
}

// Close 关闭客户端
// 行情通道不关闭：读循环可能仍在退出途中，消费方以 ctx 结束。
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.drop(c.current())
	c.logger.Info("OKX 客户端已关闭")
	return nil
}

// Snapshots 行情快照通道
func (c *Client) Snapshots() <-chan *model.MarketSnapshot {
	return c.snapCh
}

// Metrics 连接指标快照
func (c *Client) Metrics() ConnectionMetrics {
	m := ConnectionMetrics{
		ReconnectCount:  c.stats.reconnects.Load(),
		ParseErrorCount: c.stats.parseErrors.Load(),
		DroppedCount:    c.stats.dropped.Load(),
		UpdatesPerSec:   float64(c.stats.qps.Load()),
		WsRttMs:         c.stats.rttMs.Load(),
	}
	if last := c.stats.lastMsgNs.Load(); last > 0 {
		m.LastMessageAgeMs = timeutil.NanoToMs(timeutil.NowNano() - last)
	}
	return m
}
