package okx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stat-arb-engine/internal/config"
)

// fakeOKX 收到订阅后推送一条 books5 消息
func fakeOKX(t *testing.T, subs chan<- SubscribeRequest) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("升级失败: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req SubscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			t.Errorf("订阅请求无法解析: %v", err)
			return
		}
		subs <- req
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"channel":"books5","instId":"BTC-USDT-SWAP"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"arg":{"channel":"books5","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","bids":[["100.1","3","0","1"]],"asks":[["100.2","4","0","1"]],"ts":"1700000000500"}]}`))

		// 保持连接直到客户端关闭
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	subs := make(chan SubscribeRequest, 1)
	srv := fakeOKX(t, subs)
	defer srv.Close()

	cfg := config.FeedConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		PingIntervalMs: 60000,
		PongTimeoutMs:  10000,
	}
	c := NewClient(cfg, []string{"BTC-USDT-SWAP"}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Subscribe(); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	go c.Run(ctx)
	defer c.Close()

	select {
	case req := <-subs:
		if req.Op != "subscribe" || len(req.Args) != 1 || req.Args[0].Channel != "books5" || req.Args[0].InstId != "BTC-USDT-SWAP" {
			t.Fatalf("订阅请求 = %+v", req)
		}
	case <-ctx.Done():
		t.Fatal("未收到订阅请求")
	}

	select {
	case snap := <-c.Snapshots():
		if snap.Ticker != "BTC-USDT-SWAP" || snap.Bids[0] != 100.1 || snap.Asks[0] != 100.2 || snap.Time.Usec != 500000 {
			t.Fatalf("快照 = %+v", snap)
		}
	case <-ctx.Done():
		t.Fatal("未收到行情快照")
	}
}
