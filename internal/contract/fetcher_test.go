package contract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHTTPFetcher_FetchOKX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instType") != "SWAP" {
			t.Errorf("instType = %q", r.URL.Query().Get("instType"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","instType":"SWAP","ctVal":"0.01","tickSz":"0.1","lotSz":"1","state":"live"}]}`))
	}))
	defer srv.Close()

	insts, err := NewHTTPFetcher(2000).FetchOKX(context.Background(), srv.URL+"/api/v5/public/instruments?instType=SWAP")
	if err != nil {
		t.Fatalf("FetchOKX: %v", err)
	}
	if len(insts) != 1 || insts[0].InstId != "BTC-USDT-SWAP" || insts[0].TickSz != "0.1" {
		t.Fatalf("insts = %+v", insts)
	}
}

func TestHTTPFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(2000).FetchOKX(context.Background(), srv.URL); err == nil {
		t.Fatal("非零 code 应返回错误")
	}
}

func TestHTTPFetcher_RetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"0","data":[]}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(2000).FetchOKX(context.Background(), srv.URL); err != nil {
		t.Fatalf("重试后应成功: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}
