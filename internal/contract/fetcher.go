package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher 合约元数据来源
type Fetcher interface {
	// FetchOKX 获取 OKX 合约列表
	FetchOKX(ctx context.Context, url string) ([]OKXInstrument, error)
}

// HTTPFetcher 基于 resty 的元数据获取器，5xx 与网络错误自动重试
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher 创建 HTTP 元数据获取器
// 参数 timeoutMs: 单次请求超时（毫秒）
func NewHTTPFetcher(timeoutMs int) *HTTPFetcher {
	client := resty.New().
		SetTimeout(time.Duration(timeoutMs)*time.Millisecond).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("User-Agent", "stat-arb-engine/1.0").
		SetHeader("Accept", "application/json")
	return &HTTPFetcher{client: client}
}

// FetchOKX 获取 OKX 合约元数据
// 参数 url: 完整的 instruments 接口地址（含 instType 查询参数）
func (f *HTTPFetcher) FetchOKX(ctx context.Context, url string) ([]OKXInstrument, error) {
	var body OKXResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("请求 OKX 元数据失败: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("请求 OKX 元数据失败: HTTP %d", resp.StatusCode())
	}
	if body.Code != "0" {
		return nil, fmt.Errorf("OKX API 返回错误: code=%s, msg=%s", body.Code, body.Msg)
	}
	return body.Data, nil
}
