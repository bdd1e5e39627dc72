package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/seraj-app/seraj-gateway/internal/cache"
	"github.com/seraj-app/seraj-gateway/internal/server"
)

// HTTPFetcher 以共享 http.Client 实现 strategy.Fetcher。
// 传输层错误与读取响应体失败都视为网络不可达；非 2xx 作为正常响应返回。
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 构造 Fetcher，client 为空时使用 http.DefaultClient。
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Fetch 执行请求并把响应完整读入内存。
func (f *HTTPFetcher) Fetch(ctx context.Context, req *http.Request) (*cache.Response, error) {
	resp, err := f.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", req.URL, err)
	}

	header := http.Header{}
	server.CopyHeaders(header, resp.Header)
	header.Del("Content-Length")
	return &cache.Response{
		Status: resp.StatusCode,
		Header: header,
		Body:   body,
		URL:    req.URL.String(),
	}, nil
}
