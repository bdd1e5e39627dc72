package strategy

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/cache"
)

// Fetcher 代表网络访问。返回 error 即视为网络不可达；非 2xx 响应以正常结果返回。
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*cache.Response, error)
}

// FetcherFunc 让普通函数满足 Fetcher，便于测试注入。
type FetcherFunc func(ctx context.Context, req *http.Request) (*cache.Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *http.Request) (*cache.Response, error) {
	return f(ctx, req)
}

// Env 汇总策略执行所需的依赖，策略函数本身不持有任何全局状态。
type Env struct {
	Storage cache.Storage
	Fetcher Fetcher
	Names   cache.Names
	// OfflineURL 是离线兜底页的绝对 URL，需在 install 阶段进入静态 Bucket。
	OfflineURL string
	Logger     *logrus.Entry
}

// Source 标记响应来自哪里，会透出到 X-Seraj-Source 头与日志。
type Source string

const (
	SourceNetwork     Source = "network"
	SourceCache       Source = "cache"
	SourceOfflinePage Source = "offline-page"
	SourceSynthesized Source = "synthesized"
)

// Result 是一次路由的最终产出。策略永远返回一个可用响应，不向调用方抛错。
type Result struct {
	Response *cache.Response
	Kind     Kind
	Source   Source
	// FetchErr 记录网络不可达时的原始错误，仅用于日志。
	FetchErr error
}

func (e Env) logger() *logrus.Entry {
	if e.Logger != nil {
		return e.Logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return logrus.NewEntry(discard)
}

// match 在所有 Bucket 中查找请求；读取失败按未命中处理并记录日志。
func (e Env) match(ctx context.Context, req *http.Request) (*cache.Response, bool) {
	if e.Storage == nil {
		return nil, false
	}
	resp, err := e.Storage.Match(ctx, req)
	switch {
	case err == nil:
		return resp, true
	case errors.Is(err, cache.ErrNotFound):
		return nil, false
	default:
		e.logger().WithError(err).WithField("url", req.URL.String()).Warn("cache_match_failed")
		return nil, false
	}
}

// store 把响应副本写入指定 Bucket；写入失败不影响本次请求的返回。
func (e Env) store(ctx context.Context, bucketName string, req *http.Request, resp *cache.Response) {
	if e.Storage == nil || bucketName == "" {
		return
	}
	if req.Method != http.MethodGet {
		return
	}
	if !cache.Shareable(req, resp) {
		e.logger().WithFields(logrus.Fields{
			"bucket": bucketName,
			"url":    req.URL.String(),
		}).Debug("cache_put_skipped_private")
		return
	}
	bucket, err := e.Storage.Open(ctx, bucketName)
	if err == nil {
		err = bucket.Put(ctx, req, resp.Clone())
	}
	if err != nil {
		e.logger().WithError(err).WithFields(logrus.Fields{
			"bucket": bucketName,
			"url":    req.URL.String(),
		}).Warn("cache_put_failed")
	}
}

func (e Env) fetch(ctx context.Context, req *http.Request) (*cache.Response, error) {
	if e.Fetcher == nil {
		return nil, errors.New("fetcher unavailable")
	}
	resp, err := e.Fetcher.Fetch(ctx, req)
	if err != nil {
		e.logger().WithError(err).WithField("url", req.URL.String()).Debug("network_unreachable")
		return nil, err
	}
	return resp, nil
}
