package strategy

import (
	"context"
	"net/http"
)

func init() {
	MustRegister(Descriptor{
		Kind:        KindOther,
		Description: "其它请求：缓存优先，未命中回源且不写缓存，双重失败返回 404",
		Order:       OrderCacheFirst,
		WriteBucket: BucketNone,
		Handle:      HandleFallback,
	})
}

// HandleFallback 缓存优先，回源结果不写入任何 Bucket。
func HandleFallback(ctx context.Context, env Env, req *http.Request) Result {
	if cached, ok := env.match(ctx, req); ok {
		return cacheResult(cached)
	}
	resp, err := env.fetch(ctx, req)
	if err != nil {
		return synthesizedResult(synthesizeText(http.StatusNotFound, MessageRequestFailed), err)
	}
	return networkResult(resp)
}
