package strategy

import (
	"context"
	"net/http"
)

func init() {
	MustRegister(Descriptor{
		Kind:        KindAPI,
		Description: "API 请求：网络优先，成功写入 api Bucket，失败回退缓存或合成 JSON",
		Order:       OrderNetworkFirst,
		WriteBucket: BucketAPI,
		Handle:      HandleAPI,
	})
}

// HandleAPI 网络优先：2xx 写穿到 api Bucket 并返回实时响应；
// 网络不可达或非 2xx 时回退到缓存，缓存也没有则合成带错误码的 JSON。
func HandleAPI(ctx context.Context, env Env, req *http.Request) Result {
	resp, err := env.fetch(ctx, req)
	if err == nil && resp.OK() {
		env.store(ctx, env.Names.API, req, resp)
		return networkResult(resp)
	}

	if cached, ok := env.match(ctx, req); ok {
		return cacheResult(cached)
	}

	if err != nil {
		return synthesizedResult(synthesizeJSON(http.StatusServiceUnavailable, ErrorCodeOffline, MessageOffline), err)
	}
	// 非 GET 请求不可能有缓存，上游的错误响应原样返回，避免掩盖表单校验等业务错误。
	if req.Method != http.MethodGet {
		return networkResult(resp)
	}
	return synthesizedResult(synthesizeJSON(http.StatusBadGateway, ErrorCodeNoCache, MessageOfflineNoCache), nil)
}
