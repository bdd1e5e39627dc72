package strategy

import (
	"context"
	"net/http"

	"github.com/seraj-app/seraj-gateway/internal/cache"
)

func init() {
	MustRegister(Descriptor{
		Kind:        KindNavigation,
		Description: "页面导航：网络优先，成功写入 dynamic Bucket，离线时回退缓存页或离线页",
		Order:       OrderNetworkFirst,
		WriteBucket: BucketDynamic,
		Handle:      HandleNavigation,
	})
}

// HandleNavigation 网络优先。非 2xx 响应不写缓存：有精确缓存时返回缓存，
// 否则原样返回上游页面。网络不可达时依次尝试精确缓存、离线页，最后返回 503。
func HandleNavigation(ctx context.Context, env Env, req *http.Request) Result {
	resp, err := env.fetch(ctx, req)
	if err == nil && resp.OK() {
		env.store(ctx, env.Names.Dynamic, req, resp)
		return networkResult(resp)
	}

	if cached, ok := env.match(ctx, req); ok {
		return cacheResult(cached)
	}
	if err == nil {
		return networkResult(resp)
	}

	if offline, ok := env.matchOfflinePage(ctx); ok {
		return Result{Response: offline, Source: SourceOfflinePage, FetchErr: err}
	}
	return synthesizedResult(synthesizeText(http.StatusServiceUnavailable, MessageOfflinePage), err)
}

// matchOfflinePage 以无附加头的 GET 请求查找离线页。
func (e Env) matchOfflinePage(ctx context.Context) (*cache.Response, bool) {
	if e.OfflineURL == "" {
		return nil, false
	}
	offlineReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.OfflineURL, nil)
	if err != nil {
		return nil, false
	}
	return e.match(ctx, offlineReq)
}
