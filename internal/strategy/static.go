package strategy

import (
	"context"
	"net/http"
)

func init() {
	MustRegister(Descriptor{
		Kind:        KindStatic,
		Description: "静态资源：缓存优先（全局查找，不做再验证），未命中回源并写入 dynamic Bucket",
		Order:       OrderCacheFirst,
		WriteBucket: BucketDynamic,
		Handle:      HandleStatic,
	})
}

// HandleStatic 缓存优先。命中即原样返回；未命中时回源，2xx 写入 dynamic Bucket，
// 无论状态码如何都返回网络响应；网络不可达时返回固定 404。
func HandleStatic(ctx context.Context, env Env, req *http.Request) Result {
	if cached, ok := env.match(ctx, req); ok {
		return cacheResult(cached)
	}

	resp, err := env.fetch(ctx, req)
	if err != nil {
		return synthesizedResult(synthesizeText(http.StatusNotFound, MessageStaticMissing), err)
	}
	if resp.OK() {
		env.store(ctx, env.Names.Dynamic, req, resp)
	}
	return networkResult(resp)
}
