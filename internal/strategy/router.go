package strategy

import (
	"context"
	"net/http"
)

// Router 把分类与策略组合在一起：Route = Resolve(Classify(req)).Handle。
type Router struct {
	Rules Rules
	Env   Env
}

// NewRouter 构造站点路由器。
func NewRouter(rules Rules, env Env) *Router {
	return &Router{Rules: rules, Env: env}
}

// Route 对一次拦截到的请求做分类并执行对应策略。未注册的分类退回 other 策略。
func (r *Router) Route(ctx context.Context, req *http.Request) Result {
	kind := Classify(r.Rules, req)
	desc, ok := Resolve(kind)
	if !ok {
		desc, _ = Resolve(KindOther)
	}
	result := desc.Handle(ctx, r.Env, req)
	result.Kind = kind
	return result
}
