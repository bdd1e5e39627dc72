package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/strategy"
	"github.com/seraj-app/seraj-gateway/internal/worker"
)

// Update 以当前配置注册新的 worker 版本，激活后预热 CachedAPIEndpoints。
// install 失败时返回 worker.ErrInstallFailed，原有 controller 保持不变。
func (r *SiteRoute) Update(ctx context.Context) (*worker.Worker, error) {
	w, err := r.Registration.Register(ctx, r.Script())
	if err != nil {
		return w, err
	}
	r.warmAPI(ctx)
	return w, nil
}

// warmAPI 通过 API 策略拉取声明的接口，成功的响应写入 api Bucket。失败只记日志。
func (r *SiteRoute) warmAPI(ctx context.Context) {
	if len(r.Config.CachedAPIEndpoints) == 0 {
		return
	}
	router := r.Router(nil)
	if router == nil {
		return
	}
	for _, endpoint := range r.Config.CachedAPIEndpoints {
		target := r.Resolve(endpoint)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			r.Logger.WithError(err).WithField("url", target).Warn("api_warm_failed")
			continue
		}
		req.Header.Set("Accept", "application/json")
		result := strategy.HandleAPI(ctx, router.Env, req)
		r.Logger.WithFields(logrus.Fields{
			"action": "api_warm",
			"url":    target,
			"source": result.Source,
			"status": result.Response.Status,
		}).Debug("api_warm_complete")
	}
}

// Bootstrap 依次为所有站点执行首次注册。单个站点失败不影响其它站点，
// 失败的站点以透传模式运行，直到通过诊断接口重新 update。
func (r *SiteRegistry) Bootstrap(ctx context.Context) error {
	var errs []error
	for _, route := range r.List() {
		w, err := route.Update(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("site %s: %w", route.Config.Name, err))
			continue
		}
		route.Logger.WithFields(logrus.Fields{
			"action":  "bootstrap",
			"version": w.Version(),
			"state":   w.State(),
		}).Info("site_ready")
	}
	return errors.Join(errs...)
}
