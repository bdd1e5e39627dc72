package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/cache"
	"github.com/seraj-app/seraj-gateway/internal/config"
	"github.com/seraj-app/seraj-gateway/internal/logging"
	"github.com/seraj-app/seraj-gateway/internal/push"
	"github.com/seraj-app/seraj-gateway/internal/strategy"
	"github.com/seraj-app/seraj-gateway/internal/worker"
)

// SiteRoute 聚合站点配置与运行时对象（源站 URL、Bucket 名称、分类规则、
// worker 注册），供路由/代理层直接复用，避免重复解析配置。
type SiteRoute struct {
	// Config 是 config.toml 中站点字段的副本。
	Config config.SiteConfig
	// ListenPort 记录网关监听端口，用于 X-Forwarded-Port。
	ListenPort int
	OriginURL  *url.URL
	// Names 是当前配置版本的 Bucket 名称；请求路径以 controller 的名称为准。
	Names cache.Names
	Rules strategy.Rules
	// OfflineURL 是离线页在源站上的绝对地址。
	OfflineURL   string
	Storage      cache.Storage
	Fetcher      strategy.Fetcher
	Registration *worker.Registration
	// Push 为 nil 表示站点未启用推送。
	Push   *push.Client
	Logger *logrus.Entry
}

// SiteRegistry 提供 Host/Host:port 到 SiteRoute 的查询能力，所有站点共享同一个监听端口。
type SiteRegistry struct {
	routes  map[string]*SiteRoute
	byName  map[string]*SiteRoute
	ordered []*SiteRoute
}

// NewSiteRegistry 根据配置构建 Host 映射，并为每个站点打开独立的缓存分区。
// 调用方应在启动阶段创建一次并复用。
func NewSiteRegistry(cfg *config.Config, store cache.Store, fetcher strategy.Fetcher, logger *logrus.Logger) (*SiteRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("cache store is nil")
	}

	registry := &SiteRegistry{
		routes: make(map[string]*SiteRoute, len(cfg.Sites)),
		byName: make(map[string]*SiteRoute, len(cfg.Sites)),
	}

	for _, site := range cfg.Sites {
		normalizedHost := normalizeDomain(site.Domain)
		if normalizedHost == "" {
			return nil, fmt.Errorf("invalid domain for site %s", site.Name)
		}
		if _, exists := registry.routes[normalizedHost]; exists {
			return nil, fmt.Errorf("duplicate domain mapping detected for %s", normalizedHost)
		}
		if _, exists := registry.byName[site.Name]; exists {
			return nil, fmt.Errorf("duplicate site name %s", site.Name)
		}

		route, err := buildSiteRoute(cfg, site, store, fetcher, logger)
		if err != nil {
			return nil, err
		}

		registry.routes[normalizedHost] = route
		registry.byName[site.Name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据 Host 或 Host:port 查找 SiteRoute。
func (r *SiteRegistry) Lookup(host string) (*SiteRoute, bool) {
	if r == nil {
		return nil, false
	}

	normalizedHost, _ := normalizeHost(host)
	if normalizedHost == "" {
		return nil, false
	}

	route, ok := r.routes[normalizedHost]
	return route, ok
}

// ByName 根据站点名称查找 SiteRoute，供诊断接口使用。
func (r *SiteRegistry) ByName(name string) (*SiteRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.byName[strings.TrimSpace(name)]
	return route, ok
}

// List 返回按配置顺序排列的 SiteRoute。
func (r *SiteRegistry) List() []*SiteRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	return append([]*SiteRoute(nil), r.ordered...)
}

func buildSiteRoute(cfg *config.Config, site config.SiteConfig, store cache.Store, fetcher strategy.Fetcher, logger *logrus.Logger) (*SiteRoute, error) {
	originURL, err := url.Parse(site.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin for site %s: %w", site.Name, err)
	}

	storage, err := store.Partition(site.Name)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}

	pushClient, err := buildPushClient(site)
	if err != nil {
		return nil, err
	}

	entry := logging.SiteLogger(logger, site.Name, site.Domain)
	route := &SiteRoute{
		Config:       site,
		ListenPort:   cfg.Global.ListenPort,
		OriginURL:    originURL,
		Names:        cache.NewNames(site.CachePrefix, site.CacheVersion),
		Rules:        buildRules(site),
		Storage:      storage,
		Fetcher:      fetcher,
		Registration: worker.NewRegistration(site.Name, storage, fetcher, entry),
		Push:         pushClient,
		Logger:       entry,
	}
	route.OfflineURL = route.Resolve(site.OfflinePage)
	return route, nil
}

func buildRules(site config.SiteConfig) strategy.Rules {
	rules := strategy.DefaultRules()
	rules.APIPrefix = site.APIPrefix
	if len(site.StaticPathPrefixes) > 0 {
		rules.StaticPrefixes = append([]string(nil), site.StaticPathPrefixes...)
	}
	if len(site.StaticExtensions) > 0 {
		rules.StaticExtensions = append([]string(nil), site.StaticExtensions...)
	}
	return rules
}

// buildPushClient 合并文件配置与 SERAJ_<SITE>_PUSH_* 环境变量，均为空时返回 nil。
func buildPushClient(site config.SiteConfig) (*push.Client, error) {
	msg := site.Messaging
	pushCfg, err := push.ApplyEnv(site.Name, push.Config{
		APIKey:        msg.APIKey,
		AuthDomain:    msg.AuthDomain,
		ProjectID:     msg.ProjectID,
		StorageBucket: msg.StorageBucket,
		SenderID:      msg.SenderID,
		AppID:         msg.AppID,
		MeasurementID: msg.MeasurementID,
	})
	if err != nil {
		return nil, err
	}
	client, err := push.NewClient(site.Name, pushCfg)
	if errors.Is(err, push.ErrNotConfigured) {
		return nil, nil
	}
	return client, err
}

// Resolve 把站内路径解析为源站绝对地址，绝对地址原样返回。
func (r *SiteRoute) Resolve(ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil || parsed.IsAbs() || r.OriginURL == nil {
		return ref
	}
	return r.OriginURL.ResolveReference(parsed).String()
}

// Script 由当前配置生成 worker 版本描述。
func (r *SiteRoute) Script() worker.Script {
	assets := make([]string, 0, len(r.Config.StaticAssets))
	for _, asset := range r.Config.StaticAssets {
		assets = append(assets, r.Resolve(asset))
	}
	return worker.Script{
		Version:      r.Config.CacheVersion,
		Names:        r.Names,
		StaticAssets: assets,
		SkipWaiting:  r.Config.SkipWaitingEnabled(),
	}
}

// Router 返回绑定当前 controller 的策略路由；站点尚未被接管时返回 nil。
// 调用方在一次请求内持有返回值，即使期间发生激活也继续使用原 Bucket。
func (r *SiteRoute) Router(logger *logrus.Entry) *strategy.Router {
	controller := r.Registration.Controller()
	if controller == nil {
		return nil
	}
	if logger == nil {
		logger = r.Logger
	}
	return strategy.NewRouter(r.Rules, strategy.Env{
		Storage:    r.Storage,
		Fetcher:    r.Fetcher,
		Names:      controller.Names(),
		OfflineURL: r.OfflineURL,
		Logger:     logger,
	})
}

func normalizeDomain(domain string) string {
	host, _ := normalizeHost(domain)
	return host
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[idx+1:], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
