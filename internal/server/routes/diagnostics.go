package routes

import (
	"crypto/subtle"
	"errors"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/seraj-app/seraj-gateway/internal/cache"
	"github.com/seraj-app/seraj-gateway/internal/server"
	"github.com/seraj-app/seraj-gateway/internal/strategy"
	"github.com/seraj-app/seraj-gateway/internal/worker"
)

// DiagnosticsOptions 配置诊断接口。
type DiagnosticsOptions struct {
	// AdminToken 为空时 DELETE/POST 接口一律返回 403。
	AdminToken string
}

// RegisterDiagnosticsRoutes 暴露 /-/ 诊断接口：策略表、站点状态、缓存内容与 worker 控制。
// 只读接口对所有 Host 开放；修改状态的接口要求 Authorization: Bearer <AdminToken>。
func RegisterDiagnosticsRoutes(app *fiber.App, registry *server.SiteRegistry, opts DiagnosticsOptions) {
	if app == nil || registry == nil {
		return
	}
	admin := requireAdmin(opts.AdminToken)

	app.Get("/-/strategies", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"strategies": encodeStrategies(strategy.List())})
	})

	app.Get("/-/sites", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"sites": encodeSites(registry.List())})
	})

	app.Get("/-/sites/:name/caches", func(c fiber.Ctx) error {
		route, ok := registry.ByName(c.Params("name"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "site_not_found")
		}
		buckets, err := listBuckets(c, route.Storage)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "cache_list_failed")
		}
		return c.JSON(fiber.Map{"site": route.Config.Name, "buckets": buckets})
	})

	app.Delete("/-/sites/:name/caches/:bucket", admin, func(c fiber.Ctx) error {
		route, ok := registry.ByName(c.Params("name"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "site_not_found")
		}
		deleted, err := route.Storage.Delete(c.Context(), c.Params("bucket"))
		switch {
		case err != nil:
			return writeError(c, fiber.StatusInternalServerError, "cache_delete_failed")
		case !deleted:
			return writeError(c, fiber.StatusNotFound, "bucket_not_found")
		}
		route.Logger.WithField("bucket", c.Params("bucket")).Info("bucket_deleted")
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/-/sites/:name/worker/message", admin, func(c fiber.Ctx) error {
		route, ok := registry.ByName(c.Params("name"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "site_not_found")
		}
		if err := route.Registration.PostMessage(c.Context(), c.Body()); err != nil {
			if errors.Is(err, worker.ErrUnknownMessage) {
				return writeError(c, fiber.StatusBadRequest, "unknown_message")
			}
			return writeError(c, fiber.StatusInternalServerError, "message_failed")
		}
		return c.JSON(route.Registration.Snapshot())
	})

	app.Post("/-/sites/:name/worker/update", admin, func(c fiber.Ctx) error {
		route, ok := registry.ByName(c.Params("name"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "site_not_found")
		}
		if _, err := route.Update(c.Context()); err != nil {
			if errors.Is(err, worker.ErrInstallFailed) {
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error":  "install_failed",
					"detail": err.Error(),
					"worker": route.Registration.Snapshot(),
				})
			}
			return writeError(c, fiber.StatusInternalServerError, "update_failed")
		}
		return c.JSON(route.Registration.Snapshot())
	})

	app.Get("/-/sites/:name/messaging", func(c fiber.Ctx) error {
		route, ok := registry.ByName(c.Params("name"))
		if !ok {
			return writeError(c, fiber.StatusNotFound, "site_not_found")
		}
		if route.Push == nil {
			return writeError(c, fiber.StatusNotFound, "messaging_disabled")
		}
		return c.JSON(route.Push.WebConfig())
	})
}

// requireAdmin 校验 Bearer token：缺失返回 401，不匹配或未配置返回 403。
func requireAdmin(token string) fiber.Handler {
	expected := []byte(token)
	return func(c fiber.Ctx) error {
		if len(expected) == 0 {
			return writeError(c, fiber.StatusForbidden, "admin_disabled")
		}
		raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		scheme, provided, ok := strings.Cut(raw, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(provided) == "" {
			c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="seraj-gateway"`)
			return writeError(c, fiber.StatusUnauthorized, "admin_unauthorized")
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), expected) != 1 {
			return writeError(c, fiber.StatusForbidden, "admin_forbidden")
		}
		return c.Next()
	}
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

type strategyPayload struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Order       string `json:"order"`
	WriteBucket string `json:"write_bucket,omitempty"`
}

type sitePayload struct {
	Name        string          `json:"name"`
	Domain      string          `json:"domain"`
	Origin      string          `json:"origin"`
	Buckets     []string        `json:"buckets"`
	OfflinePage string          `json:"offline_page"`
	APIPrefix   string          `json:"api_prefix"`
	Assets      int             `json:"static_assets"`
	Messaging   bool            `json:"messaging"`
	Worker      worker.Snapshot `json:"worker"`
}

type bucketPayload struct {
	Name    string   `json:"name"`
	Entries []string `json:"entries"`
}

func encodeStrategies(list []strategy.Descriptor) []strategyPayload {
	if len(list) == 0 {
		return nil
	}
	result := make([]strategyPayload, 0, len(list))
	for _, desc := range list {
		result = append(result, strategyPayload{
			Kind:        string(desc.Kind),
			Description: desc.Description,
			Order:       string(desc.Order),
			WriteBucket: string(desc.WriteBucket),
		})
	}
	return result
}

func encodeSites(routes []*server.SiteRoute) []sitePayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]sitePayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, sitePayload{
			Name:        route.Config.Name,
			Domain:      route.Config.Domain,
			Origin:      route.OriginURL.String(),
			Buckets:     route.Names.AllowList(),
			OfflinePage: route.OfflineURL,
			APIPrefix:   route.Rules.APIPrefix,
			Assets:      len(route.Config.StaticAssets),
			Messaging:   route.Push != nil,
			Worker:      route.Registration.Snapshot(),
		})
	}
	return result
}

func listBuckets(c fiber.Ctx, storage cache.Storage) ([]bucketPayload, error) {
	ctx := c.Context()
	names, err := storage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]bucketPayload, 0, len(names))
	for _, name := range names {
		bucket, err := storage.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		entries, err := bucket.Keys(ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, bucketPayload{Name: name, Entries: entries})
	}
	return result, nil
}
