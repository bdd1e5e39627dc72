package proxy

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/logging"
	"github.com/seraj-app/seraj-gateway/internal/server"
	"github.com/seraj-app/seraj-gateway/internal/strategy"
)

// 响应头：命中的策略与响应来源。
const (
	HeaderStrategy = "X-Seraj-Strategy"
	HeaderSource   = "X-Seraj-Source"
)

// Handler 负责受控站点的请求：还原源站请求 → 分类 → 执行策略 → 回写结果。
// 策略永远给出响应，因此这里只有请求本身无法解析时才会返回错误页。
type Handler struct {
	logger *logrus.Logger
}

// NewHandler constructs the controlled-site handler.
func NewHandler(logger *logrus.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle 实现 server.ProxyHandler。
func (h *Handler) Handle(c fiber.Ctx, route *server.SiteRoute) error {
	started := time.Now()
	requestID := server.RequestID(c)

	entry := route.Logger
	if entry == nil {
		entry = logging.SiteLogger(h.logger, route.Config.Name, route.Config.Domain)
	}
	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	router := route.Router(entry)
	if router == nil {
		setRequestIDHeader(c, requestID)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "worker_inactive"})
	}

	req, err := buildOriginRequest(c, route)
	if err != nil {
		entry.WithError(err).Warn("invalid_request")
		setRequestIDHeader(c, requestID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	result := router.Route(req.Context(), req)
	h.writeResult(c, result, requestID)
	h.logResult(entry, route, req.URL.String(), result, started)
	return nil
}

func (h *Handler) writeResult(c fiber.Ctx, result strategy.Result, requestID string) {
	resp := result.Response
	copyResponseHeaders(c, resp.Header)
	c.Set(HeaderStrategy, string(result.Kind))
	c.Set(HeaderSource, string(result.Source))
	setRequestIDHeader(c, requestID)
	c.Status(resp.Status)
	if c.Method() == fiber.MethodHead {
		return
	}
	c.Response().SetBodyRaw(resp.Body)
}

func (h *Handler) logResult(entry *logrus.Entry, route *server.SiteRoute, target string, result strategy.Result, started time.Time) {
	fields := logging.RequestFields(
		route.Config.Name,
		route.Config.Domain,
		string(result.Kind),
		string(result.Source),
		result.Response.Status,
		time.Since(started),
	)
	fields["action"] = "intercept"
	fields["url"] = target
	if result.FetchErr != nil {
		fields["fetch_error"] = result.FetchErr.Error()
	}
	entry.WithFields(fields).Info("request_complete")
}
