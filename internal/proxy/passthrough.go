package proxy

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/logging"
	"github.com/seraj-app/seraj-gateway/internal/server"
)

// SourcePassthrough 标记未经缓存策略、直接转发的响应。
const SourcePassthrough = "passthrough"

// Passthrough 将请求原样转发到源站并流式回写，不读写任何缓存。
// 用于尚未被 worker 接管的站点（install 失败或版本仍在 waiting）。
type Passthrough struct {
	client *http.Client
	logger *logrus.Logger
}

// NewPassthrough 使用共享 http.Client 构造透传处理器。
func NewPassthrough(client *http.Client, logger *logrus.Logger) *Passthrough {
	if client == nil {
		client = http.DefaultClient
	}
	return &Passthrough{client: client, logger: logger}
}

// Handle 实现 server.ProxyHandler。
func (p *Passthrough) Handle(c fiber.Ctx, route *server.SiteRoute) error {
	started := time.Now()
	requestID := server.RequestID(c)

	req, err := buildOriginRequest(c, route)
	if err != nil {
		setRequestIDHeader(c, requestID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logResult(route, req.URL.String(), requestID, 0, started, err)
		setRequestIDHeader(c, requestID)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream_failed"})
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	c.Set(HeaderSource, SourcePassthrough)
	setRequestIDHeader(c, requestID)
	c.Status(resp.StatusCode)

	if c.Method() == fiber.MethodHead {
		p.logResult(route, req.URL.String(), requestID, resp.StatusCode, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	p.logResult(route, req.URL.String(), requestID, resp.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

func (p *Passthrough) logResult(route *server.SiteRoute, target, requestID string, status int, started time.Time, err error) {
	if p.logger == nil {
		return
	}
	fields := logging.RequestFields(route.Config.Name, route.Config.Domain, "", SourcePassthrough, status, time.Since(started))
	fields["action"] = "passthrough"
	fields["url"] = target
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		p.logger.WithFields(fields).Error("passthrough_failed")
		return
	}
	p.logger.WithFields(fields).Info("passthrough_complete")
}
