package proxy

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/logging"
	"github.com/seraj-app/seraj-gateway/internal/server"
)

// Forwarder 根据站点是否已被 worker 接管，在受控 handler 与透传 handler 之间选择，
// 并把 handler 内的 panic 转换为 500 JSON。
type Forwarder struct {
	controlled  server.ProxyHandler
	passthrough server.ProxyHandler
	logger      *logrus.Logger
}

// NewForwarder 创建 Forwarder；任一 handler 为空时对应请求返回 500。
func NewForwarder(controlled, passthrough server.ProxyHandler, logger *logrus.Logger) *Forwarder {
	return &Forwarder{
		controlled:  controlled,
		passthrough: passthrough,
		logger:      logger,
	}
}

// Handle 实现 server.ProxyHandler。
func (f *Forwarder) Handle(c fiber.Ctx, route *server.SiteRoute) error {
	requestID := server.RequestID(c)
	handler := f.lookup(route)
	if handler == nil {
		f.logHandlerError(route, "handler_missing", nil, requestID)
		setRequestIDHeader(c, requestID)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "handler_missing"})
	}
	return f.invokeHandler(c, route, handler, requestID)
}

func (f *Forwarder) lookup(route *server.SiteRoute) server.ProxyHandler {
	if route != nil && route.Registration != nil && route.Registration.Controller() != nil {
		return f.controlled
	}
	return f.passthrough
}

func (f *Forwarder) invokeHandler(c fiber.Ctx, route *server.SiteRoute, handler server.ProxyHandler, requestID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f.logHandlerError(route, "handler_panic", fmt.Errorf("panic: %v", r), requestID)
			setRequestIDHeader(c, requestID)
			err = c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "handler_panic"})
		}
	}()
	return handler.Handle(c, route)
}

func (f *Forwarder) logHandlerError(route *server.SiteRoute, code string, err error, requestID string) {
	if f.logger == nil {
		return
	}
	fields := logrus.Fields{"site": "", "domain": ""}
	if route != nil {
		fields = logging.SiteFields(route.Config.Name, route.Config.Domain)
	}
	fields["action"] = "proxy"
	fields["error"] = code
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		f.logger.WithFields(fields).Error(err.Error())
		return
	}
	f.logger.WithFields(fields).Error("proxy handler unavailable")
}
