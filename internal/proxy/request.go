package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/gofiber/fiber/v3"

	"github.com/seraj-app/seraj-gateway/internal/server"
)

// buildOriginRequest 把入站 Fiber 请求还原为指向源站的 *http.Request。
// 请求 URL 即缓存身份，与 install 阶段解析出的资源地址一致。
func buildOriginRequest(c fiber.Ctx, route *server.SiteRoute) (*http.Request, error) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	target := resolveOriginURL(route, c)
	req, err := http.NewRequestWithContext(ctx, c.Method(), target.String(), bytesReader(c.Body()))
	if err != nil {
		return nil, err
	}

	server.CopyHeaders(req.Header, fiberHeadersAsHTTP(c))
	// 响应体会被完整读入并可能写入缓存，只接受未压缩内容。
	req.Header.Del("Accept-Encoding")
	req.Header.Del("Content-Length")
	req.Host = target.Host
	req.Header.Set("Host", target.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	req.Header.Set("X-Forwarded-Port", routePort(route))
	return req, nil
}

func resolveOriginURL(route *server.SiteRoute, c fiber.Ctx) *url.URL {
	uri := c.Request().URI()
	clean := normalizeRequestPath(string(uri.Path()))
	relative := &url.URL{Path: clean}
	if query := uri.QueryString(); len(query) > 0 {
		relative.RawQuery = string(query)
	}
	return route.OriginURL.ResolveReference(relative)
}

func normalizeRequestPath(raw string) string {
	if raw == "" {
		raw = "/"
	}
	clean := path.Clean("/" + raw)
	// path.Clean 会去掉目录结尾的斜杠，/events/ 与 /events 在源站上可能不同。
	if len(raw) > 1 && raw[len(raw)-1] == '/' && clean != "/" {
		clean += "/"
	}
	return clean
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(append([]byte(nil), b...))
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// copyResponseHeaders 回写源站或缓存响应头，跳过 hop-by-hop 与由 Fiber 计算的长度。
func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for i, value := range values {
			if i == 0 {
				c.Set(key, value)
				continue
			}
			c.Response().Header.Add(key, value)
		}
	}
}

func routePort(route *server.SiteRoute) string {
	if route == nil || route.ListenPort <= 0 {
		return "0"
	}
	return fmt.Sprintf("%d", route.ListenPort)
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}
