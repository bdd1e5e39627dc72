package cache

import (
	"net/http"
	"strings"
)

// Shareable 判断网络响应能否写入被所有客户端共享的 Bucket。
// 以下情况不写入：携带 Set-Cookie；Cache-Control 含 private 或 no-store；
// 请求带 Authorization 且响应未声明 public。
func Shareable(req *http.Request, resp *Response) bool {
	if resp == nil {
		return false
	}
	if len(resp.Header.Values("Set-Cookie")) > 0 {
		return false
	}
	directives := cacheControl(resp.Header)
	if _, ok := directives["private"]; ok {
		return false
	}
	if _, ok := directives["no-store"]; ok {
		return false
	}
	if req != nil && req.Header.Get("Authorization") != "" {
		if _, ok := directives["public"]; !ok {
			return false
		}
	}
	return true
}

func cacheControl(header http.Header) map[string]struct{} {
	directives := make(map[string]struct{})
	for _, value := range header.Values("Cache-Control") {
		for _, part := range strings.Split(value, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(part), "=")
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				directives[name] = struct{}{}
			}
		}
	}
	return directives
}
