package strategy

import (
	"net/http"
	"path"
	"strings"
)

// Kind 是请求分类结果，决定使用哪条缓存策略。
type Kind string

const (
	KindAPI        Kind = "api"
	KindStatic     Kind = "static"
	KindNavigation Kind = "navigation"
	KindOther      Kind = "other"
)

// Rules 描述站点的分类规则。
type Rules struct {
	APIPrefix        string
	StaticPrefixes   []string
	StaticExtensions []string
}

// DefaultRules 返回应用默认的 API 前缀与静态资源匹配集合。
func DefaultRules() Rules {
	return Rules{
		APIPrefix:      "/api/",
		StaticPrefixes: []string{"/static/"},
		StaticExtensions: []string{
			".css", ".js",
			".png", ".jpg", ".jpeg", ".gif", ".svg",
			".woff", ".woff2", ".ttf",
		},
	}
}

// Classify 依次检查 API 前缀、静态资源、导航请求，顺序不可调换：
// API 路径即使带有静态扩展名也必须走 API 策略。
func Classify(rules Rules, req *http.Request) Kind {
	p := "/"
	if req != nil && req.URL != nil && req.URL.Path != "" {
		p = req.URL.Path
	}

	if rules.APIPrefix != "" && strings.HasPrefix(p, rules.APIPrefix) {
		return KindAPI
	}
	if rules.isStatic(p) {
		return KindStatic
	}
	if IsNavigation(req) {
		return KindNavigation
	}
	return KindOther
}

func (r Rules) isStatic(p string) bool {
	for _, prefix := range r.StaticPrefixes {
		if prefix != "" && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, candidate := range r.StaticExtensions {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}

// IsNavigation 判断请求是否是加载整页文档。优先使用 Sec-Fetch-Mode/Sec-Fetch-Dest，
// 客户端未发送 Fetch Metadata 时退回 GET + Accept: text/html。
func IsNavigation(req *http.Request) bool {
	if req == nil {
		return false
	}
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return strings.EqualFold(mode, "navigate")
	}
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return strings.EqualFold(dest, "document")
	}
	if req.Method != http.MethodGet && req.Method != "" {
		return false
	}
	return strings.Contains(strings.ToLower(req.Header.Get("Accept")), "text/html")
}
