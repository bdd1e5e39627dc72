package strategy

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		want    Kind
	}{
		{"api prefix", http.MethodGet, "/api/events/upcoming", nil, KindAPI},
		{"api with static extension", http.MethodGet, "/api/export/report.js", nil, KindAPI},
		{"api navigation", http.MethodGet, "/api/user/stats", map[string]string{"Sec-Fetch-Mode": "navigate"}, KindAPI},
		{"static prefix", http.MethodGet, "/static/data/verses", nil, KindStatic},
		{"static extension", http.MethodGet, "/assets/app.CSS", nil, KindStatic},
		{"font", http.MethodGet, "/fonts/fa-solid-900.woff2", nil, KindStatic},
		{"json is not js", http.MethodGet, "/data/feed.json", nil, KindOther},
		{"query does not count", http.MethodGet, "/download?file=a.js", nil, KindOther},
		{"navigate mode", http.MethodGet, "/events", map[string]string{"Sec-Fetch-Mode": "navigate"}, KindNavigation},
		{"cors mode wins over accept", http.MethodGet, "/events", map[string]string{"Sec-Fetch-Mode": "cors", "Accept": "text/html"}, KindOther},
		{"document dest", http.MethodGet, "/profile", map[string]string{"Sec-Fetch-Dest": "document"}, KindNavigation},
		{"html accept fallback", http.MethodGet, "/", map[string]string{"Accept": "text/html,application/xhtml+xml"}, KindNavigation},
		{"post html accept", http.MethodPost, "/auth/login", map[string]string{"Accept": "text/html"}, KindOther},
		{"plain fetch", http.MethodGet, "/sitemap", nil, KindOther},
	}

	rules := DefaultRules()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "http://app.local"+tc.target, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := Classify(rules, req); got != tc.want {
				t.Fatalf("Classify(%s) = %s, want %s", tc.target, got, tc.want)
			}
		})
	}
}

func TestClassifyWithoutAPIPrefix(t *testing.T) {
	rules := DefaultRules()
	rules.APIPrefix = ""
	req := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	if got := Classify(rules, req); got != KindOther {
		t.Fatalf("empty API prefix should disable api routing, got %s", got)
	}
}
