package strategy

import (
	"encoding/json"
	"net/http"

	"github.com/seraj-app/seraj-gateway/internal/cache"
)

// 合成响应的固定文案。
const (
	MessageOffline        = "You are offline"
	MessageOfflineNoCache = "You are offline and this data is not available in the cache"
	MessageStaticMissing  = "File not found in cache"
	MessageRequestFailed  = "Request failed"
	MessageOfflinePage    = "Offline page is not available"
)

// 合成 JSON 错误的 error 字段取值。
const (
	ErrorCodeOffline = "offline"
	ErrorCodeNoCache = "no_cache"
)

// OfflinePayload 是 API 策略合成响应的 JSON 结构。
type OfflinePayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func synthesizeJSON(status int, code, message string) *cache.Response {
	body, _ := json.Marshal(OfflinePayload{Error: code, Message: message})
	return &cache.Response{
		Status: status,
		Header: http.Header{
			"Content-Type":  []string{"application/json; charset=utf-8"},
			"Cache-Control": []string{"no-store"},
		},
		Body: body,
	}
}

func synthesizeText(status int, message string) *cache.Response {
	return &cache.Response{
		Status: status,
		Header: http.Header{
			"Content-Type":  []string{"text/plain; charset=utf-8"},
			"Cache-Control": []string{"no-store"},
		},
		Body: []byte(message),
	}
}

func networkResult(resp *cache.Response) Result {
	return Result{Response: resp, Source: SourceNetwork}
}

func cacheResult(resp *cache.Response) Result {
	return Result{Response: resp, Source: SourceCache}
}

func synthesizedResult(resp *cache.Response, fetchErr error) Result {
	return Result{Response: resp, Source: SourceSynthesized, FetchErr: fetchErr}
}
