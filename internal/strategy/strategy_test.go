package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/seraj-app/seraj-gateway/internal/cache"
)

var errUnreachable = errors.New("dial tcp: connection refused")

func TestAPINetworkSuccessWritesThrough(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respond(http.StatusOK, `{"events":[1,2]}`)

	req := httptest.NewRequest(http.MethodGet, "http://app.local/api/events/upcoming", nil)
	result := HandleAPI(context.Background(), env, req)

	if result.Source != SourceNetwork {
		t.Fatalf("expected network source, got %s", result.Source)
	}
	if string(result.Response.Body) != `{"events":[1,2]}` {
		t.Fatalf("live response should be returned unchanged: %s", result.Response.Body)
	}
	cached := mustMatchBucket(t, env, env.Names.API, req)
	if !bytes.Equal(cached.Body, result.Response.Body) {
		t.Fatalf("api bucket should contain the network response")
	}
}

func TestAPINetworkFailureUsesCache(t *testing.T) {
	env, fetcher := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	putBucket(t, env, env.Names.API, req, `{"points":10}`)
	fetcher.fail(errUnreachable)

	result := HandleAPI(context.Background(), env, req)
	if result.Source != SourceCache {
		t.Fatalf("expected cache source, got %s", result.Source)
	}
	if string(result.Response.Body) != `{"points":10}` {
		t.Fatalf("cached entry should be returned: %s", result.Response.Body)
	}
}

func TestAPINetworkFailureWithoutCacheSynthesizesJSON(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.fail(errUnreachable)
	req := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)

	result := HandleAPI(context.Background(), env, req)
	if result.Source != SourceSynthesized {
		t.Fatalf("expected synthesized source, got %s", result.Source)
	}
	if result.Response.Status != http.StatusServiceUnavailable {
		t.Fatalf("offline payload should carry 503, got %d", result.Response.Status)
	}
	var payload OfflinePayload
	if err := json.Unmarshal(result.Response.Body, &payload); err != nil {
		t.Fatalf("body should be valid JSON: %v", err)
	}
	if payload.Error != ErrorCodeOffline || payload.Message != MessageOffline {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if ct := result.Response.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %s", ct)
	}
	if !errors.Is(result.FetchErr, errUnreachable) {
		t.Fatalf("fetch error should be kept for logging: %v", result.FetchErr)
	}
}

func TestAPIUpstreamErrorFallsBack(t *testing.T) {
	env, fetcher := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	fetcher.respond(http.StatusInternalServerError, "boom")

	result := HandleAPI(context.Background(), env, req)
	if result.Response.Status != http.StatusBadGateway {
		t.Fatalf("no-cache payload should carry 502, got %d", result.Response.Status)
	}
	var payload OfflinePayload
	if err := json.Unmarshal(result.Response.Body, &payload); err != nil || payload.Error != ErrorCodeNoCache {
		t.Fatalf("unexpected payload %s (%v)", result.Response.Body, err)
	}
	if _, err := matchBucket(env, env.Names.API, req); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("non-ok response must not be cached, got %v", err)
	}

	putBucket(t, env, env.Names.API, req, `{"points":3}`)
	result = HandleAPI(context.Background(), env, req)
	if result.Source != SourceCache || string(result.Response.Body) != `{"points":3}` {
		t.Fatalf("upstream error should fall back to cache, got %s %s", result.Source, result.Response.Body)
	}
}

func TestAPIPrivateResponseIsNotSharedAcrossClients(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respondWith(http.StatusOK, `{"user":"alice","points":99}`, http.Header{
		"Cache-Control": []string{"private, no-store"},
		"Set-Cookie":    []string{"session=ALICE; HttpOnly"},
	})

	alice := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	alice.Header.Set("Authorization", "Bearer alice")
	result := HandleAPI(context.Background(), env, alice)
	if result.Source != SourceNetwork || result.Response.Header.Get("Set-Cookie") == "" {
		t.Fatalf("live response should reach its own client unchanged: %s %v", result.Source, result.Response.Header)
	}

	fetcher.fail(errUnreachable)
	bob := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	bob.Header.Set("Authorization", "Bearer bob")
	result = HandleAPI(context.Background(), env, bob)
	if result.Source != SourceSynthesized {
		t.Fatalf("another client must not receive the private response, got %s %s", result.Source, result.Response.Body)
	}
	if result.Response.Header.Get("Set-Cookie") != "" {
		t.Fatalf("session cookie leaked: %v", result.Response.Header)
	}
}

func TestAPICredentialedResponsesMatchOnlyTheirClient(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respondWith(http.StatusOK, `{"user":"alice"}`, http.Header{"Cache-Control": []string{"public, max-age=60"}})

	alice := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	alice.Header.Set("Authorization", "Bearer alice")
	HandleAPI(context.Background(), env, alice)

	fetcher.fail(errUnreachable)
	result := HandleAPI(context.Background(), env, alice)
	if result.Source != SourceCache || string(result.Response.Body) != `{"user":"alice"}` {
		t.Fatalf("same credentials should hit the cache, got %s %s", result.Source, result.Response.Body)
	}

	bob := httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil)
	bob.Header.Set("Authorization", "Bearer bob")
	result = HandleAPI(context.Background(), env, bob)
	if result.Source != SourceSynthesized {
		t.Fatalf("different credentials must miss, got %s %s", result.Source, result.Response.Body)
	}
}

func TestNavigationWithSetCookieIsNotCached(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respondWith(http.StatusOK, "<html>alice</html>", http.Header{"Set-Cookie": []string{"session=ALICE"}})
	req := navigationRequest("http://app.local/profile")

	HandleNavigation(context.Background(), env, req)
	if _, err := matchBucket(env, env.Names.Dynamic, req); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("response with Set-Cookie must not be stored, got %v", err)
	}
}

func TestAPINonGETUpstreamErrorPassesThrough(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respond(http.StatusUnprocessableEntity, `{"error":"invalid"}`)
	req := httptest.NewRequest(http.MethodPost, "http://app.local/api/events/register", nil)

	result := HandleAPI(context.Background(), env, req)
	if result.Source != SourceNetwork || result.Response.Status != http.StatusUnprocessableEntity {
		t.Fatalf("POST errors should pass through, got %s %d", result.Source, result.Response.Status)
	}
}

func TestStaticCacheHitSkipsNetwork(t *testing.T) {
	env, fetcher := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "http://app.local/static/css/tailwind.css", nil)
	putBucket(t, env, env.Names.Static, req, "body{}")

	result := HandleStatic(context.Background(), env, req)
	if fetcher.calls() != 0 {
		t.Fatalf("cache hit must not touch the network, got %d calls", fetcher.calls())
	}
	if result.Source != SourceCache || string(result.Response.Body) != "body{}" {
		t.Fatalf("cached entry should be returned byte-identical: %s", result.Response.Body)
	}
}

func TestStaticMissFetchesAndStoresDynamic(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respond(http.StatusOK, "png-bytes")
	req := httptest.NewRequest(http.MethodGet, "http://app.local/static/logo/512.png", nil)

	result := HandleStatic(context.Background(), env, req)
	if result.Source != SourceNetwork {
		t.Fatalf("expected network source, got %s", result.Source)
	}
	mustMatchBucket(t, env, env.Names.Dynamic, req)
}

func TestStaticNonOKReturnedButNotStored(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respond(http.StatusNotFound, "missing")
	req := httptest.NewRequest(http.MethodGet, "http://app.local/static/missing.js", nil)

	result := HandleStatic(context.Background(), env, req)
	if result.Response.Status != http.StatusNotFound || result.Source != SourceNetwork {
		t.Fatalf("non-ok network response should be returned as-is")
	}
	if _, err := matchBucket(env, env.Names.Dynamic, req); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("non-ok response must not be cached")
	}
}

func TestStaticNetworkFailureReturns404(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.fail(errUnreachable)
	req := httptest.NewRequest(http.MethodGet, "http://app.local/static/js/other.js", nil)

	result := HandleStatic(context.Background(), env, req)
	if result.Response.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", result.Response.Status)
	}
	if string(result.Response.Body) != MessageStaticMissing {
		t.Fatalf("unexpected body %s", result.Response.Body)
	}
}

func TestNavigationNetworkSuccessWritesDynamic(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respond(http.StatusOK, "<html>events</html>")
	req := navigationRequest("http://app.local/events")

	result := HandleNavigation(context.Background(), env, req)
	if result.Source != SourceNetwork {
		t.Fatalf("expected network source, got %s", result.Source)
	}
	mustMatchBucket(t, env, env.Names.Dynamic, req)
}

func TestNavigationOfflineUsesExactCacheThenOfflinePage(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.fail(errUnreachable)
	offlineReq := httptest.NewRequest(http.MethodGet, env.OfflineURL, nil)
	putBucket(t, env, env.Names.Static, offlineReq, "<html>offline</html>")

	cachedReq := navigationRequest("http://app.local/events")
	putBucket(t, env, env.Names.Dynamic, cachedReq, "<html>cached events</html>")

	result := HandleNavigation(context.Background(), env, cachedReq)
	if result.Source != SourceCache || string(result.Response.Body) != "<html>cached events</html>" {
		t.Fatalf("exact cached page should win, got %s %s", result.Source, result.Response.Body)
	}

	result = HandleNavigation(context.Background(), env, navigationRequest("http://app.local/profile"))
	if result.Source != SourceOfflinePage {
		t.Fatalf("expected offline page, got %s", result.Source)
	}
	if string(result.Response.Body) != "<html>offline</html>" {
		t.Fatalf("offline page content mismatch: %s", result.Response.Body)
	}
}

func TestNavigationOfflineWithoutOfflinePage(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.fail(errUnreachable)

	result := HandleNavigation(context.Background(), env, navigationRequest("http://app.local/profile"))
	if result.Response.Status != http.StatusServiceUnavailable || result.Source != SourceSynthesized {
		t.Fatalf("expected synthesized 503, got %d %s", result.Response.Status, result.Source)
	}
}

func TestNavigationUpstreamError(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.respond(http.StatusInternalServerError, "<html>500</html>")
	req := navigationRequest("http://app.local/events")

	result := HandleNavigation(context.Background(), env, req)
	if result.Source != SourceNetwork || result.Response.Status != http.StatusInternalServerError {
		t.Fatalf("live error page expected without cache, got %s %d", result.Source, result.Response.Status)
	}
	if _, err := matchBucket(env, env.Names.Dynamic, req); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("non-ok navigation response must not be cached")
	}

	putBucket(t, env, env.Names.Dynamic, req, "<html>good</html>")
	result = HandleNavigation(context.Background(), env, req)
	if result.Source != SourceCache {
		t.Fatalf("cached page should replace upstream error, got %s", result.Source)
	}
}

func TestFallbackStrategy(t *testing.T) {
	env, fetcher := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "http://app.local/manifest.webmanifest", nil)

	fetcher.respond(http.StatusOK, "{}")
	result := HandleFallback(context.Background(), env, req)
	if result.Source != SourceNetwork {
		t.Fatalf("expected network source, got %s", result.Source)
	}
	if _, err := env.Storage.Match(context.Background(), req); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("fallback strategy must not write caches")
	}

	fetcher.fail(errUnreachable)
	result = HandleFallback(context.Background(), env, req)
	if result.Response.Status != http.StatusNotFound || string(result.Response.Body) != MessageRequestFailed {
		t.Fatalf("double failure should return fixed 404, got %d %s", result.Response.Status, result.Response.Body)
	}

	putBucket(t, env, env.Names.Dynamic, req, `{"name":"seraj"}`)
	calls := fetcher.calls()
	result = HandleFallback(context.Background(), env, req)
	if result.Source != SourceCache || fetcher.calls() != calls {
		t.Fatalf("cache hit should short-circuit network")
	}
}

func TestRouterDispatchesByKind(t *testing.T) {
	env, fetcher := newTestEnv(t)
	fetcher.fail(errUnreachable)
	router := NewRouter(DefaultRules(), env)

	result := router.Route(context.Background(), httptest.NewRequest(http.MethodGet, "http://app.local/api/user/stats", nil))
	if result.Kind != KindAPI || result.Response.Status != http.StatusServiceUnavailable {
		t.Fatalf("api route mismatch: %s %d", result.Kind, result.Response.Status)
	}

	result = router.Route(context.Background(), httptest.NewRequest(http.MethodGet, "http://app.local/static/js/main.js", nil))
	if result.Kind != KindStatic || result.Response.Status != http.StatusNotFound {
		t.Fatalf("static route mismatch: %s %d", result.Kind, result.Response.Status)
	}

	result = router.Route(context.Background(), navigationRequest("http://app.local/"))
	if result.Kind != KindNavigation {
		t.Fatalf("navigation route mismatch: %s", result.Kind)
	}

	result = router.Route(context.Background(), httptest.NewRequest(http.MethodGet, "http://app.local/feed", nil))
	if result.Kind != KindOther {
		t.Fatalf("other route mismatch: %s", result.Kind)
	}
}

func TestRegistryListsAllKinds(t *testing.T) {
	list := List()
	if len(list) != 4 {
		t.Fatalf("expected 4 strategies, got %d", len(list))
	}
	for _, kind := range []Kind{KindAPI, KindStatic, KindNavigation, KindOther} {
		if _, ok := Resolve(kind); !ok {
			t.Fatalf("strategy %s not registered", kind)
		}
	}
	if err := Register(Descriptor{Kind: KindAPI, Handle: HandleAPI}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
}

type fakeFetcher struct {
	mu     sync.Mutex
	status int
	body   string
	header http.Header
	err    error
	count  int
}

func (f *fakeFetcher) respond(status int, body string) {
	f.respondWith(status, body, nil)
}

func (f *fakeFetcher) respondWith(status int, body string, header http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body, f.header, f.err = status, body, header, nil
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *http.Request) (*cache.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.err != nil {
		return nil, f.err
	}
	header := http.Header{"Content-Type": []string{"text/plain"}}
	for key, values := range f.header {
		header[key] = append([]string(nil), values...)
	}
	return &cache.Response{
		Status: f.status,
		Header: header,
		Body:   []byte(f.body),
		URL:    req.URL.String(),
	}, nil
}

func newTestEnv(t *testing.T) (Env, *fakeFetcher) {
	t.Helper()
	store, err := cache.NewStore(cache.DriverFS, t.TempDir())
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	storage, err := store.Partition("seraj")
	if err != nil {
		t.Fatalf("partition error: %v", err)
	}
	names := cache.NewNames("seraj", "v2")
	for _, name := range names.AllowList() {
		if _, err := storage.Open(context.Background(), name); err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
	}
	fetcher := &fakeFetcher{status: http.StatusOK}
	return Env{
		Storage:    storage,
		Fetcher:    fetcher,
		Names:      names,
		OfflineURL: "http://app.local/offline",
	}, fetcher
}

func navigationRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	return req
}

func putBucket(t *testing.T, env Env, name string, req *http.Request, body string) {
	t.Helper()
	bucket, err := env.Storage.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	if err := bucket.Put(context.Background(), req, &cache.Response{Status: 200, Body: []byte(body)}); err != nil {
		t.Fatalf("put error: %v", err)
	}
}

func matchBucket(env Env, name string, req *http.Request) (*cache.Response, error) {
	bucket, err := env.Storage.Open(context.Background(), name)
	if err != nil {
		return nil, err
	}
	return bucket.Match(context.Background(), req)
}

func mustMatchBucket(t *testing.T, env Env, name string, req *http.Request) *cache.Response {
	t.Helper()
	resp, err := matchBucket(env, name, req)
	if err != nil {
		t.Fatalf("expected entry in %s: %v", name, err)
	}
	return resp
}
