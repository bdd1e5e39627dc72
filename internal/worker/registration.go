package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seraj-app/seraj-gateway/internal/cache"
	"github.com/seraj-app/seraj-gateway/internal/strategy"
)

var (
	// ErrInstallFailed 表示预缓存未全部成功，该版本已变为 redundant。
	ErrInstallFailed = errors.New("worker install failed")
	// ErrUnknownMessage 表示控制消息无法识别。
	ErrUnknownMessage = errors.New("unknown worker message")
)

// Registration 对应单个站点的 worker 注册：持有 installing/waiting/active 三个槽位
// 以及当前控制客户端的版本。生命周期转换由 lifecycle 串行化，
// 请求路径只读 controller，不会被 install 阻塞。
type Registration struct {
	site    string
	storage cache.Storage
	fetcher strategy.Fetcher
	logger  *logrus.Entry

	lifecycle sync.Mutex

	mu         sync.RWMutex
	seq        int
	installing *Worker
	waiting    *Worker
	active     *Worker
	controller *Worker
}

// NewRegistration 创建空注册，logger 为 nil 时丢弃日志。
func NewRegistration(site string, storage cache.Storage, fetcher strategy.Fetcher, logger *logrus.Entry) *Registration {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = logrus.NewEntry(discard)
	}
	return &Registration{
		site:    site,
		storage: storage,
		fetcher: fetcher,
		logger:  logger.WithField("site", site),
	}
}

// Site 返回站点名称。
func (r *Registration) Site() string {
	return r.site
}

// Register 创建新版本并执行 install。install 失败时版本变为 redundant，
// 返回包装了 ErrInstallFailed 的错误，已有的 active 版本不受影响。
// Script.SkipWaiting 为 true 时 install 成功后立即激活，否则进入 waiting。
func (r *Registration) Register(ctx context.Context, script Script) (*Worker, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	r.seq++
	w := newWorker(r.seq, script)
	r.installing = w
	r.mu.Unlock()

	logger := r.logger.WithFields(logrus.Fields{"worker_id": w.id, "version": script.Version})
	if err := r.install(ctx, w); err != nil {
		w.setState(StateRedundant)
		r.mu.Lock()
		r.installing = nil
		r.mu.Unlock()
		logger.WithError(err).Error("worker_install_failed")
		return w, fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	w.setState(StateInstalled)
	r.mu.Lock()
	r.installing = nil
	if r.waiting != nil {
		r.waiting.setState(StateRedundant)
	}
	r.waiting = w
	r.mu.Unlock()
	logger.WithField("assets", len(script.StaticAssets)).Info("worker_installed")

	if script.SkipWaiting {
		if err := r.promoteWaiting(ctx); err != nil {
			return w, err
		}
	}
	return w, nil
}

// install 打开静态 Bucket，并发拉取全部清单后一次性写入。
// 任一资源失败或非 2xx 时不写入任何条目；写入中途失败会回滚已写条目。
func (r *Registration) install(ctx context.Context, w *Worker) error {
	bucket, err := r.storage.Open(ctx, w.script.Names.Static)
	if err != nil {
		return fmt.Errorf("open static bucket: %w", err)
	}

	assets := w.script.StaticAssets
	requests := make([]*http.Request, len(assets))
	responses := make([]*cache.Response, len(assets))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			return fmt.Errorf("build request for %s: %w", asset, err)
		}
		requests[i] = req
		group.Go(func() error {
			resp, err := r.fetchFollowing(groupCtx, req.WithContext(groupCtx))
			if err != nil {
				return fmt.Errorf("fetch %s: %w", asset, err)
			}
			if !resp.OK() {
				return fmt.Errorf("fetch %s: unexpected status %d", asset, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, req := range requests {
		if err := bucket.Put(ctx, req, responses[i]); err != nil {
			for _, written := range requests[:i] {
				_, _ = bucket.Delete(ctx, written)
			}
			return fmt.Errorf("store %s: %w", req.URL, err)
		}
	}
	return nil
}

// maxInstallRedirects 与 net/http 默认客户端的跳转上限一致。
const maxInstallRedirects = 10

// fetchFollowing 拉取资源并跟随 3xx 跳转。上游客户端不跟随跳转，
// 而预缓存需要的是最终内容；结果仍以原始请求地址写入 Bucket。
func (r *Registration) fetchFollowing(ctx context.Context, req *http.Request) (*cache.Response, error) {
	current := req
	for hops := 0; ; hops++ {
		resp, err := r.fetcher.Fetch(ctx, current)
		if err != nil {
			return nil, err
		}
		if !isRedirect(resp.Status) {
			return resp, nil
		}
		location := resp.Header.Get("Location")
		if location == "" {
			return resp, nil
		}
		if hops >= maxInstallRedirects {
			return nil, fmt.Errorf("stopped after %d redirects", maxInstallRedirects)
		}
		next, err := current.URL.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("bad redirect location %q: %w", location, err)
		}
		current, err = http.NewRequestWithContext(ctx, http.MethodGet, next.String(), nil)
		if err != nil {
			return nil, err
		}
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// SkipWaiting 将 waiting 版本提升为 active；没有 waiting 版本时什么也不做。
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.promoteWaiting(ctx)
}

func (r *Registration) promoteWaiting(ctx context.Context) error {
	r.mu.RLock()
	w := r.waiting
	r.mu.RUnlock()
	if w == nil {
		return nil
	}
	return r.activate(ctx, w)
}

// activate 清理不在当前允许列表中的 Bucket，然后认领客户端。
func (r *Registration) activate(ctx context.Context, w *Worker) error {
	w.setState(StateActivating)
	logger := r.logger.WithFields(logrus.Fields{"worker_id": w.id, "version": w.script.Version})

	removed, err := r.sweep(ctx, w.script.Names)
	if err != nil {
		// 清理失败不阻止激活，残留 Bucket 留给下一次激活。
		logger.WithError(err).Warn("cache_sweep_failed")
	}

	w.setState(StateActivated)
	r.mu.Lock()
	previous := r.active
	r.waiting = nil
	r.active = w
	r.controller = w
	r.mu.Unlock()
	if previous != nil && previous != w {
		previous.setState(StateRedundant)
	}

	logger.WithField("removed_buckets", removed).Info("worker_activated")
	return nil
}

func (r *Registration) sweep(ctx context.Context, names cache.Names) ([]string, error) {
	existing, err := r.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	var removed []string
	for _, name := range existing {
		if names.Allowed(name) {
			continue
		}
		if _, err := r.storage.Delete(ctx, name); err != nil {
			return removed, fmt.Errorf("delete bucket %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// Controller 返回当前控制客户端的版本，未激活时为 nil。
func (r *Registration) Controller() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.controller
}

// Waiting 返回等待激活的版本。
func (r *Registration) Waiting() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

// Snapshot 返回各槽位状态。
func (r *Registration) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Installing: r.installing.info(),
		Waiting:    r.waiting.info(),
		Active:     r.active.info(),
		Controlled: r.controller != nil,
	}
}
