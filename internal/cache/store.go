package cache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Store 是整个网关共享的缓存根对象，按站点划分出互不可见的 Storage 分区。
type Store interface {
	// Partition 返回站点对应的 Cache Storage，同名站点多次调用得到同一份数据。
	Partition(site string) (Storage, error)

	// Close 释放底层资源（LevelDB 句柄等）。
	Close() error
}

// Storage 对应浏览器中一个 origin 的 CacheStorage：若干具名 Bucket 的集合。
type Storage interface {
	// Open 打开（必要时创建）指定名称的 Bucket。
	Open(ctx context.Context, name string) (Bucket, error)

	// Has 判断 Bucket 是否存在，不会隐式创建。
	Has(ctx context.Context, name string) (bool, error)

	// Delete 删除整个 Bucket，返回删除前是否存在。
	Delete(ctx context.Context, name string) (bool, error)

	// Keys 按创建顺序返回所有 Bucket 名称。
	Keys(ctx context.Context) ([]string, error)

	// Match 按 Bucket 创建顺序全局查找，返回第一个命中。未命中返回 ErrNotFound。
	Match(ctx context.Context, req *http.Request) (*Response, error)
}

// Bucket 是一个具名的请求 → 响应快照映射。
type Bucket interface {
	Name() string

	// Match 精确匹配请求（GET + URL，遵循 Vary）。未命中返回 ErrNotFound。
	Match(ctx context.Context, req *http.Request) (*Response, error)

	// Put 覆盖写入，最后一次写入生效。单条写入是原子的。
	Put(ctx context.Context, req *http.Request, resp *Response) error

	// Delete 删除请求对应的条目，返回删除前是否存在。
	Delete(ctx context.Context, req *http.Request) (bool, error)

	// Keys 按写入顺序返回条目对应的请求 URL。
	Keys(ctx context.Context) ([]string, error)
}

// Response 是存入 Bucket 或由网络返回的完整响应快照。
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	URL      string
	StoredAt time.Time
}

// OK 对应 Fetch API 的 response.ok（状态码 200-299）。
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Clone 深拷贝响应，写缓存与返回调用方各持一份，互不影响。
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Header = r.Header.Clone()
	if clone.Header == nil {
		clone.Header = http.Header{}
	}
	clone.Body = append([]byte(nil), r.Body...)
	return &clone
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrMethodNotAllowed 表示尝试写入非 GET 请求。
	ErrMethodNotAllowed = errors.New("only GET requests can be cached")
	// ErrVaryWildcard 表示响应携带 Vary: *，无法被缓存。
	ErrVaryWildcard = errors.New("response with Vary: * cannot be cached")
	// ErrInvalidName 表示 Bucket 或站点名称非法。
	ErrInvalidName = errors.New("invalid cache name")
)
