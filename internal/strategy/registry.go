package strategy

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Order 描述策略先查网络还是先查缓存，供诊断端展示。
type Order string

const (
	OrderNetworkFirst Order = "network-first"
	OrderCacheFirst   Order = "cache-first"
)

// BucketRole 表示策略写入哪个 Bucket。
type BucketRole string

const (
	BucketNone    BucketRole = ""
	BucketStatic  BucketRole = "static"
	BucketDynamic BucketRole = "dynamic"
	BucketAPI     BucketRole = "api"
)

// Handler 是单条策略的实现：Env × Request → Result。
type Handler func(ctx context.Context, env Env, req *http.Request) Result

// Descriptor 记录一条策略的静态信息与实现，供 Router 与诊断端使用。
type Descriptor struct {
	Kind        Kind
	Description string
	Order       Order
	WriteBucket BucketRole
	Handle      Handler
}

var globalRegistry = newRegistry()

type registry struct {
	mu         sync.RWMutex
	strategies map[Kind]Descriptor
}

func newRegistry() *registry {
	return &registry{strategies: make(map[Kind]Descriptor)}
}

// Register 将策略加入全局注册表，重复 Kind 会返回错误。
func Register(desc Descriptor) error {
	return globalRegistry.register(desc)
}

// MustRegister 在注册失败时 panic，适合策略文件 init() 中调用。
func MustRegister(desc Descriptor) {
	if err := Register(desc); err != nil {
		panic(err)
	}
}

// Resolve 返回指定 Kind 的策略。
func Resolve(kind Kind) (Descriptor, bool) {
	return globalRegistry.resolve(kind)
}

// List 返回按 Kind 排序的策略列表。
func List() []Descriptor {
	return globalRegistry.list()
}

func (r *registry) register(desc Descriptor) error {
	kind := Kind(strings.ToLower(strings.TrimSpace(string(desc.Kind))))
	if kind == "" {
		return fmt.Errorf("strategy kind is required")
	}
	if desc.Handle == nil {
		return fmt.Errorf("strategy %s has no handler", kind)
	}
	desc.Kind = kind

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[kind]; exists {
		return fmt.Errorf("strategy %s already registered", kind)
	}
	r.strategies[kind] = desc
	return nil
}

func (r *registry) resolve(kind Kind) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.strategies[kind]
	return desc, ok
}

func (r *registry) list() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.strategies) == 0 {
		return nil
	}
	result := make([]Descriptor, 0, len(r.strategies))
	for _, desc := range r.strategies {
		result = append(result, desc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}
