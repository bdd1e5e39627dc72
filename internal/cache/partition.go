package cache

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// driver 抽象底层 KV 持久化，partition/bucket 负责请求语义与编码。
type driver interface {
	buckets(part string) ([]string, error)
	hasBucket(part, name string) (bool, error)
	createBucket(part, name string) error
	dropBucket(part, name string) (bool, error)
	get(part, bucket, key string) ([]byte, error)
	put(part, bucket, key string, value []byte) error
	del(part, bucket, key string) (bool, error)
	values(part, bucket string) ([][]byte, error)
	close() error
}

const (
	DriverFS      = "fs"
	DriverLevelDB = "leveldb"
)

// NewStore 以 basePath 为根目录构建缓存，整站复用一份实例。
func NewStore(driverName, basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	var drv driver
	switch strings.ToLower(strings.TrimSpace(driverName)) {
	case "", DriverFS:
		drv, err = newFSDriver(abs)
	case DriverLevelDB:
		drv, err = newLevelDBDriver(filepath.Join(abs, "leveldb"))
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driverName)
	}
	if err != nil {
		return nil, err
	}

	return &store{
		drv:   drv,
		parts: make(map[string]*partition),
	}, nil
}

type store struct {
	drv driver

	mu    sync.Mutex
	parts map[string]*partition
}

func (s *store) Partition(site string) (Storage, error) {
	if !validName(site) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, site)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[site]; ok {
		return p, nil
	}
	p := &partition{drv: s.drv, name: site}
	s.parts[site] = p
	return p, nil
}

func (s *store) Close() error {
	return s.drv.close()
}

// partition 串行化同一站点内的写操作；读操作不加锁，依赖底层单条写入的原子性。
type partition struct {
	drv  driver
	name string
	mu   sync.Mutex
}

func (p *partition) Open(ctx context.Context, name string) (Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.drv.createBucket(p.name, name); err != nil {
		return nil, err
	}
	return &bucket{part: p, name: name}, nil
}

func (p *partition) Has(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validName(name) {
		return false, nil
	}
	return p.drv.hasBucket(p.name, name)
}

func (p *partition) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validName(name) {
		return false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drv.dropBucket(p.name, name)
}

func (p *partition) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.drv.buckets(p.name)
}

func (p *partition) Match(ctx context.Context, req *http.Request) (*Response, error) {
	names, err := p.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		b := &bucket{part: p, name: name}
		resp, err := b.Match(ctx, req)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, ErrNotFound):
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrNotFound
}

type bucket struct {
	part *partition
	name string
}

func (b *bucket) Name() string {
	return b.name
}

func (b *bucket) Match(ctx context.Context, req *http.Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !cacheableMethod(req) {
		return nil, ErrNotFound
	}
	ent, err := b.load(entryKey(req))
	if err != nil {
		return nil, err
	}
	for _, rec := range ent.Variants {
		if rec.varyMatches(req) {
			return rec.response(), nil
		}
	}
	return nil, ErrNotFound
}

// Put 覆盖与请求匹配（遵循各自 Vary）的已有变体，其余变体保留。
// Set-Cookie 永远不会落盘。
func (b *bucket) Put(ctx context.Context, req *http.Request, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cacheableMethod(req) {
		return ErrMethodNotAllowed
	}
	if resp == nil {
		return errors.New("nil response")
	}
	vary := varyHeaders(resp.Header)
	for _, name := range vary {
		if name == "*" {
			return ErrVaryWildcard
		}
	}
	vary = withCredentialVary(vary, req.Header)

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Del("Set-Cookie")
	rec := record{
		URL:           requestURL(req),
		VaryNames:     vary,
		RequestHeader: selectHeaders(req.Header, vary),
		Status:        resp.Status,
		Header:        header,
		Body:          append([]byte(nil), resp.Body...),
		StoredAt:      time.Now().UTC(),
	}

	key := entryKey(req)
	b.part.mu.Lock()
	defer b.part.mu.Unlock()
	if err := b.part.drv.createBucket(b.part.name, b.name); err != nil {
		return err
	}
	ent, err := b.load(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	kept := ent.Variants[:0]
	for _, existing := range ent.Variants {
		if !existing.varyMatches(req) {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, rec)
	if len(kept) > maxVariants {
		kept = kept[len(kept)-maxVariants:]
	}
	ent.Variants = kept

	raw, err := encodeEntry(ent)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return b.part.drv.put(b.part.name, b.name, key, raw)
}

// Delete 删除与请求匹配的变体，返回是否删除了任何条目。
func (b *bucket) Delete(ctx context.Context, req *http.Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !cacheableMethod(req) {
		return false, nil
	}
	key := entryKey(req)
	b.part.mu.Lock()
	defer b.part.mu.Unlock()
	ent, err := b.load(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	kept := ent.Variants[:0]
	for _, existing := range ent.Variants {
		if !existing.varyMatches(req) {
			kept = append(kept, existing)
		}
	}
	switch {
	case len(kept) == len(ent.Variants):
		return false, nil
	case len(kept) == 0:
		return b.part.drv.del(b.part.name, b.name, key)
	}
	ent.Variants = kept
	raw, err := encodeEntry(ent)
	if err != nil {
		return false, fmt.Errorf("encode cache entry: %w", err)
	}
	return true, b.part.drv.put(b.part.name, b.name, key, raw)
}

// Keys 每个变体对应一个 URL，同一 URL 的多个变体会重复出现。
func (b *bucket) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := b.part.drv.values(b.part.name, b.name)
	if err != nil {
		return nil, err
	}
	records := make([]record, 0, len(values))
	for _, raw := range values {
		ent, err := decodeEntry(raw)
		if err != nil {
			continue
		}
		records = append(records, ent.Variants...)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StoredAt.Equal(records[j].StoredAt) {
			return records[i].URL < records[j].URL
		}
		return records[i].StoredAt.Before(records[j].StoredAt)
	})
	urls := make([]string, len(records))
	for i, rec := range records {
		urls[i] = rec.URL
	}
	return urls, nil
}

func (b *bucket) load(key string) (entry, error) {
	raw, err := b.part.drv.get(b.part.name, b.name, key)
	if err != nil {
		return entry{}, err
	}
	ent, err := decodeEntry(raw)
	if err != nil {
		return entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return ent, nil
}

// maxVariants 限制同一 URL 保留的变体数量，超出时丢弃最早写入的变体。
const maxVariants = 32

// entry 是一个 URL 下的全部变体，gob 编码后作为单个 KV 值存储。
type entry struct {
	Variants []record
}

// record 是单个变体。VaryNames 是写入时生效的 Vary 集合（含隐式凭据头），
// RequestHeader 只保留这些头的取值。
type record struct {
	URL           string
	VaryNames     []string
	RequestHeader http.Header
	Status        int
	Header        http.Header
	Body          []byte
	StoredAt      time.Time
}

func (r record) response() *Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		Status:   r.Status,
		Header:   header,
		Body:     r.Body,
		URL:      r.URL,
		StoredAt: r.StoredAt,
	}
}

func (r record) varyMatches(req *http.Request) bool {
	for _, name := range r.VaryNames {
		if strings.Join(req.Header.Values(name), ",") != strings.Join(r.RequestHeader.Values(name), ",") {
			return false
		}
	}
	return true
}

func encodeEntry(ent entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(raw []byte) (entry, error) {
	var ent entry
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&ent)
	return ent, err
}

// credentialHeaders 在源站未声明 Vary 时也参与匹配：带凭据写入的变体只会被携带相同凭据的请求命中。
var credentialHeaders = []string{"Authorization", "Cookie"}

func withCredentialVary(vary []string, header http.Header) []string {
	out := append([]string(nil), vary...)
	for _, name := range credentialHeaders {
		if len(header.Values(name)) == 0 {
			continue
		}
		listed := false
		for _, existing := range out {
			if existing == name {
				listed = true
				break
			}
		}
		if !listed {
			out = append(out, name)
		}
	}
	return out
}

func varyHeaders(header http.Header) []string {
	var names []string
	for _, value := range header.Values("Vary") {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if part == "*" {
				names = append(names, part)
				continue
			}
			names = append(names, http.CanonicalHeaderKey(part))
		}
	}
	return names
}

func selectHeaders(src http.Header, names []string) http.Header {
	if len(names) == 0 {
		return nil
	}
	out := http.Header{}
	for _, name := range names {
		for _, value := range src.Values(name) {
			out.Add(name, value)
		}
	}
	return out
}

func cacheableMethod(req *http.Request) bool {
	return req != nil && req.URL != nil && (req.Method == "" || req.Method == http.MethodGet)
}

// requestURL 去掉 fragment，与 Cache API 的请求标识保持一致。
func requestURL(req *http.Request) string {
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func entryKey(req *http.Request) string {
	sum := sha1.Sum([]byte(requestURL(req)))
	return hex.EncodeToString(sum[:])
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
