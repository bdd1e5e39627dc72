package cache

import "fmt"

// Names 描述一个 worker 版本使用的三个 Bucket 名称。
type Names struct {
	Static  string
	Dynamic string
	API     string
}

// NewNames 以 `<prefix>-cache-<version>` 等格式派生三个 Bucket 名称。
func NewNames(prefix, version string) Names {
	return Names{
		Static:  fmt.Sprintf("%s-cache-%s", prefix, version),
		Dynamic: fmt.Sprintf("%s-dynamic-%s", prefix, version),
		API:     fmt.Sprintf("%s-api-%s", prefix, version),
	}
}

// AllowList 返回激活清理时需要保留的名称集合。
func (n Names) AllowList() []string {
	return []string{n.Static, n.Dynamic, n.API}
}

// Allowed 判断名称是否属于当前版本。
func (n Names) Allowed(name string) bool {
	for _, allowed := range n.AllowList() {
		if name == allowed {
			return true
		}
	}
	return false
}
