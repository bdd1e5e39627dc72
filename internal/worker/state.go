package worker

import (
	"sync"

	"github.com/seraj-app/seraj-gateway/internal/cache"
)

// State 是 worker 版本的生命周期状态。
type State string

const (
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
	StateRedundant  State = "redundant"
)

// Script 描述一个 worker 版本：Bucket 名称、预缓存清单以及是否跳过等待。
type Script struct {
	Version string
	Names   cache.Names
	// StaticAssets 必须是绝对 URL，顺序即 install 时的写入顺序。
	StaticAssets []string
	SkipWaiting  bool
}

// Worker 是已注册的某个版本实例。
type Worker struct {
	id     int
	script Script

	mu    sync.RWMutex
	state State
}

func newWorker(id int, script Script) *Worker {
	script.StaticAssets = append([]string(nil), script.StaticAssets...)
	return &Worker{id: id, script: script, state: StateInstalling}
}

// ID 是注册表内的递增序号。
func (w *Worker) ID() int {
	return w.id
}

// Version 返回脚本版本号。
func (w *Worker) Version() string {
	return w.script.Version
}

// Names 返回该版本的 Bucket 名称。
func (w *Worker) Names() cache.Names {
	return w.script.Names
}

// StaticAssets 返回预缓存清单副本。
func (w *Worker) StaticAssets() []string {
	return append([]string(nil), w.script.StaticAssets...)
}

// State 返回当前状态。
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(state State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}

// Info 是 Worker 的只读快照，供诊断端序列化。
type Info struct {
	ID      int    `json:"id"`
	Version string `json:"version"`
	State   State  `json:"state"`
}

func (w *Worker) info() *Info {
	if w == nil {
		return nil
	}
	return &Info{ID: w.id, Version: w.script.Version, State: w.State()}
}

// Snapshot 汇总注册表当前各槽位的 worker。
type Snapshot struct {
	Installing *Info `json:"installing,omitempty"`
	Waiting    *Info `json:"waiting,omitempty"`
	Active     *Info `json:"active,omitempty"`
	Controlled bool  `json:"controlled"`
}
