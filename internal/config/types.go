package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 兼容纯秒整数与 Go Duration 字符串两种写法。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别 "30s"、"5m" 或纯数字秒值。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 存储驱动取值。
const (
	StorageDriverFS      = "fs"
	StorageDriverLevelDB = "leveldb"
)

// GlobalConfig 描述全局运行时行为，所有站点共享。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StoragePath   string `mapstructure:"StoragePath"`
	StorageDriver string `mapstructure:"StorageDriver"`
	// UpstreamTimeout 为 0 时不设置超时。
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	// AdminToken 保护会修改状态的 /-/ 接口；为空时这些接口全部拒绝。
	// 可用 SERAJ_GATEWAY_ADMIN_TOKEN 环境变量提供。
	AdminToken string `mapstructure:"AdminToken"`
}

// MessagingConfig 对应 [Site.Messaging]，为空表示站点未启用推送。
type MessagingConfig struct {
	APIKey        string `mapstructure:"APIKey"`
	AuthDomain    string `mapstructure:"AuthDomain"`
	ProjectID     string `mapstructure:"ProjectID"`
	StorageBucket string `mapstructure:"StorageBucket"`
	SenderID      string `mapstructure:"SenderID"`
	AppID         string `mapstructure:"AppID"`
	MeasurementID string `mapstructure:"MeasurementID"`
}

// SiteConfig 描述一个被网关托管的 Web 应用。
type SiteConfig struct {
	Name                string   `mapstructure:"Name"`
	Domain              string   `mapstructure:"Domain"`
	Origin              string   `mapstructure:"Origin"`
	CachePrefix         string   `mapstructure:"CachePrefix"`
	CacheVersion        string   `mapstructure:"CacheVersion"`
	OfflinePage         string   `mapstructure:"OfflinePage"`
	APIPrefix           string   `mapstructure:"APIPrefix"`
	StaticAssets        []string `mapstructure:"StaticAssets"`
	StaticAssetManifest string   `mapstructure:"StaticAssetManifest"`
	StaticPathPrefixes  []string `mapstructure:"StaticPathPrefixes"`
	StaticExtensions    []string `mapstructure:"StaticExtensions"`
	CachedAPIEndpoints  []string `mapstructure:"CachedAPIEndpoints"`
	// SkipWaiting 缺省视为 true。
	SkipWaiting *bool           `mapstructure:"SkipWaiting"`
	Messaging   MessagingConfig `mapstructure:"Messaging"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Sites  []SiteConfig `mapstructure:"Site"`
}

// SkipWaitingEnabled 返回 install 成功后是否立即激活。
func (s SiteConfig) SkipWaitingEnabled() bool {
	return s.SkipWaiting == nil || *s.SkipWaiting
}

// MessagingEnabled 表示是否声明了推送配置。
func (s SiteConfig) MessagingEnabled() bool {
	return s.Messaging != MessagingConfig{}
}

// SiteSummaries 返回 name:domain 形式的摘要，供启动日志使用。
func SiteSummaries(sites []SiteConfig) []string {
	if len(sites) == 0 {
		return nil
	}
	result := make([]string, len(sites))
	for i, site := range sites {
		result[i] = fmt.Sprintf("%s:%s", site.Name, site.Domain)
	}
	return result
}
