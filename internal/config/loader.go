package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 站点级默认值。
const (
	DefaultCacheVersion = "v2"
	DefaultOfflinePage  = "/offline"
	DefaultAPIPrefix    = "/api/"
)

// AdminTokenEnv 覆盖配置文件中的 AdminToken。
const AdminTokenEnv = "SERAJ_GATEWAY_ADMIN_TOKEN"

// Load 读取并解析 TOML 配置文件，注入默认值、展开资源清单并校验。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	baseDir := filepath.Dir(path)
	for i := range cfg.Sites {
		applySiteDefaults(&cfg.Sites[i])
		if err := expandManifest(&cfg.Sites[i], baseDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("StorageDriver", StorageDriverFS)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("AdminToken", "")
	_ = v.BindEnv("AdminToken", AdminTokenEnv)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	g.StorageDriver = strings.ToLower(strings.TrimSpace(g.StorageDriver))
	if g.StorageDriver == "" {
		g.StorageDriver = StorageDriverFS
	}
}

func applySiteDefaults(s *SiteConfig) {
	s.Name = strings.TrimSpace(s.Name)
	s.Origin = strings.TrimRight(strings.TrimSpace(s.Origin), "/")
	if strings.TrimSpace(s.CachePrefix) == "" {
		s.CachePrefix = s.Name
	}
	if strings.TrimSpace(s.CacheVersion) == "" {
		s.CacheVersion = DefaultCacheVersion
	}
	if strings.TrimSpace(s.OfflinePage) == "" {
		s.OfflinePage = DefaultOfflinePage
	}
	if strings.TrimSpace(s.APIPrefix) == "" {
		s.APIPrefix = DefaultAPIPrefix
	}
	for i, ext := range s.StaticExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.StaticExtensions[i] = ext
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
