package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	switch g.StorageDriver {
	case "", StorageDriverFS, StorageDriverLevelDB:
	default:
		return newFieldError("Global.StorageDriver", "仅支持 fs/leveldb")
	}
	if g.UpstreamTimeout.DurationValue() < 0 {
		return newFieldError("Global.UpstreamTimeout", "不能为负数")
	}

	if len(c.Sites) == 0 {
		return errors.New("至少需要配置一个 Site")
	}

	seenNames := map[string]struct{}{}
	seenDomains := map[string]struct{}{}
	for i := range c.Sites {
		site := &c.Sites[i]
		if site.Name == "" {
			return newFieldError("Site[].Name", "不能为空")
		}
		if !validSegment(site.Name) {
			return newFieldError(siteField(site.Name, "Name"), "不允许包含路径分隔符或空格")
		}
		if _, exists := seenNames[site.Name]; exists {
			return newFieldError(siteField(site.Name, "Name"), "重复")
		}
		seenNames[site.Name] = struct{}{}

		if err := validateDomain(site.Domain); err != nil {
			return fmt.Errorf("%s: %w", siteField(site.Name, "Domain"), err)
		}
		domain := strings.ToLower(site.Domain)
		if _, exists := seenDomains[domain]; exists {
			return newFieldError(siteField(site.Name, "Domain"), "重复")
		}
		seenDomains[domain] = struct{}{}

		if err := validateOrigin(site.Origin); err != nil {
			return fmt.Errorf("%s: %w", siteField(site.Name, "Origin"), err)
		}
		if site.CachePrefix != "" && !validSegment(site.CachePrefix) {
			return newFieldError(siteField(site.Name, "CachePrefix"), "不允许包含路径分隔符或空格")
		}
		if site.CacheVersion != "" && !validSegment(site.CacheVersion) {
			return newFieldError(siteField(site.Name, "CacheVersion"), "不允许包含路径分隔符或空格")
		}
		if site.OfflinePage != "" && !strings.HasPrefix(site.OfflinePage, "/") {
			return newFieldError(siteField(site.Name, "OfflinePage"), "必须以 / 开头")
		}
		if site.APIPrefix != "" && !strings.HasPrefix(site.APIPrefix, "/") {
			return newFieldError(siteField(site.Name, "APIPrefix"), "必须以 / 开头")
		}
		for _, asset := range site.StaticAssets {
			if err := validateAsset(asset); err != nil {
				return fmt.Errorf("%s: %w", siteField(site.Name, "StaticAssets"), err)
			}
		}
		if !precachesOffline(site) {
			return newFieldError(siteField(site.Name, "StaticAssets"), "必须包含 OfflinePage，否则离线导航没有兜底页面")
		}
		for _, endpoint := range site.CachedAPIEndpoints {
			if !strings.HasPrefix(endpoint, "/") {
				return newFieldError(siteField(site.Name, "CachedAPIEndpoints"), fmt.Sprintf("必须以 / 开头: %s", endpoint))
			}
		}
	}

	return nil
}

func validSegment(value string) bool {
	return value != "." && value != ".." && !strings.ContainsAny(value, "/\\ \t")
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("Domain 不能为空")
	}
	if strings.Contains(domain, "/") {
		return errors.New("Domain 不允许包含路径")
	}
	if strings.Contains(domain, " ") {
		return errors.New("Domain 不允许包含空格")
	}
	if strings.HasPrefix(domain, "http") {
		return errors.New("Domain 不应包含协议头")
	}
	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少源站地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("源站缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("源站不允许包含路径: %s", raw)
	}
	return nil
}

// validateAsset 接受以 / 开头的站内路径或 http/https 绝对地址。
func validateAsset(asset string) error {
	if strings.HasPrefix(asset, "/") {
		return nil
	}
	parsed, err := url.Parse(asset)
	if err != nil {
		return err
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("静态资源必须是站内路径或 http/https 地址: %s", asset)
	}
	return nil
}

// precachesOffline 判断离线页是否在预缓存列表中。绝对地址需与 Origin 同源且路径一致。
func precachesOffline(site *SiteConfig) bool {
	offline := site.OfflinePage
	if offline == "" {
		offline = DefaultOfflinePage
	}
	origin, _ := url.Parse(site.Origin)
	for _, asset := range site.StaticAssets {
		if asset == offline {
			return true
		}
		if strings.HasPrefix(asset, "/") || origin == nil {
			continue
		}
		parsed, err := url.Parse(asset)
		if err != nil {
			continue
		}
		if strings.EqualFold(parsed.Scheme, origin.Scheme) && strings.EqualFold(parsed.Host, origin.Host) && parsed.Path == offline && parsed.RawQuery == "" {
			return true
		}
	}
	return false
}
