package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// SiteFields 提供站点维度的公共字段，生命周期日志与请求日志共用。
func SiteFields(site, domain string) logrus.Fields {
	return logrus.Fields{
		"site":   site,
		"domain": domain,
	}
}

// RequestFields 描述一次被拦截请求的分类、响应来源与耗时。
func RequestFields(site, domain, kind, source string, status int, elapsed time.Duration) logrus.Fields {
	fields := SiteFields(site, domain)
	fields["kind"] = kind
	fields["source"] = source
	fields["status"] = status
	fields["elapsed_ms"] = elapsed.Milliseconds()
	return fields
}
