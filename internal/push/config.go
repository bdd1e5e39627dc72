package push

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ErrNotConfigured 表示站点未声明推送消息配置。
var ErrNotConfigured = errors.New("push messaging not configured")

// Config 是推送消息 SDK 的初始化参数。字段可被环境变量覆盖，
// 变量名为 SERAJ_<SITE>_PUSH_<KEY>。
type Config struct {
	APIKey        string `env:"API_KEY"`
	AuthDomain    string `env:"AUTH_DOMAIN"`
	ProjectID     string `env:"PROJECT_ID"`
	StorageBucket string `env:"STORAGE_BUCKET"`
	SenderID      string `env:"SENDER_ID"`
	AppID         string `env:"APP_ID"`
	MeasurementID string `env:"MEASUREMENT_ID"`
}

// Empty 表示所有字段均未填写。
func (c Config) Empty() bool {
	return c == Config{}
}

// ConfigError 指出缺失或非法的字段。
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("push config %s: %s", e.Field, e.Reason)
}

// Validate 检查 SDK 初始化所需的必填字段。
func (c Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"APIKey", c.APIKey},
		{"ProjectID", c.ProjectID},
		{"SenderID", c.SenderID},
		{"AppID", c.AppID},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			return ConfigError{Field: item.field, Reason: "不能为空"}
		}
	}
	return nil
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// EnvPrefix 返回站点对应的环境变量前缀，例如 seraj-app → SERAJ_SERAJ_APP_PUSH_。
func EnvPrefix(site string) string {
	name := nonAlnum.ReplaceAllString(strings.ToUpper(strings.TrimSpace(site)), "_")
	name = strings.Trim(name, "_")
	return "SERAJ_" + name + "_PUSH_"
}

// ApplyEnv 以环境变量覆盖配置，未设置的变量保留原值。
func ApplyEnv(site string, cfg Config) (Config, error) {
	return applyEnv(site, cfg, nil)
}

func applyEnv(site string, cfg Config, environment map[string]string) (Config, error) {
	opts := env.Options{Prefix: EnvPrefix(site)}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse push env for %s: %w", site, err)
	}
	return cfg, nil
}
