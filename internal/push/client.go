package push

import "fmt"

// WebConfig 是页面端 SDK initializeApp 需要的 JSON 结构。
type WebConfig struct {
	APIKey            string `json:"apiKey"`
	AuthDomain        string `json:"authDomain,omitempty"`
	ProjectID         string `json:"projectId"`
	StorageBucket     string `json:"storageBucket,omitempty"`
	MessagingSenderID string `json:"messagingSenderId"`
	AppID             string `json:"appId"`
	MeasurementID     string `json:"measurementId,omitempty"`
}

// Client 持有某个站点经过校验的推送配置。只负责声明，不负责投递。
type Client struct {
	site string
	cfg  Config
}

// NewClient 校验配置并返回客户端；配置为空时返回 ErrNotConfigured。
func NewClient(site string, cfg Config) (*Client, error) {
	if cfg.Empty() {
		return nil, ErrNotConfigured
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("site %s: %w", site, err)
	}
	return &Client{site: site, cfg: cfg}, nil
}

// Site 返回所属站点。
func (c *Client) Site() string {
	return c.site
}

// WebConfig 导出页面端初始化参数。
func (c *Client) WebConfig() WebConfig {
	return WebConfig{
		APIKey:            c.cfg.APIKey,
		AuthDomain:        c.cfg.AuthDomain,
		ProjectID:         c.cfg.ProjectID,
		StorageBucket:     c.cfg.StorageBucket,
		MessagingSenderID: c.cfg.SenderID,
		AppID:             c.cfg.AppID,
		MeasurementID:     c.cfg.MeasurementID,
	}
}
