package push

import (
	"encoding/json"
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		APIKey:        "key-123",
		AuthDomain:    "seraj-app.example.com",
		ProjectID:     "seraj-app",
		StorageBucket: "seraj-app.example.app",
		SenderID:      "651768016947",
		AppID:         "1:651768016947:web:abc",
		MeasurementID: "G-TEST",
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient("seraj", Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("empty config should report ErrNotConfigured, got %v", err)
	}

	cfg := validConfig()
	cfg.SenderID = " "
	_, err := NewClient("seraj", cfg)
	var cfgErr ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "SenderID" {
		t.Fatalf("expected SenderID error, got %v", err)
	}
}

func TestWebConfigJSON(t *testing.T) {
	client, err := NewClient("seraj", validConfig())
	if err != nil {
		t.Fatalf("client error: %v", err)
	}
	raw, err := json.Marshal(client.WebConfig())
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if decoded["messagingSenderId"] != "651768016947" || decoded["projectId"] != "seraj-app" {
		t.Fatalf("unexpected web config %s", raw)
	}
}

func TestEnvPrefix(t *testing.T) {
	cases := map[string]string{
		"seraj":       "SERAJ_SERAJ_PUSH_",
		"seraj-app":   "SERAJ_SERAJ_APP_PUSH_",
		" docs.site ": "SERAJ_DOCS_SITE_PUSH_",
	}
	for site, want := range cases {
		if got := EnvPrefix(site); got != want {
			t.Fatalf("EnvPrefix(%q) = %s, want %s", site, got, want)
		}
	}
}

func TestApplyEnvOverridesOnlySetFields(t *testing.T) {
	cfg, err := applyEnv("seraj-app", validConfig(), map[string]string{
		"SERAJ_SERAJ_APP_PUSH_API_KEY": "rotated",
		"SERAJ_OTHER_PUSH_APP_ID":      "ignored",
	})
	if err != nil {
		t.Fatalf("apply env error: %v", err)
	}
	if cfg.APIKey != "rotated" {
		t.Fatalf("api key should be overridden, got %s", cfg.APIKey)
	}
	if cfg.AppID != "1:651768016947:web:abc" {
		t.Fatalf("unrelated prefix must not apply, got %s", cfg.AppID)
	}
	if cfg.ProjectID != "seraj-app" {
		t.Fatalf("unset variables should keep file values, got %s", cfg.ProjectID)
	}
}

func TestApplyEnvFromProcess(t *testing.T) {
	t.Setenv("SERAJ_SERAJ_PUSH_PROJECT_ID", "from-env")
	cfg, err := ApplyEnv("seraj", Config{})
	if err != nil {
		t.Fatalf("apply env error: %v", err)
	}
	if cfg.ProjectID != "from-env" {
		t.Fatalf("expected project id from environment, got %s", cfg.ProjectID)
	}
}
