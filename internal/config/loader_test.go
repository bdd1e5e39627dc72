package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
StoragePath = "./data"
UpstreamTimeout = "boom"

[[Site]]
Name = "seraj"
Domain = "seraj.local"
Origin = "https://seraj.example.com"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadRejectsMissingManifest(t *testing.T) {
	cfg := `
StoragePath = "./data"

[[Site]]
Name = "seraj"
Domain = "seraj.local"
Origin = "https://seraj.example.com"
StaticAssetManifest = "nowhere.yaml"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("清单文件不存在时应失败")
	}
}

func TestLoadAssetManifestDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	content := "assets:\n  - /\n  - \" /offline \"\n  - /\n  - \"\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入清单失败: %v", err)
	}
	manifest, err := LoadAssetManifest(path)
	if err != nil {
		t.Fatalf("读取清单失败: %v", err)
	}
	if len(manifest.Assets) != 2 || manifest.Assets[0] != "/" || manifest.Assets[1] != "/offline" {
		t.Fatalf("清单应去重去空: %v", manifest.Assets)
	}
}

func TestLoadAssetManifestRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	if err := os.WriteFile(path, []byte("assets: [unterminated"), 0o600); err != nil {
		t.Fatalf("写入清单失败: %v", err)
	}
	if _, err := LoadAssetManifest(path); err == nil {
		t.Fatalf("非法 YAML 应报错")
	}
}

func TestLoadReadsAdminTokenFromEnv(t *testing.T) {
	cfg := `
StoragePath = "./data"
AdminToken = "from-file"

[[Site]]
Name = "seraj"
Domain = "seraj.local"
Origin = "https://seraj.example.com"
StaticAssets = ["/offline"]
`
	path := writeTempConfig(t, cfg)

	t.Setenv(AdminTokenEnv, "")
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.AdminToken != "from-file" {
		t.Fatalf("应读取配置文件中的 AdminToken, got %q", loaded.Global.AdminToken)
	}

	t.Setenv(AdminTokenEnv, "from-env")
	loaded, err = Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.AdminToken != "from-env" {
		t.Fatalf("环境变量应覆盖 AdminToken, got %q", loaded.Global.AdminToken)
	}
}
