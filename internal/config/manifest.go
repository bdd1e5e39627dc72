package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AssetManifest 是 StaticAssetManifest 指向的 YAML 文件结构：
//
//	assets:
//	  - /
//	  - /offline
//	  - https://cdn.example.com/font.woff2
type AssetManifest struct {
	Assets []string `yaml:"assets"`
}

// LoadAssetManifest 读取 YAML 清单，空行与重复项会被剔除。
func LoadAssetManifest(path string) (AssetManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AssetManifest{}, err
	}
	var manifest AssetManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return AssetManifest{}, err
	}
	manifest.Assets = mergeAssets(nil, manifest.Assets)
	return manifest, nil
}

// expandManifest 将清单追加到内联 StaticAssets 之后，相对路径以配置文件目录为基准。
func expandManifest(s *SiteConfig, baseDir string) error {
	s.StaticAssets = mergeAssets(nil, s.StaticAssets)
	if strings.TrimSpace(s.StaticAssetManifest) == "" {
		return nil
	}
	path := s.StaticAssetManifest
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	manifest, err := LoadAssetManifest(path)
	if err != nil {
		return newFieldError(siteField(s.Name, "StaticAssetManifest"), fmt.Sprintf("读取清单失败: %v", err))
	}
	s.StaticAssets = mergeAssets(s.StaticAssets, manifest.Assets)
	return nil
}

func mergeAssets(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	var result []string
	for _, list := range [][]string{base, extra} {
		for _, asset := range list {
			asset = strings.TrimSpace(asset)
			if asset == "" {
				continue
			}
			if _, ok := seen[asset]; ok {
				continue
			}
			seen[asset] = struct{}{}
			result = append(result, asset)
		}
	}
	return result
}
