package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"artifactsync/pkg/ignore"
	"artifactsync/pkg/types"
)

// Scan 从本地树 <root>/<name>/<hash>.<ext> 反推出 Registry
// 文件名不是合法 Hash 的条目会被跳过；这里不做内容校验，校验发生在 upload 时
func Scan(root, ext string) (Registry, error) {
	matcher, err := ignore.NewMatcher(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}

	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read root %s: %w", root, err)
	}

	suffix := "." + ext
	reg := make(Registry)

	for _, dir := range dirs {
		if !dir.IsDir() || matcher.Matches(dir.Name()) {
			continue
		}
		name := types.ArtifactName(dir.Name())
		if name.Validate() != nil {
			continue
		}

		files, err := os.ReadDir(filepath.Join(root, dir.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir.Name(), err)
		}

		for _, f := range files {
			rel := filepath.Join(dir.Name(), f.Name())
			if f.IsDir() || matcher.Matches(rel) || !strings.HasSuffix(f.Name(), suffix) {
				continue
			}
			hash := types.Hash(strings.TrimSuffix(f.Name(), suffix))
			if !hash.IsValid() {
				slog.Debug("scan: skipping non-hash file", "path", rel)
				continue
			}
			reg.Add(name, hash)
		}
	}

	return reg, nil
}
