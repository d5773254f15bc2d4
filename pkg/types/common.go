// pkg/types/common.go
package types

import (
	"fmt"
	"strings"
)

const (
	// HashValidChars 是 Hash 允许出现的全部字符 (小写 hex)
	HashValidChars = "0123456789abcdef"
	// HashLength 是 SHA-256 hex 编码后的长度
	HashLength = 64
	// DefaultArchiveExt 是制品归档的固定后缀
	DefaultArchiveExt = "tar"
)

// Hash 代表制品的唯一标识符 (SHA256 Hex String)
// 它同时是完整性证明和远端/本地的寻址 Key。
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsWellFormed 只检查字母表，空串也算合法
// 需要长度约束的调用方请用 IsValid
func (h Hash) IsWellFormed() bool {
	for _, c := range string(h) {
		if !strings.ContainsRune(HashValidChars, c) {
			return false
		}
	}
	return true
}

// IsValid 字母表 + 长度都满足
func (h Hash) IsValid() bool { return len(h) == HashLength && h.IsWellFormed() }

// Short 用于日志输出
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// ArtifactName 是 Registry 的命名空间 Key，会被直接用作路径的一段
type ArtifactName string

func (n ArtifactName) String() string { return string(n) }

// Validate 保证名字可以安全地作为单个路径段使用
func (n ArtifactName) Validate() error {
	s := string(n)
	switch {
	case s == "":
		return fmt.Errorf("artifact name is empty")
	case s == "." || s == "..":
		return fmt.Errorf("artifact name %q is not a valid path segment", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("artifact name %q contains a path separator", s)
	}
	return nil
}
