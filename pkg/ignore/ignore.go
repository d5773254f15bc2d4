package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义忽略规则的文件名，位于同步根目录
const FileName = ".artsyncignore"

// Matcher 封装了忽略逻辑
// 它负责判断本地树中的一个路径是否应该被 scan 跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 本地同步根目录（用于查找 .artsyncignore 文件）
func NewMatcher(rootPath string) (*Matcher, error) {
	// 1. 系统级默认忽略规则，强制生效
	defaultRules := []string{
		// --- 工具自身的状态 ---
		".artsync",
		FileName,
		".git",

		// --- 原子写入留下的临时文件 ---
		"temp-*",
		"*.partial",

		// --- 常见垃圾文件 ---
		".DS_Store",
		"Thumbs.db",
	}

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. 检查用户是否有 .artsyncignore 文件
	ignoreFilePath := filepath.Join(rootPath, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 文件内容和默认规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于同步根目录的路径 (例如 "py-runner/<hash>.tar")
// 返回: true 表示应该忽略
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
