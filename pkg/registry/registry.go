// Package registry 实现 "制品名 → Hash 集合" 的内存模型。
//
// Registry 在构造时立即规范化：每个名字下的 Hash 去重并升序排列，
// 名字本身在序列化和遍历时同样升序，保证输出可复现、可 diff。
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"artifactsync/pkg/core"
	"artifactsync/pkg/types"
)

// ErrFormat 顶层结构不是 name → hash | [hash...]
var ErrFormat = errors.New("registry format error")

// Registry 是 name → 有序、无重复的 Hash 列表
type Registry map[types.ArtifactName][]types.Hash

// Pair 是同步的最小单位
type Pair struct {
	Name types.ArtifactName
	Hash types.Hash
}

func (p Pair) String() string { return fmt.Sprintf("%s:%s", p.Name, p.Hash) }

// Parse 解析外部 JSON
// 值为字符串或字符串数组；其他类型的值会被静默跳过 (兼容旧 Registry)
func Parse(data []byte) (Registry, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrFormat, err)
	}

	top, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object for registry", ErrFormat)
	}

	reg := make(Registry, len(top))
	for key, v := range top {
		name := types.ArtifactName(key)

		var hashes []string
		switch val := v.(type) {
		case string:
			hashes = []string{val}
		case []any:
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: registry value must be str | list[str] for %s", ErrFormat, key)
				}
				hashes = append(hashes, s)
			}
		default:
			slog.Debug("registry entry skipped", "name", key, "type", fmt.Sprintf("%T", v))
			continue
		}

		if err := name.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if _, seen := reg[name]; !seen {
			reg[name] = []types.Hash{}
		}

		for _, s := range hashes {
			h, err := core.ParseHash(s)
			if err != nil {
				return nil, fmt.Errorf("registry entry %s: %w", key, err)
			}
			reg[name] = append(reg[name], h)
		}
	}

	return Normalize(reg), nil
}

// Load 从文件读取 Registry，"-" 表示 stdin
func Load(path string, stdin io.Reader) (Registry, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Normalize 返回一个去重、排序后的副本
// 空列表的名字保留，序列化为 "name": []
func Normalize(r Registry) Registry {
	out := make(Registry, len(r))
	for name, hashes := range r {
		cp := append(make([]types.Hash, 0, len(hashes)), hashes...)
		slices.Sort(cp)
		out[name] = slices.Compact(cp)
	}
	return out
}

// Merge 按名字求 Hash 集合的并集
// 满足交换律和结合律；Merge(r) 等价于 Normalize(r)
func Merge(rs ...Registry) Registry {
	out := make(Registry)
	for _, r := range rs {
		for name, hashes := range r {
			out[name] = append(out[name], hashes...)
		}
	}
	return Normalize(out)
}

// DeriveExpectedHash 从文件名恢复期望的 Hash: "<hash>.<ext>" -> "<hash>"
// ext 为空时使用 types.DefaultArchiveExt；结果未经校验，调用方需要检查 IsWellFormed
func DeriveExpectedHash(base, ext string) types.Hash {
	if ext == "" {
		ext = types.DefaultArchiveExt
	}
	return types.Hash(strings.TrimSuffix(base, "."+ext))
}

// Add 插入一个 Pair 并保持有序
func (r Registry) Add(name types.ArtifactName, hash types.Hash) {
	hashes := r[name]
	i, found := slices.BinarySearch(hashes, hash)
	if found {
		return
	}
	r[name] = slices.Insert(hashes, i, hash)
}

// Contains 判断 Pair 是否存在
func (r Registry) Contains(name types.ArtifactName, hash types.Hash) bool {
	_, found := slices.BinarySearch(r[name], hash)
	return found
}

// Names 升序返回所有名字
func (r Registry) Names() []types.ArtifactName {
	names := make([]types.ArtifactName, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Pairs 按 name、hash 升序展开
func (r Registry) Pairs() []Pair {
	pairs := make([]Pair, 0, r.Len())
	for _, name := range r.Names() {
		hashes := slices.Clone(r[name])
		slices.Sort(hashes)
		for _, h := range slices.Compact(hashes) {
			pairs = append(pairs, Pair{Name: name, Hash: h})
		}
	}
	return pairs
}

// Len 返回 Pair 总数
func (r Registry) Len() int {
	n := 0
	for _, hashes := range r {
		n += len(hashes)
	}
	return n
}

// Equal 按规范化后的集合比较
func (r Registry) Equal(other Registry) bool {
	a, b := Normalize(r), Normalize(other)
	if len(a) != len(b) {
		return false
	}
	for name, hashes := range a {
		if !slices.Equal(hashes, b[name]) {
			return false
		}
	}
	return true
}

// Fingerprint 规范化后的 CBOR 指纹，用于在日志和 journal 里标识一次运行的输入
func (r Registry) Fingerprint() (types.Hash, error) {
	h, _, err := core.Fingerprint(r.plain())
	return h, err
}

// MarshalJSON 总是输出数组值；encoding/json 会对 map key 排序
func (r Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.plain())
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	reg, err := Parse(data)
	if err != nil {
		return err
	}
	*r = reg
	return nil
}

// Encode 输出单行 JSON + 换行
func Encode(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func (r Registry) plain() map[string][]string {
	out := make(map[string][]string, len(r))
	for name, hashes := range Normalize(r) {
		ss := make([]string, len(hashes))
		for i, h := range hashes {
			ss[i] = string(h)
		}
		out[string(name)] = ss
	}
	return out
}
