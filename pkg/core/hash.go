package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"artifactsync/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 规范化 CBOR 编码选项，用于计算结构化数据 (如 Registry) 的指纹
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的 Registry 生成唯一的指纹
	Sort: cbor.SortCanonical,

	// 2. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,

	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

// ComputeIdentity 计算字节序列的 Hash (sha256 + 小写 hex)
// 这是整个系统唯一的信任锚点
func ComputeIdentity(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// ComputeReaderIdentity 流式计算 Hash，避免把大文件一次性读进内存
func ComputeReaderIdentity(r io.Reader) (types.Hash, int64, error) {
	hasher := sha256.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash stream: %w", err)
	}
	return types.Hash(hex.EncodeToString(hasher.Sum(nil))), n, nil
}

// ParseHash 校验外部输入的 Hash
func ParseHash(s string) (types.Hash, error) {
	h := types.Hash(s)
	if !h.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrMalformedHash, s)
	}
	return h, nil
}

// Fingerprint 对任意结构做规范化 CBOR 编码后取 Hash
// 返回指纹和编码后的字节
func Fingerprint(v any) (types.Hash, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return ComputeIdentity(data), data, nil
}
