package core

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"artifactsync/pkg/types"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockHash 生成一个合法的 64 字符 Hash，用标准库独立计算
// 用来交叉验证 ComputeIdentity
func mockHash(input []byte) types.Hash {
	sum := sha256.Sum256(input)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// sampleBlobs 覆盖空串、短文本、二进制、较大数据
func sampleBlobs(t *testing.T) [][]byte {
	t.Helper()
	big := make([]byte, 1<<20)
	for i := range big {
		big[i] = byte(i * 31)
	}
	return [][]byte{
		{},
		[]byte("hello"),
		{0x00, 0xff, 0x10, 0x80},
		big,
	}
}
