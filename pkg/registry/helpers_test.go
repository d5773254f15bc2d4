package registry

import (
	"crypto/sha256"
	"encoding/hex"

	"artifactsync/pkg/types"
)

// mockHash 生成合法的测试用 Hash
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}
