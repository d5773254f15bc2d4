package core

import (
	"errors"
	"fmt"
	"io"

	"artifactsync/pkg/types"
)

var (
	// ErrMalformedHash 输入的字符串不是合法的 Hash
	ErrMalformedHash = errors.New("malformed hash")
	// ErrHashMismatch 计算出的 Hash 与期望不一致
	ErrHashMismatch = errors.New("hash mismatch")
)

// HashMismatchError 同时携带期望值和实际值
type HashMismatchError struct {
	Expected types.Hash
	Actual   types.Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch\nexp: %s\ngot: %s", e.Expected, e.Actual)
}

func (e *HashMismatchError) Is(target error) bool { return target == ErrHashMismatch }

// Verify 判断 data 的 Hash 是否等于 expected
func Verify(data []byte, expected types.Hash) bool {
	return ComputeIdentity(data) == expected
}

// VerifyOrFail 与 Verify 相同，但不一致时返回 *HashMismatchError
func VerifyOrFail(data []byte, expected types.Hash) error {
	actual := ComputeIdentity(data)
	if actual != expected {
		return &HashMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// VerifyReader 是 VerifyOrFail 的流式版本
func VerifyReader(r io.Reader, expected types.Hash) error {
	actual, _, err := ComputeReaderIdentity(r)
	if err != nil {
		return err
	}
	if actual != expected {
		return &HashMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
