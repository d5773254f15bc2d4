package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"artifactsync/pkg/registry"
	"artifactsync/pkg/syncer"
	"artifactsync/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockHash 生成合法的测试用 Hash
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// setupTestRepo 每个测试一个独立的内存库
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	j := NewWithConn(db)
	require.NoError(t, j.AutoMigrate(&Run{}, &Entry{}))
	return NewRepository(j)
}

// mustReport 构造一个包含一个成功、一个失败 Pair 的报告
func mustReport(t *testing.T, dir syncer.Direction, started time.Time) *syncer.Report {
	t.Helper()
	ok := registry.Pair{Name: "py", Hash: mockHash("ok")}
	bad := registry.Pair{Name: "wasm", Hash: mockHash("bad")}

	input := make(registry.Registry)
	input.Add(ok.Name, ok.Hash)
	input.Add(bad.Name, bad.Hash)
	digest, err := input.Fingerprint()
	require.NoError(t, err)

	result := make(registry.Registry)
	result.Add(ok.Name, ok.Hash)

	return &syncer.Report{
		Direction: dir,
		Mode:      syncer.Partial,
		Digest:    digest,
		Result:    result,
		Outcomes: []syncer.Outcome{
			{Pair: ok, Status: syncer.StatusDownloaded},
			{Pair: bad, Status: syncer.StatusFailed, Err: fmt.Errorf("fetch %s: not found", bad)},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}
