package journal

import (
	"time"

	"gorm.io/datatypes"
)

// Run 是一次 download / upload 的汇总
type Run struct {
	ID uint `gorm:"primaryKey"`

	Direction string `gorm:"index;type:varchar(16);not null"`
	Mode      string `gorm:"type:varchar(16)"`

	// RegistryDigest 是输入 Registry 的规范化指纹，同一个 Registry 的多次运行可以聚合
	RegistryDigest string `gorm:"index;type:char(64)"`

	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time

	Succeeded int
	Failed    int

	// Result 是运行结束时输出的 Registry (JSON 对象)
	Result datatypes.JSON

	Entries []Entry `gorm:"constraint:OnDelete:CASCADE"`
}

func (Run) TableName() string {
	return "runs"
}

// Entry 是单个 Pair 的结果
type Entry struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  uint   `gorm:"index;not null"`
	Name   string `gorm:"type:varchar(255);not null"`
	Hash   string `gorm:"type:char(64);not null"`
	Status string `gorm:"type:varchar(16)"`
	Error  string `gorm:"type:text"`
}

func (Entry) TableName() string {
	return "run_entries"
}
