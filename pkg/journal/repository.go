// Package journal 把每次同步的 Report 持久化到 SQL 数据库，供 history 命令查询。
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"artifactsync/pkg/syncer"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("run not found in journal")

var _ syncer.Recorder = (*Repository)(nil)

// Repository 封装所有对运行日志的读写
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record 在一个事务里写入 Run 及其全部 Entry
func (r *Repository) Record(ctx context.Context, report *syncer.Report) error {
	// 1. Result -> JSON (空 Registry 编码为 {})
	resultJSON, err := json.Marshal(report.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	// 2. 构造 Model
	run := Run{
		Direction:      string(report.Direction),
		Mode:           report.Mode.String(),
		RegistryDigest: report.Digest.String(),
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		Succeeded:      report.Succeeded(),
		Failed:         len(report.Failed()),
		Result:         datatypes.JSON(resultJSON),
	}
	for _, o := range report.Outcomes {
		e := Entry{
			Name:   o.Pair.Name.String(),
			Hash:   o.Pair.Hash.String(),
			Status: string(o.Status),
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		run.Entries = append(run.Entries, e)
	}

	// 3. 写入 (关联的 Entries 由 GORM 一并创建)
	err = r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent 按开始时间倒序返回最近的运行 (不含 Entries)
func (r *Repository) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := r.db.GetConn().WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// GetRun 读取单次运行
func (r *Repository) GetRun(ctx context.Context, id uint) (*Run, error) {
	var run Run
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Entries 返回某次运行的所有 Pair 结果，顺序与写入一致
func (r *Repository) Entries(ctx context.Context, runID uint) ([]Entry, error) {
	var entries []Entry
	err := r.db.GetConn().WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}
