package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"artifactsync/pkg/registry"
	"artifactsync/pkg/types"
)

// FailureMode 决定 download 遇到单个 Pair 失败时的行为
type FailureMode int

const (
	// Strict 第一个失败即终止整个运行
	Strict FailureMode = iota
	// Partial 记录失败并跳过，继续下一个 Pair
	Partial
)

func (m FailureMode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Partial:
		return "partial"
	default:
		return fmt.Sprintf("FailureMode(%d)", int(m))
	}
}

// ParseFailureMode 解析配置中的字符串
func ParseFailureMode(s string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return Strict, nil
	case "partial":
		return Partial, nil
	default:
		return Strict, fmt.Errorf("unknown failure mode %q", s)
	}
}

// Direction 同步方向
type Direction string

const (
	DirDownload Direction = "download"
	DirUpload   Direction = "upload"
)

// Status 单个 Pair 的处理结果
type Status string

const (
	StatusCached     Status = "cached"     // 本地已有且校验通过，未发生网络 I/O
	StatusDownloaded Status = "downloaded" // 拉取、校验并写入本地
	StatusUploaded   Status = "uploaded"   // 校验并发布到远端
	StatusSkipped    Status = "skipped"    // 远端已存在，未重复发布
	StatusFailed     Status = "failed"
	// StatusCanceled 处理中途因运行被取消而中断 (Strict 下其他 Pair 失败，或外部取消)
	// 不计入 Failed
	StatusCanceled Status = "canceled"
)

// Outcome 是单个 Pair 的标签化结果：Err == nil 即成功
type Outcome struct {
	Pair   registry.Pair
	Status Status
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil && o.Status != StatusFailed && o.Status != StatusCanceled && o.Status != ""
}

// Report 汇总一次运行
type Report struct {
	Direction Direction
	Mode      FailureMode
	// Digest 是输入 Registry 的规范化指纹
	Digest     types.Hash
	Result     registry.Registry
	Outcomes   []Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed 返回所有失败的 Outcome，被取消的 Pair 除外
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() && o.Status != StatusCanceled {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded 成功的 Pair 数
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Count 按状态计数
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Recorder 持久化运行报告 (见 journal 包)
type Recorder interface {
	Record(ctx context.Context, report *Report) error
}
