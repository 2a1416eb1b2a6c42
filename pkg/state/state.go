package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/probe"
)

// ServiceRecord 是单个服务的持久化记录。
// Status 只由检查周期编排器写入；探测和修复只返回建议值。
type ServiceRecord struct {
	Status          probe.Status `json:"status"`
	LastFailureTime *time.Time   `json:"last_failure_time,omitempty"` // 最近一次进入 fail 的时间
	LastNotifyTime  *time.Time   `json:"last_notify_time,omitempty"`  // 最近一次通知时间，用于去重
}

// Escalation 是全局的升级簿记。
type Escalation struct {
	LastEscalationTime *time.Time `json:"last_escalation_time,omitempty"`
	// AttemptCount 是自上一个全员健康周期以来的连续升级次数，
	// 封顶于配置的 max_retries，全员健康时归零。
	AttemptCount int `json:"attempt_count"`
	// LastCriticalNotify 是 critical 告警自己的去重时间戳，
	// 与普通服务通知的冷却互相独立。
	LastCriticalNotify *time.Time `json:"last_critical_notify,omitempty"`
}

// Snapshot 是写入磁盘的完整状态。
// 监控器可能以一次性进程的形式被外部调度器触发，
// 冷却与升级预算全靠这份快照跨进程存活。
type Snapshot struct {
	Services   map[string]*ServiceRecord `json:"services"`
	Escalation Escalation                `json:"escalation"`
	SavedAt    time.Time                 `json:"saved_at"`
}

// NewSnapshot 返回一个空的默认快照。
func NewSnapshot() *Snapshot {
	return &Snapshot{Services: make(map[string]*ServiceRecord)}
}

// Record 返回指定服务的记录，不存在时以 unknown 状态创建。
// 记录一旦创建就不会删除，存活到进程结束。
func (s *Snapshot) Record(name string) *ServiceRecord {
	if s.Services == nil {
		s.Services = make(map[string]*ServiceRecord)
	}
	rec, ok := s.Services[name]
	if !ok {
		rec = &ServiceRecord{Status: probe.StatusUnknown}
		s.Services[name] = rec
	}
	return rec
}

// Load 从磁盘读取快照。
// 文件不存在或内容损坏时静默返回默认快照——
// 一个会被坏状态文件弄崩的监控器违背了它存在的意义。
// 未知的顶层字段被忽略，缺失字段取零值默认。
func Load(path string) *Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewSnapshot()
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		fmt.Printf("⚠️ 状态文件损坏，使用默认状态: %v\n", err)
		return NewSnapshot()
	}
	if snap.Services == nil {
		snap.Services = make(map[string]*ServiceRecord)
	}
	return snap
}

// Save 将快照原子地写入磁盘：先写临时文件再 rename，
// 进程中途被杀也不会留下写了一半的状态文件。
// 写失败由调用方记日志，不重试，永不致命。
func Save(path string, snap *Snapshot) error {
	snap.SavedAt = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
