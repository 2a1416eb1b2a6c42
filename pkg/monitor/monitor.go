package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/notify"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
	"github.com/tornado1014/openclaw-kakao/pkg/state"
)

// Prober 是探测器的最小接口，便于测试注入。
type Prober interface {
	Check(ctx context.Context, svc config.Service) probe.Status
}

// Repairer 是修复器的最小接口。
type Repairer interface {
	Repair(ctx context.Context, svc config.Service) probe.Status
}

// Notifier 是通知器的最小接口。
type Notifier interface {
	Notify(ctx context.Context, title, message, priority string) []notify.SendResult
}

// CycleResult 是一个检查周期对外可见的结果。
type CycleResult struct {
	Statuses map[string]probe.Status // 周期结束时的逐服务状态
	Repaired []string                // 本周期被本地修复救回的服务
	Failed   []string                // 走完全部流程后仍然失败的服务
	Attempt  bool                    // 本周期是否真正执行了升级
	Duration time.Duration
}

// AllHealthy 判断结果中每个未禁用的服务是否都是 ok。
func (r CycleResult) AllHealthy() bool {
	for _, st := range r.Statuses {
		if st != probe.StatusOK && st != probe.StatusDisabled {
			return false
		}
	}
	return true
}

// Monitor 是检查周期的编排器，也是唯一允许写服务状态的组件。
// 状态快照由调用方显式传入，这里不持有任何隐式全局状态。
type Monitor struct {
	cfg      *config.Config
	prober   Prober
	repairer Repairer
	notifier Notifier
	run      runner.Runner // 升级脚本的执行通道

	// now 可注入，测试中用假时钟验证冷却与预算
	now func() time.Time
}

// New 创建编排器。
func New(cfg *config.Config, prober Prober, repairer Repairer, notifier Notifier, run runner.Runner) *Monitor {
	return &Monitor{
		cfg:      cfg,
		prober:   prober,
		repairer: repairer,
		notifier: notifier,
		run:      run,
		now:      time.Now,
	}
}

// RunCycle 执行一个完整的检查周期。
//
// 顺序保证：所有探测结束 → 所有修复结束 → 评估升级 → 计算最终状态。
// 升级绝不会看到一个修复到一半的服务。
func (m *Monitor) RunCycle(ctx context.Context, snap *state.Snapshot) CycleResult {
	start := m.now()

	// 1. 并发探测所有服务（服务数量小而固定，不限扇出）
	proposed := m.probeAll(ctx)

	// 2. 对判定失败的服务并发执行本地修复
	repaired := m.repairAll(ctx, proposed)

	// 3. 顺序推进每个服务的状态迁移并发通知
	result := CycleResult{Statuses: make(map[string]probe.Status, len(m.cfg.Services))}
	var escalateNames []string

	for _, svc := range m.cfg.Services {
		rec := snap.Record(svc.Name)
		prev := rec.Status
		status := proposed[svc.Name]

		switch status {
		case probe.StatusDisabled:
			rec.Status = probe.StatusDisabled

		case probe.StatusOK:
			if prev == probe.StatusFail && m.cfg.Notify.OnRecover {
				m.notifyService(ctx, rec, svc.Name,
					fmt.Sprintf("✅ %s 已恢复", svc.Name),
					fmt.Sprintf("服务 '%s' 重新上线。", svc.Name),
					notify.PriorityDefault)
			}
			rec.Status = probe.StatusOK

		case probe.StatusFail:
			if after, ok := repaired[svc.Name]; ok && after == probe.StatusOK {
				// 本地修复救回：本周期按 ok 处理，不计入升级
				rec.Status = probe.StatusOK
				result.Repaired = append(result.Repaired, svc.Name)
				m.notifyService(ctx, rec, svc.Name,
					fmt.Sprintf("🔧 %s 已自动修复", svc.Name),
					fmt.Sprintf("服务 '%s' 探测失败，本地修复成功。", svc.Name),
					notify.PriorityDefault)
				continue
			}

			if prev != probe.StatusFail {
				t := m.now()
				rec.LastFailureTime = &t
			}
			rec.Status = probe.StatusFail
			escalateNames = append(escalateNames, svc.Name)
		}
	}

	// 4. 有服务修不好时，整个周期只评估一次升级
	if len(escalateNames) > 0 {
		result.Attempt = m.escalate(ctx, snap, escalateNames)
	}

	// 5. 汇总最终状态
	for _, svc := range m.cfg.Services {
		st := snap.Record(svc.Name).Status
		result.Statuses[svc.Name] = st
		if st == probe.StatusFail {
			result.Failed = append(result.Failed, svc.Name)
		}
	}
	sort.Strings(result.Failed)

	// 6. 全员健康的周期无条件清零升级预算
	if result.AllHealthy() {
		snap.Escalation.AttemptCount = 0
	}

	result.Duration = m.now().Sub(start)
	return result
}

// probeAll 并发运行所有探测，等全部返回后给出建议状态。
func (m *Monitor) probeAll(ctx context.Context) map[string]probe.Status {
	statuses := make([]probe.Status, len(m.cfg.Services))

	var wg sync.WaitGroup
	for i, svc := range m.cfg.Services {
		wg.Add(1)
		go func(i int, svc config.Service) {
			defer wg.Done()
			statuses[i] = m.prober.Check(ctx, svc)
		}(i, svc)
	}
	wg.Wait()

	proposed := make(map[string]probe.Status, len(m.cfg.Services))
	for i, svc := range m.cfg.Services {
		proposed[svc.Name] = statuses[i]
	}
	return proposed
}

// repairAll 对探测失败的服务并发执行本地修复，返回逐服务的复测结果。
// 全局关闭自动修复时直接返回空表。
// 不同服务的修复互相独立，可以并行；升级评估要等这里全部结束。
func (m *Monitor) repairAll(ctx context.Context, proposed map[string]probe.Status) map[string]probe.Status {
	results := make(map[string]probe.Status)
	if !m.cfg.Settings.AutoRepair {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, svc := range m.cfg.Services {
		if proposed[svc.Name] != probe.StatusFail {
			continue
		}
		wg.Add(1)
		go func(svc config.Service) {
			defer wg.Done()
			fmt.Printf("🔧 服务 '%s' 探测失败，尝试本地修复...\n", svc.Name)
			after := m.repairer.Repair(ctx, svc)

			mu.Lock()
			results[svc.Name] = after
			mu.Unlock()
		}(svc)
	}
	wg.Wait()
	return results
}

// notifyService 在冷却允许时发送一条关于单个服务的通知。
// 时间戳在发送之前就盖上：发送慢或失败都不会引起重试风暴。
func (m *Monitor) notifyService(ctx context.Context, rec *state.ServiceRecord, name, title, message, priority string) {
	cooldown := time.Duration(m.cfg.Notify.CooldownSec) * time.Second
	now := m.now()
	if !notify.ShouldNotify(rec.LastNotifyTime, now, cooldown) {
		fmt.Printf("🔇 服务 '%s' 处于通知冷却期，跳过通知\n", name)
		return
	}
	rec.LastNotifyTime = &now
	m.notifier.Notify(ctx, title, message, priority)
}

// summaryOf 把仍失败的服务名拼成一条告警正文。
func summaryOf(failed []string) string {
	return strings.Join(failed, ", ")
}
