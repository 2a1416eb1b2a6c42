package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/notify"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/state"
)

// escalate 在本地修复救不回来时评估一次外部恢复升级。
// 每个周期至多调用一次，返回是否真正执行了升级脚本。
//
// 本地修复（杀一个进程、重启一个服务）便宜且安全，每个周期都可以试；
// 外部恢复脚本可能重启整棵进程树，昂贵且有破坏性，
// 所以受冷却时间和连续次数预算双重限制。
func (m *Monitor) escalate(ctx context.Context, snap *state.Snapshot, failed []string) bool {
	esc := &snap.Escalation
	now := m.now()

	if !m.cfg.Escalation.Enabled {
		fmt.Printf("🚨 服务修复失败且升级已禁用: %s\n", summaryOf(failed))
		m.notifyCritical(ctx, snap, fmt.Sprintf(
			"服务 %s 本地修复失败，升级恢复已禁用，需要人工介入。", summaryOf(failed)))
		return false
	}

	// 守卫一：冷却期内不升级，与尝试次数无关
	cooldown := time.Duration(m.cfg.Escalation.CooldownSec) * time.Second
	if esc.LastEscalationTime != nil && now.Sub(*esc.LastEscalationTime) < cooldown {
		fmt.Printf("🔇 距上次升级不足 %ds，本周期跳过升级 (失败服务: %s)\n",
			m.cfg.Escalation.CooldownSec, summaryOf(failed))
		return false
	}

	// 守卫二：连续升级次数封顶，等一个全员健康周期来清零
	if esc.AttemptCount >= m.cfg.Escalation.MaxRetries {
		fmt.Printf("🔇 升级已连续尝试 %d 次达到上限，跳过 (失败服务: %s)\n",
			esc.AttemptCount, summaryOf(failed))
		return false
	}

	// 正式升级：先记账再执行
	esc.LastEscalationTime = &now
	esc.AttemptCount++

	fmt.Printf("🚀 触发升级恢复 (第 %d/%d 次): %s --repair\n",
		esc.AttemptCount, m.cfg.Escalation.MaxRetries, m.cfg.Escalation.ScriptPath)

	timeout := time.Duration(m.cfg.Escalation.TimeoutSec) * time.Second
	res := m.run.Run(ctx, timeout, m.cfg.Escalation.ScriptPath, "--repair")

	if res.Success {
		fmt.Println("✅ 升级恢复脚本执行成功，复测所有服务...")
		esc.AttemptCount = 0
		m.reprobeAfterEscalation(ctx, snap)
		return true
	}

	if res.TimedOut {
		fmt.Printf("❌ 升级恢复脚本超时 (%ds)\n", m.cfg.Escalation.TimeoutSec)
	} else {
		fmt.Printf("❌ 升级恢复脚本失败 (退出码 %d)\n", res.ExitCode)
	}
	m.notifyCritical(ctx, snap, fmt.Sprintf(
		"升级恢复失败，以下服务仍不可用: %s。需要人工介入。", summaryOf(failed)))
	return true
}

// reprobeAfterEscalation 在升级成功后复测所有服务。
// 恢复脚本可能顺带救活别的服务，所以是全量复测而不是只测失败的那些。
// 之前失败、现在恢复的服务逐个发恢复通知。
func (m *Monitor) reprobeAfterEscalation(ctx context.Context, snap *state.Snapshot) {
	proposed := m.probeAll(ctx)

	for _, svc := range m.cfg.Services {
		rec := snap.Record(svc.Name)
		status := proposed[svc.Name]

		if status == probe.StatusOK && rec.Status == probe.StatusFail {
			rec.Status = probe.StatusOK
			m.notifyService(ctx, rec, svc.Name,
				fmt.Sprintf("✅ %s 升级修复成功", svc.Name),
				fmt.Sprintf("服务 '%s' 经升级恢复后重新上线。", svc.Name),
				notify.PriorityDefault)
		} else if status == probe.StatusFail {
			rec.Status = probe.StatusFail
		}
	}
}

// notifyCritical 发送 critical 级别告警。
// 用独立于普通服务通知的去重时间戳：未解决的事故允许
// 每个冷却周期重复提醒一次，避免告警静默。
func (m *Monitor) notifyCritical(ctx context.Context, snap *state.Snapshot, message string) {
	cooldown := time.Duration(m.cfg.Notify.CooldownSec) * time.Second
	now := m.now()
	if !notify.ShouldNotify(snap.Escalation.LastCriticalNotify, now, cooldown) {
		fmt.Println("🔇 critical 告警处于冷却期，跳过")
		return
	}
	snap.Escalation.LastCriticalNotify = &now
	m.notifier.Notify(ctx, "🚨 openclaw-kakao 服务异常", message, notify.PriorityUrgent)
}
