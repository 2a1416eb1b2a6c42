package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/pm2"
	"github.com/tornado1014/openclaw-kakao/pkg/state"
)

// watchdogCmd 代表 'watchdog' 命令：无长驻进程的单次看门狗。
// 设计给外部调度器（cron / 系统计划任务）周期性拉起：
// 加载状态 → 确认 pm2 守护进程活着 → 跑一轮检查 → 保存状态 → 退出。
// 冷却与升级预算全靠状态文件在两次调用之间存活。
var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "单次看门狗运行，给外部调度器触发 ⏱️",
	Long: `加载持久化状态后先检查 pm2 守护进程本身：如果 pm2 都死了，
所有托管进程一并失联，此时直接用 ecosystem 描述文件整体拉起。
然后执行一轮普通检查周期并保存状态。
同一时刻只允许一个监控实例运行，由调度方保证不重叠。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, pm2c := buildMonitor()
		ctx := cmd.Context()

		snap := state.Load(config.Cfg.Settings.StatePath)

		// pm2 本体的存活是所有 pm2 托管服务的前提
		if !pm2c.Ping(ctx) {
			fmt.Println("🚨 pm2 守护进程无响应，尝试从 ecosystem 描述文件整体拉起...")
			bootstrapEcosystems(ctx, pm2c)
		}

		result := m.RunCycle(ctx, snap)

		if err := state.Save(config.Cfg.Settings.StatePath, snap); err != nil {
			fmt.Printf("⚠️ 状态保存失败: %v\n", err)
		}

		printRouteSummary(result.Statuses)
		return nil
	},
}

// bootstrapEcosystems 把配置里出现过的每个 ecosystem 描述文件
// 各注册启动一次（不带 --only，整组拉起）。失败只记日志，
// 后面的检查周期会对每个服务逐个兜底。
func bootstrapEcosystems(ctx context.Context, pm2c *pm2.Client) {
	seen := make(map[string]bool)
	for _, svc := range config.Cfg.Services {
		path := svc.Repair.EcosystemPath
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true

		if err := pm2c.StartEcosystem(ctx, path, ""); err != nil {
			fmt.Printf("❌ 拉起 ecosystem '%s' 失败: %v\n", path, err)
		} else {
			fmt.Printf("⚡ 已从 '%s' 拉起托管进程\n", path)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchdogCmd)
}
