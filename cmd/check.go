package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/monitor"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/state"
)

// checkCmd 代表 'check' 命令：跑一轮完整的检查周期。
// 退出码 0 表示所有服务 ok 或已禁用，否则为 1，方便脚本串联。
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "执行一轮健康检查并按链路输出汇总 ⚡",
	Long: `并发探测所有已启用的服务，失败的先尝试本地修复，
修不好的按策略评估升级恢复，最后按投递链路分组输出结果。
冷却与升级预算记录在状态文件里，跨调用生效。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _ := buildMonitor()

		snap := state.Load(config.Cfg.Settings.StatePath)
		result := m.RunCycle(cmd.Context(), snap)

		// 持久化尽力而为，失败只记日志
		if err := state.Save(config.Cfg.Settings.StatePath, snap); err != nil {
			fmt.Printf("⚠️ 状态保存失败: %v\n", err)
		}

		printRouteSummary(result.Statuses)

		if !result.AllHealthy() {
			os.Exit(1)
		}
		return nil
	},
}

// printRouteSummary 按链路打印周期结果。
// 值班的人先看哪条链路断了，再看链路里具体哪个服务。
func printRouteSummary(statuses map[string]probe.Status) {
	fmt.Println()
	for _, route := range monitor.SummarizeRoutes(config.Cfg, statuses) {
		if route.Degraded {
			fmt.Printf("\033[31m🚨 链路 '%s' 异常\033[0m\n", route.Route)
		} else {
			fmt.Printf("\033[32m✔️ 链路 '%s' 正常\033[0m\n", route.Route)
		}

		for _, svc := range route.Services {
			switch svc.Status {
			case probe.StatusOK:
				fmt.Printf("   \033[32m✅ %s: ok\033[0m\n", svc.Name)
			case probe.StatusDisabled:
				fmt.Printf("   ⏸️ %s: disabled\n", svc.Name)
			case probe.StatusFail:
				fmt.Printf("   \033[31m❌ %s: fail\033[0m\n", svc.Name)
			default:
				fmt.Printf("   \033[33m❓ %s: unknown\033[0m\n", svc.Name)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
