package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
	"github.com/tornado1014/openclaw-kakao/pkg/state"
)

// statusCmd 代表 'status' 命令：只读持久化快照，不做任何在线探测。
// 用来快速回答"看门狗最近一次看到的世界是什么样"。
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示最近一次检查的持久化状态，不做在线探测 📋",
	Long: `读取状态文件并以表格展示每个服务的最近已知状态和时间。
同时查看 crontab 里的看门狗计划任务，确认外部调度还在。
这个命令不会探测任何服务，结果的新鲜程度以快照时间为准。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap := state.Load(config.Cfg.Settings.StatePath)

		if snap.SavedAt.IsZero() {
			fmt.Println("🤔 还没有持久化状态，先运行一次 check 或 watchdog。")
			return nil
		}
		fmt.Printf("📋 快照时间: %s (%s前)\n\n",
			snap.SavedAt.Format("2006-01-02 15:04:05"), formatAge(snap.SavedAt))

		table := tablewriter.NewTable(os.Stdout)
		table.Header("服务", "链路", "状态", "最近失败", "最近通知")

		for _, svc := range config.Cfg.Services {
			rec, ok := snap.Services[svc.Name]
			if !ok {
				rec = &state.ServiceRecord{Status: probe.StatusUnknown}
			}
			table.Append([]string{
				svc.Name,
				svc.Route,
				string(rec.Status),
				formatAgePtr(rec.LastFailureTime),
				formatAgePtr(rec.LastNotifyTime),
			})
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("render status table: %w", err)
		}

		esc := snap.Escalation
		fmt.Printf("\n升级簿记: 连续尝试 %d/%d 次", esc.AttemptCount, config.Cfg.Escalation.MaxRetries)
		if esc.LastEscalationTime != nil {
			fmt.Printf("，最近一次 %s前", formatAge(*esc.LastEscalationTime))
		}
		fmt.Println()

		printCrontabView()
		return nil
	},
}

// printCrontabView 展示外部调度器对看门狗任务的视角，尽力而为。
func printCrontabView() {
	res := runner.ExecRunner{}.Run(context.Background(), 5*time.Second, "crontab", "-l")
	if !res.Success {
		fmt.Println("\n⚠️ 无法读取 crontab（可能未配置计划任务）")
		return
	}

	fmt.Println("\n⏱️ crontab 中的看门狗任务:")
	found := false
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.Contains(line, "watchdog") {
			fmt.Printf("   %s\n", line)
			found = true
		}
	}
	if !found {
		fmt.Println("   (没有找到包含 watchdog 的条目)")
	}
}

// formatAge 把时间换算成 "3m" / "2h" 这样的相对时长。
func formatAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%.1fh", age.Hours())
	default:
		return fmt.Sprintf("%.1fd", age.Hours()/24)
	}
}

func formatAgePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatAge(*t) + "前"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
