package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/monitor"
	"github.com/tornado1014/openclaw-kakao/pkg/state"
)

// daemonCmd 代表 'daemon' 命令：长驻进程，按固定间隔循环检查。
// 适合交给进程管理器托管。
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "启动守护模式，周期性检查并自动修复服务 🛡️",
	Long: `这是一个长期运行的命令。它按配置的间隔执行与 check 相同的检查周期，
每轮结果写入轮转日志文件。周期之间严格串行：
上一轮的状态落盘之后，下一轮才会开始。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval := config.Cfg.Settings.IntervalSec
		fmt.Printf("✅ openclaw-monitor 守护模式已启动，每 %d 秒检查一次 (按 Ctrl+C 退出)\n", interval)

		m, _ := buildMonitor()
		snap := state.Load(config.Cfg.Settings.StatePath)

		// 周期日志走 lumberjack 轮转，避免长驻进程写爆磁盘
		logOpts := config.Cfg.Settings.LogOptions
		cycleLog := monitor.NewCycleLogger(&lumberjack.Logger{
			Filename:   config.Cfg.Settings.LogFile,
			MaxSize:    logOpts.MaxSizeMB,
			MaxBackups: logOpts.MaxBackups,
			MaxAge:     logOpts.MaxAgeDays,
			Compress:   logOpts.Compress,
			LocalTime:  logOpts.LocalTime,
		})

		// 创建定时器，每 interval 秒触发一次
		ticker := time.NewTicker(time.Duration(interval) * time.Second)
		defer ticker.Stop()

		// 捕获退出信号
		quitChannel := make(chan os.Signal, 1)
		signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

		runOnce := func() {
			result := m.RunCycle(cmd.Context(), snap)
			if err := state.Save(config.Cfg.Settings.StatePath, snap); err != nil {
				fmt.Printf("⚠️ 状态保存失败: %v\n", err)
			}
			cycleLog.Log(result)
			printRouteSummary(result.Statuses)
		}

		// 立即执行一次检查
		runOnce()

		// 主循环
		for {
			select {
			case <-ticker.C:
				fmt.Println("\n⏰ [TICK] 周期性检查开始...")
				runOnce()
			case <-quitChannel:
				fmt.Println("\n🛑 收到退出信号，正在关闭守护进程...")
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
