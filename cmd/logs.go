package cmd

import (
	"fmt"
	"os"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
)

// logsCmd 代表 'logs' 命令：追踪 daemon 模式写出的周期日志。
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "追踪监控器的周期日志 📃",
	Long:  `类似 tail -f，持续打印 daemon 模式写入的 JSON 周期日志。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile := config.Cfg.Settings.LogFile

		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			fmt.Printf("📃 日志文件不存在，等待创建: %s\n", logFile)
		}

		// 使用 tail 库追踪日志文件
		t, err := tail.TailFile(logFile, tail.Config{
			ReOpen:    true,  // 文件被轮转时重新打开
			Follow:    true,  // 类似 tail -f
			MustExist: false, // 文件不存在时等待创建
		})
		if err != nil {
			return fmt.Errorf("无法追踪日志文件 '%s': %w", logFile, err)
		}

		fmt.Printf("👀 正在追踪 %s，按 Ctrl+C 退出\n", logFile)
		for line := range t.Lines {
			fmt.Println(line.Text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
}
