package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/monitor"
	"github.com/tornado1014/openclaw-kakao/pkg/notify"
	"github.com/tornado1014/openclaw-kakao/pkg/pm2"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/repair"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

var (
	cfgFile string
)

// rootCmd 代表了我们应用的基础命令，没有任何子命令时被调用
var rootCmd = &cobra.Command{
	Use:   "openclaw-monitor",
	Short: "openclaw-kakao 消息链路的自愈监控工具 🛡️",
	Long: `openclaw-monitor 周期性探测 bridge、bot、watcher、tunnel 等服务，
失败时先做服务级本地修复，修不好再按冷却与次数预算触发外部恢复脚本，
并通过 ntfy / 桌面通知告警。状态持久化到磁盘，支持被外部调度器一次性触发。`,
	// 配置缺失是唯一允许直接退出进程的错误：
	// 监控器带着未定义的配置运行比不运行更糟
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadConfig(cfgFile)
	},
}

// Execute 将所有子命令添加到根命令中，并设置相应的标志。
// 这是 main.main() 调用的主要函数。
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"配置文件路径 (默认按 config.yaml → config.default.yaml → config.example.yaml 顺序查找)")
}

// buildMonitor 组装一次调用所需的全部组件。
// 配置此时已经加载完成，组件之间只在这里接线。
func buildMonitor() (*monitor.Monitor, *pm2.Client) {
	run := runner.ExecRunner{}
	pm2c := pm2.NewClient(run)
	prober := probe.NewProber(run, pm2c,
		time.Duration(config.Cfg.Settings.ProbeTimeoutSec)*time.Second)
	repairer := repair.NewRepairer(run, pm2c, prober)
	notifier := notify.New(config.Cfg.Notify, run)

	return monitor.New(config.Cfg, prober, repairer, notifier, run), pm2c
}
