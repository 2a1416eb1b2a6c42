package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper" // 引入 viper 库
)

// Config 是整个配置文件的顶层结构。
// 每次调用加载一次，之后视为不可变，所有组件只读访问。
type Config struct {
	Settings   Settings       `mapstructure:"settings"`
	Services   []Service      `mapstructure:"services"`
	Notify     NotifyOptions  `mapstructure:"notify"`
	Escalation EscalateOption `mapstructure:"escalation"`
}

// Settings 结构体对应配置文件中的 'settings' 部分。
type Settings struct {
	IntervalSec     int        `mapstructure:"interval_sec"`      // daemon 模式的检查间隔
	AutoRepair      bool       `mapstructure:"auto_repair"`       // 探测失败后是否自动修复
	StatePath       string     `mapstructure:"state_path"`        // 持久化状态文件路径
	ProbeTimeoutSec int        `mapstructure:"probe_timeout_sec"` // 单次探测的超时上限
	LogFile         string     `mapstructure:"log_file"`          // daemon 模式的周期日志文件
	LogOptions      LogOptions `mapstructure:"log_options"`
}

// Service 结构体对应 'services' 列表中的每一个被监控服务。
type Service struct {
	Name    string `mapstructure:"name"`
	Route   string `mapstructure:"route"` // 运维视角的投递链路分组，仅用于汇总显示
	Enabled bool   `mapstructure:"enabled"`

	Probe  ProbeOptions  `mapstructure:"probe"`
	Repair RepairOptions `mapstructure:"repair"`
}

// ProbeOptions 描述如何判断一个服务是否存活。
type ProbeOptions struct {
	// Kind 取值: http / pm2 / systemd
	Kind string `mapstructure:"kind"`

	// http 探测参数。FailStatus 是判定失败的状态码下限：
	// 响应码 >= FailStatus 视为失败，低于它（包括 3xx/401）视为存活。
	// 未配置时默认 500。这个分界线是策略而不是协议，所以做成可配置。
	URL        string `mapstructure:"url"`
	FailStatus int    `mapstructure:"fail_status"`

	// pm2 探测参数：pm2 进程名。
	Pm2Name string `mapstructure:"pm2_name"`

	// systemd 探测参数：服务单元名。
	Unit string `mapstructure:"unit"`

	// 单服务超时覆盖（秒），0 表示使用全局 ProbeTimeoutSec。
	TimeoutSec int `mapstructure:"timeout_sec"`
}

// RepairOptions 描述服务探测失败后的本地修复动作。
type RepairOptions struct {
	// Port 大于 0 时，修复前先找到占用该端口的进程并强制终止，
	// 用于清理卡住的残留进程。找不到占用者不算错误。
	Port int `mapstructure:"port"`

	// pm2 修复参数：重启的进程名，以及该进程未注册时
	// 用来注册的 ecosystem 描述文件路径。
	Pm2Name       string `mapstructure:"pm2_name"`
	EcosystemPath string `mapstructure:"ecosystem_path"`

	// systemd 修复参数：重启的服务单元名。
	Unit string `mapstructure:"unit"`

	// 重启后的静置时间（秒），等服务起来再复测。
	SettleSec int `mapstructure:"settle_sec"`
}

// NotifyOptions 对应 'notify' 部分，配置告警通道。
type NotifyOptions struct {
	CooldownSec int  `mapstructure:"cooldown_sec"` // 同一服务两次通知的最小间隔
	OnRecover   bool `mapstructure:"on_recover"`   // 服务恢复时是否也发通知

	Ntfy  NtfyOptions `mapstructure:"ntfy"`
	Local bool        `mapstructure:"local"` // 本机桌面通知 (notify-send)
}

// NtfyOptions 是 ntfy 推送通道的参数。
type NtfyOptions struct {
	URL      string `mapstructure:"url"` // 完整 topic 地址，留空则禁用该通道
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
}

// EscalateOption 对应 'escalation' 部分，配置外部恢复脚本的升级策略。
type EscalateOption struct {
	Enabled     bool   `mapstructure:"enabled"`
	CooldownSec int    `mapstructure:"cooldown_sec"` // 两次升级的最小间隔
	MaxRetries  int    `mapstructure:"max_retries"`  // 连续升级次数上限
	ScriptPath  string `mapstructure:"script_path"`  // 外部恢复脚本，以 --repair 调用
	TimeoutSec  int    `mapstructure:"timeout_sec"`  // 脚本超时
}

// LogOptions 结构体对应 'log_options' 部分，用于配置日志轮转。
type LogOptions struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
	LocalTime  bool `mapstructure:"localTime"`
}

// Cfg 是一个指向 Config 实例的全局指针，用于在程序各处访问配置。
var Cfg *Config

// fallbackFiles 是未指定 --config 时按优先级尝试的配置文件。
var fallbackFiles = []string{
	"config.yaml",
	"config.default.yaml",
	"config.example.yaml",
}

// LoadConfig 使用 Viper 读取和解析配置文件。
// path 为空时按 fallbackFiles 的顺序逐个尝试；三个候选都不存在
// 属于致命的启动错误——监控器带着未定义的配置运行毫无意义。
func LoadConfig(path string) error {
	resolved, err := resolveConfigFile(path)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(resolved)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", resolved, err)
	}
	// 反序列化入全局变量
	if err := v.Unmarshal(&Cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config %s: %w", resolved, err)
	}

	applyDefaults(Cfg)

	if len(Cfg.Services) == 0 {
		return fmt.Errorf("config %s defines no services", resolved)
	}
	return nil
}

// resolveConfigFile 按优先级确定实际使用的配置文件。
func resolveConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s not found: %w", path, err)
		}
		return path, nil
	}

	for _, candidate := range fallbackFiles {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file found (tried: %v)", fallbackFiles)
}

// applyDefaults 为未配置的字段填入合理默认值。
func applyDefaults(cfg *Config) {
	if cfg.Settings.IntervalSec <= 0 {
		cfg.Settings.IntervalSec = 60
	}
	if cfg.Settings.ProbeTimeoutSec <= 0 {
		cfg.Settings.ProbeTimeoutSec = 10
	}
	if cfg.Settings.StatePath == "" {
		cfg.Settings.StatePath = "/tmp/openclaw-kakao/monitor_state.json"
	}
	if cfg.Settings.LogFile == "" {
		cfg.Settings.LogFile = "/tmp/openclaw-kakao/monitor.log"
	}
	if cfg.Notify.CooldownSec <= 0 {
		cfg.Notify.CooldownSec = 600
	}
	if cfg.Escalation.CooldownSec <= 0 {
		cfg.Escalation.CooldownSec = 1800
	}
	if cfg.Escalation.MaxRetries <= 0 {
		cfg.Escalation.MaxRetries = 3
	}
	if cfg.Escalation.TimeoutSec <= 0 {
		// 恢复脚本可能依次重启多个服务，超时要给足
		cfg.Escalation.TimeoutSec = 120
	}
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if svc.Probe.Kind == "http" && svc.Probe.FailStatus <= 0 {
			svc.Probe.FailStatus = 500
		}
		if svc.Repair.SettleSec <= 0 {
			svc.Repair.SettleSec = 3
		}
		if svc.Route == "" {
			svc.Route = "default"
		}
	}
}
