package pm2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

// ErrNotRegistered 表示目标进程不在 pm2 的进程表里。
// 这是一个可恢复的状态：调用方应改用 ecosystem 描述文件重新注册，
// 而不是当作致命错误。
var ErrNotRegistered = errors.New("process not registered with pm2")

// Proc 是 `pm2 jlist` 输出中我们关心的字段。
type Proc struct {
	Name string  `json:"name"`
	Pid  int     `json:"pid"`
	Env  ProcEnv `json:"pm2_env"`
}

// ProcEnv 是 pm2_env 里的运行状态子集。
type ProcEnv struct {
	Status string `json:"status"` // online / stopped / errored / ...
}

// Client 封装 pm2 的控制面命令。
type Client struct {
	run     runner.Runner
	timeout time.Duration
}

// NewClient 创建一个 pm2 客户端。
func NewClient(run runner.Runner) *Client {
	return &Client{run: run, timeout: 30 * time.Second}
}

// List 返回 pm2 当前管理的所有进程。
func (c *Client) List(ctx context.Context) ([]Proc, error) {
	res := c.run.Run(ctx, c.timeout, "pm2", "jlist")
	if !res.Success {
		return nil, fmt.Errorf("pm2 jlist failed: %s", firstLine(res.Stderr))
	}

	var procs []Proc
	if err := json.Unmarshal([]byte(res.Stdout), &procs); err != nil {
		return nil, fmt.Errorf("parse pm2 jlist output: %w", err)
	}
	return procs, nil
}

// IsOnline 查询指定进程是否在 pm2 中且状态为 online。
func (c *Client) IsOnline(ctx context.Context, name string) (bool, error) {
	procs, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		if p.Name == name {
			return p.Env.Status == "online", nil
		}
	}
	return false, ErrNotRegistered
}

// Restart 重启 pm2 管理的进程。
// 进程未注册时返回 ErrNotRegistered，调用方据此走注册流程。
func (c *Client) Restart(ctx context.Context, name string) error {
	res := c.run.Run(ctx, c.timeout, "pm2", "restart", name)
	if res.Success {
		return nil
	}
	// pm2 对不存在的进程输出 "Process or Namespace ... not found"
	combined := res.Stdout + res.Stderr
	if strings.Contains(combined, "not found") {
		return ErrNotRegistered
	}
	return fmt.Errorf("pm2 restart %s failed: %s", name, firstLine(res.Stderr))
}

// StartEcosystem 用 ecosystem 描述文件注册并启动进程。
// only 非空时只启动其中的一个进程。
func (c *Client) StartEcosystem(ctx context.Context, path, only string) error {
	args := []string{"start", path}
	if only != "" {
		args = append(args, "--only", only)
	}
	res := c.run.Run(ctx, c.timeout, "pm2", args...)
	if !res.Success {
		return fmt.Errorf("pm2 start %s failed: %s", path, firstLine(res.Stderr))
	}
	return nil
}

// Ping 检查 pm2 守护进程本身是否存活。
func (c *Client) Ping(ctx context.Context) bool {
	res := c.run.Run(ctx, 10*time.Second, "pm2", "ping")
	return res.Success
}

// firstLine 截取错误输出的第一行，避免把整屏 pm2 横幅塞进错误信息。
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "(no output)"
	}
	return s
}
