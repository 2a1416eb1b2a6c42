package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Result 表示一次外部命令执行的结果。
// 命令本身失败（非零退出码、超时）不作为 error 返回，
// 而是体现在 Success/ExitCode 上，由调用方决定如何处理。
type Result struct {
	Success  bool // 退出码为 0 且未超时
	TimedOut bool // 是否因超时被杀
	ExitCode int  // 进程退出码，无法获取时为 -1
	Stdout   string
	Stderr   string
}

// Runner 执行外部命令。做成接口是为了让上层在测试中注入假的执行器。
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) Result
}

// ExecRunner 是基于 os/exec 的默认实现。
type ExecRunner struct{}

// Run 在给定超时内执行命令并捕获输出。
// 超时通过 context 实现，到期后进程会被强制终止，
// 避免一个卡死的外部命令拖垮整个检查周期。
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if ctx.Err() != nil {
		result.TimedOut = true
		result.ExitCode = -1
		return result
	}

	if err == nil {
		result.Success = true
		result.ExitCode = 0
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		// 命令根本没能启动（比如可执行文件不存在）
		result.ExitCode = -1
	}
	return result
}
