package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/pm2"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

// Status 是一次探测得出的服务状态。
type Status string

const (
	StatusUnknown  Status = "unknown"  // 从未探测过
	StatusOK       Status = "ok"       // 存活
	StatusFail     Status = "fail"     // 探测失败
	StatusDisabled Status = "disabled" // 配置中被禁用，不探测不修复不升级
)

// Prober 持有各类探测所需的客户端。
// 探测是纯只读操作：不修改任何状态，不抛出异常，
// 一切异常路径（超时、连接拒绝、命令失败）都折叠为 StatusFail。
type Prober struct {
	client  *http.Client
	pm2     *pm2.Client
	run     runner.Runner
	timeout time.Duration // 全局默认探测超时
}

// NewProber 创建探测器。
func NewProber(run runner.Runner, pm2c *pm2.Client, timeout time.Duration) *Prober {
	return &Prober{
		client:  &http.Client{},
		pm2:     pm2c,
		run:     run,
		timeout: timeout,
	}
}

// Check 对单个服务执行一次有界时探测。
// 禁用的服务在任何 I/O 之前直接返回 StatusDisabled。
func (p *Prober) Check(ctx context.Context, svc config.Service) Status {
	if !svc.Enabled {
		return StatusDisabled
	}

	timeout := p.timeout
	if svc.Probe.TimeoutSec > 0 {
		timeout = time.Duration(svc.Probe.TimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch svc.Probe.Kind {
	case "http":
		return p.checkHTTP(ctx, svc)
	case "pm2":
		return p.checkPm2(ctx, svc)
	case "systemd":
		return p.checkSystemd(ctx, svc, timeout)
	default:
		// 配置错误按失败处理，而不是让监控器崩溃
		fmt.Printf("⚠️ 服务 '%s' 的探测类型未知: %q\n", svc.Name, svc.Probe.Kind)
		return StatusFail
	}
}

// checkHTTP 发送一次 GET 请求。
// 注意：只要拿到响应且状态码低于 FailStatus 就算存活——
// bridge 的管理页对未登录请求返回 302/401，但这恰恰证明进程活着。
func (p *Prober) checkHTTP(ctx context.Context, svc config.Service) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.Probe.URL, nil)
	if err != nil {
		return StatusFail
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return StatusFail
	}
	defer resp.Body.Close()

	if resp.StatusCode < svc.Probe.FailStatus {
		return StatusOK
	}
	return StatusFail
}

// checkPm2 查询 pm2 进程表中的运行状态。
func (p *Prober) checkPm2(ctx context.Context, svc config.Service) Status {
	online, err := p.pm2.IsOnline(ctx, svc.Probe.Pm2Name)
	if err != nil || !online {
		return StatusFail
	}
	return StatusOK
}

// checkSystemd 通过 systemctl is-active 查询系统服务状态。
func (p *Prober) checkSystemd(ctx context.Context, svc config.Service, timeout time.Duration) Status {
	res := p.run.Run(ctx, timeout, "systemctl", "is-active", "--quiet", svc.Probe.Unit)
	if res.Success {
		return StatusOK
	}
	return StatusFail
}
