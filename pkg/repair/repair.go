package repair

import (
	"context"
	"errors"
	"fmt"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
	gprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/pm2"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

// Repairer 执行服务级的本地修复动作。
// 修复是幂等的：对一个健康的服务重复调用不会把它修坏。
// 修复永不返回 error——命令失败降级为 StatusFail 并记日志。
type Repairer struct {
	run    runner.Runner
	pm2    *pm2.Client
	prober *probe.Prober

	// sleep 可注入，测试里替换掉真实等待
	sleep func(time.Duration)
}

// NewRepairer 创建修复器。
func NewRepairer(run runner.Runner, pm2c *pm2.Client, prober *probe.Prober) *Repairer {
	return &Repairer{run: run, pm2: pm2c, prober: prober, sleep: time.Sleep}
}

// Repair 对单个服务执行修复，返回修复后复测的状态。
// 流程：清理占端口的残留进程 → 主重启动作 → 静置 → 复测。
// 每一步只作用于该服务自己的进程，绝不波及其它服务。
func (r *Repairer) Repair(ctx context.Context, svc config.Service) probe.Status {
	if svc.Repair.Port > 0 {
		r.freePort(svc.Repair.Port)
	}

	if err := r.restart(ctx, svc); err != nil {
		fmt.Printf("❌ 服务 '%s' 修复动作失败: %v\n", svc.Name, err)
		return probe.StatusFail
	}

	// 等服务起来再复测，立刻探测多半还是 fail
	r.sleep(time.Duration(svc.Repair.SettleSec) * time.Second)

	return r.prober.Check(ctx, svc)
}

// restart 执行该服务配置的主重启动作。
func (r *Repairer) restart(ctx context.Context, svc config.Service) error {
	switch {
	case svc.Repair.Pm2Name != "":
		err := r.pm2.Restart(ctx, svc.Repair.Pm2Name)
		if errors.Is(err, pm2.ErrNotRegistered) && svc.Repair.EcosystemPath != "" {
			// 进程不在 pm2 里是可恢复状态：从描述文件重新注册
			fmt.Printf("♻️ 服务 '%s' 未注册于 pm2，从 %s 重新注册...\n",
				svc.Name, svc.Repair.EcosystemPath)
			return r.pm2.StartEcosystem(ctx, svc.Repair.EcosystemPath, svc.Repair.Pm2Name)
		}
		return err

	case svc.Repair.Unit != "":
		res := r.run.Run(ctx, 60*time.Second, "systemctl", "restart", svc.Repair.Unit)
		if !res.Success {
			return fmt.Errorf("systemctl restart %s failed: %s", svc.Repair.Unit, res.Stderr)
		}
		return nil

	default:
		return fmt.Errorf("service has no repair action configured")
	}
}

// freePort 找到监听指定 TCP 端口的进程并强制终止。
// 端口没被占用、进程已消失都视为正常，全部错误被容忍。
func (r *Repairer) freePort(port int) {
	conns, err := gnet.Connections("tcp")
	if err != nil {
		fmt.Printf("⚠️ 查询端口 %d 占用失败: %v\n", port, err)
		return
	}

	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(port) || conn.Pid <= 0 {
			continue
		}
		proc, err := gprocess.NewProcess(conn.Pid)
		if err != nil {
			continue // 进程已经不在了
		}
		if err := proc.Kill(); err != nil {
			fmt.Printf("⚠️ 终止端口 %d 的占用进程 (PID=%d) 失败: %v\n", port, conn.Pid, err)
		} else {
			fmt.Printf("⚡ 已终止占用端口 %d 的残留进程 (PID=%d)\n", port, conn.Pid)
		}
	}
}
