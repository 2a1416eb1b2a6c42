package repair

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/pm2"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

type fakeRunner struct {
	mu      sync.Mutex
	results map[string]runner.Result
	calls   []string
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) runner.Result {
	key := name
	for _, a := range args {
		key += " " + a
	}

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if r, ok := f.results[key]; ok {
		return r
	}
	return runner.Result{Success: true, ExitCode: 0}
}

func newTestRepairer(run runner.Runner) *Repairer {
	pm2c := pm2.NewClient(run)
	prober := probe.NewProber(run, pm2c, 5*time.Second)
	r := NewRepairer(run, pm2c, prober)
	r.sleep = func(time.Duration) {} // 测试里不真等
	return r
}

func systemdService() config.Service {
	return config.Service{
		Name:    "tunnel",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "systemd", Unit: "kakao-tunnel.service"},
		Repair:  config.RepairOptions{Unit: "kakao-tunnel.service", SettleSec: 1},
	}
}

func TestRepair_SystemdSuccess(t *testing.T) {
	run := &fakeRunner{}

	status := newTestRepairer(run).Repair(context.Background(), systemdService())

	assert.Equal(t, probe.StatusOK, status)
	assert.Contains(t, run.calls, "systemctl restart kakao-tunnel.service")
	// 修复以复测结果收尾
	assert.Contains(t, run.calls, "systemctl is-active --quiet kakao-tunnel.service")
}

// 幂等性：对一个本来就健康的服务执行修复，结果仍是 ok，不报错。
func TestRepair_IdempotentOnHealthy(t *testing.T) {
	run := &fakeRunner{}
	r := newTestRepairer(run)
	svc := systemdService()

	assert.Equal(t, probe.StatusOK, r.Repair(context.Background(), svc))
	assert.Equal(t, probe.StatusOK, r.Repair(context.Background(), svc))
}

func TestRepair_RestartFails(t *testing.T) {
	run := &fakeRunner{results: map[string]runner.Result{
		"systemctl restart kakao-tunnel.service": {Success: false, ExitCode: 1, Stderr: "unit masked"},
	}}

	status := newTestRepairer(run).Repair(context.Background(), systemdService())

	assert.Equal(t, probe.StatusFail, status)
	// 重启都没成功就不必复测了
	assert.NotContains(t, run.calls, "systemctl is-active --quiet kakao-tunnel.service")
}

// 进程不在 pm2 里时回退到用 ecosystem 描述文件注册，而不是报错放弃。
func TestRepair_Pm2FallbackToEcosystem(t *testing.T) {
	run := &fakeRunner{results: map[string]runner.Result{
		"pm2 restart kakao-bot": {Success: false, ExitCode: 1,
			Stderr: "[PM2][ERROR] Process or Namespace kakao-bot not found"},
		"pm2 jlist": {Success: true,
			Stdout: `[{"name":"kakao-bot","pid":42,"pm2_env":{"status":"online"}}]`},
	}}

	svc := config.Service{
		Name:    "bot",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "pm2", Pm2Name: "kakao-bot"},
		Repair: config.RepairOptions{
			Pm2Name:       "kakao-bot",
			EcosystemPath: "/opt/eco.config.js",
			SettleSec:     1,
		},
	}

	status := newTestRepairer(run).Repair(context.Background(), svc)

	assert.Equal(t, probe.StatusOK, status)
	assert.Contains(t, run.calls, "pm2 start /opt/eco.config.js --only kakao-bot")
}

func TestRepair_NoActionConfigured(t *testing.T) {
	svc := config.Service{
		Name:    "orphan",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "http", URL: "http://localhost:1", FailStatus: 500},
	}

	run := &fakeRunner{}
	status := newTestRepairer(run).Repair(context.Background(), svc)

	require.Equal(t, probe.StatusFail, status)
	assert.Empty(t, run.calls)
}
