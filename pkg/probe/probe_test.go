package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/pm2"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

// fakeRunner 按完整命令行返回预设结果，默认成功。
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

func httpService(url string, failStatus int) config.Service {
	return config.Service{
		Name:    "bridge",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "http", URL: url, FailStatus: failStatus},
	}
}

func newTestProber(run runner.Runner) *Prober {
	return NewProber(run, pm2.NewClient(run), 5*time.Second)
}

func TestCheckHTTP_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestProber(&fakeRunner{})
	assert.Equal(t, StatusOK, p.Check(context.Background(), httpService(srv.URL, 500)))
}

func TestCheckHTTP_ServerErrorIsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newTestProber(&fakeRunner{})
	assert.Equal(t, StatusFail, p.Check(context.Background(), httpService(srv.URL, 500)))
}

// 401 证明进程活着：低于 fail_status 的任何响应都算存活。
func TestCheckHTTP_AuthRequiredStillAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProber(&fakeRunner{})
	assert.Equal(t, StatusOK, p.Check(context.Background(), httpService(srv.URL, 500)))
}

// 分界线是每个服务的策略，可以配置得更严格。
func TestCheckHTTP_CustomThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProber(&fakeRunner{})
	assert.Equal(t, StatusFail, p.Check(context.Background(), httpService(srv.URL, 400)))
}

func TestCheckHTTP_ConnectionRefused(t *testing.T) {
	p := newTestProber(&fakeRunner{})
	// 没人监听的端口
	assert.Equal(t, StatusFail, p.Check(context.Background(), httpService("http://127.0.0.1:1", 500)))
}

func TestCheck_DisabledShortCircuits(t *testing.T) {
	run := &fakeRunner{}
	p := newTestProber(run)

	svc := config.Service{
		Name:    "tunnel",
		Enabled: false,
		Probe:   config.ProbeOptions{Kind: "systemd", Unit: "kakao-tunnel.service"},
	}

	assert.Equal(t, StatusDisabled, p.Check(context.Background(), svc))
	// 禁用的服务不做任何 I/O
	assert.Empty(t, run.calls)
}

func TestCheckSystemd(t *testing.T) {
	svc := config.Service{
		Name:    "tunnel",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "systemd", Unit: "kakao-tunnel.service"},
	}

	run := &fakeRunner{}
	p := newTestProber(run)
	assert.Equal(t, StatusOK, p.Check(context.Background(), svc))

	run = &fakeRunner{results: map[string]runner.Result{
		"systemctl is-active --quiet kakao-tunnel.service": {Success: false, ExitCode: 3},
	}}
	p = newTestProber(run)
	assert.Equal(t, StatusFail, p.Check(context.Background(), svc))
}

func TestCheckPm2(t *testing.T) {
	svc := config.Service{
		Name:    "bot",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "pm2", Pm2Name: "kakao-bot"},
	}

	online := &fakeRunner{results: map[string]runner.Result{
		"pm2 jlist": {Success: true, ExitCode: 0,
			Stdout: `[{"name":"kakao-bot","pid":123,"pm2_env":{"status":"online"}}]`},
	}}
	assert.Equal(t, StatusOK, newTestProber(online).Check(context.Background(), svc))

	stopped := &fakeRunner{results: map[string]runner.Result{
		"pm2 jlist": {Success: true, ExitCode: 0,
			Stdout: `[{"name":"kakao-bot","pid":0,"pm2_env":{"status":"stopped"}}]`},
	}}
	assert.Equal(t, StatusFail, newTestProber(stopped).Check(context.Background(), svc))

	// 进程根本不在 pm2 里
	missing := &fakeRunner{results: map[string]runner.Result{
		"pm2 jlist": {Success: true, ExitCode: 0, Stdout: `[]`},
	}}
	assert.Equal(t, StatusFail, newTestProber(missing).Check(context.Background(), svc))
}

func TestCheck_UnknownKindIsFail(t *testing.T) {
	svc := config.Service{
		Name:    "weird",
		Enabled: true,
		Probe:   config.ProbeOptions{Kind: "telepathy"},
	}
	p := newTestProber(&fakeRunner{})
	assert.Equal(t, StatusFail, p.Check(context.Background(), svc))
}
