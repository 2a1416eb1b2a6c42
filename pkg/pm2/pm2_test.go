package pm2

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestList(t *testing.T) {
	run := &fakeRunner{results: map[string]runner.Result{
		"pm2 jlist": {Success: true, Stdout: `[
			{"name":"kakao-bot","pid":123,"pm2_env":{"status":"online"}},
			{"name":"adb-watcher","pid":0,"pm2_env":{"status":"errored"}}
		]`},
	}}

	procs, err := NewClient(run).List(context.Background())

	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, "kakao-bot", procs[0].Name)
	assert.Equal(t, "online", procs[0].Env.Status)
	assert.Equal(t, "errored", procs[1].Env.Status)
}

func TestList_BadOutput(t *testing.T) {
	run := &fakeRunner{results: map[string]runner.Result{
		"pm2 jlist": {Success: true, Stdout: "not json"},
	}}

	_, err := NewClient(run).List(context.Background())
	assert.Error(t, err)
}

func TestIsOnline_NotRegistered(t *testing.T) {
	run := &fakeRunner{results: map[string]runner.Result{
		"pm2 jlist": {Success: true, Stdout: `[]`},
	}}

	_, err := NewClient(run).IsOnline(context.Background(), "kakao-bot")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRestart_NotFound(t *testing.T) {
	// pm2 对不存在的进程退出非零并输出 not found，
	// 必须映射为可恢复的 ErrNotRegistered 而不是普通错误
	run := &fakeRunner{results: map[string]runner.Result{
		"pm2 restart kakao-bot": {Success: false, ExitCode: 1,
			Stderr: "[PM2][ERROR] Process or Namespace kakao-bot not found"},
	}}

	err := NewClient(run).Restart(context.Background(), "kakao-bot")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRestart_OtherFailure(t *testing.T) {
	run := &fakeRunner{results: map[string]runner.Result{
		"pm2 restart kakao-bot": {Success: false, ExitCode: 1, Stderr: "daemon unreachable"},
	}}

	err := NewClient(run).Restart(context.Background(), "kakao-bot")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRegistered)
}

func TestStartEcosystem_Only(t *testing.T) {
	run := &fakeRunner{}
	client := NewClient(run)

	require.NoError(t, client.StartEcosystem(context.Background(), "/opt/eco.config.js", "kakao-bot"))
	require.Len(t, run.calls, 1)
	assert.Equal(t, "pm2 start /opt/eco.config.js --only kakao-bot", run.calls[0])

	require.NoError(t, client.StartEcosystem(context.Background(), "/opt/eco.config.js", ""))
	assert.Equal(t, "pm2 start /opt/eco.config.js", run.calls[1])
}

func TestPing(t *testing.T) {
	assert.True(t, NewClient(&fakeRunner{}).Ping(context.Background()))

	down := &fakeRunner{results: map[string]runner.Result{
		"pm2 ping": {Success: false, ExitCode: 1},
	}}
	assert.False(t, NewClient(down).Ping(context.Background()))
}
