package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_Success(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), 5*time.Second, "sh", "-c", "echo hello; echo oops >&2")

	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, "oops", res.Stderr)
}

// 非零退出码不是 error，而是结果的一部分。
func TestRun_NonZeroExit(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), 5*time.Second, "sh", "-c", "exit 3")

	assert.False(t, res.Success)
	assert.False(t, res.TimedOut)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	res := ExecRunner{}.Run(context.Background(), 200*time.Millisecond, "sleep", "10")

	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	// 卡死的外部命令必须被及时杀掉，不能拖住整个检查周期
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_MissingBinary(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), time.Second, "definitely-not-a-command-xyz")

	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
}
