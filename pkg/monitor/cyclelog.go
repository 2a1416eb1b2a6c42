package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/probe"
)

// CycleLogEntry 定义了 daemon 模式下周期日志的结构化格式。
type CycleLogEntry struct {
	Timestamp  string                  `json:"timestamp"` // 周期结束时间，ISO 8601 格式
	Statuses   map[string]probe.Status `json:"statuses"`  // 逐服务最终状态
	Repaired   []string                `json:"repaired,omitempty"`
	Failed     []string                `json:"failed,omitempty"`
	Escalated  bool                    `json:"escalated"`
	DurationMs int64                   `json:"duration_ms"`
}

// CycleLogger 把每个检查周期的结果以 JSON 行写入目标 writer。
// daemon 模式注入 lumberjack 的轮转文件；写失败只打到 stderr，
// 绝不影响检查周期本身。
type CycleLogger struct {
	w io.Writer
}

// NewCycleLogger 创建周期日志记录器。
func NewCycleLogger(w io.Writer) *CycleLogger {
	return &CycleLogger{w: w}
}

// Log 记录一个周期的结果。
func (l *CycleLogger) Log(result CycleResult) {
	entry := CycleLogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Statuses:   result.Statuses,
		Repaired:   result.Repaired,
		Failed:     result.Failed,
		Escalated:  result.Attempt,
		DurationMs: result.Duration.Milliseconds(),
	}

	jsonLine, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法序列化周期日志: %v\n", err)
		return
	}

	if _, err := l.w.Write(append(jsonLine, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "写入周期日志失败: %v\n", err)
	}
}
