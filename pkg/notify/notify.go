package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/runner"
)

// 预定义的告警等级，对应 ntfy 的 priority 头。
const (
	PriorityDefault = "default"
	PriorityUrgent  = "urgent"
)

// SendResult 记录单个通道的发送结果，仅用于日志。
type SendResult struct {
	Channel string
	Err     error
}

// Channel 是一个告警通道。发送失败只体现在返回值里，
// 任何通道都不允许 panic 或拖垮其它通道。
type Channel interface {
	Name() string
	Send(ctx context.Context, title, message, priority string) error
}

// Notifier 将一条告警并发扇出到所有启用的通道。
// 聚合调用永远不失败：单通道的结果被收集用于日志，仅此而已。
type Notifier struct {
	channels []Channel
}

// New 根据配置组装通知器。没有任何通道启用时扇出为空操作。
func New(opts config.NotifyOptions, run runner.Runner) *Notifier {
	n := &Notifier{}
	if opts.Ntfy.URL != "" {
		n.channels = append(n.channels, &ntfyChannel{
			client: &http.Client{Timeout: 15 * time.Second},
			opts:   opts.Ntfy,
		})
	}
	if opts.Local {
		n.channels = append(n.channels, &localChannel{run: run})
	}
	return n
}

// Notify 并发地向所有通道发送同一条告警，等全部完成后返回逐通道结果。
// 一个通道失败不会阻止其它通道，也不会把错误抛给调用方。
func (n *Notifier) Notify(ctx context.Context, title, message, priority string) []SendResult {
	results := make([]SendResult, len(n.channels))

	var wg sync.WaitGroup
	for i, ch := range n.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = SendResult{Channel: ch.Name(), Err: ch.Send(ctx, title, message, priority)}
		}(i, ch)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("⚠️ 通知通道 '%s' 发送失败: %v\n", r.Channel, r.Err)
		}
	}
	return results
}

// ShouldNotify 实现调用方侧的通知去重：
// 上次通知不存在，或距今已满冷却时间，才允许再次通知。
func ShouldNotify(last *time.Time, now time.Time, cooldown time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= cooldown
}

// ntfyChannel 通过 ntfy 风格的 HTTP 端点推送：
// 纯文本正文，标题/优先级/标签走请求头，发完即忘。
type ntfyChannel struct {
	client *http.Client
	opts   config.NtfyOptions
}

func (c *ntfyChannel) Name() string { return "ntfy" }

func (c *ntfyChannel) Send(ctx context.Context, title, message, priority string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Title", title)
	if priority == "" {
		priority = c.opts.Priority
	}
	if priority != "" {
		req.Header.Set("Priority", priority)
	}
	if c.opts.Tags != "" {
		req.Header.Set("Tags", c.opts.Tags)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// localChannel 调用 notify-send 弹本机桌面通知，尽力而为。
type localChannel struct {
	run runner.Runner
}

func (c *localChannel) Name() string { return "local" }

func (c *localChannel) Send(ctx context.Context, title, message, priority string) error {
	res := c.run.Run(ctx, 10*time.Second, "notify-send", title, message)
	if !res.Success {
		return fmt.Errorf("notify-send failed: %s", res.Stderr)
	}
	return nil
}
