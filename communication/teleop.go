package communication

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/HojinB/MARS-UI/stream"
)

// TeleopStreamer 订阅本地采样流，把每帧角度通过 Teleoperation2 转发给机器人。
// 流在第一帧到来时惰性打开，发送失败后关闭并在下一帧重开
type TeleopStreamer struct {
	commander RobotCommander

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	cur    TeleopStream
	active bool

	sent   atomic.Uint64
	failed atomic.Uint64
}

var _ stream.Subscriber = (*TeleopStreamer)(nil)

func NewTeleopStreamer(commander RobotCommander) *TeleopStreamer {
	return &TeleopStreamer{commander: commander}
}

// Start 允许后续采样被转发
func (t *TeleopStreamer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.active = true
	log.Printf("📡 遥操作转发已开启")
}

// Stop 关闭转发并结束当前流
func (t *TeleopStreamer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.active = false
	if t.cur != nil {
		if msg, err := t.cur.CloseAndRecv(); err != nil {
			log.Printf("⚠️ 遥操作流收尾失败: %v", err)
		} else if msg != "" {
			log.Printf("📡 遥操作流收尾: %s", msg)
		}
		t.cur = nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	log.Printf("📡 遥操作转发已停止")
}

// Active 报告转发是否开启
func (t *TeleopStreamer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// SentCount 已成功发送的帧数
func (t *TeleopStreamer) SentCount() uint64 { return t.sent.Load() }

// FailedCount 发送失败的帧数
func (t *TeleopStreamer) FailedCount() uint64 { return t.failed.Load() }

// OnSample 实现 stream.Subscriber
func (t *TeleopStreamer) OnSample(s stream.Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	if t.cur == nil {
		cs, err := t.commander.StreamTeleop(t.ctx)
		if err != nil {
			t.failed.Add(1)
			log.Printf("⚠️ 打开遥操作流失败: %v", err)
			return
		}
		t.cur = cs
	}
	if err := t.cur.Send(s); err != nil {
		t.failed.Add(1)
		t.cur = nil
		log.Printf("⚠️ 遥操作帧发送失败: %v", err)
		return
	}
	t.sent.Add(1)
}
