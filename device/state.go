package device

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/protocol"
)

// CommStats 滚动通信统计，由串口读取循环独占更新
type CommStats struct {
	LastFrameTime time.Time `json:"last_frame_time"`
	EMAIntervalMs float64   `json:"ema_interval_ms"` // 帧间隔的指数移动平均
	FPS           float64   `json:"fps"`             // 1000 / EMAIntervalMs
}

// emaAlpha 帧间隔 EMA 平滑系数
const emaAlpha = 0.2

// Snapshot 设备状态的一致性快照：
// 左右臂角度来自同一帧，读取方拿到的是副本
type Snapshot struct {
	LeftArm  [define.NumJoints]uint32 `json:"left_arm"`
	RightArm [define.NumJoints]uint32 `json:"right_arm"`
	Switch   byte                     `json:"switch"`
	HasFrame bool                     `json:"has_frame"`
	Stats    CommStats                `json:"stats"`
}

// StatusMessage 固件状态文本消息
type StatusMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SharedState 最新编码器数据 + 通信统计 + 显示缓冲。
// 唯一写入方是串口读取循环，其余访问均为快照读。
// 锁只在复制/更新期间持有，绝不跨 I/O。
type SharedState struct {
	mu       sync.Mutex
	left     [define.NumJoints]uint32
	right    [define.NumJoints]uint32
	sw       byte
	hasFrame bool
	stats    CommStats

	recent []string // 最近帧的格式化文本，定容环形缓冲

	msgMu    sync.Mutex
	messages []StatusMessage
}

func NewSharedState() *SharedState {
	return &SharedState{
		recent: make([]string, 0, define.RecentFrameCap),
	}
}

// Update 写入一帧最新数据并更新通信统计（写入方独占）
func (s *SharedState) Update(f *protocol.EncoderFrame) {
	line := formatFrame(f)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.left = f.LeftArm
	s.right = f.RightArm
	s.sw = f.Switch
	s.hasFrame = true

	// 帧间隔 EMA 与 FPS，无论是否在录制都更新
	if !s.stats.LastFrameTime.IsZero() {
		dt := float64(f.Timestamp.Sub(s.stats.LastFrameTime).Microseconds()) / 1000.0
		if s.stats.EMAIntervalMs == 0 {
			s.stats.EMAIntervalMs = dt
		} else {
			s.stats.EMAIntervalMs = (1-emaAlpha)*s.stats.EMAIntervalMs + emaAlpha*dt
		}
		if s.stats.EMAIntervalMs > 0 {
			s.stats.FPS = 1000.0 / s.stats.EMAIntervalMs
		}
	}
	s.stats.LastFrameTime = f.Timestamp

	if len(s.recent) >= define.RecentFrameCap {
		s.recent = s.recent[1:]
	}
	s.recent = append(s.recent, line)
}

// ReadLatest 返回一致性快照，左右臂一定来自同一帧
func (s *SharedState) ReadLatest() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LeftArm:  s.left,
		RightArm: s.right,
		Switch:   s.sw,
		HasFrame: s.hasFrame,
		Stats:    s.stats,
	}
}

// RecentFrames 返回最多 n 条最近帧的格式化文本（最旧的先被淘汰）
func (s *SharedState) RecentFrames(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]string, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out
}

// AddStatusMessage 追加一条状态消息，超出上限丢弃最旧的
func (s *SharedState) AddStatusMessage(line string, ts time.Time) {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()
	s.messages = append(s.messages, StatusMessage{Message: line, Timestamp: ts})
	if len(s.messages) > define.StatusMessageCap {
		s.messages = s.messages[len(s.messages)-define.StatusMessageCap:]
	}
}

// RecentStatusMessages 返回 maxAge 内的状态消息
func (s *SharedState) RecentStatusMessages(maxAge time.Duration) []StatusMessage {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	out := make([]StatusMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Timestamp.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// formatFrame 按 UI 显示格式输出一帧（右臂在上、左臂在下）
func formatFrame(f *protocol.EncoderFrame) string {
	ts := f.Timestamp.Format("15:04:05.000")
	return fmt.Sprintf("[%s]\nRight : [%s]\nLeft  : [%s]\n",
		ts, joinAngles(f.RightArm), joinAngles(f.LeftArm))
}

func joinAngles(arm [define.NumJoints]uint32) string {
	parts := make([]string, define.NumJoints)
	for i, v := range arm {
		parts[i] = fmt.Sprintf("%4d", v)
	}
	return strings.Join(parts, ", ")
}
