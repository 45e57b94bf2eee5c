package device

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/protocol"
)

// RecordedSample 一条录制样本，归 Recorder 独占，不与 SharedState 共享
type RecordedSample struct {
	Timestamp time.Time                `json:"timestamp"`
	LeftArm   [define.NumJoints]uint32 `json:"left_arm"`
	RightArm  [define.NumJoints]uint32 `json:"right_arm"`
}

// Recorder 录制缓冲：只在录制激活期间追加，与实时状态互不影响，
// 暂停/恢复不会丢失或重复已见过的帧
type Recorder struct {
	mu      sync.Mutex
	active  bool
	samples []RecordedSample
}

func NewRecorder() *Recorder { return &Recorder{} }

// Start 开始录制，重复调用为空操作
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
}

// Stop 停止录制，重复调用为空操作
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}

// Active 返回录制是否激活
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Append 追加一帧。只有在解码瞬间录制处于激活状态才会入缓冲，
// 切换标志不会追溯包含/排除已解码的帧
func (r *Recorder) Append(f *protocol.EncoderFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.samples = append(r.samples, RecordedSample{
		Timestamp: f.Timestamp,
		LeftArm:   f.LeftArm,
		RightArm:  f.RightArm,
	})
}

// Clear 清空全部样本，无论是否在录制
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}

// Len 返回当前样本数
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Samples 返回样本副本
func (r *Recorder) Samples() []RecordedSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedSample, len(r.samples))
	copy(out, r.samples)
	return out
}

// csvHeader 固定列序：下游工具依赖此顺序，不可调整
var csvHeader = []string{
	"timestamp", "datetime",
	"right_joint_1", "right_joint_2", "right_joint_3", "right_joint_4",
	"right_joint_5", "right_joint_6", "right_joint_7",
	"left_joint_1", "left_joint_2", "left_joint_3", "left_joint_4",
	"left_joint_5", "left_joint_6", "left_joint_7",
}

// SaveCSV 把当前样本导出为 CSV，返回写入的数据行数。
// 写入失败时缓冲保持原样，调用方可以重试。
// 导出在样本副本上进行，不在持锁状态下做 I/O。
func (r *Recorder) SaveCSV(path string) (int, error) {
	samples := r.Samples()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("创建导出目录失败：%w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("创建 CSV 文件失败：%w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("写入 CSV 表头失败：%w", err)
	}

	for _, s := range samples {
		row := make([]string, 0, len(csvHeader))
		row = append(row,
			fmt.Sprintf("%.6f", float64(s.Timestamp.UnixNano())/1e9),
			s.Timestamp.Format("2006-01-02 15:04:05.000"),
		)
		for _, v := range s.RightArm {
			row = append(row, fmt.Sprintf("%d", v))
		}
		for _, v := range s.LeftArm {
			row = append(row, fmt.Sprintf("%d", v))
		}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("写入 CSV 数据行失败：%w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("刷新 CSV 失败：%w", err)
	}
	return len(samples), nil
}
