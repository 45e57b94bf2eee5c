// Package task 把耗时的机器人操作排进后台队列，避免阻塞 HTTP 请求。
// 队列单消费者，任务按提交顺序逐个下发
package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/HojinB/MARS-UI/communication"
	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/device"
)

// Type 后台任务类型
type Type string

const (
	TypeConnect      Type = "connect"
	TypeApplyGains   Type = "apply_gains"
	TypeSave         Type = "save"
	TypeClear        Type = "clear"
	TypeHoming       Type = "homing"
	TypeGravityMode  Type = "gravity_mode"
	TypePositionMode Type = "position_mode"
	TypeDelete       Type = "delete"
	TypePowerOff     Type = "power_off"
)

// ValidType 报告 s 是否为已知任务类型
func ValidType(s string) bool {
	switch Type(s) {
	case TypeConnect, TypeApplyGains, TypeSave, TypeClear, TypeHoming,
		TypeGravityMode, TypePositionMode, TypeDelete, TypePowerOff:
		return true
	}
	return false
}

// Task 一次后台操作
type Task struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	ShoulderGain float64   `json:"shoulder_gain,omitempty"`
	JointGain    float64   `json:"joint_gain,omitempty"`
	Angles       []float64 `json:"angles,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Result 任务完成后的结果
type Result struct {
	TaskID      string    `json:"task_id"`
	Type        Type      `json:"type"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	CompletedAt time.Time `json:"completed_at"`
}

var (
	ErrNotRunning = errors.New("task: worker 未运行")
	ErrQueueFull  = errors.New("task: 队列已满")
)

const resultCap = 100

// Worker 后台任务消费者
type Worker struct {
	commander communication.RobotCommander
	poses     *device.PoseStore

	queue   chan Task
	results chan Result
	running atomic.Bool
	quit    chan struct{}
	done    chan struct{}
	seq     atomic.Uint64
}

// NewWorker 创建任务队列。poses 允许为 nil，此时清除任务只作用于机器人侧
func NewWorker(commander communication.RobotCommander, poses *device.PoseStore, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = define.DefaultQueueSize
	}
	return &Worker{
		commander: commander,
		poses:     poses,
		queue:     make(chan Task, queueSize),
		results:   make(chan Result, resultCap),
	}
}

// Start 启动消费协程，重复调用无效果
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	go w.consumeLoop()
	log.Printf("⚙️ 后台任务队列已启动 (容量 %d)", cap(w.queue))
}

// Stop 停止消费并等待当前任务收尾
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.quit)
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		log.Printf("⚠️ 任务队列停止超时")
	}
}

// Submit 非阻塞入队，返回任务 ID。队列满直接报错，不等待
func (w *Worker) Submit(t Task) (string, error) {
	if !w.running.Load() {
		return "", ErrNotRunning
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("task_%d", w.seq.Add(1))
	}
	t.SubmittedAt = time.Now()
	select {
	case w.queue <- t:
		return t.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// PollResult 非阻塞取一条完成结果
func (w *Worker) PollResult() (Result, bool) {
	select {
	case r := <-w.results:
		return r, true
	default:
		return Result{}, false
	}
}

// Pending 队列中等待的任务数
func (w *Worker) Pending() int { return len(w.queue) }

func (w *Worker) consumeLoop() {
	defer close(w.done)
	for {
		select {
		case t := <-w.queue:
			w.report(w.dispatch(t))
		case <-w.quit:
			// 停止前清空剩余任务
			for {
				select {
				case t := <-w.queue:
					w.report(w.dispatch(t))
				default:
					return
				}
			}
		}
	}
}

// report 结果队列满时丢最旧的一条，保证最新状态可见
func (w *Worker) report(r Result) {
	for {
		select {
		case w.results <- r:
			return
		default:
			select {
			case <-w.results:
			default:
			}
		}
	}
}

func (w *Worker) dispatch(t Task) Result {
	timeout := define.RPCTimeout
	switch t.Type {
	case TypeSave, TypePowerOff, TypeConnect:
		timeout = define.RPCLongTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	msg, err := w.run(ctx, t)
	r := Result{TaskID: t.ID, Type: t.Type, CompletedAt: time.Now()}
	if err != nil {
		r.Message = err.Error()
		log.Printf("❌ 任务 %s (%s) 失败: %v", t.ID, t.Type, err)
		return r
	}
	r.Success = true
	r.Message = msg
	log.Printf("✅ 任务 %s (%s) 完成: %s", t.ID, t.Type, msg)
	return r
}

func (w *Worker) run(ctx context.Context, t Task) (string, error) {
	switch t.Type {
	case TypeConnect:
		return w.commander.Connect(ctx)
	case TypeApplyGains:
		// 越界增益钳到安全区间而不是拒绝任务
		shoulder := communication.ClampGain(t.ShoulderGain)
		joint := communication.ClampGain(t.JointGain)
		return w.commander.GravityCompGain(ctx, shoulder, joint)
	case TypeSave:
		return w.commander.SavePose(ctx, t.Angles)
	case TypeClear:
		if w.poses != nil {
			w.poses.Clear()
		}
		return w.commander.Delete(ctx)
	case TypeHoming:
		return w.commander.Homing(ctx)
	case TypeGravityMode:
		return w.commander.GravityMode(ctx)
	case TypePositionMode:
		return w.commander.PositionMode(ctx)
	case TypeDelete:
		return w.commander.Delete(ctx)
	case TypePowerOff:
		return w.commander.PowerOff(ctx)
	}
	return "", fmt.Errorf("未知任务类型 %q", t.Type)
}
