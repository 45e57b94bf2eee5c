package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HojinB/MARS-UI/communication"
	"github.com/HojinB/MARS-UI/device"
)

// recordingCommander 记录调用顺序与参数
type recordingCommander struct {
	mu       sync.Mutex
	calls    []string
	shoulder float64
	joint    float64
	angles   []float64
	fail     map[string]error
	block    chan struct{}
}

func newRecordingCommander() *recordingCommander {
	return &recordingCommander{fail: map[string]error{}}
}

func (c *recordingCommander) record(name string) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return c.fail[name]
}

func (c *recordingCommander) callNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *recordingCommander) Connect(ctx context.Context) (string, error) {
	return "connected", c.record("connect")
}
func (c *recordingCommander) Homing(ctx context.Context) (string, error) {
	return "homing done", c.record("homing")
}
func (c *recordingCommander) GravityMode(ctx context.Context) (string, error) {
	return "gravity", c.record("gravity_mode")
}
func (c *recordingCommander) PositionMode(ctx context.Context) (string, error) {
	return "position", c.record("position_mode")
}
func (c *recordingCommander) GravityCompGain(ctx context.Context, shoulder, joint float64) (string, error) {
	c.mu.Lock()
	c.shoulder, c.joint = shoulder, joint
	c.mu.Unlock()
	return "gains applied", c.record("apply_gains")
}
func (c *recordingCommander) Delete(ctx context.Context) (string, error) {
	return "deleted", c.record("delete")
}
func (c *recordingCommander) PowerOff(ctx context.Context) (string, error) {
	return "power off", c.record("power_off")
}
func (c *recordingCommander) SavePose(ctx context.Context, angles []float64) (string, error) {
	c.mu.Lock()
	c.angles = append([]float64(nil), angles...)
	c.mu.Unlock()
	return "saved", c.record("save")
}
func (c *recordingCommander) StreamTeleop(ctx context.Context) (communication.TeleopStream, error) {
	return nil, errors.New("not implemented")
}
func (c *recordingCommander) Close() error { return nil }

func drainResults(t *testing.T, w *Worker, n int) []Result {
	t.Helper()
	var out []Result
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n {
		if r, ok := w.PollResult(); ok {
			out = append(out, r)
			continue
		}
		if time.Now().After(deadline) {
			t.Fatalf("等待结果超时, 已收到 %d/%d", len(out), n)
		}
		time.Sleep(time.Millisecond)
	}
	return out
}

// 任务按提交顺序执行
func TestWorkerFIFOOrder(t *testing.T) {
	cmd := newRecordingCommander()
	w := NewWorker(cmd, nil, 16)
	w.Start()
	defer w.Stop()

	for _, typ := range []Type{TypeConnect, TypeHoming, TypeGravityMode, TypePowerOff} {
		if _, err := w.Submit(Task{Type: typ}); err != nil {
			t.Fatalf("Submit(%s): %v", typ, err)
		}
	}
	results := drainResults(t, w, 4)

	want := []string{"connect", "homing", "gravity_mode", "power_off"}
	got := cmd.callNames()
	if len(got) != len(want) {
		t.Fatalf("调用数 %d, 期望 %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("调用顺序不对: %v", got)
		}
	}
	for _, r := range results {
		if !r.Success {
			t.Fatalf("任务 %s 失败: %s", r.TaskID, r.Message)
		}
	}
}

// 越界增益在下发前被钳到 [0.2, 1.0]
func TestWorkerClampsGains(t *testing.T) {
	cmd := newRecordingCommander()
	w := NewWorker(cmd, nil, 4)
	w.Start()
	defer w.Stop()

	if _, err := w.Submit(Task{Type: TypeApplyGains, ShoulderGain: 1.8, JointGain: 0.05}); err != nil {
		t.Fatal(err)
	}
	drainResults(t, w, 1)

	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if cmd.shoulder != 1.0 || cmd.joint != 0.2 {
		t.Fatalf("增益未钳制: shoulder=%v joint=%v", cmd.shoulder, cmd.joint)
	}
}

func TestWorkerFailureResult(t *testing.T) {
	cmd := newRecordingCommander()
	cmd.fail["homing"] = errors.New("robot not ready")
	w := NewWorker(cmd, nil, 4)
	w.Start()
	defer w.Stop()

	id, err := w.Submit(Task{Type: TypeHoming})
	if err != nil {
		t.Fatal(err)
	}
	r := drainResults(t, w, 1)[0]
	if r.Success {
		t.Fatal("期望失败结果")
	}
	if r.TaskID != id || r.Message == "" {
		t.Fatalf("结果不完整: %+v", r)
	}
}

// 清除任务同时清空本地姿态并调用机器人侧删除
func TestWorkerClearWipesPoses(t *testing.T) {
	cmd := newRecordingCommander()
	poses := device.NewPoseStore()
	poses.Save("", device.Snapshot{HasFrame: true})
	w := NewWorker(cmd, poses, 4)
	w.Start()
	defer w.Stop()

	if _, err := w.Submit(Task{Type: TypeClear}); err != nil {
		t.Fatal(err)
	}
	drainResults(t, w, 1)

	if len(poses.List()) != 0 {
		t.Fatal("本地姿态未清空")
	}
	if got := cmd.callNames(); len(got) != 1 || got[0] != "delete" {
		t.Fatalf("期望调用 delete, got %v", got)
	}
}

// 队列满时 Submit 立即报错, 不阻塞
func TestWorkerSubmitNonBlocking(t *testing.T) {
	cmd := newRecordingCommander()
	cmd.block = make(chan struct{})
	w := NewWorker(cmd, nil, 1)
	w.Start()

	// 第一条被消费者取走后卡在 block 上, 第二条占满队列
	if _, err := w.Submit(Task{Type: TypeConnect}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for w.Pending() == 0 {
		if _, err := w.Submit(Task{Type: TypeConnect}); err == nil {
			if time.Now().After(deadline) {
				t.Fatal("队列始终未满")
			}
			time.Sleep(time.Millisecond)
			continue
		}
		break
	}

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(Task{Type: TypeConnect})
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			// 消费者恰好腾出位置, 再压一条确认非阻塞路径
			if _, err := w.Submit(Task{Type: TypeConnect}); err != nil && !errors.Is(err, ErrQueueFull) {
				t.Fatalf("意外错误: %v", err)
			}
		} else if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("期望 ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit 阻塞了")
	}

	close(cmd.block)
	w.Stop()
}

func TestWorkerRejectsWhenStopped(t *testing.T) {
	w := NewWorker(newRecordingCommander(), nil, 4)
	if _, err := w.Submit(Task{Type: TypeConnect}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("期望 ErrNotRunning, got %v", err)
	}
}

func TestValidType(t *testing.T) {
	if !ValidType("connect") || !ValidType("apply_gains") {
		t.Fatal("已知类型被拒绝")
	}
	if ValidType("reboot") || ValidType("") {
		t.Fatal("未知类型被接受")
	}
}
