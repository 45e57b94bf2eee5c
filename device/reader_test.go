package device

import (
	"encoding/binary"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/protocol"
	"github.com/HojinB/MARS-UI/stream"
)

// fakePort 内存串口：Read 按块吐出预置字节，Write 记录下发的命令
type fakePort struct {
	mu     sync.Mutex
	rx     []byte
	tx     []byte
	closed bool
}

func (p *fakePort) feed(b []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, b...)
	p.mu.Unlock()
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.EOF
	}
	if len(p.rx) == 0 {
		return 0, nil // 模拟读超时
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tx = append(p.tx, b...)
	return len(b), nil
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.tx)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetMode(*serial.Mode) error                    { return nil }
func (p *fakePort) Drain() error                                  { return nil }
func (p *fakePort) ResetInputBuffer() error                       { return nil }
func (p *fakePort) ResetOutputBuffer() error                      { return nil }
func (p *fakePort) SetDTR(bool) error                             { return nil }
func (p *fakePort) SetRTS(bool) error                             { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (p *fakePort) SetReadTimeout(time.Duration) error            { return nil }
func (p *fakePort) Break(time.Duration) error                     { return nil }

func newTestSession(t *testing.T, port *fakePort) *Session {
	t.Helper()
	w := stream.NewWorker(100, stream.DropNewest)
	w.Start()
	t.Cleanup(w.Stop)

	s := NewSession(w, "test-session", define.DefaultBaudRate)
	s.open = func(string, *serial.Mode) (serial.Port, error) { return port, nil }
	if err := s.Start("/dev/fake"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func encodeFrame(base uint32) []byte {
	buf := []byte{define.FrameHeader1, define.FrameHeader2, 0x01}
	for j := 0; j < define.NumJoints; j++ {
		buf = binary.LittleEndian.AppendUint32(buf, base+uint32(j)) // 左臂
	}
	for j := 0; j < define.NumJoints; j++ {
		buf = binary.LittleEndian.AppendUint32(buf, base+100+uint32(j)) // 右臂
	}
	return binary.LittleEndian.AppendUint16(buf, protocol.Checksum(buf[2:]))
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// 端到端：帧字节流入 → 共享状态更新
func TestReadLoopDecodesFrames(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	port.feed(encodeFrame(10))
	port.feed(encodeFrame(20))

	waitUntil(t, func() bool {
		snap := s.State().ReadLatest()
		return snap.HasFrame && snap.LeftArm[0] == 20
	}, "读取循环未更新最新帧")

	snap := s.State().ReadLatest()
	if snap.RightArm[0] != 120 {
		t.Errorf("RightArm[0] = %d, 期望 120", snap.RightArm[0])
	}
}

// 帧与文本混流：帧之间的状态文本被提取，帧不丢
func TestReadLoopMixedBinaryAndText(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	var mixed []byte
	mixed = append(mixed, []byte("HOMING COMPLETE\n")...)
	mixed = append(mixed, encodeFrame(1)...)
	mixed = append(mixed, []byte("ignored line\nTARGET REACHED\n")...)
	mixed = append(mixed, encodeFrame(2)...)
	port.feed(mixed)

	waitUntil(t, func() bool {
		return s.State().ReadLatest().LeftArm[0] == 2
	}, "混流中的帧未全部解出")

	msgs := s.State().RecentStatusMessages(time.Minute)
	if len(msgs) != 2 {
		t.Fatalf("状态消息数 = %d, 期望 2: %v", len(msgs), msgs)
	}
	if msgs[0].Message != "HOMING COMPLETE" || msgs[1].Message != "TARGET REACHED" {
		t.Errorf("状态消息内容不符: %v", msgs)
	}
}

// 分片投喂：一帧拆成多块到达也能解出
func TestReadLoopPartialChunks(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	frame := encodeFrame(42)
	port.feed(frame[:10])
	time.Sleep(20 * time.Millisecond)
	port.feed(frame[10:40])
	time.Sleep(20 * time.Millisecond)
	port.feed(frame[40:])

	waitUntil(t, func() bool {
		return s.State().ReadLatest().LeftArm[0] == 42
	}, "分片帧未被解出")
}

// 录制门控贯穿读取循环
func TestReadLoopRecordingGate(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	s.Recorder().Start()
	port.feed(encodeFrame(1))
	waitUntil(t, func() bool { return s.Recorder().Len() == 1 }, "录制样本未入缓冲")

	s.Recorder().Stop()
	port.feed(encodeFrame(2))
	waitUntil(t, func() bool {
		return s.State().ReadLatest().LeftArm[0] == 2
	}, "停录后的帧未更新状态")

	if s.Recorder().Len() != 1 {
		t.Errorf("停录后样本数 = %d, 期望 1", s.Recorder().Len())
	}
}

// SendCommand 自动补换行并记录历史
func TestSendCommand(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	if err := s.SendCommand("DEVICE_ON"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got := port.written(); got != "DEVICE_ON\n" {
		t.Errorf("下发内容 = %q", got)
	}

	hist := s.CommandHistory()
	if len(hist) != 1 || hist[0].Command != "DEVICE_ON" || !hist[0].Success {
		t.Errorf("命令历史不符: %+v", hist)
	}
}

// 按键事件：键 2 切换录制并下发 KEY 状态
func TestHandleKeyRecordingToggle(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	if err := s.HandleKey(2, KeyPress); err != nil {
		t.Fatalf("HandleKey: %v", err)
	}
	if !s.Recorder().Active() {
		t.Error("键 2 按下后录制应激活")
	}
	if got := port.written(); !strings.Contains(got, "KEY:010000\n") {
		t.Errorf("下发的按键状态 = %q", got)
	}

	// 抬起再按下 → 录制关闭
	s.HandleKey(2, KeyRelease)
	s.HandleKey(2, KeyPress)
	if s.Recorder().Active() {
		t.Error("再次切换后录制应停止")
	}
}

// 设备 OFF 时按键被静默忽略
func TestHandleKeyInactiveDevice(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	s.SetActive(false)
	if err := s.HandleKey(2, KeyPress); err != nil {
		t.Fatalf("HandleKey: %v", err)
	}
	if s.Recorder().Active() {
		t.Error("设备 OFF 时不应触发录制")
	}
	if port.written() != "" {
		t.Error("设备 OFF 时不应下发命令")
	}
}

// Stop 后重复 Start/Stop 安全
func TestSessionLifecycle(t *testing.T) {
	port := &fakePort{}
	s := newTestSession(t, port)

	if err := s.Start("/dev/fake"); err == nil {
		t.Error("重复 Start 应报错")
	}
	s.Stop()
	s.Stop() // 幂等
	if s.Running() {
		t.Error("Stop 后不应在运行")
	}
}
