package device

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/stream"
)

// CommandRecord 一条串口命令执行记录
type CommandRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	Response  string    `json:"response,omitempty"`
}

// SessionStatus 会话状态概览
type SessionStatus struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
	BaudRate  int    `json:"baud_rate,omitempty"`
	Recording bool   `json:"recording"`
	Active    bool   `json:"active"`
}

// Session 设备会话：串口句柄、共享状态、录制缓冲、按键状态
// 的唯一拥有者。串口句柄只被读取循环和 SendCommand 触碰，
// 其他组件一律通过状态快照访问。
type Session struct {
	state    *SharedState
	recorder *Recorder
	keys     *KeyState
	poses    *PoseStore
	worker   *stream.Worker

	sessionID string
	baudRate  int

	// 测试可注入的串口打开函数
	open func(name string, mode *serial.Mode) (serial.Port, error)

	mu       sync.Mutex // 保护生命周期与串口写入
	port     serial.Port
	portName string
	running  bool
	active   bool // Device ON/OFF：关闭时阻断按键下发
	done     chan struct{}

	histMu  sync.Mutex
	history []CommandRecord

	seq atomic.Uint64
}

// NewSession 创建设备会话
func NewSession(worker *stream.Worker, sessionID string, baudRate int) *Session {
	if baudRate <= 0 {
		baudRate = define.DefaultBaudRate
	}
	return &Session{
		state:     NewSharedState(),
		recorder:  NewRecorder(),
		keys:      NewKeyState(),
		poses:     NewPoseStore(),
		worker:    worker,
		sessionID: sessionID,
		baudRate:  baudRate,
		active:    true,
		open:      serial.Open,
	}
}

func (s *Session) State() *SharedState { return s.state }
func (s *Session) Recorder() *Recorder { return s.recorder }
func (s *Session) Poses() *PoseStore   { return s.poses }

// ListPorts 枚举可用串口设备
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("枚举串口失败：%w", err)
	}
	return ports, nil
}

// Start 打开串口并启动读取循环。
// 打开失败会中止启动并报错，这是唯一的致命错误路径。
func (s *Session) Start(portName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("会话已在运行（端口 %s）", s.portName)
	}

	mode := &serial.Mode{BaudRate: s.baudRate}
	port, err := s.open(portName, mode)
	if err != nil {
		return fmt.Errorf("打开串口 %s 失败：%w", portName, err)
	}
	// 短读超时：读取循环靠它保持对停止标志的响应
	if err := port.SetReadTimeout(20 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("设置串口读超时失败：%w", err)
	}

	s.port = port
	s.portName = portName
	s.running = true
	s.done = make(chan struct{})
	go s.readLoop(port, s.done)

	log.Printf("🔌 串口会话已启动：%s @ %d", portName, s.baudRate)
	return nil
}

// Stop 通知读取循环退出并等待，最多等待 2 秒后放弃
// （底层串口句柄可能需要强制关闭，尽力而为）
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Println("⚠️ 串口读取循环退出超时")
	}
	log.Println("🛑 串口会话已停止")
}

// Running 返回读取循环是否在运行
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetActive 设置 Device ON/OFF 状态，关闭时阻断按键命令下发
func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
	log.Printf("🔋 设备激活状态：%v", active)
}

// Status 返回会话状态概览
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{
		Connected: s.running,
		Port:      s.portName,
		BaudRate:  s.baudRate,
		Recording: s.recorder.Active(),
		Active:    s.active,
	}
}

// SendCommand 向设备写入一条 ASCII 命令（自动补换行）。
// 与读取循环共用串口句柄，写入在锁内短暂进行。
func (s *Session) SendCommand(cmd string) error {
	if cmd == "" {
		return fmt.Errorf("命令为空")
	}
	if cmd[len(cmd)-1] != '\n' {
		cmd += "\n"
	}

	s.mu.Lock()
	port := s.port
	running := s.running
	s.mu.Unlock()

	if !running || port == nil {
		err := fmt.Errorf("串口未连接")
		s.logCommand(cmd, false, err.Error())
		return err
	}

	s.mu.Lock()
	n, err := port.Write([]byte(cmd))
	s.mu.Unlock()

	if err != nil {
		s.logCommand(cmd, false, err.Error())
		return fmt.Errorf("命令发送失败：%w", err)
	}
	s.logCommand(cmd, true, fmt.Sprintf("%d bytes 已发送", n))
	return nil
}

// HandleKey 处理一次按键事件：更新切换状态、触发特殊功能
// （键 2 录制切换、键 5 清除录制）并把状态下发到设备。
// 设备处于 OFF 状态时按键被静默忽略。
func (s *Session) HandleKey(key int, action KeyAction) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return nil
	}

	changed, on, err := s.keys.Apply(key, action)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	switch key {
	case 2:
		if on {
			s.recorder.Start()
		} else {
			s.recorder.Stop()
		}
	case 5:
		if action == KeyPress {
			s.recorder.Clear()
		}
	}

	return s.SendCommand(s.keys.Encode())
}

// Keys 返回按键逻辑状态副本
func (s *Session) Keys() [keyCount]bool { return s.keys.Snapshot() }

func (s *Session) logCommand(cmd string, success bool, response string) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	s.history = append(s.history, CommandRecord{
		Timestamp: time.Now(),
		Command:   trimNewline(cmd),
		Success:   success,
		Response:  response,
	})
	if len(s.history) > define.CommandHistoryCap {
		s.history = s.history[len(s.history)-define.CommandHistoryCap:]
	}
}

// CommandHistory 返回命令执行历史副本
func (s *Session) CommandHistory() []CommandRecord {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	out := make([]CommandRecord, len(s.history))
	copy(out, s.history)
	return out
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
