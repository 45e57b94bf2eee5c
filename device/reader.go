package device

import (
	"log"
	"time"

	"go.bug.st/serial"

	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/protocol"
	"github.com/HojinB/MARS-UI/stream"
)

// 累积缓冲安全上限：长时间收不到帧头也收不到换行时截断，
// 避免噪声字节无限堆积
const (
	maxPendingBytes = 8 * 1024
	keepTailBytes   = 1024
)

// readLoop 串口读取循环，单线程执行：
// 排空当前可读字节 → 反复解帧 → 扫描剩余文本行。
// 读错误视为瞬态（记录后继续），循环本身绝不因输入而退出。
func (s *Session) readLoop(port serial.Port, done chan struct{}) {
	defer close(done)
	defer port.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 512)

	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}

		n, err := port.Read(tmp)
		if err != nil {
			// 瞬态读错误：记录后稍等重试
			log.Printf("⚠️ 串口读取错误（继续）：%v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			// 读超时，无数据：短暂休眠避免空转
			time.Sleep(time.Millisecond)
			continue
		}

		buf = append(buf, tmp[:n]...)
		rest := s.process(buf)
		// 把尾部搬到缓冲头部（copy 对重叠区间安全）
		buf = append(buf[:0], rest...)
	}
}

// process 对累积缓冲做一轮完整解析，返回未消费的尾部。
// 二进制帧优先；帧头之前的字节只做文本行提取。
func (s *Session) process(buf []byte) []byte {
	for {
		frame, consumed, status := protocol.Decode(buf, time.Now())
		switch status {
		case protocol.StatusFrame:
			s.reportText(buf[:consumed-define.FrameSize])
			s.handleFrame(frame)
			buf = buf[consumed:]

		case protocol.StatusBadChecksum:
			// 只越过帧头重新扫描，紧随其后的真帧头仍能被找到
			s.reportText(buf[:consumed-2])
			buf = buf[consumed:]

		case protocol.StatusNeedMore:
			// 帧头之前的文本行先行提取，未完成的帧保留等待字节
			i := protocol.IndexHeader(buf)
			n := s.scanText(buf[:i])
			return buf[n:]

		case protocol.StatusNoSync:
			n := s.scanText(buf)
			buf = buf[n:]
			if len(buf) > maxPendingBytes {
				buf = buf[len(buf)-keepTailBytes:]
			}
			return buf
		}
	}
}

// scanText 消费换行结尾的文本行并上报状态消息，返回消费的字节数
func (s *Session) scanText(buf []byte) int {
	lines, consumed := protocol.ScanStatusLines(buf)
	now := time.Now()
	for _, line := range lines {
		s.state.AddStatusMessage(line, now)
		s.logCommand("RECEIVED", true, line)
	}
	return consumed
}

// reportText 对将被整体消费的前缀做一次文本提取（消费量忽略）
func (s *Session) reportText(prefix []byte) {
	if len(prefix) > 0 {
		s.scanText(prefix)
	}
}

// handleFrame 处理一个成功解码的帧：
// 最新值与统计无条件更新，录制激活时追加样本，再投递到流处理器
func (s *Session) handleFrame(f *protocol.EncoderFrame) {
	s.state.Update(f)
	s.recorder.Append(f)

	if s.worker == nil {
		return
	}
	// 采样角度顺序与线协议负载一致：左臂 0-6，右臂 7-13
	angles := make([]float64, 0, define.NumJoints*2)
	for _, v := range f.LeftArm {
		angles = append(angles, float64(v))
	}
	for _, v := range f.RightArm {
		angles = append(angles, float64(v))
	}
	ns := f.Timestamp.UnixNano()
	s.worker.Submit(stream.Sample{
		Timestamp:     f.Timestamp,
		Angles:        angles,
		Seq:           s.seq.Add(1),
		SessionID:     s.sessionID,
		CaptureTimeNs: ns,
		SendTimeNs:    time.Now().UnixNano(),
	})
}
