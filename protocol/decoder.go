// Package protocol 实现主设备串口二进制帧协议的解析。
//
// 线协议（61 字节定长帧）：
//
//	byte 0-1:   帧头 0xAA 0xBB
//	byte 2:     开关/按键状态位域
//	byte 3-58:  14 × uint32 小端（0-6 为左臂，7-13 为右臂）
//	byte 59-60: 校验和，小端 uint16 = sum(byte 2..58) mod 65536
//
// 解析器本身不做任何 I/O，由串口读取循环喂入累积缓冲区。
package protocol

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/HojinB/MARS-UI/define"
)

var frameHeader = []byte{define.FrameHeader1, define.FrameHeader2}

// EncoderFrame 一个物理采样帧，构造后不可变
type EncoderFrame struct {
	Timestamp time.Time
	Switch    byte // 硬件开关/按键位域
	LeftArm   [define.NumJoints]uint32
	RightArm  [define.NumJoints]uint32
}

// DecodeStatus 单次解析尝试的结果
type DecodeStatus int

const (
	StatusNoSync      DecodeStatus = iota // 缓冲区内没有帧头
	StatusNeedMore                        // 找到帧头但字节不足一帧，等待更多数据
	StatusBadChecksum                     // 校验和不匹配，帧被丢弃
	StatusFrame                           // 成功解析出一帧
)

// IndexHeader 返回缓冲区中帧头同步串的位置，找不到返回 -1
func IndexHeader(buf []byte) int {
	return bytes.Index(buf, frameHeader)
}

// Checksum 计算 mod-65536 字节和校验。
// 固件侧的注释把它叫 CRC，实际只是普通字节和，为保持线协议兼容原样保留。
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Decode 在 buf 中定位帧头并尝试恢复一个编码器帧。
//
// 返回的 consumed 是调用方应从缓冲区头部丢弃的字节数：
//   - StatusNoSync / StatusNeedMore: consumed 为 0，继续累积字节；
//   - StatusBadChecksum: 只消费到帧头之后（帧头前的杂音 + 2 字节帧头），
//     不跳过整个帧窗口 —— 负载内出现的假帧头靠校验和过滤，
//     紧随其后的真帧头必须还能被找到；
//   - StatusFrame: 消费到整帧末尾。
//
// 对任何畸形输入都不会报错，只会返回"还没有帧"。
func Decode(buf []byte, ts time.Time) (*EncoderFrame, int, DecodeStatus) {
	i := IndexHeader(buf)
	if i < 0 {
		return nil, 0, StatusNoSync
	}
	if len(buf)-i < define.FrameSize {
		return nil, 0, StatusNeedMore
	}

	frame := buf[i : i+define.FrameSize]
	payload := frame[2 : 2+1+define.EncDataSize] // 开关字节 + 编码器数据
	received := binary.LittleEndian.Uint16(frame[define.FrameSize-2:])
	if Checksum(payload) != received {
		return nil, i + 2, StatusBadChecksum
	}

	f := &EncoderFrame{Timestamp: ts, Switch: frame[2]}
	enc := frame[3 : 3+define.EncDataSize]
	for j := 0; j < define.NumJoints; j++ {
		// 固定协议约定：前 7 个为左臂，后 7 个为右臂
		f.LeftArm[j] = binary.LittleEndian.Uint32(enc[j*4:])
		f.RightArm[j] = binary.LittleEndian.Uint32(enc[(define.NumJoints+j)*4:])
	}
	return f, i + define.FrameSize, StatusFrame
}
