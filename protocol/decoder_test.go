package protocol

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/HojinB/MARS-UI/define"
)

// buildFrame 按线协议构造一个合法帧
func buildFrame(sw byte, left, right [define.NumJoints]uint32) []byte {
	buf := make([]byte, 0, define.FrameSize)
	buf = append(buf, define.FrameHeader1, define.FrameHeader2, sw)
	for _, v := range left {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	for _, v := range right {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	sum := Checksum(buf[2:])
	return binary.LittleEndian.AppendUint16(buf, sum)
}

// 具体场景 A：AA BB 01 + 56 个零字节 + 校验和(sum=1)
func TestDecodeAllZeroFrame(t *testing.T) {
	buf := make([]byte, define.FrameSize)
	buf[0] = define.FrameHeader1
	buf[1] = define.FrameHeader2
	buf[2] = 0x01
	binary.LittleEndian.PutUint16(buf[define.FrameSize-2:], 1)

	f, consumed, st := Decode(buf, time.Now())
	if st != StatusFrame {
		t.Fatalf("解析状态 = %v, 期望 StatusFrame", st)
	}
	if consumed != define.FrameSize {
		t.Errorf("consumed = %d, 期望 %d", consumed, define.FrameSize)
	}
	if f.Switch != 1 {
		t.Errorf("Switch = %d, 期望 1", f.Switch)
	}
	for j := 0; j < define.NumJoints; j++ {
		if f.LeftArm[j] != 0 || f.RightArm[j] != 0 {
			t.Fatalf("关节 %d 非零: L=%d R=%d", j, f.LeftArm[j], f.RightArm[j])
		}
	}
}

// 左右臂拆分不变式：负载前 7 个 uint32 是左臂，后 7 个是右臂
func TestLeftRightSplit(t *testing.T) {
	var left, right [define.NumJoints]uint32
	for j := range left {
		left[j] = uint32(100 + j)
		right[j] = uint32(200 + j)
	}
	buf := buildFrame(0x3F, left, right)

	f, _, st := Decode(buf, time.Now())
	if st != StatusFrame {
		t.Fatalf("解析状态 = %v", st)
	}
	if f.LeftArm != left {
		t.Errorf("LeftArm = %v, 期望 %v", f.LeftArm, left)
	}
	if f.RightArm != right {
		t.Errorf("RightArm = %v, 期望 %v", f.RightArm, right)
	}
	if f.Switch != 0x3F {
		t.Errorf("Switch = %#x", f.Switch)
	}
}

// 校验和法则：61 字节 AA BB 开头的序列，当且仅当字节和匹配尾部两字节时被接受
func TestChecksumLaw(t *testing.T) {
	var arm [define.NumJoints]uint32
	good := buildFrame(0x07, arm, arm)

	if _, _, st := Decode(good, time.Now()); st != StatusFrame {
		t.Fatalf("合法帧被拒绝: %v", st)
	}

	bad := append([]byte(nil), good...)
	bad[10] ^= 0xFF // 破坏负载但不动校验和
	f, consumed, st := Decode(bad, time.Now())
	if st != StatusBadChecksum {
		t.Fatalf("坏帧状态 = %v, 期望 StatusBadChecksum", st)
	}
	if f != nil {
		t.Error("校验失败不应产出帧")
	}
	if consumed != 2 {
		t.Errorf("校验失败应只消费 2 字节帧头, 实际 %d", consumed)
	}
}

// 重新同步：一个坏帧（帧头合法、校验失败）后紧跟一个好帧，好帧必须能恢复
func TestResyncAfterCorruptFrame(t *testing.T) {
	var arm [define.NumJoints]uint32
	for j := range arm {
		arm[j] = uint32(j) * 1000
	}
	good := buildFrame(0x02, arm, arm)

	corrupt := append([]byte(nil), good...)
	corrupt[30] ^= 0xA5
	stream := append(corrupt, good...)

	var frames int
	for len(stream) > 0 {
		f, consumed, st := Decode(stream, time.Now())
		if st == StatusNoSync || st == StatusNeedMore {
			break
		}
		if st == StatusFrame {
			frames++
			if f.LeftArm != arm {
				t.Errorf("恢复的帧数据不符: %v", f.LeftArm)
			}
		}
		stream = stream[consumed:]
	}
	if frames != 1 {
		t.Errorf("恢复帧数 = %d, 期望 1", frames)
	}
}

// 具体场景 B：AA BB 后紧跟 AA BB <合法 59 字节>，
// 不能在第一个 AA BB 上假同步，后面的真帧必须解出来
func TestEmbeddedFalseHeader(t *testing.T) {
	var arm [define.NumJoints]uint32
	arm[0] = 42
	good := buildFrame(0x01, arm, arm)
	stream := append([]byte{define.FrameHeader1, define.FrameHeader2}, good...)

	var got *EncoderFrame
	for len(stream) >= 2 {
		f, consumed, st := Decode(stream, time.Now())
		if st == StatusNoSync || st == StatusNeedMore {
			break
		}
		if st == StatusFrame {
			got = f
			break
		}
		stream = stream[consumed:]
	}
	if got == nil {
		t.Fatal("内嵌假帧头导致真帧丢失")
	}
	if got.LeftArm[0] != 42 {
		t.Errorf("LeftArm[0] = %d, 期望 42", got.LeftArm[0])
	}
}

// 字节不足时不消费任何字节
func TestIncompleteFrame(t *testing.T) {
	var arm [define.NumJoints]uint32
	full := buildFrame(0, arm, arm)
	partial := full[:40]

	f, consumed, st := Decode(partial, time.Now())
	if st != StatusNeedMore {
		t.Fatalf("状态 = %v, 期望 StatusNeedMore", st)
	}
	if f != nil || consumed != 0 {
		t.Errorf("不完整帧不应消费字节: frame=%v consumed=%d", f, consumed)
	}
}

// 帧头前的杂音字节随整帧一起消费
func TestDecodeWithLeadingJunk(t *testing.T) {
	var arm [define.NumJoints]uint32
	junk := []byte{0x00, 0x11, 0x22}
	stream := append(junk, buildFrame(0, arm, arm)...)

	_, consumed, st := Decode(stream, time.Now())
	if st != StatusFrame {
		t.Fatalf("状态 = %v", st)
	}
	if consumed != len(junk)+define.FrameSize {
		t.Errorf("consumed = %d, 期望 %d", consumed, len(junk)+define.FrameSize)
	}
}

func TestNoHeader(t *testing.T) {
	_, consumed, st := Decode([]byte{1, 2, 3, 4, 5}, time.Now())
	if st != StatusNoSync || consumed != 0 {
		t.Errorf("状态 = %v consumed = %d", st, consumed)
	}
}
