package communication

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// masterdevice 服务的消息编解码。
// proto 生成桩归下游机器人服务的仓库所有，这里只消费其线格式：
// 按 masterdevice.proto 的字段号手工编解码，未知字段一律跳过。

// wireMessage 可在 gRPC 帧里收发的消息
type wireMessage interface {
	marshal() []byte
	unmarshal(data []byte) error
}

// commandRequest 单字符串命令请求
// （ConnectCommand / HomingCommand / GravityState / PositionState /
// DeleteCommand / PowerOffStart 共用 command = 1）
type commandRequest struct {
	Command string
}

func (m *commandRequest) marshal() []byte {
	var b []byte
	if m.Command != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Command)
	}
	return b
}

func (m *commandRequest) unmarshal(data []byte) error {
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Command = v
			return n, nil
		}
		return -1, nil
	})
}

// messageResponse 服务端应答，message = 1
type messageResponse struct {
	Message string
}

func (m *messageResponse) marshal() []byte {
	var b []byte
	if m.Message != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Message)
	}
	return b
}

func (m *messageResponse) unmarshal(data []byte) error {
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Message = v
			return n, nil
		}
		return -1, nil
	})
}

// gainRequest GravityCompGainRequest：shoulder_gain = 1, joint_gain = 2
type gainRequest struct {
	ShoulderGain float64
	JointGain    float64
}

func (m *gainRequest) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(m.ShoulderGain))
	b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(m.JointGain))
	return b
}

func (m *gainRequest) unmarshal(data []byte) error {
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.Fixed64Type || (num != 1 && num != 2) {
			return -1, nil
		}
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return n, protowire.ParseError(n)
		}
		if num == 1 {
			m.ShoulderGain = math.Float64frombits(v)
		} else {
			m.JointGain = math.Float64frombits(v)
		}
		return n, nil
	})
}

// saveCommand SaveCommand：command = 1, angle = 2（packed double）
type saveCommand struct {
	Command string
	Angles  []float64
}

func (m *saveCommand) marshal() []byte {
	var b []byte
	if m.Command != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Command)
	}
	b = appendPackedDoubles(b, 2, m.Angles)
	return b
}

func (m *saveCommand) unmarshal(data []byte) error {
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Command = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			angles, n, err := consumePackedDoubles(data)
			if err != nil {
				return n, err
			}
			m.Angles = append(m.Angles, angles...)
			return n, nil
		}
		return -1, nil
	})
}

// teleopCommand TeleoperationCommand2：
// angle = 1（packed double）, seq = 2, t_capture_ns = 3, t_send_ns = 4
type teleopCommand struct {
	Angles    []float64
	Seq       uint64
	CaptureNs int64
	SendNs    int64
}

func (m *teleopCommand) marshal() []byte {
	var b []byte
	b = appendPackedDoubles(b, 1, m.Angles)
	if m.Seq != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Seq)
	}
	if m.CaptureNs != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.CaptureNs))
	}
	if m.SendNs != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.SendNs))
	}
	return b
}

func (m *teleopCommand) unmarshal(data []byte) error {
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			angles, n, err := consumePackedDoubles(data)
			if err != nil {
				return n, err
			}
			m.Angles = append(m.Angles, angles...)
			return n, nil
		case typ == protowire.VarintType && num >= 2 && num <= 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			switch num {
			case 2:
				m.Seq = v
			case 3:
				m.CaptureNs = int64(v)
			case 4:
				m.SendNs = int64(v)
			}
			return n, nil
		}
		return -1, nil
	})
}

// scanFields 逐字段扫描线格式。
// handle 返回 (-1, nil) 表示未处理，按未知字段跳过
func scanFields(data []byte, handle func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		n, err := handle(num, typ, data)
		if err != nil {
			return err
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		data = data[n:]
	}
	return nil
}

func appendPackedDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	if len(vals) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(len(vals)*8))
	for _, v := range vals {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func consumePackedDoubles(data []byte) ([]float64, int, error) {
	payload, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, n, protowire.ParseError(n)
	}
	if len(payload)%8 != 0 {
		return nil, n, fmt.Errorf("packed double 长度 %d 不是 8 的倍数", len(payload))
	}
	vals := make([]float64, 0, len(payload)/8)
	for len(payload) > 0 {
		v, m := protowire.ConsumeFixed64(payload)
		if m < 0 {
			return nil, n, protowire.ParseError(m)
		}
		vals = append(vals, math.Float64frombits(v))
		payload = payload[m:]
	}
	return vals, n, nil
}

// wireCodec 把 wireMessage 接到 gRPC 的 proto 编码槽位上
type wireCodec struct{}

func (wireCodec) Name() string { return "proto" }

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("不支持的消息类型 %T", v)
	}
	return m.marshal(), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("不支持的消息类型 %T", v)
	}
	return m.unmarshal(data)
}
