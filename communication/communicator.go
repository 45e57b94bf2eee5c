package communication

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/HojinB/MARS-UI/stream"
)

// 重力补偿增益的安全区间，越界值会被钳制而不是拒绝
const (
	GainMin = 0.2
	GainMax = 1.0
)

const servicePrefix = "/masterdevice.masterdevice/"

// ClampGain 把增益钳到 [GainMin, GainMax]
func ClampGain(v float64) float64 {
	if v < GainMin {
		return GainMin
	}
	if v > GainMax {
		return GainMax
	}
	return v
}

// TeleopStream 遥操作客户端流，Send 把一帧角度推给机器人
type TeleopStream interface {
	Send(s stream.Sample) error
	CloseAndRecv() (string, error)
}

// RobotCommander 面向机器人服务的命令通道
type RobotCommander interface {
	Connect(ctx context.Context) (string, error)
	Homing(ctx context.Context) (string, error)
	GravityMode(ctx context.Context) (string, error)
	PositionMode(ctx context.Context) (string, error)
	GravityCompGain(ctx context.Context, shoulder, joint float64) (string, error)
	Delete(ctx context.Context) (string, error)
	PowerOff(ctx context.Context) (string, error)
	SavePose(ctx context.Context, angles []float64) (string, error)
	StreamTeleop(ctx context.Context) (TeleopStream, error)
	Close() error
}

// GRPCClient 通过 gRPC 调用 masterdevice 服务
type GRPCClient struct {
	addr string
	conn *grpc.ClientConn
}

var _ RobotCommander = (*GRPCClient)(nil)

// NewGRPCClient 建立到机器人服务的连接。
// grpc.NewClient 是惰性的，真正的拨号发生在第一次 RPC
func NewGRPCClient(host string, port int) (*GRPCClient, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("创建 gRPC 客户端失败: %w", err)
	}
	log.Printf("🔗 gRPC 客户端已就绪: %s", addr)
	return &GRPCClient{addr: addr, conn: conn}, nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req wireMessage) (string, error) {
	resp := &messageResponse{}
	err := c.conn.Invoke(ctx, servicePrefix+method, req, resp, grpc.ForceCodec(wireCodec{}))
	if err != nil {
		return "", fmt.Errorf("%s 调用失败: %w", method, err)
	}
	return resp.Message, nil
}

func (c *GRPCClient) command(ctx context.Context, method, command string) (string, error) {
	return c.invoke(ctx, method, &commandRequest{Command: command})
}

// Connect 请求机器人上电并建立控制链路
func (c *GRPCClient) Connect(ctx context.Context) (string, error) {
	return c.command(ctx, "ConnectCommand", "CONNECT")
}

// Homing 让机器人回到零位
func (c *GRPCClient) Homing(ctx context.Context) (string, error) {
	return c.command(ctx, "HomingCommand", "HOMING")
}

// GravityMode 切换到重力补偿模式
func (c *GRPCClient) GravityMode(ctx context.Context) (string, error) {
	return c.command(ctx, "GravityState", "GRAVITY")
}

// PositionMode 切换到位置控制模式
func (c *GRPCClient) PositionMode(ctx context.Context) (string, error) {
	return c.command(ctx, "PositionState", "POSITION")
}

// GravityCompGain 下发重力补偿增益，越界值先钳制再发送
func (c *GRPCClient) GravityCompGain(ctx context.Context, shoulder, joint float64) (string, error) {
	req := &gainRequest{
		ShoulderGain: ClampGain(shoulder),
		JointGain:    ClampGain(joint),
	}
	return c.invoke(ctx, "GravityCompGain", req)
}

// Delete 清除机器人侧缓存的示教数据
func (c *GRPCClient) Delete(ctx context.Context) (string, error) {
	return c.command(ctx, "DeleteCommand", "DELETE")
}

// PowerOff 让机器人下电
func (c *GRPCClient) PowerOff(ctx context.Context) (string, error) {
	return c.command(ctx, "PowerOffStart", "POWER_OFF")
}

// SavePose 通过 Save 客户端流保存一帧姿态：
// SAVE_START -> 角度数据 -> SAVE_STOP
func (c *GRPCClient) SavePose(ctx context.Context, angles []float64) (string, error) {
	desc := &grpc.StreamDesc{StreamName: "Save", ClientStreams: true}
	cs, err := c.conn.NewStream(ctx, desc, servicePrefix+"Save", grpc.ForceCodec(wireCodec{}))
	if err != nil {
		return "", fmt.Errorf("打开 Save 流失败: %w", err)
	}
	msgs := []*saveCommand{
		{Command: "SAVE_START"},
		{Angles: angles},
		{Command: "SAVE_STOP"},
	}
	for _, m := range msgs {
		if err := cs.SendMsg(m); err != nil {
			return "", fmt.Errorf("Save 流发送失败: %w", err)
		}
	}
	if err := cs.CloseSend(); err != nil {
		return "", fmt.Errorf("关闭 Save 流失败: %w", err)
	}
	resp := &messageResponse{}
	if err := cs.RecvMsg(resp); err != nil {
		return "", fmt.Errorf("Save 流应答失败: %w", err)
	}
	return resp.Message, nil
}

// StreamTeleop 打开 Teleoperation2 客户端流
func (c *GRPCClient) StreamTeleop(ctx context.Context) (TeleopStream, error) {
	desc := &grpc.StreamDesc{StreamName: "Teleoperation2", ClientStreams: true}
	cs, err := c.conn.NewStream(ctx, desc, servicePrefix+"Teleoperation2", grpc.ForceCodec(wireCodec{}))
	if err != nil {
		return nil, fmt.Errorf("打开 Teleoperation2 流失败: %w", err)
	}
	return &teleopStream{cs: cs}, nil
}

// Close 释放底层连接
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type teleopStream struct {
	cs grpc.ClientStream
}

func (t *teleopStream) Send(s stream.Sample) error {
	return t.cs.SendMsg(&teleopCommand{
		Angles:    s.Angles,
		Seq:       s.Seq,
		CaptureNs: s.CaptureTimeNs,
		SendNs:    time.Now().UnixNano(),
	})
}

func (t *teleopStream) CloseAndRecv() (string, error) {
	if err := t.cs.CloseSend(); err != nil {
		return "", err
	}
	resp := &messageResponse{}
	if err := t.cs.RecvMsg(resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
