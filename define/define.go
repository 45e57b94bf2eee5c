package define

import "time"

// 配置结构体
type Config struct {
	WebPort    string `yaml:"web_port"`    // Web 服务端口
	SerialPort string `yaml:"serial_port"` // 默认串口设备（可在运行时通过 API 切换）
	BaudRate   int    `yaml:"baud_rate"`   // 串口波特率
	RobotHost  string `yaml:"robot_host"`  // 机器人 gRPC 服务地址
	RobotPort  int    `yaml:"robot_port"`  // 机器人 gRPC 服务端口
	LogDir     string `yaml:"log_dir"`     // CSV 导出目录
	QueueSize  int    `yaml:"queue_size"`  // 流处理队列容量
	DropPolicy string `yaml:"drop_policy"` // 队列满时的丢弃策略: newest / oldest
	SessionID  string `yaml:"session_id"`  // 遥操作会话标识
}

// API 响应结构体
type ApiResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RPC 默认超时
const (
	RPCTimeout       = 3 * time.Second
	RPCLongTimeout   = 10 * time.Second
	RPCStreamTimeout = 30 * time.Second
)

// DefaultQueueSize 流处理与任务队列的默认容量
const DefaultQueueSize = 1000
