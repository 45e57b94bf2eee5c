package define

// 串口二进制帧协议常量（OpenCR 固件约定，不可配置）
const (
	FrameHeader1 = 0xAA // 帧头第 1 字节
	FrameHeader2 = 0xBB // 帧头第 2 字节

	NumJoints   = 7                       // 单臂关节数
	EncDataSize = NumJoints * 2 * 4       // 56 字节：14 个 uint32
	FrameSize   = 2 + 1 + EncDataSize + 2 // 61 字节：帧头 + 开关 + 编码器 + 校验和

	DefaultBaudRate = 4_000_000
)

// 状态文本消息关键字：串口帧之外的换行结尾文本行，
// 只有包含以下关键字之一才会进入状态消息日志
var StatusKeywords = []string{
	"COMPLETE", "START", "MOVING", "REACHED", "ERROR", "TIMEOUT", "BLOCKED",
}

// 缓存上限
const (
	RecentFrameCap   = 60  // 最近帧显示缓冲（约 1 秒）
	StatusMessageCap = 30  // 状态消息日志
	CommandHistoryCap = 100 // 串口命令历史
)
