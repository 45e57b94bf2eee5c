package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/HojinB/MARS-UI/define"
)

// 解析配置：命令行参数 < YAML 配置文件 < 环境变量
func ParseConfig() *define.Config {
	cfg := &define.Config{}

	var configFile string
	flag.StringVar(&configFile, "config", "", "YAML 配置文件路径")
	flag.StringVar(&cfg.WebPort, "port", "9099", "Web 服务的端口")
	flag.StringVar(&cfg.SerialPort, "serial", "", "默认串口设备 (例如 /dev/ttyUSB0)")
	flag.IntVar(&cfg.BaudRate, "baud", define.DefaultBaudRate, "串口波特率")
	flag.StringVar(&cfg.RobotHost, "robot-host", "127.0.0.1", "机器人 gRPC 服务地址")
	flag.IntVar(&cfg.RobotPort, "robot-port", 50051, "机器人 gRPC 服务端口")
	flag.StringVar(&cfg.LogDir, "log-dir", "./logs", "CSV 导出目录")
	flag.IntVar(&cfg.QueueSize, "queue-size", define.DefaultQueueSize, "流处理队列容量")
	flag.StringVar(&cfg.DropPolicy, "drop-policy", "newest", "队列满时的丢弃策略 (newest / oldest)")
	flag.StringVar(&cfg.SessionID, "session", "", "遥操作会话标识, 缺省按启动时间生成")
	flag.Parse()

	// YAML 配置文件覆盖命令行参数
	if configFile == "" {
		if envFile := os.Getenv("MARS_CONFIG"); envFile != "" {
			configFile = envFile
		}
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			log.Fatalf("❌ 读取配置文件失败: %v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("❌ 解析配置文件失败: %v", err)
		}
		log.Printf("📄 已加载配置文件: %s", configFile)
	}

	// 环境变量覆盖一切
	if env := os.Getenv("WEB_PORT"); env != "" {
		cfg.WebPort = env
	}
	if env := os.Getenv("SERIAL_PORT"); env != "" {
		cfg.SerialPort = env
	}
	if env := os.Getenv("BAUD_RATE"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			log.Fatalf("❌ BAUD_RATE 无效: %v", err)
		}
		cfg.BaudRate = n
	}
	if env := os.Getenv("ROBOT_HOST"); env != "" {
		cfg.RobotHost = env
	}
	if env := os.Getenv("ROBOT_PORT"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			log.Fatalf("❌ ROBOT_PORT 无效: %v", err)
		}
		cfg.RobotPort = n
	}
	if env := os.Getenv("LOG_DIR"); env != "" {
		cfg.LogDir = env
	}
	if env := os.Getenv("DROP_POLICY"); env != "" {
		cfg.DropPolicy = env
	}
	if env := os.Getenv("SESSION_ID"); env != "" {
		cfg.SessionID = env
	}

	if cfg.SessionID == "" {
		cfg.SessionID = fmt.Sprintf("session_%d", os.Getpid())
	}
	return cfg
}
