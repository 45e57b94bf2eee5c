package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/HojinB/MARS-UI/api"
	"github.com/HojinB/MARS-UI/cli"
	"github.com/HojinB/MARS-UI/communication"
	"github.com/HojinB/MARS-UI/config"
	"github.com/HojinB/MARS-UI/device"
	"github.com/HojinB/MARS-UI/stream"
	"github.com/HojinB/MARS-UI/task"
)

// 初始化服务
func initService() {
	log.Printf("🔧 服务配置：")
	log.Printf("   - Web 端口: %s", config.Config.WebPort)
	log.Printf("   - 默认串口: %s", config.Config.SerialPort)
	log.Printf("   - 波特率: %d", config.Config.BaudRate)
	log.Printf("   - 机器人服务: %s:%d", config.Config.RobotHost, config.Config.RobotPort)
	log.Printf("   - CSV 导出目录: %s", config.Config.LogDir)
	log.Printf("   - 队列容量: %d (%s)", config.Config.QueueSize, config.Config.DropPolicy)

	log.Println("✅ 主设备控制服务初始化完成")
}

func printUsage() {
	fmt.Println("MARS Master Device Control Service")
	fmt.Println("Usage:")
	fmt.Println("  -config string        YAML 配置文件路径")
	fmt.Println("  -port string          Web 服务的端口 (default: 9099)")
	fmt.Println("  -serial string        默认串口设备 (例如 /dev/ttyUSB0)")
	fmt.Println("  -baud int             串口波特率 (default: 4000000)")
	fmt.Println("  -robot-host string    机器人 gRPC 服务地址 (default: 127.0.0.1)")
	fmt.Println("  -robot-port int       机器人 gRPC 服务端口 (default: 50051)")
	fmt.Println("  -log-dir string       CSV 导出目录 (default: ./logs)")
	fmt.Println("  -queue-size int       流处理队列容量 (default: 1000)")
	fmt.Println("  -drop-policy string   队列满时的丢弃策略 newest / oldest")
	fmt.Println("  -session string       遥操作会话标识")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  MARS_CONFIG    YAML 配置文件路径")
	fmt.Println("  WEB_PORT       Web 服务的端口")
	fmt.Println("  SERIAL_PORT    默认串口设备")
	fmt.Println("  BAUD_RATE      串口波特率")
	fmt.Println("  ROBOT_HOST     机器人 gRPC 服务地址")
	fmt.Println("  ROBOT_PORT     机器人 gRPC 服务端口")
	fmt.Println("  LOG_DIR        CSV 导出目录")
	fmt.Println("  DROP_POLICY    队列满时的丢弃策略")
	fmt.Println("  SESSION_ID     遥操作会话标识")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  ./mars-ui -serial /dev/ttyUSB0 -robot-host 192.168.1.10")
	fmt.Println("  SERIAL_PORT=/dev/ttyACM0 ./mars-ui -port 8080")
	fmt.Println("  ./mars-ui -config config.yaml")
}

func main() {
	// 检查是否请求帮助
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		return
	}

	// 解析并验证配置
	config.Config = cli.ParseConfig()
	if err := config.Validate(config.Config); err != nil {
		log.Fatalf("❌ 配置无效: %v", err)
	}

	log.Printf("🚀 启动主设备控制服务")
	initService()

	// gRPC 机器人命令通道
	commander, err := communication.NewGRPCClient(config.Config.RobotHost, config.Config.RobotPort)
	if err != nil {
		log.Fatalf("❌ 创建机器人客户端失败: %v", err)
	}
	defer commander.Close()

	// 流处理与遥操作转发
	worker := stream.NewWorker(config.Config.QueueSize, stream.ParsePolicy(config.Config.DropPolicy))
	teleop := communication.NewTeleopStreamer(commander)
	worker.AddSubscriber(teleop)
	worker.Start()
	defer worker.Stop()

	// 串口会话
	session := device.NewSession(worker, config.Config.SessionID, config.Config.BaudRate)
	defer session.Stop()

	// 后台任务队列
	tasks := task.NewWorker(commander, session.Poses(), config.Config.QueueSize)
	tasks.Start()
	defer tasks.Stop()

	// 设置 Gin 模式
	gin.SetMode(gin.ReleaseMode)

	// 创建 Gin 引擎
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // 允许的域，*表示允许所有
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 设置 API 路由
	api.NewServer(config.Config, session, worker, tasks, teleop).SetupRoutes(r)

	// 启动服务器
	log.Printf("🌐 主设备控制服务运行在 http://localhost:%s", config.Config.WebPort)
	log.Printf("📡 机器人服务: %s:%d", config.Config.RobotHost, config.Config.RobotPort)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(":" + config.Config.WebPort)
	}()

	// 信号触发有序停机，让串口与任务队列收尾
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Fatalf("❌ 服务启动失败: %v", err)
	case sig := <-quit:
		log.Printf("🛑 收到信号 %v, 正在停机", sig)
		teleop.Stop()
	}
}
