package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HojinB/MARS-UI/communication"
	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/device"
	"github.com/HojinB/MARS-UI/stream"
	"github.com/HojinB/MARS-UI/task"
)

// Server 控制台 API 服务器结构体
type Server struct {
	cfg       *define.Config
	session   *device.Session
	worker    *stream.Worker
	tasks     *task.Worker
	teleop    *communication.TeleopStreamer
	startTime time.Time
	version   string
}

// NewServer 创建 API 服务器实例
func NewServer(cfg *define.Config, session *device.Session, worker *stream.Worker, tasks *task.Worker, teleop *communication.TeleopStreamer) *Server {
	return &Server{
		cfg:       cfg,
		session:   session,
		worker:    worker,
		tasks:     tasks,
		teleop:    teleop,
		startTime: time.Now(),
		version:   "1.0.0",
	}
}

// SetupRoutes 设置 API 路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.StaticFile("/", "./static/index.html")
	r.Static("/static", "./static")

	v1 := r.Group("/api/v1")
	{
		// 串口设备路由
		dev := v1.Group("/device")
		{
			dev.GET("/ports", s.handleListPorts)          // 枚举可用串口
			dev.POST("/connect", s.handleConnect)         // 打开串口并启动读取
			dev.POST("/disconnect", s.handleDisconnect)   // 停止读取并关闭串口
			dev.GET("/status", s.handleDeviceStatus)      // 会话状态概览
			dev.GET("/latest", s.handleLatest)            // 最新关节角度快照
			dev.GET("/frames", s.handleRecentFrames)      // 最近帧文本
			dev.GET("/messages", s.handleStatusMessages)  // 固件状态消息
			dev.GET("/commands", s.handleCommandHistory)  // 命令执行历史
			dev.POST("/command", s.handleSendCommand)     // 透传 ASCII 命令
			dev.POST("/keys", s.handleKeyEvent)           // 浏览器按键事件
			dev.POST("/active", s.handleSetActive)        // Device ON/OFF
		}

		// 录制与姿态路由
		rec := v1.Group("/recording")
		{
			rec.POST("/start", s.handleRecordingStart)
			rec.POST("/stop", s.handleRecordingStop)
			rec.POST("/clear", s.handleRecordingClear)
			rec.POST("/save", s.handleRecordingSave) // 导出 CSV
			rec.GET("/status", s.handleRecordingStatus)
		}
		poses := v1.Group("/poses")
		{
			poses.GET("", s.handleListPoses)
			poses.POST("", s.handleSavePose)
			poses.DELETE("", s.handleClearPoses)
		}

		// 后台任务路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", s.handleSubmitTask)
			tasks.GET("/results", s.handlePollResults)
		}

		// 遥操作转发路由
		teleop := v1.Group("/teleop")
		{
			teleop.POST("/start", s.handleTeleopStart)
			teleop.POST("/stop", s.handleTeleopStop)
			teleop.GET("/status", s.handleTeleopStatus)
		}

		// 流处理统计
		v1.GET("/stream/stats", s.handleStreamStats)

		// 系统管理路由
		system := v1.Group("/system")
		{
			system.GET("/status", s.handleSystemStatus)
			system.GET("/health", s.handleHealthCheck)
		}
	}

	// WebSocket 实时采样推送
	r.GET("/ws/stream", s.handleStreamWS)
}
