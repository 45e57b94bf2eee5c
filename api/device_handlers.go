package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HojinB/MARS-UI/device"
)

// handleListPorts 枚举可用串口
func (s *Server) handleListPorts(c *gin.Context) {
	ports, err := device.ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"ports": ports, "total": len(ports)},
	})
}

// handleConnect 打开串口并启动读取循环
func (s *Server) handleConnect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 请求体没给端口时回落到配置的默认串口
		if s.cfg.SerialPort == "" {
			c.JSON(http.StatusBadRequest, ApiResponse{
				Status: "error",
				Error:  "无效的连接请求：" + err.Error(),
			})
			return
		}
		req.Port = s.cfg.SerialPort
	}

	if err := s.session.Start(req.Port); err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("串口 %s 已连接", req.Port),
		Data:    s.session.Status(),
	})
}

// handleDisconnect 停止读取循环并关闭串口
func (s *Server) handleDisconnect(c *gin.Context) {
	s.session.Stop()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "串口已断开",
		Data:    s.session.Status(),
	})
}

// handleDeviceStatus 会话状态概览
func (s *Server) handleDeviceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.session.Status(),
	})
}

// handleLatest 最新关节角度快照与通信统计
func (s *Server) handleLatest(c *gin.Context) {
	snap := s.session.State().ReadLatest()
	if !snap.HasFrame {
		c.JSON(http.StatusOK, ApiResponse{
			Status:  "success",
			Message: "尚未收到编码器帧",
			Data:    snap,
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   snap,
	})
}

// handleRecentFrames 最近帧的格式化文本，count 默认取全部缓冲
func (s *Server) handleRecentFrames(c *gin.Context) {
	count := 0
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ApiResponse{
				Status: "error",
				Error:  "count 必须是非负整数",
			})
			return
		}
		count = n
	}
	frames := s.session.State().RecentFrames(count)
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"frames": frames, "total": len(frames)},
	})
}

// handleStatusMessages 固件状态文本消息，max_age_seconds 默认 30
func (s *Server) handleStatusMessages(c *gin.Context) {
	maxAge := 30 * time.Second
	if raw := c.Query("max_age_seconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ApiResponse{
				Status: "error",
				Error:  "max_age_seconds 必须是正整数",
			})
			return
		}
		maxAge = time.Duration(n) * time.Second
	}
	msgs := s.session.State().RecentStatusMessages(maxAge)
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"messages": msgs, "total": len(msgs)},
	})
}

// handleCommandHistory 命令执行历史
func (s *Server) handleCommandHistory(c *gin.Context) {
	history := s.session.CommandHistory()
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"commands": history, "total": len(history)},
	})
}

// handleSendCommand 透传一条 ASCII 命令到设备
func (s *Server) handleSendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的命令请求：" + err.Error(),
		})
		return
	}
	if err := s.session.SendCommand(req.Command); err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("命令 %q 已发送", req.Command),
	})
}

// handleKeyEvent 处理浏览器按键事件并把按键状态下发到设备
func (s *Server) handleKeyEvent(c *gin.Context) {
	var req KeyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的按键事件：" + err.Error(),
		})
		return
	}

	var action device.KeyAction
	switch req.Action {
	case "press":
		action = device.KeyPress
	case "release":
		action = device.KeyRelease
	default:
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  fmt.Sprintf("未知按键动作 %q", req.Action),
		})
		return
	}

	if err := s.session.HandleKey(req.Key, action); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"keys": s.session.Keys()},
	})
}

// handleSetActive Device ON/OFF 切换
func (s *Server) handleSetActive(c *gin.Context) {
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的请求：" + err.Error(),
		})
		return
	}
	s.session.SetActive(*req.Active)
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.session.Status(),
	})
}
