package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// handleRecordingStart 开始录制（与硬件键 2 等价）
func (s *Server) handleRecordingStart(c *gin.Context) {
	s.session.Recorder().Start()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "录制已开始",
	})
}

// handleRecordingStop 停止录制，缓冲保留
func (s *Server) handleRecordingStop(c *gin.Context) {
	s.session.Recorder().Stop()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "录制已停止",
		Data:    gin.H{"samples": s.session.Recorder().Len()},
	})
}

// handleRecordingClear 清空录制缓冲（与硬件键 5 等价）
func (s *Server) handleRecordingClear(c *gin.Context) {
	s.session.Recorder().Clear()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "录制缓冲已清空",
	})
}

// handleRecordingSave 把录制缓冲导出为 CSV，文件名缺省按时间戳生成
func (s *Server) handleRecordingSave(c *gin.Context) {
	var req SaveRequest
	_ = c.ShouldBindJSON(&req) // 请求体可为空

	name := strings.TrimSpace(req.Filename)
	if name == "" {
		name = fmt.Sprintf("recording_%s.csv", time.Now().Format("20060102_150405"))
	}
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}
	// 只取文件名部分，阻止写到导出目录之外
	path := filepath.Join(s.cfg.LogDir, filepath.Base(name))

	rows, err := s.session.Recorder().SaveCSV(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("已导出 %d 条样本", rows),
		Data:    gin.H{"path": path, "rows": rows},
	})
}

// handleRecordingStatus 录制状态
func (s *Server) handleRecordingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: gin.H{
			"recording": s.session.Recorder().Active(),
			"samples":   s.session.Recorder().Len(),
		},
	})
}

// handleListPoses 已保存姿态列表
func (s *Server) handleListPoses(c *gin.Context) {
	poses := s.session.Poses().List()
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"poses": poses, "total": len(poses)},
	})
}

// handleSavePose 把最新快照存为命名姿态
func (s *Server) handleSavePose(c *gin.Context) {
	var req PoseRequest
	_ = c.ShouldBindJSON(&req)

	snap := s.session.State().ReadLatest()
	if !snap.HasFrame {
		c.JSON(http.StatusConflict, ApiResponse{
			Status: "error",
			Error:  "尚未收到编码器帧，无法保存姿态",
		})
		return
	}
	pose := s.session.Poses().Save(req.Name, snap)
	c.JSON(http.StatusCreated, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("姿态 %s 已保存", pose.Name),
		Data:    pose,
	})
}

// handleClearPoses 清空已保存姿态
func (s *Server) handleClearPoses(c *gin.Context) {
	n := s.session.Poses().Clear()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("已清空 %d 个姿态", n),
	})
}
