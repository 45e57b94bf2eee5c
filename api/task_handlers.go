package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HojinB/MARS-UI/define"
	"github.com/HojinB/MARS-UI/task"
)

// handleSubmitTask 提交后台任务。保存任务未带角度时取最新快照
func (s *Server) handleSubmitTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  "无效的任务请求：" + err.Error(),
		})
		return
	}
	if !task.ValidType(req.Type) {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: "error",
			Error:  fmt.Sprintf("未知任务类型 %q", req.Type),
		})
		return
	}

	t := task.Task{
		Type:         task.Type(req.Type),
		ShoulderGain: req.ShoulderGain,
		JointGain:    req.JointGain,
		Angles:       req.Angles,
	}
	if t.Type == task.TypeSave && len(t.Angles) == 0 {
		snap := s.session.State().ReadLatest()
		if !snap.HasFrame {
			c.JSON(http.StatusConflict, ApiResponse{
				Status: "error",
				Error:  "尚未收到编码器帧，无法保存姿态",
			})
			return
		}
		angles := make([]float64, 0, 2*define.NumJoints)
		for _, v := range snap.LeftArm {
			angles = append(angles, float64(v))
		}
		for _, v := range snap.RightArm {
			angles = append(angles, float64(v))
		}
		t.Angles = angles
	}

	id, err := s.tasks.Submit(t)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, task.ErrQueueFull) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, ApiResponse{
			Status: "error",
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusAccepted, ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("任务 %s 已入队", id),
		Data:    gin.H{"task_id": id, "pending": s.tasks.Pending()},
	})
}

// handlePollResults 取走当前已完成的任务结果
func (s *Server) handlePollResults(c *gin.Context) {
	results := make([]task.Result, 0)
	for {
		r, ok := s.tasks.PollResult()
		if !ok {
			break
		}
		results = append(results, r)
	}
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   gin.H{"results": results, "pending": s.tasks.Pending()},
	})
}

// handleTeleopStart 开启遥操作转发
func (s *Server) handleTeleopStart(c *gin.Context) {
	s.teleop.Start()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "遥操作转发已开启",
	})
}

// handleTeleopStop 停止遥操作转发
func (s *Server) handleTeleopStop(c *gin.Context) {
	s.teleop.Stop()
	c.JSON(http.StatusOK, ApiResponse{
		Status:  "success",
		Message: "遥操作转发已停止",
	})
}

// handleTeleopStatus 遥操作转发状态
func (s *Server) handleTeleopStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data: gin.H{
			"active": s.teleop.Active(),
			"sent":   s.teleop.SentCount(),
			"failed": s.teleop.FailedCount(),
		},
	})
}

// handleStreamStats 流处理统计
func (s *Server) handleStreamStats(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   s.worker.Stats(),
	})
}
