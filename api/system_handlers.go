package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemStatusResponse 系统状态响应
type SystemStatusResponse struct {
	Uptime        string    `json:"uptime"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
	Session       any       `json:"session"`
	Stream        any       `json:"stream"`
	TasksPending  int       `json:"tasks_pending"`
	Timestamp     time.Time `json:"timestamp"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// handleSystemStatus 获取系统状态（进程侧与主机侧）
func (s *Server) handleSystemStatus(c *gin.Context) {
	resp := SystemStatusResponse{
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Session:      s.session.Status(),
		Stream:       s.worker.Stats(),
		TasksPending: s.tasks.Pending(),
		Timestamp:    time.Now(),
	}

	// 主机指标尽力而为，取不到就留零值
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
		resp.MemoryUsedMB = vm.Used / 1024 / 1024
		resp.MemoryTotalMB = vm.Total / 1024 / 1024
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: "success",
		Data:   resp,
	})
}

// handleHealthCheck 健康检查
func (s *Server) handleHealthCheck(c *gin.Context) {
	status := "healthy"
	if s.session == nil || s.worker == nil || s.tasks == nil {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   s.version,
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, ApiResponse{
		Status: "success",
		Data:   response,
	})
}
