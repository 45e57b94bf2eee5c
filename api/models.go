package api

import "github.com/HojinB/MARS-UI/define"

// ApiResponse 统一响应信封
type ApiResponse = define.ApiResponse

// ConnectRequest 串口连接请求
type ConnectRequest struct {
	Port string `json:"port" binding:"required"`
}

// CommandRequest 透传 ASCII 命令请求
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// KeyEventRequest 浏览器按键事件
type KeyEventRequest struct {
	Key    int    `json:"key" binding:"required"`
	Action string `json:"action" binding:"required"` // press / release
}

// ActiveRequest Device ON/OFF 切换请求
type ActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SaveRequest CSV 导出请求，文件名可选
type SaveRequest struct {
	Filename string `json:"filename"`
}

// PoseRequest 保存姿态请求，名字可选
type PoseRequest struct {
	Name string `json:"name"`
}

// TaskRequest 后台任务提交请求
type TaskRequest struct {
	Type         string    `json:"type" binding:"required"`
	ShoulderGain float64   `json:"shoulder_gain"`
	JointGain    float64   `json:"joint_gain"`
	Angles       []float64 `json:"angles"`
}
