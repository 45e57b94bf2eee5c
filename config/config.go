package config

import (
	"fmt"

	"github.com/HojinB/MARS-UI/define"
)

var Config *define.Config

// Validate 检查启动必需的配置项
func Validate(cfg *define.Config) error {
	if cfg.WebPort == "" {
		return fmt.Errorf("未设置 Web 端口")
	}
	if cfg.BaudRate <= 0 {
		return fmt.Errorf("波特率必须为正数: %d", cfg.BaudRate)
	}
	if cfg.RobotHost == "" || cfg.RobotPort <= 0 {
		return fmt.Errorf("机器人服务地址不完整: %s:%d", cfg.RobotHost, cfg.RobotPort)
	}
	if cfg.DropPolicy != "" && cfg.DropPolicy != "newest" && cfg.DropPolicy != "oldest" {
		return fmt.Errorf("未知丢弃策略 %q", cfg.DropPolicy)
	}
	return nil
}
