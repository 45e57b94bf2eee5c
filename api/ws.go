package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HojinB/MARS-UI/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 面板与 API 同机部署, 跨域由 CORS 中间件统一放行
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 5 * time.Second
)

// wsClient 一个 WebSocket 订阅者。
// OnSample 在流消费者线程上执行, 队列满直接丢帧, 绝不反压
type wsClient struct {
	send chan stream.Sample
}

func (c *wsClient) OnSample(s stream.Sample) {
	select {
	case c.send <- s:
	default:
		// 浏览器端要的是最新状态, 挤掉最旧一帧
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- s:
		default:
		}
	}
}

// handleStreamWS 把实时采样推送给浏览器
func (s *Server) handleStreamWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{send: make(chan stream.Sample, wsSendBuffer)}
	s.worker.AddSubscriber(client)
	log.Printf("🔭 WebSocket 订阅者接入: %s", conn.RemoteAddr())

	defer func() {
		s.worker.RemoveSubscriber(client)
		conn.Close()
		log.Printf("🔭 WebSocket 订阅者退出: %s", conn.RemoteAddr())
	}()

	// 读取协程只用于感知客户端关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case sample := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(sample); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
