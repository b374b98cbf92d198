package api

import (
	"log"
	"net/http"
	"time"

	"BrandAmbassador-server/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const wsWriteTimeout = 10 * time.Second

// MachineOf 从会话中取出某条流程的状态机
type MachineOf func(sess *pipeline.Session) *pipeline.Machine

func AvatarMachine(sess *pipeline.Session) *pipeline.Machine { return sess.Avatar.Machine() }

func VideoMachine(sess *pipeline.Session) *pipeline.Machine { return sess.Video.Machine() }

// 状态推送：GET /v1/api/studio/{avatar,video}/wss
// 每次状态变化（包括轮询提示语轮换）都推送最新值，慢客户端只会丢掉中间值
func (h *Handler) StatusWebSocket(of MachineOf) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.streamStatus(c, of(h.session(c)))
	}
}

func (h *Handler) streamStatus(c *gin.Context, m *pipeline.Machine) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[ws] WebSocket升级失败: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := m.Subscribe()
	defer cancel()

	// 读协程只用于感知客户端断开
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
		case <-closed:
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		}
	}
}

// 状态查询：GET /v1/api/studio/{avatar,video}/status
func (h *Handler) GetStatus(of MachineOf) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, of(h.session(c)).Status())
	}
}
