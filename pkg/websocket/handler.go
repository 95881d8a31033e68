package websocket

import (
	"net/http"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/model"
	"edu-message-system/pkg/jwt"
	"edu-message-system/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// Handler WebSocket接入处理器
type Handler struct {
	manager *Manager
	jwtSvc  *jwt.JWTService
	cfg     config.WebSocketConfig
}

// NewHandler 创建WebSocket处理器
func NewHandler(manager *Manager, jwtSvc *jwt.JWTService, cfg config.WebSocketConfig) *Handler {
	return &Handler{manager: manager, jwtSvc: jwtSvc, cfg: cfg}
}

// roomsForClaims 根据账号类型决定订阅的房间
func roomsForClaims(claims *jwt.CustomClaims) []string {
	switch model.UserType(claims.UserType) {
	case model.UserTypeAdmin:
		return []string{"admin"}
	case model.UserTypeSchool:
		return []string{"school:" + claims.SchoolID}
	default:
		return []string{"student:" + claims.Subject}
	}
}

// Serve 处理WebSocket升级请求
// token通过query参数或Sec-WebSocket-Protocol传递
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "缺少token")
		return
	}

	claims, err := h.jwtSvc.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &Client{
		Rooms: roomsForClaims(claims),
		Conn:  conn,
		Send:  make(chan []byte, 256),
	}
	h.manager.AddClient(client)
	defer h.manager.RemoveClient(client)

	// 写协程 + 定时发送ping心跳
	go func() {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					return
				}
				_ = conn.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	// 读循环仅用于心跳保活，客户端不通过WebSocket发送业务消息
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
}
