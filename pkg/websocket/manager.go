package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"edu-message-system/internal/model"
	"edu-message-system/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 代表一个WebSocket连接
// Rooms: 该连接订阅的房间（student:<id> / school:<id> / admin）
// Send: 发送消息的通道

type Client struct {
	Rooms []string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Event 实时推送事件
type Event struct {
	Type      string      `json:"type"` // message.created / message.replied
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Manager 管理所有在线连接，按房间分组推送
// 推送是尽力而为：慢客户端不会阻塞发布方

type Manager struct {
	rooms map[string]map[*Client]struct{}
	lock  sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// AddClient 将连接加入其订阅的所有房间
func (m *Manager) AddClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, room := range client.Rooms {
		if m.rooms[room] == nil {
			m.rooms[room] = make(map[*Client]struct{})
		}
		m.rooms[room][client] = struct{}{}
	}
}

// RemoveClient 将连接从所有房间移除并关闭发送通道
func (m *Manager) RemoveClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	removed := false
	for _, room := range client.Rooms {
		if clients, ok := m.rooms[room]; ok {
			if _, in := clients[client]; in {
				delete(clients, client)
				removed = true
			}
			if len(clients) == 0 {
				delete(m.rooms, room)
			}
		}
	}
	if removed {
		close(client.Send)
	}
}

// Broadcast 向房间内所有连接推送消息
func (m *Manager) Broadcast(room string, msg []byte) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for client := range m.rooms[room] {
		select {
		case client.Send <- msg:
		default:
			// 发送缓冲已满，丢弃该客户端的这条推送
		}
	}
}

// publish 序列化事件并广播到多个房间
func (m *Manager) publish(event *Event, rooms ...string) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("序列化推送事件失败", zap.Error(err))
		return
	}
	for _, room := range rooms {
		m.Broadcast(room, data)
	}
}

// MessageCreated 新咨询事件：推送给目标学校与管理端
func (m *Manager) MessageCreated(msg *model.Message) {
	m.publish(&Event{
		Type: "message.created",
		Data: map[string]interface{}{
			"messageId":      msg.MessageID,
			"conversationId": msg.ConversationID,
			"schoolId":       msg.SchoolID,
			"studentName":    msg.StudentName,
			"programTitle":   msg.ProgramTitle,
			"priority":       string(msg.Priority),
		},
		Timestamp: time.Now().Unix(),
	}, "school:"+msg.SchoolID, "admin")
}

// MessageReplied 回复事件：推送给学生
func (m *Manager) MessageReplied(reply *model.Message) {
	m.publish(&Event{
		Type: "message.replied",
		Data: map[string]interface{}{
			"messageId":       reply.MessageID,
			"conversationId":  reply.ConversationID,
			"parentMessageId": reply.ParentMessageID,
			"sender":          string(reply.Sender),
			"schoolName":      reply.SchoolName,
		},
		Timestamp: time.Now().Unix(),
	}, "student:"+reply.StudentID)
}
