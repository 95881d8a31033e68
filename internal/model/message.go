package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MessageType 消息类型
type MessageType string

const (
	TypeInquiry  MessageType = "inquiry"   // 学生首次咨询
	TypeReply    MessageType = "reply"     // 管理员/学校回复
	TypeFollowUp MessageType = "follow_up" // 学生追问
)

// Sender 发送方身份
type Sender string

const (
	SenderStudent Sender = "student"
	SenderAdmin   Sender = "admin"
	SenderSchool  Sender = "school"
)

// Priority 消息优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid 校验优先级取值
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status 消息生命周期状态
// 状态只允许单向前进：sent -> delivered -> read -> replied
// 唯一的回退动作是显式的 reopen（replied -> read）
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusReplied   Status = "replied"
)

// statusRank 状态序，用于单向推进校验
var statusRank = map[Status]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusReplied:   4,
}

// IsValid 校验状态取值
func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition 判断状态是否允许从 from 推进到 to
// 相同状态视为幂等操作，允许
func CanTransition(from, to Status) bool {
	fromRank, ok1 := statusRank[from]
	toRank, ok2 := statusRank[to]
	if !ok1 || !ok2 {
		return false
	}
	return toRank >= fromRank
}

const (
	// MaxContentLength 消息正文最大长度
	MaxContentLength = 5000
	// MaxAdminNotesLength 管理员备注最大长度
	MaxAdminNotesLength = 1000
	// MessageIDLength 消息ID长度
	MessageIDLength = 16
)

// Message 教育咨询消息模型
// MessageID 全局唯一且创建后不可变
// ConversationID 同一会话内所有消息共享
// 软删除后的消息不出现在任何查询中

type Message struct {
	ID             uint        `gorm:"primaryKey"`
	MessageID      string      `gorm:"type:varchar(32);not null;uniqueIndex;comment:消息ID"`
	ConversationID string      `gorm:"type:varchar(128);not null;index:idx_conv_sent,priority:1;comment:会话ID"`
	StudentID      string      `gorm:"type:varchar(64);not null;index:idx_student_sent,priority:1;comment:学生ID"`
	StudentName    string      `gorm:"type:varchar(128);not null;comment:学生姓名"`
	StudentEmail   string      `gorm:"type:varchar(128);not null;comment:学生邮箱"`
	StudentPhone   string      `gorm:"type:varchar(32);comment:学生电话"`
	SchoolID       string      `gorm:"type:varchar(64);not null;index:idx_school_sent,priority:1;comment:学校ID"`
	SchoolName     string      `gorm:"type:varchar(128);not null;comment:学校名称"`
	ProgramID      string      `gorm:"type:varchar(64);not null;index;comment:课程ID"`
	ProgramTitle   string      `gorm:"type:varchar(255);not null;comment:课程名称"`
	Content        string      `gorm:"type:text;not null;comment:消息内容"`
	MessageType    MessageType `gorm:"type:varchar(32);default:'inquiry';comment:消息类型"`
	Sender         Sender      `gorm:"type:varchar(32);not null;comment:发送方"`
	Priority       Priority    `gorm:"type:varchar(32);default:'normal';comment:优先级"`
	Status         Status      `gorm:"type:varchar(32);default:'sent';index:idx_status_sent,priority:1;comment:消息状态"`

	// 回复线程
	ParentMessageID string `gorm:"type:varchar(32);index;comment:父消息ID(回复时设置)"`
	IsReply         bool   `gorm:"default:false;comment:是否为回复"`
	HasReplies      bool   `gorm:"default:false;comment:是否已有回复"`
	ReplyCount      int    `gorm:"default:0;comment:回复数量"`

	// 管理员处理
	AssignedAdminID string `gorm:"type:varchar(64);comment:受理管理员ID"`
	AdminNotes      string `gorm:"type:varchar(1024);comment:管理员备注"`
	IsArchived      bool   `gorm:"default:false;comment:是否归档"`

	// 时间戳
	SentAt    time.Time      `gorm:"not null;index:idx_conv_sent,priority:2;index:idx_student_sent,priority:2;index:idx_school_sent,priority:2;index:idx_status_sent,priority:2;comment:发送时间"`
	ReadAt    *time.Time     `gorm:"comment:已读时间"`
	RepliedAt *time.Time     `gorm:"comment:回复时间"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Message) TableName() string { return "message" }

// messageIDChars 消息ID字符集
const messageIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateMessageID 生成随机消息ID（16位字母数字）
func GenerateMessageID() string {
	buf := make([]byte, MessageIDLength)
	if _, err := rand.Read(buf); err != nil {
		// 随机源不可用时退化为时间戳
		return fmt.Sprintf("%016x", time.Now().UnixNano())[:MessageIDLength]
	}
	for i, b := range buf {
		buf[i] = messageIDChars[int(b)%len(messageIDChars)]
	}
	return string(buf)
}

// NewConversationID 为首次咨询生成会话ID
// 组合学生ID、课程ID与创建时间，保证每次调用唯一
func NewConversationID(studentID, programID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", studentID, programID, at.UnixMilli())
}

// NormalizeEmail 规范化邮箱（去空格、转小写）
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
