package response

import (
	"net/http"
	"strings"
	"time"

	"edu-message-system/internal/model"
	"edu-message-system/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// 所有接口返回同一信封：success + message/data 或 error + timestamp
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// Success 成功响应
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: now(),
	})
}

// Created 创建成功响应（201）
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: now(),
	})
}

// Fail 错误响应
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success:   false,
		Message:   message,
		Timestamp: now(),
	})
}

// FailWithError 带错误详情的错误响应
// 详情仅在开发模式下返回，避免泄露内部信息
func FailWithError(c *gin.Context, status int, message string, err error) {
	resp := Response{
		Success:   false,
		Message:   message,
		Timestamp: now(),
	}
	if gin.Mode() == gin.DebugMode && err != nil {
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误
func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, message)
}

// Forbidden 403错误
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, message)
}

// NotFound 404错误
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, message)
}

// ServiceUnavailable 503错误（存储不可用/超时，可重试）
func ServiceUnavailable(c *gin.Context, message string) {
	Fail(c, http.StatusServiceUnavailable, message)
}

// InternalError 500错误
func InternalError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, message)
}

// FromError 根据业务错误类别映射HTTP状态码
// 校验错误附带全部问题字段；未预期错误不向调用方暴露细节
func FromError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		msg := err.Error()
		if fields := apperr.FieldsOf(err); len(fields) > 0 {
			msg = "字段缺失或非法: " + strings.Join(fields, ", ")
		}
		BadRequest(c, msg)
	case apperr.KindNotFound:
		NotFound(c, err.Error())
	case apperr.KindForbidden:
		Forbidden(c, err.Error())
	case apperr.KindUnavailable:
		ServiceUnavailable(c, "存储暂时不可用，请稍后重试")
	default:
		FailWithError(c, http.StatusInternalServerError, "服务器内部错误", err)
	}
}

// MessageInfo 消息视图（统一对外字段名）
type MessageInfo struct {
	MessageID       string `json:"messageId"`
	ConversationID  string `json:"conversationId"`
	StudentID       string `json:"studentId"`
	StudentName     string `json:"studentName"`
	StudentEmail    string `json:"studentEmail"`
	StudentPhone    string `json:"studentPhone,omitempty"`
	SchoolID        string `json:"schoolId"`
	SchoolName      string `json:"schoolName"`
	ProgramID       string `json:"programId"`
	ProgramTitle    string `json:"programTitle"`
	Content         string `json:"content"`
	MessageType     string `json:"messageType"`
	Sender          string `json:"sender"`
	Priority        string `json:"priority"`
	Status          string `json:"status"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
	IsReply         bool   `json:"isReply"`
	HasReplies      bool   `json:"hasReplies"`
	ReplyCount      int    `json:"replyCount"`
	SentAt          string `json:"sentAt"`
	ReadAt          string `json:"readAt,omitempty"`
	RepliedAt       string `json:"repliedAt,omitempty"`
}

// FilterMessageInfo 过滤消息信息
func FilterMessageInfo(m *model.Message) *MessageInfo {
	if m == nil {
		return nil
	}

	info := &MessageInfo{
		MessageID:       m.MessageID,
		ConversationID:  m.ConversationID,
		StudentID:       m.StudentID,
		StudentName:     m.StudentName,
		StudentEmail:    m.StudentEmail,
		StudentPhone:    m.StudentPhone,
		SchoolID:        m.SchoolID,
		SchoolName:      m.SchoolName,
		ProgramID:       m.ProgramID,
		ProgramTitle:    m.ProgramTitle,
		Content:         m.Content,
		MessageType:     string(m.MessageType),
		Sender:          string(m.Sender),
		Priority:        string(m.Priority),
		Status:          string(m.Status),
		ParentMessageID: m.ParentMessageID,
		IsReply:         m.IsReply,
		HasReplies:      m.HasReplies,
		ReplyCount:      m.ReplyCount,
		SentAt:          m.SentAt.Format(time.RFC3339),
	}
	if m.ReadAt != nil {
		info.ReadAt = m.ReadAt.Format(time.RFC3339)
	}
	if m.RepliedAt != nil {
		info.RepliedAt = m.RepliedAt.Format(time.RFC3339)
	}
	return info
}

// FilterMessageList 批量转换消息视图
func FilterMessageList(messages []*model.Message) []*MessageInfo {
	infos := make([]*MessageInfo, 0, len(messages))
	for _, m := range messages {
		infos = append(infos, FilterMessageInfo(m))
	}
	return infos
}

// UserInfo 用户信息（隐藏敏感字段）
type UserInfo struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	UserType  string `json:"userType"`
	SchoolID  string `json:"schoolId,omitempty"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// FilterUserInfo 过滤用户信息，隐藏敏感字段
func FilterUserInfo(user *model.User) *UserInfo {
	if user == nil {
		return nil
	}

	return &UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		UserType:  string(user.UserType),
		SchoolID:  user.SchoolID,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// LoginResponse 登录响应
type LoginResponse struct {
	User        *UserInfo `json:"user"`
	AccessToken string    `json:"access_token"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	User        *UserInfo `json:"user"`
	AccessToken string    `json:"access_token"`
}
