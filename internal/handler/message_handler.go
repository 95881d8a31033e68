package handler

import (
	"strconv"

	"edu-message-system/internal/model"
	"edu-message-system/internal/service"
	"edu-message-system/pkg/jwt"
	"edu-message-system/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息HTTP处理器
type MessageHandler struct {
	messageService *service.MessageService
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// CreateMessageRequest 创建消息请求
// 兼容旧版字段名：userId/userName/userEmail 等价于 studentId/studentName/studentEmail，
// 新字段优先；兼容映射只在这里做，服务层不感知旧字段
type CreateMessageRequest struct {
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
	StudentPhone string `json:"studentPhone"`
	SchoolID     string `json:"schoolId"`
	SchoolName   string `json:"schoolName"`
	ProgramID    string `json:"programId"`
	ProgramTitle string `json:"programTitle"`
	Content      string `json:"content"`
	MessageType  string `json:"messageType"`
	Priority     string `json:"priority"`

	// 旧版客户端字段
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

func (r *CreateMessageRequest) toInput() *service.CreateMessageInput {
	in := &service.CreateMessageInput{
		StudentID:    r.StudentID,
		StudentName:  r.StudentName,
		StudentEmail: r.StudentEmail,
		StudentPhone: r.StudentPhone,
		SchoolID:     r.SchoolID,
		SchoolName:   r.SchoolName,
		ProgramID:    r.ProgramID,
		ProgramTitle: r.ProgramTitle,
		Content:      r.Content,
		MessageType:  model.MessageType(r.MessageType),
		Priority:     model.Priority(r.Priority),
	}
	if in.StudentID == "" {
		in.StudentID = r.UserID
	}
	if in.StudentName == "" {
		in.StudentName = r.UserName
	}
	if in.StudentEmail == "" {
		in.StudentEmail = r.UserEmail
	}
	return in
}

// ReplyRequest 回复消息请求
type ReplyRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"` // admin/school，默认admin
}

// UpdateStatusRequest 更新状态请求
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// actorFrom 从JWT上下文构造操作者
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:   jwt.GetUserID(c),
		UserType: model.UserType(jwt.GetUserType(c)),
		SchoolID: jwt.GetSchoolID(c),
	}
}

// listData 列表响应数据
func listData(list *service.MessageList) gin.H {
	data := gin.H{
		"messages":   response.FilterMessageList(list.Items),
		"pagination": list.Pagination,
	}
	if list.Stats != nil {
		data["stats"] = list.Stats
	}
	if list.Degraded {
		data["degraded"] = true
	}
	return data
}

// Create 创建学生咨询消息
// POST /api/v1/messages
func (h *MessageHandler) Create(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求体格式错误")
		return
	}

	message, err := h.messageService.CreateMessage(c.Request.Context(), req.toInput())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, "消息发送成功", gin.H{
		"message": response.FilterMessageInfo(message),
	})
}

// ListStudentMessages 学生消息列表
// GET /api/v1/messages/user/:user_id
func (h *MessageHandler) ListStudentMessages(c *gin.Context) {
	studentID := c.Param("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	list, err := h.messageService.ListStudentMessages(c.Request.Context(), studentID, page, pageSize, actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, "获取成功", listData(list))
}

// UnreadCount 学生未读回复数
// GET /api/v1/messages/unread/count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	actor := actorFrom(c)
	studentID := c.DefaultQuery("userId", actor.UserID)

	count, err := h.messageService.UnreadCount(c.Request.Context(), studentID, actor)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, "获取成功", gin.H{"unreadCount": count})
}

// ListAdminMessages 管理端消息列表（过滤/搜索/分页/统计）
// GET /api/v1/messages/admin/all
func (h *MessageHandler) ListAdminMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	query := &service.ListQuery{
		Status:    c.Query("status"),
		SchoolID:  c.Query("schoolId"),
		Search:    c.Query("search"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.DefaultQuery("sortBy", "sentAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}

	// 学校账号强制限定本校范围
	if actor := actorFrom(c); actor.UserType == model.UserTypeSchool {
		query.SchoolID = actor.SchoolID
	}

	list, err := h.messageService.ListAdminMessages(c.Request.Context(), query)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, "获取成功", listData(list))
}

// Reply 回复消息
// POST /api/v1/messages/admin/reply/:message_id
func (h *MessageHandler) Reply(c *gin.Context) {
	messageID := c.Param("message_id")

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求体格式错误")
		return
	}

	actor := actorFrom(c)
	sender := model.Sender(req.Sender)
	if sender == "" {
		// 未指定时按操作者类型推断
		if actor.UserType == model.UserTypeSchool {
			sender = model.SenderSchool
		} else {
			sender = model.SenderAdmin
		}
	}

	reply, err := h.messageService.ReplyToMessage(c.Request.Context(), messageID, req.Content, sender, actor)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, "回复发送成功", gin.H{
		"message": response.FilterMessageInfo(reply),
	})
}

// MarkAsRead 标记消息已读
// PATCH /api/v1/messages/admin/mark-read/:message_id
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	message, err := h.messageService.MarkAsRead(c.Request.Context(), c.Param("message_id"), actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, "已标记为已读", gin.H{
		"message": response.FilterMessageInfo(message),
	})
}

// UpdateStatus 更新消息状态
// PUT /api/v1/messages/admin/status/:message_id
func (h *MessageHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求体格式错误")
		return
	}

	message, err := h.messageService.UpdateStatus(c.Request.Context(), c.Param("message_id"), req.Status, actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, "状态更新成功", gin.H{
		"message": response.FilterMessageInfo(message),
	})
}

// Reopen 重新打开已回复的消息
// POST /api/v1/messages/admin/reopen/:message_id
func (h *MessageHandler) Reopen(c *gin.Context) {
	message, err := h.messageService.Reopen(c.Request.Context(), c.Param("message_id"), actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, "消息已重新打开", gin.H{
		"message": response.FilterMessageInfo(message),
	})
}

// GetConversation 获取会话全部消息
// GET /api/v1/messages/conversation/:conversation_id
func (h *MessageHandler) GetConversation(c *gin.Context) {
	result, err := h.messageService.GetConversation(c.Request.Context(), c.Param("conversation_id"), actorFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	data := gin.H{
		"conversationId": result.ConversationID,
		"messages":       response.FilterMessageList(result.Messages),
		"messageCount":   len(result.Messages),
	}
	if result.Degraded {
		data["degraded"] = true
	}

	response.Success(c, "获取成功", data)
}
