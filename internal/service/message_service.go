package service

import (
	"context"
	"strings"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/model"
	"edu-message-system/internal/repository"
	"edu-message-system/pkg/apperr"
	"edu-message-system/pkg/logger"
	"edu-message-system/pkg/redis"

	"go.uber.org/zap"
)

// Notifier 实时推送接口
// 推送是尽力而为的旁路通道，失败不影响主流程
type Notifier interface {
	MessageCreated(msg *model.Message)
	MessageReplied(reply *model.Message)
}

// Actor 当前操作者（来自JWT声明）
type Actor struct {
	UserID   string
	UserType model.UserType
	SchoolID string
}

// CreateMessageInput 创建咨询消息的输入
type CreateMessageInput struct {
	StudentID    string
	StudentName  string
	StudentEmail string
	StudentPhone string
	SchoolID     string
	SchoolName   string
	ProgramID    string
	ProgramTitle string
	Content      string
	MessageType  model.MessageType // 可选，默认inquiry
	Priority     model.Priority    // 可选，默认normal
}

// ListQuery 列表查询参数
type ListQuery struct {
	Status    string // 非法值忽略，不报错
	SchoolID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string // asc/desc，默认desc
}

// Pagination 分页信息
type Pagination struct {
	CurrentPage   int   `json:"currentPage"`
	PageSize      int   `json:"pageSize"`
	TotalMessages int64 `json:"totalMessages"`
	TotalPages    int64 `json:"totalPages"`
	HasNext       bool  `json:"hasNext"`
	HasPrev       bool  `json:"hasPrev"`
}

// MessageStats 消息统计
type MessageStats struct {
	StatusBreakdown []repository.StatusCount  `json:"statusBreakdown"`
	TopSchools      []repository.SchoolVolume `json:"topSchools"`
	TotalMessages   int64                     `json:"totalMessages"`
}

// MessageList 列表查询结果
// Degraded 表示读操作超时后按统一降级策略返回了空结果
type MessageList struct {
	Items      []*model.Message
	Pagination Pagination
	Stats      *MessageStats
	Degraded   bool
}

// ConversationResult 会话查询结果
type ConversationResult struct {
	ConversationID string
	Messages       []*model.Message
	Degraded       bool
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	topSchoolsLimit = 10
)

// MessageService 消息业务服务
type MessageService struct {
	repo     repository.MessageRepository
	enricher *SchoolEnricher
	notifier Notifier
	timeouts config.TimeoutConfig
}

// NewMessageService 创建MessageService实例
// notifier可为nil（无实时推送通道时）
func NewMessageService(repo repository.MessageRepository, enricher *SchoolEnricher, notifier Notifier, timeouts config.TimeoutConfig) *MessageService {
	return &MessageService{
		repo:     repo,
		enricher: enricher,
		notifier: notifier,
		timeouts: timeouts,
	}
}

// validateCreateInput 校验创建输入，一次性列出全部问题字段
func validateCreateInput(in *CreateMessageInput) error {
	var fields []string
	required := []struct {
		name  string
		value string
	}{
		{"studentId", in.StudentID},
		{"studentName", in.StudentName},
		{"studentEmail", in.StudentEmail},
		{"schoolId", in.SchoolID},
		{"schoolName", in.SchoolName},
		{"programId", in.ProgramID},
		{"programTitle", in.ProgramTitle},
		{"content", in.Content},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields = append(fields, f.name)
		}
	}
	if len(in.Content) > model.MaxContentLength {
		fields = append(fields, "content")
	}
	if in.MessageType != "" && in.MessageType != model.TypeInquiry && in.MessageType != model.TypeFollowUp {
		fields = append(fields, "messageType")
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		fields = append(fields, "priority")
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid message input", fields...)
	}
	return nil
}

// CreateMessage 创建学生咨询消息
// 会话ID优先复用既有线程，否则新生成；学校信息补全作为后台任务入队，
// 入队失败或任务失败都不影响本次写入
func (s *MessageService) CreateMessage(ctx context.Context, in *CreateMessageInput) (*model.Message, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreWrite)
	defer cancel()

	now := time.Now()

	// 查找既有会话；超时按不可用处理，写路径不降级
	conversationID, err := s.repo.FindConversationID(wctx, in.StudentID, in.SchoolID, in.ProgramID)
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		conversationID = model.NewConversationID(in.StudentID, in.ProgramID, now)
	}

	messageType := in.MessageType
	if messageType == "" {
		messageType = model.TypeInquiry
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	message := &model.Message{
		MessageID:      model.GenerateMessageID(),
		ConversationID: conversationID,
		StudentID:      in.StudentID,
		StudentName:    strings.TrimSpace(in.StudentName),
		StudentEmail:   model.NormalizeEmail(in.StudentEmail),
		StudentPhone:   strings.TrimSpace(in.StudentPhone),
		SchoolID:       in.SchoolID,
		SchoolName:     strings.TrimSpace(in.SchoolName),
		ProgramID:      in.ProgramID,
		ProgramTitle:   strings.TrimSpace(in.ProgramTitle),
		Content:        in.Content,
		MessageType:    messageType,
		Sender:         model.SenderStudent,
		Priority:       priority,
		Status:         model.StatusSent,
		SentAt:         now,
	}

	if err := s.repo.Create(wctx, message); err != nil {
		return nil, err
	}

	// 学校信息补全：后台执行，结果不回传
	if s.enricher != nil {
		s.enricher.Enqueue(EnrichTask{
			SchoolID:   in.SchoolID,
			SchoolName: message.SchoolName,
			ProgramID:  in.ProgramID,
		})
	}

	// 统计缓存失效
	_ = redis.InvalidateAdminStats()

	if s.notifier != nil {
		s.notifier.MessageCreated(message)
	}

	return message, nil
}

// ReplyToMessage 回复消息（管理员/学校）
// 回复写入与原消息状态更新在仓储层单事务内完成
func (s *MessageService) ReplyToMessage(ctx context.Context, parentMessageID, content string, sender model.Sender, actor Actor) (*model.Message, error) {
	var fields []string
	if strings.TrimSpace(content) == "" || len(content) > model.MaxContentLength {
		fields = append(fields, "content")
	}
	if sender != model.SenderAdmin && sender != model.SenderSchool {
		fields = append(fields, "sender")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid reply input", fields...)
	}

	wctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreWrite)
	defer cancel()

	parent, err := s.repo.GetByMessageID(wctx, parentMessageID)
	if err != nil {
		return nil, err
	}

	// 学校账号只能回复发给本校的消息
	if actor.UserType == model.UserTypeSchool && actor.SchoolID != parent.SchoolID {
		return nil, apperr.Forbidden("cannot access another school's message")
	}

	now := time.Now()
	reply := &model.Message{
		MessageID:       model.GenerateMessageID(),
		ConversationID:  parent.ConversationID,
		StudentID:       parent.StudentID,
		StudentName:     parent.StudentName,
		StudentEmail:    parent.StudentEmail,
		StudentPhone:    parent.StudentPhone,
		SchoolID:        parent.SchoolID,
		SchoolName:      parent.SchoolName,
		ProgramID:       parent.ProgramID,
		ProgramTitle:    parent.ProgramTitle,
		Content:         content,
		MessageType:     model.TypeReply,
		Sender:          sender,
		Priority:        parent.Priority,
		Status:          model.StatusSent,
		ParentMessageID: parent.MessageID,
		IsReply:         true,
		SentAt:          now,
	}
	if sender == model.SenderAdmin {
		reply.AssignedAdminID = actor.UserID
	}

	if err := s.repo.CreateReply(wctx, reply, parent.MessageID); err != nil {
		return nil, err
	}

	// 学生未读计数与统计缓存
	_ = redis.IncrementUnreadCount(parent.StudentID)
	_ = redis.InvalidateAdminStats()

	if s.notifier != nil {
		s.notifier.MessageReplied(reply)
	}

	return reply, nil
}

// normalizePaging 规范化分页参数
func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// buildPagination 计算分页信息
func buildPagination(page, pageSize int, total int64, returned int) Pagination {
	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	skip := int64((page - 1) * pageSize)
	return Pagination{
		CurrentPage:   page,
		PageSize:      pageSize,
		TotalMessages: total,
		TotalPages:    totalPages,
		HasNext:       skip+int64(returned) < total,
		HasPrev:       page > 1,
	}
}

// isDegradable 读操作超时/存储不可用时走统一降级策略
func isDegradable(err error) bool {
	return apperr.KindOf(err) == apperr.KindUnavailable
}

// ListAdminMessages 管理端消息列表：过滤/搜索/分页/排序/统计
// 读超时按统一降级策略返回空结果并置Degraded标志
func (s *MessageService) ListAdminMessages(ctx context.Context, q *ListQuery) (*MessageList, error) {
	page, pageSize := normalizePaging(q.Page, q.PageSize)

	filter := repository.MessageFilter{
		SchoolID: q.SchoolID,
		Search:   q.Search,
	}
	// 非法状态值忽略，不报错
	if st := model.Status(q.Status); st.IsValid() {
		filter.Status = st
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreRead)
	defer cancel()

	total, err := s.repo.Count(rctx, filter)
	if err != nil {
		if isDegradable(err) {
			logger.Warn("管理端列表读超时，返回降级空结果", zap.Error(err))
			return &MessageList{Items: []*model.Message{}, Pagination: buildPagination(page, pageSize, 0, 0), Degraded: true}, nil
		}
		return nil, err
	}

	items, err := s.repo.List(rctx, filter, repository.ListOptions{
		SortBy: q.SortBy,
		Desc:   q.SortOrder != "asc",
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		if isDegradable(err) {
			logger.Warn("管理端列表读超时，返回降级空结果", zap.Error(err))
			return &MessageList{Items: []*model.Message{}, Pagination: buildPagination(page, pageSize, 0, 0), Degraded: true}, nil
		}
		return nil, err
	}

	result := &MessageList{
		Items:      items,
		Pagination: buildPagination(page, pageSize, total, len(items)),
	}

	// 统计是辅助信息，失败仅记录日志
	stats, err := s.adminStats(rctx)
	if err != nil {
		logger.Warn("获取消息统计失败", zap.Error(err))
	} else {
		result.Stats = stats
	}

	return result, nil
}

// adminStats 管理端统计：优先读Redis缓存，未命中回源并写回
func (s *MessageService) adminStats(ctx context.Context) (*MessageStats, error) {
	var cached MessageStats
	if hit, err := redis.GetCachedAdminStats(&cached); err == nil && hit {
		return &cached, nil
	}

	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	tops, err := s.repo.TopSchools(ctx, topSchoolsLimit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, repository.MessageFilter{})
	if err != nil {
		return nil, err
	}

	stats := &MessageStats{
		StatusBreakdown: counts,
		TopSchools:      tops,
		TotalMessages:   total,
	}
	_ = redis.CacheAdminStats(stats)

	return stats, nil
}

// ListStudentMessages 学生消息列表，按发送时间倒序
// 学生只能查看自己的消息；学校账号不开放此接口数据
func (s *MessageService) ListStudentMessages(ctx context.Context, studentID string, page, pageSize int, actor Actor) (*MessageList, error) {
	if actor.UserType == model.UserTypeStudent && actor.UserID != studentID {
		return nil, apperr.Forbidden("cannot access another student's messages")
	}
	if actor.UserType == model.UserTypeSchool {
		return nil, apperr.Forbidden("school accounts cannot access student listings")
	}

	page, pageSize = normalizePaging(page, pageSize)
	filter := repository.MessageFilter{StudentID: studentID}

	rctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreRead)
	defer cancel()

	total, err := s.repo.Count(rctx, filter)
	if err == nil {
		var items []*model.Message
		items, err = s.repo.List(rctx, filter, repository.ListOptions{
			SortBy: "sentAt",
			Desc:   true,
			Offset: (page - 1) * pageSize,
			Limit:  pageSize,
		})
		if err == nil {
			return &MessageList{
				Items:      items,
				Pagination: buildPagination(page, pageSize, total, len(items)),
			}, nil
		}
	}
	if isDegradable(err) {
		logger.Warn("学生列表读超时，返回降级空结果", zap.String("student_id", studentID), zap.Error(err))
		return &MessageList{Items: []*model.Message{}, Pagination: buildPagination(page, pageSize, 0, 0), Degraded: true}, nil
	}
	return nil, err
}

// GetConversation 获取会话全部消息（时间升序，阅读顺序）
// 空会话返回NotFound；读超时走统一降级策略
func (s *MessageService) GetConversation(ctx context.Context, conversationID string, actor Actor) (*ConversationResult, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperr.Validation("invalid conversation input", "conversationId")
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreRead)
	defer cancel()

	messages, err := s.repo.ListByConversation(rctx, conversationID)
	if err != nil {
		if isDegradable(err) {
			logger.Warn("会话读超时，返回降级空结果", zap.String("conversation_id", conversationID), zap.Error(err))
			return &ConversationResult{ConversationID: conversationID, Messages: []*model.Message{}, Degraded: true}, nil
		}
		return nil, err
	}
	if len(messages) == 0 {
		return nil, apperr.NotFound("conversation not found")
	}

	// 跨租户校验：学生只能看自己的会话，学校只能看本校的会话
	head := messages[0]
	if actor.UserType == model.UserTypeStudent && actor.UserID != head.StudentID {
		return nil, apperr.Forbidden("cannot access another student's conversation")
	}
	if actor.UserType == model.UserTypeSchool && actor.SchoolID != head.SchoolID {
		return nil, apperr.Forbidden("cannot access another school's conversation")
	}

	return &ConversationResult{ConversationID: conversationID, Messages: messages}, nil
}

// UpdateStatus 更新消息状态
// 状态只允许单向前进（同状态幂等）；进入read时写入readAt
func (s *MessageService) UpdateStatus(ctx context.Context, messageID, newStatus string, actor Actor) (*model.Message, error) {
	status := model.Status(newStatus)
	if !status.IsValid() {
		return nil, apperr.Validation("invalid status value", "status")
	}

	wctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreWrite)
	defer cancel()

	message, err := s.repo.GetByMessageID(wctx, messageID)
	if err != nil {
		return nil, err
	}

	if actor.UserType == model.UserTypeSchool && actor.SchoolID != message.SchoolID {
		return nil, apperr.Forbidden("cannot access another school's message")
	}

	if !model.CanTransition(message.Status, status) {
		return nil, apperr.Validation("status can only move forward", "status")
	}
	if message.Status == status {
		// 幂等：状态未变化，不写库
		return message, nil
	}

	var readAt *time.Time
	if status == model.StatusRead && message.ReadAt == nil {
		now := time.Now()
		readAt = &now
	}

	if err := s.repo.UpdateStatus(wctx, messageID, status, readAt); err != nil {
		return nil, err
	}

	// 学生侧未读计数：回复被标记已读时递减
	if status == model.StatusRead && message.IsReply {
		_ = redis.DecrementUnreadCount(message.StudentID)
	}

	message.Status = status
	if readAt != nil {
		message.ReadAt = readAt
	}
	return message, nil
}

// MarkAsRead 标记消息为已读
func (s *MessageService) MarkAsRead(ctx context.Context, messageID string, actor Actor) (*model.Message, error) {
	return s.UpdateStatus(ctx, messageID, string(model.StatusRead), actor)
}

// Reopen 重新打开已回复的消息（replied -> read）
// 这是状态机唯一允许的回退动作
func (s *MessageService) Reopen(ctx context.Context, messageID string, actor Actor) (*model.Message, error) {
	wctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreWrite)
	defer cancel()

	message, err := s.repo.GetByMessageID(wctx, messageID)
	if err != nil {
		return nil, err
	}

	if actor.UserType == model.UserTypeSchool && actor.SchoolID != message.SchoolID {
		return nil, apperr.Forbidden("cannot access another school's message")
	}

	if message.Status != model.StatusReplied {
		return nil, apperr.Validation("only replied messages can be reopened", "status")
	}

	if err := s.repo.UpdateStatus(wctx, messageID, model.StatusRead, nil); err != nil {
		return nil, err
	}

	message.Status = model.StatusRead
	return message, nil
}

// UnreadCount 学生未读回复数量（优先Redis，未命中回源数据库并写回）
func (s *MessageService) UnreadCount(ctx context.Context, studentID string, actor Actor) (int64, error) {
	if actor.UserType == model.UserTypeStudent && actor.UserID != studentID {
		return 0, apperr.Forbidden("cannot access another student's unread count")
	}

	if count, err := redis.GetUnreadCount(studentID); err == nil && count >= 0 {
		return count, nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreRead)
	defer cancel()

	count, err := s.repo.CountUnreadByStudent(rctx, studentID)
	if err != nil {
		return 0, err
	}

	_ = redis.SetUnreadCount(studentID, count)

	return count, nil
}
