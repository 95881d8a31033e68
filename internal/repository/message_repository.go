package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"edu-message-system/internal/model"
	"edu-message-system/pkg/apperr"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MessageFilter 消息查询过滤条件
// Status 为空或非法时忽略该维度
type MessageFilter struct {
	Status    model.Status
	SchoolID  string
	StudentID string
	Search    string // 模糊匹配：正文/学生姓名/学校名称/课程名称
}

// ListOptions 分页与排序参数
type ListOptions struct {
	SortBy string // 对外字段名，白名单校验
	Desc   bool
	Offset int
	Limit  int
}

// StatusCount 按状态统计结果
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// SchoolVolume 学校消息量统计结果
type SchoolVolume struct {
	SchoolID     string `json:"schoolId"`
	SchoolName   string `json:"schoolName"`
	MessageCount int64  `json:"messageCount"`
}

// MessageRepository 消息数据仓储
// 所有读操作自动排除软删除行；所有方法携带context以约束执行时间
type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	GetByMessageID(ctx context.Context, messageID string) (*model.Message, error)
	FindConversationID(ctx context.Context, studentID, schoolID, programID string) (string, error)
	CreateReply(ctx context.Context, reply *model.Message, parentMessageID string) error
	List(ctx context.Context, f MessageFilter, opts ListOptions) ([]*model.Message, error)
	Count(ctx context.Context, f MessageFilter) (int64, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error)
	UpdateStatus(ctx context.Context, messageID string, status model.Status, readAt *time.Time) error
	StatusCounts(ctx context.Context) ([]StatusCount, error)
	TopSchools(ctx context.Context, limit int) ([]SchoolVolume, error)
	CountUnreadByStudent(ctx context.Context, studentID string) (int64, error)
}

// sortColumns 排序字段白名单（对外字段名 -> 列名）
var sortColumns = map[string]string{
	"sentAt":      "sent_at",
	"sent_at":     "sent_at",
	"status":      "status",
	"priority":    "priority",
	"schoolName":  "school_name",
	"studentName": "student_name",
	"replyCount":  "reply_count",
	"createdAt":   "created_at",
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// translateStoreErr 将存储层错误翻译为业务错误
// 超时/连接类错误统一归为不可用（可重试），不向上抛裸驱动错误
func translateStoreErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(notFoundMsg)
	}
	if apperr.IsTimeout(err) {
		return apperr.Unavailable("store operation timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return apperr.Unavailable("store unreachable", err)
	}
	return apperr.Internal("store operation failed", err)
}

// Create 创建消息
func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	err := r.db.WithContext(ctx).Create(message).Error
	return translateStoreErr(err, "message not found")
}

// GetByMessageID 根据消息ID获取消息（不含已删除）
func (r *messageRepository) GetByMessageID(ctx context.Context, messageID string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&message).Error
	if err != nil {
		return nil, translateStoreErr(err, "message not found")
	}
	return &message, nil
}

// FindConversationID 查找已存在会话的会话ID
// 按(学生,学校,课程)匹配最近一条未删除消息；无则返回空串
func (r *messageRepository) FindConversationID(ctx context.Context, studentID, schoolID, programID string) (string, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Select("conversation_id").
		Where("student_id = ? AND school_id = ? AND program_id = ?", studentID, schoolID, programID).
		Order("sent_at DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", translateStoreErr(err, "message not found")
	}
	return message.ConversationID, nil
}

// CreateReply 创建回复并更新原消息（单事务）
// 回复插入与父消息状态更新要么同时生效要么都不生效
func (r *messageRepository) CreateReply(ctx context.Context, reply *model.Message, parentMessageID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reply).Error; err != nil {
			return err
		}

		res := tx.Model(&model.Message{}).
			Where("message_id = ?", parentMessageID).
			Updates(map[string]interface{}{
				"status":      model.StatusReplied,
				"replied_at":  now,
				"has_replies": true,
				"reply_count": gorm.Expr("reply_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		// 父消息已被删除则整体回滚
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translateStoreErr(err, "original message not found")
}

// applyFilter 组装过滤条件
func (r *messageRepository) applyFilter(q *gorm.DB, f MessageFilter) *gorm.DB {
	if f.Status != "" && f.Status.IsValid() {
		q = q.Where("status = ?", f.Status)
	}
	if f.SchoolID != "" {
		q = q.Where("school_id = ?", f.SchoolID)
	}
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.Search != "" {
		// utf8mb4默认排序规则不区分大小写
		like := "%" + f.Search + "%"
		q = q.Where(
			"content LIKE ? OR student_name LIKE ? OR school_name LIKE ? OR program_title LIKE ?",
			like, like, like, like,
		)
	}
	return q
}

// List 按过滤条件分页查询消息
func (r *messageRepository) List(ctx context.Context, f MessageFilter, opts ListOptions) ([]*model.Message, error) {
	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "sent_at"
	}
	direction := "ASC"
	if opts.Desc {
		direction = "DESC"
	}

	var messages []*model.Message
	q := r.applyFilter(r.db.WithContext(ctx).Model(&model.Message{}), f)
	err := q.Order(column + " " + direction).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&messages).Error
	if err != nil {
		return nil, translateStoreErr(err, "message not found")
	}
	return messages, nil
}

// Count 按过滤条件统计总数
func (r *messageRepository) Count(ctx context.Context, f MessageFilter) (int64, error) {
	var count int64
	q := r.applyFilter(r.db.WithContext(ctx).Model(&model.Message{}), f)
	if err := q.Count(&count).Error; err != nil {
		return 0, translateStoreErr(err, "message not found")
	}
	return count, nil
}

// ListByConversation 获取会话内全部消息，按发送时间升序（阅读顺序）
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, translateStoreErr(err, "conversation not found")
	}
	return messages, nil
}

// UpdateStatus 更新消息状态
// 进入read状态时写入readAt
func (r *messageRepository) UpdateStatus(ctx context.Context, messageID string, status model.Status, readAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if readAt != nil {
		updates["read_at"] = *readAt
	}

	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("message_id = ?", messageID).
		Updates(updates)
	if res.Error != nil {
		return translateStoreErr(res.Error, "message not found")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("message not found")
	}
	return nil
}

// StatusCounts 按状态分组统计消息数量
func (r *messageRepository) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, translateStoreErr(err, "message not found")
	}
	return counts, nil
}

// TopSchools 按消息量取前N所学校
// 计数相同按school_id升序，保证结果稳定
func (r *messageRepository) TopSchools(ctx context.Context, limit int) ([]SchoolVolume, error) {
	var volumes []SchoolVolume
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("school_id, MIN(school_name) AS school_name, COUNT(*) AS message_count").
		Group("school_id").
		Order("message_count DESC, school_id ASC").
		Limit(limit).
		Scan(&volumes).Error
	if err != nil {
		return nil, translateStoreErr(err, "message not found")
	}
	return volumes, nil
}

// CountUnreadByStudent 统计学生的未读回复数（发给学生且未进入read的回复）
func (r *messageRepository) CountUnreadByStudent(ctx context.Context, studentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("student_id = ? AND is_reply = ? AND status IN ?", studentID, true,
			[]model.Status{model.StatusSent, model.StatusDelivered}).
		Count(&count).Error
	if err != nil {
		return 0, translateStoreErr(err, "message not found")
	}
	return count, nil
}
