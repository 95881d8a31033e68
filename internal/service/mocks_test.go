package service

import (
	"context"
	"time"

	"edu-message-system/internal/model"
	"edu-message-system/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository 消息仓储mock
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*model.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) FindConversationID(ctx context.Context, studentID, schoolID, programID string) (string, error) {
	args := m.Called(ctx, studentID, schoolID, programID)
	return args.String(0), args.Error(1)
}

func (m *MockMessageRepository) CreateReply(ctx context.Context, reply *model.Message, parentMessageID string) error {
	args := m.Called(ctx, reply, parentMessageID)
	return args.Error(0)
}

func (m *MockMessageRepository) List(ctx context.Context, f repository.MessageFilter, opts repository.ListOptions) ([]*model.Message, error) {
	args := m.Called(ctx, f, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func (m *MockMessageRepository) Count(ctx context.Context, f repository.MessageFilter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateStatus(ctx context.Context, messageID string, status model.Status, readAt *time.Time) error {
	args := m.Called(ctx, messageID, status, readAt)
	return args.Error(0)
}

func (m *MockMessageRepository) StatusCounts(ctx context.Context) ([]repository.StatusCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StatusCount), args.Error(1)
}

func (m *MockMessageRepository) TopSchools(ctx context.Context, limit int) ([]repository.SchoolVolume, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.SchoolVolume), args.Error(1)
}

func (m *MockMessageRepository) CountUnreadByStudent(ctx context.Context, studentID string) (int64, error) {
	args := m.Called(ctx, studentID)
	return args.Get(0).(int64), args.Error(1)
}

// MockSchoolRepository 学校仓储mock
type MockSchoolRepository struct {
	mock.Mock
}

func (m *MockSchoolRepository) GetBySchoolID(ctx context.Context, schoolID string) (*model.School, error) {
	args := m.Called(ctx, schoolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.School), args.Error(1)
}

func (m *MockSchoolRepository) Create(ctx context.Context, school *model.School) error {
	args := m.Called(ctx, school)
	return args.Error(0)
}

func (m *MockSchoolRepository) AppendProgram(ctx context.Context, schoolID, programID string) error {
	args := m.Called(ctx, schoolID, programID)
	return args.Error(0)
}

// MockUserRepository 账号仓储mock
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateLastSeen(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockNotifier 实时推送mock
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) MessageCreated(msg *model.Message) {
	m.Called(msg)
}

func (m *MockNotifier) MessageReplied(reply *model.Message) {
	m.Called(reply)
}
