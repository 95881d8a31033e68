package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/model"
	"edu-message-system/internal/repository"
	"edu-message-system/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testTimeouts() config.TimeoutConfig {
	return config.TimeoutConfig{
		StoreWrite: time.Second,
		StoreRead:  time.Second,
	}
}

func validCreateInput() *CreateMessageInput {
	return &CreateMessageInput{
		StudentID:    "stu_1",
		StudentName:  "Anna Larsson",
		StudentEmail: "Anna@Example.com",
		SchoolID:     "sch_1",
		SchoolName:   "Stockholm Business School",
		ProgramID:    "prog_1",
		ProgramTitle: "MBA",
		Content:      "What are the admission requirements?",
	}
}

func TestCreateMessageValidationListsAllFields(t *testing.T) {
	svc := NewMessageService(new(MockMessageRepository), nil, nil, testTimeouts())

	_, err := svc.CreateMessage(context.Background(), &CreateMessageInput{})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	fields := apperr.FieldsOf(err)
	for _, want := range []string{
		"studentId", "studentName", "studentEmail",
		"schoolId", "schoolName", "programId", "programTitle", "content",
	} {
		assert.Contains(t, fields, want)
	}
}

func TestCreateMessageValidationRejectsOversizedContent(t *testing.T) {
	svc := NewMessageService(new(MockMessageRepository), nil, nil, testTimeouts())

	in := validCreateInput()
	in.Content = strings.Repeat("a", model.MaxContentLength+1)

	_, err := svc.CreateMessage(context.Background(), in)

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.FieldsOf(err), "content")
}

func TestCreateMessageReusesExistingConversation(t *testing.T) {
	repo := new(MockMessageRepository)
	notifier := new(MockNotifier)
	svc := NewMessageService(repo, nil, notifier, testTimeouts())

	repo.On("FindConversationID", mock.Anything, "stu_1", "sch_1", "prog_1").Return("stu_1_prog_1_1700000000000", nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)
	notifier.On("MessageCreated", mock.Anything).Return()

	msg, err := svc.CreateMessage(context.Background(), validCreateInput())

	require.NoError(t, err)
	assert.Equal(t, "stu_1_prog_1_1700000000000", msg.ConversationID)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestCreateMessageMintsNewConversation(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("FindConversationID", mock.Anything, "stu_1", "sch_1", "prog_1").Return("", nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)

	msg, err := svc.CreateMessage(context.Background(), validCreateInput())

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg.ConversationID, "stu_1_prog_1_"))
}

func TestCreateMessageDefaults(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("FindConversationID", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)

	msg, err := svc.CreateMessage(context.Background(), validCreateInput())

	require.NoError(t, err)
	assert.Len(t, msg.MessageID, model.MessageIDLength)
	assert.Equal(t, model.TypeInquiry, msg.MessageType)
	assert.Equal(t, model.SenderStudent, msg.Sender)
	assert.Equal(t, model.PriorityNormal, msg.Priority)
	assert.Equal(t, model.StatusSent, msg.Status)
	assert.Equal(t, "anna@example.com", msg.StudentEmail)
	assert.False(t, msg.IsReply)
}

func TestCreateMessageStoreUnavailable(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("FindConversationID", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", apperr.Unavailable("store timeout", context.DeadlineExceeded))

	_, err := svc.CreateMessage(context.Background(), validCreateInput())

	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func parentMessage() *model.Message {
	return &model.Message{
		MessageID:      "AbCdEf1234567890",
		ConversationID: "stu_1_prog_1_1700000000000",
		StudentID:      "stu_1",
		StudentName:    "Anna Larsson",
		StudentEmail:   "anna@example.com",
		SchoolID:       "sch_1",
		SchoolName:     "Stockholm Business School",
		ProgramID:      "prog_1",
		ProgramTitle:   "MBA",
		Content:        "What are the admission requirements?",
		MessageType:    model.TypeInquiry,
		Sender:         model.SenderStudent,
		Priority:       model.PriorityHigh,
		Status:         model.StatusSent,
		SentAt:         time.Now().Add(-time.Hour),
	}
}

func TestReplyInheritsThreadFields(t *testing.T) {
	repo := new(MockMessageRepository)
	notifier := new(MockNotifier)
	svc := NewMessageService(repo, nil, notifier, testTimeouts())

	parent := parentMessage()
	repo.On("GetByMessageID", mock.Anything, parent.MessageID).Return(parent, nil)
	repo.On("CreateReply", mock.Anything, mock.AnythingOfType("*model.Message"), parent.MessageID).Return(nil)
	notifier.On("MessageReplied", mock.Anything).Return()

	actor := Actor{UserID: "42", UserType: model.UserTypeAdmin}
	reply, err := svc.ReplyToMessage(context.Background(), parent.MessageID, "We accept applications in May.", model.SenderAdmin, actor)

	require.NoError(t, err)
	assert.Equal(t, parent.ConversationID, reply.ConversationID)
	assert.Equal(t, parent.StudentID, reply.StudentID)
	assert.Equal(t, parent.SchoolID, reply.SchoolID)
	assert.Equal(t, parent.Priority, reply.Priority)
	assert.Equal(t, model.TypeReply, reply.MessageType)
	assert.Equal(t, parent.MessageID, reply.ParentMessageID)
	assert.True(t, reply.IsReply)
	assert.Equal(t, "42", reply.AssignedAdminID)
	notifier.AssertExpectations(t)
}

func TestReplyParentNotFound(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("GetByMessageID", mock.Anything, "missing").Return(nil, apperr.NotFound("message not found"))

	_, err := svc.ReplyToMessage(context.Background(), "missing", "hello", model.SenderAdmin, Actor{UserType: model.UserTypeAdmin})

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReplyCrossSchoolForbidden(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	parent := parentMessage()
	repo.On("GetByMessageID", mock.Anything, parent.MessageID).Return(parent, nil)

	actor := Actor{UserType: model.UserTypeSchool, SchoolID: "sch_other"}
	_, err := svc.ReplyToMessage(context.Background(), parent.MessageID, "hello", model.SenderSchool, actor)

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	repo.AssertNotCalled(t, "CreateReply", mock.Anything, mock.Anything, mock.Anything)
}

func TestReplyRejectsStudentSender(t *testing.T) {
	svc := NewMessageService(new(MockMessageRepository), nil, nil, testTimeouts())

	_, err := svc.ReplyToMessage(context.Background(), "any", "hello", model.SenderStudent, Actor{UserType: model.UserTypeAdmin})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.FieldsOf(err), "sender")
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	svc := NewMessageService(new(MockMessageRepository), nil, nil, testTimeouts())

	_, err := svc.UpdateStatus(context.Background(), "any", "archived", Actor{UserType: model.UserTypeAdmin})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateStatusRejectsBackward(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	msg := parentMessage()
	msg.Status = model.StatusRead
	repo.On("GetByMessageID", mock.Anything, msg.MessageID).Return(msg, nil)

	_, err := svc.UpdateStatus(context.Background(), msg.MessageID, "sent", Actor{UserType: model.UserTypeAdmin})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatusIdempotent(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	msg := parentMessage()
	msg.Status = model.StatusRead
	repo.On("GetByMessageID", mock.Anything, msg.MessageID).Return(msg, nil)

	got, err := svc.UpdateStatus(context.Background(), msg.MessageID, "read", Actor{UserType: model.UserTypeAdmin})

	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got.Status)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatusSetsReadAt(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	msg := parentMessage()
	repo.On("GetByMessageID", mock.Anything, msg.MessageID).Return(msg, nil)
	repo.On("UpdateStatus", mock.Anything, msg.MessageID, model.StatusRead, mock.MatchedBy(func(readAt *time.Time) bool {
		return readAt != nil
	})).Return(nil)

	got, err := svc.UpdateStatus(context.Background(), msg.MessageID, "read", Actor{UserType: model.UserTypeAdmin})

	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got.Status)
	require.NotNil(t, got.ReadAt)
	repo.AssertExpectations(t)
}

func TestReopenOnlyFromReplied(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	replied := parentMessage()
	replied.Status = model.StatusReplied
	repo.On("GetByMessageID", mock.Anything, replied.MessageID).Return(replied, nil)
	repo.On("UpdateStatus", mock.Anything, replied.MessageID, model.StatusRead, (*time.Time)(nil)).Return(nil)

	got, err := svc.Reopen(context.Background(), replied.MessageID, Actor{UserType: model.UserTypeAdmin})

	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, got.Status)
}

func TestReopenRejectsUnrepliedMessage(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	msg := parentMessage()
	repo.On("GetByMessageID", mock.Anything, msg.MessageID).Return(msg, nil)

	_, err := svc.Reopen(context.Background(), msg.MessageID, Actor{UserType: model.UserTypeAdmin})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListAdminMessagesPagination(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	items := []*model.Message{parentMessage()}
	repo.On("Count", mock.Anything, mock.Anything).Return(int64(45), nil)
	repo.On("List", mock.Anything, mock.Anything, mock.MatchedBy(func(opts repository.ListOptions) bool {
		return opts.Offset == 20 && opts.Limit == 20
	})).Return(items, nil)
	repo.On("StatusCounts", mock.Anything).Return([]repository.StatusCount{{Status: "sent", Count: 40}}, nil)
	repo.On("TopSchools", mock.Anything, 10).Return([]repository.SchoolVolume{}, nil)

	list, err := svc.ListAdminMessages(context.Background(), &ListQuery{Page: 2, PageSize: 20})

	require.NoError(t, err)
	assert.Equal(t, int64(45), list.Pagination.TotalMessages)
	assert.Equal(t, int64(3), list.Pagination.TotalPages)
	assert.True(t, list.Pagination.HasNext)
	assert.True(t, list.Pagination.HasPrev)
	assert.False(t, list.Degraded)
	require.NotNil(t, list.Stats)
	assert.Equal(t, int64(45), list.Stats.TotalMessages)
}

func TestListAdminMessagesDegradedOnStoreTimeout(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("Count", mock.Anything, mock.Anything).
		Return(int64(0), apperr.Unavailable("store timeout", context.DeadlineExceeded))

	list, err := svc.ListAdminMessages(context.Background(), &ListQuery{Page: 1, PageSize: 20})

	require.NoError(t, err)
	assert.True(t, list.Degraded)
	assert.Empty(t, list.Items)
}

func TestListAdminMessagesIgnoresInvalidStatusFilter(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("Count", mock.Anything, mock.MatchedBy(func(f repository.MessageFilter) bool {
		return f.Status == ""
	})).Return(int64(0), nil)
	repo.On("List", mock.Anything, mock.Anything, mock.Anything).Return([]*model.Message{}, nil)
	repo.On("StatusCounts", mock.Anything).Return([]repository.StatusCount{}, nil)
	repo.On("TopSchools", mock.Anything, 10).Return([]repository.SchoolVolume{}, nil)

	_, err := svc.ListAdminMessages(context.Background(), &ListQuery{Status: "bogus", Page: 1, PageSize: 20})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestListStudentMessagesForbiddenForOtherStudent(t *testing.T) {
	svc := NewMessageService(new(MockMessageRepository), nil, nil, testTimeouts())

	actor := Actor{UserID: "stu_1", UserType: model.UserTypeStudent}
	_, err := svc.ListStudentMessages(context.Background(), "stu_2", 1, 20, actor)

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestListStudentMessagesDegradedOnStoreTimeout(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("Count", mock.Anything, mock.Anything).
		Return(int64(0), apperr.Unavailable("store timeout", context.DeadlineExceeded))

	actor := Actor{UserID: "stu_1", UserType: model.UserTypeStudent}
	list, err := svc.ListStudentMessages(context.Background(), "stu_1", 1, 20, actor)

	require.NoError(t, err)
	assert.True(t, list.Degraded)
	assert.Empty(t, list.Items)
}

func TestGetConversationNotFoundWhenEmpty(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("ListByConversation", mock.Anything, "conv_1").Return([]*model.Message{}, nil)

	_, err := svc.GetConversation(context.Background(), "conv_1", Actor{UserType: model.UserTypeAdmin})

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetConversationForbiddenForOtherStudent(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	repo.On("ListByConversation", mock.Anything, "conv_1").Return([]*model.Message{parentMessage()}, nil)

	actor := Actor{UserID: "stu_other", UserType: model.UserTypeStudent}
	_, err := svc.GetConversation(context.Background(), "conv_1", actor)

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUnreadCountFallsBackToStore(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil, testTimeouts())

	// Redis未初始化，计数从数据库回源
	repo.On("CountUnreadByStudent", mock.Anything, "stu_1").Return(int64(7), nil)

	actor := Actor{UserID: "stu_1", UserType: model.UserTypeStudent}
	count, err := svc.UnreadCount(context.Background(), "stu_1", actor)

	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
