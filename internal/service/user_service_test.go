package service

import (
	"context"
	"testing"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/model"
	"edu-message-system/pkg/apperr"
	"edu-message-system/pkg/jwt"
	"edu-message-system/pkg/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestUserService(repo *MockUserRepository) *UserService {
	jwtSvc := jwt.NewJWTService(config.JWTConfig{
		Secret:     "test-secret",
		ExpireTime: time.Hour,
		Issuer:     "edu-message-system",
	})
	return NewUserService(repo, jwtSvc, testTimeouts())
}

func TestRegisterValidationListsAllFields(t *testing.T) {
	svc := newTestUserService(new(MockUserRepository))

	_, _, err := svc.Register(context.Background(), &RegisterInput{Password: "short"})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "firstName")
	assert.Contains(t, fields, "lastName")
}

func TestRegisterSchoolAccountRequiresSchoolID(t *testing.T) {
	svc := newTestUserService(new(MockUserRepository))

	_, _, err := svc.Register(context.Background(), &RegisterInput{
		Email:     "school@example.com",
		Password:  "password123",
		FirstName: "Admissions",
		LastName:  "Office",
		UserType:  model.UserTypeSchool,
	})

	require.Error(t, err)
	assert.Contains(t, apperr.FieldsOf(err), "schoolId")
}

func TestRegisterDefaultsToStudentAndIssuesToken(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestUserService(repo)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Run(func(args mock.Arguments) {
		args.Get(1).(*model.User).ID = 7
	}).Return(nil)

	user, token, err := svc.Register(context.Background(), &RegisterInput{
		Email:     "Anna@Example.com",
		Password:  "password123",
		FirstName: "Anna",
		LastName:  "Larsson",
	})

	require.NoError(t, err)
	assert.Equal(t, model.UserTypeStudent, user.UserType)
	assert.Equal(t, "anna@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, token)
	// 密码只存哈希
	assert.NotEqual(t, "password123", user.PasswordHash)
}

func TestLoginInvalidPassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestUserService(repo)

	hash, err := password.Hash("correct-password")
	require.NoError(t, err)
	repo.On("GetByEmail", mock.Anything, "anna@example.com").Return(&model.User{
		ID:           7,
		Email:        "anna@example.com",
		PasswordHash: hash,
		IsActive:     true,
	}, nil)

	_, _, err = svc.Login(context.Background(), "anna@example.com", "wrong-password")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmailNotDistinguishable(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestUserService(repo)

	repo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperr.NotFound("user not found"))

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestUserService(repo)

	hash, err := password.Hash("password123")
	require.NoError(t, err)
	repo.On("GetByEmail", mock.Anything, "anna@example.com").Return(&model.User{
		ID:           7,
		Email:        "anna@example.com",
		PasswordHash: hash,
		UserType:     model.UserTypeStudent,
		IsActive:     true,
	}, nil)
	repo.On("UpdateLastSeen", mock.Anything, uint(7)).Return(nil)

	user, token, err := svc.Login(context.Background(), "anna@example.com", "password123")

	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.NotEmpty(t, token)
	repo.AssertExpectations(t)
}

func TestLoginDisabledAccountForbidden(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newTestUserService(repo)

	repo.On("GetByEmail", mock.Anything, "anna@example.com").Return(&model.User{
		ID:       7,
		Email:    "anna@example.com",
		IsActive: false,
	}, nil)

	_, _, err := svc.Login(context.Background(), "anna@example.com", "password123")

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
