package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/model"
	"edu-message-system/internal/repository"
	"edu-message-system/pkg/apperr"
	"edu-message-system/pkg/jwt"
	"edu-message-system/pkg/logger"
	"edu-message-system/pkg/password"

	"go.uber.org/zap"
)

// ErrInvalidCredentials 登录凭证错误（邮箱不存在与密码错误不区分）
var ErrInvalidCredentials = errors.New("invalid email or password")

// RegisterInput 注册输入
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	UserType  model.UserType // 可选，默认student
	SchoolID  string         // 学校账号必填
}

// UserService 账号业务服务
type UserService struct {
	repo     repository.UserRepository
	jwtSvc   *jwt.JWTService
	timeouts config.TimeoutConfig
}

// NewUserService 创建UserService实例
func NewUserService(repo repository.UserRepository, jwtSvc *jwt.JWTService, timeouts config.TimeoutConfig) *UserService {
	return &UserService{repo: repo, jwtSvc: jwtSvc, timeouts: timeouts}
}

// Register 注册账号并签发令牌
func (s *UserService) Register(ctx context.Context, in *RegisterInput) (*model.User, string, error) {
	var fields []string
	if strings.TrimSpace(in.Email) == "" {
		fields = append(fields, "email")
	}
	if len(in.Password) < password.MinLength {
		fields = append(fields, "password")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		fields = append(fields, "firstName")
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields = append(fields, "lastName")
	}
	userType := in.UserType
	if userType == "" {
		userType = model.UserTypeStudent
	}
	if !userType.IsValid() {
		fields = append(fields, "userType")
	}
	if userType == model.UserTypeSchool && strings.TrimSpace(in.SchoolID) == "" {
		fields = append(fields, "schoolId")
	}
	if len(fields) > 0 {
		return nil, "", apperr.Validation("invalid register input", fields...)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, "", apperr.Internal("hash password failed", err)
	}

	now := time.Now()
	user := &model.User{
		Email:        model.NormalizeEmail(in.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		UserType:     userType,
		SchoolID:     in.SchoolID,
		IsActive:     true,
		LastSeen:     now,
	}

	wctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreWrite)
	defer cancel()

	if err := s.repo.Create(wctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.jwtSvc.GenerateToken(fmt.Sprint(user.ID), string(user.UserType), user.SchoolID)
	if err != nil {
		return nil, "", apperr.Internal("generate token failed", err)
	}

	logger.Info("用户注册成功",
		zap.Uint("user_id", user.ID),
		zap.String("user_type", string(user.UserType)))

	return user, token, nil
}

// Login 登录验证并签发令牌
func (s *UserService) Login(ctx context.Context, email, pwd string) (*model.User, string, error) {
	if strings.TrimSpace(email) == "" || pwd == "" {
		return nil, "", apperr.Validation("invalid login input", "email", "password")
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreRead)
	defer cancel()

	user, err := s.repo.GetByEmail(rctx, model.NormalizeEmail(email))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.IsActive {
		return nil, "", apperr.Forbidden("account is disabled")
	}
	if !password.Verify(pwd, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtSvc.GenerateToken(fmt.Sprint(user.ID), string(user.UserType), user.SchoolID)
	if err != nil {
		return nil, "", apperr.Internal("generate token failed", err)
	}

	// 最近活跃时间异步刷新，失败不影响登录
	if err := s.repo.UpdateLastSeen(rctx, user.ID); err != nil {
		logger.Warn("刷新用户活跃时间失败", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return user, token, nil
}

// GetProfile 获取用户资料
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeouts.StoreRead)
	defer cancel()
	return s.repo.GetByID(rctx, userID)
}
