package handler

import (
	"errors"
	"strconv"

	"edu-message-system/internal/model"
	"edu-message-system/internal/service"
	"edu-message-system/pkg/apperr"
	"edu-message-system/pkg/jwt"
	"edu-message-system/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler 账号HTTP处理器
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建UserHandler实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	UserType  string `json:"userType"`
	SchoolID  string `json:"schoolId"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 注册账号
// POST /api/v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求体格式错误")
		return
	}

	user, token, err := h.userService.Register(c.Request.Context(), &service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		UserType:  model.UserType(req.UserType),
		SchoolID:  req.SchoolID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, "注册成功", response.RegisterResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
	})
}

// Login 登录
// POST /api/v1/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求体格式错误")
		return
	}

	user, token, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "邮箱或密码错误")
			return
		}
		response.FromError(c, err)
		return
	}

	response.Success(c, "登录成功", response.LoginResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
	})
}

// Profile 获取当前用户资料
// GET /api/v1/users/profile
func (h *UserHandler) Profile(c *gin.Context) {
	userID, err := strconv.ParseUint(jwt.GetUserID(c), 10, 64)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), uint(userID))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			response.NotFound(c, "用户不存在")
			return
		}
		response.FromError(c, err)
		return
	}

	response.Success(c, "获取成功", gin.H{"user": response.FilterUserInfo(user)})
}
