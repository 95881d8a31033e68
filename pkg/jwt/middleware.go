package jwt

import (
	"strings"

	"edu-message-system/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserIDKey 用户ID在gin.Context中的键名
	ContextUserIDKey = "user_id"
	// ContextUserTypeKey 账号类型在gin.Context中的键名
	ContextUserTypeKey = "user_type"
	// ContextSchoolIDKey 学校ID在gin.Context中的键名（学校账号）
	ContextSchoolIDKey = "school_id"
	// ContextClaimsKey JWT声明在gin.Context中的键名
	ContextClaimsKey = "jwt_claims"
)

// AuthMiddleware JWT认证中间件
// 从请求头中提取Authorization: Bearer <token>
// 验证token并将用户信息存入gin.Context
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少Authorization请求头")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "Authorization格式错误，应为Bearer <token>")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			response.Unauthorized(c, "token不能为空")
			c.Abort()
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "token无效或已过期")
			c.Abort()
			return
		}

		// 将用户信息存入Context
		c.Set(ContextUserIDKey, claims.Subject)
		c.Set(ContextUserTypeKey, claims.UserType)
		c.Set(ContextSchoolIDKey, claims.SchoolID)
		c.Set(ContextClaimsKey, claims)

		c.Next()
	}
}

// RequireUserType 限定账号类型的中间件，需在AuthMiddleware之后使用
func (s *JWTService) RequireUserType(types ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := GetUserType(c)
		for _, t := range types {
			if userType == t {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "没有访问该接口的权限")
		c.Abort()
	}
}

// GetUserID 从gin.Context中获取用户ID
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// GetUserType 从gin.Context中获取账号类型
func GetUserType(c *gin.Context) string {
	if userType, exists := c.Get(ContextUserTypeKey); exists {
		if t, ok := userType.(string); ok {
			return t
		}
	}
	return ""
}

// GetSchoolID 从gin.Context中获取学校ID
func GetSchoolID(c *gin.Context) string {
	if schoolID, exists := c.Get(ContextSchoolIDKey); exists {
		if id, ok := schoolID.(string); ok {
			return id
		}
	}
	return ""
}

// GetClaims 从gin.Context中获取JWT声明
func GetClaims(c *gin.Context) *CustomClaims {
	if claims, exists := c.Get(ContextClaimsKey); exists {
		if cc, ok := claims.(*CustomClaims); ok {
			return cc
		}
	}
	return nil
}
