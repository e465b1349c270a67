package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/response"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
)

// 上下文键
const (
	ContextUserKey = "current_user" // 认证通过后注入的用户对象
)

// TokenAuth 令牌认证中间件
// 从Authorization头（Bearer形式或裸令牌）读取访问令牌并校验
// 校验通过后将用户对象注入上下文，供处理器读取
func TokenAuth(authService authservice.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing access token")
			c.Abort()
			return
		}

		user, err := authService.ValidateToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired access token")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser 从上下文中读取认证用户
// 返回nil表示请求未经过认证中间件或认证失败
func CurrentUser(c *gin.Context) *database.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*database.User)
	if !ok {
		return nil
	}
	return user
}

// extractToken 提取访问令牌
// 依次尝试Authorization头（含Bearer前缀）和X-Auth-Token头
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
		return header
	}
	return c.GetHeader("X-Auth-Token")
}
