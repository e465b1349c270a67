package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/response"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
)

// AuthHandler 认证处理器
// 同步端点（/login等）按插件协议返回裸JSON或纯文本，管理端点使用统一响应格式
type AuthHandler struct {
	authService authservice.AuthService
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(authService authservice.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// loginRequest 登录请求体
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// refreshRequest 刷新令牌请求体
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// tokenRequest 携带访问令牌的请求体
type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register 注册新用户
// @Summary 注册新用户
// @Description 创建新用户账号，用户名唯一，密码以bcrypt哈希存储
// @Tags 认证管理
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "用户名和密码"
// @Success 200 {object} map[string]interface{} "注册成功"
// @Failure 400 {object} map[string]interface{} "请求参数错误"
// @Router /users/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.authService.Register(req.Username, req.Password)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "注册失败")
		}
		return
	}

	response.SuccessWithMessage(c, "注册成功", gin.H{
		"user_id":   user.ID,
		"username":  user.Username,
		"user_hash": user.UserHash,
	})
}

// Login 用户登录
// @Summary 用户登录
// @Description 验证用户名密码并签发访问令牌与刷新令牌
// @Tags 认证管理
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "用户名和密码"
// @Success 200 {object} map[string]interface{} "登录成功，返回令牌对"
// @Failure 401 {object} map[string]interface{} "用户名或密码错误"
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	pair, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(401, gin.H{"error": "invalid username or password"})
		return
	}

	// 同步端点直接返回令牌对
	c.JSON(200, gin.H{
		"token":         pair.Token,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt.Unix(),
	})
}

// RefreshToken 刷新令牌
// @Summary 刷新令牌对
// @Description 使用刷新令牌换取新的令牌对，旧令牌对整体作废
// @Tags 认证管理
// @Accept json
// @Produce json
// @Param request body refreshRequest true "刷新令牌"
// @Success 200 {object} map[string]interface{} "刷新成功，返回新令牌对"
// @Failure 401 {object} map[string]interface{} "刷新令牌无效或已过期"
// @Router /refreshToken [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	pair, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(401, gin.H{"error": "invalid or expired refresh token"})
		return
	}

	c.JSON(200, gin.H{
		"token":         pair.Token,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt.Unix(),
	})
}

// RemoveToken 注销令牌
// @Summary 注销令牌
// @Description 作废指定的访问令牌及其配对的刷新令牌
// @Tags 认证管理
// @Produce json
// @Param token path string true "访问令牌"
// @Success 200 {object} map[string]interface{} "注销成功"
// @Router /removeToken/{token} [get]
func (h *AuthHandler) RemoveToken(c *gin.Context) {
	token := c.Param("token")

	// 注销不存在的令牌按成功处理, 客户端登出不应失败
	_ = h.authService.Revoke(token)

	c.JSON(200, gin.H{"status": "ok"})
}

// GetUserHashFromToken 根据令牌查询用户哈希
// @Summary 根据令牌查询用户哈希
// @Description 校验访问令牌并返回所属用户的匿名哈希
// @Tags 认证管理
// @Accept json
// @Produce json
// @Param request body tokenRequest true "访问令牌"
// @Success 200 {object} map[string]interface{} "查询成功"
// @Failure 401 {object} map[string]interface{} "令牌无效"
// @Router /GetUserHashFromToken [post]
func (h *AuthHandler) GetUserHashFromToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	userHash, err := h.authService.UserHashFromToken(req.Token)
	if err != nil {
		c.JSON(401, gin.H{"error": "invalid or expired token"})
		return
	}

	// 客户端只接受裸JSON字符串
	c.JSON(200, userHash)
}

// maintainerCheckRequest 维护者校验请求体
type maintainerCheckRequest struct {
	Token    string `json:"token" binding:"required"`
	DeckHash string `json:"deck_hash" binding:"required"`
}

// CheckUserToken 检查令牌所属用户是否为牌组维护者
// @Summary 检查令牌所属用户是否为牌组维护者
// @Description 校验访问令牌有效且所属用户维护指定牌组，按协议返回纯文本true或false
// @Tags 认证管理
// @Accept json
// @Produce plain
// @Param request body maintainerCheckRequest true "访问令牌与牌组哈希"
// @Success 200 {string} string "true或false"
// @Router /CheckUserToken [post]
func (h *AuthHandler) CheckUserToken(c *gin.Context) {
	var req maintainerCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(200, "false")
		return
	}

	isMaintainer, err := h.authService.IsMaintainer(req.Token, req.DeckHash)
	if err != nil || !isMaintainer {
		c.String(200, "false")
		return
	}
	c.String(200, "true")
}
