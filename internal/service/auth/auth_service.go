// Package auth 提供用户注册、登录和令牌管理服务
// 访问令牌与刷新令牌成对签发，刷新时整行轮换
package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	apperrors "github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/keygen"
	"github.com/ankicollab/collab-server/internal/logger"
)

// TokenPair 一次签发的令牌对
type TokenPair struct {
	Token        string    `json:"token"`         // 访问令牌
	RefreshToken string    `json:"refresh_token"` // 刷新令牌
	ExpiresAt    time.Time `json:"expires_at"`    // 访问令牌过期时间
}

// AuthService 认证服务接口
// 定义了用户注册、登录、令牌签发/刷新/注销和维护者校验等操作
type AuthService interface {
	// Register 注册新用户
	Register(username, password string) (*database.User, error)

	// Login 用户登录，验证密码并签发令牌对
	Login(username, password string) (*TokenPair, error)

	// Refresh 使用刷新令牌轮换令牌对，旧令牌对整体作废
	Refresh(refreshToken string) (*TokenPair, error)

	// Revoke 注销访问令牌，同时作废配对的刷新令牌
	Revoke(token string) error

	// ValidateToken 校验访问令牌并返回所属用户
	ValidateToken(token string) (*database.User, error)

	// UserHashFromToken 根据访问令牌查询用户的匿名哈希
	UserHashFromToken(token string) (string, error)

	// GetUserByUsername 根据用户名查询用户
	GetUserByUsername(username string) (*database.User, error)

	// IsMaintainer 检查令牌所属用户是否为指定牌组的维护者
	IsMaintainer(token, deckHash string) (bool, error)
}

// authService 认证服务实现
type authService struct {
	db  *gorm.DB          // 数据库连接实例
	cfg config.AuthConfig // 认证配置
}

// NewAuthService 创建认证服务实例
// 参数:
//   - db: GORM数据库连接实例
//   - cfg: 认证配置（令牌有效期、bcrypt成本）
// 返回:
//   - AuthService: 认证服务接口实现
func NewAuthService(db *gorm.DB, cfg config.AuthConfig) AuthService {
	return &authService{db: db, cfg: cfg}
}

// Register 注册新用户
// 用户名唯一；密码以bcrypt哈希存储，同时生成对外的匿名用户哈希
func (s *authService) Register(username, password string) (*database.User, error) {
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidParameters
	}

	var count int64
	s.db.Model(&database.User{}).Where("username = ?", username).Count(&count)
	if count > 0 {
		return nil, apperrors.NewByCode(apperrors.ErrUserAlreadyExists)
	}

	cost := s.cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrInternalServer, err)
	}

	user := &database.User{
		Username:     username,
		PasswordHash: string(hash),
		UserHash:     keygen.NewUserHash(),
	}
	if err := s.db.Create(user).Error; err != nil {
		logger.Errorf("[认证服务] 创建用户失败: %s, 错误: %v", username, err)
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseInsert, err)
	}

	logger.Infof("[认证服务] 注册新用户: %s (ID: %d)", username, user.ID)
	return user, nil
}

// Login 用户登录
// 验证密码后签发新的令牌对，同一用户可持有多组令牌（多设备登录）
func (s *authService) Login(username, password string) (*TokenPair, error) {
	var user database.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrInvalidCredentials)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewByCode(apperrors.ErrInvalidCredentials)
	}

	pair, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, err
	}

	logger.Infof("[认证服务] 用户登录成功: %s (ID: %d)", username, user.ID)
	return pair, nil
}

// Refresh 刷新令牌对
// 校验刷新令牌有效期后作废旧令牌行并签发新令牌对
func (s *authService) Refresh(refreshToken string) (*TokenPair, error) {
	var authToken database.AuthToken
	if err := s.db.Where("refresh_token = ?", refreshToken).First(&authToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrTokenInvalid)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	if time.Now().After(authToken.RefreshExpiresAt) {
		return nil, apperrors.NewByCode(apperrors.ErrTokenExpired)
	}

	var pair *TokenPair
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 旧令牌对整体作废
		if err := tx.Delete(&authToken).Error; err != nil {
			return err
		}

		newToken := database.AuthToken{
			UserID:           authToken.UserID,
			Token:            keygen.NewToken(),
			RefreshToken:     keygen.NewToken(),
			ExpiresAt:        time.Now().Add(time.Duration(s.cfg.AccessTokenTTL) * time.Second),
			RefreshExpiresAt: time.Now().Add(time.Duration(s.cfg.RefreshTokenTTL) * time.Second),
		}
		if err := tx.Create(&newToken).Error; err != nil {
			return err
		}

		pair = &TokenPair{
			Token:        newToken.Token,
			RefreshToken: newToken.RefreshToken,
			ExpiresAt:    newToken.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		logger.Errorf("[认证服务] 刷新令牌失败: %v", err)
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseTransaction, err)
	}

	return pair, nil
}

// Revoke 注销令牌
// 访问令牌与配对的刷新令牌一并作废
func (s *authService) Revoke(token string) error {
	result := s.db.Where("token = ?", token).Delete(&database.AuthToken{})
	if result.Error != nil {
		return apperrors.WrapByCode(apperrors.ErrDatabaseDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewByCode(apperrors.ErrTokenInvalid)
	}

	logger.Infof("[认证服务] 令牌已注销")
	return nil
}

// ValidateToken 校验访问令牌
func (s *authService) ValidateToken(token string) (*database.User, error) {
	if token == "" {
		return nil, apperrors.NewByCode(apperrors.ErrTokenInvalid)
	}

	var authToken database.AuthToken
	if err := s.db.Where("token = ?", token).First(&authToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrTokenInvalid)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	if time.Now().After(authToken.ExpiresAt) {
		return nil, apperrors.NewByCode(apperrors.ErrTokenExpired)
	}

	var user database.User
	if err := s.db.First(&user, authToken.UserID).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	return &user, nil
}

// UserHashFromToken 根据访问令牌查询用户哈希
func (s *authService) UserHashFromToken(token string) (string, error) {
	user, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return user.UserHash, nil
}

// GetUserByUsername 根据用户名查询用户
func (s *authService) GetUserByUsername(username string) (*database.User, error) {
	var user database.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrInvalidCredentials)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}
	return &user, nil
}

// IsMaintainer 检查令牌所属用户是否为指定牌组的维护者
// 牌组创建者即维护者；令牌无效或牌组不存在均返回false
func (s *authService) IsMaintainer(token, deckHash string) (bool, error) {
	user, err := s.ValidateToken(token)
	if err != nil {
		return false, nil
	}

	var deck database.Deck
	if err := s.db.Where("deck_hash = ?", deckHash).First(&deck).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	return deck.CreatorID == user.ID, nil
}

// issueTokens 为用户签发新的令牌对
func (s *authService) issueTokens(userID uint) (*TokenPair, error) {
	authToken := database.AuthToken{
		UserID:           userID,
		Token:            keygen.NewToken(),
		RefreshToken:     keygen.NewToken(),
		ExpiresAt:        time.Now().Add(time.Duration(s.cfg.AccessTokenTTL) * time.Second),
		RefreshExpiresAt: time.Now().Add(time.Duration(s.cfg.RefreshTokenTTL) * time.Second),
	}
	if err := s.db.Create(&authToken).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseInsert, err)
	}

	return &TokenPair{
		Token:        authToken.Token,
		RefreshToken: authToken.RefreshToken,
		ExpiresAt:    authToken.ExpiresAt,
	}, nil
}

// CleanupExpiredTokens 清理已过期的令牌行
// 由后台清理服务周期性调用
func CleanupExpiredTokens(db *gorm.DB) (int64, error) {
	result := db.Where("refresh_expires_at < ?", time.Now()).Delete(&database.AuthToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
