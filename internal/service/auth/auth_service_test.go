package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
)

// setupAuthService 设置认证测试服务
func setupAuthService(t *testing.T) (AuthService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&database.User{}, &database.AuthToken{}, &database.Deck{})
	require.NoError(t, err)

	cfg := config.AuthConfig{
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 7200,
		BcryptCost:      4, // 测试用最低成本
	}
	return NewAuthService(db, cfg), db
}

// TestRegisterAndLogin 测试注册和登录
func TestRegisterAndLogin(t *testing.T) {
	authService, _ := setupAuthService(t)

	t.Run("注册新用户", func(t *testing.T) {
		user, err := authService.Register("alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NotEmpty(t, user.UserHash)
		assert.NotEqual(t, "secret123", user.PasswordHash)
	})

	t.Run("重复用户名被拒绝", func(t *testing.T) {
		_, err := authService.Register("alice", "another")
		assert.Error(t, err)
	})

	t.Run("正确密码登录成功", func(t *testing.T) {
		pair, err := authService.Login("alice", "secret123")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.Token)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.True(t, pair.ExpiresAt.After(time.Now()))
	})

	t.Run("错误密码登录失败", func(t *testing.T) {
		_, err := authService.Login("alice", "wrong")
		assert.Error(t, err)
	})

	t.Run("未知用户登录失败", func(t *testing.T) {
		_, err := authService.Login("nobody", "secret123")
		assert.Error(t, err)
	})
}

// TestTokenLifecycle 测试令牌生命周期
func TestTokenLifecycle(t *testing.T) {
	authService, db := setupAuthService(t)

	user, err := authService.Register("bob", "password")
	require.NoError(t, err)
	pair, err := authService.Login("bob", "password")
	require.NoError(t, err)

	t.Run("有效令牌校验通过", func(t *testing.T) {
		validated, err := authService.ValidateToken(pair.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, validated.ID)
	})

	t.Run("根据令牌查询用户哈希", func(t *testing.T) {
		hash, err := authService.UserHashFromToken(pair.Token)
		require.NoError(t, err)
		assert.Equal(t, user.UserHash, hash)
	})

	t.Run("刷新后旧令牌对整体作废", func(t *testing.T) {
		newPair, err := authService.Refresh(pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Token, newPair.Token)
		assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

		// 旧访问令牌和旧刷新令牌都不再可用
		_, err = authService.ValidateToken(pair.Token)
		assert.Error(t, err)
		_, err = authService.Refresh(pair.RefreshToken)
		assert.Error(t, err)

		pair = newPair
	})

	t.Run("注销后令牌失效", func(t *testing.T) {
		require.NoError(t, authService.Revoke(pair.Token))
		_, err := authService.ValidateToken(pair.Token)
		assert.Error(t, err)
	})

	t.Run("注销不存在的令牌报错", func(t *testing.T) {
		err := authService.Revoke("no-such-token")
		assert.Error(t, err)
	})

	t.Run("过期令牌被拒绝", func(t *testing.T) {
		expired := database.AuthToken{
			UserID:           user.ID,
			Token:            "expired-token",
			RefreshToken:     "expired-refresh",
			ExpiresAt:        time.Now().Add(-time.Hour),
			RefreshExpiresAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, db.Create(&expired).Error)

		_, err := authService.ValidateToken("expired-token")
		assert.Error(t, err)
		_, err = authService.Refresh("expired-refresh")
		assert.Error(t, err)
	})
}

// TestIsMaintainer 测试维护者校验
func TestIsMaintainer(t *testing.T) {
	authService, db := setupAuthService(t)

	creator, err := authService.Register("creator", "password")
	require.NoError(t, err)
	_, err = authService.Register("other", "password")
	require.NoError(t, err)

	deck := database.Deck{
		DeckHash:    "test-deck-hash",
		Name:        "维护者测试",
		ContentHash: "abc",
		Payload:     []byte("x"),
		CreatorID:   creator.ID,
	}
	require.NoError(t, db.Create(&deck).Error)

	creatorPair, err := authService.Login("creator", "password")
	require.NoError(t, err)
	otherPair, err := authService.Login("other", "password")
	require.NoError(t, err)

	t.Run("创建者是维护者", func(t *testing.T) {
		ok, err := authService.IsMaintainer(creatorPair.Token, "test-deck-hash")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("其他用户不是维护者", func(t *testing.T) {
		ok, err := authService.IsMaintainer(otherPair.Token, "test-deck-hash")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("无效令牌返回false", func(t *testing.T) {
		ok, err := authService.IsMaintainer("bad-token", "test-deck-hash")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("牌组不存在返回false", func(t *testing.T) {
		ok, err := authService.IsMaintainer(creatorPair.Token, "no-such-deck")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// TestCleanupExpiredTokens 测试过期令牌清理
func TestCleanupExpiredTokens(t *testing.T) {
	authService, db := setupAuthService(t)

	user, err := authService.Register("cleanup", "password")
	require.NoError(t, err)
	pair, err := authService.Login("cleanup", "password")
	require.NoError(t, err)

	expired := database.AuthToken{
		UserID:           user.ID,
		Token:            "old-token",
		RefreshToken:     "old-refresh",
		ExpiresAt:        time.Now().Add(-2 * time.Hour),
		RefreshExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)

	removed, err := CleanupExpiredTokens(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// 有效令牌不受影响
	_, err = authService.ValidateToken(pair.Token)
	assert.NoError(t, err)
}
