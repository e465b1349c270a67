// Package database 定义了用户与认证相关的数据库模型
package database

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型
// user_hash是对外暴露的匿名标识，订阅和统计均以它记账
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`                           // 主键ID，自增
	Username     string         `gorm:"uniqueIndex;not null;size:100" json:"username"`  // 登录用户名
	PasswordHash string         `gorm:"not null;size:100" json:"-"`                     // bcrypt密码哈希，API响应时不返回
	UserHash     string         `gorm:"uniqueIndex;not null;size:64" json:"user_hash"`  // 对外暴露的匿名用户哈希
	CreatedAt    time.Time      `json:"created_at"`                                     // 用户创建时间
	UpdatedAt    time.Time      `json:"updated_at"`                                     // 记录最后更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                 // 软删除时间戳，支持逻辑删除
}

// TableName 指定User模型对应的数据库表名
func (User) TableName() string {
	return "users"
}

// AuthToken 认证令牌模型
// 访问令牌与刷新令牌成对签发，刷新时整行轮换，注销时整行删除
type AuthToken struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                // 主键ID，自增
	UserID           uint           `gorm:"not null;index" json:"user_id"`                       // 所属用户ID
	Token            string         `gorm:"uniqueIndex;not null;size:64" json:"token"`           // 访问令牌
	RefreshToken     string         `gorm:"uniqueIndex;not null;size:64" json:"refresh_token"`   // 刷新令牌
	ExpiresAt        time.Time      `gorm:"not null" json:"expires_at"`                          // 访问令牌过期时间
	RefreshExpiresAt time.Time      `gorm:"not null" json:"refresh_expires_at"`                  // 刷新令牌过期时间
	CreatedAt        time.Time      `json:"created_at"`                                          // 令牌签发时间
	UpdatedAt        time.Time      `json:"updated_at"`                                          // 记录最后更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间戳，注销即软删除
}

// TableName 指定AuthToken模型对应的数据库表名
func (AuthToken) TableName() string {
	return "auth_tokens"
}
