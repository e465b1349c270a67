// Package database 定义了牌组相关的数据库模型
// 包含牌组、订阅、更新日志和复习统计等核心数据模型
package database

import (
	"time"

	"gorm.io/gorm"
)

// 牌组建议的处理状态
const (
	SuggestionStatusPending  = "pending"  // 待审核
	SuggestionStatusApproved = "approved" // 已采纳
	SuggestionStatusDenied   = "denied"   // 已拒绝
)

// Deck 共享牌组模型
// 牌组以人类可读的哈希键（word-word-word-word）对外标识
// 牌组内容以gzip压缩的JSON形式存储，内容哈希用于发布去重
type Deck struct {
	ID              uint           `gorm:"primarykey" json:"id"`                            // 主键ID，自增
	DeckHash        string         `gorm:"uniqueIndex;not null;size:100" json:"deck_hash"`  // 牌组唯一标识（订阅键）
	Name            string         `gorm:"not null;size:255" json:"name"`                   // 牌组名称
	Description     string         `gorm:"type:text" json:"description"`                    // 牌组描述
	ContentHash     string         `gorm:"index;not null;size:64" json:"content_hash"`      // 牌组内容的SHA256哈希值，发布时查询去重；采纳建议后不同牌组允许内容相同
	Payload         []byte         `gorm:"not null" json:"-"`                               // gzip压缩的牌组JSON内容
	CreatorID       uint           `gorm:"not null;index" json:"creator_id"`                // 创建者用户ID，创建者即维护者
	SubscriberCount int64          `gorm:"default:0" json:"subscriber_count"`               // 当前订阅数统计
	CreatedAt       time.Time      `json:"created_at"`                                      // 牌组创建时间
	UpdatedAt       time.Time      `json:"updated_at"`                                      // 牌组最后更新时间，客户端以此判断是否需要拉取
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                  // 软删除时间戳，支持逻辑删除
}

// TableName 指定Deck模型对应的数据库表名
func (Deck) TableName() string {
	return "decks"
}

// Subscription 牌组订阅模型
// 记录用户哈希与牌组哈希的订阅关系，同一用户对同一牌组只计一次
type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`                 // 主键ID，自增
	DeckHash  string         `gorm:"not null;size:100;index" json:"deck_hash"` // 订阅的牌组哈希
	UserHash  string         `gorm:"not null;size:64" json:"user_hash"`    // 订阅者的匿名用户哈希
	CreatedAt time.Time      `json:"created_at"`                           // 订阅时间
	UpdatedAt time.Time      `json:"updated_at"`                           // 记录最后更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                       // 软删除时间戳
}

// TableName 指定Subscription模型对应的数据库表名
func (Subscription) TableName() string {
	return "subscriptions"
}

// ChangelogEntry 牌组更新日志模型
// 维护者在发布更新时附带的变更说明，随pullChanges下发给订阅者
type ChangelogEntry struct {
	ID        uint           `gorm:"primarykey" json:"id"`                     // 主键ID，自增
	DeckHash  string         `gorm:"not null;size:100;index" json:"deck_hash"` // 所属牌组哈希
	Message   string         `gorm:"type:text;not null" json:"message"`        // 变更说明文本
	AuthorID  uint           `gorm:"not null" json:"author_id"`                // 撰写者用户ID
	CreatedAt time.Time      `json:"created_at"`                               // 日志创建时间
	UpdatedAt time.Time      `json:"updated_at"`                               // 记录最后更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                           // 软删除时间戳
}

// TableName 指定ChangelogEntry模型对应的数据库表名
func (ChangelogEntry) TableName() string {
	return "changelog_entries"
}

// DeckStat 牌组复习统计模型
// 存储订阅者上传的复习历史聚合数据，同一(牌组,用户)只保留最新一份
type DeckStat struct {
	ID            uint           `gorm:"primarykey" json:"id"`                     // 主键ID，自增
	DeckHash      string         `gorm:"not null;size:100;index" json:"deck_hash"` // 所属牌组哈希
	UserHash      string         `gorm:"not null;size:64" json:"user_hash"`        // 上传者的匿名用户哈希
	ReviewHistory []byte         `gorm:"not null" json:"-"`                        // gzip压缩的复习历史JSON
	EntryCount    int64          `gorm:"default:0" json:"entry_count"`             // 复习记录条数统计
	CreatedAt     time.Time      `json:"created_at"`                               // 记录创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                               // 记录最后更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                           // 软删除时间戳
}

// TableName 指定DeckStat模型对应的数据库表名
func (DeckStat) TableName() string {
	return "deck_stats"
}
