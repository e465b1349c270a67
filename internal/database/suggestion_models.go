// Package database 定义了建议相关的数据库模型
// 订阅者提交的修改建议进入审核队列，由维护者决定采纳或拒绝
package database

import (
	"time"

	"gorm.io/gorm"
)

// 建议理由编号，与客户端约定保持一致
const (
	RationaleBulkSuggestion     = 9  // 批量建议
	RationaleMaintainerOverride = 10 // 维护者直接覆盖
)

// Suggestion 牌组修改建议模型
// 建议携带完整的牌组负载（gzip压缩JSON），在被采纳前不影响牌组本身
type Suggestion struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                // 主键ID，自增
	SuggestionID  string         `gorm:"uniqueIndex;not null;size:36" json:"suggestion_id"`   // 建议唯一标识（UUID格式）
	DeckHash      string         `gorm:"not null;size:100;index" json:"deck_hash"`            // 目标牌组哈希
	DeckPath      string         `gorm:"size:500" json:"deck_path"`                           // 建议针对的子牌组路径
	NewName       string         `gorm:"size:255" json:"new_name"`                            // 建议的新子牌组名称（新增子牌组时使用）
	Payload       []byte         `gorm:"not null" json:"-"`                                   // gzip压缩的建议内容JSON
	Rationale     int            `gorm:"not null;default:0" json:"rationale"`                 // 建议理由编号（0-10）
	CommitText    string         `gorm:"type:text" json:"commit_text"`                        // 提交说明文本
	SubmitterHash string         `gorm:"not null;size:64" json:"submitter_hash"`              // 提交者的匿名用户哈希
	Status        string         `gorm:"not null;size:20;default:'pending';index" json:"status"` // 处理状态：pending、approved、denied
	ReviewerID    *uint          `json:"reviewer_id,omitempty"`                               // 审核者用户ID，未审核时为空
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`                               // 审核时间，未审核时为空
	CreatedAt     time.Time      `json:"created_at"`                                          // 建议提交时间
	UpdatedAt     time.Time      `json:"updated_at"`                                          // 记录最后更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间戳，支持逻辑删除
}

// TableName 指定Suggestion模型对应的数据库表名
func (Suggestion) TableName() string {
	return "suggestions"
}
