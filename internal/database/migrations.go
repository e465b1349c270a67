// Package database 提供数据库迁移和初始化功能
// 包含协作服务相关表的创建和索引优化
package database

import (
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/internal/logger"
)

// MigrateCollabTables 执行协作服务相关表的数据库迁移
// 参数: db *gorm.DB - GORM数据库连接实例
// 返回值: error - 迁移失败时返回错误信息
// 用途: 创建牌组、媒体、建议等核心表，并建立必要的索引
func MigrateCollabTables(db *gorm.DB) error {
	logger.Info("开始执行协作服务数据库迁移...")

	if err := autoMigrate(db); err != nil {
		return err
	}

	// 创建复合索引以优化查询性能
	if err := createCollabIndexes(db); err != nil {
		return err
	}

	logger.Info("协作服务数据库迁移完成")
	return nil
}

// createCollabIndexes 创建协作服务的复合索引
// 参数: db *gorm.DB - GORM数据库连接实例
// 返回值: error - 创建索引失败时返回错误信息
// 用途: 优化订阅查询、媒体引用查询和孤儿扫描的性能
func createCollabIndexes(db *gorm.DB) error {
	indexes := []string{
		// 订阅去重：同一用户对同一牌组只允许一条有效订阅
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_deck_user ON subscriptions(deck_hash, user_hash) WHERE deleted_at IS NULL",
		// 牌组媒体关联去重：同一(牌组,媒体,文件名)只保留一条
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deck_media_unique ON deck_media(deck_id, media_file_id, file_name) WHERE deleted_at IS NULL",
		// 孤儿扫描优化：按引用计数和状态过滤待清理媒体
		"CREATE INDEX IF NOT EXISTS idx_media_files_orphan ON media_files(ref_count, status, updated_at) WHERE deleted_at IS NULL",
		// 复习统计去重：同一(牌组,用户)只保留最新一份
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_deck_stats_deck_user ON deck_stats(deck_hash, user_hash) WHERE deleted_at IS NULL",
		// 令牌过期清理优化
		"CREATE INDEX IF NOT EXISTS idx_auth_tokens_expires ON auth_tokens(expires_at) WHERE deleted_at IS NULL",
		// 审核队列查询优化：按牌组和状态过滤待审建议
		"CREATE INDEX IF NOT EXISTS idx_suggestions_deck_status ON suggestions(deck_hash, status, created_at DESC) WHERE deleted_at IS NULL",
		// 批次超时扫描优化
		"CREATE INDEX IF NOT EXISTS idx_upload_batches_expiry ON media_upload_batches(status, expires_at) WHERE deleted_at IS NULL",
	}

	// 执行所有索引创建语句
	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Errorf("创建索引失败: %s, 错误: %v", indexSQL, err)
			return err
		}
	}

	logger.Info("协作服务索引创建完成")
	return nil
}
