// Package database 定义了数据库相关的模型和结构体
// 包含牌组、媒体、建议和用户等核心数据模型
package database

// 此文件保留作为数据库模型包的入口文件
// 具体的模型定义已拆分到以下文件：
// - deck_models.go: 牌组相关模型（Deck, Subscription, ChangelogEntry, DeckStat）
// - media_models.go: 媒体相关模型（MediaFile, DeckMedia, MediaUploadBatch, MediaBatchFile, CleanupLog）
// - suggestion_models.go: 建议相关模型（Suggestion）
// - user_models.go: 用户相关模型（User, AuthToken）
// - storage_models.go: 对象存储配置模型（StorageConfig）
