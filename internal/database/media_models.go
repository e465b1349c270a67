// Package database 定义了媒体相关的数据库模型
// 媒体文件按内容哈希寻址存储，通过引用计数管理生命周期
package database

import (
	"time"

	"gorm.io/gorm"
)

// 媒体文件的上传状态
const (
	MediaStatusPending   = "pending"   // 已登记，等待客户端上传并确认
	MediaStatusConfirmed = "confirmed" // 已确认，对象存储中存在对应内容
)

// 上传批次的状态
const (
	BatchStatusOpen      = "open"      // 批次已创建，等待确认
	BatchStatusConfirmed = "confirmed" // 批次已确认完成
	BatchStatusExpired   = "expired"   // 批次超时未确认
)

// 清理日志的动作类型
const (
	CleanupActionDeleteObject = "delete_object" // 删除对象存储中的孤儿媒体
	CleanupActionExpireBatch  = "expire_batch"  // 作废超时未确认的上传批次
)

// MediaFile 媒体文件模型
// 以内容哈希作为唯一键实现去重：相同内容的文件在存储中只保留一份
// ref_count记录被多少条牌组媒体关联引用，只有归零后才允许删除
type MediaFile struct {
	ID          uint           `gorm:"primarykey" json:"id"`                               // 主键ID，自增
	ContentHash string         `gorm:"uniqueIndex;not null;size:64" json:"content_hash"`   // 文件内容哈希值，媒体的唯一标识
	FileName    string         `gorm:"not null;size:255" json:"file_name"`                 // 首次上传时的原始文件名
	FileSize    int64          `gorm:"not null" json:"file_size"`                          // 文件大小，单位为字节
	ContentType string         `gorm:"size:100" json:"content_type"`                       // 文件MIME类型
	StorageKey  string         `gorm:"not null;size:500" json:"storage_key"`               // 对象存储中的完整键名
	RefCount    int64          `gorm:"default:0" json:"ref_count"`                         // 引用计数，等于指向本文件的deck_media行数
	Status      string         `gorm:"not null;size:20;default:'pending'" json:"status"`   // 上传状态：pending、confirmed
	CreatedAt   time.Time      `json:"created_at"`                                         // 记录创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                                         // 记录最后更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间戳，支持逻辑删除
}

// TableName 指定MediaFile模型对应的数据库表名
func (MediaFile) TableName() string {
	return "media_files"
}

// DeckMedia 牌组媒体关联模型
// 记录牌组以哪个文件名引用哪份媒体内容，同一(牌组,媒体,文件名)只保留一条
// 关联行的增删必须与media_files.ref_count的增减在同一事务内完成
type DeckMedia struct {
	ID          uint           `gorm:"primarykey" json:"id"`                   // 主键ID，自增
	DeckID      uint           `gorm:"not null;index" json:"deck_id"`          // 关联的牌组ID
	MediaFileID uint           `gorm:"not null;index" json:"media_file_id"`    // 关联的媒体文件ID
	FileName    string         `gorm:"not null;size:255" json:"file_name"`     // 牌组内引用该媒体时使用的文件名
	NoteGUID    string         `gorm:"size:64" json:"note_guid"`               // 引用该媒体的卡片GUID
	CreatedAt   time.Time      `json:"created_at"`                             // 关联创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                             // 记录最后更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                         // 软删除时间戳
}

// TableName 指定DeckMedia模型对应的数据库表名
func (DeckMedia) TableName() string {
	return "deck_media"
}

// MediaUploadBatch 媒体上传批次模型
// 批量检查接口创建批次并下发预签名URL，确认接口按批次核验并落账
// 超过有效期未确认的批次由清理服务作废
type MediaUploadBatch struct {
	ID              uint           `gorm:"primarykey" json:"id"`                             // 主键ID，自增
	BatchID         string         `gorm:"uniqueIndex;not null;size:36" json:"batch_id"`     // 批次唯一标识（UUID格式）
	BulkOperationID string         `gorm:"size:64" json:"bulk_operation_id"`                 // 客户端侧的批量操作ID，用于日志关联
	DeckHash        string         `gorm:"not null;size:100;index" json:"deck_hash"`         // 目标牌组哈希
	UserID          uint           `gorm:"not null" json:"user_id"`                          // 发起上传的用户ID
	Status          string         `gorm:"not null;size:20;default:'open'" json:"status"`    // 批次状态：open、confirmed、expired
	ExpiresAt       time.Time      `gorm:"not null" json:"expires_at"`                       // 批次有效期截止时间
	CreatedAt       time.Time      `json:"created_at"`                                       // 批次创建时间
	UpdatedAt       time.Time      `json:"updated_at"`                                       // 记录最后更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间戳
}

// TableName 指定MediaUploadBatch模型对应的数据库表名
func (MediaUploadBatch) TableName() string {
	return "media_upload_batches"
}

// MediaBatchFile 批次内单文件模型
// 记录批次中每个待上传文件的哈希、文件名和核验状态
type MediaBatchFile struct {
	ID          uint           `gorm:"primarykey" json:"id"`                             // 主键ID，自增
	BatchID     string         `gorm:"not null;size:36;index" json:"batch_id"`           // 所属批次ID
	ContentHash string         `gorm:"not null;size:64" json:"content_hash"`             // 文件内容哈希
	FileName    string         `gorm:"not null;size:255" json:"file_name"`               // 牌组内的引用文件名
	NoteGUID    string         `gorm:"size:64" json:"note_guid"`                         // 引用该媒体的卡片GUID
	FileSize    int64          `gorm:"not null" json:"file_size"`                        // 客户端申报的文件大小
	Status      string         `gorm:"not null;size:20;default:'pending'" json:"status"` // 核验状态：pending、confirmed
	CreatedAt   time.Time      `json:"created_at"`                                       // 记录创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                                       // 记录最后更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间戳
}

// TableName 指定MediaBatchFile模型对应的数据库表名
func (MediaBatchFile) TableName() string {
	return "media_batch_files"
}

// CleanupLog 孤儿媒体清理日志模型
// 记录清理服务对每个孤儿媒体的处理过程，包括删除结果和重试次数
// 用于追踪清理状态、性能分析和错误排查
type CleanupLog struct {
	ID          uint           `gorm:"primarykey" json:"id"`                  // 主键ID，自增
	ContentHash string         `gorm:"not null;size:64" json:"content_hash"`  // 被清理媒体的内容哈希
	StorageKey  string         `gorm:"size:500" json:"storage_key"`           // 对象存储中的键名
	Action      string         `gorm:"not null;size:20" json:"action"`        // 清理动作：delete_object（删除对象）、expire_batch（作废批次）
	Status      string         `gorm:"not null;size:20" json:"status"`        // 处理状态：pending（待处理）、success（成功）、failed（失败）
	ErrorMsg    string         `gorm:"type:text" json:"error_msg"`            // 处理失败时的详细错误信息
	RetryCount  int            `gorm:"default:0" json:"retry_count"`          // 已重试次数
	Duration    int64          `json:"duration"`                              // 处理耗时，单位为毫秒
	CreatedAt   time.Time      `json:"created_at"`                            // 日志创建时间
	UpdatedAt   time.Time      `json:"updated_at"`                            // 日志最后更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                        // 软删除时间戳，支持逻辑删除
}

// TableName 指定CleanupLog模型对应的数据库表名
func (CleanupLog) TableName() string {
	return "cleanup_logs"
}
