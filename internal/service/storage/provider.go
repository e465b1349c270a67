// Package storage 提供对象存储服务的统一抽象
// 媒体文件的字节内容存放在对象存储中，支持阿里云OSS、腾讯云COS和七牛云Kodo
package storage

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ankicollab/collab-server/internal/database"
)

// ErrPresignNotSupported 提供商不支持预签名直传时返回此错误
// 媒体服务捕获到该错误后回退为代理上传模式
var ErrPresignNotSupported = errors.New("storage provider does not support presigned uploads")

// FileInfo 对象存储中的文件信息
type FileInfo struct {
	Key          string `json:"key"`           // 对象键
	Size         int64  `json:"size"`          // 文件大小（字节）
	LastModified string `json:"last_modified"` // 最后修改时间
	ETag         string `json:"etag"`          // 文件ETag
	ContentType  string `json:"content_type"`  // 文件MIME类型
}

// Provider 对象存储提供商接口
// 各云服务商实现此接口以提供统一的存储操作能力
type Provider interface {
	// UploadFile 上传文件到对象存储
	UploadFile(objectKey string, reader io.Reader, contentType string) error

	// DownloadFile 从对象存储下载文件，调用方负责关闭返回的流
	DownloadFile(objectKey string) (io.ReadCloser, error)

	// DeleteFile 删除对象存储中的文件
	DeleteFile(objectKey string) error

	// FileExists 检查文件是否存在
	FileExists(objectKey string) (bool, error)

	// GetFileInfo 获取文件的元数据信息
	GetFileInfo(objectKey string) (*FileInfo, error)

	// ListFiles 按前缀列出文件
	ListFiles(prefix string, maxKeys int) ([]FileInfo, error)

	// SignedUploadURL 生成限时的预签名上传URL
	// 不支持预签名直传的提供商返回ErrPresignNotSupported
	SignedUploadURL(objectKey string, expires time.Duration) (string, error)

	// SignedDownloadURL 生成限时的预签名下载URL
	SignedDownloadURL(objectKey string, expires time.Duration) (string, error)

	// TestConnection 测试与存储服务的连接
	TestConnection() error
}

// NewProvider 根据配置创建对应的存储提供商实例
// 参数:
//   - config: 存储配置信息
// 返回:
//   - Provider: 存储提供商实例
//   - error: 提供商不支持或初始化失败时返回错误
func NewProvider(config *database.StorageConfig) (Provider, error) {
	switch config.Provider {
	case "aliyun":
		return NewAliyunProvider(config)
	case "tencent":
		return NewTencentProvider(config)
	case "qiniu":
		return NewQiniuProvider(config)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", config.Provider)
	}
}
