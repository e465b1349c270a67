// Package storage 提供各种云存储服务的实现
// 本文件实现了阿里云OSS（Object Storage Service）的具体操作
package storage

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/logger"
)

// AliyunProvider 阿里云OSS提供商实现
// 实现了Provider接口，提供阿里云对象存储服务的完整功能
// 包括文件上传、下载、删除、预签名URL生成等操作
type AliyunProvider struct {
	client *oss.Client             // 阿里云OSS客户端实例
	bucket *oss.Bucket             // OSS存储桶实例
	config *database.StorageConfig // 存储配置信息
}

// NewAliyunProvider 创建阿里云OSS提供商实例
// 根据配置信息初始化阿里云OSS客户端和存储桶连接
// 参数:
//   - config: 存储配置信息，包含访问密钥、区域、存储桶等
// 返回:
//   - *AliyunProvider: 初始化完成的阿里云OSS提供商实例
//   - error: 初始化过程中的错误信息
func NewAliyunProvider(config *database.StorageConfig) (*AliyunProvider, error) {
	logger.Infof("[阿里云OSS] 初始化提供商实例, 配置名称: %s, 区域: %s, 存储桶: %s",
		config.Name, config.Region, config.Bucket)

	// 构建endpoint
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", config.Region)
	}

	// 创建OSS客户端
	client, err := oss.New(endpoint, config.AccessKey, config.SecretKey)
	if err != nil {
		logger.Errorf("[阿里云OSS] 创建客户端失败, 错误: %v", err)
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	// 获取存储桶
	bucket, err := client.Bucket(config.Bucket)
	if err != nil {
		logger.Errorf("[阿里云OSS] 连接存储桶失败, 存储桶: %s, 错误: %v", config.Bucket, err)
		return nil, fmt.Errorf("failed to get bucket %s: %w", config.Bucket, err)
	}

	return &AliyunProvider{
		client: client,
		bucket: bucket,
		config: config,
	}, nil
}

// UploadFile 上传文件到阿里云OSS
func (p *AliyunProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	logger.Infof("[阿里云OSS] 开始上传文件: %s, 内容类型: %s", objectKey, contentType)

	options := []oss.Option{}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}

	err := p.bucket.PutObject(objectKey, reader, options...)
	if err != nil {
		logger.Errorf("[阿里云OSS] 上传文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return fmt.Errorf("failed to upload file to aliyun oss: %w", err)
	}

	logger.Infof("[阿里云OSS] 成功上传文件: %s", objectKey)
	return nil
}

// DownloadFile 从阿里云OSS下载文件
func (p *AliyunProvider) DownloadFile(objectKey string) (io.ReadCloser, error) {
	body, err := p.bucket.GetObject(objectKey)
	if err != nil {
		logger.Errorf("[阿里云OSS] 下载文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return nil, fmt.Errorf("failed to download file from aliyun oss: %w", err)
	}
	return body, nil
}

// DeleteFile 删除阿里云OSS文件
func (p *AliyunProvider) DeleteFile(objectKey string) error {
	err := p.bucket.DeleteObject(objectKey)
	if err != nil {
		logger.Errorf("[阿里云OSS] 删除文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return fmt.Errorf("failed to delete file from aliyun oss: %w", err)
	}

	logger.Infof("[阿里云OSS] 成功删除文件: %s", objectKey)
	return nil
}

// FileExists 检查文件是否存在
func (p *AliyunProvider) FileExists(objectKey string) (bool, error) {
	exists, err := p.bucket.IsObjectExist(objectKey)
	if err != nil {
		logger.Errorf("[阿里云OSS] 检查文件存在性失败, 对象键: %s, 错误: %v", objectKey, err)
		return false, fmt.Errorf("failed to check file existence in aliyun oss: %w", err)
	}
	return exists, nil
}

// GetFileInfo 获取文件信息
func (p *AliyunProvider) GetFileInfo(objectKey string) (*FileInfo, error) {
	meta, err := p.bucket.GetObjectMeta(objectKey)
	if err != nil {
		logger.Errorf("[阿里云OSS] 获取文件信息失败, 对象键: %s, 错误: %v", objectKey, err)
		return nil, fmt.Errorf("failed to get file info from aliyun oss: %w", err)
	}

	// 解析文件大小
	var size int64
	if sizeStr := meta.Get("Content-Length"); sizeStr != "" {
		fmt.Sscanf(sizeStr, "%d", &size)
	}

	return &FileInfo{
		Key:          objectKey,
		Size:         size,
		LastModified: meta.Get("Last-Modified"),
		ETag:         strings.Trim(meta.Get("Etag"), "\""),
		ContentType:  meta.Get("Content-Type"),
	}, nil
}

// ListFiles 列出文件
func (p *AliyunProvider) ListFiles(prefix string, maxKeys int) ([]FileInfo, error) {
	options := []oss.Option{
		oss.Prefix(prefix),
		oss.MaxKeys(maxKeys),
	}

	lsRes, err := p.bucket.ListObjects(options...)
	if err != nil {
		logger.Errorf("[阿里云OSS] 列出文件失败, 前缀: %s, 错误: %v", prefix, err)
		return nil, fmt.Errorf("failed to list files from aliyun oss: %w", err)
	}

	var files []FileInfo
	for _, object := range lsRes.Objects {
		files = append(files, FileInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified.Format(time.RFC3339),
			ETag:         strings.Trim(object.ETag, "\""),
			ContentType:  object.Type,
		})
	}

	return files, nil
}

// SignedUploadURL 生成预签名上传URL
// 客户端使用该URL以PUT方式直传文件，无需经过本服务中转
func (p *AliyunProvider) SignedUploadURL(objectKey string, expires time.Duration) (string, error) {
	signedURL, err := p.bucket.SignURL(objectKey, oss.HTTPPut, int64(expires.Seconds()))
	if err != nil {
		logger.Errorf("[阿里云OSS] 生成上传URL失败, 对象键: %s, 错误: %v", objectKey, err)
		return "", fmt.Errorf("failed to sign upload url for aliyun oss: %w", err)
	}
	return signedURL, nil
}

// SignedDownloadURL 生成预签名下载URL
func (p *AliyunProvider) SignedDownloadURL(objectKey string, expires time.Duration) (string, error) {
	signedURL, err := p.bucket.SignURL(objectKey, oss.HTTPGet, int64(expires.Seconds()))
	if err != nil {
		logger.Errorf("[阿里云OSS] 生成下载URL失败, 对象键: %s, 错误: %v", objectKey, err)
		return "", fmt.Errorf("failed to sign download url for aliyun oss: %w", err)
	}
	return signedURL, nil
}

// TestConnection 测试连接
// 通过获取存储桶信息来验证OSS连接是否正常
func (p *AliyunProvider) TestConnection() error {
	bucketInfo, err := p.client.GetBucketInfo(p.config.Bucket)
	if err != nil {
		logger.Errorf("[阿里云OSS] 连接测试失败, 存储桶: %s, 错误: %v", p.config.Bucket, err)
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}

	logger.Infof("[阿里云OSS] 连接测试成功, 存储桶: %s, 位置: %s",
		p.config.Bucket, bucketInfo.BucketInfo.Location)
	return nil
}
