// Package storage 提供七牛云Kodo对象存储服务的实现
// 七牛云不提供S3风格的PUT预签名，上传走代理模式
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/logger"
)

// QiniuProvider 七牛云Kodo提供商实现
// 实现了Provider接口，提供七牛云Kodo存储服务的完整功能
type QiniuProvider struct {
	mac          *qbox.Mac               // 七牛云认证凭证
	bucketName   string                  // 存储桶名称
	bucketDomain string                  // 存储桶域名，私有下载链接基于此域名生成
	region       *storage.Region         // 存储区域信息
	config       *database.StorageConfig // 存储配置信息
}

// NewQiniuProvider 创建七牛云Kodo提供商实例
// 根据配置信息初始化七牛云Kodo客户端，包括认证、区域和域名设置
func NewQiniuProvider(config *database.StorageConfig) (*QiniuProvider, error) {
	logger.Infof("[七牛云Kodo] 初始化提供商实例, 配置名称: %s, 存储桶: %s",
		config.Name, config.Bucket)

	// 创建认证凭证
	mac := qbox.NewMac(config.AccessKey, config.SecretKey)

	// 获取区域信息
	region, err := storage.GetRegion(config.AccessKey, config.Bucket)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 获取区域失败, 存储桶: %s, 错误: %v", config.Bucket, err)
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	// 下载域名优先使用配置的Domain，其次Endpoint
	bucketDomain := config.Domain
	if bucketDomain == "" {
		bucketDomain = config.Endpoint
	}
	if bucketDomain == "" {
		bucketDomain = fmt.Sprintf("%s.%s", config.Bucket, region.RsHost)
	}

	return &QiniuProvider{
		mac:          mac,
		bucketName:   config.Bucket,
		bucketDomain: bucketDomain,
		region:       region,
		config:       config,
	}, nil
}

// bucketManager 创建存储桶管理器
func (p *QiniuProvider) bucketManager() *storage.BucketManager {
	return storage.NewBucketManager(p.mac, &storage.Config{
		Region: p.region,
	})
}

// UploadFile 上传文件到七牛云Kodo
func (p *QiniuProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	logger.Infof("[七牛云Kodo] 开始上传文件: %s, 内容类型: %s", objectKey, contentType)

	// 创建上传策略
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", p.bucketName, objectKey),
	}
	upToken := putPolicy.UploadToken(p.mac)

	// 配置上传参数
	cfg := storage.Config{
		Region:        p.region,
		UseHTTPS:      true,
		UseCdnDomains: false,
	}

	formUploader := storage.NewFormUploader(&cfg)
	ret := storage.PutRet{}

	putExtra := storage.PutExtra{}
	if contentType != "" {
		putExtra.MimeType = contentType
	}

	err := formUploader.Put(context.Background(), &ret, upToken, objectKey, reader, -1, &putExtra)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 上传文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return fmt.Errorf("failed to upload file to qiniu kodo: %w", err)
	}

	logger.Infof("[七牛云Kodo] 成功上传文件: %s, 哈希值: %s", objectKey, ret.Hash)
	return nil
}

// DownloadFile 从七牛云Kodo下载文件
// 生成私有下载链接并返回文件内容流
func (p *QiniuProvider) DownloadFile(objectKey string) (io.ReadCloser, error) {
	// 获取私有下载链接
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := storage.MakePrivateURL(p.mac, p.bucketDomain, objectKey, deadline)

	resp, err := http.Get(privateURL)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 下载文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return nil, fmt.Errorf("failed to download file from qiniu kodo: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		logger.Errorf("[七牛云Kodo] 下载文件失败, 对象键: %s, 状态: %s", objectKey, resp.Status)
		return nil, fmt.Errorf("failed to download file, status: %s", resp.Status)
	}

	return resp.Body, nil
}

// DeleteFile 删除七牛云Kodo文件
func (p *QiniuProvider) DeleteFile(objectKey string) error {
	err := p.bucketManager().Delete(p.bucketName, objectKey)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 删除文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return fmt.Errorf("failed to delete file from qiniu kodo: %w", err)
	}

	logger.Infof("[七牛云Kodo] 成功删除文件: %s", objectKey)
	return nil
}

// FileExists 检查文件是否存在
func (p *QiniuProvider) FileExists(objectKey string) (bool, error) {
	_, err := p.bucketManager().Stat(p.bucketName, objectKey)
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			return false, nil
		}
		logger.Errorf("[七牛云Kodo] 检查文件存在性失败, 对象键: %s, 错误: %v", objectKey, err)
		return false, fmt.Errorf("failed to check file existence in qiniu kodo: %w", err)
	}
	return true, nil
}

// GetFileInfo 获取文件信息
func (p *QiniuProvider) GetFileInfo(objectKey string) (*FileInfo, error) {
	fileInfo, err := p.bucketManager().Stat(p.bucketName, objectKey)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 获取文件信息失败, 对象键: %s, 错误: %v", objectKey, err)
		return nil, fmt.Errorf("failed to get file info from qiniu kodo: %w", err)
	}

	// PutTime单位为100纳秒
	lastModified := time.Unix(fileInfo.PutTime/10000000, 0).Format(time.RFC3339)

	return &FileInfo{
		Key:          objectKey,
		Size:         fileInfo.Fsize,
		LastModified: lastModified,
		ETag:         fileInfo.Hash,
		ContentType:  fileInfo.MimeType,
	}, nil
}

// ListFiles 列出文件
func (p *QiniuProvider) ListFiles(prefix string, maxKeys int) ([]FileInfo, error) {
	entries, _, _, hasNext, err := p.bucketManager().ListFiles(p.bucketName, prefix, "", "", maxKeys)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 列出文件失败, 前缀: %s, 错误: %v", prefix, err)
		return nil, fmt.Errorf("failed to list files from qiniu kodo: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		lastModified := time.Unix(entry.PutTime/10000000, 0).Format(time.RFC3339)
		files = append(files, FileInfo{
			Key:          entry.Key,
			Size:         entry.Fsize,
			LastModified: lastModified,
			ETag:         entry.Hash,
			ContentType:  entry.MimeType,
		})
	}

	if hasNext {
		logger.Infof("[七牛云Kodo] 还有更多文件超出最大限制 (%d)", maxKeys)
	}

	return files, nil
}

// SignedUploadURL 生成预签名上传URL
// 七牛云的直传基于上传令牌而非签名URL，返回ErrPresignNotSupported
// 媒体服务收到该错误后回退为代理上传模式
func (p *QiniuProvider) SignedUploadURL(objectKey string, expires time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}

// SignedDownloadURL 生成预签名下载URL
// 基于配置的下载域名生成私有访问链接
func (p *QiniuProvider) SignedDownloadURL(objectKey string, expires time.Duration) (string, error) {
	deadline := time.Now().Add(expires).Unix()
	privateURL := storage.MakePrivateURL(p.mac, p.bucketDomain, objectKey, deadline)
	return privateURL, nil
}

// TestConnection 测试连接
// 通过尝试列出存储桶文件来验证连接和认证是否正常
func (p *QiniuProvider) TestConnection() error {
	_, _, _, _, err := p.bucketManager().ListFiles(p.bucketName, "", "", "", 1)
	if err != nil {
		logger.Errorf("[七牛云Kodo] 连接测试失败, 存储桶: %s, 错误: %v", p.bucketName, err)
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}

	logger.Infof("[七牛云Kodo] 连接测试成功: %s", p.bucketName)
	return nil
}
