// Package storage 提供腾讯云COS对象存储服务的实现
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/logger"
)

// TencentProvider 腾讯云COS提供商实现
// 实现了Provider接口，提供腾讯云对象存储服务的完整功能
type TencentProvider struct {
	client *cos.Client             // 腾讯云COS客户端实例
	config *database.StorageConfig // 存储配置信息
}

// NewTencentProvider 创建腾讯云COS提供商实例
// 根据配置信息初始化腾讯云COS客户端
// 参数:
//   - config: 存储配置信息，包含访问密钥、区域、存储桶等
// 返回:
//   - *TencentProvider: 初始化完成的腾讯云COS提供商实例
//   - error: 初始化过程中的错误信息
func NewTencentProvider(config *database.StorageConfig) (*TencentProvider, error) {
	logger.Infof("[腾讯云COS] 初始化提供商实例, 配置名称: %s, 区域: %s, 存储桶: %s",
		config.Name, config.Region, config.Bucket)

	// 构建存储桶URL
	bucketURL := config.Endpoint
	if bucketURL == "" {
		bucketURL = fmt.Sprintf("https://%s.cos.%s.myqcloud.com", config.Bucket, config.Region)
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		logger.Errorf("[腾讯云COS] 解析存储桶URL失败: %s, 错误: %v", bucketURL, err)
		return nil, fmt.Errorf("failed to parse tencent cos bucket url: %w", err)
	}

	// 创建COS客户端
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  config.AccessKey,
			SecretKey: config.SecretKey,
		},
	})

	return &TencentProvider{
		client: client,
		config: config,
	}, nil
}

// UploadFile 上传文件到腾讯云COS
func (p *TencentProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	logger.Infof("[腾讯云COS] 开始上传文件: %s, 内容类型: %s", objectKey, contentType)

	var options *cos.ObjectPutOptions
	if contentType != "" {
		options = &cos.ObjectPutOptions{
			ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
				ContentType: contentType,
			},
		}
	}

	_, err := p.client.Object.Put(context.Background(), objectKey, reader, options)
	if err != nil {
		logger.Errorf("[腾讯云COS] 上传文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return fmt.Errorf("failed to upload file to tencent cos: %w", err)
	}

	logger.Infof("[腾讯云COS] 成功上传文件: %s", objectKey)
	return nil
}

// DownloadFile 从腾讯云COS下载文件
func (p *TencentProvider) DownloadFile(objectKey string) (io.ReadCloser, error) {
	resp, err := p.client.Object.Get(context.Background(), objectKey, nil)
	if err != nil {
		logger.Errorf("[腾讯云COS] 下载文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return nil, fmt.Errorf("failed to download file from tencent cos: %w", err)
	}
	return resp.Body, nil
}

// DeleteFile 删除腾讯云COS文件
func (p *TencentProvider) DeleteFile(objectKey string) error {
	_, err := p.client.Object.Delete(context.Background(), objectKey)
	if err != nil {
		logger.Errorf("[腾讯云COS] 删除文件失败, 对象键: %s, 错误: %v", objectKey, err)
		return fmt.Errorf("failed to delete file from tencent cos: %w", err)
	}

	logger.Infof("[腾讯云COS] 成功删除文件: %s", objectKey)
	return nil
}

// FileExists 检查文件是否存在
func (p *TencentProvider) FileExists(objectKey string) (bool, error) {
	_, err := p.client.Object.Head(context.Background(), objectKey, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return false, nil
		}
		logger.Errorf("[腾讯云COS] 检查文件存在性失败, 对象键: %s, 错误: %v", objectKey, err)
		return false, fmt.Errorf("failed to check file existence in tencent cos: %w", err)
	}
	return true, nil
}

// GetFileInfo 获取文件信息
func (p *TencentProvider) GetFileInfo(objectKey string) (*FileInfo, error) {
	resp, err := p.client.Object.Head(context.Background(), objectKey, nil)
	if err != nil {
		logger.Errorf("[腾讯云COS] 获取文件信息失败, 对象键: %s, 错误: %v", objectKey, err)
		return nil, fmt.Errorf("failed to get file info from tencent cos: %w", err)
	}

	return &FileInfo{
		Key:          objectKey,
		Size:         resp.ContentLength,
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         strings.Trim(resp.Header.Get("Etag"), "\""),
		ContentType:  resp.Header.Get("Content-Type"),
	}, nil
}

// ListFiles 列出文件
func (p *TencentProvider) ListFiles(prefix string, maxKeys int) ([]FileInfo, error) {
	result, _, err := p.client.Bucket.Get(context.Background(), &cos.BucketGetOptions{
		Prefix:  prefix,
		MaxKeys: maxKeys,
	})
	if err != nil {
		logger.Errorf("[腾讯云COS] 列出文件失败, 前缀: %s, 错误: %v", prefix, err)
		return nil, fmt.Errorf("failed to list files from tencent cos: %w", err)
	}

	var files []FileInfo
	for _, object := range result.Contents {
		files = append(files, FileInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ETag:         strings.Trim(object.ETag, "\""),
		})
	}

	return files, nil
}

// SignedUploadURL 生成预签名上传URL
// 客户端使用该URL以PUT方式直传文件，无需经过本服务中转
func (p *TencentProvider) SignedUploadURL(objectKey string, expires time.Duration) (string, error) {
	presignedURL, err := p.client.Object.GetPresignedURL(context.Background(), http.MethodPut,
		objectKey, p.config.AccessKey, p.config.SecretKey, expires, nil)
	if err != nil {
		logger.Errorf("[腾讯云COS] 生成上传URL失败, 对象键: %s, 错误: %v", objectKey, err)
		return "", fmt.Errorf("failed to sign upload url for tencent cos: %w", err)
	}
	return presignedURL.String(), nil
}

// SignedDownloadURL 生成预签名下载URL
func (p *TencentProvider) SignedDownloadURL(objectKey string, expires time.Duration) (string, error) {
	presignedURL, err := p.client.Object.GetPresignedURL(context.Background(), http.MethodGet,
		objectKey, p.config.AccessKey, p.config.SecretKey, expires, nil)
	if err != nil {
		logger.Errorf("[腾讯云COS] 生成下载URL失败, 对象键: %s, 错误: %v", objectKey, err)
		return "", fmt.Errorf("failed to sign download url for tencent cos: %w", err)
	}
	return presignedURL.String(), nil
}

// TestConnection 测试连接
// 通过列出存储桶内容来验证COS连接是否正常
func (p *TencentProvider) TestConnection() error {
	_, _, err := p.client.Bucket.Get(context.Background(), &cos.BucketGetOptions{
		MaxKeys: 1,
	})
	if err != nil {
		logger.Errorf("[腾讯云COS] 连接测试失败, 存储桶: %s, 错误: %v", p.config.Bucket, err)
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}

	logger.Infof("[腾讯云COS] 连接测试成功, 存储桶: %s", p.config.Bucket)
	return nil
}
