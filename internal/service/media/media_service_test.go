package media

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/keygen"
	"github.com/ankicollab/collab-server/internal/service/storage"
)

// fakeProvider 内存对象存储，供测试使用
type fakeProvider struct {
	mu          sync.Mutex
	objects     map[string][]byte
	presignable bool
}

func newFakeProvider(presignable bool) *fakeProvider {
	return &fakeProvider{
		objects:     make(map[string][]byte),
		presignable: presignable,
	}
}

func (p *fakeProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[objectKey] = data
	return nil
}

func (p *fakeProvider) DownloadFile(objectKey string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", objectKey)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *fakeProvider) DeleteFile(objectKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, objectKey)
	return nil
}

func (p *fakeProvider) FileExists(objectKey string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[objectKey]
	return ok, nil
}

func (p *fakeProvider) GetFileInfo(objectKey string) (*storage.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", objectKey)
	}
	return &storage.FileInfo{Key: objectKey, Size: int64(len(data))}, nil
}

func (p *fakeProvider) ListFiles(prefix string, maxKeys int) ([]storage.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var files []storage.FileInfo
	for key, data := range p.objects {
		if strings.HasPrefix(key, prefix) {
			files = append(files, storage.FileInfo{Key: key, Size: int64(len(data))})
		}
	}
	return files, nil
}

func (p *fakeProvider) SignedUploadURL(objectKey string, expires time.Duration) (string, error) {
	if !p.presignable {
		return "", storage.ErrPresignNotSupported
	}
	return "https://storage.example.com/upload/" + objectKey, nil
}

func (p *fakeProvider) SignedDownloadURL(objectKey string, expires time.Duration) (string, error) {
	return "https://storage.example.com/download/" + objectKey, nil
}

func (p *fakeProvider) TestConnection() error {
	return nil
}

// fakeConfigService 固定返回同一个存储后端
type fakeConfigService struct {
	provider storage.Provider
	config   *database.StorageConfig
}

func (s *fakeConfigService) CreateConfig(config *database.StorageConfig) error  { return nil }
func (s *fakeConfigService) GetConfigByID(id uint) (*database.StorageConfig, error) {
	return s.config, nil
}
func (s *fakeConfigService) ListConfigs() ([]database.StorageConfig, error)    { return nil, nil }
func (s *fakeConfigService) UpdateConfig(config *database.StorageConfig) error { return nil }
func (s *fakeConfigService) DeleteConfig(id uint) error                        { return nil }
func (s *fakeConfigService) ActivateConfig(id uint) error                      { return nil }
func (s *fakeConfigService) TestConfig(id uint) error                          { return nil }
func (s *fakeConfigService) GetActiveConfig() (*database.StorageConfig, error) {
	return s.config, nil
}
func (s *fakeConfigService) ActiveProvider() (storage.Provider, *database.StorageConfig, error) {
	return s.provider, s.config, nil
}
func (s *fakeConfigService) ToggleConfig(id uint, enabled bool) error { return nil }

// setupMediaService 设置媒体测试服务
func setupMediaService(t *testing.T, presignable bool) (MediaService, *fakeProvider, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&database.Deck{},
		&database.MediaFile{},
		&database.DeckMedia{},
		&database.MediaUploadBatch{},
		&database.MediaBatchFile{},
		&database.CleanupLog{},
	)
	require.NoError(t, err)

	provider := newFakeProvider(presignable)
	configService := &fakeConfigService{
		provider: provider,
		config:   &database.StorageConfig{Provider: "aliyun", KeyPrefix: "media"},
	}

	cfg := config.MediaConfig{
		MaxFileSize:       2 * 1024 * 1024,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".tif", ".tiff", ".mp3", ".ogg"},
		PresignTTL:        900,
		DownloadTTL:       3600,
		MaxBatchFiles:     500,
	}

	return NewMediaService(db, cfg, configService), provider, db
}

// createTestDeck 创建测试牌组
func createTestDeck(t *testing.T, db *gorm.DB, deckHash string) *database.Deck {
	deck := &database.Deck{
		DeckHash:    deckHash,
		Name:        "媒体测试牌组",
		ContentHash: keygen.ContentHash([]byte(deckHash)),
		Payload:     []byte("payload"),
		CreatorID:   1,
	}
	require.NoError(t, db.Create(deck).Error)
	return deck
}

// TestBulkCheck 测试批量登记
func TestBulkCheck(t *testing.T) {
	mediaService, _, db := setupMediaService(t, true)
	createTestDeck(t, db, "deck-a")

	imageData := []byte("fake png bytes")
	imageHash := keygen.ContentHash(imageData)

	t.Run("缺失文件返回预签名上传URL", func(t *testing.T) {
		result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
			{Hash: imageHash, Filename: "cover.png", Size: int64(len(imageData))},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.BatchID)
		assert.Empty(t, result.Existing)
		require.Len(t, result.Uploads, 1)
		assert.False(t, result.Uploads[0].Proxied)
		assert.Contains(t, result.Uploads[0].URL, "https://storage.example.com/upload/")
		assert.Equal(t, "PUT", result.Uploads[0].Method)
	})

	t.Run("非法扩展名被拒绝", func(t *testing.T) {
		result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
			{Hash: keygen.ContentHash([]byte("exe")), Filename: "virus.exe", Size: 100},
		})
		require.NoError(t, err)
		require.Len(t, result.Rejected, 1)
		assert.Contains(t, result.Rejected[0].Reason, "not allowed")
	})

	t.Run("超大文件被拒绝", func(t *testing.T) {
		result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
			{Hash: keygen.ContentHash([]byte("big")), Filename: "big.png", Size: 3 * 1024 * 1024},
		})
		require.NoError(t, err)
		require.Len(t, result.Rejected, 1)
		assert.Contains(t, result.Rejected[0].Reason, "exceeds maximum")
	})

	t.Run("无效哈希被拒绝", func(t *testing.T) {
		result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
			{Hash: "not-a-hash", Filename: "a.png", Size: 100},
		})
		require.NoError(t, err)
		require.Len(t, result.Rejected, 1)
	})

	t.Run("牌组不存在报错", func(t *testing.T) {
		_, err := mediaService.BulkCheck("no-such-deck", 1, []CheckFile{
			{Hash: imageHash, Filename: "cover.png", Size: 100},
		})
		assert.Error(t, err)
	})

	t.Run("空批次报错", func(t *testing.T) {
		_, err := mediaService.BulkCheck("deck-a", 1, nil)
		assert.Error(t, err)
	})
}

// TestBulkCheckProxyFallback 测试不支持预签名时的中转回退
func TestBulkCheckProxyFallback(t *testing.T) {
	mediaService, _, db := setupMediaService(t, false)
	createTestDeck(t, db, "deck-b")

	data := []byte("audio bytes")
	result, err := mediaService.BulkCheck("deck-b", 1, []CheckFile{
		{Hash: keygen.ContentHash(data), Filename: "word.mp3", Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.Len(t, result.Uploads, 1)
	assert.True(t, result.Uploads[0].Proxied)
	assert.Contains(t, result.Uploads[0].URL, "/media/upload/"+result.BatchID+"/")
}

// TestConfirmAndRefCount 测试确认流程和引用计数
func TestConfirmAndRefCount(t *testing.T) {
	mediaService, provider, db := setupMediaService(t, true)
	deckA := createTestDeck(t, db, "deck-a")
	createTestDeck(t, db, "deck-b")

	data := []byte("shared image bytes")
	hash := keygen.ContentHash(data)

	// 登记并模拟客户端直传
	result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
		{Hash: hash, Filename: "shared.png", Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.NoError(t, provider.UploadFile(keygen.StorageKey("media", hash), bytes.NewReader(data), "image/png"))

	t.Run("确认后建档并挂接引用", func(t *testing.T) {
		confirm, err := mediaService.BulkConfirm(result.BatchID, []string{hash})
		require.NoError(t, err)
		assert.Equal(t, []string{hash}, confirm.Confirmed)
		assert.Empty(t, confirm.Failed)

		var mediaFile database.MediaFile
		require.NoError(t, db.Where("content_hash = ?", hash).First(&mediaFile).Error)
		assert.Equal(t, database.MediaStatusConfirmed, mediaFile.Status)
		assert.Equal(t, int64(1), mediaFile.RefCount)
	})

	t.Run("已确认批次不可重复确认", func(t *testing.T) {
		_, err := mediaService.BulkConfirm(result.BatchID, nil)
		assert.Error(t, err)
	})

	t.Run("另一牌组引用同内容时直接挂接", func(t *testing.T) {
		second, err := mediaService.BulkCheck("deck-b", 1, []CheckFile{
			{Hash: hash, Filename: "copy.png", Size: int64(len(data))},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{hash}, second.Existing)
		assert.Empty(t, second.Uploads)

		var mediaFile database.MediaFile
		require.NoError(t, db.Where("content_hash = ?", hash).First(&mediaFile).Error)
		assert.Equal(t, int64(2), mediaFile.RefCount)
	})

	t.Run("解除牌组引用后计数回落", func(t *testing.T) {
		require.NoError(t, mediaService.DetachDeck(deckA.ID))

		var mediaFile database.MediaFile
		require.NoError(t, db.Where("content_hash = ?", hash).First(&mediaFile).Error)
		assert.Equal(t, int64(1), mediaFile.RefCount)
	})
}

// TestConfirmSizeMismatch 测试确认时的大小核对
func TestConfirmSizeMismatch(t *testing.T) {
	mediaService, provider, db := setupMediaService(t, true)
	createTestDeck(t, db, "deck-a")

	data := []byte("actual bytes")
	hash := keygen.ContentHash(data)

	result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
		{Hash: hash, Filename: "a.png", Size: 9999}, // 申报大小与实际不符
	})
	require.NoError(t, err)
	require.NoError(t, provider.UploadFile(keygen.StorageKey("media", hash), bytes.NewReader(data), "image/png"))

	confirm, err := mediaService.BulkConfirm(result.BatchID, nil)
	require.NoError(t, err)
	assert.Empty(t, confirm.Confirmed)
	require.Len(t, confirm.Failed, 1)
	assert.Contains(t, confirm.Failed[0].Reason, "size mismatch")

	// 存在失败项时批次保持开放，客户端可重试
	var batch database.MediaUploadBatch
	require.NoError(t, db.Where("batch_id = ?", result.BatchID).First(&batch).Error)
	assert.Equal(t, database.BatchStatusOpen, batch.Status)
}

// TestConfirmRetryAfterFailure 测试对象缺失时的确认重试
func TestConfirmRetryAfterFailure(t *testing.T) {
	mediaService, provider, db := setupMediaService(t, true)
	createTestDeck(t, db, "deck-a")

	data := []byte("late upload bytes")
	hash := keygen.ContentHash(data)

	result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
		{Hash: hash, Filename: "late.png", Size: int64(len(data))},
	})
	require.NoError(t, err)

	// 对象尚未上传，首次确认失败但批次保持开放
	confirm, err := mediaService.BulkConfirm(result.BatchID, []string{hash})
	require.NoError(t, err)
	require.Len(t, confirm.Failed, 1)

	var batch database.MediaUploadBatch
	require.NoError(t, db.Where("batch_id = ?", result.BatchID).First(&batch).Error)
	assert.Equal(t, database.BatchStatusOpen, batch.Status)

	// 补传后重试确认成功，批次关闭
	require.NoError(t, provider.UploadFile(keygen.StorageKey("media", hash), bytes.NewReader(data), "image/png"))
	confirm, err = mediaService.BulkConfirm(result.BatchID, []string{hash})
	require.NoError(t, err)
	assert.Equal(t, []string{hash}, confirm.Confirmed)

	require.NoError(t, db.Where("batch_id = ?", result.BatchID).First(&batch).Error)
	assert.Equal(t, database.BatchStatusConfirmed, batch.Status)
}

// TestProxyUpload 测试中转上传
func TestProxyUpload(t *testing.T) {
	mediaService, provider, db := setupMediaService(t, false)
	createTestDeck(t, db, "deck-a")

	data := []byte("proxied audio bytes")
	hash := keygen.ContentHash(data)

	result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
		{Hash: hash, Filename: "sound.ogg", Size: int64(len(data))},
	})
	require.NoError(t, err)

	t.Run("哈希匹配时写入存储", func(t *testing.T) {
		err := mediaService.ProxyUpload(result.BatchID, hash, bytes.NewReader(data))
		require.NoError(t, err)

		exists, err := provider.FileExists(keygen.StorageKey("media", hash))
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("哈希不匹配被拒绝", func(t *testing.T) {
		err := mediaService.ProxyUpload(result.BatchID, hash, bytes.NewReader([]byte("tampered")))
		assert.Error(t, err)
	})

	t.Run("未知批次被拒绝", func(t *testing.T) {
		err := mediaService.ProxyUpload("no-such-batch", hash, bytes.NewReader(data))
		assert.Error(t, err)
	})
}

// TestManifest 测试下载清单
func TestManifest(t *testing.T) {
	mediaService, provider, db := setupMediaService(t, true)
	createTestDeck(t, db, "deck-a")

	data := []byte("manifest image")
	hash := keygen.ContentHash(data)

	result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
		{Hash: hash, Filename: "front.jpg", Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.NoError(t, provider.UploadFile(keygen.StorageKey("media", hash), bytes.NewReader(data), "image/jpeg"))
	_, err = mediaService.BulkConfirm(result.BatchID, nil)
	require.NoError(t, err)

	t.Run("按文件名返回下载URL", func(t *testing.T) {
		entries, err := mediaService.Manifest("deck-a", []string{"front.jpg"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "front.jpg", entries[0].Filename)
		assert.Equal(t, hash, entries[0].Hash)
		assert.Contains(t, entries[0].URL, "https://storage.example.com/download/")
	})

	t.Run("未知文件名被跳过", func(t *testing.T) {
		entries, err := mediaService.Manifest("deck-a", []string{"missing.jpg"})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("空列表返回全部引用", func(t *testing.T) {
		entries, err := mediaService.Manifest("deck-a", nil)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

// TestMediaStats 测试媒体统计
func TestMediaStats(t *testing.T) {
	mediaService, provider, db := setupMediaService(t, true)
	createTestDeck(t, db, "deck-a")

	data := []byte("stats image")
	hash := keygen.ContentHash(data)

	result, err := mediaService.BulkCheck("deck-a", 1, []CheckFile{
		{Hash: hash, Filename: "s.png", Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.NoError(t, provider.UploadFile(keygen.StorageKey("media", hash), bytes.NewReader(data), "image/png"))
	_, err = mediaService.BulkConfirm(result.BatchID, nil)
	require.NoError(t, err)

	stats, err := mediaService.GetMediaStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["total_files"])
	assert.Equal(t, int64(1), stats["total_refs"])
	assert.Equal(t, int64(0), stats["orphan_files"])
}
