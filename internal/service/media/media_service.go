// Package media 提供媒体文件的批量登记、确认、清单下发和引用计数管理
// 媒体内容按SHA256去重，同一份对象可被多个牌组引用
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	apperrors "github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/keygen"
	"github.com/ankicollab/collab-server/internal/logger"
	"github.com/ankicollab/collab-server/internal/service/storage"
)

// CheckFile 批量登记请求中的单个文件
// 字段名与客户端消息体保持一致
type CheckFile struct {
	Hash     string `json:"hash"`      // 文件内容哈希
	Filename string `json:"filename"`  // 笔记中引用的文件名
	Size     int64  `json:"file_size"` // 文件字节数
	NoteGUID string `json:"note_guid"` // 引用该文件的笔记GUID
}

// UploadTarget 待上传文件的上传指引
type UploadTarget struct {
	Hash     string `json:"hash"`          // 文件内容哈希
	Filename string `json:"filename"`      // 文件名
	URL      string `json:"presigned_url"` // 上传地址（预签名URL或中转端点路径）
	Method   string `json:"method"`        // HTTP方法，固定为PUT
	Proxied  bool   `json:"proxied"`       // true表示经由本服务中转上传
}

// RejectedFile 被拒绝登记的文件及原因
type RejectedFile struct {
	Hash     string `json:"hash"`     // 文件内容哈希
	Filename string `json:"filename"` // 文件名
	Reason   string `json:"reason"`   // 拒绝原因
}

// CheckResult 批量登记结果
// 响应键与客户端读取的键保持一致
type CheckResult struct {
	BatchID  string         `json:"batch_id"`       // 上传批次ID，确认时回传
	Existing []string       `json:"existing_files"` // 服务器已有的文件哈希，已直接挂接到牌组
	Uploads  []UploadTarget `json:"missing_files"`  // 需要上传的文件及上传指引
	Rejected []RejectedFile `json:"failed_files"`   // 校验未通过的文件
}

// ConfirmFailure 确认阶段校验失败的文件
type ConfirmFailure struct {
	Hash   string `json:"hash"`   // 文件内容哈希
	Reason string `json:"reason"` // 失败原因
}

// ConfirmResult 批量确认结果
type ConfirmResult struct {
	Confirmed []string         `json:"confirmed_files"` // 确认成功并已挂接的文件哈希
	Failed    []ConfirmFailure `json:"failed_files"`    // 确认失败的文件
}

// ManifestEntry 媒体清单中的单个条目
type ManifestEntry struct {
	Filename string `json:"filename"` // 文件名
	Hash     string `json:"hash"`     // 文件内容SHA256
	URL      string `json:"url"`      // 限时下载URL
}

// MediaService 媒体服务接口
// 覆盖上传前登记、上传后确认、下载清单、中转上传和引用维护
type MediaService interface {
	// BulkCheck 批量登记牌组的媒体文件
	// 校验扩展名、大小和批次上限；已有文件直接挂接，缺失文件返回上传指引
	BulkCheck(deckHash string, userID uint, files []CheckFile) (*CheckResult, error)

	// BulkConfirm 批量确认上传完成
	// 逐个核对对象存储中的实际文件，确认后在事务内挂接引用
	// confirmedHashes非空时只处理列出的文件；存在失败项时批次保持开放以便重试
	BulkConfirm(batchID string, confirmedHashes []string) (*ConfirmResult, error)

	// Manifest 按文件名生成限时下载清单
	Manifest(deckHash string, filenames []string) ([]ManifestEntry, error)

	// ProxyUpload 中转上传
	// 供不支持预签名直传的存储后端使用，落盘前校验哈希与大小
	ProxyUpload(batchID, contentHash string, reader io.Reader) error

	// DetachDeck 解除牌组对所有媒体文件的引用
	DetachDeck(deckID uint) error

	// GetMediaStats 获取媒体统计信息
	GetMediaStats() (map[string]interface{}, error)
}

// mediaService 媒体服务实现
type mediaService struct {
	db            *gorm.DB               // 数据库连接实例
	cfg           config.MediaConfig     // 媒体配置
	configService storage.ConfigService  // 存储配置服务，提供当前激活的存储后端
}

// NewMediaService 创建媒体服务实例
// 参数:
//   - db: GORM数据库连接实例
//   - cfg: 媒体配置（大小上限、扩展名白名单、批次上限、URL有效期）
//   - configService: 存储配置服务实例
// 返回:
//   - MediaService: 媒体服务接口实现
func NewMediaService(db *gorm.DB, cfg config.MediaConfig, configService storage.ConfigService) MediaService {
	logger.Infof("[媒体服务] 初始化媒体服务, 单文件上限: %d 字节, 批次上限: %d",
		cfg.MaxFileSize, cfg.MaxBatchFiles)
	return &mediaService{
		db:            db,
		cfg:           cfg,
		configService: configService,
	}
}

// BulkCheck 批量登记牌组的媒体文件
func (s *mediaService) BulkCheck(deckHash string, userID uint, files []CheckFile) (*CheckResult, error) {
	if len(files) == 0 {
		return nil, apperrors.ErrInvalidParameters
	}
	if len(files) > s.cfg.MaxBatchFiles {
		return nil, apperrors.NewWithDetails(apperrors.ErrMediaBatchTooLarge,
			apperrors.GetErrorMessage(apperrors.ErrMediaBatchTooLarge),
			fmt.Sprintf("batch contains %d files, limit is %d", len(files), s.cfg.MaxBatchFiles))
	}

	var deck database.Deck
	if err := s.db.Where("deck_hash = ?", deckHash).First(&deck).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrDeckNotFound)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	provider, storageCfg, err := s.configService.ActiveProvider()
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		BatchID:  uuid.New().String(),
		Existing: []string{},
		Uploads:  []UploadTarget{},
		Rejected: []RejectedFile{},
	}

	var pending []CheckFile
	for _, file := range files {
		if reason := s.validateFile(&file); reason != "" {
			logger.Infof("[媒体服务] 文件登记被拒绝: %s (%s), 原因: %s", file.Filename, file.Hash, reason)
			result.Rejected = append(result.Rejected, RejectedFile{
				Hash:     file.Hash,
				Filename: file.Filename,
				Reason:   reason,
			})
			continue
		}

		var existing database.MediaFile
		err := s.db.Where("content_hash = ? AND status = ?", file.Hash, database.MediaStatusConfirmed).
			First(&existing).Error
		if err == nil {
			// 已有同内容文件，直接挂接引用
			if err := s.attachFile(s.db, deck.ID, &existing, file.Filename, file.NoteGUID); err != nil {
				return nil, err
			}
			result.Existing = append(result.Existing, file.Hash)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
		}

		pending = append(pending, file)
	}

	if len(pending) == 0 {
		logger.Infof("[媒体服务] 批量登记完成, 牌组: %s, 全部命中已有文件: %d", deckHash, len(result.Existing))
		return result, nil
	}

	// 为缺失文件开启上传批次
	batch := database.MediaUploadBatch{
		BatchID:   result.BatchID,
		DeckHash:  deckHash,
		UserID:    userID,
		Status:    database.BatchStatusOpen,
		ExpiresAt: time.Now().Add(2 * s.cfg.PresignExpiry()),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		for _, file := range pending {
			entry := database.MediaBatchFile{
				BatchID:     batch.BatchID,
				ContentHash: file.Hash,
				FileName:    file.Filename,
				NoteGUID:    file.NoteGUID,
				FileSize:    file.Size,
				Status:      database.MediaStatusPending,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Errorf("[媒体服务] 创建上传批次失败, 牌组: %s, 错误: %v", deckHash, err)
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseTransaction, err)
	}

	for _, file := range pending {
		target := UploadTarget{
			Hash:     file.Hash,
			Filename: file.Filename,
			Method:   "PUT",
		}

		objectKey := keygen.StorageKey(storageCfg.KeyPrefix, file.Hash)
		url, err := provider.SignedUploadURL(objectKey, s.cfg.PresignExpiry())
		if errors.Is(err, storage.ErrPresignNotSupported) {
			// 存储后端不支持直传，改走本服务中转
			target.URL = fmt.Sprintf("/media/upload/%s/%s", batch.BatchID, file.Hash)
			target.Proxied = true
		} else if err != nil {
			return nil, apperrors.WrapByCode(apperrors.ErrStorageUploadFailed, err)
		} else {
			target.URL = url
		}

		result.Uploads = append(result.Uploads, target)
	}

	logger.Infof("[媒体服务] 批量登记完成, 牌组: %s, 批次: %s, 已有: %d, 待上传: %d, 拒绝: %d",
		deckHash, batch.BatchID, len(result.Existing), len(result.Uploads), len(result.Rejected))
	return result, nil
}

// BulkConfirm 批量确认上传完成
// 对批次内每个待确认文件核对对象存储中的实际大小，核对通过后
// 在同一事务内建档（或复用已有档案）、挂接牌组引用并递增引用计数
func (s *mediaService) BulkConfirm(batchID string, confirmedHashes []string) (*ConfirmResult, error) {
	var batch database.MediaUploadBatch
	if err := s.db.Where("batch_id = ?", batchID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrMediaBatchNotFound)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}
	if batch.Status != database.BatchStatusOpen {
		return nil, apperrors.NewByCode(apperrors.ErrMediaBatchClosed)
	}

	var deck database.Deck
	if err := s.db.Where("deck_hash = ?", batch.DeckHash).First(&deck).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	provider, storageCfg, err := s.configService.ActiveProvider()
	if err != nil {
		return nil, err
	}

	query := s.db.Where("batch_id = ? AND status = ?", batchID, database.MediaStatusPending)
	if len(confirmedHashes) > 0 {
		query = query.Where("content_hash IN ?", confirmedHashes)
	}
	var batchFiles []database.MediaBatchFile
	if err := query.Find(&batchFiles).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	result := &ConfirmResult{
		Confirmed: []string{},
		Failed:    []ConfirmFailure{},
	}

	for _, entry := range batchFiles {
		objectKey := keygen.StorageKey(storageCfg.KeyPrefix, entry.ContentHash)

		info, err := provider.GetFileInfo(objectKey)
		if err != nil {
			result.Failed = append(result.Failed, ConfirmFailure{
				Hash:   entry.ContentHash,
				Reason: "object not found in storage",
			})
			continue
		}
		if entry.FileSize > 0 && info.Size != entry.FileSize {
			logger.Warnf("[媒体服务] 对象大小不符, 哈希: %s, 声明: %d, 实际: %d",
				entry.ContentHash, entry.FileSize, info.Size)
			result.Failed = append(result.Failed, ConfirmFailure{
				Hash:   entry.ContentHash,
				Reason: fmt.Sprintf("size mismatch: declared %d, stored %d", entry.FileSize, info.Size),
			})
			continue
		}

		entryID := entry.ID
		err = s.db.Transaction(func(tx *gorm.DB) error {
			mediaFile, err := s.getOrCreateMediaFile(tx, &entry, objectKey, info)
			if err != nil {
				return err
			}
			if err := s.attachFile(tx, deck.ID, mediaFile, entry.FileName, entry.NoteGUID); err != nil {
				return err
			}
			return tx.Model(&database.MediaBatchFile{}).Where("id = ?", entryID).
				Update("status", database.MediaStatusConfirmed).Error
		})
		if err != nil {
			logger.Errorf("[媒体服务] 确认文件失败, 哈希: %s, 错误: %v", entry.ContentHash, err)
			result.Failed = append(result.Failed, ConfirmFailure{
				Hash:   entry.ContentHash,
				Reason: "database error during confirmation",
			})
			continue
		}

		result.Confirmed = append(result.Confirmed, entry.ContentHash)
	}

	// 仍有待确认或失败的文件时批次保持开放，客户端可补传后重试
	var remaining int64
	if err := s.db.Model(&database.MediaBatchFile{}).
		Where("batch_id = ? AND status = ?", batchID, database.MediaStatusPending).
		Count(&remaining).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}
	if remaining == 0 && len(result.Failed) == 0 {
		if err := s.db.Model(&batch).Update("status", database.BatchStatusConfirmed).Error; err != nil {
			return nil, apperrors.WrapByCode(apperrors.ErrDatabaseUpdate, err)
		}
	}

	logger.Infof("[媒体服务] 批量确认完成, 批次: %s, 成功: %d, 失败: %d, 待确认: %d",
		batchID, len(result.Confirmed), len(result.Failed), remaining)
	return result, nil
}

// Manifest 按文件名生成限时下载清单
// 只返回牌组实际引用且已确认的文件，未知文件名直接跳过
func (s *mediaService) Manifest(deckHash string, filenames []string) ([]ManifestEntry, error) {
	if len(filenames) > s.cfg.MaxBatchFiles {
		return nil, apperrors.NewByCode(apperrors.ErrMediaBatchTooLarge)
	}

	var deck database.Deck
	if err := s.db.Where("deck_hash = ?", deckHash).First(&deck).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrDeckNotFound)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	provider, _, err := s.configService.ActiveProvider()
	if err != nil {
		return nil, err
	}

	query := s.db.Table("deck_media").
		Select("deck_media.file_name, media_files.content_hash, media_files.storage_key").
		Joins("JOIN media_files ON media_files.id = deck_media.media_file_id").
		Where("deck_media.deck_id = ? AND deck_media.deleted_at IS NULL", deck.ID).
		Where("media_files.status = ? AND media_files.deleted_at IS NULL", database.MediaStatusConfirmed)
	if len(filenames) > 0 {
		query = query.Where("deck_media.file_name IN ?", filenames)
	}

	var rows []struct {
		FileName    string
		ContentHash string
		StorageKey  string
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	entries := make([]ManifestEntry, 0, len(rows))
	for _, row := range rows {
		url, err := provider.SignedDownloadURL(row.StorageKey, s.cfg.DownloadExpiry())
		if err != nil {
			logger.Errorf("[媒体服务] 生成下载URL失败, 哈希: %s, 错误: %v", row.ContentHash, err)
			return nil, apperrors.WrapByCode(apperrors.ErrStorageDownloadFailed, err)
		}
		entries = append(entries, ManifestEntry{
			Filename: row.FileName,
			Hash:     row.ContentHash,
			URL:      url,
		})
	}

	logger.Infof("[媒体服务] 清单生成完成, 牌组: %s, 请求: %d, 命中: %d",
		deckHash, len(filenames), len(entries))
	return entries, nil
}

// ProxyUpload 中转上传
// 读入上传内容（带大小上限保护），重新计算SHA256与声明哈希核对后写入对象存储
func (s *mediaService) ProxyUpload(batchID, contentHash string, reader io.Reader) error {
	if !keygen.IsValidContentHash(contentHash) {
		return apperrors.ErrInvalidParameters
	}

	var batch database.MediaUploadBatch
	if err := s.db.Where("batch_id = ?", batchID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewByCode(apperrors.ErrMediaBatchNotFound)
		}
		return apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}
	if batch.Status != database.BatchStatusOpen {
		return apperrors.NewByCode(apperrors.ErrMediaBatchClosed)
	}
	if time.Now().After(batch.ExpiresAt) {
		return apperrors.NewByCode(apperrors.ErrMediaBatchClosed)
	}

	var entry database.MediaBatchFile
	if err := s.db.Where("batch_id = ? AND content_hash = ?", batchID, contentHash).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewByCode(apperrors.ErrMediaNotFound)
		}
		return apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	// 读入内容并核对哈希，超出上限即拒绝
	limited := io.LimitReader(reader, s.cfg.MaxFileSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return apperrors.WrapByCode(apperrors.ErrMediaUploadFailed, err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return apperrors.NewByCode(apperrors.ErrMediaSizeTooLarge)
	}
	if keygen.ContentHash(data) != contentHash {
		logger.Warnf("[媒体服务] 中转上传哈希不符, 批次: %s, 声明哈希: %s", batchID, contentHash)
		return apperrors.NewByCode(apperrors.ErrMediaHashMismatch)
	}

	provider, storageCfg, err := s.configService.ActiveProvider()
	if err != nil {
		return err
	}

	objectKey := keygen.StorageKey(storageCfg.KeyPrefix, contentHash)
	contentType := mediaContentType(entry.FileName)
	if err := provider.UploadFile(objectKey, bytes.NewReader(data), contentType); err != nil {
		logger.Errorf("[媒体服务] 中转上传写入存储失败, 哈希: %s, 错误: %v", contentHash, err)
		return apperrors.WrapByCode(apperrors.ErrMediaUploadFailed, err)
	}

	logger.Infof("[媒体服务] 中转上传完成, 批次: %s, 哈希: %s, 大小: %d 字节",
		batchID, contentHash, len(data))
	return nil
}

// DetachDeck 解除牌组对所有媒体文件的引用
// 引用行删除与引用计数递减在同一事务内完成，孤儿文件交由清理服务回收
func (s *mediaService) DetachDeck(deckID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var refs []database.DeckMedia
		if err := tx.Where("deck_id = ?", deckID).Find(&refs).Error; err != nil {
			return apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
		}

		for _, ref := range refs {
			if err := tx.Delete(&ref).Error; err != nil {
				return apperrors.WrapByCode(apperrors.ErrDatabaseDelete, err)
			}
			if err := tx.Model(&database.MediaFile{}).
				Where("id = ? AND ref_count > 0", ref.MediaFileID).
				UpdateColumn("ref_count", gorm.Expr("ref_count - ?", 1)).Error; err != nil {
				return apperrors.WrapByCode(apperrors.ErrDatabaseUpdate, err)
			}
		}

		logger.Infof("[媒体服务] 牌组引用已解除, 牌组ID: %d, 引用数: %d", deckID, len(refs))
		return nil
	})
}

// GetMediaStats 获取媒体统计信息
func (s *mediaService) GetMediaStats() (map[string]interface{}, error) {
	var stats struct {
		TotalFiles int64
		TotalSize  int64
		TotalRefs  int64
	}
	if err := s.db.Model(&database.MediaFile{}).
		Select("COUNT(*) as total_files, COALESCE(SUM(file_size), 0) as total_size, COALESCE(SUM(ref_count), 0) as total_refs").
		Where("status = ?", database.MediaStatusConfirmed).
		Scan(&stats).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	var orphans int64
	if err := s.db.Model(&database.MediaFile{}).
		Where("status = ? AND ref_count = 0", database.MediaStatusConfirmed).
		Count(&orphans).Error; err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	return map[string]interface{}{
		"total_files":  stats.TotalFiles,
		"total_size":   stats.TotalSize,
		"total_refs":   stats.TotalRefs,
		"orphan_files": orphans,
	}, nil
}

// validateFile 校验单个登记文件，返回空串表示通过
func (s *mediaService) validateFile(file *CheckFile) string {
	if !keygen.IsValidContentHash(file.Hash) {
		return "invalid content hash"
	}
	if file.Filename == "" {
		return "empty filename"
	}
	ext := filepath.Ext(file.Filename)
	if !s.cfg.IsAllowedExtension(ext) {
		return fmt.Sprintf("file extension %s is not allowed", ext)
	}
	if file.Size <= 0 {
		return "invalid file size"
	}
	if file.Size > s.cfg.MaxFileSize {
		return fmt.Sprintf("file size %d exceeds maximum allowed size %d", file.Size, s.cfg.MaxFileSize)
	}
	return ""
}

// getOrCreateMediaFile 按内容哈希建档或复用已有档案
func (s *mediaService) getOrCreateMediaFile(tx *gorm.DB, entry *database.MediaBatchFile,
	objectKey string, info *storage.FileInfo) (*database.MediaFile, error) {

	var mediaFile database.MediaFile
	err := tx.Where("content_hash = ?", entry.ContentHash).First(&mediaFile).Error
	if err == nil {
		if mediaFile.Status != database.MediaStatusConfirmed {
			if err := tx.Model(&mediaFile).Update("status", database.MediaStatusConfirmed).Error; err != nil {
				return nil, err
			}
			mediaFile.Status = database.MediaStatusConfirmed
		}
		return &mediaFile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	mediaFile = database.MediaFile{
		ContentHash: entry.ContentHash,
		FileName:    entry.FileName,
		FileSize:    info.Size,
		ContentType: mediaContentType(entry.FileName),
		StorageKey:  objectKey,
		RefCount:    0,
		Status:      database.MediaStatusConfirmed,
	}
	if err := tx.Create(&mediaFile).Error; err != nil {
		return nil, err
	}
	return &mediaFile, nil
}

// attachFile 将媒体文件挂接到牌组
// 引用行与引用计数在同一事务内更新；同一(牌组,文件,文件名)重复挂接按幂等处理
func (s *mediaService) attachFile(tx *gorm.DB, deckID uint, mediaFile *database.MediaFile,
	fileName, noteGUID string) error {

	run := func(tx *gorm.DB) error {
		var count int64
		tx.Model(&database.DeckMedia{}).
			Where("deck_id = ? AND media_file_id = ? AND file_name = ?", deckID, mediaFile.ID, fileName).
			Count(&count)
		if count > 0 {
			return nil
		}

		ref := database.DeckMedia{
			DeckID:      deckID,
			MediaFileID: mediaFile.ID,
			FileName:    fileName,
			NoteGUID:    noteGUID,
		}
		if err := tx.Create(&ref).Error; err != nil {
			return err
		}
		return tx.Model(&database.MediaFile{}).Where("id = ?", mediaFile.ID).
			UpdateColumn("ref_count", gorm.Expr("ref_count + ?", 1)).Error
	}

	// 调用方可能已在事务内
	if tx != s.db {
		return run(tx)
	}
	if err := s.db.Transaction(run); err != nil {
		return apperrors.WrapByCode(apperrors.ErrDatabaseTransaction, err)
	}
	return nil
}

// mediaContentType 根据文件名确定MIME内容类型
// 只覆盖白名单内的媒体格式，未知格式回退到二进制流类型
func mediaContentType(fileName string) string {
	contentTypes := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".svg":  "image/svg+xml",
		".bmp":  "image/bmp",
		".tif":  "image/tiff",
		".tiff": "image/tiff",
		".mp3":  "audio/mpeg",
		".ogg":  "audio/ogg",
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if contentType, exists := contentTypes[ext]; exists {
		return contentType
	}
	return "application/octet-stream"
}
