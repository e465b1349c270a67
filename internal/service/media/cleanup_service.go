// 本文件实现媒体清理服务，负责回收不再被任何牌组引用的媒体文件
// 主要功能包括：
// - 周期性扫描孤儿媒体文件并入队删除
// - 删除前在事务内复核引用计数
// - 过期上传批次关闭与过期令牌清理
// - 失败重试机制和清理日志记录
package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/logger"
	"github.com/ankicollab/collab-server/internal/service/auth"
	"github.com/ankicollab/collab-server/internal/service/storage"
)

// CleanupService 媒体清理服务接口
// 提供孤儿媒体回收、批次过期和令牌清理的后台处理能力
type CleanupService interface {
	// Start 启动清理服务
	// 参数:
	//   ctx - 上下文，用于控制服务生命周期
	// 返回:
	//   error - 启动失败时返回错误
	// 功能:
	//   - 启动周期扫描协程
	//   - 启动删除工作协程
	//   - 启动重试处理协程
	Start(ctx context.Context) error

	// Stop 停止清理服务
	// 返回:
	//   error - 停止失败时返回错误
	// 功能:
	//   - 优雅关闭所有工作协程
	//   - 等待正在处理的任务完成
	Stop() error

	// TriggerScan 手动触发一次完整扫描
	TriggerScan() error
}

// retryItem 重试项结构体
// 用于管理删除失败文件的重试逻辑
type retryItem struct {
	MediaFile  *database.MediaFile // 待删除的媒体文件
	RetryCount int                 // 当前重试次数
	NextRetry  time.Time           // 下次重试时间
}

// cleanupService 媒体清理服务实现
type cleanupService struct {
	db               *gorm.DB                 // 数据库连接
	cfg              config.CleanupConfig     // 清理配置
	configService    storage.ConfigService    // 存储配置服务
	deleteQueue      chan *database.MediaFile // 删除队列，缓冲待删除文件
	retryQueue       chan *retryItem          // 重试队列，缓冲重试项
	pendingRetries   []*retryItem             // 等待到期的重试项
	retryMu          sync.Mutex               // 保护pendingRetries
	stopChan         chan struct{}            // 停止信号通道
	wg               sync.WaitGroup           // 等待组，用于协程同步
	isRunning        bool                     // 服务运行状态
	mu               sync.RWMutex             // 读写锁，保护运行状态
	minRetryInterval time.Duration            // 最小重试间隔
}

// NewCleanupService 创建媒体清理服务实例
// 参数:
//
//	db - 数据库连接实例
//	cfg - 清理配置（扫描间隔、宽限期、最大重试次数）
//	configService - 存储配置服务实例
//
// 返回:
//
//	CleanupService - 媒体清理服务接口实例
func NewCleanupService(db *gorm.DB, cfg config.CleanupConfig, configService storage.ConfigService) CleanupService {
	logger.Infof("[清理服务] 初始化媒体清理服务, 扫描间隔: %d秒, 宽限期: %d秒, 最大重试: %d",
		cfg.ScanInterval, cfg.GracePeriod, cfg.MaxRetries)

	return &cleanupService{
		db:               db,
		cfg:              cfg,
		configService:    configService,
		deleteQueue:      make(chan *database.MediaFile, 100),
		retryQueue:       make(chan *retryItem, 50),
		stopChan:         make(chan struct{}),
		isRunning:        false,
		minRetryInterval: 30 * time.Second,
	}
}

// Start 启动清理服务
func (s *cleanupService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup service is already running")
	}
	s.isRunning = true

	logger.Infof("[清理服务] 启动媒体清理服务")

	s.wg.Add(1)
	go s.scanWorker(ctx)

	s.wg.Add(1)
	go s.deleteWorker(ctx)

	s.wg.Add(1)
	go s.retryWorker(ctx)

	logger.Infof("[清理服务] 媒体清理服务已启动, 包含3个工作协程")
	return nil
}

// Stop 停止清理服务
func (s *cleanupService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	logger.Infof("[清理服务] 正在停止媒体清理服务...")
	close(s.stopChan)
	s.wg.Wait()
	s.isRunning = false

	logger.Infof("[清理服务] 媒体清理服务已停止")
	return nil
}

// TriggerScan 手动触发一次完整扫描
func (s *cleanupService) TriggerScan() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return fmt.Errorf("cleanup service is not running")
	}

	logger.Infof("[清理服务] 手动触发清理扫描")
	s.runScan()
	return nil
}

// scanWorker 周期扫描协程
// 按配置的扫描间隔执行孤儿文件扫描、批次过期和令牌清理
func (s *cleanupService) scanWorker(ctx context.Context) {
	defer s.wg.Done()
	logger.Infof("[清理服务] 扫描协程已启动")

	ticker := time.NewTicker(time.Duration(s.cfg.ScanInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[清理服务] 扫描协程收到上下文取消信号, 停止运行")
			return
		case <-s.stopChan:
			logger.Infof("[清理服务] 扫描协程收到停止信号, 停止运行")
			return
		case <-ticker.C:
			s.runScan()
		}
	}
}

// runScan 执行一轮完整扫描
func (s *cleanupService) runScan() {
	s.scanOrphanFiles()
	s.expireStaleBatches()
	s.purgeExpiredTokens()
}

// scanOrphanFiles 扫描孤儿媒体文件
// 引用计数归零且超过宽限期的已确认文件进入删除队列
// 宽限期内的文件可能正被新牌组重新引用，跳过处理
func (s *cleanupService) scanOrphanFiles() {
	cutoff := time.Now().Add(-time.Duration(s.cfg.GracePeriod) * time.Second)

	var orphans []database.MediaFile
	if err := s.db.Where("ref_count = 0 AND status = ? AND updated_at < ?",
		database.MediaStatusConfirmed, cutoff).Find(&orphans).Error; err != nil {
		logger.Errorf("[清理服务] 查询孤儿媒体文件失败: %v", err)
		return
	}

	if len(orphans) == 0 {
		return
	}

	queuedCount := 0
	for i := range orphans {
		select {
		case s.deleteQueue <- &orphans[i]:
			queuedCount++
		default:
			logger.Infof("[清理服务] 删除队列已满, 跳过文件: %s", orphans[i].ContentHash)
		}
	}

	logger.Infof("[清理服务] 孤儿文件扫描完成, 发现: %d, 已入队: %d", len(orphans), queuedCount)
}

// expireStaleBatches 关闭超过有效期仍未确认的上传批次
func (s *cleanupService) expireStaleBatches() {
	result := s.db.Model(&database.MediaUploadBatch{}).
		Where("status = ? AND expires_at < ?", database.BatchStatusOpen, time.Now()).
		Update("status", database.BatchStatusExpired)
	if result.Error != nil {
		logger.Errorf("[清理服务] 关闭过期批次失败: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		logger.Infof("[清理服务] 已关闭 %d 个过期上传批次", result.RowsAffected)
		cleanupLog := &database.CleanupLog{
			Action: database.CleanupActionExpireBatch,
			Status: "success",
		}
		if err := s.db.Create(cleanupLog).Error; err != nil {
			logger.Warnf("[清理服务] 记录批次过期日志失败: %v", err)
		}
	}
}

// purgeExpiredTokens 删除刷新期限已过的令牌行
func (s *cleanupService) purgeExpiredTokens() {
	removed, err := auth.CleanupExpiredTokens(s.db)
	if err != nil {
		logger.Errorf("[清理服务] 清理过期令牌失败: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("[清理服务] 已清理 %d 个过期令牌", removed)
	}
}

// deleteWorker 删除处理工作协程
// 从删除队列中获取文件并执行对象存储删除与数据库清理
func (s *cleanupService) deleteWorker(ctx context.Context) {
	defer s.wg.Done()
	logger.Infof("[清理服务] 删除协程已启动")

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[清理服务] 删除协程收到上下文取消信号, 停止运行")
			return
		case <-s.stopChan:
			logger.Infof("[清理服务] 删除协程收到停止信号, 停止运行")
			return
		case mediaFile := <-s.deleteQueue:
			s.deleteOrphan(mediaFile, 0)
		}
	}
}

// deleteOrphan 删除单个孤儿媒体文件
// 先删除对象存储中的对象，再在事务内复核引用计数后硬删除数据库行
// 复核发现引用计数已回升时放弃删除
func (s *cleanupService) deleteOrphan(mediaFile *database.MediaFile, retryCount int) {
	startTime := time.Now()

	cleanupLog := &database.CleanupLog{
		ContentHash: mediaFile.ContentHash,
		StorageKey:  mediaFile.StorageKey,
		Action:      database.CleanupActionDeleteObject,
		Status:      "pending",
		RetryCount:  retryCount,
	}
	if err := s.db.Create(cleanupLog).Error; err != nil {
		logger.Errorf("[清理服务] 创建清理日志失败, 哈希: %s, 错误: %v", mediaFile.ContentHash, err)
		return
	}

	provider, _, err := s.configService.ActiveProvider()
	if err != nil {
		logger.Infof("[清理服务] 未找到激活的存储配置, 跳过删除: %s", mediaFile.ContentHash)
		s.updateCleanupLogError(cleanupLog, "no active storage configuration")
		return
	}

	// 删除前复核引用计数, 宽限期内文件可能被重新引用
	var current database.MediaFile
	if err := s.db.First(&current, mediaFile.ID).Error; err != nil {
		logger.Infof("[清理服务] 文件记录已不存在, 跳过删除: %s", mediaFile.ContentHash)
		s.updateCleanupLogError(cleanupLog, "media file record no longer exists")
		return
	}
	if current.RefCount > 0 {
		logger.Infof("[清理服务] 文件引用计数已回升 (%d), 放弃删除: %s",
			current.RefCount, mediaFile.ContentHash)
		s.updateCleanupLogError(cleanupLog, "ref count raised again, deletion skipped")
		return
	}

	// 先删对象存储, 失败时数据库行保持不动以便重试
	if err := provider.DeleteFile(mediaFile.StorageKey); err != nil {
		logger.Errorf("[清理服务] 删除存储对象失败, 键: %s, 错误: %v, 安排重试",
			mediaFile.StorageKey, err)
		s.updateCleanupLogError(cleanupLog, fmt.Sprintf("storage delete failed: %v", err))
		s.scheduleRetry(&retryItem{
			MediaFile:  mediaFile,
			RetryCount: retryCount,
			NextRetry:  time.Now().Add(s.minRetryInterval),
		})
		return
	}

	// 事务内再次复核后硬删除数据库行
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var locked database.MediaFile
		if err := tx.First(&locked, mediaFile.ID).Error; err != nil {
			return nil
		}
		if locked.RefCount > 0 {
			logger.Infof("[清理服务] 事务内复核发现引用回升, 放弃删除: %s", mediaFile.ContentHash)
			return nil
		}
		return tx.Unscoped().Delete(&locked).Error
	})
	if err != nil {
		logger.Errorf("[清理服务] 删除文件记录失败, 哈希: %s, 错误: %v", mediaFile.ContentHash, err)
		s.updateCleanupLogError(cleanupLog, fmt.Sprintf("database delete failed: %v", err))
		return
	}

	duration := time.Since(startTime).Milliseconds()
	updates := map[string]interface{}{
		"status":   "success",
		"duration": duration,
	}
	if err := s.db.Model(cleanupLog).Updates(updates).Error; err != nil {
		logger.Warnf("[清理服务] 更新清理日志失败, 哈希: %s, 错误: %v", mediaFile.ContentHash, err)
	}

	logger.Infof("[清理服务] 孤儿文件已回收: %s (键: %s, 耗时: %d毫秒)",
		mediaFile.ContentHash, mediaFile.StorageKey, duration)
}

// retryWorker 重试处理工作协程
// 定期检查重试队列并处理到期的重试项
func (s *cleanupService) retryWorker(ctx context.Context) {
	defer s.wg.Done()
	logger.Infof("[清理服务] 重试协程已启动")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[清理服务] 重试协程收到上下文取消信号, 停止运行")
			return
		case <-s.stopChan:
			logger.Infof("[清理服务] 重试协程收到停止信号, 停止运行")
			return
		case <-ticker.C:
			for _, item := range s.takeRetryItemsDue(time.Now()) {
				select {
				case s.deleteQueue <- item.MediaFile:
					logger.Infof("[清理服务] 重试删除文件: %s (尝试 %d/%d)",
						item.MediaFile.ContentHash, item.RetryCount+1, s.cfg.MaxRetries)
				default:
					// 队列已满, 稍后再试
					s.scheduleRetry(item)
				}
			}
		case item := <-s.retryQueue:
			s.retryMu.Lock()
			s.pendingRetries = append(s.pendingRetries, item)
			s.retryMu.Unlock()
		}
	}
}

// takeRetryItemsDue 取出到期需要重试的项
func (s *cleanupService) takeRetryItemsDue(now time.Time) []*retryItem {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()

	var due []*retryItem
	var remaining []*retryItem
	for _, item := range s.pendingRetries {
		if item.NextRetry.Before(now) || item.NextRetry.Equal(now) {
			due = append(due, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	s.pendingRetries = remaining
	return due
}

// scheduleRetry 安排重试任务
// 使用指数退避策略计算下次重试时间, 超过最大重试次数后放弃
func (s *cleanupService) scheduleRetry(item *retryItem) {
	if item.RetryCount >= s.cfg.MaxRetries {
		logger.Infof("[清理服务] 文件已达到最大重试次数 (%d): %s, 停止重试",
			s.cfg.MaxRetries, item.MediaFile.ContentHash)
		cleanupLog := &database.CleanupLog{
			ContentHash: item.MediaFile.ContentHash,
			StorageKey:  item.MediaFile.StorageKey,
			Action:      database.CleanupActionDeleteObject,
			Status:      "failed",
			ErrorMsg:    "max retries exceeded",
			RetryCount:  item.RetryCount,
		}
		if err := s.db.Create(cleanupLog).Error; err != nil {
			logger.Warnf("[清理服务] 记录重试放弃日志失败: %v", err)
		}
		return
	}

	backoff := time.Duration((item.RetryCount+1)*(item.RetryCount+1)) * s.minRetryInterval
	newItem := &retryItem{
		MediaFile:  item.MediaFile,
		RetryCount: item.RetryCount + 1,
		NextRetry:  time.Now().Add(backoff),
	}

	select {
	case s.retryQueue <- newItem:
		logger.Infof("[清理服务] 已安排文件重试: %s, 时间: %v (尝试 %d/%d)",
			item.MediaFile.ContentHash, newItem.NextRetry, newItem.RetryCount, s.cfg.MaxRetries)
	default:
		logger.Infof("[清理服务] 重试队列已满, 无法安排文件重试: %s", item.MediaFile.ContentHash)
	}
}

// updateCleanupLogError 更新清理日志的失败信息
func (s *cleanupService) updateCleanupLogError(cleanupLog *database.CleanupLog, errorMsg string) {
	updates := map[string]interface{}{
		"status":    "failed",
		"error_msg": errorMsg,
	}
	if err := s.db.Model(cleanupLog).Updates(updates).Error; err != nil {
		logger.Infof("[清理服务] 清理日志更新状态: %v", err)
	}
}
