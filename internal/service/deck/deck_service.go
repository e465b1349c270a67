// Package deck 提供牌组发布、拉取、订阅和统计服务
// 牌组内容以gzip压缩JSON存储，发布按内容哈希去重
package deck

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/internal/database"
	apperrors "github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/keygen"
	"github.com/ankicollab/collab-server/internal/logger"
	"github.com/ankicollab/collab-server/internal/payload"
)

// PublishResult 牌组发布结果
type PublishResult struct {
	DeckHash string `json:"deck_hash"` // 牌组哈希（订阅键）
	Created  bool   `json:"created"`   // 是否为新建牌组；false表示内容重复，返回已有牌组
}

// Update 拉取更新时下发的单个牌组条目
type Update struct {
	DeckHash     string          `json:"deck_hash"`     // 牌组哈希
	Deck         json.RawMessage `json:"deck"`          // 解压后的牌组JSON内容
	Changelog    string          `json:"changelog"`     // 自上次拉取以来的变更说明
	OptionalTags []string        `json:"optional_tags"` // 可选标签组
	GDrive       map[string]any  `json:"gdrive"`        // 预留的外部媒体源信息
}

// Stats 订阅者上传的复习统计
type Stats struct {
	UserHash      string          `json:"user_hash"`      // 上传者的匿名用户哈希
	DeckHash      string          `json:"deck_hash"`      // 所属牌组哈希
	ReviewHistory json.RawMessage `json:"review_history"` // 复习历史记录
}

// DeckService 牌组服务接口
// 覆盖牌组的发布、查询、增量拉取、订阅管理、变更日志和统计上传
type DeckService interface {
	// PublishDeck 发布牌组
	// 相同内容的牌组不会重复建档，直接返回已有牌组哈希
	PublishDeck(deck map[string]any, creatorID uint) (*PublishResult, error)

	// GetDeckByHash 根据牌组哈希查询牌组
	GetDeckByHash(deckHash string) (*database.Deck, error)

	// GetDeckTimestamp 查询牌组的最后更新时间
	GetDeckTimestamp(deckHash string) (time.Time, error)

	// PullChanges 增量拉取
	// 只返回服务器时间戳严格新于客户端时间戳的牌组
	PullChanges(since map[string]float64) ([]Update, error)

	// ReplaceDeckPayload 替换牌组内容并更新时间戳
	// 供建议采纳和维护者覆盖调用
	ReplaceDeckPayload(deckHash string, deck map[string]any) error

	// Subscribe 订阅牌组，重复订阅不报错也不重复计数
	Subscribe(deckHash, userHash string) error

	// Unsubscribe 取消订阅
	Unsubscribe(deckHash, userHash string) error

	// SubmitChangelog 追加牌组变更日志
	SubmitChangelog(deckHash, message string, authorID uint) error

	// SaveStats 保存复习统计，同一(牌组,用户)只保留最新一份
	SaveStats(stats *Stats) error

	// ListDecks 分页获取牌组列表
	ListDecks(page, pageSize int) ([]database.Deck, int64, error)

	// SearchDecks 根据名称搜索牌组
	SearchDecks(query string, page, pageSize int) ([]database.Deck, int64, error)
}

// deckService 牌组服务实现
type deckService struct {
	db *gorm.DB // 数据库连接实例
}

// NewDeckService 创建牌组服务实例
// 参数:
//   - db: GORM数据库连接实例
// 返回:
//   - DeckService: 牌组服务接口实现
func NewDeckService(db *gorm.DB) DeckService {
	return &deckService{db: db}
}

// PublishDeck 发布牌组
// 以规范化JSON的SHA256作为内容哈希去重；新牌组分配人类可读的订阅键
func (s *deckService) PublishDeck(deck map[string]any, creatorID uint) (*PublishResult, error) {
	if len(deck) == 0 {
		return nil, apperrors.NewByCode(apperrors.ErrDeckEmptyPayload)
	}

	// json.Marshal对map键做排序，可作为规范化形式参与哈希
	canonical, err := json.Marshal(deck)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDeckCreateFailed, err)
	}
	contentHash := keygen.ContentHash(canonical)

	// 内容去重：相同内容直接返回已有牌组哈希
	var existing database.Deck
	err = s.db.Where("content_hash = ?", contentHash).First(&existing).Error
	if err == nil {
		logger.Infof("[牌组服务] 发布内容与已有牌组重复, 返回已有哈希: %s", existing.DeckHash)
		return &PublishResult{DeckHash: existing.DeckHash, Created: false}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	compressed, err := payload.Compress(canonical)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrDeckCreateFailed, err)
	}

	name := deckName(deck)
	record := &database.Deck{
		DeckHash:    keygen.NewDeckHash(),
		Name:        name,
		ContentHash: contentHash,
		Payload:     compressed,
		CreatorID:   creatorID,
	}
	if err := s.db.Create(record).Error; err != nil {
		logger.Errorf("[牌组服务] 创建牌组失败: %s, 错误: %v", name, err)
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseInsert, err)
	}

	logger.Infof("[牌组服务] 发布新牌组: %s (哈希: %s)", name, record.DeckHash)
	return &PublishResult{DeckHash: record.DeckHash, Created: true}, nil
}

// GetDeckByHash 根据牌组哈希查询牌组
func (s *deckService) GetDeckByHash(deckHash string) (*database.Deck, error) {
	var deck database.Deck
	if err := s.db.Where("deck_hash = ?", deckHash).First(&deck).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrDeckNotFound)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}
	return &deck, nil
}

// GetDeckTimestamp 查询牌组的最后更新时间
func (s *deckService) GetDeckTimestamp(deckHash string) (time.Time, error) {
	deck, err := s.GetDeckByHash(deckHash)
	if err != nil {
		return time.Time{}, err
	}
	return deck.UpdatedAt, nil
}

// PullChanges 增量拉取
// 客户端提交各订阅牌组的本地时间戳，只返回严格新于该时间戳的牌组
// 未知的牌组哈希直接跳过，不视为错误
func (s *deckService) PullChanges(since map[string]float64) ([]Update, error) {
	updates := make([]Update, 0, len(since))

	for deckHash, clientTS := range since {
		var deck database.Deck
		if err := s.db.Where("deck_hash = ?", deckHash).First(&deck).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
		}

		// 只下发严格更新的牌组
		clientTime := time.Unix(int64(clientTS), int64((clientTS-float64(int64(clientTS)))*1e9))
		if !deck.UpdatedAt.After(clientTime) {
			continue
		}

		raw, err := payload.Decompress(deck.Payload)
		if err != nil {
			logger.Errorf("[牌组服务] 解压牌组内容失败: %s, 错误: %v", deckHash, err)
			return nil, apperrors.WrapByCode(apperrors.ErrInternalServer, err)
		}

		updates = append(updates, Update{
			DeckHash:     deckHash,
			Deck:         json.RawMessage(raw),
			Changelog:    s.changelogSince(deckHash, clientTime),
			OptionalTags: []string{},
			GDrive:       map[string]any{},
		})
	}

	return updates, nil
}

// ReplaceDeckPayload 替换牌组内容
// 重新计算内容哈希并压缩存储，UpdatedAt随之更新以触发订阅端拉取
func (s *deckService) ReplaceDeckPayload(deckHash string, deck map[string]any) error {
	if len(deck) == 0 {
		return apperrors.NewByCode(apperrors.ErrDeckEmptyPayload)
	}

	canonical, err := json.Marshal(deck)
	if err != nil {
		return apperrors.WrapByCode(apperrors.ErrDeckUpdateFailed, err)
	}
	compressed, err := payload.Compress(canonical)
	if err != nil {
		return apperrors.WrapByCode(apperrors.ErrDeckUpdateFailed, err)
	}

	result := s.db.Model(&database.Deck{}).Where("deck_hash = ?", deckHash).
		Updates(map[string]any{
			"content_hash": keygen.ContentHash(canonical),
			"payload":      compressed,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		logger.Errorf("[牌组服务] 更新牌组内容失败: %s, 错误: %v", deckHash, result.Error)
		return apperrors.WrapByCode(apperrors.ErrDatabaseUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewByCode(apperrors.ErrDeckNotFound)
	}

	logger.Infof("[牌组服务] 牌组内容已更新: %s", deckHash)
	return nil
}

// Subscribe 订阅牌组
// 订阅行创建与订阅计数更新在同一事务内完成
func (s *deckService) Subscribe(deckHash, userHash string) error {
	deck, err := s.GetDeckByHash(deckHash)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		tx.Model(&database.Subscription{}).
			Where("deck_hash = ? AND user_hash = ?", deckHash, userHash).Count(&count)
		if count > 0 {
			// 重复订阅按幂等处理
			return nil
		}

		sub := database.Subscription{DeckHash: deckHash, UserHash: userHash}
		if err := tx.Create(&sub).Error; err != nil {
			return apperrors.WrapByCode(apperrors.ErrSubscriptionFailed, err)
		}

		if err := tx.Model(&database.Deck{}).Where("id = ?", deck.ID).
			UpdateColumn("subscriber_count", gorm.Expr("subscriber_count + ?", 1)).Error; err != nil {
			return apperrors.WrapByCode(apperrors.ErrSubscriptionFailed, err)
		}
		return nil
	})
}

// Unsubscribe 取消订阅
func (s *deckService) Unsubscribe(deckHash, userHash string) error {
	deck, err := s.GetDeckByHash(deckHash)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("deck_hash = ? AND user_hash = ?", deckHash, userHash).
			Delete(&database.Subscription{})
		if result.Error != nil {
			return apperrors.WrapByCode(apperrors.ErrSubscriptionFailed, result.Error)
		}
		if result.RowsAffected == 0 {
			// 未订阅时取消按幂等处理
			return nil
		}

		if err := tx.Model(&database.Deck{}).Where("id = ? AND subscriber_count > 0", deck.ID).
			UpdateColumn("subscriber_count", gorm.Expr("subscriber_count - ?", 1)).Error; err != nil {
			return apperrors.WrapByCode(apperrors.ErrSubscriptionFailed, err)
		}
		return nil
	})
}

// SubmitChangelog 追加牌组变更日志
func (s *deckService) SubmitChangelog(deckHash, message string, authorID uint) error {
	if message == "" {
		return apperrors.ErrInvalidParameters
	}
	if _, err := s.GetDeckByHash(deckHash); err != nil {
		return err
	}

	entry := database.ChangelogEntry{
		DeckHash: deckHash,
		Message:  message,
		AuthorID: authorID,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		logger.Errorf("[牌组服务] 创建变更日志失败: %s, 错误: %v", deckHash, err)
		return apperrors.WrapByCode(apperrors.ErrDatabaseInsert, err)
	}

	logger.Infof("[牌组服务] 牌组变更日志已记录: %s", deckHash)
	return nil
}

// SaveStats 保存复习统计
// 同一(牌组,用户)覆盖旧记录
func (s *deckService) SaveStats(stats *Stats) error {
	if stats.DeckHash == "" || stats.UserHash == "" {
		return apperrors.ErrInvalidParameters
	}
	if _, err := s.GetDeckByHash(stats.DeckHash); err != nil {
		return err
	}

	var entries []json.RawMessage
	if len(stats.ReviewHistory) > 0 {
		// 条数统计失败不阻塞保存
		_ = json.Unmarshal(stats.ReviewHistory, &entries)
	}

	compressed, err := payload.Compress(stats.ReviewHistory)
	if err != nil {
		return apperrors.WrapByCode(apperrors.ErrInternalServer, err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing database.DeckStat
		err := tx.Where("deck_hash = ? AND user_hash = ?", stats.DeckHash, stats.UserHash).
			First(&existing).Error
		if err == nil {
			existing.ReviewHistory = compressed
			existing.EntryCount = int64(len(entries))
			return tx.Save(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		record := database.DeckStat{
			DeckHash:      stats.DeckHash,
			UserHash:      stats.UserHash,
			ReviewHistory: compressed,
			EntryCount:    int64(len(entries)),
		}
		return tx.Create(&record).Error
	})
}

// ListDecks 分页获取牌组列表
func (s *deckService) ListDecks(page, pageSize int) ([]database.Deck, int64, error) {
	var decks []database.Deck
	var total int64

	if err := s.db.Model(&database.Deck{}).Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	offset := (page - 1) * pageSize
	if err := s.db.Order("created_at DESC").Offset(offset).Limit(pageSize).
		Omit("payload").Find(&decks).Error; err != nil {
		return nil, 0, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	return decks, total, nil
}

// SearchDecks 根据名称搜索牌组
func (s *deckService) SearchDecks(query string, page, pageSize int) ([]database.Deck, int64, error) {
	var decks []database.Deck
	var total int64

	pattern := "%" + query + "%"
	base := s.db.Model(&database.Deck{}).Where("name LIKE ?", pattern)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	offset := (page - 1) * pageSize
	if err := base.Order("created_at DESC").Offset(offset).Limit(pageSize).
		Omit("payload").Find(&decks).Error; err != nil {
		return nil, 0, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	return decks, total, nil
}

// changelogSince 汇总指定时间之后的变更日志文本
func (s *deckService) changelogSince(deckHash string, after time.Time) string {
	var entries []database.ChangelogEntry
	if err := s.db.Where("deck_hash = ? AND created_at > ?", deckHash, after).
		Order("created_at ASC").Find(&entries).Error; err != nil {
		logger.Warnf("[牌组服务] 查询变更日志失败: %s, 错误: %v", deckHash, err)
		return ""
	}

	var sb []byte
	for i, entry := range entries {
		if i > 0 {
			sb = append(sb, '\n')
		}
		sb = append(sb, entry.Message...)
	}
	return string(sb)
}

// deckName 从牌组内容中提取名称
func deckName(deck map[string]any) string {
	if name, ok := deck["name"].(string); ok && name != "" {
		return name
	}
	return "untitled deck"
}
