// Package suggestion 提供卡片修改建议的提交与评审服务
// 订阅者的修改以建议形式提交，维护者采纳前不会改动牌组内容
package suggestion

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/internal/database"
	apperrors "github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/logger"
	"github.com/ankicollab/collab-server/internal/payload"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
	deckservice "github.com/ankicollab/collab-server/internal/service/deck"
)

// SubmitRequest 建议提交请求
// 字段名与客户端消息体保持一致：牌组哈希在remote_deck字段，
// deck字段是客户端二次序列化后的JSON字符串
type SubmitRequest struct {
	DeckHash       string `json:"remote_deck"`     // 目标牌组哈希
	DeckPath       string `json:"deck_path"`       // 客户端侧的牌组路径
	NewName        string `json:"new_name"`        // 建议的新名称（重命名建议时使用）
	Deck           string `json:"deck"`            // 建议的牌组内容，JSON字符串
	Rationale      int    `json:"rationale"`       // 建议类型编号
	CommitText     string `json:"commit_text"`     // 建议说明
	SubmitterHash  string `json:"submitter_hash"`  // 提交者的匿名用户哈希
	Token          string `json:"token"`           // 提交者的访问令牌，覆盖模式下校验维护者身份
	ForceOverwrite bool   `json:"force_overwrite"` // 维护者直接覆盖，跳过评审
}

// SubmitResult 建议提交结果
type SubmitResult struct {
	SuggestionID string `json:"suggestion_id"` // 建议ID，直接覆盖时为空
	Applied      bool   `json:"applied"`       // true表示已直接写入牌组
}

// SuggestionService 建议服务接口
// 定义建议的提交、查询和评审操作
type SuggestionService interface {
	// Submit 提交建议
	// 维护者带force_overwrite时直接写入牌组，其余进入待评审队列
	Submit(req *SubmitRequest) (*SubmitResult, error)

	// GetSuggestion 根据建议ID查询建议
	GetSuggestion(suggestionID string) (*database.Suggestion, error)

	// ListSuggestions 分页查询牌组的建议，status为空时返回全部
	ListSuggestions(deckHash, status string, page, pageSize int) ([]database.Suggestion, int64, error)

	// Approve 采纳建议，将建议内容写入牌组
	Approve(suggestionID string, reviewerID uint) error

	// Deny 驳回建议，牌组内容保持不变
	Deny(suggestionID string, reviewerID uint) error
}

// suggestionService 建议服务实现
type suggestionService struct {
	db          *gorm.DB                // 数据库连接实例
	deckService deckservice.DeckService // 牌组服务，负责内容写入
	authService authservice.AuthService // 认证服务，负责维护者校验
}

// NewSuggestionService 创建建议服务实例
// 参数:
//   - db: GORM数据库连接实例
//   - deckService: 牌组服务实例
//   - authService: 认证服务实例
// 返回:
//   - SuggestionService: 建议服务接口实现
func NewSuggestionService(db *gorm.DB, deckService deckservice.DeckService,
	authService authservice.AuthService) SuggestionService {
	return &suggestionService{
		db:          db,
		deckService: deckService,
		authService: authService,
	}
}

// Submit 提交建议
func (s *suggestionService) Submit(req *SubmitRequest) (*SubmitResult, error) {
	if req.DeckHash == "" || req.Deck == "" {
		return nil, apperrors.NewByCode(apperrors.ErrSuggestionInvalid)
	}

	var deck map[string]any
	if err := json.Unmarshal([]byte(req.Deck), &deck); err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrSuggestionInvalid, err)
	}
	if len(deck) == 0 {
		return nil, apperrors.NewByCode(apperrors.ErrSuggestionInvalid)
	}

	if _, err := s.deckService.GetDeckByHash(req.DeckHash); err != nil {
		return nil, err
	}

	// 维护者覆盖模式：跳过评审直接写入
	if req.ForceOverwrite {
		isMaintainer, err := s.authService.IsMaintainer(req.Token, req.DeckHash)
		if err != nil {
			return nil, err
		}
		if !isMaintainer {
			return nil, apperrors.NewByCode(apperrors.ErrNotMaintainer)
		}
		return s.applyOverwrite(req, deck)
	}

	canonical, err := json.Marshal(deck)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrSuggestionSubmitFailed, err)
	}
	compressed, err := payload.Compress(canonical)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrSuggestionSubmitFailed, err)
	}

	record := &database.Suggestion{
		SuggestionID:  uuid.New().String(),
		DeckHash:      req.DeckHash,
		DeckPath:      req.DeckPath,
		NewName:       req.NewName,
		Payload:       compressed,
		Rationale:     req.Rationale,
		CommitText:    req.CommitText,
		SubmitterHash: req.SubmitterHash,
		Status:        database.SuggestionStatusPending,
	}
	if err := s.db.Create(record).Error; err != nil {
		logger.Errorf("[建议服务] 创建建议失败, 牌组: %s, 错误: %v", req.DeckHash, err)
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseInsert, err)
	}

	logger.Infof("[建议服务] 收到新建议: %s, 牌组: %s, 类型: %d",
		record.SuggestionID, req.DeckHash, req.Rationale)
	return &SubmitResult{SuggestionID: record.SuggestionID, Applied: false}, nil
}

// GetSuggestion 根据建议ID查询建议
func (s *suggestionService) GetSuggestion(suggestionID string) (*database.Suggestion, error) {
	var suggestion database.Suggestion
	if err := s.db.Where("suggestion_id = ?", suggestionID).First(&suggestion).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewByCode(apperrors.ErrSuggestionNotFound)
		}
		return nil, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}
	return &suggestion, nil
}

// ListSuggestions 分页查询牌组的建议
func (s *suggestionService) ListSuggestions(deckHash, status string, page, pageSize int) ([]database.Suggestion, int64, error) {
	var suggestions []database.Suggestion
	var total int64

	base := s.db.Model(&database.Suggestion{}).Where("deck_hash = ?", deckHash)
	if status != "" {
		base = base.Where("status = ?", status)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	offset := (page - 1) * pageSize
	if err := base.Order("created_at DESC").Offset(offset).Limit(pageSize).
		Find(&suggestions).Error; err != nil {
		return nil, 0, apperrors.WrapByCode(apperrors.ErrDatabaseQuery, err)
	}

	return suggestions, total, nil
}

// Approve 采纳建议
// 评审人必须是目标牌组的维护者；建议内容写入牌组后才标记为已采纳，
// 已处理过的建议不可重复评审
func (s *suggestionService) Approve(suggestionID string, reviewerID uint) error {
	suggestion, err := s.GetSuggestion(suggestionID)
	if err != nil {
		return err
	}
	if suggestion.Status != database.SuggestionStatusPending {
		return apperrors.NewByCode(apperrors.ErrSuggestionClosed)
	}
	if err := s.requireMaintainer(suggestion.DeckHash, reviewerID); err != nil {
		return err
	}

	raw, err := payload.Decompress(suggestion.Payload)
	if err != nil {
		logger.Errorf("[建议服务] 解压建议内容失败: %s, 错误: %v", suggestionID, err)
		return apperrors.WrapByCode(apperrors.ErrSuggestionInvalid, err)
	}
	var deck map[string]any
	if err := json.Unmarshal(raw, &deck); err != nil {
		return apperrors.WrapByCode(apperrors.ErrSuggestionInvalid, err)
	}

	if err := s.deckService.ReplaceDeckPayload(suggestion.DeckHash, deck); err != nil {
		return err
	}
	if suggestion.CommitText != "" {
		if err := s.deckService.SubmitChangelog(suggestion.DeckHash, suggestion.CommitText, reviewerID); err != nil {
			logger.Warnf("[建议服务] 记录采纳变更日志失败: %s, 错误: %v", suggestionID, err)
		}
	}

	if err := s.closeSuggestion(suggestion, database.SuggestionStatusApproved, reviewerID); err != nil {
		return err
	}

	logger.Infof("[建议服务] 建议已采纳: %s, 牌组: %s, 评审人: %d",
		suggestionID, suggestion.DeckHash, reviewerID)
	return nil
}

// Deny 驳回建议
// 评审人必须是目标牌组的维护者
func (s *suggestionService) Deny(suggestionID string, reviewerID uint) error {
	suggestion, err := s.GetSuggestion(suggestionID)
	if err != nil {
		return err
	}
	if suggestion.Status != database.SuggestionStatusPending {
		return apperrors.NewByCode(apperrors.ErrSuggestionClosed)
	}
	if err := s.requireMaintainer(suggestion.DeckHash, reviewerID); err != nil {
		return err
	}

	if err := s.closeSuggestion(suggestion, database.SuggestionStatusDenied, reviewerID); err != nil {
		return err
	}

	logger.Infof("[建议服务] 建议已驳回: %s, 牌组: %s, 评审人: %d",
		suggestionID, suggestion.DeckHash, reviewerID)
	return nil
}

// applyOverwrite 维护者覆盖模式
// 内容直接写入牌组，同时保留一条已采纳的建议记录作为审计痕迹
func (s *suggestionService) applyOverwrite(req *SubmitRequest, deck map[string]any) (*SubmitResult, error) {
	if err := s.deckService.ReplaceDeckPayload(req.DeckHash, deck); err != nil {
		return nil, err
	}

	canonical, err := json.Marshal(deck)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrSuggestionSubmitFailed, err)
	}
	compressed, err := payload.Compress(canonical)
	if err != nil {
		return nil, apperrors.WrapByCode(apperrors.ErrSuggestionSubmitFailed, err)
	}

	now := time.Now()
	record := &database.Suggestion{
		SuggestionID:  uuid.New().String(),
		DeckHash:      req.DeckHash,
		DeckPath:      req.DeckPath,
		NewName:       req.NewName,
		Payload:       compressed,
		Rationale:     database.RationaleMaintainerOverride,
		CommitText:    req.CommitText,
		SubmitterHash: req.SubmitterHash,
		Status:        database.SuggestionStatusApproved,
		ReviewedAt:    &now,
	}
	if err := s.db.Create(record).Error; err != nil {
		logger.Warnf("[建议服务] 记录覆盖审计失败, 牌组: %s, 错误: %v", req.DeckHash, err)
	}

	if req.CommitText != "" {
		if err := s.deckService.SubmitChangelog(req.DeckHash, req.CommitText, 0); err != nil {
			logger.Warnf("[建议服务] 记录覆盖变更日志失败, 牌组: %s, 错误: %v", req.DeckHash, err)
		}
	}

	logger.Infof("[建议服务] 维护者覆盖已生效, 牌组: %s", req.DeckHash)
	return &SubmitResult{Applied: true}, nil
}

// requireMaintainer 校验评审人是目标牌组的维护者
func (s *suggestionService) requireMaintainer(deckHash string, reviewerID uint) error {
	deck, err := s.deckService.GetDeckByHash(deckHash)
	if err != nil {
		return err
	}
	if deck.CreatorID != reviewerID {
		return apperrors.NewByCode(apperrors.ErrNotMaintainer)
	}
	return nil
}

// closeSuggestion 落账评审结果
func (s *suggestionService) closeSuggestion(suggestion *database.Suggestion, status string, reviewerID uint) error {
	now := time.Now()
	updates := map[string]any{
		"status":      status,
		"reviewer_id": reviewerID,
		"reviewed_at": now,
	}
	if err := s.db.Model(&database.Suggestion{}).
		Where("suggestion_id = ? AND status = ?", suggestion.SuggestionID, database.SuggestionStatusPending).
		Updates(updates).Error; err != nil {
		return apperrors.WrapByCode(apperrors.ErrDatabaseUpdate, err)
	}
	return nil
}
