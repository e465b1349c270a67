package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/payload"
	"github.com/ankicollab/collab-server/internal/response"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
	deckservice "github.com/ankicollab/collab-server/internal/service/deck"
)

// DeckHandler 牌组处理器
// 同步端点按插件协议收发base64(gzip(json))消息体，管理端点使用统一响应格式
type DeckHandler struct {
	deckService deckservice.DeckService
	authService authservice.AuthService
}

// NewDeckHandler 创建牌组处理器实例
func NewDeckHandler(deckService deckservice.DeckService, authService authservice.AuthService) *DeckHandler {
	return &DeckHandler{
		deckService: deckService,
		authService: authService,
	}
}

// createDeckPayload 发布牌组的消息体
// deck字段是客户端二次序列化后的JSON字符串，解码后再反序列化
type createDeckPayload struct {
	Deck     string `json:"deck"`
	Username string `json:"username"`
}

// pullDeckState 客户端为每个订阅牌组上报的本地状态
// 时间戳为 "2006-01-02 15:04:05" 格式的UTC字符串，其余字段忽略
type pullDeckState struct {
	Timestamp string `json:"timestamp"`
}

// pullTimestampLayout 客户端本地时间戳的格式
const pullTimestampLayout = "2006-01-02 15:04:05"

// subscriptionRequest 订阅操作请求体
type subscriptionRequest struct {
	DeckHash string `json:"deck_hash" binding:"required"`
	UserHash string `json:"user_hash" binding:"required"`
}

// changelogRequest 变更日志提交请求体
type changelogRequest struct {
	DeckHash  string `json:"deck_hash" binding:"required"`
	Changelog string `json:"changelog" binding:"required"`
	Token     string `json:"token" binding:"required"`
}

// statsPayload 复习统计上传的消息体
type statsPayload struct {
	UserHash      string      `json:"user_hash"`
	DeckHash      string      `json:"deck_hash"`
	ReviewHistory interface{} `json:"review_history"`
}

// CreateDeck 发布牌组
// @Summary 发布牌组
// @Description 接收base64+gzip压缩的牌组内容并建档，相同内容直接返回已有牌组哈希
// @Tags 牌组同步
// @Accept plain
// @Produce json
// @Param payload body string true "base64(gzip(json))编码的牌组内容"
// @Success 200 {object} map[string]interface{} "status为1时message为牌组哈希"
// @Router /createDeck [post]
func (h *DeckHandler) CreateDeck(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(400, gin.H{"status": 0, "message": "failed to read request body"})
		return
	}

	var req createDeckPayload
	if err := payload.Decode(body, &req); err != nil {
		c.JSON(400, gin.H{"status": 0, "message": "failed to decode deck payload"})
		return
	}

	var deck map[string]interface{}
	if err := json.Unmarshal([]byte(req.Deck), &deck); err != nil {
		c.JSON(400, gin.H{"status": 0, "message": "failed to parse deck content"})
		return
	}

	user, err := h.authService.GetUserByUsername(req.Username)
	if err != nil {
		c.JSON(401, gin.H{"status": 0, "message": "unknown user"})
		return
	}

	result, err := h.deckService.PublishDeck(deck, user.ID)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"status": 0, "message": appErr.Message})
		} else {
			c.JSON(500, gin.H{"status": 0, "message": "failed to publish deck"})
		}
		return
	}

	c.JSON(200, gin.H{"status": 1, "message": result.DeckHash})
}

// GetDeckTimestamp 查询牌组时间戳
// @Summary 查询牌组时间戳
// @Description 返回牌组最后更新时间的Unix秒数，纯文本格式
// @Tags 牌组同步
// @Produce plain
// @Param hash path string true "牌组哈希"
// @Success 200 {string} string "Unix时间戳（秒，含小数）"
// @Failure 404 {string} string "牌组不存在"
// @Router /GetDeckTimestamp/{hash} [get]
func (h *DeckHandler) GetDeckTimestamp(c *gin.Context) {
	deckHash := c.Param("hash")

	ts, err := h.deckService.GetDeckTimestamp(deckHash)
	if err != nil {
		c.String(404, "0")
		return
	}

	c.String(200, fmt.Sprintf("%.6f", float64(ts.UnixNano())/1e9))
}

// PullChanges 增量拉取牌组更新
// @Summary 增量拉取牌组更新
// @Description 客户端提交各订阅牌组的本地时间戳，返回严格更新的牌组内容（base64+gzip压缩）
// @Tags 牌组同步
// @Accept json
// @Produce plain
// @Param subscriptions body map[string]pullDeckState true "牌组哈希到本地订阅状态的映射"
// @Success 200 {string} string "base64(gzip(json))编码的更新列表"
// @Router /pullChanges [post]
func (h *DeckHandler) PullChanges(c *gin.Context) {
	var req map[string]pullDeckState
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	since := make(map[string]float64, len(req))
	for deckHash, state := range req {
		ts, err := time.Parse(pullTimestampLayout, state.Timestamp)
		if err != nil {
			// 时间戳缺失或不可解析时按从未同步处理，下发全部内容
			since[deckHash] = 0
			continue
		}
		since[deckHash] = float64(ts.Unix())
	}

	updates, err := h.deckService.PullChanges(since)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to collect deck updates"})
		return
	}

	encoded, err := payload.Encode(updates)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to encode deck updates"})
		return
	}

	c.String(200, encoded)
}

// AddSubscription 订阅牌组
// @Summary 订阅牌组
// @Description 将用户哈希登记为牌组订阅者，重复订阅按幂等处理
// @Tags 牌组同步
// @Accept json
// @Produce json
// @Param request body subscriptionRequest true "牌组哈希与用户哈希"
// @Success 200 {object} map[string]interface{} "订阅成功"
// @Router /AddSubscription [post]
func (h *DeckHandler) AddSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.deckService.Subscribe(req.DeckHash, req.UserHash); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message})
		} else {
			c.JSON(500, gin.H{"error": "failed to add subscription"})
		}
		return
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// RemoveSubscription 取消订阅
// @Summary 取消订阅
// @Description 解除用户对牌组的订阅关系
// @Tags 牌组同步
// @Accept json
// @Produce json
// @Param request body subscriptionRequest true "牌组哈希与用户哈希"
// @Success 200 {object} map[string]interface{} "取消成功"
// @Router /RemoveSubscription [post]
func (h *DeckHandler) RemoveSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.deckService.Unsubscribe(req.DeckHash, req.UserHash); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message})
		} else {
			c.JSON(500, gin.H{"error": "failed to remove subscription"})
		}
		return
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// SubmitChangelog 提交变更日志
// @Summary 提交变更日志
// @Description 维护者为牌组追加变更说明，随下次拉取下发给订阅者
// @Tags 牌组同步
// @Accept json
// @Produce json
// @Param request body changelogRequest true "牌组哈希、变更说明与访问令牌"
// @Success 200 {object} map[string]interface{} "提交成功"
// @Failure 403 {object} map[string]interface{} "非牌组维护者"
// @Router /submitChangelog [post]
func (h *DeckHandler) SubmitChangelog(c *gin.Context) {
	var req changelogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	isMaintainer, err := h.authService.IsMaintainer(req.Token, req.DeckHash)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to verify maintainer"})
		return
	}
	if !isMaintainer {
		c.JSON(403, gin.H{"error": "only the deck maintainer can submit changelogs"})
		return
	}

	user, err := h.authService.ValidateToken(req.Token)
	if err != nil {
		c.JSON(401, gin.H{"error": "invalid token"})
		return
	}

	if err := h.deckService.SubmitChangelog(req.DeckHash, req.Changelog, user.ID); err != nil {
		c.JSON(500, gin.H{"error": "failed to submit changelog"})
		return
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// UploadDeckStats 上传复习统计
// @Summary 上传复习统计
// @Description 接收base64+gzip压缩的复习历史，同一(牌组,用户)只保留最新一份
// @Tags 牌组同步
// @Accept plain
// @Produce json
// @Param payload body string true "base64(gzip(json))编码的统计数据"
// @Success 200 {object} map[string]interface{} "上传成功"
// @Router /UploadDeckStats [post]
func (h *DeckHandler) UploadDeckStats(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(400, gin.H{"error": "failed to read request body"})
		return
	}

	var req statsPayload
	if err := payload.Decode(body, &req); err != nil {
		c.JSON(400, gin.H{"error": "failed to decode stats payload"})
		return
	}

	history, err := jsonRaw(req.ReviewHistory)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid review history"})
		return
	}

	stats := &deckservice.Stats{
		UserHash:      req.UserHash,
		DeckHash:      req.DeckHash,
		ReviewHistory: history,
	}
	if err := h.deckService.SaveStats(stats); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message})
		} else {
			c.JSON(500, gin.H{"error": "failed to save deck stats"})
		}
		return
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// ListDecks 获取牌组列表
// @Summary 获取牌组列表
// @Description 分页获取已发布的牌组，按创建时间倒序排列
// @Tags 牌组管理
// @Produce json
// @Param page query int false "页码，默认1"
// @Param page_size query int false "每页数量，默认20"
// @Success 200 {object} map[string]interface{} "获取成功"
// @Router /decks [get]
func (h *DeckHandler) ListDecks(c *gin.Context) {
	page, pageSize := parsePagination(c)

	decks, total, err := h.deckService.ListDecks(page, pageSize)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "获取牌组列表失败")
		}
		return
	}

	response.SuccessWithPage(c, decks, total, page, pageSize)
}

// SearchDecks 搜索牌组
// @Summary 搜索牌组
// @Description 根据名称关键词模糊搜索牌组，支持分页
// @Tags 牌组管理
// @Produce json
// @Param q query string true "搜索关键词"
// @Param page query int false "页码，默认1"
// @Param page_size query int false "每页数量，默认20"
// @Success 200 {object} map[string]interface{} "搜索成功"
// @Router /decks/search [get]
func (h *DeckHandler) SearchDecks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.BadRequest(c, "搜索关键词不能为空")
		return
	}
	page, pageSize := parsePagination(c)

	decks, total, err := h.deckService.SearchDecks(query, page, pageSize)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "搜索牌组失败")
		}
		return
	}

	response.SuccessWithPage(c, decks, total, page, pageSize)
}

// GetDeck 获取牌组详情
// @Summary 获取牌组详情
// @Description 根据牌组哈希获取牌组元信息
// @Tags 牌组管理
// @Produce json
// @Param hash path string true "牌组哈希"
// @Success 200 {object} map[string]interface{} "获取成功"
// @Failure 404 {object} map[string]interface{} "牌组不存在"
// @Router /decks/{hash} [get]
func (h *DeckHandler) GetDeck(c *gin.Context) {
	deckHash := c.Param("hash")

	deck, err := h.deckService.GetDeckByHash(deckHash)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.NotFound(c, "牌组不存在")
		}
		return
	}

	response.Success(c, gin.H{
		"deck": deck,
	})
}

// jsonRaw 将任意解码值重新序列化为原始JSON
func jsonRaw(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// parsePagination 解析分页参数
func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
