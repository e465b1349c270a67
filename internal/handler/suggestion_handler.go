package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/middleware"
	"github.com/ankicollab/collab-server/internal/payload"
	"github.com/ankicollab/collab-server/internal/response"
	suggestionservice "github.com/ankicollab/collab-server/internal/service/suggestion"
)

// SuggestionHandler 建议处理器
type SuggestionHandler struct {
	suggestionService suggestionservice.SuggestionService
}

// NewSuggestionHandler 创建建议处理器实例
func NewSuggestionHandler(suggestionService suggestionservice.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{
		suggestionService: suggestionService,
	}
}

// SubmitCard 提交卡片建议
// @Summary 提交卡片建议
// @Description 接收base64+gzip压缩的修改建议；维护者带force_overwrite时直接写入牌组
// @Tags 建议管理
// @Accept plain
// @Produce json
// @Param payload body string true "base64(gzip(json))编码的建议内容"
// @Success 200 {object} map[string]interface{} "提交结果"
// @Failure 403 {object} map[string]interface{} "覆盖模式但非维护者"
// @Router /submitCard [post]
func (h *SuggestionHandler) SubmitCard(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(400, gin.H{"status": 0, "message": "failed to read request body"})
		return
	}

	var req suggestionservice.SubmitRequest
	if err := payload.Decode(body, &req); err != nil {
		c.JSON(400, gin.H{"status": 0, "message": "failed to decode suggestion payload"})
		return
	}

	result, err := h.suggestionService.Submit(&req)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			status := 400
			if appErr.Code == errors.ErrNotMaintainer {
				status = 403
			}
			c.JSON(status, gin.H{"status": 0, "message": appErr.Message})
		} else {
			c.JSON(500, gin.H{"status": 0, "message": "failed to submit suggestion"})
		}
		return
	}

	if result.Applied {
		c.JSON(200, gin.H{"status": 1, "message": "applied"})
		return
	}
	c.JSON(200, gin.H{"status": 1, "message": result.SuggestionID})
}

// ListSuggestions 获取建议列表
// @Summary 获取建议列表
// @Description 分页查询指定牌组的建议，可按状态过滤
// @Tags 建议管理
// @Produce json
// @Param hash path string true "牌组哈希"
// @Param status query string false "状态过滤：pending、approved、denied"
// @Param page query int false "页码，默认1"
// @Param page_size query int false "每页数量，默认20"
// @Success 200 {object} map[string]interface{} "获取成功"
// @Router /decks/{hash}/suggestions [get]
func (h *SuggestionHandler) ListSuggestions(c *gin.Context) {
	deckHash := c.Param("hash")
	status := c.Query("status")
	page, pageSize := parsePagination(c)

	suggestions, total, err := h.suggestionService.ListSuggestions(deckHash, status, page, pageSize)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "获取建议列表失败")
		}
		return
	}

	response.SuccessWithPage(c, suggestions, total, page, pageSize)
}

// GetSuggestion 获取建议详情
// @Summary 获取建议详情
// @Description 根据建议ID查询建议的完整信息
// @Tags 建议管理
// @Produce json
// @Param id path string true "建议ID"
// @Success 200 {object} map[string]interface{} "获取成功"
// @Failure 404 {object} map[string]interface{} "建议不存在"
// @Router /suggestions/{id} [get]
func (h *SuggestionHandler) GetSuggestion(c *gin.Context) {
	suggestionID := c.Param("id")

	suggestion, err := h.suggestionService.GetSuggestion(suggestionID)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.NotFound(c, "建议不存在")
		}
		return
	}

	response.Success(c, gin.H{
		"suggestion": suggestion,
	})
}

// ApproveSuggestion 采纳建议
// @Summary 采纳建议
// @Description 将建议内容写入牌组并关闭建议，仅待评审状态可操作
// @Tags 建议管理
// @Produce json
// @Param id path string true "建议ID"
// @Success 200 {object} map[string]interface{} "采纳成功"
// @Failure 400 {object} map[string]interface{} "建议已处理"
// @Router /suggestions/{id}/approve [post]
func (h *SuggestionHandler) ApproveSuggestion(c *gin.Context) {
	suggestionID := c.Param("id")

	var reviewerID uint
	if user := middleware.CurrentUser(c); user != nil {
		reviewerID = user.ID
	}

	if err := h.suggestionService.Approve(suggestionID, reviewerID); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "采纳建议失败")
		}
		return
	}

	response.SuccessWithMessage(c, "建议已采纳", nil)
}

// DenySuggestion 驳回建议
// @Summary 驳回建议
// @Description 关闭建议且不改动牌组内容，仅待评审状态可操作
// @Tags 建议管理
// @Produce json
// @Param id path string true "建议ID"
// @Success 200 {object} map[string]interface{} "驳回成功"
// @Failure 400 {object} map[string]interface{} "建议已处理"
// @Router /suggestions/{id}/deny [post]
func (h *SuggestionHandler) DenySuggestion(c *gin.Context) {
	suggestionID := c.Param("id")

	var reviewerID uint
	if user := middleware.CurrentUser(c); user != nil {
		reviewerID = user.ID
	}

	if err := h.suggestionService.Deny(suggestionID, reviewerID); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "驳回建议失败")
		}
		return
	}

	response.SuccessWithMessage(c, "建议已驳回", nil)
}
