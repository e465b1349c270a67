package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/response"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
	mediaservice "github.com/ankicollab/collab-server/internal/service/media"
)

// MediaHandler 媒体处理器
// 同步端点的访问令牌在消息体内，按请求体完成认证
type MediaHandler struct {
	mediaService   mediaservice.MediaService
	cleanupService mediaservice.CleanupService
	authService    authservice.AuthService
}

// NewMediaHandler 创建媒体处理器实例
func NewMediaHandler(mediaService mediaservice.MediaService, cleanupService mediaservice.CleanupService,
	authService authservice.AuthService) *MediaHandler {
	return &MediaHandler{
		mediaService:   mediaService,
		cleanupService: cleanupService,
		authService:    authService,
	}
}

// bulkCheckRequest 批量登记请求体
type bulkCheckRequest struct {
	Token           string                   `json:"token" binding:"required"`
	DeckHash        string                   `json:"deck_hash" binding:"required"`
	Files           []mediaservice.CheckFile `json:"files" binding:"required"`
	BulkOperationID string                   `json:"bulk_operation_id"`
}

// bulkConfirmRequest 批量确认请求体
// 批次ID本身是不可猜测的一次性凭据，无需额外令牌
type bulkConfirmRequest struct {
	BatchID         string   `json:"batch_id" binding:"required"`
	ConfirmedFiles  []string `json:"confirmed_files"`
	BulkOperationID string   `json:"bulk_operation_id"`
}

// manifestRequest 下载清单请求体
type manifestRequest struct {
	UserToken string   `json:"user_token" binding:"required"`
	DeckHash  string   `json:"deck_hash" binding:"required"`
	Filenames []string `json:"filenames"`
}

// authenticate 按消息体内的令牌完成认证，失败时返回nil并写出401
func (h *MediaHandler) authenticate(c *gin.Context, token string) *database.User {
	user, err := h.authService.ValidateToken(token)
	if err != nil {
		c.JSON(401, gin.H{"error": "invalid or expired token"})
		return nil
	}
	return user
}

// BulkCheck 批量登记媒体文件
// @Summary 批量登记媒体文件
// @Description 校验并登记牌组的媒体文件，已有文件直接挂接，缺失文件返回预签名上传URL
// @Tags 媒体同步
// @Accept json
// @Produce json
// @Param request body bulkCheckRequest true "牌组哈希与文件列表"
// @Success 200 {object} map[string]interface{} "登记结果"
// @Failure 400 {object} map[string]interface{} "请求参数错误或批次超限"
// @Router /media/check/bulk [post]
func (h *MediaHandler) BulkCheck(c *gin.Context) {
	var req bulkCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	user := h.authenticate(c, req.Token)
	if user == nil {
		return
	}

	result, err := h.mediaService.BulkCheck(req.DeckHash, user.ID, req.Files)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message, "code": int(appErr.Code)})
		} else {
			c.JSON(500, gin.H{"error": "failed to check media files"})
		}
		return
	}

	c.JSON(200, result)
}

// BulkConfirm 批量确认上传
// @Summary 批量确认上传
// @Description 核对批次内文件在对象存储中的实际状态，确认后挂接牌组引用
// @Tags 媒体同步
// @Accept json
// @Produce json
// @Param request body bulkConfirmRequest true "批次ID"
// @Success 200 {object} map[string]interface{} "确认结果"
// @Failure 400 {object} map[string]interface{} "批次不存在或已关闭"
// @Router /media/confirm/bulk [post]
func (h *MediaHandler) BulkConfirm(c *gin.Context) {
	var req bulkConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.mediaService.BulkConfirm(req.BatchID, req.ConfirmedFiles)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message, "code": int(appErr.Code)})
		} else {
			c.JSON(500, gin.H{"error": "failed to confirm media batch"})
		}
		return
	}

	c.JSON(200, result)
}

// Manifest 获取下载清单
// @Summary 获取下载清单
// @Description 按文件名返回牌组媒体的限时下载URL
// @Tags 媒体同步
// @Accept json
// @Produce json
// @Param request body manifestRequest true "牌组哈希与文件名列表"
// @Success 200 {object} map[string]interface{} "下载清单"
// @Failure 400 {object} map[string]interface{} "请求参数错误"
// @Router /media/manifest [post]
func (h *MediaHandler) Manifest(c *gin.Context) {
	var req manifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	if h.authenticate(c, req.UserToken) == nil {
		return
	}

	entries, err := h.mediaService.Manifest(req.DeckHash, req.Filenames)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message, "code": int(appErr.Code)})
		} else {
			c.JSON(500, gin.H{"error": "failed to build media manifest"})
		}
		return
	}

	c.JSON(200, gin.H{"files": entries})
}

// ProxyUpload 中转上传
// @Summary 中转上传媒体文件
// @Description 存储后端不支持预签名直传时，客户端将文件内容PUT到本端点由服务中转写入
// @Tags 媒体同步
// @Accept octet-stream
// @Produce json
// @Param batch path string true "上传批次ID"
// @Param hash path string true "文件内容SHA256"
// @Success 200 {object} map[string]interface{} "上传成功"
// @Failure 400 {object} map[string]interface{} "哈希不匹配或批次无效"
// @Router /media/upload/{batch}/{hash} [put]
func (h *MediaHandler) ProxyUpload(c *gin.Context) {
	batchID := c.Param("batch")
	contentHash := c.Param("hash")

	if err := h.mediaService.ProxyUpload(batchID, contentHash, c.Request.Body); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			c.JSON(400, gin.H{"error": appErr.Message, "code": int(appErr.Code)})
		} else {
			c.JSON(500, gin.H{"error": "failed to store uploaded file"})
		}
		return
	}

	c.JSON(200, gin.H{"status": "ok"})
}

// GetMediaStats 获取媒体统计
// @Summary 获取媒体统计
// @Description 返回媒体文件总量、总大小、引用总数和孤儿文件数
// @Tags 媒体管理
// @Produce json
// @Success 200 {object} map[string]interface{} "统计信息"
// @Router /media/stats [get]
func (h *MediaHandler) GetMediaStats(c *gin.Context) {
	stats, err := h.mediaService.GetMediaStats()
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "获取媒体统计失败")
		}
		return
	}

	response.Success(c, stats)
}

// TriggerCleanup 手动触发清理扫描
// @Summary 手动触发清理扫描
// @Description 立即执行一轮孤儿媒体扫描、批次过期和令牌清理
// @Tags 媒体管理
// @Produce json
// @Success 200 {object} map[string]interface{} "触发成功"
// @Failure 500 {object} map[string]interface{} "清理服务未运行"
// @Router /media/cleanup [post]
func (h *MediaHandler) TriggerCleanup(c *gin.Context) {
	if err := h.cleanupService.TriggerScan(); err != nil {
		response.InternalServerError(c, "清理服务未运行")
		return
	}

	response.SuccessWithMessage(c, "清理扫描已触发", nil)
}
