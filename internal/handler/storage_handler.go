package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/errors"
	"github.com/ankicollab/collab-server/internal/response"
	storageservice "github.com/ankicollab/collab-server/internal/service/storage"
)

// StorageHandler 存储配置处理器
type StorageHandler struct {
	configService storageservice.ConfigService
}

// NewStorageHandler 创建存储配置处理器实例
func NewStorageHandler(configService storageservice.ConfigService) *StorageHandler {
	return &StorageHandler{
		configService: configService,
	}
}

// CreateStorageConfig 创建存储配置
// @Summary 创建存储配置
// @Description 创建新的对象存储配置，支持阿里云OSS、腾讯云COS、七牛云等多种云存储服务
// @Tags 存储配置管理
// @Accept json
// @Produce json
// @Param config body database.StorageConfig true "存储配置信息"
// @Success 200 {object} map[string]interface{} "创建成功"
// @Failure 400 {object} map[string]interface{} "请求参数错误"
// @Router /storage/configs [post]
func (h *StorageHandler) CreateStorageConfig(c *gin.Context) {
	var config database.StorageConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.configService.CreateConfig(&config); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.Error(c, int(errors.ErrStorageConfigInvalid), err.Error())
		}
		return
	}

	response.SuccessWithMessage(c, "存储配置创建成功", gin.H{
		"config": config,
	})
}

// GetStorageConfig 获取存储配置
// @Summary 获取单个存储配置
// @Description 根据配置ID获取指定的存储配置详细信息
// @Tags 存储配置管理
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} map[string]interface{} "获取成功"
// @Failure 400 {object} map[string]interface{} "配置ID无效"
// @Failure 404 {object} map[string]interface{} "配置不存在"
// @Router /storage/configs/{id} [get]
func (h *StorageHandler) GetStorageConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	config, err := h.configService.GetConfigByID(id)
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.NotFound(c, "存储配置不存在")
		}
		return
	}

	response.Success(c, gin.H{
		"config": config,
	})
}

// ListStorageConfigs 获取存储配置列表
// @Summary 获取所有存储配置
// @Description 获取系统中所有已配置的对象存储配置列表
// @Tags 存储配置管理
// @Produce json
// @Success 200 {object} map[string]interface{} "获取成功"
// @Failure 500 {object} map[string]interface{} "服务器内部错误"
// @Router /storage/configs [get]
func (h *StorageHandler) ListStorageConfigs(c *gin.Context) {
	configs, err := h.configService.ListConfigs()
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "获取存储配置列表失败")
		}
		return
	}

	response.Success(c, gin.H{
		"configs": configs,
		"total":   len(configs),
	})
}

// UpdateStorageConfig 更新存储配置
// @Summary 更新存储配置
// @Description 根据配置ID更新指定的存储配置信息
// @Tags 存储配置管理
// @Accept json
// @Produce json
// @Param id path int true "配置ID"
// @Param config body database.StorageConfig true "存储配置信息"
// @Success 200 {object} map[string]interface{} "更新成功"
// @Failure 400 {object} map[string]interface{} "请求参数错误"
// @Router /storage/configs/{id} [put]
func (h *StorageHandler) UpdateStorageConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	var config database.StorageConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	config.ID = id
	if err := h.configService.UpdateConfig(&config); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.Error(c, int(errors.ErrStorageConfigInvalid), err.Error())
		}
		return
	}

	response.SuccessWithMessage(c, "存储配置更新成功", gin.H{
		"config": config,
	})
}

// DeleteStorageConfig 删除存储配置
// @Summary 删除存储配置
// @Description 根据配置ID删除指定的存储配置，激活中的配置不可删除
// @Tags 存储配置管理
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} map[string]interface{} "删除成功"
// @Failure 400 {object} map[string]interface{} "配置ID无效或配置激活中"
// @Router /storage/configs/{id} [delete]
func (h *StorageHandler) DeleteStorageConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	if err := h.configService.DeleteConfig(id); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "删除存储配置失败")
		}
		return
	}

	response.SuccessWithMessage(c, "存储配置删除成功", nil)
}

// ActivateStorageConfig 激活存储配置
// @Summary 激活存储配置
// @Description 将指定配置设为当前激活配置，同时取消其他配置的激活状态
// @Tags 存储配置管理
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} map[string]interface{} "激活成功"
// @Failure 400 {object} map[string]interface{} "配置已禁用或不存在"
// @Router /storage/configs/{id}/activate [post]
func (h *StorageHandler) ActivateStorageConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	if err := h.configService.ActivateConfig(id); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "激活存储配置失败")
		}
		return
	}

	response.SuccessWithMessage(c, "存储配置激活成功", nil)
}

// TestStorageConfig 测试存储配置
// @Summary 测试存储配置连接
// @Description 使用指定配置连接对象存储并验证可用性
// @Tags 存储配置管理
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} map[string]interface{} "连接测试通过"
// @Failure 400 {object} map[string]interface{} "连接测试失败"
// @Router /storage/configs/{id}/test [post]
func (h *StorageHandler) TestStorageConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	if err := h.configService.TestConfig(id); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.Error(c, int(errors.ErrStorageConnectionFailed), err.Error())
		}
		return
	}

	response.SuccessWithMessage(c, "存储连接测试通过", nil)
}

// GetActiveStorageConfig 获取激活的存储配置
// @Summary 获取当前激活的存储配置
// @Description 返回当前正在使用的对象存储配置
// @Tags 存储配置管理
// @Produce json
// @Success 200 {object} map[string]interface{} "获取成功"
// @Failure 404 {object} map[string]interface{} "无激活配置"
// @Router /storage/configs/active [get]
func (h *StorageHandler) GetActiveStorageConfig(c *gin.Context) {
	config, err := h.configService.GetActiveConfig()
	if err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.NotFound(c, "当前没有激活的存储配置")
		}
		return
	}

	response.Success(c, gin.H{
		"config": config,
	})
}

// ToggleStorageConfig 启用/禁用存储配置
// @Summary 启用或禁用存储配置
// @Description 切换指定配置的启用状态，激活中的配置不可禁用
// @Tags 存储配置管理
// @Accept json
// @Produce json
// @Param id path int true "配置ID"
// @Param request body map[string]bool true "enabled字段表示目标状态"
// @Success 200 {object} map[string]interface{} "切换成功"
// @Failure 400 {object} map[string]interface{} "配置激活中不可禁用"
// @Router /storage/configs/{id}/toggle [put]
func (h *StorageHandler) ToggleStorageConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.configService.ToggleConfig(id, req.Enabled); err != nil {
		if appErr, ok := errors.GetAppError(err); ok {
			response.Error(c, int(appErr.Code), appErr.Message)
		} else {
			response.InternalServerError(c, "切换存储配置状态失败")
		}
		return
	}

	response.SuccessWithMessage(c, "存储配置状态切换成功", nil)
}

// parseConfigID 解析路径中的配置ID
func parseConfigID(c *gin.Context) (uint, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		response.BadRequest(c, "配置ID无效")
		return 0, false
	}
	return uint(id), true
}
