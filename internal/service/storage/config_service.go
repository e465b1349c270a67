// Package storage 提供对象存储配置管理服务
// 负责存储配置的增删改查、激活状态管理和连接测试
package storage

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/logger"
)

// ConfigService 存储配置服务接口
// 定义了存储配置管理的所有操作，包括配置的增删改查、激活状态管理和连接测试
type ConfigService interface {
	// CreateConfig 创建存储配置
	// 验证配置参数并保存到数据库，如果是第一个配置会自动激活
	CreateConfig(config *database.StorageConfig) error

	// GetConfigByID 根据ID获取存储配置
	GetConfigByID(id uint) (*database.StorageConfig, error)

	// ListConfigs 获取所有存储配置，按创建时间倒序排列
	ListConfigs() ([]database.StorageConfig, error)

	// UpdateConfig 更新存储配置，处理激活状态变更
	UpdateConfig(config *database.StorageConfig) error

	// DeleteConfig 删除存储配置，不允许删除激活状态的配置
	DeleteConfig(id uint) error

	// ActivateConfig 激活存储配置，同时取消其他配置的激活状态
	ActivateConfig(id uint) error

	// TestConfig 使用指定配置创建提供商并测试连接是否正常
	TestConfig(id uint) error

	// GetActiveConfig 获取当前激活且启用的存储配置
	GetActiveConfig() (*database.StorageConfig, error)

	// ActiveProvider 获取基于当前激活配置的存储提供商实例
	// 激活配置变更后自动重建实例
	ActiveProvider() (Provider, *database.StorageConfig, error)

	// ToggleConfig 启用/禁用存储配置，不允许禁用激活状态的配置
	ToggleConfig(id uint, enabled bool) error
}

// configService 存储配置服务实现
type configService struct {
	db *gorm.DB // 数据库连接实例

	mu             sync.Mutex // 保护缓存的提供商实例
	cachedProvider Provider
	cachedConfigID uint
}

// NewConfigService 创建存储配置服务实例
// 参数:
//   - db: GORM数据库连接实例
// 返回:
//   - ConfigService: 存储配置服务接口实现
func NewConfigService(db *gorm.DB) ConfigService {
	return &configService{db: db}
}

// CreateConfig 创建存储配置
func (s *configService) CreateConfig(config *database.StorageConfig) error {
	logger.Infof("[存储配置服务] 创建新的存储配置: %s (提供商: %s, 区域: %s, 存储桶: %s)",
		config.Name, config.Provider, config.Region, config.Bucket)

	// 验证配置
	if err := s.validateConfig(config); err != nil {
		logger.Errorf("[存储配置服务] 存储配置验证失败: %s, 错误: %v", config.Name, err)
		return err
	}

	// 如果这是第一个配置，自动设为激活状态
	var count int64
	s.db.Model(&database.StorageConfig{}).Count(&count)
	if count == 0 {
		config.IsActive = true
		logger.Infof("[存储配置服务] 设置第一个存储配置为激活状态: %s", config.Name)
	}

	// 如果设置为激活状态，需要先取消其他配置的激活状态
	if config.IsActive {
		if err := s.deactivateAllConfigs(); err != nil {
			return fmt.Errorf("failed to deactivate other configs: %w", err)
		}
	}

	if err := s.db.Create(config).Error; err != nil {
		logger.Errorf("[存储配置服务] 创建存储配置失败: %s, 错误: %v", config.Name, err)
		return err
	}

	s.invalidateProvider()
	logger.Infof("[存储配置服务] 成功创建存储配置: %s (ID: %d, 激活状态: %v)",
		config.Name, config.ID, config.IsActive)
	return nil
}

// GetConfigByID 根据ID获取存储配置
func (s *configService) GetConfigByID(id uint) (*database.StorageConfig, error) {
	var config database.StorageConfig
	if err := s.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("storage config not found, id: %d", id)
		}
		logger.Errorf("[存储配置服务] 获取ID为%d的存储配置失败: %v", id, err)
		return nil, err
	}
	return &config, nil
}

// ListConfigs 获取所有存储配置
func (s *configService) ListConfigs() ([]database.StorageConfig, error) {
	var configs []database.StorageConfig
	if err := s.db.Order("created_at DESC").Find(&configs).Error; err != nil {
		logger.Errorf("[存储配置服务] 获取存储配置列表失败: %v", err)
		return nil, err
	}

	logger.Infof("[存储配置服务] 成功获取%d个存储配置", len(configs))
	return configs, nil
}

// UpdateConfig 更新存储配置
func (s *configService) UpdateConfig(config *database.StorageConfig) error {
	logger.Infof("[存储配置服务] 更新存储配置 ID: %d 名称: %s", config.ID, config.Name)

	// 验证配置
	if err := s.validateConfig(config); err != nil {
		logger.Errorf("[存储配置服务] 存储配置验证失败: %s, 错误: %v", config.Name, err)
		return err
	}

	// 获取原有配置
	var existingConfig database.StorageConfig
	if err := s.db.First(&existingConfig, config.ID).Error; err != nil {
		return fmt.Errorf("storage config not found: %w", err)
	}

	// 如果要激活此配置，需要先取消其他配置的激活状态
	if config.IsActive && !existingConfig.IsActive {
		if err := s.deactivateAllConfigs(); err != nil {
			return fmt.Errorf("failed to deactivate other configs: %w", err)
		}
	}

	if err := s.db.Save(config).Error; err != nil {
		logger.Errorf("[存储配置服务] 更新存储配置失败: %s (ID: %d), 错误: %v",
			config.Name, config.ID, err)
		return err
	}

	s.invalidateProvider()
	logger.Infof("[存储配置服务] 成功更新存储配置: %s (ID: %d, 激活状态: %v)",
		config.Name, config.ID, config.IsActive)
	return nil
}

// DeleteConfig 删除存储配置
func (s *configService) DeleteConfig(id uint) error {
	// 检查是否为激活配置
	var config database.StorageConfig
	if err := s.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("storage config not found, id: %d", id)
		}
		return fmt.Errorf("storage config not found: %w", err)
	}

	if config.IsActive {
		return fmt.Errorf("cannot delete the active storage config")
	}

	if err := s.db.Delete(&database.StorageConfig{}, id).Error; err != nil {
		logger.Errorf("[存储配置服务] 删除存储配置 ID %d 失败: %v", id, err)
		return err
	}

	logger.Infof("[存储配置服务] 成功删除存储配置: %s (ID: %d)", config.Name, id)
	return nil
}

// ActivateConfig 激活存储配置
func (s *configService) ActivateConfig(id uint) error {
	var config database.StorageConfig
	if err := s.db.First(&config, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("storage config not found, id: %d", id)
		}
		return fmt.Errorf("storage config not found: %w", err)
	}

	if !config.IsEnabled {
		return fmt.Errorf("cannot activate a disabled storage config")
	}

	// 先取消所有配置的激活状态
	if err := s.deactivateAllConfigs(); err != nil {
		return fmt.Errorf("failed to deactivate other configs: %w", err)
	}

	// 激活指定配置
	if err := s.db.Model(&database.StorageConfig{}).Where("id = ?", id).
		Update("is_active", true).Error; err != nil {
		logger.Errorf("[存储配置服务] 激活存储配置 ID %d 失败: %v", id, err)
		return fmt.Errorf("failed to activate storage config: %w", err)
	}

	s.invalidateProvider()
	logger.Infof("[存储配置服务] 成功激活存储配置: %s (ID: %d)", config.Name, id)
	return nil
}

// TestConfig 测试存储配置连接
func (s *configService) TestConfig(id uint) error {
	config, err := s.GetConfigByID(id)
	if err != nil {
		return err
	}

	provider, err := NewProvider(config)
	if err != nil {
		return fmt.Errorf("failed to create storage provider: %w", err)
	}

	if err := provider.TestConnection(); err != nil {
		logger.Errorf("[存储配置服务] 存储配置%s连接测试失败: %v", config.Name, err)
		return err
	}

	logger.Infof("[存储配置服务] 存储配置连接测试成功: %s (ID: %d)", config.Name, id)
	return nil
}

// GetActiveConfig 获取当前激活的存储配置
// 当没有配置存储时，这是正常情况，不会影响系统其他功能
func (s *configService) GetActiveConfig() (*database.StorageConfig, error) {
	var config database.StorageConfig
	if err := s.db.Where("is_active = ? AND is_enabled = ?", true, true).First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 没有存储配置是正常情况，不记录为错误
			return nil, fmt.Errorf("no active storage config")
		}
		logger.Errorf("[存储配置服务] 获取激活的存储配置失败: %v", err)
		return nil, err
	}
	return &config, nil
}

// ActiveProvider 获取基于当前激活配置的存储提供商实例
func (s *configService) ActiveProvider() (Provider, *database.StorageConfig, error) {
	config, err := s.GetActiveConfig()
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedProvider != nil && s.cachedConfigID == config.ID {
		return s.cachedProvider, config, nil
	}

	provider, err := NewProvider(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage provider: %w", err)
	}

	s.cachedProvider = provider
	s.cachedConfigID = config.ID
	return provider, config, nil
}

// ToggleConfig 启用/禁用存储配置
func (s *configService) ToggleConfig(id uint, enabled bool) error {
	// 如果要禁用激活的配置，先检查
	if !enabled {
		var config database.StorageConfig
		if err := s.db.First(&config, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("storage config not found, id: %d", id)
			}
			return fmt.Errorf("storage config not found: %w", err)
		}

		if config.IsActive {
			return fmt.Errorf("cannot disable the active storage config")
		}
	}

	if err := s.db.Model(&database.StorageConfig{}).Where("id = ?", id).
		Update("is_enabled", enabled).Error; err != nil {
		logger.Errorf("[存储配置服务] 切换存储配置 ID %d 失败: %v", id, err)
		return err
	}

	logger.Infof("[存储配置服务] 成功切换存储配置 ID %d 的启用状态为: %v", id, enabled)
	return nil
}

// validateConfig 验证存储配置的所有必需字段和业务规则
func (s *configService) validateConfig(config *database.StorageConfig) error {
	if config.Name == "" {
		return fmt.Errorf("config name is required")
	}

	if config.Provider == "" {
		return fmt.Errorf("storage provider is required")
	}

	// 验证支持的提供商
	supportedProviders := []string{"aliyun", "tencent", "qiniu"}
	isSupported := false
	for _, provider := range supportedProviders {
		if config.Provider == provider {
			isSupported = true
			break
		}
	}
	if !isSupported {
		return fmt.Errorf("unsupported storage provider: %s", config.Provider)
	}

	if config.Region == "" {
		return fmt.Errorf("region is required")
	}

	if config.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	if config.AccessKey == "" {
		return fmt.Errorf("access key is required")
	}

	if config.SecretKey == "" {
		return fmt.Errorf("secret key is required")
	}

	// 七牛云私有下载链接依赖下载域名
	if config.Provider == "qiniu" && config.Domain == "" && config.Endpoint == "" {
		return fmt.Errorf("qiniu config requires a download domain")
	}

	// 检查配置名称是否重复
	var count int64
	query := s.db.Model(&database.StorageConfig{}).Where("name = ?", config.Name)
	if config.ID > 0 {
		query = query.Where("id != ?", config.ID)
	}
	query.Count(&count)

	if count > 0 {
		return fmt.Errorf("config name already exists: %s", config.Name)
	}

	return nil
}

// deactivateAllConfigs 取消所有配置的激活状态
func (s *configService) deactivateAllConfigs() error {
	if err := s.db.Model(&database.StorageConfig{}).Where("is_active = ?", true).
		Update("is_active", false).Error; err != nil {
		logger.Errorf("[存储配置服务] 取消存储配置激活状态失败: %v", err)
		return err
	}
	return nil
}

// invalidateProvider 使缓存的提供商实例失效
func (s *configService) invalidateProvider() {
	s.mu.Lock()
	s.cachedProvider = nil
	s.cachedConfigID = 0
	s.mu.Unlock()
}
