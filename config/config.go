// Package config 提供应用程序配置加载功能
// 基于viper实现，支持配置文件和环境变量两种来源
// 包含服务器、数据库、认证、媒体和清理任务等完整配置项
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序总配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // HTTP服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Auth     AuthConfig     `mapstructure:"auth"`     // 认证配置
	Media    MediaConfig    `mapstructure:"media"`    // 媒体文件配置
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`  // 孤儿媒体清理配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
}

// ServerConfig HTTP服务器配置
// 支持两种部署模式：直接HTTPS（含HTTP/2）或反向代理后的纯HTTP
type ServerConfig struct {
	HTTPPort     int    `mapstructure:"http_port"`      // HTTP监听端口（反向代理模式）
	HTTPSPort    int    `mapstructure:"https_port"`     // HTTPS监听端口
	EnableHTTPS  bool   `mapstructure:"enable_https"`   // 是否启用HTTPS直连模式
	EnableHTTP2  bool   `mapstructure:"enable_http2"`   // 是否启用HTTP/2（仅HTTPS模式有效）
	TLSCertFile  string `mapstructure:"tls_cert_file"`  // TLS证书文件路径
	TLSKeyFile   string `mapstructure:"tls_key_file"`   // TLS私钥文件路径
	ReadTimeout  int    `mapstructure:"read_timeout"`   // 读取超时，单位秒
	WriteTimeout int    `mapstructure:"write_timeout"`  // 写入超时，单位秒
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"` // 请求体大小上限，单位字节
}

// DatabaseConfig 数据库配置
// 自托管场景使用sqlite，生产环境使用postgres
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // 数据库驱动：sqlite、postgres
	DSN             string `mapstructure:"dsn"`               // 数据源名称
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // 最大打开连接数
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 连接最大生命周期，单位秒
}

// AuthConfig 认证配置
type AuthConfig struct {
	AccessTokenTTL  int `mapstructure:"access_token_ttl"`  // 访问令牌有效期，单位秒，默认30天
	RefreshTokenTTL int `mapstructure:"refresh_token_ttl"` // 刷新令牌有效期，单位秒，默认90天
	BcryptCost      int `mapstructure:"bcrypt_cost"`       // bcrypt哈希成本因子
}

// MediaConfig 媒体文件配置
type MediaConfig struct {
	MaxFileSize       int64    `mapstructure:"max_file_size"`      // 单个媒体文件大小上限，单位字节
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的文件扩展名列表
	PresignTTL        int      `mapstructure:"presign_ttl"`        // 预签名上传URL有效期，单位秒
	DownloadTTL       int      `mapstructure:"download_ttl"`       // 下载URL有效期，单位秒
	MaxBatchFiles     int      `mapstructure:"max_batch_files"`    // 单次批量操作的文件数上限
}

// CleanupConfig 孤儿媒体清理配置
type CleanupConfig struct {
	ScanInterval int `mapstructure:"scan_interval"` // 扫描间隔，单位秒
	GracePeriod  int `mapstructure:"grace_period"`  // 引用计数归零后的宽限期，单位秒
	MaxRetries   int `mapstructure:"max_retries"`   // 删除失败的最大重试次数
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`     // 日志级别
	Format   string `mapstructure:"format"`    // 日志格式：json、text
	Output   string `mapstructure:"output"`    // 输出方式：console、file、both
	FilePath string `mapstructure:"file_path"` // 日志文件路径
}

// PresignExpiry 返回预签名上传URL的有效期
func (c MediaConfig) PresignExpiry() time.Duration {
	return time.Duration(c.PresignTTL) * time.Second
}

// DownloadExpiry 返回下载URL的有效期
func (c MediaConfig) DownloadExpiry() time.Duration {
	return time.Duration(c.DownloadTTL) * time.Second
}

// IsAllowedExtension 检查扩展名是否在允许列表中
// 扩展名比较不区分大小写，列表包含"*"时放行所有类型
func (c MediaConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if allowed == "*" || strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// setDefaults 设置所有配置项的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认值
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.https_port", 8443)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.max_body_bytes", 64*1024*1024)

	// 数据库默认值
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/collab.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 3600)

	// 认证默认值
	v.SetDefault("auth.access_token_ttl", 30*86400)
	v.SetDefault("auth.refresh_token_ttl", 90*86400)
	v.SetDefault("auth.bcrypt_cost", 12)

	// 媒体默认值
	v.SetDefault("media.max_file_size", 2*1024*1024)
	v.SetDefault("media.allowed_extensions", []string{
		".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
		".bmp", ".tif", ".tiff", ".mp3", ".ogg",
	})
	v.SetDefault("media.presign_ttl", 900)
	v.SetDefault("media.download_ttl", 3600)
	v.SetDefault("media.max_batch_files", 500)

	// 清理任务默认值
	v.SetDefault("cleanup.scan_interval", 3600)
	v.SetDefault("cleanup.grace_period", 24*3600)
	v.SetDefault("cleanup.max_retries", 5)

	// 日志默认值
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file_path", "logs/collab.log")
}

// Load 加载应用程序配置
// 依次读取配置文件collab.yaml（当前目录或/etc/ankicollab）和COLLAB_前缀的环境变量
// 返回:
//   - *Config: 完整的应用配置
//   - error: 配置文件解析失败时返回错误信息
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("collab")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ankicollab")

	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时使用默认值，其他错误直接返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server.EnableHTTPS && (cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "") {
		return nil, fmt.Errorf("https enabled but tls_cert_file/tls_key_file not configured")
	}

	return &cfg, nil
}
