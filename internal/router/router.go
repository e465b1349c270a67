package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	_ "github.com/ankicollab/collab-server/docs" // swagger docs
	"github.com/ankicollab/collab-server/internal/handler"
	"github.com/ankicollab/collab-server/internal/middleware"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
	deckservice "github.com/ankicollab/collab-server/internal/service/deck"
	mediaservice "github.com/ankicollab/collab-server/internal/service/media"
	storageservice "github.com/ankicollab/collab-server/internal/service/storage"
	suggestionservice "github.com/ankicollab/collab-server/internal/service/suggestion"
)

// Router 路由配置
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	cleanupService mediaservice.CleanupService
}

// NewRouter 创建路由实例
// 根路径挂载同步协议端点，/api/v1挂载需要令牌认证的管理端点
func NewRouter(loggerMiddleware *middleware.LoggerMiddleware, db *gorm.DB, cfg *config.Config) *Router {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// 初始化服务
	storageConfigService := storageservice.NewConfigService(db)
	authService := authservice.NewAuthService(db, cfg.Auth)
	deckService := deckservice.NewDeckService(db)
	mediaService := mediaservice.NewMediaService(db, cfg.Media, storageConfigService)
	cleanupService := mediaservice.NewCleanupService(db, cfg.Cleanup, storageConfigService)
	suggestionService := suggestionservice.NewSuggestionService(db, deckService, authService)

	// 初始化处理器
	authHandler := handler.NewAuthHandler(authService)
	deckHandler := handler.NewDeckHandler(deckService, authService)
	mediaHandler := handler.NewMediaHandler(mediaService, cleanupService, authService)
	suggestionHandler := handler.NewSuggestionHandler(suggestionService)
	storageHandler := handler.NewStorageHandler(storageConfigService)

	// 使用中间件
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.Logger())
	engine.Use(loggerMiddleware.RequestLogger())

	// 配置CORS
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Swagger文档路由
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Service is running",
		})
	})

	// 同步协议端点：插件客户端直接调用，路径和响应格式与协议保持一致
	engine.POST("/login", authHandler.Login)
	engine.POST("/refreshToken", authHandler.RefreshToken)
	engine.GET("/removeToken/:token", authHandler.RemoveToken)
	engine.POST("/GetUserHashFromToken", authHandler.GetUserHashFromToken)
	engine.POST("/CheckUserToken", authHandler.CheckUserToken)

	engine.POST("/createDeck", deckHandler.CreateDeck)
	engine.GET("/GetDeckTimestamp/:hash", deckHandler.GetDeckTimestamp)
	engine.POST("/pullChanges", deckHandler.PullChanges)
	engine.POST("/AddSubscription", deckHandler.AddSubscription)
	engine.POST("/RemoveSubscription", deckHandler.RemoveSubscription)
	engine.POST("/submitChangelog", deckHandler.SubmitChangelog)
	engine.POST("/UploadDeckStats", deckHandler.UploadDeckStats)

	engine.POST("/submitCard", suggestionHandler.SubmitCard)

	// 媒体同步端点：访问令牌在消息体内，由处理器自行认证；
	// 确认和中转上传以不可猜测的批次ID作为凭据
	media := engine.Group("/media")
	{
		media.POST("/check/bulk", mediaHandler.BulkCheck)
		media.POST("/confirm/bulk", mediaHandler.BulkConfirm)
		media.POST("/manifest", mediaHandler.Manifest)
		media.PUT("/upload/:batch/:hash", mediaHandler.ProxyUpload)
	}

	// API路由组
	api := engine.Group("/api/v1")
	{
		// 基础信息接口
		api.GET("/info", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"service": "AnkiCollab Server",
				"version": "1.0.0",
				"status":  "running",
			})
		})

		// 数据库状态检查
		api.GET("/db/status", func(c *gin.Context) {
			sqlDB, err := db.DB()
			if err != nil {
				c.JSON(500, gin.H{
					"error": "Database connection error",
				})
				return
			}

			if err := sqlDB.Ping(); err != nil {
				c.JSON(500, gin.H{
					"error": "Database ping failed",
				})
				return
			}

			c.JSON(200, gin.H{
				"status": "Database connection OK",
			})
		})

		// 用户注册无需令牌
		api.POST("/users/register", authHandler.Register)

		// 管理接口需要令牌认证
		authed := api.Group("")
		authed.Use(middleware.TokenAuth(authService))
		{
			// 牌组管理接口
			decks := authed.Group("/decks")
			{
				decks.GET("", deckHandler.ListDecks)
				decks.GET("/search", deckHandler.SearchDecks)
				decks.GET("/:hash", deckHandler.GetDeck)

				// 牌组建议评审
				decks.GET("/:hash/suggestions", suggestionHandler.ListSuggestions)
			}

			// 建议管理接口
			suggestions := authed.Group("/suggestions")
			{
				suggestions.GET("/:id", suggestionHandler.GetSuggestion)
				suggestions.POST("/:id/approve", suggestionHandler.ApproveSuggestion)
				suggestions.POST("/:id/deny", suggestionHandler.DenySuggestion)
			}

			// 媒体管理接口
			mediaAdmin := authed.Group("/media")
			{
				mediaAdmin.GET("/stats", mediaHandler.GetMediaStats)
				mediaAdmin.POST("/cleanup", mediaHandler.TriggerCleanup)
			}

			// 存储配置管理接口
			storage := authed.Group("/storage")
			{
				storage.POST("/configs", storageHandler.CreateStorageConfig)
				storage.GET("/configs", storageHandler.ListStorageConfigs)
				storage.GET("/configs/active", storageHandler.GetActiveStorageConfig)
				storage.GET("/configs/:id", storageHandler.GetStorageConfig)
				storage.PUT("/configs/:id", storageHandler.UpdateStorageConfig)
				storage.DELETE("/configs/:id", storageHandler.DeleteStorageConfig)
				storage.POST("/configs/:id/activate", storageHandler.ActivateStorageConfig)
				storage.POST("/configs/:id/test", storageHandler.TestStorageConfig)
				storage.PUT("/configs/:id/toggle", storageHandler.ToggleStorageConfig)
			}
		}
	}

	return &Router{
		engine:         engine,
		db:             db,
		cleanupService: cleanupService,
	}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetDB 获取数据库连接
func (r *Router) GetDB() *gorm.DB {
	return r.db
}

// GetCleanupService 获取媒体清理服务
// 由主程序负责随服务启停
func (r *Router) GetCleanupService() mediaservice.CleanupService {
	return r.cleanupService
}
