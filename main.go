// @title AnkiCollab Server API
// @version 1.0
// @description 协作牌组同步服务，提供牌组发布、订阅同步、建议评审和媒体托管
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey TokenAuth
// @in header
// @name Authorization

// @externalDocs.description OpenAPI
// @externalDocs.url https://swagger.io/resources/open-api/
package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/logger"
	"github.com/ankicollab/collab-server/internal/middleware"
	"github.com/ankicollab/collab-server/internal/router"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
	}

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化中间件
	loggerMiddleware := middleware.NewLoggerMiddleware()

	// 初始化路由
	r := router.NewRouter(loggerMiddleware, db, cfg)

	// 启动媒体清理服务
	cleanupService := r.GetCleanupService()
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	if err := cleanupService.Start(cleanupCtx); err != nil {
		log.Printf("Failed to start cleanup service: %v", err)
	}

	// 创建HTTP服务器
	var httpSrv *http.Server
	var httpsSrv *http.Server

	if cfg.Server.EnableHTTPS {
		httpsSrv = &http.Server{
			Addr:         ":" + strconv.Itoa(cfg.Server.HTTPSPort),
			Handler:      r.GetEngine(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			TLSConfig: &tls.Config{
				NextProtos: []string{"h2", "http/1.1"}, // 支持HTTP/2和HTTP/1.1
			},
		}

		// 如果启用HTTP/2，配置HTTP/2支持
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(httpsSrv, &http2.Server{}); err != nil {
				log.Fatalf("配置HTTP/2失败: %v", err)
			}
		}

		go func() {
			log.Printf("HTTPS服务器启动在端口 %d (HTTP/2: %v)", cfg.Server.HTTPSPort, cfg.Server.EnableHTTP2)
			if err := httpsSrv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS服务器启动失败: %v", err)
			}
		}()
	} else {
		httpSrv = &http.Server{
			Addr:         ":" + strconv.Itoa(cfg.Server.HTTPPort),
			Handler:      r.GetEngine(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}

		go func() {
			log.Printf("HTTP服务器启动在端口 %d", cfg.Server.HTTPPort)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTP服务器启动失败: %v", err)
			}
		}()
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	// 停止媒体清理服务
	cancelCleanup()
	if err := cleanupService.Stop(); err != nil {
		log.Printf("Error stopping cleanup service: %v", err)
	}

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if httpsSrv != nil {
		if err := httpsSrv.Shutdown(ctx); err != nil {
			log.Fatal("HTTPS服务器强制关闭:", err)
		}
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Fatal("HTTP服务器强制关闭:", err)
		}
	}

	log.Println("服务器已退出")
}
