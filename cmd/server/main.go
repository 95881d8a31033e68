package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/handler"
	"edu-message-system/internal/model"
	"edu-message-system/internal/repository"
	"edu-message-system/internal/service"
	"edu-message-system/pkg/db"
	"edu-message-system/pkg/jwt"
	"edu-message-system/pkg/logger"
	"edu-message-system/pkg/redis"
	"edu-message-system/pkg/response"
	"edu-message-system/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化日志
	logger.InitLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("教育咨询消息服务启动中",
		zap.String("port", cfg.Server.Port))

	// 初始化数据库
	gormDB, err := db.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal("数据库初始化失败", zap.Error(err))
	}
	defer db.CloseDB()

	// 迁移表结构
	if err := db.AutoMigrate(&model.Message{}, &model.School{}, &model.User{}); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 初始化Redis（失败降级：计数与统计缓存不可用，核心流程不受影响）
	if err := redis.InitRedis(cfg.Redis); err != nil {
		logger.Warn("Redis初始化失败，计数与统计缓存降级", zap.Error(err))
	}
	defer redis.Close()

	// 组装依赖
	jwtSvc := jwt.NewJWTService(cfg.JWT)

	messageRepo := repository.NewMessageRepository(gormDB)
	schoolRepo := repository.NewSchoolRepository(gormDB)
	userRepo := repository.NewUserRepository(gormDB)

	wsManager := websocket.NewManager()
	wsHandler := websocket.NewHandler(wsManager, jwtSvc, cfg.WebSocket)

	enricher := service.NewSchoolEnricher(schoolRepo, cfg.Enrich)
	go enricher.Run()

	messageService := service.NewMessageService(messageRepo, enricher, wsManager, cfg.Timeout)
	userService := service.NewUserService(userRepo, jwtSvc, cfg.Timeout)

	messageHandler := handler.NewMessageHandler(messageService)
	userHandler := handler.NewUserHandler(userService)

	// 注册路由
	router := setupRouter(jwtSvc, messageHandler, userHandler, wsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP服务已启动", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，开始优雅关停")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP服务关停失败", zap.Error(err))
	}

	// HTTP停止后不再有新任务入队，排空补全队列
	enricher.Stop()

	logger.Info("服务已退出")
}

// setupRouter 注册全部路由
func setupRouter(jwtSvc *jwt.JWTService, messageHandler *handler.MessageHandler, userHandler *handler.UserHandler, wsHandler *websocket.Handler) *gin.Engine {
	router := gin.New()
	router.Use(logger.LoggerMiddleware(), logger.ErrorLoggerMiddleware())

	// 健康检查：数据库不可用返回503
	router.GET("/health", healthCheck)

	// WebSocket接入（token经query参数校验）
	router.GET("/ws", wsHandler.Serve)

	api := router.Group("/api/v1")

	users := api.Group("/users")
	{
		users.POST("/register", userHandler.Register)
		users.POST("/login", userHandler.Login)
		users.GET("/profile", jwtSvc.AuthMiddleware(), userHandler.Profile)
	}

	messages := api.Group("/messages")
	{
		// 学生侧：创建咨询无需登录（来自公开的课程页面表单）
		messages.POST("", messageHandler.Create)

		authed := messages.Group("", jwtSvc.AuthMiddleware())
		{
			authed.GET("/user/:user_id", messageHandler.ListStudentMessages)
			authed.GET("/unread/count", messageHandler.UnreadCount)
			authed.GET("/conversation/:conversation_id", messageHandler.GetConversation)

			// 管理端：仅admin/school账号
			admin := authed.Group("/admin", jwtSvc.RequireUserType(
				string(model.UserTypeAdmin),
				string(model.UserTypeSchool),
			))
			{
				admin.GET("/all", messageHandler.ListAdminMessages)
				admin.POST("/reply/:message_id", messageHandler.Reply)
				admin.PATCH("/mark-read/:message_id", messageHandler.MarkAsRead)
				admin.PUT("/status/:message_id", messageHandler.UpdateStatus)
				admin.POST("/reopen/:message_id", messageHandler.Reopen)
			}
		}
	}

	return router
}

// healthCheck 健康检查处理器
func healthCheck(c *gin.Context) {
	status := gin.H{
		"status":   "ok",
		"database": "ok",
		"redis":    "ok",
	}

	if err := db.HealthCheck(); err != nil {
		status["status"] = "degraded"
		status["database"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	if err := redis.HealthCheck(); err != nil {
		// Redis降级不影响核心服务可用性
		status["redis"] = "unavailable"
	}

	response.Success(c, "服务正常", status)
}
