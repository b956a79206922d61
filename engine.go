package clanmsg_sdk

import (
	"log"
	"net/http"
	"sync"

	"github.com/LinkesAuge/clanmsg-sdk/middleware"
	"github.com/LinkesAuge/clanmsg-sdk/service"
	"github.com/gin-gonic/gin"
)

type MessagingEngine struct {
	config *Config

	UserService      *service.UserService
	MsgService       *service.MessageService
	ThreadService    *service.ThreadService
	ArchiveService   *service.ArchiveService
	TargetingService *service.TargetingService
	SearchService    *service.RecipientSearchService
	NotifyService    *service.NotificationService
	AuthService      *service.AuthService
	RateLimit        *service.RateLimitService
	WsServer         *WsServer
}

var (
	Instance *MessagingEngine
	once     sync.Once
)

// NewEngine 创建实例
// 使用选项模式传入配置，Option回调
func NewEngine(opts ...Option) *MessagingEngine {
	once.Do(func() {
		c := &Config{
			TablePrefix: "cm_", // Default
		}
		for _, opt := range opts {
			opt(c)
		}

		Instance = &MessagingEngine{config: c}

		// 初始化 WS（通知推送）
		Instance.WsServer = NewWsServer()
		go Instance.WsServer.Run()

		// 初始化基础 Service，注入 WsNotifier 回调
		baseService := &service.Service{
			DB:          c.DB,
			RDB:         c.RDB,
			TablePrefix: c.TablePrefix,
			WsNotifier:  Instance.WsServer.SendToUser, // 注入 WebSocket 通知函数
		}
		baseService.Notify = service.NewNotificationService(baseService)

		// 初始化各个 Service
		tokenService := service.NewTokenService(c.RDB)
		Instance.TargetingService = service.NewTargetingService(baseService)
		Instance.MsgService = service.NewMessageService(baseService, Instance.TargetingService)
		Instance.ThreadService = service.NewThreadService(baseService, Instance.TargetingService)
		Instance.ArchiveService = service.NewArchiveService(baseService, Instance.TargetingService, Instance.ThreadService)
		Instance.SearchService = service.NewRecipientSearchService(baseService)
		Instance.NotifyService = baseService.Notify
		Instance.UserService = service.NewUserService(baseService, tokenService)
		Instance.AuthService = service.NewAuthService(tokenService)

		if c.RateLimit.Enabled {
			Instance.RateLimit = service.NewRateLimitService(c.RDB, c.RateLimit.Window, c.RateLimit.Limit)
		}

		// 迁移表
		if err := Instance.AutoMigrate(); err != nil {
			log.Printf("AutoMigrate failed: %v", err)
		}
	})

	return Instance
}

// ServeWS 处理 WebSocket 通知连接，需要已鉴权的 userID
func (c *MessagingEngine) ServeWS(w http.ResponseWriter, r *http.Request, userID uint64) {
	c.WsServer.ServeWS(w, r, userID)
}

// GinAuthMiddleware 返回配置好的 Gin 鉴权中间件
// 使用 MessagingEngine 内部的 AuthService 和 Redis 配置
//
// 使用示例:
//
//	engine := clanmsg_sdk.NewEngine(...)
//	r := gin.Default()
//	r.Use(engine.GinAuthMiddleware(nil)) // 使用默认配置
func (c *MessagingEngine) GinAuthMiddleware(opt *middleware.AuthOptions) gin.HandlerFunc {
	return middleware.GinAuthMiddleware(c.AuthService, opt)
}

// GinRateLimitMiddleware 返回配置好的限流中间件；未启用时为直通。
func (c *MessagingEngine) GinRateLimitMiddleware(scope string) gin.HandlerFunc {
	return middleware.GinRateLimitMiddleware(c.RateLimit, scope)
}
