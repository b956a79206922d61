package main

import (
	"context"
	"log"
	"time"

	clanmsg_sdk "github.com/LinkesAuge/clanmsg-sdk"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. 初始化数据库连接
	dsn := "root:password@tcp(127.0.0.1:3306)/clan_db?charset=utf8mb4&parseTime=True&loc=Local"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("数据库连接失败:", err)
	}

	// 2. Redis：token 存储 + 限流计数
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis 连接失败:", err)
	}

	// 3. 初始化 Messaging Engine（单例模式，全局只需调用一次）
	engine := clanmsg_sdk.NewEngine(
		clanmsg_sdk.WithDB(db),
		clanmsg_sdk.WithRDB(rdb),
		clanmsg_sdk.WithTablePrefix("cm_"),
		clanmsg_sdk.WithRateLimit(clanmsg_sdk.RateLimitConfig{
			Enabled: true,
			Window:  time.Minute,
			Limit:   30,
		}),
	)

	// 4. 创建 Gin 路由
	r := gin.Default()

	// 设置 CORS（如果需要）
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// 注册 Swagger UI
	clanmsg_sdk.RegisterSwagger(r, "/swagger/*any")

	// 5. WebSocket 通知连接（需要 token 鉴权，支持 query 传 token）
	// 客户端连接：ws://localhost:6789/ws?token=YOUR_TOKEN
	r.GET("/ws", engine.GinAuthMiddleware(nil), func(c *gin.Context) {
		uid, _ := c.Get("user_id")
		engine.ServeWS(c.Writer, c.Request, uid.(uint64))
	})

	// 6. 业务路由（用户/消息/归档/通知）
	engine.RegisterMessageRoutes(r)

	// 7. 启动服务器
	log.Println("Clan Messaging Server 启动在 :6789")
	log.Println("Swagger UI: http://localhost:6789/swagger/index.html")
	log.Println("WebSocket 地址: ws://localhost:6789/ws?token=YOUR_TOKEN")
	if err := r.Run(":6789"); err != nil {
		log.Fatal("服务器启动失败:", err)
	}
}
