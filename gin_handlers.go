package clanmsg_sdk

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LinkesAuge/clanmsg-sdk/response"
	"github.com/LinkesAuge/clanmsg-sdk/service"
)

// writeServiceError 把 service 层哨兵错误映射为 HTTP 状态码。
// 400/403/404 的文案来自业务错误本身；其余一律 500，
// 且不把底层存储错误文本透给调用方（只记日志）。
func writeServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNoRecipients):
		ctx.JSON(http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, service.ErrForbidden):
		ctx.JSON(http.StatusForbidden, response.Error(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		ctx.JSON(http.StatusNotFound, response.Error(err.Error()))
	default:
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, response.Error("internal error"))
	}
}

// currentUserID 从 gin 上下文取鉴权中间件写入的 user_id
func currentUserID(ctx *gin.Context) (uint64, bool) {
	uid, exists := ctx.Get("user_id")
	if !exists {
		ctx.JSON(http.StatusUnauthorized, response.Error("user_id not found"))
		return 0, false
	}
	return uid.(uint64), true
}

// RegisterMessageRoutes 挂载消息子系统的全部路由。
// 调用方传入已经挂好全局中间件的 gin 实例；鉴权/限流在这里统一套上。
//
// 使用示例:
//
//	engine := clanmsg_sdk.NewEngine(...)
//	r := gin.Default()
//	engine.RegisterMessageRoutes(r)
func (c *MessagingEngine) RegisterMessageRoutes(r *gin.Engine) {
	// 用户相关：注册/登录不需要鉴权
	user := r.Group("/user")
	{
		user.POST("/register", c.GinHandleRegister)
		user.POST("/login", c.GinHandleLogin)
	}
	userAuthed := r.Group("/user", c.GinAuthMiddleware(nil))
	{
		userAuthed.POST("/logout", c.GinHandleLogout)
		userAuthed.GET("/me", c.GinHandleGetMe)
	}

	msg := r.Group("/messages", c.GinAuthMiddleware(nil))
	{
		msg.GET("", c.GinHandleGetInbox)
		msg.POST("", c.GinRateLimitMiddleware("send"), c.GinHandleSendMessage)
		msg.GET("/thread/:threadId", c.GinHandleGetThread)
		msg.DELETE("/thread/:threadId", c.GinHandleDeleteThread)
		msg.PATCH("/:id", c.GinHandleMarkMessageRead)
		msg.DELETE("/:id", c.GinHandleDeleteMessage)
		msg.GET("/sent", c.GinHandleGetSent)
		msg.DELETE("/sent/:id", c.GinHandleDeleteSentMessage)
		msg.POST("/archive", c.GinHandleBatchArchive)
		msg.GET("/archive", c.GinHandleGetArchive)
		msg.GET("/search-recipients", c.GinHandleSearchRecipients)
	}

	notif := r.Group("/notifications", c.GinAuthMiddleware(nil))
	{
		notif.GET("", c.GinHandleGetNotifications)
		notif.POST("/read", c.GinHandleMarkNotificationsRead)
	}
}
