package clanmsg_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LinkesAuge/clanmsg-sdk/response"
)

// -------------------- 通知（Notification）相关接口 --------------------

// GinHandleGetNotifications 拉取通知列表
// @Summary 获取通知列表
// @Description 按 id 倒序游标分页拉取当前用户的通知；cursor 传 0 或不传表示从最新开始
// @Tags 通知
// @Accept json
// @Produce json
// @Param cursor query uint64 false "游标（上一页返回的 next_cursor）"
// @Param limit query int false "每页数量，缺省 50，最大 200"
// @Param unread query bool false "只看未读"
// @Success 200 {object} response.Response{data=map[string]any} "通知列表 + next_cursor"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /notifications [get]
func (c *MessagingEngine) GinHandleGetNotifications(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	cursor, _ := strconv.ParseUint(ctx.Query("cursor"), 10, 64)
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	unreadOnly := ctx.Query("unread") == "true"

	list, nextCursor, err := c.NotifyService.ListUserNotifications(uid, cursor, limit, unreadOnly)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{
		"notifications": list,
		"next_cursor":   nextCursor,
	}))
}

type MarkNotificationsReadReq struct {
	IDs []uint64 `json:"ids" binding:"required"`
}

// GinHandleMarkNotificationsRead 批量标记通知已读
// @Summary 批量标记通知已读
// @Description 只操作属于当前用户的通知行，幂等
// @Tags 通知
// @Accept json
// @Produce json
// @Param req body MarkNotificationsReadReq true "通知ID列表"
// @Success 200 {object} response.Response "成功响应"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /notifications/read [post]
func (c *MessagingEngine) GinHandleMarkNotificationsRead(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req MarkNotificationsReadReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}
	if len(req.IDs) == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error("ids is required"))
		return
	}

	if err := c.NotifyService.MarkReadByIDs(uid, req.IDs); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{"message": "ok"}))
}
