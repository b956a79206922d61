package clanmsg_sdk

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LinkesAuge/clanmsg-sdk/response"
	"github.com/LinkesAuge/clanmsg-sdk/service"
)

// -------------------- 归档（Archive）相关接口 --------------------

// GinHandleBatchArchive 批量归档/取消归档
// @Summary 批量归档/取消归档
// @Description type=thread 按会话归档（私信走收件台账，广播/公会懒建 dismissal 行）；type=sent 只写 sender_archived_at。一次最多 100 个 id，整批成功或整批失败
// @Tags 归档
// @Accept json
// @Produce json
// @Param req body service.BatchArchiveReq true "批量请求"
// @Success 200 {object} response.Response "操作回显"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 404 {object} response.Response "id 未命中任何消息"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/archive [post]
func (c *MessagingEngine) GinHandleBatchArchive(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.BatchArchiveReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}

	if err := c.ArchiveService.BatchArchive(uid, req); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{
		"type":   req.Type,
		"ids":    req.IDs,
		"action": req.Action,
	}))
}

// GinHandleGetArchive 获取归档列表
// @Summary 获取归档列表
// @Description 合并收件侧归档会话与发件侧归档消息，按 archived_at 倒序；source 字段区分 inbox/sent
// @Tags 归档
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=service.ArchiveResult} "归档列表"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/archive [get]
func (c *MessagingEngine) GinHandleGetArchive(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	result, err := c.ArchiveService.GetArchive(uid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(result))
}
