package clanmsg_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LinkesAuge/clanmsg-sdk/response"
)

// -------------------- 发件箱（Sent）相关接口 --------------------

// GinHandleGetSent 获取发件箱
// @Summary 获取发件箱
// @Description 逐条返回当前用户发出且未删除未归档的消息（时间倒序），附带解析后的收件人列表
// @Tags 消息
// @Accept json
// @Produce json
// @Param type query string false "类型过滤 all/private/broadcast/clan，缺省 all"
// @Param search query string false "在 subject/content 中模糊匹配"
// @Success 200 {object} response.Response{data=service.SentResult} "发件箱列表"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/sent [get]
func (c *MessagingEngine) GinHandleGetSent(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	result, err := c.ThreadService.GetSent(uid, ctx.DefaultQuery("type", "all"), ctx.Query("search"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(result))
}

// GinHandleDeleteSentMessage 删除已发送消息（发件侧）
// @Summary 删除已发送消息
// @Description 只写 Message 的 sender_deleted_at，收件人视角完全不受影响；非本人发送或已删除返回 404
// @Tags 消息
// @Accept json
// @Produce json
// @Param id path uint64 true "消息ID"
// @Success 200 {object} response.Response "删除结果"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 404 {object} response.Response "消息不存在/非本人发送/已删除"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/sent/{id} [delete]
func (c *MessagingEngine) GinHandleDeleteSentMessage(ctx *gin.Context) {
	messageID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || messageID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error("invalid id"))
		return
	}

	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	if err := c.ArchiveService.DeleteSentMessage(uid, messageID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{
		"id":      messageID,
		"deleted": true,
	}))
}
