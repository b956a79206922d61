package clanmsg_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LinkesAuge/clanmsg-sdk/response"
	"github.com/LinkesAuge/clanmsg-sdk/service"
)

var _ = service.MessageDTO{}
var _ = service.ThreadSummaryDTO{}

// -------------------- 消息（Message）相关接口 --------------------

// GinHandleGetInbox 获取收件箱（会话列表）
// @Summary 获取收件箱
// @Description 获取当前用户的会话列表：私信按收件台账，广播/公会按 targeting 匹配且未移除；支持类型过滤和关键字搜索
// @Tags 消息
// @Accept json
// @Produce json
// @Param type query string false "类型过滤 all/private/broadcast/clan，缺省 all"
// @Param search query string false "在 subject/content 中模糊匹配"
// @Success 200 {object} response.Response{data=service.InboxResult} "会话列表"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 401 {object} response.Response "未登录"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages [get]
func (c *MessagingEngine) GinHandleGetInbox(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	result, err := c.ThreadService.GetInbox(uid, ctx.DefaultQuery("type", "all"), ctx.Query("search"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(result))
}

// GinHandleSendMessage 发送消息
// @Summary 发送消息
// @Description 发送私信（recipient_ids）或广播/公会消息（targeting 字段）；回复传 parent_id，类型和 targeting 继承自会话根
// @Tags 消息
// @Accept json
// @Produce json
// @Param req body service.SendReq true "发送请求"
// @Success 201 {object} response.Response{data=service.SendResult} "创建的消息与投递数"
// @Failure 400 {object} response.Response "参数错误/收件人为空"
// @Failure 403 {object} response.Response "无广播权限"
// @Failure 429 {object} response.Response "发送过于频繁"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages [post]
func (c *MessagingEngine) GinHandleSendMessage(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.SendReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}

	result, err := c.MsgService.Send(uid, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, response.Success(result))
}

// GinHandleGetThread 获取会话详情
// @Summary 获取会话详情
// @Description 按 thread id 返回会话内全部可见消息（时间升序）；查看者必须是发送者、收件人或 targeting 命中；查看即标记本人的私信行已读
// @Tags 消息
// @Accept json
// @Produce json
// @Param threadId path uint64 true "会话ID（根消息ID）"
// @Success 200 {object} response.Response{data=service.ThreadViewDTO} "会话详情"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 404 {object} response.Response "会话不存在或不可见"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/thread/{threadId} [get]
func (c *MessagingEngine) GinHandleGetThread(ctx *gin.Context) {
	threadID, err := strconv.ParseUint(ctx.Param("threadId"), 10, 64)
	if err != nil || threadID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error("invalid threadId"))
		return
	}

	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	view, err := c.ThreadService.GetThread(uid, threadID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(view))
}

// GinHandleDeleteThread 删除会话（收件侧）
// @Summary 删除会话
// @Description 软删除当前用户视角下会话内全部消息：私信写收件台账 deleted_at，广播/公会 upsert dismissal 行；消息本体与他人视角不受影响
// @Tags 消息
// @Accept json
// @Produce json
// @Param threadId path uint64 true "会话ID"
// @Success 200 {object} response.Response "删除结果"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 404 {object} response.Response "会话不存在或不可见"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/thread/{threadId} [delete]
func (c *MessagingEngine) GinHandleDeleteThread(ctx *gin.Context) {
	threadID, err := strconv.ParseUint(ctx.Param("threadId"), 10, 64)
	if err != nil || threadID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error("invalid threadId"))
		return
	}

	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	if err := c.ArchiveService.DeleteThread(uid, threadID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{
		"deleted":   true,
		"thread_id": threadID,
	}))
}

// GinHandleMarkMessageRead 标记消息已读
// @Summary 标记消息已读
// @Description 私信标记收件台账 is_read；广播/公会无行可写，授权命中即视为成功（幂等）
// @Tags 消息
// @Accept json
// @Produce json
// @Param id path uint64 true "消息ID"
// @Success 200 {object} response.Response "标记结果"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 404 {object} response.Response "消息不存在或不可见"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/{id} [patch]
func (c *MessagingEngine) GinHandleMarkMessageRead(ctx *gin.Context) {
	messageID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || messageID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error("invalid id"))
		return
	}

	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	if err := c.ArchiveService.MarkMessageRead(uid, messageID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{
		"id":      messageID,
		"is_read": true,
	}))
}

// GinHandleDeleteMessage 删除单条消息（收件侧）
// @Summary 删除单条消息
// @Description 当前用户视角下软删除一条消息，路由规则同会话删除
// @Tags 消息
// @Accept json
// @Produce json
// @Param id path uint64 true "消息ID"
// @Success 200 {object} response.Response "删除结果"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 404 {object} response.Response "消息不存在或不可见"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/{id} [delete]
func (c *MessagingEngine) GinHandleDeleteMessage(ctx *gin.Context) {
	messageID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || messageID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error("invalid id"))
		return
	}

	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	if err := c.ArchiveService.DeleteMessage(uid, messageID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{
		"id":      messageID,
		"deleted": true,
	}))
}

// GinHandleSearchRecipients 搜索可选收件人
// @Summary 搜索收件人
// @Description 按用户名/昵称模糊搜索可选收件人；精确命中排最前，其余按用户名字典序；关键字至少 2 个字符
// @Tags 消息
// @Accept json
// @Produce json
// @Param q query string true "搜索关键字"
// @Param limit query int false "返回上限，缺省 20"
// @Success 200 {object} response.Response{data=[]service.SenderDTO} "候选列表"
// @Failure 400 {object} response.Response "关键字过短/过长"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /messages/search-recipients [get]
func (c *MessagingEngine) GinHandleSearchRecipients(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(ctx.Query("limit"))
	list, err := c.SearchService.SearchRecipients(ctx.Query("q"), uid, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(list))
}
