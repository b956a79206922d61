package clanmsg_sdk

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LinkesAuge/clanmsg-sdk/response"
	"github.com/LinkesAuge/clanmsg-sdk/service"
)

// -------------------- 用户（User）相关接口 --------------------

// GinHandleRegister 用户注册
// @Summary 用户注册
// @Description 用户名唯一，密码 bcrypt 存储
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.RegisterReq true "注册请求"
// @Success 201 {object} response.Response{data=service.UserDTO} "创建的用户"
// @Failure 400 {object} response.Response "参数错误/用户名已存在"
// @Failure 500 {object} response.Response "服务器错误"
// @Router /user/register [post]
func (c *MessagingEngine) GinHandleRegister(ctx *gin.Context) {
	var req service.RegisterReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}

	user, err := c.UserService.Register(req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, response.Success(user))
}

// GinHandleLogin 用户登录
// @Summary 用户登录
// @Description 校验用户名密码，下发 token（Redis 存储）
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.LoginReq true "登录请求"
// @Success 200 {object} response.Response{data=service.LoginResp} "token 与用户信息"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 401 {object} response.Response "用户名或密码错误"
// @Failure 500 {object} response.Response "服务器错误"
// @Router /user/login [post]
func (c *MessagingEngine) GinHandleLogin(ctx *gin.Context) {
	var req service.LoginReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(err.Error()))
		return
	}

	resp, err := c.UserService.Login(ctx.Request.Context(), req)
	if err != nil {
		// 凭证错误统一 401，不区分“用户不存在”和“密码错误”
		if errors.Is(err, service.ErrForbidden) {
			ctx.JSON(http.StatusUnauthorized, response.Error("invalid username or password"))
			return
		}
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(resp))
}

// GinHandleLogout 退出登录
// @Summary 退出登录
// @Description 吊销当前请求携带的 token
// @Tags 用户
// @Accept json
// @Produce json
// @Success 200 {object} response.Response "成功响应"
// @Failure 401 {object} response.Response "未登录"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /user/logout [post]
func (c *MessagingEngine) GinHandleLogout(ctx *gin.Context) {
	token, exists := ctx.Get("token")
	if !exists {
		ctx.JSON(http.StatusUnauthorized, response.Error("token not found"))
		return
	}

	if err := c.AuthService.RevokeToken(ctx.Request.Context(), token.(string)); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(map[string]any{"message": "ok"}))
}

// GinHandleGetMe 获取当前用户信息
// @Summary 获取当前用户
// @Tags 用户
// @Accept json
// @Produce json
// @Success 200 {object} response.Response{data=service.UserDTO} "用户信息"
// @Failure 401 {object} response.Response "未登录"
// @Failure 500 {object} response.Response "服务器错误"
// @Security BearerAuth
// @Router /user/me [get]
func (c *MessagingEngine) GinHandleGetMe(ctx *gin.Context) {
	uid, ok := currentUserID(ctx)
	if !ok {
		return
	}

	user, err := c.UserService.GetUser(uid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, response.Success(user))
}
