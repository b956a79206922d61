// Package clanmsg_sdk 提供公会站内信 SDK 核心能力
// @title Clan Messaging SDK API
// @version 1.0
// @description 公会管理站内信系统的 RESTful API 文档：私信/广播/公会消息、会话、归档与通知
// @description
// @description ## 响应格式
// @description 所有接口统一返回格式，data 与 error 互斥：
// @description ```json
// @description { "data": {} }
// @description { "error": "..." }
// @description ```
// @description
// @description ## HTTP 状态码说明
// @description - **200/201**: 成功
// @description - **400**: 参数错误（含收件人为空、关键字过短等校验失败）
// @description - **401**: 未登录 / Token 无效
// @description - **403**: 权限不足（如无广播权限）
// @description - **404**: 资源不存在或对当前用户不可见（二者统一 404，不泄露存在性）
// @description - **429**: 触发限流
// @description - **500**: 服务器内部错误（不透出底层错误文本）
//
// @termsOfService https://github.com/LinkesAuge/clanmsg-sdk
//
// @contact.name API Support
// @contact.url https://github.com/LinkesAuge/clanmsg-sdk/issues
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:6789
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 格式：Bearer <token>
//
// @securityDefinitions.apikey QueryToken
// @in query
// @name token
// @description 用于 WebSocket 等无法传 header 的场景
package clanmsg_sdk
