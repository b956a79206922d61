package cons

// 统一的消息通知事件类型（event_type）
const (
	EventMessageReceived    = "message.received"    // 收到私信
	EventBroadcastPublished = "broadcast.published" // 公告/广播发布
	EventClanAnnouncement   = "clan.announcement"   // 公会公告
	EventThreadReply        = "thread.reply"        // 会话内回复
	EventSystemNotice       = "system.notice"       // 系统消息
)

// 统一的用户通知
const (
	EventNotification = "notification" // WS 推送包的外层 type
)
