package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	prefix = "cm_"
)

// User 平台用户表
type User struct {
	ID        uint64 `gorm:"primarykey"`
	Username  string `gorm:"size:50;uniqueIndex;not null"`      // 登录名
	Nickname  string `gorm:"size:100;not null"`                 // 显示昵称
	Password  string `gorm:"size:255;not null"`                 // bcrypt 哈希
	Avatar    string `gorm:"size:500"`                          // 头像
	Role      string `gorm:"size:32;index;default:member"`      // 平台角色: member/content_manager/admin
	Email     string `gorm:"size:100;uniqueIndex;default:null"` // 邮箱
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	// 关联关系
	Memberships []ClanMember `gorm:"foreignKey:UserID"`
	Messages    []Message    `gorm:"foreignKey:SenderID"`
}

func (User) TableName() string {
	return prefix + "user"
}

// 平台角色
const (
	RoleMember         = "member"
	RoleContentManager = "content_manager"
	RoleAdmin          = "admin"
)

// Clan 公会表
type Clan struct {
	ID uint64 `gorm:"primarykey"`

	// Tag 对外公会标签（游戏内唯一），用于搜索/分享；不参与外键关联。
	Tag string `gorm:"column:tag;type:varchar(32);uniqueIndex;not null"`

	Name        string `gorm:"size:100;not null"` // 公会名称
	Description string `gorm:"size:500"`          // 描述
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	// 关联关系
	Members []ClanMember `gorm:"foreignKey:ClanID;references:ID"`
}

func (Clan) TableName() string {
	return prefix + "clan"
}

// 成员状态
const (
	MemberStatusActive = 1 // 在会
	MemberStatusLeft   = 2 // 已退会
)

// 公会内角色
const (
	ClanRoleLeader  = "leader"
	ClanRoleOfficer = "officer"
	ClanRoleMember  = "member"
)

// ClanMember 公会成员表（广播 targeting 的数据来源）
type ClanMember struct {
	ID        uint64    `gorm:"primarykey"`
	ClanID    uint64    `gorm:"index:idx_clan_user,unique;not null"` // 公会 ID
	UserID    uint64    `gorm:"index:idx_clan_user,unique;not null"` // 用户 ID
	Rank      string    `gorm:"size:50;index"`                       // 游戏内军衔标签
	Role      string    `gorm:"size:32;index;default:member"`        // 公会角色: leader/officer/member
	Status    uint8     `gorm:"type:tinyint;default:1"`              // 状态: 1-在会 2-已退会
	JoinedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP"`           // 入会时间
	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联关系
	Clan Clan `gorm:"foreignKey:ClanID;references:ID"`
	User User `gorm:"foreignKey:UserID"`
}

func (ClanMember) TableName() string {
	return prefix + "clan_member"
}

// 消息类型。创建后不可变；targeting 字段仅 broadcast/clan 使用。
const (
	MessageTypePrivate   = "private"
	MessageTypeBroadcast = "broadcast"
	MessageTypeClan      = "clan"
	MessageTypeSystem    = "system"
)

// IsBroadcastType broadcast/clan 走 dismissal 台账，private/system 走 recipient 台账。
func IsBroadcastType(messageType string) bool {
	return messageType == MessageTypeBroadcast || messageType == MessageTypeClan
}

// Message 消息表（一条消息一行，与收件人数量无关）
type Message struct {
	ID           uint64         `gorm:"primarykey"`
	SenderID     *uint64        `gorm:"index"`                         // 发送者 ID；系统消息为 NULL
	MessageType  string         `gorm:"size:16;index;not null"`        // private/broadcast/clan/system
	Subject      string         `gorm:"size:255"`                      // 标题（可选）
	Content      string         `gorm:"type:text;not null"`            // 消息内容
	ThreadID     *uint64        `gorm:"index"`                         // 会话根消息 ID；NULL 表示自己就是根
	ParentID     *uint64        `gorm:"index"`                         // 被回复的消息 ID（可能不等于根）
	TargetClanID *uint64        `gorm:"index"`                         // broadcast/clan 的目标公会
	TargetRanks  datatypes.JSON `gorm:"column:target_ranks;type:json"` // 军衔过滤（string 数组）
	TargetRoles  datatypes.JSON `gorm:"column:target_roles;type:json"` // 公会角色过滤（string 数组）

	// 发件箱维度的归档/删除：只影响发送者自己的 sent 视图，不影响任何收件人。
	SenderArchivedAt *time.Time `gorm:"index"`
	SenderDeletedAt  *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	// 关联关系
	Sender     *User    `gorm:"foreignKey:SenderID"`
	Parent     *Message `gorm:"foreignKey:ParentID"`
	TargetClan *Clan    `gorm:"foreignKey:TargetClanID;references:ID"`
}

func (Message) TableName() string {
	return prefix + "message"
}

// ThreadKey 会话键：thread_id ?? id。
func (m *Message) ThreadKey() uint64 {
	if m.ThreadID != nil && *m.ThreadID > 0 {
		return *m.ThreadID
	}
	return m.ID
}

// MessageRecipient 私信收件台账（每 (message, recipient) 一行，发送时写入）
type MessageRecipient struct {
	ID          uint64     `gorm:"primarykey"`
	MessageID   uint64     `gorm:"index:idx_msg_recipient,unique;not null"` // 消息 ID
	RecipientID uint64     `gorm:"index:idx_msg_recipient,unique;not null"` // 收件人 ID
	IsRead      bool       `gorm:"default:false"`                           // 是否已读
	ArchivedAt  *time.Time // 归档时间；NULL 表示未归档
	DeletedAt   *time.Time // 软删除；一旦置位该行对收件人永久不可见
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// 关联关系
	Message   Message `gorm:"foreignKey:MessageID"`
	Recipient User    `gorm:"foreignKey:RecipientID"`
}

func (MessageRecipient) TableName() string {
	return prefix + "message_recipient"
}

// BroadcastDismissal 广播/公会消息的用户状态台账。
// 懒创建：只有用户归档或移除过的消息才有行；没有行即“未读、未归档、未移除”。
type BroadcastDismissal struct {
	ID          uint64     `gorm:"primarykey"`
	MessageID   uint64     `gorm:"index:idx_msg_user,unique;not null"` // 消息 ID
	UserID      uint64     `gorm:"index:idx_msg_user,unique;not null"` // 用户 ID
	ArchivedAt  *time.Time // 归档时间
	DismissedAt *time.Time // 移除时间（等价于收件侧删除）
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// 关联关系
	Message Message `gorm:"foreignKey:MessageID"`
	User    User    `gorm:"foreignKey:UserID"`
}

func (BroadcastDismissal) TableName() string {
	return prefix + "broadcast_dismissal"
}

// Notification 通知表（发送时按收件人扇出，一人一行）
type Notification struct {
	ID        uint64         `gorm:"primarykey"`
	EventUUID string         `gorm:"size:36;index:idx_event_user,unique;not null"` // 事件外部 ID
	UserID    uint64         `gorm:"index:idx_event_user,unique;not null"`         // 接收用户
	EventType string         `gorm:"size:64;index;not null"`                       // 事件类型
	Payload   datatypes.JSON `gorm:"column:payload;type:json"`
	IsRead    bool           `gorm:"default:false"`
	ReadAt    *time.Time
	CreatedAt time.Time

	// 关联关系
	User User `gorm:"foreignKey:UserID"`
}

func (Notification) TableName() string {
	return prefix + "notification"
}
