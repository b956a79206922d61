package service

import (
	"log"
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/cons"
	"github.com/LinkesAuge/clanmsg-sdk/models"
	"github.com/LinkesAuge/clanmsg-sdk/repository"
	"gorm.io/datatypes"
)

// MessageDTO 消息数据传输对象（避免 Swagger 递归）
type MessageDTO struct {
	ID           uint64         `json:"id"`
	SenderID     *uint64        `json:"sender_id,omitempty"`
	MessageType  string         `json:"message_type"`
	Subject      string         `json:"subject,omitempty"`
	Content      string         `json:"content"`
	ThreadID     *uint64        `json:"thread_id,omitempty"`
	ParentID     *uint64        `json:"parent_id,omitempty"`
	TargetClanID *uint64        `json:"target_clan_id,omitempty"`
	TargetRanks  datatypes.JSON `json:"target_ranks,omitempty"`
	TargetRoles  datatypes.JSON `json:"target_roles,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SenderDTO 发送人信息（用于 profiles 表）
type SenderDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// ToMessageDTO 将 Message 转换为 MessageDTO
func ToMessageDTO(msg *models.Message) *MessageDTO {
	if msg == nil {
		return nil
	}
	return &MessageDTO{
		ID:           msg.ID,
		SenderID:     msg.SenderID,
		MessageType:  msg.MessageType,
		Subject:      msg.Subject,
		Content:      msg.Content,
		ThreadID:     msg.ThreadID,
		ParentID:     msg.ParentID,
		TargetClanID: msg.TargetClanID,
		TargetRanks:  msg.TargetRanks,
		TargetRoles:  msg.TargetRoles,
		CreatedAt:    msg.CreatedAt,
	}
}

func toSenderDTO(u *models.User) *SenderDTO {
	if u == nil {
		return nil
	}
	return &SenderDTO{ID: u.ID, Username: u.Username, Nickname: u.Nickname, Avatar: u.Avatar}
}

type MessageService struct {
	*Service
	messageDAO   *models.MessageDAO
	recipientDAO *repository.RecipientDAO
	// Targeting 受众解析（由 engine 注入）
	Targeting *TargetingService
}

func NewMessageService(s *Service, targeting *TargetingService) *MessageService {
	log.Println("NewMessageService")
	return &MessageService{
		Service:      s,
		messageDAO:   models.NewMessageDAO(s.DB),
		recipientDAO: repository.NewRecipientDAO(s.DB),
		Targeting:    targeting,
	}
}

// SendReq 发送请求。私信带 recipient_ids，broadcast/clan 带 targeting 字段。
type SendReq struct {
	RecipientIDs []uint64 `json:"recipient_ids"`
	MessageType  string   `json:"message_type"` // 缺省 private
	Subject      string   `json:"subject"`
	Content      string   `json:"content"`
	ParentID     *uint64  `json:"parent_id"`
	TargetClanID *uint64  `json:"target_clan_id"`
	TargetRanks  []string `json:"target_ranks"`
	TargetRoles  []string `json:"target_roles"`
}

// SendResult 发送结果
type SendResult struct {
	Message        *MessageDTO `json:"message"`
	RecipientCount int         `json:"recipient_count"`
}

// Send 一次发送的完整编排：
// 校验 -> 权限闸门 -> 受众解析 -> 会话归属 -> 消息落库 + 私信台账（同事务）-> 通知扇出。
//
// broadcast/clan 不在发送时写台账（受众可能很大，行在用户首次归档/移除时才懒创建）；
// 受众解析成功但结果为空时按“零投递成功”处理，不报错。
// 通知扇出是尽力而为：失败只记日志，不回滚消息。
func (s *MessageService) Send(senderID uint64, req SendReq) (*SendResult, error) {
	if senderID == 0 {
		return nil, validationError("sender is required")
	}
	if req.Content == "" {
		return nil, validationError("content is required")
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = models.MessageTypePrivate
	}
	switch msgType {
	case models.MessageTypePrivate, models.MessageTypeBroadcast, models.MessageTypeClan:
	default:
		return nil, validationError("unsupported message_type: " + msgType)
	}

	// 回复：定位父消息并解析会话根。父消息的 thread_id 即根；父消息本身是根时用它的 id。
	var parent *models.Message
	var threadID *uint64
	if req.ParentID != nil && *req.ParentID > 0 {
		p, err := s.messageDAO.FindByID(*req.ParentID)
		if err != nil {
			return nil, validationError("parent message not found")
		}
		parent = p
		key := p.ThreadKey()
		threadID = &key

		// 回复不带类型/targeting 时继承父消息的
		if req.MessageType == "" {
			msgType = p.MessageType
			if msgType == models.MessageTypeSystem {
				msgType = models.MessageTypePrivate
			}
		}
		if models.IsBroadcastType(msgType) && req.TargetClanID == nil && len(req.TargetRanks) == 0 && len(req.TargetRoles) == 0 {
			req.TargetClanID = p.TargetClanID
			req.TargetRanks = DecodeLabels(p.TargetRanks)
			req.TargetRoles = DecodeLabels(p.TargetRoles)
		}
	}

	// 权限闸门：broadcast/clan 需要内容管理员；会话内回复看 can_reply。
	if models.IsBroadcastType(msgType) {
		allowed, err := s.Targeting.HasBroadcastPrivilege(senderID)
		if err != nil {
			return nil, err
		}
		if !allowed && parent != nil {
			allowed, err = s.Targeting.CanReplyToBroadcast(parent, senderID)
			if err != nil {
				return nil, err
			}
		}
		if !allowed {
			return nil, ErrForbidden
		}
	}

	// 受众解析
	var recipients []uint64
	if models.IsBroadcastType(msgType) {
		ids, err := s.Targeting.ResolveRecipients(msgType, req.TargetClanID, req.TargetRanks, req.TargetRoles, senderID)
		if err != nil {
			return nil, err
		}
		recipients = ids
	} else {
		ids, err := s.cleanPrivateRecipients(senderID, req.RecipientIDs)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, ErrNoRecipients
		}
		recipients = ids
	}

	now := time.Now()
	msg := &models.Message{
		SenderID:    &senderID,
		MessageType: msgType,
		Subject:     req.Subject,
		Content:     req.Content,
		ThreadID:    threadID,
		ParentID:    req.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if models.IsBroadcastType(msgType) {
		msg.TargetClanID = req.TargetClanID
		msg.TargetRanks = EncodeLabels(req.TargetRanks)
		msg.TargetRoles = EncodeLabels(req.TargetRoles)
	}

	// 消息 + 私信台账同事务：消息不允许在没有尝试写台账的情况下存在
	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	if err := s.messageDAO.WithDB(tx).Create(msg); err != nil {
		return nil, err
	}
	if !models.IsBroadcastType(msgType) {
		if err := s.recipientDAO.WithDB(tx).CreateBatch(msg.ID, recipients, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	s.fanOutNotifications(msg, senderID, recipients)

	return &SendResult{Message: ToMessageDTO(msg), RecipientCount: len(recipients)}, nil
}

// SendSystem 系统消息（sender 为 NULL），走 recipient 台账。内部调用，不经权限闸门。
func (s *MessageService) SendSystem(recipientIDs []uint64, subject, content string) (*SendResult, error) {
	if content == "" {
		return nil, validationError("content is required")
	}
	ids, err := s.cleanPrivateRecipients(0, recipientIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoRecipients
	}

	now := time.Now()
	msg := &models.Message{
		MessageType: models.MessageTypeSystem,
		Subject:     subject,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx := s.DB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	if err := s.messageDAO.WithDB(tx).Create(msg); err != nil {
		return nil, err
	}
	if err := s.recipientDAO.WithDB(tx).CreateBatch(msg.ID, ids, now); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	s.fanOutNotifications(msg, 0, ids)

	return &SendResult{Message: ToMessageDTO(msg), RecipientCount: len(ids)}, nil
}

// cleanPrivateRecipients 去重、去自己，并校验收件人确实存在
func (s *MessageService) cleanPrivateRecipients(senderID uint64, recipientIDs []uint64) ([]uint64, error) {
	uniq := make(map[uint64]struct{}, len(recipientIDs))
	ids := make([]uint64, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		if id == 0 || id == senderID {
			continue
		}
		if _, ok := uniq[id]; ok {
			continue
		}
		uniq[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	var count int64
	if err := s.DB.Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return nil, err
	}
	if count != int64(len(ids)) {
		return nil, validationError("one or more recipients do not exist")
	}
	return ids, nil
}

func (s *MessageService) fanOutNotifications(msg *models.Message, actorID uint64, recipients []uint64) {
	if s.Notify == nil || len(recipients) == 0 {
		return
	}
	eventType := cons.EventMessageReceived
	switch msg.MessageType {
	case models.MessageTypeBroadcast:
		eventType = cons.EventBroadcastPublished
	case models.MessageTypeClan:
		eventType = cons.EventClanAnnouncement
	case models.MessageTypeSystem:
		eventType = cons.EventSystemNotice
	}
	if msg.ParentID != nil && *msg.ParentID > 0 {
		eventType = cons.EventThreadReply
	}

	payload := map[string]any{
		"message_id":   msg.ID,
		"thread_id":    msg.ThreadKey(),
		"message_type": msg.MessageType,
		"subject":      msg.Subject,
	}
	if _, err := s.Notify.PublishMessageEvent(eventType, actorID, payload, recipients); err != nil {
		log.Printf("notification fan-out failed (message %d): %v", msg.ID, err)
	}
}

// GetMessageByID 根据ID获取消息
func (s *MessageService) GetMessageByID(messageID uint64) (*models.Message, error) {
	return s.messageDAO.FindByID(messageID)
}
