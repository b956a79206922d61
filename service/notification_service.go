package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/cons"
	"github.com/LinkesAuge/clanmsg-sdk/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// NotificationService 统一处理消息相关通知。
// 约定：先落库（每个收件人一行），再尽力通过 WS 推送；离线/新设备通过 HTTP 拉取。
type NotificationService struct {
	*Service
}

func NewNotificationService(s *Service) *NotificationService {
	return &NotificationService{Service: s}
}

// PublishMessageEvent 为一次发送创建通知并投递给 recipients。
// 同一 event uuid 对同一用户只投递一次（OnConflict DoNothing，并发/重试安全）。
// actorID 为 0 表示系统事件。
func (s *NotificationService) PublishMessageEvent(eventType string, actorID uint64, payload any, recipients []uint64) (string, error) {
	if eventType == "" {
		return "", errors.New("event_type is required")
	}
	if len(recipients) == 0 {
		return "", nil
	}

	var pl datatypes.JSON
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		pl = b
	}

	now := time.Now()
	eventUUID := uuid.New().String()

	// 去重 + 排除操作者自己
	uniq := make(map[uint64]struct{}, len(recipients))
	clean := make([]uint64, 0, len(recipients))
	for _, uid := range recipients {
		if uid == 0 || uid == actorID {
			continue
		}
		if _, ok := uniq[uid]; ok {
			continue
		}
		uniq[uid] = struct{}{}
		clean = append(clean, uid)
	}
	if len(clean) == 0 {
		return eventUUID, nil
	}

	rows := make([]models.Notification, 0, len(clean))
	for _, uid := range clean {
		rows = append(rows, models.Notification{
			EventUUID: eventUUID,
			UserID:    uid,
			EventType: eventType,
			Payload:   pl,
			CreatedAt: now,
		})
	}
	if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return "", err
	}

	// WS 推送（尽力而为：失败不影响主流程）
	s.pushToUsers(eventUUID, eventType, actorID, pl, now, clean)

	return eventUUID, nil
}

func (s *NotificationService) pushToUsers(eventUUID, eventType string, actorID uint64, payload datatypes.JSON, createdAt time.Time, userIDs []uint64) {
	if s.WsNotifier == nil {
		return
	}

	msg := struct {
		Type      string         `json:"type"`
		EventUUID string         `json:"event_uuid"`
		ActorID   uint64         `json:"actor_id,omitempty"`
		EventType string         `json:"event_type"`
		Payload   datatypes.JSON `json:"payload,omitempty"`
		CreatedAt time.Time      `json:"created_at"`
	}{
		Type:      cons.EventNotification,
		EventUUID: eventUUID,
		ActorID:   actorID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: createdAt,
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, uid := range userIDs {
		s.WsNotifier(uid, b)
	}
}

// NotificationDTO HTTP 返回结构
type NotificationDTO struct {
	ID        uint64         `json:"id"`
	EventUUID string         `json:"event_uuid"`
	EventType string         `json:"event_type"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListUserNotifications 拉取用户通知（按 id 倒序游标分页）
// - cursor: 传 0 表示从最新开始；否则取 id < cursor
func (s *NotificationService) ListUserNotifications(userID uint64, cursor uint64, limit int, unreadOnly bool) ([]NotificationDTO, uint64, error) {
	if userID == 0 {
		return nil, 0, errors.New("user_id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	q := s.DB.Model(&models.Notification{}).Where("user_id = ?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := q.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]NotificationDTO, 0, len(rows))
	var nextCursor uint64
	for _, r := range rows {
		out = append(out, NotificationDTO{
			ID:        r.ID,
			EventUUID: r.EventUUID,
			EventType: r.EventType,
			Payload:   r.Payload,
			IsRead:    r.IsRead,
			CreatedAt: r.CreatedAt,
		})
		nextCursor = r.ID
	}

	return out, nextCursor, nil
}

// MarkReadByIDs 批量标记已读
func (s *NotificationService) MarkReadByIDs(userID uint64, ids []uint64) error {
	if userID == 0 {
		return errors.New("user_id is required")
	}
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	return s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]any{"is_read": true, "read_at": &now}).Error
}
