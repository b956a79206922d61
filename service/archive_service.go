package service

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"github.com/LinkesAuge/clanmsg-sdk/repository"
	"gorm.io/gorm"
)

// 批量归档请求的取值
const (
	ArchiveTargetThread = "thread"
	ArchiveTargetSent   = "sent"

	ArchiveActionArchive   = "archive"
	ArchiveActionUnarchive = "unarchive"

	maxArchiveBatch = 100
)

// ArchiveItemDTO 统一归档列表条目。
// Source 区分来源：inbox 是会话摘要，sent 是带收件人的单条消息。
type ArchiveItemDTO struct {
	Source     string            `json:"source"` // inbox | sent
	ArchivedAt time.Time         `json:"archived_at"`
	Thread     *ThreadSummaryDTO `json:"thread,omitempty"`
	Message    *SentMessageDTO   `json:"message,omitempty"`
}

// ArchiveResult 归档视图响应
type ArchiveResult struct {
	Items    []ArchiveItemDTO     `json:"items"`
	Profiles map[uint64]SenderDTO `json:"profiles"`
}

// ArchiveService 归档/删除编排：按 message_type 把批量操作分流到正确的台账。
//
// 关键不变量：
//   - private/system 走 recipient 台账，broadcast/clan 走 dismissal 台账；
//     会话可能混合类型，所以任何“会话内全部消息”的批量操作都必须先分区再分流。
//   - 归档是快照语义：只触达操作时刻已存在的行，之后新进的回复不被追溯归档。
//   - 发件箱完全隔离：sent 侧只动 Message 的 sender_* 字段，从不触碰收件台账。
type ArchiveService struct {
	*Service
	messageDAO   *models.MessageDAO
	recipientDAO *repository.RecipientDAO
	dismissalDAO *repository.DismissalDAO
	Targeting    *TargetingService
	threads      *ThreadService
}

func NewArchiveService(s *Service, targeting *TargetingService, threads *ThreadService) *ArchiveService {
	log.Println("NewArchiveService")
	return &ArchiveService{
		Service:      s,
		messageDAO:   models.NewMessageDAO(s.DB),
		recipientDAO: repository.NewRecipientDAO(s.DB),
		dismissalDAO: repository.NewDismissalDAO(s.DB),
		Targeting:    targeting,
		threads:      threads,
	}
}

// BatchArchiveReq 批量归档/取消归档请求
type BatchArchiveReq struct {
	Type   string   `json:"type"`   // thread | sent
	IDs    []uint64 `json:"ids"`    // 1..100 个 thread id 或 sent message id
	Action string   `json:"action"` // archive | unarchive
}

// BatchArchive 批量归档/取消归档。
// 任一分区操作失败则整批失败（不向调用方报告部分成功）；
// 归档/取消归档按消息幂等，同一批次重试是安全的。
func (s *ArchiveService) BatchArchive(userID uint64, req BatchArchiveReq) error {
	if len(req.IDs) == 0 || len(req.IDs) > maxArchiveBatch {
		return validationError("ids must contain between 1 and 100 entries")
	}
	if req.Action != ArchiveActionArchive && req.Action != ArchiveActionUnarchive {
		return validationError("unsupported action: " + req.Action)
	}

	switch req.Type {
	case ArchiveTargetThread:
		return s.archiveThreads(userID, req.IDs, req.Action)
	case ArchiveTargetSent:
		return s.archiveSent(userID, req.IDs, req.Action)
	default:
		return validationError("unsupported type: " + req.Type)
	}
}

// archiveThreads 会话批量归档：展开 -> 按类型分区 -> 分流台账。
func (s *ArchiveService) archiveThreads(userID uint64, threadIDs []uint64, action string) error {
	msgs, err := s.messageDAO.FindByThreadIDs(threadIDs)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return ErrNotFound
	}

	privateIDs, broadcastIDs := partitionByLedger(msgs)
	now := time.Now()

	// 两个分区都要尝试（哪怕其中一个为空）；任一报错整批失败
	if action == ArchiveActionArchive {
		if err := s.recipientDAO.SetArchived(userID, privateIDs, &now, now); err != nil {
			return err
		}
		// 广播归档可能是该用户对这条消息的首次动作，行不存在要创建
		if err := s.dismissalDAO.UpsertArchived(userID, broadcastIDs, now); err != nil {
			return err
		}
		return nil
	}

	if err := s.recipientDAO.SetArchived(userID, privateIDs, nil, now); err != nil {
		return err
	}
	// 取消归档只改已存在的行：没有行就没有可取消的归档，no-op 而不是错误
	if err := s.dismissalDAO.ClearArchived(userID, broadcastIDs, now); err != nil {
		return err
	}
	return nil
}

// archiveSent 发件箱归档：只动 sender_archived_at，永不触碰收件台账。
func (s *ArchiveService) archiveSent(senderID uint64, messageIDs []uint64, action string) error {
	updates := map[string]any{"sender_archived_at": time.Now()}
	if action == ArchiveActionUnarchive {
		updates = map[string]any{"sender_archived_at": nil}
	}
	res := s.DB.Model(&models.Message{}).
		Where("id IN ? AND sender_id = ? AND sender_deleted_at IS NULL", messageIDs, senderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// partitionByLedger 把消息按归属台账分成两组 message_id
func partitionByLedger(msgs []models.Message) (privateIDs, broadcastIDs []uint64) {
	for _, m := range msgs {
		if models.IsBroadcastType(m.MessageType) {
			broadcastIDs = append(broadcastIDs, m.ID)
		} else {
			privateIDs = append(privateIDs, m.ID)
		}
	}
	return privateIDs, broadcastIDs
}

// DeleteThread 收件侧删除整个会话：私信行软删，广播行 upsert 移除。
// viewer 与会话无任何关系时返回 ErrNotFound（404，不泄露存在性）。
func (s *ArchiveService) DeleteThread(userID, threadID uint64) error {
	msgs, err := s.messageDAO.FindByThreadIDs([]uint64{threadID})
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return ErrNotFound
	}

	privateIDs, _ := partitionByLedger(msgs)

	// 广播分区先做受众判定：不在受众内的广播不允许被“删除”出自己的视图
	broadcastIDs := make([]uint64, 0)
	for i := range msgs {
		m := msgs[i]
		if !models.IsBroadcastType(m.MessageType) {
			continue
		}
		ok, err := s.Targeting.UserMatchesTargeting(&m, userID)
		if err != nil {
			return err
		}
		if ok {
			broadcastIDs = append(broadcastIDs, m.ID)
		}
	}

	now := time.Now()
	affected, err := s.recipientDAO.SoftDelete(userID, privateIDs, now)
	if err != nil {
		return err
	}
	if err := s.dismissalDAO.UpsertDismissed(userID, broadcastIDs, now); err != nil {
		return err
	}
	if affected == 0 && len(broadcastIDs) == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage 收件侧删除单条消息
func (s *ArchiveService) DeleteMessage(userID, messageID uint64) error {
	msg, err := s.messageDAO.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	now := time.Now()
	if models.IsBroadcastType(msg.MessageType) {
		ok, err := s.Targeting.UserMatchesTargeting(msg, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return s.dismissalDAO.UpsertDismissed(userID, []uint64{messageID}, now)
	}

	affected, err := s.recipientDAO.SoftDelete(userID, []uint64{messageID}, now)
	if err != nil {
		return err
	}
	// 没有可删的行：要么不是收件人，要么早已删除——对 viewer 都是 404
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMessageRead 单条标记已读。
// 私信：置台账 is_read（幂等，重复标记无副作用）。
// 广播：受众判定通过即成功，但不落行——dismissal 行只由归档/移除动作懒创建。
func (s *ArchiveService) MarkMessageRead(userID, messageID uint64) error {
	msg, err := s.messageDAO.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if models.IsBroadcastType(msg.MessageType) {
		ok, err := s.Targeting.UserMatchesTargeting(msg, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	}

	rows, err := s.recipientDAO.FindByMessageIDs(userID, []uint64{messageID})
	if err != nil {
		return err
	}
	if len(rows) == 0 || rows[0].DeletedAt != nil {
		return ErrNotFound
	}
	return s.recipientDAO.MarkRead(userID, []uint64{messageID}, time.Now())
}

// DeleteSentMessage 发件侧删除：置 sender_deleted_at，消息对所有收件人保持可见。
func (s *ArchiveService) DeleteSentMessage(senderID, messageID uint64) error {
	res := s.DB.Model(&models.Message{}).
		Where("id = ? AND sender_id = ? AND sender_deleted_at IS NULL", messageID, senderID).
		Update("sender_deleted_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetArchive 统一归档视图：归档的收件会话 + 归档的已发消息，按 archived_at 倒序合并。
// 三路数据源相互独立，并行拉取后汇合。
func (s *ArchiveService) GetArchive(userID uint64) (*ArchiveResult, error) {
	var (
		wg       sync.WaitGroup
		recRows  []models.MessageRecipient
		disRows  []models.BroadcastDismissal
		sentMsgs []models.Message
		recErr   error
		disErr   error
		sentErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		recRows, recErr = s.recipientDAO.FindArchivedByRecipient(userID)
	}()
	go func() {
		defer wg.Done()
		disRows, disErr = s.dismissalDAO.FindArchivedByUser(userID)
	}()
	go func() {
		defer wg.Done()
		sentErr = s.DB.
			Where("sender_id = ? AND sender_archived_at IS NOT NULL AND sender_deleted_at IS NULL", userID).
			Order("sender_archived_at DESC").
			Find(&sentMsgs).Error
	}()
	wg.Wait()
	if recErr != nil {
		return nil, recErr
	}
	if disErr != nil {
		return nil, disErr
	}
	if sentErr != nil {
		return nil, sentErr
	}

	// 收件侧：两个台账的归档条目合并为 message_id -> archived_at
	archivedAt := make(map[uint64]time.Time, len(recRows)+len(disRows))
	readState := make(map[uint64]bool)
	msgIDs := make([]uint64, 0, len(recRows)+len(disRows))
	for _, r := range recRows {
		archivedAt[r.MessageID] = *r.ArchivedAt
		readState[r.MessageID] = r.IsRead
		msgIDs = append(msgIDs, r.MessageID)
	}
	for _, d := range disRows {
		archivedAt[d.MessageID] = *d.ArchivedAt
		readState[d.MessageID] = true
		msgIDs = append(msgIDs, d.MessageID)
	}

	var inboxMsgs []models.Message
	if len(msgIDs) > 0 {
		if err := s.DB.Where("id IN ?", msgIDs).Find(&inboxMsgs).Error; err != nil {
			return nil, err
		}
	}

	items := make([]ArchiveItemDTO, 0)
	profileIDs := make([]uint64, 0)

	// 会话的 archived_at 取成员中最晚的一次归档
	for _, g := range GroupByThread(inboxMsgs) {
		latestArchived := time.Time{}
		unread := 0
		for _, m := range g.Messages {
			if at, ok := archivedAt[m.ID]; ok && at.After(latestArchived) {
				latestArchived = at
			}
			if !readState[m.ID] {
				unread++
			}
		}
		items = append(items, ArchiveItemDTO{
			Source:     "inbox",
			ArchivedAt: latestArchived,
			Thread: &ThreadSummaryDTO{
				ThreadID:     g.Key,
				MessageType:  g.Latest.MessageType,
				Subject:      g.Latest.Subject,
				Snippet:      snippet(g.Latest.Content),
				SenderID:     g.Latest.SenderID,
				MessageCount: len(g.Messages),
				UnreadCount:  unread,
				LatestAt:     g.Latest.CreatedAt,
			},
		})
		for _, m := range g.Messages {
			if m.SenderID != nil {
				profileIDs = append(profileIDs, *m.SenderID)
			}
		}
	}

	// 发件侧：逐条消息，带收件人
	sentItems, err := s.threads.annotateRecipients(sentMsgs, userID)
	if err != nil {
		return nil, err
	}
	for i := range sentItems {
		items = append(items, ArchiveItemDTO{
			Source:     "sent",
			ArchivedAt: *sentMsgs[i].SenderArchivedAt,
			Message:    &sentItems[i],
		})
		profileIDs = append(profileIDs, sentItems[i].Recipients...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ArchivedAt.After(items[j].ArchivedAt)
	})

	profiles, err := s.threads.loadProfiles(profileIDs)
	if err != nil {
		return nil, err
	}
	return &ArchiveResult{Items: items, Profiles: profiles}, nil
}
