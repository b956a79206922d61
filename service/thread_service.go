package service

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"github.com/LinkesAuge/clanmsg-sdk/repository"
)

// ThreadGroup 会话分组：同一 thread key（thread_id ?? id）下的全部消息。
// Messages 升序（会话视图），Latest 为组内最新一条（列表预览用）。
type ThreadGroup struct {
	Key      uint64
	Messages []models.Message
	Latest   *models.Message
}

// GroupByThread 把平铺消息集合切成会话分组。
// 完全划分：每条消息恰好属于一个组，键为 thread_id ?? id。
func GroupByThread(messages []models.Message) []ThreadGroup {
	byKey := make(map[uint64]*ThreadGroup)
	order := make([]uint64, 0)
	for i := range messages {
		m := messages[i]
		key := m.ThreadKey()
		g, ok := byKey[key]
		if !ok {
			g = &ThreadGroup{Key: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.Messages = append(g.Messages, m)
	}

	out := make([]ThreadGroup, 0, len(byKey))
	for _, key := range order {
		g := byKey[key]
		sort.SliceStable(g.Messages, func(i, j int) bool {
			return g.Messages[i].CreatedAt.Before(g.Messages[j].CreatedAt)
		})
		g.Latest = &g.Messages[len(g.Messages)-1]
		out = append(out, *g)
	}

	// 列表视图按最新消息时间倒序
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Latest.CreatedAt.After(out[j].Latest.CreatedAt)
	})
	return out
}

// ThreadSummaryDTO 收件箱/归档列表里的会话摘要
type ThreadSummaryDTO struct {
	ThreadID     uint64    `json:"thread_id"`
	MessageType  string    `json:"message_type"` // 最新一条消息的类型
	Subject      string    `json:"subject,omitempty"`
	Snippet      string    `json:"snippet"`
	SenderID     *uint64   `json:"sender_id,omitempty"` // 最新一条消息的发送者
	MessageCount int       `json:"message_count"`
	UnreadCount  int       `json:"unread_count"`
	LatestAt     time.Time `json:"latest_at"`
}

// InboxResult 收件箱响应：会话摘要 + 涉及用户的 profiles 表
type InboxResult struct {
	Threads  []ThreadSummaryDTO   `json:"threads"`
	Profiles map[uint64]SenderDTO `json:"profiles"`
}

// ThreadMeta 会话视图的元信息
type ThreadMeta struct {
	CanReply bool `json:"can_reply"`
}

// ThreadViewDTO 会话详情
type ThreadViewDTO struct {
	ThreadID uint64               `json:"thread_id"`
	Messages []MessageDTO         `json:"messages"`
	Profiles map[uint64]SenderDTO `json:"profiles"`
	Meta     ThreadMeta           `json:"meta"`
}

// SentMessageDTO 发件箱条目（逐条，不聚合会话），带解析后的收件人列表
type SentMessageDTO struct {
	MessageDTO
	Recipients     []uint64 `json:"recipients"`
	RecipientCount int      `json:"recipient_count"`
}

// SentResult 发件箱响应
type SentResult struct {
	Messages []SentMessageDTO     `json:"messages"`
	Profiles map[uint64]SenderDTO `json:"profiles"`
}

type ThreadService struct {
	*Service
	messageDAO   *models.MessageDAO
	recipientDAO *repository.RecipientDAO
	dismissalDAO *repository.DismissalDAO
	Targeting    *TargetingService
}

func NewThreadService(s *Service, targeting *TargetingService) *ThreadService {
	log.Println("NewThreadService")
	return &ThreadService{
		Service:      s,
		messageDAO:   models.NewMessageDAO(s.DB),
		recipientDAO: repository.NewRecipientDAO(s.DB),
		dismissalDAO: repository.NewDismissalDAO(s.DB),
		Targeting:    targeting,
	}
}

const typeFilterAll = "all"

func validTypeFilter(t string) bool {
	switch t {
	case "", typeFilterAll, models.MessageTypePrivate, models.MessageTypeBroadcast, models.MessageTypeClan:
		return true
	}
	return false
}

// inboxCandidates 收件箱的可见消息集合（未归档、未删除/移除）。
// 私信侧走 recipient 台账，广播侧走 targeting 匹配减去 dismissal 行。
// 返回的 readState 记录每条消息对 viewer 是否已读。
func (s *ThreadService) inboxCandidates(userID uint64) (msgs []models.Message, readState map[uint64]bool, err error) {
	readState = make(map[uint64]bool)

	// 私信侧：台账行（未归档、未删除）
	rows, err := s.recipientDAO.FindActiveByRecipient(userID)
	if err != nil {
		return nil, nil, err
	}
	privateIDs := make([]uint64, 0, len(rows))
	for _, r := range rows {
		if r.ArchivedAt != nil {
			continue
		}
		privateIDs = append(privateIDs, r.MessageID)
		readState[r.MessageID] = r.IsRead
	}
	var privateMsgs []models.Message
	if len(privateIDs) > 0 {
		if err := s.DB.Where("id IN ?", privateIDs).Find(&privateMsgs).Error; err != nil {
			return nil, nil, err
		}
	}

	// 广播侧：targeting 匹配的 broadcast/clan 消息
	broadcastMsgs, err := s.visibleBroadcasts(userID)
	if err != nil {
		return nil, nil, err
	}
	if len(broadcastMsgs) > 0 {
		ids := make([]uint64, 0, len(broadcastMsgs))
		for _, m := range broadcastMsgs {
			ids = append(ids, m.ID)
		}
		dismissals, err := s.dismissalDAO.FindByMessageIDs(userID, ids)
		if err != nil {
			return nil, nil, err
		}
		byMsg := make(map[uint64]models.BroadcastDismissal, len(dismissals))
		for _, d := range dismissals {
			byMsg[d.MessageID] = d
		}
		kept := broadcastMsgs[:0]
		for _, m := range broadcastMsgs {
			d, has := byMsg[m.ID]
			if has && (d.DismissedAt != nil || d.ArchivedAt != nil) {
				continue
			}
			// 无 dismissal 行 = 未读；有行（仅取消过归档等）视为已读
			readState[m.ID] = has
			kept = append(kept, m)
		}
		broadcastMsgs = kept
	}

	return append(privateMsgs, broadcastMsgs...), readState, nil
}

// visibleBroadcasts 查出 viewer 在受众内、且不是自己发的 broadcast/clan 消息。
// 先按公会范围用 SQL 收窄，rank/role 过滤在内存里对成员快照判定。
func (s *ThreadService) visibleBroadcasts(userID uint64) ([]models.Message, error) {
	var memberships []models.ClanMember
	err := s.DB.Where("user_id = ? AND status = ?", userID, models.MemberStatusActive).
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	clanIDs := make([]uint64, 0, len(memberships))
	byClan := make(map[uint64]models.ClanMember, len(memberships))
	for _, m := range memberships {
		clanIDs = append(clanIDs, m.ClanID)
		byClan[m.ClanID] = m
	}

	q := s.DB.Model(&models.Message{}).
		Where("message_type IN ?", []string{models.MessageTypeBroadcast, models.MessageTypeClan}).
		Where("sender_id IS NULL OR sender_id <> ?", userID)
	if len(clanIDs) > 0 {
		q = q.Where("target_clan_id IS NULL OR target_clan_id IN ?", clanIDs)
	} else {
		q = q.Where("target_clan_id IS NULL")
	}

	var candidates []models.Message
	if err := q.Find(&candidates).Error; err != nil {
		return nil, err
	}

	out := candidates[:0]
	for _, m := range candidates {
		if s.matchesMemberships(&m, memberships, byClan) {
			out = append(out, m)
		}
	}
	return out, nil
}

// matchesMemberships 用已加载的成员快照判定 targeting，省掉逐条回库。
func (s *ThreadService) matchesMemberships(m *models.Message, memberships []models.ClanMember, byClan map[uint64]models.ClanMember) bool {
	ranks := DecodeLabels(m.TargetRanks)
	roles := DecodeLabels(m.TargetRoles)

	if m.TargetClanID != nil && *m.TargetClanID > 0 {
		mem, ok := byClan[*m.TargetClanID]
		if !ok {
			return false
		}
		return labelMatch(ranks, mem.Rank) && labelMatch(roles, mem.Role)
	}

	// 平台广播：无过滤面向全体；有过滤则任一公会身份匹配即可
	if len(ranks) == 0 && len(roles) == 0 {
		return m.MessageType == models.MessageTypeBroadcast
	}
	for _, mem := range memberships {
		if labelMatch(ranks, mem.Rank) && labelMatch(roles, mem.Role) {
			return true
		}
	}
	return false
}

func labelMatch(filter []string, label string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == label {
			return true
		}
	}
	return false
}

func matchesSearch(m *models.Message, search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(m.Subject), search) ||
		strings.Contains(strings.ToLower(m.Content), search)
}

// GetInbox 收件箱：可见消息 -> 会话分组 -> 摘要列表（按最新消息倒序）。
func (s *ThreadService) GetInbox(userID uint64, typeFilter, search string) (*InboxResult, error) {
	if !validTypeFilter(typeFilter) {
		return nil, validationError("unsupported type filter: " + typeFilter)
	}

	msgs, readState, err := s.inboxCandidates(userID)
	if err != nil {
		return nil, err
	}

	filtered := msgs[:0]
	for _, m := range msgs {
		if typeFilter != "" && typeFilter != typeFilterAll && m.MessageType != typeFilter {
			continue
		}
		if !matchesSearch(&m, search) {
			continue
		}
		filtered = append(filtered, m)
	}

	groups := GroupByThread(filtered)
	threads := make([]ThreadSummaryDTO, 0, len(groups))
	senderIDs := make([]uint64, 0)
	for _, g := range groups {
		unread := 0
		for _, m := range g.Messages {
			if !readState[m.ID] {
				unread++
			}
		}
		threads = append(threads, ThreadSummaryDTO{
			ThreadID:     g.Key,
			MessageType:  g.Latest.MessageType,
			Subject:      g.Latest.Subject,
			Snippet:      snippet(g.Latest.Content),
			SenderID:     g.Latest.SenderID,
			MessageCount: len(g.Messages),
			UnreadCount:  unread,
			LatestAt:     g.Latest.CreatedAt,
		})
		for _, m := range g.Messages {
			if m.SenderID != nil {
				senderIDs = append(senderIDs, *m.SenderID)
			}
		}
	}

	profiles, err := s.loadProfiles(senderIDs)
	if err != nil {
		return nil, err
	}
	return &InboxResult{Threads: threads, Profiles: profiles}, nil
}

// GetThread 会话详情。
// 鉴权：viewer 必须是会话中某条消息的发送者、收件人或 targeting 受众，否则 404。
// 副作用：返回前把 viewer 在该会话内所有未读台账行标记为已读（同一响应周期内完成，
// 不做延迟，保证随后的未读数查询立即一致）。
func (s *ThreadService) GetThread(viewerID, threadID uint64) (*ThreadViewDTO, error) {
	all, err := s.messageDAO.FindThread(threadID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}

	msgIDs := make([]uint64, 0, len(all))
	for _, m := range all {
		msgIDs = append(msgIDs, m.ID)
	}
	recRows, err := s.recipientDAO.FindByMessageIDs(viewerID, msgIDs)
	if err != nil {
		return nil, err
	}
	recByMsg := make(map[uint64]models.MessageRecipient, len(recRows))
	for _, r := range recRows {
		recByMsg[r.MessageID] = r
	}
	disRows, err := s.dismissalDAO.FindByMessageIDs(viewerID, msgIDs)
	if err != nil {
		return nil, err
	}
	disByMsg := make(map[uint64]models.BroadcastDismissal, len(disRows))
	for _, d := range disRows {
		disByMsg[d.MessageID] = d
	}

	// 可见消息筛选 + 会话成员资格判定
	visible := make([]models.Message, 0, len(all))
	authorized := false
	unreadPrivateIDs := make([]uint64, 0)
	for _, m := range all {
		if m.SenderID != nil && *m.SenderID == viewerID {
			authorized = true
			visible = append(visible, m)
			continue
		}
		if models.IsBroadcastType(m.MessageType) {
			ok, err := s.Targeting.UserMatchesTargeting(&m, viewerID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			authorized = true
			if d, has := disByMsg[m.ID]; has && d.DismissedAt != nil {
				continue
			}
			visible = append(visible, m)
			continue
		}
		// private/system：要有未删除的台账行
		r, has := recByMsg[m.ID]
		if !has || r.DeletedAt != nil {
			continue
		}
		authorized = true
		visible = append(visible, m)
		if !r.IsRead {
			unreadPrivateIDs = append(unreadPrivateIDs, m.ID)
		}
	}
	if !authorized || len(visible) == 0 {
		return nil, ErrNotFound
	}

	// 读操作里唯一必须的写副作用：响应返回前完成已读标记
	if len(unreadPrivateIDs) > 0 {
		if err := s.recipientDAO.MarkRead(viewerID, unreadPrivateIDs, time.Now()); err != nil {
			return nil, err
		}
	}

	root := visible[0]
	for _, m := range all {
		if m.ID == threadID {
			root = m
			break
		}
	}
	canReply := true
	if models.IsBroadcastType(root.MessageType) {
		canReply, err = s.Targeting.CanReplyToBroadcast(&root, viewerID)
		if err != nil {
			return nil, err
		}
	}

	dtos := make([]MessageDTO, 0, len(visible))
	senderIDs := make([]uint64, 0, len(visible))
	for i := range visible {
		dtos = append(dtos, *ToMessageDTO(&visible[i]))
		if visible[i].SenderID != nil {
			senderIDs = append(senderIDs, *visible[i].SenderID)
		}
	}
	profiles, err := s.loadProfiles(senderIDs)
	if err != nil {
		return nil, err
	}

	return &ThreadViewDTO{
		ThreadID: threadID,
		Messages: dtos,
		Profiles: profiles,
		Meta:     ThreadMeta{CanReply: canReply},
	}, nil
}

// GetSent 发件箱：逐条消息（不聚合会话），带解析后的收件人列表。
// 发件箱隔离：只看 sender_archived_at/sender_deleted_at，不碰任何收件人台账。
func (s *ThreadService) GetSent(senderID uint64, typeFilter, search string) (*SentResult, error) {
	if !validTypeFilter(typeFilter) {
		return nil, validationError("unsupported type filter: " + typeFilter)
	}

	var msgs []models.Message
	err := s.DB.Where("sender_id = ? AND sender_deleted_at IS NULL AND sender_archived_at IS NULL", senderID).
		Order("created_at DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	filtered := msgs[:0]
	for _, m := range msgs {
		if typeFilter != "" && typeFilter != typeFilterAll && m.MessageType != typeFilter {
			continue
		}
		if !matchesSearch(&m, search) {
			continue
		}
		filtered = append(filtered, m)
	}

	out, err := s.annotateRecipients(filtered, senderID)
	if err != nil {
		return nil, err
	}

	recipientIDs := make([]uint64, 0)
	for _, item := range out {
		recipientIDs = append(recipientIDs, item.Recipients...)
	}
	profiles, err := s.loadProfiles(recipientIDs)
	if err != nil {
		return nil, err
	}
	return &SentResult{Messages: out, Profiles: profiles}, nil
}

// annotateRecipients 为发件箱条目补收件人：私信读台账，广播按落库 targeting 重新解析。
func (s *ThreadService) annotateRecipients(msgs []models.Message, senderID uint64) ([]SentMessageDTO, error) {
	privateIDs := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		if !models.IsBroadcastType(m.MessageType) {
			privateIDs = append(privateIDs, m.ID)
		}
	}
	ledger, err := s.recipientDAO.ListRecipientIDs(privateIDs)
	if err != nil {
		return nil, err
	}

	out := make([]SentMessageDTO, 0, len(msgs))
	for i := range msgs {
		m := msgs[i]
		item := SentMessageDTO{MessageDTO: *ToMessageDTO(&m)}
		if models.IsBroadcastType(m.MessageType) {
			ids, err := s.Targeting.ResolveRecipients(m.MessageType, m.TargetClanID,
				DecodeLabels(m.TargetRanks), DecodeLabels(m.TargetRoles), senderID)
			if err != nil {
				return nil, err
			}
			item.Recipients = ids
		} else {
			item.Recipients = ledger[m.ID]
		}
		if item.Recipients == nil {
			item.Recipients = []uint64{}
		}
		item.RecipientCount = len(item.Recipients)
		out = append(out, item)
	}
	return out, nil
}

func (s *ThreadService) loadProfiles(userIDs []uint64) (map[uint64]SenderDTO, error) {
	out := make(map[uint64]SenderDTO)
	if len(userIDs) == 0 {
		return out, nil
	}
	uniq := make(map[uint64]struct{}, len(userIDs))
	ids := make([]uint64, 0, len(userIDs))
	for _, id := range userIDs {
		if id == 0 {
			continue
		}
		if _, ok := uniq[id]; ok {
			continue
		}
		uniq[id] = struct{}{}
		ids = append(ids, id)
	}
	var users []models.User
	if err := s.DB.Select("id, username, nickname, avatar").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = *toSenderDTO(&users[i])
	}
	return out, nil
}

func snippet(content string) string {
	const max = 120
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
