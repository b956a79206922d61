package service

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"gorm.io/datatypes"
)

// TargetingService 广播/公会消息的受众解析。
//
// 两个方向：
//   - 发送时：ResolveRecipients 把 targeting 字段展开成具体 user_id 集合；
//   - 查看时：UserMatchesTargeting 针对单个用户重新推导是否在受众内，
//     避免为了鉴权把整个受众再解析一遍。
type TargetingService struct {
	*Service
}

func NewTargetingService(s *Service) *TargetingService {
	log.Println("NewTargetingService")
	return &TargetingService{Service: s}
}

// EncodeLabels 把标签数组编码为 JSON 列值；空数组落 NULL（全空 = 面向全体）。
func EncodeLabels(labels []string) datatypes.JSON {
	if len(labels) == 0 {
		return nil
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// DecodeLabels 解码 JSON 列值为标签数组；NULL/空视为无过滤
func DecodeLabels(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil
	}
	return labels
}

// ResolveRecipients 计算 broadcast/clan 发送的具体收件人集合。
// - clan 类型必须有 clanID；
// - broadcast 无公会范围时面向全平台（无过滤 = 全体用户；有 rank/role 过滤 = 全部公会里匹配的成员）；
// - 发送者自己不在结果里；空结果是合法的（受众为零），由调用方分支处理，不在这里报错。
// 成员查询失败包装为 ErrTargetingUnavailable，调用方必须按服务端错误返回。
func (s *TargetingService) ResolveRecipients(messageType string, clanID *uint64, ranks, roles []string, senderID uint64) ([]uint64, error) {
	if messageType == models.MessageTypeClan && (clanID == nil || *clanID == 0) {
		return nil, validationError("clan_id is required for clan messages")
	}

	// 平台级广播且无任何过滤：全体用户
	if messageType == models.MessageTypeBroadcast && (clanID == nil || *clanID == 0) && len(ranks) == 0 && len(roles) == 0 {
		var ids []uint64
		err := s.DB.Model(&models.User{}).
			Where("id <> ?", senderID).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTargetingUnavailable, err)
		}
		return ids, nil
	}

	q := s.DB.Model(&models.ClanMember{}).
		Where("status = ?", models.MemberStatusActive)
	if clanID != nil && *clanID > 0 {
		q = q.Where("clan_id = ?", *clanID)
	}
	if len(ranks) > 0 {
		q = q.Where("rank IN ?", ranks)
	}
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}

	var ids []uint64
	if err := q.Distinct().Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetingUnavailable, err)
	}

	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == senderID {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// UserMatchesTargeting 针对已落库消息的 targeting 字段，判断单个用户是否在受众内。
// 查看/会话鉴权用。非 broadcast/clan 消息永远返回 false（它们走 recipient 台账）。
func (s *TargetingService) UserMatchesTargeting(msg *models.Message, userID uint64) (bool, error) {
	if msg == nil || userID == 0 || !models.IsBroadcastType(msg.MessageType) {
		return false, nil
	}

	ranks := DecodeLabels(msg.TargetRanks)
	roles := DecodeLabels(msg.TargetRoles)

	// 全平台广播无过滤：人人可见
	if msg.MessageType == models.MessageTypeBroadcast && (msg.TargetClanID == nil || *msg.TargetClanID == 0) && len(ranks) == 0 && len(roles) == 0 {
		return true, nil
	}

	q := s.DB.Model(&models.ClanMember{}).
		Where("user_id = ? AND status = ?", userID, models.MemberStatusActive)
	if msg.TargetClanID != nil && *msg.TargetClanID > 0 {
		q = q.Where("clan_id = ?", *msg.TargetClanID)
	}
	if len(ranks) > 0 {
		q = q.Where("rank IN ?", ranks)
	}
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrTargetingUnavailable, err)
	}
	return count > 0, nil
}

// CanReplyToBroadcast 广播/公会消息以读为主，只有内容管理员或目标公会的
// leader/officer 才能在会话里回复。决定 Thread 视图的 can_reply。
func (s *TargetingService) CanReplyToBroadcast(msg *models.Message, userID uint64) (bool, error) {
	if msg == nil || userID == 0 || !models.IsBroadcastType(msg.MessageType) {
		return false, nil
	}

	var user models.User
	if err := s.DB.Select("id, role").First(&user, userID).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrTargetingUnavailable, err)
	}
	if user.Role == models.RoleContentManager || user.Role == models.RoleAdmin {
		return true, nil
	}

	if msg.TargetClanID == nil || *msg.TargetClanID == 0 {
		return false, nil
	}
	var count int64
	err := s.DB.Model(&models.ClanMember{}).
		Where("clan_id = ? AND user_id = ? AND status = ? AND role IN ?",
			*msg.TargetClanID, userID, models.MemberStatusActive,
			[]string{models.ClanRoleLeader, models.ClanRoleOfficer}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTargetingUnavailable, err)
	}
	return count > 0, nil
}

// HasBroadcastPrivilege 发送广播/公会消息的权限闸门（非回复场景）。
func (s *TargetingService) HasBroadcastPrivilege(userID uint64) (bool, error) {
	var user models.User
	if err := s.DB.Select("id, role").First(&user, userID).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrTargetingUnavailable, err)
	}
	return user.Role == models.RoleContentManager || user.Role == models.RoleAdmin, nil
}
