package service

import (
	"log"
	"strings"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"gorm.io/gorm/clause"
)

const (
	minSearchTermLen = 2
	maxSearchTermLen = 64
)

// RecipientSearchService 收件人搜索（私信撰写时的候选列表）
type RecipientSearchService struct {
	*Service
}

func NewRecipientSearchService(s *Service) *RecipientSearchService {
	log.Println("NewRecipientSearchService")
	return &RecipientSearchService{Service: s}
}

// SearchRecipients 按关键词搜索候选收件人。
// 排序：username 精确命中排最前，其余按 username 字母序；不含搜索者自己。
func (s *RecipientSearchService) SearchRecipients(keyword string, currentUserID uint64, limit int) ([]SenderDTO, error) {
	keyword = strings.TrimSpace(keyword)
	if len(keyword) < minSearchTermLen {
		return nil, validationError("search term must be at least 2 characters")
	}
	if len(keyword) > maxSearchTermLen {
		return nil, validationError("search term too long")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	like := "%" + keyword + "%"
	var users []models.User
	err := s.DB.Model(&models.User{}).
		Select("id, username, nickname, avatar").
		Where("id <> ?", currentUserID).
		Where("username LIKE ? OR nickname LIKE ?", like, like).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "username = ? DESC, username ASC",
			Vars:               []interface{}{keyword},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	out := make([]SenderDTO, 0, len(users))
	for i := range users {
		out = append(out, *toSenderDTO(&users[i]))
	}
	return out, nil
}
