package repository

import (
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DismissalDAO 封装广播台账（BroadcastDismissal）的数据库操作。
//
// 与 RecipientDAO 的关键差异：行是懒创建的。广播发送时不写台账，
// 用户第一次归档/移除时才 upsert 一行；查不到行是合法状态（未读、未归档、未移除），
// 不是错误，也不要用零值行兜底。
type DismissalDAO struct {
	db *gorm.DB
}

func NewDismissalDAO(db *gorm.DB) *DismissalDAO {
	return &DismissalDAO{db: db}
}

// WithDB 用于在事务（tx）中复用 DAO
func (dao *DismissalDAO) WithDB(db *gorm.DB) *DismissalDAO {
	if db == nil {
		return dao
	}
	return &DismissalDAO{db: db}
}

// FindByUser 用户所有有过动作的台账行
func (dao *DismissalDAO) FindByUser(userID uint64) ([]models.BroadcastDismissal, error) {
	var rows []models.BroadcastDismissal
	err := dao.db.Where("user_id = ?", userID).Find(&rows).Error
	return rows, err
}

// FindArchivedByUser 用户已归档且未移除的台账行
func (dao *DismissalDAO) FindArchivedByUser(userID uint64) ([]models.BroadcastDismissal, error) {
	var rows []models.BroadcastDismissal
	err := dao.db.Where("user_id = ? AND archived_at IS NOT NULL AND dismissed_at IS NULL", userID).
		Find(&rows).Error
	return rows, err
}

// FindByMessageIDs 指定消息集合下，某用户的台账行（缺行 = 无动作）
func (dao *DismissalDAO) FindByMessageIDs(userID uint64, messageIDs []uint64) ([]models.BroadcastDismissal, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var rows []models.BroadcastDismissal
	err := dao.db.Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Find(&rows).Error
	return rows, err
}

// UpsertArchived 归档：行不存在则创建（首次动作），存在则置 archived_at。
func (dao *DismissalDAO) UpsertArchived(userID uint64, messageIDs []uint64, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	rows := make([]models.BroadcastDismissal, 0, len(messageIDs))
	for _, mid := range messageIDs {
		rows = append(rows, models.BroadcastDismissal{
			MessageID:  mid,
			UserID:     userID,
			ArchivedAt: &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	// 唯一键 (message_id, user_id) 冲突时只更新 archived_at
	return dao.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"archived_at": now, "updated_at": now}),
	}).Create(&rows).Error
}

// ClearArchived 取消归档：只更新已存在的行。没有行就没有可取消的归档，静默跳过。
func (dao *DismissalDAO) ClearArchived(userID uint64, messageIDs []uint64, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return dao.db.Model(&models.BroadcastDismissal{}).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Updates(map[string]any{"archived_at": nil, "updated_at": now}).Error
}

// UpsertDismissed 移除（收件侧删除的广播等价物）：行不存在则创建。
func (dao *DismissalDAO) UpsertDismissed(userID uint64, messageIDs []uint64, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	rows := make([]models.BroadcastDismissal, 0, len(messageIDs))
	for _, mid := range messageIDs {
		rows = append(rows, models.BroadcastDismissal{
			MessageID:   mid,
			UserID:      userID,
			DismissedAt: &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return dao.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"dismissed_at": now, "updated_at": now}),
	}).Create(&rows).Error
}
