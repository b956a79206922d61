package repository

import (
	"time"

	"github.com/LinkesAuge/clanmsg-sdk/models"
	"gorm.io/gorm"
)

// RecipientDAO 封装私信收件台账（MessageRecipient）的数据库操作
//
// 约定：
// - 只做“数据访问”（CRUD/查询封装），不做业务编排（权限、通知等）。
// - 事务边界应由 service 控制；如需在事务中执行，请使用 WithDB(tx)。
type RecipientDAO struct {
	db *gorm.DB
}

func NewRecipientDAO(db *gorm.DB) *RecipientDAO {
	return &RecipientDAO{db: db}
}

// WithDB 用于在事务（tx）中复用 DAO
func (dao *RecipientDAO) WithDB(db *gorm.DB) *RecipientDAO {
	if db == nil {
		return dao
	}
	return &RecipientDAO{db: db}
}

// CreateBatch 发送时按收件人批量写入台账行（未读、未归档、未删除）
func (dao *RecipientDAO) CreateBatch(messageID uint64, recipientIDs []uint64, now time.Time) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	rows := make([]models.MessageRecipient, 0, len(recipientIDs))
	for _, uid := range recipientIDs {
		if uid == 0 {
			continue
		}
		rows = append(rows, models.MessageRecipient{
			MessageID:   messageID,
			RecipientID: uid,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return dao.db.Create(&rows).Error
}

// FindActiveByRecipient 收件人所有未删除的台账行
func (dao *RecipientDAO) FindActiveByRecipient(recipientID uint64) ([]models.MessageRecipient, error) {
	var rows []models.MessageRecipient
	err := dao.db.Where("recipient_id = ? AND deleted_at IS NULL", recipientID).
		Find(&rows).Error
	return rows, err
}

// FindArchivedByRecipient 收件人已归档且未删除的台账行
func (dao *RecipientDAO) FindArchivedByRecipient(recipientID uint64) ([]models.MessageRecipient, error) {
	var rows []models.MessageRecipient
	err := dao.db.Where("recipient_id = ? AND archived_at IS NOT NULL AND deleted_at IS NULL", recipientID).
		Find(&rows).Error
	return rows, err
}

// FindByMessageIDs 指定消息集合下，某收件人的台账行
func (dao *RecipientDAO) FindByMessageIDs(recipientID uint64, messageIDs []uint64) ([]models.MessageRecipient, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var rows []models.MessageRecipient
	err := dao.db.Where("recipient_id = ? AND message_id IN ?", recipientID, messageIDs).
		Find(&rows).Error
	return rows, err
}

// ListRecipientIDs 一批消息的收件人列表（message_id -> recipient_ids），发件箱视图用
func (dao *RecipientDAO) ListRecipientIDs(messageIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var rows []models.MessageRecipient
	err := dao.db.Select("message_id, recipient_id").
		Where("message_id IN ?", messageIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.MessageID] = append(out[r.MessageID], r.RecipientID)
	}
	return out, nil
}

// SetArchived 归档/取消归档。deleted_at 已置位的行不参与更新（删掉的不能再归档）。
func (dao *RecipientDAO) SetArchived(recipientID uint64, messageIDs []uint64, archivedAt *time.Time, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return dao.db.Model(&models.MessageRecipient{}).
		Where("recipient_id = ? AND message_id IN ? AND deleted_at IS NULL", recipientID, messageIDs).
		Updates(map[string]any{"archived_at": archivedAt, "updated_at": now}).Error
}

// MarkRead 将未读行置为已读（幂等：重复调用无副作用）
func (dao *RecipientDAO) MarkRead(recipientID uint64, messageIDs []uint64, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return dao.db.Model(&models.MessageRecipient{}).
		Where("recipient_id = ? AND message_id IN ? AND deleted_at IS NULL AND is_read = ?", recipientID, messageIDs, false).
		Updates(map[string]any{"is_read": true, "updated_at": now}).Error
}

// SoftDelete 软删除：置 deleted_at，此后该行对收件人不可见且不可再操作
func (dao *RecipientDAO) SoftDelete(recipientID uint64, messageIDs []uint64, now time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := dao.db.Model(&models.MessageRecipient{}).
		Where("recipient_id = ? AND message_id IN ? AND deleted_at IS NULL", recipientID, messageIDs).
		Updates(map[string]any{"deleted_at": &now, "updated_at": now})
	return res.RowsAffected, res.Error
}
