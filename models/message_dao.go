package models

import (
	"gorm.io/gorm"
)

// MessageDAO 封装 Message 相关的数据库操作
type MessageDAO struct {
	db *gorm.DB
}

// NewMessageDAO 创建 MessageDAO 实例
func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{db: db}
}

// WithDB 用于在事务（tx）中复用 DAO
func (dao *MessageDAO) WithDB(db *gorm.DB) *MessageDAO {
	if db == nil {
		return dao
	}
	return &MessageDAO{db: db}
}

// Create 创建消息
func (dao *MessageDAO) Create(msg *Message) error {
	return dao.db.Create(msg).Error
}

// FindByID 根据ID查找消息
func (dao *MessageDAO) FindByID(id uint64) (*Message, error) {
	var msg Message
	err := dao.db.Where("id = ?", id).First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindThread 获取一个会话的全部消息（根 + 回复），按发送时间升序
func (dao *MessageDAO) FindThread(threadID uint64) ([]Message, error) {
	var messages []Message
	err := dao.db.Where("id = ? OR thread_id = ?", threadID, threadID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// FindByThreadIDs 展开一批会话 ID 为底层消息行（根和回复都命中）。
// 批量归档/删除用：后续按 message_type 分流到不同台账。
func (dao *MessageDAO) FindByThreadIDs(threadIDs []uint64) ([]Message, error) {
	var messages []Message
	err := dao.db.Where("id IN ? OR thread_id IN ?", threadIDs, threadIDs).
		Find(&messages).Error
	return messages, err
}

// FindBySenderID 发件箱消息（未被发送者删除），按发送时间倒序
func (dao *MessageDAO) FindBySenderID(senderID uint64) ([]Message, error) {
	var messages []Message
	err := dao.db.Where("sender_id = ? AND sender_deleted_at IS NULL", senderID).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}
