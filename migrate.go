package clanmsg_sdk

import (
	"log"

	model "github.com/LinkesAuge/clanmsg-sdk/models"
)

// AutoMigrate 建表/更新表结构
func (c *MessagingEngine) AutoMigrate() error {
	db := c.config.DB
	if db == nil {
		log.Println("AutoMigrate skipped: no DB configured")
		return nil
	}
	log.Println("AutoMigrate...")
	return db.AutoMigrate(
		&model.User{},
		&model.Clan{},
		&model.ClanMember{},
		&model.Message{},
		&model.MessageRecipient{},
		&model.BroadcastDismissal{},
		&model.Notification{},
	)
}
