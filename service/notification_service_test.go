package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LinkesAuge/clanmsg-sdk/cons"
)

func TestPublishMessageEvent_DedupesAndExcludesActor(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	pushed := make(map[uint64]int)
	base := &Service{DB: db, TablePrefix: "cm_", WsNotifier: func(uid uint64, _ []byte) { pushed[uid]++ }}
	ns := NewNotificationService(base)

	// 收件人 [2,2,1,3]，actor=1：落库和推送都只有 2 和 3
	mock.ExpectExec("INSERT INTO `cm_notification` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 2))

	eventUUID, err := ns.PublishMessageEvent(cons.EventMessageReceived, 1,
		map[string]any{"message_id": 100}, []uint64{2, 2, 1, 3})
	if err != nil {
		t.Fatalf("PublishMessageEvent: %v", err)
	}
	if eventUUID == "" {
		t.Fatal("expected a non-empty event uuid")
	}
	if pushed[1] != 0 || pushed[2] != 1 || pushed[3] != 1 {
		t.Fatalf("unexpected push fan-out: %v", pushed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPublishMessageEvent_NoRecipients(t *testing.T) {
	ns := NewNotificationService(&Service{})

	// 空收件人不落库不推送
	uuid, err := ns.PublishMessageEvent(cons.EventBroadcastPublished, 1, nil, nil)
	if err != nil {
		t.Fatalf("PublishMessageEvent: %v", err)
	}
	if uuid != "" {
		t.Fatalf("no recipients means no event, got uuid %q", uuid)
	}
}

func TestPushPayloadShape(t *testing.T) {
	var captured []byte
	base := &Service{WsNotifier: func(_ uint64, b []byte) { captured = b }}
	ns := NewNotificationService(base)

	ns.pushToUsers("uuid-1", cons.EventThreadReply, 9, nil, time.Now().UTC(), []uint64{2})

	var env struct {
		Type      string `json:"type"`
		EventUUID string `json:"event_uuid"`
		ActorID   uint64 `json:"actor_id"`
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(captured, &env); err != nil {
		t.Fatalf("push payload is not valid JSON: %v", err)
	}
	if env.Type != cons.EventNotification || env.EventUUID != "uuid-1" || env.ActorID != 9 || env.EventType != cons.EventThreadReply {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}
