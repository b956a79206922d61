package service

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LinkesAuge/clanmsg-sdk/models"
)

func newThreadService(t *testing.T) (*ThreadService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, sqldb := newMockDB(t)
	base := &Service{DB: db, TablePrefix: "cm_"}
	ts := NewThreadService(base, NewTargetingService(base))
	return ts, mock, func() { _ = sqldb.Close() }
}

func mkMsg(id uint64, threadID *uint64, msgType string, createdAt time.Time) models.Message {
	return models.Message{
		ID:          id,
		ThreadID:    threadID,
		MessageType: msgType,
		Content:     "content",
		CreatedAt:   createdAt,
	}
}

func TestGroupByThread_KeyAndOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 会话 A：根 1 + 回复 3、5（乱序输入）
	// 会话 B：单条 2（无 thread_id，自己就是键）
	msgs := []models.Message{
		mkMsg(5, uintPtr(1), models.MessageTypePrivate, base.Add(40*time.Minute)),
		mkMsg(2, nil, models.MessageTypePrivate, base.Add(10*time.Minute)),
		mkMsg(1, nil, models.MessageTypePrivate, base),
		mkMsg(3, uintPtr(1), models.MessageTypePrivate, base.Add(20*time.Minute)),
	}

	groups := GroupByThread(msgs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	// 列表按最新消息倒序：会话 A 的最新是 +40min，排在 B 前面
	if groups[0].Key != 1 || groups[1].Key != 2 {
		t.Fatalf("unexpected group order: %d, %d", groups[0].Key, groups[1].Key)
	}

	// 组内升序
	a := groups[0]
	if len(a.Messages) != 3 {
		t.Fatalf("expected 3 messages in thread 1, got %d", len(a.Messages))
	}
	for i, want := range []uint64{1, 3, 5} {
		if a.Messages[i].ID != want {
			t.Errorf("thread 1 position %d: expected id %d, got %d", i, want, a.Messages[i].ID)
		}
	}
	if a.Latest.ID != 5 {
		t.Errorf("thread 1 latest: expected 5, got %d", a.Latest.ID)
	}
}

func TestGroupByThread_CompletePartition(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		mkMsg(1, nil, models.MessageTypeBroadcast, base),
		mkMsg(2, uintPtr(1), models.MessageTypePrivate, base.Add(time.Minute)),
		mkMsg(7, nil, models.MessageTypeClan, base.Add(2*time.Minute)),
		mkMsg(9, uintPtr(7), models.MessageTypeClan, base.Add(3*time.Minute)),
	}

	groups := GroupByThread(msgs)

	total := 0
	seen := make(map[uint64]bool)
	for _, g := range groups {
		for _, m := range g.Messages {
			if seen[m.ID] {
				t.Fatalf("message %d appears in more than one group", m.ID)
			}
			seen[m.ID] = true
			if m.ThreadKey() != g.Key {
				t.Errorf("message %d in group %d but thread key is %d", m.ID, g.Key, m.ThreadKey())
			}
			total++
		}
	}
	if total != len(msgs) {
		t.Fatalf("partition dropped messages: %d of %d grouped", total, len(msgs))
	}
}

func TestGroupByThread_Empty(t *testing.T) {
	if got := GroupByThread(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d groups", len(got))
	}
}

func TestValidTypeFilter(t *testing.T) {
	for _, ok := range []string{"", "all", "private", "broadcast", "clan"} {
		if !validTypeFilter(ok) {
			t.Errorf("%q should be a valid filter", ok)
		}
	}
	for _, bad := range []string{"system", "unknown", "Private"} {
		if validTypeFilter(bad) {
			t.Errorf("%q should be rejected", bad)
		}
	}
}

func TestMatchesMemberships(t *testing.T) {
	s := NewThreadService(&Service{}, nil)

	memberships := []models.ClanMember{
		{ClanID: 10, UserID: 1, Rank: "veteran", Role: models.ClanRoleMember, Status: models.MemberStatusActive},
		{ClanID: 20, UserID: 1, Rank: "recruit", Role: models.ClanRoleOfficer, Status: models.MemberStatusActive},
	}
	byClan := map[uint64]models.ClanMember{10: memberships[0], 20: memberships[1]}

	t.Run("ClanScopedRankFilter", func(t *testing.T) {
		m := models.Message{
			MessageType:  models.MessageTypeClan,
			TargetClanID: uintPtr(10),
			TargetRanks:  EncodeLabels([]string{"veteran", "elder"}),
		}
		if !s.matchesMemberships(&m, memberships, byClan) {
			t.Error("veteran of clan 10 should match")
		}

		m.TargetRanks = EncodeLabels([]string{"elder"})
		if s.matchesMemberships(&m, memberships, byClan) {
			t.Error("rank filter should exclude non-elder member")
		}
	})

	t.Run("WrongClan", func(t *testing.T) {
		m := models.Message{MessageType: models.MessageTypeClan, TargetClanID: uintPtr(99)}
		if s.matchesMemberships(&m, memberships, byClan) {
			t.Error("non-member clan should not match")
		}
	})

	t.Run("PlatformBroadcastNoFilter", func(t *testing.T) {
		m := models.Message{MessageType: models.MessageTypeBroadcast}
		if !s.matchesMemberships(&m, memberships, byClan) {
			t.Error("unfiltered platform broadcast targets everyone")
		}
		// 无过滤时 clan 类型不跨全平台
		m.MessageType = models.MessageTypeClan
		if s.matchesMemberships(&m, memberships, byClan) {
			t.Error("clan message without clan scope should not match via platform rule")
		}
	})

	t.Run("PlatformBroadcastRoleFilter", func(t *testing.T) {
		m := models.Message{
			MessageType: models.MessageTypeBroadcast,
			TargetRoles: EncodeLabels([]string{models.ClanRoleOfficer}),
		}
		// 任一公会身份命中即可（clan 20 的 officer）
		if !s.matchesMemberships(&m, memberships, byClan) {
			t.Error("officer in any clan should match role-filtered broadcast")
		}
		m.TargetRoles = EncodeLabels([]string{models.ClanRoleLeader})
		if s.matchesMemberships(&m, memberships, byClan) {
			t.Error("leader filter should exclude member/officer")
		}
	})
}

func TestSnippet(t *testing.T) {
	if got := snippet("short"); got != "short" {
		t.Fatalf("short content should pass through, got %q", got)
	}

	// 截断按 rune 数，多字节字符不能被切坏
	long := ""
	for i := 0; i < 130; i++ {
		long += "测"
	}
	got := snippet(long)
	runes := []rune(got)
	if len(runes) != 121 || runes[120] != '…' {
		t.Fatalf("expected 120 runes plus ellipsis, got %d runes", len(runes))
	}
}

func TestGetThread_MarksUnreadBeforeResponse(t *testing.T) {
	ts, mock, closeFn := newThreadService(t)
	defer closeFn()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 会话 10：根 10 + 回复 11，都是 user 1 发给 viewer 2 的私信
	msgRows := sqlmock.NewRows([]string{"id", "sender_id", "message_type", "thread_id", "content", "created_at"}).
		AddRow(uint64(10), uint64(1), models.MessageTypePrivate, nil, "root", base).
		AddRow(uint64(11), uint64(1), models.MessageTypePrivate, uint64(10), "reply", base.Add(time.Minute))
	mock.ExpectQuery("SELECT \\* FROM `cm_message` WHERE id = \\? OR thread_id = \\? ORDER BY created_at ASC").
		WithArgs(uint64(10), uint64(10)).
		WillReturnRows(msgRows)

	// 台账：根已读，回复未读
	recRows := sqlmock.NewRows([]string{"id", "message_id", "recipient_id", "is_read"}).
		AddRow(uint64(100), uint64(10), uint64(2), true).
		AddRow(uint64(101), uint64(11), uint64(2), false)
	mock.ExpectQuery("SELECT \\* FROM `cm_message_recipient` WHERE recipient_id = \\? AND message_id IN \\(\\?,\\?\\)").
		WithArgs(uint64(2), uint64(10), uint64(11)).
		WillReturnRows(recRows)
	mock.ExpectQuery("SELECT \\* FROM `cm_broadcast_dismissal` WHERE user_id = \\? AND message_id IN \\(\\?,\\?\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// 读操作里必须的写副作用：响应返回前把未读行（仅 11）置为已读
	mock.ExpectExec("UPDATE `cm_message_recipient` SET .* WHERE recipient_id = \\? AND message_id IN \\(\\?\\) AND deleted_at IS NULL AND is_read = \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(2), uint64(11), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("SELECT id, username, nickname, avatar FROM `cm_user` WHERE id IN \\(\\?\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "nickname", "avatar"}).
			AddRow(uint64(1), "alice", "", ""))

	view, err := ts.GetThread(2, 10)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if view.ThreadID != 10 || len(view.Messages) != 2 {
		t.Fatalf("unexpected view: thread %d with %d messages", view.ThreadID, len(view.Messages))
	}
	if !view.Meta.CanReply {
		t.Error("private thread should be replyable")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mark-read must fire within GetThread: %v", err)
	}
}

func TestGetThread_UnrelatedViewerIs404(t *testing.T) {
	ts, mock, closeFn := newThreadService(t)
	defer closeFn()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 会话存在，但 viewer 99 既不是发送者、也没有任何台账行
	msgRows := sqlmock.NewRows([]string{"id", "sender_id", "message_type", "thread_id", "content", "created_at"}).
		AddRow(uint64(10), uint64(1), models.MessageTypePrivate, nil, "root", base)
	mock.ExpectQuery("SELECT \\* FROM `cm_message` WHERE id = \\? OR thread_id = \\? ORDER BY created_at ASC").
		WithArgs(uint64(10), uint64(10)).
		WillReturnRows(msgRows)
	mock.ExpectQuery("SELECT \\* FROM `cm_message_recipient` WHERE recipient_id = \\? AND message_id IN \\(\\?\\)").
		WithArgs(uint64(99), uint64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT \\* FROM `cm_broadcast_dismissal` WHERE user_id = \\? AND message_id IN \\(\\?\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// 不返回空会话视图，也不泄露存在性：统一 404
	_, err := ts.GetThread(99, 10)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no ledger write expected for an unrelated viewer: %v", err)
	}
}

func TestGetInbox_RejectsBadTypeFilter(t *testing.T) {
	s := NewThreadService(&Service{}, nil)
	_, err := s.GetInbox(1, "bogus", "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
