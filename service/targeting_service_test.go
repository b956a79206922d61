package service

import (
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LinkesAuge/clanmsg-sdk/models"
)

func TestLabelCodec(t *testing.T) {
	if EncodeLabels(nil) != nil {
		t.Error("empty labels should encode to NULL")
	}
	if EncodeLabels([]string{}) != nil {
		t.Error("zero-length labels should encode to NULL")
	}
	if DecodeLabels(nil) != nil {
		t.Error("NULL column should decode to nil")
	}

	in := []string{"veteran", "elder"}
	got := DecodeLabels(EncodeLabels(in))
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("roundtrip mismatch: %v", got)
	}
}

func TestResolveRecipients_ClanRequiresClanID(t *testing.T) {
	ts := NewTargetingService(&Service{})

	_, err := ts.ResolveRecipients(models.MessageTypeClan, nil, nil, nil, 1)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResolveRecipients_PlatformBroadcast(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()
	ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

	// 无公会范围、无过滤：全体用户，排除发送者
	mock.ExpectQuery("SELECT `id` FROM `cm_user` WHERE id <> \\?").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(2)).AddRow(uint64(3)))

	ids, err := ts.ResolveRecipients(models.MessageTypeBroadcast, nil, nil, nil, 1)
	if err != nil {
		t.Fatalf("ResolveRecipients: %v", err)
	}
	if !reflect.DeepEqual(ids, []uint64{2, 3}) {
		t.Fatalf("unexpected recipients: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestResolveRecipients_ClanFiltersAndExcludesSender(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()
	ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

	clanID := uint64(10)
	mock.ExpectQuery("SELECT DISTINCT `user_id` FROM `cm_clan_member` WHERE status = \\? AND clan_id = \\? AND rank IN \\(\\?\\)").
		WithArgs(models.MemberStatusActive, clanID, "veteran").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).
			AddRow(uint64(1)). // 发送者自己，必须被剔除
			AddRow(uint64(4)).
			AddRow(uint64(5)))

	ids, err := ts.ResolveRecipients(models.MessageTypeClan, &clanID, []string{"veteran"}, nil, 1)
	if err != nil {
		t.Fatalf("ResolveRecipients: %v", err)
	}
	if !reflect.DeepEqual(ids, []uint64{4, 5}) {
		t.Fatalf("unexpected recipients: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestResolveRecipients_EmptyAudienceIsNotError(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()
	ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

	clanID := uint64(10)
	mock.ExpectQuery("SELECT DISTINCT `user_id` FROM `cm_clan_member`").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	ids, err := ts.ResolveRecipients(models.MessageTypeClan, &clanID, nil, nil, 1)
	if err != nil {
		t.Fatalf("zero recipients should be a valid result, got error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty audience, got %v", ids)
	}
}

func TestResolveRecipients_StoreErrorWrapped(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()
	ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

	clanID := uint64(10)
	mock.ExpectQuery("SELECT DISTINCT `user_id` FROM `cm_clan_member`").
		WillReturnError(errors.New("connection refused"))

	_, err := ts.ResolveRecipients(models.MessageTypeClan, &clanID, nil, nil, 1)
	if !errors.Is(err, ErrTargetingUnavailable) {
		t.Fatalf("expected ErrTargetingUnavailable, got %v", err)
	}
}

func TestUserMatchesTargeting(t *testing.T) {
	t.Run("NonBroadcastNeverMatches", func(t *testing.T) {
		ts := NewTargetingService(&Service{})
		ok, err := ts.UserMatchesTargeting(&models.Message{MessageType: models.MessageTypePrivate}, 1)
		if err != nil || ok {
			t.Fatalf("private message should never match targeting (ok=%v, err=%v)", ok, err)
		}
	})

	t.Run("UnfilteredPlatformBroadcast", func(t *testing.T) {
		ts := NewTargetingService(&Service{})
		ok, err := ts.UserMatchesTargeting(&models.Message{MessageType: models.MessageTypeBroadcast}, 1)
		if err != nil || !ok {
			t.Fatalf("unfiltered platform broadcast should match everyone (ok=%v, err=%v)", ok, err)
		}
	})

	t.Run("ClanScoped", func(t *testing.T) {
		db, mock, sqldb := newMockDB(t)
		defer func() { _ = sqldb.Close() }()
		ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

		clanID := uint64(10)
		msg := &models.Message{
			MessageType:  models.MessageTypeClan,
			TargetClanID: &clanID,
			TargetRanks:  EncodeLabels([]string{"veteran"}),
		}

		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `cm_clan_member` WHERE user_id = \\? AND status = \\? AND clan_id = \\? AND rank IN \\(\\?\\)").
			WithArgs(uint64(7), models.MemberStatusActive, clanID, "veteran").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

		ok, err := ts.UserMatchesTargeting(msg, 7)
		if err != nil {
			t.Fatalf("UserMatchesTargeting: %v", err)
		}
		if !ok {
			t.Fatal("active veteran of target clan should match")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("sql expectations: %v", err)
		}
	})
}

func TestCanReplyToBroadcast_ContentManager(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()
	ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

	mock.ExpectQuery("SELECT id, role FROM `cm_user`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).AddRow(uint64(7), models.RoleContentManager))

	ok, err := ts.CanReplyToBroadcast(&models.Message{MessageType: models.MessageTypeBroadcast}, 7)
	if err != nil {
		t.Fatalf("CanReplyToBroadcast: %v", err)
	}
	if !ok {
		t.Fatal("content manager should be allowed to reply")
	}
}

func TestCanReplyToBroadcast_PlainMemberOnPlatformBroadcast(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()
	ts := NewTargetingService(&Service{DB: db, TablePrefix: "cm_"})

	mock.ExpectQuery("SELECT id, role FROM `cm_user`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).AddRow(uint64(7), models.RoleMember))

	// 平台广播没有目标公会，普通成员没有任何回复通道
	ok, err := ts.CanReplyToBroadcast(&models.Message{MessageType: models.MessageTypeBroadcast}, 7)
	if err != nil {
		t.Fatalf("CanReplyToBroadcast: %v", err)
	}
	if ok {
		t.Fatal("plain member must not reply to a platform broadcast")
	}
}
