package service

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LinkesAuge/clanmsg-sdk/repository"
)

func TestRecipientDAO_MarkReadIsIdempotent(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	dao := repository.NewRecipientDAO(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 只更新未读且未删除的行：已读行不再被触碰，重复调用 0 行受影响
	mock.ExpectExec("UPDATE `cm_message_recipient` SET .* WHERE recipient_id = \\? AND message_id IN \\(\\?,\\?\\) AND deleted_at IS NULL AND is_read = \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(7), uint64(1), uint64(2), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := dao.MarkRead(7, []uint64{1, 2}, now); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRecipientDAO_SetArchivedSkipsDeletedRows(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	dao := repository.NewRecipientDAO(db)
	now := time.Now()

	mock.ExpectExec("UPDATE `cm_message_recipient` SET .* WHERE recipient_id = \\? AND message_id IN \\(\\?\\) AND deleted_at IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := dao.SetArchived(7, []uint64{1}, &now, now); err != nil {
		t.Fatalf("SetArchived: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRecipientDAO_EmptyIDsShortCircuit(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	dao := repository.NewRecipientDAO(db)
	now := time.Now()

	// 空集合不应产生任何 SQL
	if err := dao.SetArchived(7, nil, &now, now); err != nil {
		t.Fatalf("SetArchived: %v", err)
	}
	if err := dao.MarkRead(7, nil, now); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if affected, err := dao.SoftDelete(7, nil, now); err != nil || affected != 0 {
		t.Fatalf("SoftDelete: affected=%d err=%v", affected, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no SQL expected for empty id sets: %v", err)
	}
}

func TestDismissalDAO_UpsertArchivedLazyCreates(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	dao := repository.NewDismissalDAO(db)
	now := time.Now()

	// 懒创建：INSERT，(message_id, user_id) 冲突时只更新 archived_at
	mock.ExpectExec("INSERT INTO `cm_broadcast_dismissal` .* ON DUPLICATE KEY UPDATE `archived_at`=.*`updated_at`=").
		WillReturnResult(sqlmock.NewResult(1, 2))

	if err := dao.UpsertArchived(7, []uint64{1, 2}, now); err != nil {
		t.Fatalf("UpsertArchived: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestDismissalDAO_ClearArchivedTouchesExistingOnly(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	dao := repository.NewDismissalDAO(db)

	// UPDATE 而非 upsert：没有行时 0 行受影响，不报错
	mock.ExpectExec("UPDATE `cm_broadcast_dismissal` SET .* WHERE user_id = \\? AND message_id IN \\(\\?\\)").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := dao.ClearArchived(7, []uint64{1}, time.Now()); err != nil {
		t.Fatalf("ClearArchived: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestDismissalDAO_UpsertDismissed(t *testing.T) {
	db, mock, sqldb := newMockDB(t)
	defer func() { _ = sqldb.Close() }()

	dao := repository.NewDismissalDAO(db)

	mock.ExpectExec("INSERT INTO `cm_broadcast_dismissal` .* ON DUPLICATE KEY UPDATE `dismissed_at`=.*`updated_at`=").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := dao.UpsertDismissed(7, []uint64{1}, time.Now()); err != nil {
		t.Fatalf("UpsertDismissed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
