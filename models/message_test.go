package models

import "testing"

func TestMessageThreadKey(t *testing.T) {
	root := Message{ID: 10}
	if root.ThreadKey() != 10 {
		t.Fatalf("root message thread key should be its own id, got %d", root.ThreadKey())
	}

	threadID := uint64(10)
	reply := Message{ID: 11, ThreadID: &threadID}
	if reply.ThreadKey() != 10 {
		t.Fatalf("reply thread key should be the root id, got %d", reply.ThreadKey())
	}

	zero := uint64(0)
	degenerate := Message{ID: 12, ThreadID: &zero}
	if degenerate.ThreadKey() != 12 {
		t.Fatalf("zero thread_id must fall back to own id, got %d", degenerate.ThreadKey())
	}
}

func TestIsBroadcastType(t *testing.T) {
	cases := map[string]bool{
		MessageTypePrivate:   false,
		MessageTypeSystem:    false,
		MessageTypeBroadcast: true,
		MessageTypeClan:      true,
		"":                   false,
		"other":              false,
	}
	for typ, want := range cases {
		if got := IsBroadcastType(typ); got != want {
			t.Errorf("IsBroadcastType(%q) = %v, want %v", typ, got, want)
		}
	}
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():               "cm_user",
		Clan{}.TableName():               "cm_clan",
		ClanMember{}.TableName():         "cm_clan_member",
		Message{}.TableName():            "cm_message",
		MessageRecipient{}.TableName():   "cm_message_recipient",
		BroadcastDismissal{}.TableName(): "cm_broadcast_dismissal",
		Notification{}.TableName():       "cm_notification",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("table name %q, want %q", got, want)
		}
	}
}
