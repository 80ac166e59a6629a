package payments

import "testing"

func TestClassifyEntriesMapsKnownPrefixes(test *testing.T) {
	test.Parallel()
	entries := []LedgerEntry{
		{ID: "a", TimestampMs: 400, AmountSats: 100, Memo: "Pending top-up 100 sat"},
		{ID: "b", TimestampMs: 300, AmountSats: 100, Memo: "Top-up completed"},
		{ID: "c", TimestampMs: 200, AmountSats: 25, Memo: "Sent ecash|rid:peer-1|name:Alice"},
		{ID: "d", TimestampMs: 100, AmountSats: -40, Memo: "Received from|rid:peer-2|name:Bob"},
	}

	items := ClassifyEntries(entries)
	if len(items) != 4 {
		test.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[0].Kind != KindPending || items[0].AmountSats != 100 {
		test.Fatalf("unexpected pending item %+v", items[0])
	}
	if items[1].Kind != KindCompleted {
		test.Fatalf("unexpected completed item %+v", items[1])
	}
	if items[2].Kind != KindSent {
		test.Fatalf("unexpected sent item %+v", items[2])
	}
	if items[2].AmountSats != -25 {
		test.Fatalf("expected sent amount -25, got %d", items[2].AmountSats)
	}
	if items[2].PeerID != "peer-1" || items[2].PeerDisplayName != "Alice" {
		test.Fatalf("unexpected sent peer %+v", items[2])
	}
	if items[2].IsWithdrawal {
		test.Fatalf("send to a chat peer must not be a withdrawal")
	}
	if items[3].Kind != KindReceived || items[3].AmountSats != 40 {
		test.Fatalf("unexpected received item %+v", items[3])
	}
	if items[3].PeerID != "peer-2" {
		test.Fatalf("unexpected received peer %+v", items[3])
	}
}

func TestClassifyEntriesSentWithoutPeerIsWithdrawal(test *testing.T) {
	test.Parallel()
	items := ClassifyEntries([]LedgerEntry{
		{ID: "w", TimestampMs: 10, AmountSats: 500, Memo: "Sent ecash"},
	})
	if len(items) != 1 {
		test.Fatalf("expected 1 item, got %d", len(items))
	}
	if !items[0].IsWithdrawal {
		test.Fatalf("expected withdrawal flag for peerless send")
	}
	if items[0].AmountSats != -500 {
		test.Fatalf("expected negative amount, got %d", items[0].AmountSats)
	}
}

func TestClassifyEntriesNormalizesSentSign(test *testing.T) {
	test.Parallel()
	items := ClassifyEntries([]LedgerEntry{
		{ID: "neg", TimestampMs: 10, AmountSats: -30, Memo: "Sent ecash|rid:p|name:n"},
	})
	if items[0].AmountSats != -30 {
		test.Fatalf("expected sent amount -30, got %d", items[0].AmountSats)
	}
}

func TestClassifyEntriesDropsUnmatched(test *testing.T) {
	test.Parallel()
	items := ClassifyEntries([]LedgerEntry{
		{ID: "x", Memo: "Swap fee"},
		{ID: "y", Memo: ""},
		{ID: "z", TimestampMs: 5, AmountSats: 1, Memo: "Top-up completed"},
	})
	if len(items) != 1 {
		test.Fatalf("expected unmatched entries dropped, got %d items", len(items))
	}
	if items[0].ID != "z" {
		test.Fatalf("expected surviving item z, got %q", items[0].ID)
	}
}

func TestParseItemKindRejectsUnknown(test *testing.T) {
	test.Parallel()
	if _, err := ParseItemKind("bogus"); err == nil {
		test.Fatalf("expected error for unknown kind")
	}
	kind, err := ParseItemKind("sent")
	if err != nil {
		test.Fatalf("parse sent: %v", err)
	}
	if kind != KindSent {
		test.Fatalf("expected KindSent, got %v", kind)
	}
}
