package payments

import "testing"

func TestSameItemComparesIdentityOnly(test *testing.T) {
	test.Parallel()
	left := ActivityItem{ID: "item-1", TimestampMs: 100, AmountSats: 10, Kind: KindSent}
	right := ActivityItem{ID: "item-1", TimestampMs: 200, AmountSats: -30, Kind: KindReceived}

	if !left.SameItem(right) {
		test.Fatalf("items sharing an id must be the same item")
	}
	if left.SameItem(ActivityItem{ID: "item-2"}) {
		test.Fatalf("items with distinct ids must not be the same item")
	}
}

func TestSameContentsComparesBeyondIdentity(test *testing.T) {
	test.Parallel()
	base := ActivityItem{ID: "item-1", TimestampMs: 100, AmountSats: -40, Kind: KindSent, IsWithdrawal: true}

	identical := base
	identical.ID = "item-2"
	if !base.SameContents(identical) {
		test.Fatalf("content equality must ignore the id")
	}

	changed := base
	changed.AmountSats = -41
	if base.SameContents(changed) {
		test.Fatalf("an amount change must break content equality")
	}

	retyped := base
	retyped.Kind = KindCompleted
	if base.SameContents(retyped) {
		test.Fatalf("a kind change must break content equality")
	}
}
