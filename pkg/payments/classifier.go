package payments

import "strings"

// ClassifyEntries maps raw ledger entries into typed activity items,
// preserving relative order. Entries whose memo matches no known prefix are
// dropped; they belong to activity types this core does not render.
func ClassifyEntries(entries []LedgerEntry) []ActivityItem {
	items := make([]ActivityItem, 0, len(entries))
	for _, entry := range entries {
		item, matched := classifyEntry(entry)
		if matched {
			items = append(items, item)
		}
	}
	return items
}

func classifyEntry(entry LedgerEntry) (ActivityItem, bool) {
	switch {
	case strings.HasPrefix(entry.Memo, MemoPrefixPendingTopUp):
		return ActivityItem{
			ID:          entry.ID,
			TimestampMs: entry.TimestampMs,
			AmountSats:  entry.AmountSats,
			Kind:        KindPending,
		}, true
	case strings.HasPrefix(entry.Memo, MemoPrefixCompletedTopUp):
		return ActivityItem{
			ID:          entry.ID,
			TimestampMs: entry.TimestampMs,
			AmountSats:  entry.AmountSats,
			Kind:        KindCompleted,
		}, true
	case strings.HasPrefix(entry.Memo, MemoPrefixSentEcash):
		peerID, peerName := DecodeMemo(entry.Memo)
		return ActivityItem{
			ID:              entry.ID,
			TimestampMs:     entry.TimestampMs,
			AmountSats:      -absSats(entry.AmountSats),
			Kind:            KindSent,
			PeerID:          peerID,
			PeerDisplayName: peerName,
			// A send with no chat peer is an outgoing Lightning payment.
			IsWithdrawal: peerID == "",
		}, true
	case strings.HasPrefix(entry.Memo, MemoPrefixReceivedFrom):
		peerID, peerName := DecodeMemo(entry.Memo)
		return ActivityItem{
			ID:              entry.ID,
			TimestampMs:     entry.TimestampMs,
			AmountSats:      absSats(entry.AmountSats),
			Kind:            KindReceived,
			PeerID:          peerID,
			PeerDisplayName: peerName,
		}, true
	}
	return ActivityItem{}, false
}

func absSats(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}
