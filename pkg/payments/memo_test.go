package payments

import "testing"

func TestEncodeMemoWithoutPeerReturnsBase(test *testing.T) {
	test.Parallel()
	memo := EncodeMemo(MemoPrefixSentEcash, "", "ignored")
	if memo != MemoPrefixSentEcash {
		test.Fatalf("expected base memo unchanged, got %q", memo)
	}
}

func TestEncodeMemoRoundTrip(test *testing.T) {
	test.Parallel()
	memo := EncodeMemo(MemoPrefixSentEcash, "recipient-42", "Alice")
	if memo != "Sent ecash|rid:recipient-42|name:Alice" {
		test.Fatalf("unexpected memo %q", memo)
	}
	peerID, peerName := DecodeMemo(memo)
	if peerID != "recipient-42" {
		test.Fatalf("expected peer id recipient-42, got %q", peerID)
	}
	if peerName != "Alice" {
		test.Fatalf("expected peer name Alice, got %q", peerName)
	}
}

func TestEncodeMemoEscapesDelimiterInName(test *testing.T) {
	test.Parallel()
	memo := EncodeMemo(MemoPrefixSentEcash, "recipient-7", "A|B")
	peerID, peerName := DecodeMemo(memo)
	if peerID != "recipient-7" {
		test.Fatalf("expected peer id recipient-7, got %q", peerID)
	}
	if peerName != "A|B" {
		test.Fatalf("expected escaped name round trip, got %q", peerName)
	}
}

func TestDecodeMemoIgnoresUnknownFields(test *testing.T) {
	test.Parallel()
	peerID, peerName := DecodeMemo("Sent ecash|unknown:x|rid:peer-1|name:Bob|extra")
	if peerID != "peer-1" {
		test.Fatalf("expected peer id peer-1, got %q", peerID)
	}
	if peerName != "Bob" {
		test.Fatalf("expected peer name Bob, got %q", peerName)
	}
}

func TestDecodeMemoWithoutMetadata(test *testing.T) {
	test.Parallel()
	peerID, peerName := DecodeMemo("Top-up completed")
	if peerID != "" || peerName != "" {
		test.Fatalf("expected empty metadata, got %q %q", peerID, peerName)
	}
}
