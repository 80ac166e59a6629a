package payments

import "strings"

// EncodeMemo appends encoded peer metadata to a base memo text. With no peer
// id the base text is returned unchanged. The peer display name is escaped
// so that a delimiter inside it cannot break the format.
func EncodeMemo(base string, peerID string, peerName string) string {
	if peerID == "" {
		return base
	}
	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString(memoFieldDelimiter)
	builder.WriteString(memoPeerIDPrefix)
	builder.WriteString(peerID)
	builder.WriteString(memoFieldDelimiter)
	builder.WriteString(memoPeerNamePrefix)
	builder.WriteString(escapeMemoName(peerName))
	return builder.String()
}

// DecodeMemo extracts peer metadata from a memo. Decoding is best-effort:
// fields with unknown prefixes are ignored and malformed fragments are
// skipped. It never fails.
func DecodeMemo(memo string) (peerID string, peerName string) {
	for _, field := range strings.Split(memo, memoFieldDelimiter) {
		switch {
		case strings.HasPrefix(field, memoPeerIDPrefix):
			peerID = strings.TrimPrefix(field, memoPeerIDPrefix)
		case strings.HasPrefix(field, memoPeerNamePrefix):
			peerName = unescapeMemoName(strings.TrimPrefix(field, memoPeerNamePrefix))
		}
	}
	return peerID, peerName
}

func escapeMemoName(name string) string {
	return strings.ReplaceAll(name, memoFieldDelimiter, memoDelimiterEscape)
}

func unescapeMemoName(name string) string {
	return strings.ReplaceAll(name, memoDelimiterEscape, memoFieldDelimiter)
}
