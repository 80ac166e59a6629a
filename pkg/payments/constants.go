package payments

// ErrorToken is the sentinel returned by CreateSendToken when token creation
// fails. Callers must check for it explicitly: by the time the failure is
// known, downstream composition may already have happened.
const ErrorToken = "cashu:token:error"

// Memo prefixes recognized by the classifier. First match wins.
const (
	MemoPrefixPendingTopUp   = "Pending top-up"
	MemoPrefixCompletedTopUp = "Top-up completed"
	MemoPrefixSentEcash      = "Sent ecash"
	MemoPrefixReceivedFrom   = "Received from"
)

const (
	memoFieldDelimiter = "|"
	memoPeerIDPrefix   = "rid:"
	memoPeerNamePrefix = "name:"

	// U+2758 LIGHT VERTICAL BAR stands in for the delimiter inside names
	// so the memo format stays injective.
	memoDelimiterEscape = "❘"
)

const (
	operationMintQuote   = "mint_quote"
	operationMeltQuote   = "melt_quote"
	operationMelt        = "melt"
	operationSendToken   = "send_token"
	operationConfirmSend = "confirm_send"
	operationImport      = "import_token"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorSubjectEngine    = "engine"
	errorSubjectQuote     = "quote"
	errorSubjectToken     = "token"
	errorSubjectLedger    = "ledger"
	errorSubjectRecipient = "recipient"
)

const (
	// maxClassifiedRows caps classified items in the aggregated view;
	// maxActivityRows caps all recent-activity rows including legacy
	// backfill.
	maxClassifiedRows = 4
	maxActivityRows   = 5

	historyFetchLimit = 50
)
