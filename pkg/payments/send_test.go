package payments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustNewSendFlow(test *testing.T, engine Engine, sent SentStore, courier Messenger, options ...SendFlowOption) *SendFlow {
	test.Helper()
	workflow := mustNewWorkflow(test, engine)
	flow, err := NewSendFlow(workflow, sent, courier, fixedClock(2_000), options...)
	if err != nil {
		test.Fatalf("new send flow: %v", err)
	}
	return flow
}

func TestConfirmSendRecordsAndDelivers(test *testing.T) {
	test.Parallel()
	engine := &stubEngine{token: "cashuBtoken"}
	sent := &stubSentStore{}
	courier := &stubMessenger{}
	flow := mustNewSendFlow(test, engine, sent, courier)

	recipient := Recipient{ID: "peer-9", DisplayName: "Carol"}
	if err := flow.ConfirmSend(context.Background(), recipient, 120, "lunch"); err != nil {
		test.Fatalf("confirm send: %v", err)
	}

	if len(sent.records) != 1 {
		test.Fatalf("expected 1 sent record, got %d", len(sent.records))
	}
	record := sent.records[0]
	if record.AmountSats != 120 {
		test.Fatalf("expected amount 120, got %d", record.AmountSats)
	}
	if record.CreatedAtMs != 2_000 {
		test.Fatalf("expected clock timestamp, got %d", record.CreatedAtMs)
	}
	if record.Memo != "Sent ecash|rid:peer-9|name:Carol" {
		test.Fatalf("unexpected memo %q", record.Memo)
	}
	if len(courier.bodies) != 1 || courier.bodies[0] != "cashuBtoken" {
		test.Fatalf("expected token delivered as message body, got %v", courier.bodies)
	}
	if courier.recipients[0] != "peer-9" {
		test.Fatalf("unexpected recipient %q", courier.recipients[0])
	}
}

func TestConfirmSendRejectsNonPositiveAmount(test *testing.T) {
	test.Parallel()
	flow := mustNewSendFlow(test, &stubEngine{token: "t"}, &stubSentStore{}, &stubMessenger{})

	err := flow.ConfirmSend(context.Background(), Recipient{ID: "p"}, 0, "")
	if !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestConfirmSendRequiresRecipient(test *testing.T) {
	test.Parallel()
	flow := mustNewSendFlow(test, &stubEngine{token: "t"}, &stubSentStore{}, &stubMessenger{})

	err := flow.ConfirmSend(context.Background(), Recipient{}, 10, "")
	if !errors.Is(err, ErrNoRecipient) {
		test.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestConfirmSendFailsWhenTokenCreationFails(test *testing.T) {
	test.Parallel()
	engine := &stubEngine{tokenErr: errors.New("wallet locked")}
	sent := &stubSentStore{}
	courier := &stubMessenger{}
	flow := mustNewSendFlow(test, engine, sent, courier)

	err := flow.ConfirmSend(context.Background(), Recipient{ID: "p"}, 10, "")
	if !errors.Is(err, ErrEngine) {
		test.Fatalf("expected ErrEngine, got %v", err)
	}
	if len(sent.records) != 0 {
		test.Fatalf("no record must be written for a failed token")
	}
	if len(courier.bodies) != 0 {
		test.Fatalf("no message must be sent for a failed token")
	}
}

func TestConfirmSendSurvivesLedgerWriteFailure(test *testing.T) {
	test.Parallel()
	engine := &stubEngine{token: "cashuBtok"}
	sent := &stubSentStore{addErr: errors.New("db locked")}
	courier := &stubMessenger{}
	logger := &recordingLogger{}
	flow := mustNewSendFlow(test, engine, sent, courier, WithSendFlowLogger(logger))

	if err := flow.ConfirmSend(context.Background(), Recipient{ID: "p"}, 10, ""); err != nil {
		test.Fatalf("ledger write failure must not fail the send: %v", err)
	}
	if len(courier.bodies) != 1 {
		test.Fatalf("expected the token still delivered, got %d messages", len(courier.bodies))
	}
	recovered := false
	for _, entry := range logger.byOperation(operationConfirmSend) {
		if errors.Is(entry.Error, ErrRecoverableWrite) {
			recovered = true
		}
	}
	if !recovered {
		test.Fatalf("expected a recoverable-write log entry")
	}
}

func TestConfirmSendReturnsDeliveryFailure(test *testing.T) {
	test.Parallel()
	engine := &stubEngine{token: "cashuBtok"}
	sent := &stubSentStore{}
	courier := &stubMessenger{sendErr: errors.New("peer unreachable")}
	flow := mustNewSendFlow(test, engine, sent, courier)

	err := flow.ConfirmSend(context.Background(), Recipient{ID: "p"}, 10, "")
	if err == nil {
		test.Fatalf("expected delivery failure to surface")
	}
	// The sent record stays: the token left the wallet regardless of
	// whether the message arrived.
	if len(sent.records) != 1 {
		test.Fatalf("expected sent record kept, got %d", len(sent.records))
	}
}

func TestConfirmSendAsyncDeliversOutcome(test *testing.T) {
	test.Parallel()
	flow := mustNewSendFlow(test, &stubEngine{token: "tok"}, &stubSentStore{}, &stubMessenger{})

	select {
	case outcome := <-flow.ConfirmSendAsync(context.Background(), Recipient{ID: "p"}, 5, ""):
		if outcome.State != WorkflowSucceeded || outcome.Err != nil {
			test.Fatalf("unexpected outcome %+v", outcome)
		}
	case <-time.After(time.Second):
		test.Fatalf("timed out waiting for async outcome")
	}
}
