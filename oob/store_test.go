package oob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goAuthForm "github.com/MrEthical07/goAuthForm"
)

func newStoreTest(t *testing.T) (*Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb).WithPollInterval(5 * time.Millisecond)
	return store, func() {
		rdb.Close()
		mr.Close()
	}
}

func testRecord() *Record {
	return &Record{
		RequestID: "req-1",
		Username:  "alice@example.com",
		Action:    goAuthForm.ActionLogIn,
		Token:     "tok-abc",
	}
}

func TestPublishConsumeRoundTrip(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Publish(ctx, testRecord()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	record, err := store.Consume(ctx, "req-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.Username != "alice@example.com" || record.Token != "tok-abc" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Action != goAuthForm.ActionLogIn {
		t.Fatalf("unexpected action %v", record.Action)
	}
	if record.CompletedAt == 0 {
		t.Fatal("CompletedAt not stamped")
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Publish(ctx, testRecord()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := store.Consume(ctx, "req-1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := store.Consume(ctx, "req-1"); !errors.Is(err, ErrCompletionNotFound) {
		t.Fatalf("expected ErrCompletionNotFound, got %v", err)
	}
}

func TestConsumeMissing(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()

	if _, err := store.Consume(context.Background(), "absent"); !errors.Is(err, ErrCompletionNotFound) {
		t.Fatalf("expected ErrCompletionNotFound, got %v", err)
	}
}

func TestPublishRequiresRequestID(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()

	record := testRecord()
	record.RequestID = ""
	if err := store.Publish(context.Background(), record); err == nil {
		t.Fatal("expected missing request id error")
	}
}

func TestAwaitPicksUpLatePublish(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.Publish(ctx, testRecord())
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	record, err := store.Await(waitCtx, "req-1")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if record.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", record.RequestID)
	}
}

func TestAwaitStopsOnContextCancel(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := store.Await(ctx, "never"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestFormRelayAdaptsCompletion(t *testing.T) {
	store, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	record := testRecord()
	record.Action = goAuthForm.ActionRegister
	if err := store.Publish(ctx, record); err != nil {
		t.Fatalf("publish: %v", err)
	}

	relay := NewFormRelay(store)
	completion, err := relay.Await(ctx, "req-1")
	if err != nil {
		t.Fatalf("relay await: %v", err)
	}
	if completion.Action != goAuthForm.ActionRegister || completion.Username != "alice@example.com" {
		t.Fatalf("unexpected completion %+v", completion)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := decodeCompletionRecord([]byte{99, 0, 0, 0}); err == nil {
		t.Fatal("expected version mismatch error")
	}
}
