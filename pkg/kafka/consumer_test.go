package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type funcHandler struct {
	topic string
	fn    func([]byte) error
	calls int
}

func (h *funcHandler) Topic() string { return h.topic }

func (h *funcHandler) Handle(_ context.Context, b []byte) error {
	h.calls++
	return h.fn(b)
}

type recordingCommitter struct {
	mu      sync.Mutex
	offsets []int64
}

func (r *recordingCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.offsets = append(r.offsets, m.Offset)
	}
	return nil
}

func newTestConsumer(t *testing.T, retryMax int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retryMax, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestProcessRetriesThenCommits(t *testing.T) {
	c := newTestConsumer(t, 3)
	fails := 2
	h := &funcHandler{topic: "ticks", fn: func([]byte) error {
		if fails > 0 {
			fails--
			return errors.New("clickhouse busy")
		}
		return nil
	}}
	var hookErrs int
	c.WithConsumerHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { hookErrs++ }})

	rc := &recordingCommitter{}
	c.process(h, rc, kafka.Message{Topic: "ticks", Offset: 41, Value: []byte(`{}`)})

	if h.calls != 3 {
		t.Fatalf("expected 3 handler calls, got %d", h.calls)
	}
	if hookErrs != 2 {
		t.Fatalf("expected 2 error hooks, got %d", hookErrs)
	}
	if len(rc.offsets) != 1 || rc.offsets[0] != 41 {
		t.Fatalf("expected offset 41 committed once, got %v", rc.offsets)
	}
}

func TestProcessGivesUpAfterRetryMax(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &funcHandler{topic: "ticks", fn: func([]byte) error { return errors.New("bad payload") }}
	rc := &recordingCommitter{}
	c.process(h, rc, kafka.Message{Topic: "ticks", Offset: 7})

	if h.calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", h.calls)
	}
	// without a DLQ the poison message is skipped
	if len(rc.offsets) != 1 {
		t.Fatalf("expected commit after giving up, got %v", rc.offsets)
	}
}

func TestProcessRecoversFromPanic(t *testing.T) {
	c := newTestConsumer(t, 0)
	h := &funcHandler{topic: "ticks", fn: func([]byte) error { panic("boom") }}
	rc := &recordingCommitter{}
	c.process(h, rc, kafka.Message{Topic: "ticks"})
	if len(rc.offsets) != 1 {
		t.Fatalf("expected commit after panic, got %v", rc.offsets)
	}
}

func TestBeforeHookErrorSkipsHandler(t *testing.T) {
	c := newTestConsumer(t, 3)
	c.WithConsumerHook(HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, b []byte) (context.Context, kafka.Message, []byte, error) {
		return ctx, km, b, errors.New("rejected")
	}})
	h := &funcHandler{topic: "ticks", fn: func([]byte) error { return nil }}
	attempts, err := c.handleWithRetry(h, kafka.Message{Topic: "ticks"})
	if err == nil || attempts != 1 || h.calls != 0 {
		t.Fatalf("attempts=%d calls=%d err=%v", attempts, h.calls, err)
	}
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of (0, %v]", attempt, d, max)
		}
	}
	if d := backoffWithJitter(min, max, 1); d < min/2 {
		t.Fatalf("first backoff too small: %v", d)
	}
}

func TestPartitionLockIsStable(t *testing.T) {
	c := newTestConsumer(t, 0)
	a := c.partitionLock("ticks", 1)
	if c.partitionLock("ticks", 1) != a {
		t.Fatalf("same partition must share a lock")
	}
	if c.partitionLock("ticks", 2) == a {
		t.Fatalf("different partitions must not share a lock")
	}
}
