package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type item struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

type countingJob struct {
	calls atomic.Int32
	failN int32
	seen  chan item
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "test.item" }
func (j *countingJob) Handle(_ context.Context, payload interface{}) error {
	n := j.calls.Add(1)
	if n <= j.failN {
		return errors.New("transient")
	}
	it, err := ParsePayload[item](payload)
	if err != nil {
		return err
	}
	j.seen <- *it
	return nil
}

func TestParsePayload(t *testing.T) {
	want := item{Symbol: "AAPL", Interval: "5"}
	raw, _ := json.Marshal(want)
	var asMap map[string]interface{}
	_ = json.Unmarshal(raw, &asMap)

	cases := []struct {
		name    string
		payload interface{}
	}{
		{"value", want},
		{"pointer", &want},
		{"map", asMap},
		{"raw", json.RawMessage(raw)},
	}
	for _, tc := range cases {
		got, err := ParsePayload[item](tc.payload)
		if err != nil || *got != want {
			t.Errorf("%s: got %+v err %v", tc.name, got, err)
		}
	}
	if _, err := ParsePayload[item](42); err == nil {
		t.Errorf("expected error for int payload")
	}
}

func TestMemoryQueueDeliversAndRetries(t *testing.T) {
	q := NewMemoryQueue(nil, &QueueConfig{Workers: 2, RetryLimit: 2, RetryDelay: 5 * time.Millisecond})
	job := &countingJob{failN: 1, seen: make(chan item, 1)}
	q.RegisterJob(job)
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = q.Stop(context.Background()) }()

	if err := q.PublishMessage(context.Background(), "test.item", item{Symbol: "MSFT", Interval: "15"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-job.seen:
		if got.Symbol != "MSFT" || got.Interval != "15" {
			t.Fatalf("unexpected item %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job not delivered")
	}
	if job.calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", job.calls.Load())
	}
}

func TestMemoryQueueDeadLetters(t *testing.T) {
	q := NewMemoryQueue(nil, &QueueConfig{RetryLimit: 1, RetryDelay: time.Millisecond})
	job := &countingJob{failN: 100, seen: make(chan item, 1)}
	q.RegisterJob(job)
	_ = q.Start()
	defer func() { _ = q.Stop(context.Background()) }()

	_ = q.PublishMessage(context.Background(), "test.item", item{Symbol: "X"})
	deadline := time.Now().Add(2 * time.Second)
	for q.Dead() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.Dead() != 1 || job.calls.Load() != 2 {
		t.Fatalf("dead=%d calls=%d", q.Dead(), job.calls.Load())
	}
}

func TestMemoryQueueRejects(t *testing.T) {
	q := NewMemoryQueue(nil, nil)
	if err := q.PublishMessage(context.Background(), "test.item", nil); err == nil {
		t.Fatalf("expected error before start")
	}
	_ = q.Start()
	defer func() { _ = q.Stop(context.Background()) }()
	if err := q.PublishMessage(context.Background(), "unknown", nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
	if err := q.Start(); err == nil {
		t.Fatalf("expected error on double start")
	}
}
