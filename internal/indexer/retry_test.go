package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRetryPolicyLogsAttempts(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	policy := newRetryPolicy(2, time.Millisecond, zap.New(core))

	calls := 0
	err := policy.do(context.Background(), "filter_logs", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	}, zap.Uint64("from", 10))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	retries := logs.FilterMessage("rpc call failed, retrying").All()
	if len(retries) != 2 {
		t.Fatalf("expected 2 retry logs, got %d", len(retries))
	}
	fields := retries[1].ContextMap()
	if fields["attempt"] != int64(2) || fields["op"] != "filter_logs" || fields["from"] != uint64(10) {
		t.Fatalf("retry log fields %v", fields)
	}
}

func TestRetryPolicyGivesUp(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	policy := newRetryPolicy(1, time.Millisecond, zap.New(core))

	calls := 0
	err := policy.do(context.Background(), "block_timestamp", func(context.Context) error {
		calls++
		return errors.New("header not found")
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected failure after 2 calls, got %v after %d", err, calls)
	}
	if logs.FilterMessage("rpc call failed, giving up").Len() != 1 {
		t.Fatalf("expected a give-up log")
	}
}

func TestRetryPolicyStopsOnContextError(t *testing.T) {
	policy := newRetryPolicy(5, time.Millisecond, nil)

	calls := 0
	err := policy.do(context.Background(), "filter_logs", func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || calls != 1 {
		t.Fatalf("deadline errors should not be retried: %v after %d calls", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = policy.do(ctx, "filter_logs", func(context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	if err == nil || calls != 1 {
		t.Fatalf("cancelled context should stop retries: %v after %d calls", err, calls)
	}
}
