package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTemporary = errors.New("temporary")

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()

	original := sleep
	var waits []time.Duration
	sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { sleep = original })

	return &waits
}

func TestBackoff(t *testing.T) {
	p := Default()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 10 * time.Second},
		{attempt: 10, want: 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: expected %s, got %s", tt.attempt, tt.want, got)
		}
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	waits := stubSleep(t)

	calls := 0
	err := Default().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTemporary
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	if len(*waits) != 2 || (*waits)[0] != 2*time.Second || (*waits)[1] != 2*time.Second {
		t.Fatalf("unexpected waits: %v", *waits)
	}
}

func TestDoStopsAfterAttempts(t *testing.T) {
	stubSleep(t)

	calls := 0
	err := Default().Do(context.Background(), func(context.Context) error {
		calls++
		return errTemporary
	})
	if !errors.Is(err, errTemporary) {
		t.Fatalf("expected last error, got %v", err)
	}

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoSkipsNonRetryable(t *testing.T) {
	waits := stubSleep(t)

	permanent := errors.New("permanent")
	p := Default()
	p.Retryable = func(err error) bool { return errors.Is(err, errTemporary) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}

	if calls != 1 || len(*waits) != 0 {
		t.Fatalf("expected a single call without waits, got %d calls, %v", calls, *waits)
	}
}

func TestDoDoesNotRetryCancellation(t *testing.T) {
	stubSleep(t)

	calls := 0
	err := Default().Do(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected one call ending in cancellation, got %d, %v", calls, err)
	}
}

func TestDoReportsRetries(t *testing.T) {
	stubSleep(t)

	var attempts []int
	p := Default()
	p.OnRetry = func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}

	_ = p.Do(context.Background(), func(context.Context) error { return errTemporary })

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected retry notifications: %v", attempts)
	}
}

func TestDoReturnsCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tests := []struct {
		name string
		wait func(context.Context, time.Duration) error
		want error
	}{
		{
			name: "cancelled",
			wait: func(context.Context, time.Duration) error {
				cancel()
				return ctx.Err()
			},
			want: context.Canceled,
		},
		{
			name: "deadline",
			wait: func(context.Context, time.Duration) error { return context.DeadlineExceeded },
			want: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			p.Wait = tt.wait

			calls := 0
			err := p.Do(ctx, func(context.Context) error {
				calls++
				return errTemporary
			})

			if calls != 1 {
				t.Fatalf("expected no attempt after the wait failed, got %d", calls)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, errTemporary) {
				t.Fatalf("last error must stay reachable, got %v", err)
			}
		})
	}
}
