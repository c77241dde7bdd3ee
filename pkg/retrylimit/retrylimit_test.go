package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type statusErr int

func (e statusErr) Error() string   { return "upstream error" }
func (e statusErr) StatusCode() int { return int(e) }

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil, fastConfig())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	base := errors.New("always broken")
	err := WithRetry(context.Background(), func() error {
		calls++
		return base
	}, nil, fastConfig())
	if !errors.Is(err, base) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnFatal(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return &FatalError{Err: errors.New("bad request")}
	}, nil, fastConfig())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fatal errors must not be retried, got %d calls", calls)
	}
}

func TestWithRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, nil, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAdaptiveLimiterAdjusts(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 10, 1, 0.5)

	lim.Success()
	if got := lim.CurrentLimit(); got != 3 {
		t.Errorf("expected limit 3 after success, got %v", got)
	}

	lim.RateLimited()
	if got := lim.CurrentLimit(); got != 1.5 {
		t.Errorf("expected limit halved to 1.5, got %v", got)
	}

	// A recent failure suppresses the success bump.
	lim.Success()
	if got := lim.CurrentLimit(); got != 1.5 {
		t.Errorf("expected limit unchanged right after an error, got %v", got)
	}
}

func TestAdaptiveLimiterClampsToBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 3, 5, 0.1)

	lim.Success()
	if got := lim.CurrentLimit(); got != 3 {
		t.Errorf("expected clamp to max 3, got %v", got)
	}

	lim.RateLimited()
	if got := lim.CurrentLimit(); got != 1 {
		t.Errorf("expected clamp to min 1, got %v", got)
	}
}

func TestLimiterFeedbackOnServerErrors(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 10, 1, 0.5)
	_ = WithRetry(context.Background(), func() error {
		return statusErr(503)
	}, lim, Config{MaxAttempts: 1, InitialDelay: time.Millisecond})
	if got := lim.CurrentLimit(); got != 2 {
		t.Errorf("expected limit halved after a 503, got %v", got)
	}
}
