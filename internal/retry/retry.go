// Package retry 为所有上游调用提供统一的重试策略：次数、退避函数、可重试判断
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted 重试次数用尽
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 重试策略
type Policy struct {
	// MaxAttempts 包含首次调用在内的最大尝试次数
	MaxAttempts int
	// Backoff 返回第 attempt 次失败后（从 1 开始）的等待时间
	Backoff func(attempt int) time.Duration
	// Retryable 判断错误是否值得重试；为 nil 时所有错误都重试
	Retryable func(error) bool
}

// Single 只尝试一次，WordPress / WooCommerce 使用
func Single() Policy {
	return Policy{MaxAttempts: 1}
}

// Exponential initial * 2^(attempt-1)，不超过 max
func Exponential(initial, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		f := float64(initial) * math.Pow(2, float64(attempt-1))
		if f > float64(max) || f <= 0 {
			return max
		}
		return time.Duration(f)
	}
}

// Fixed 固定间隔
func Fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Do 按策略执行 fn，在两次尝试之间响应 ctx 取消
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry: %w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry: %w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
