package platform

import (
	"context"
	"errors"
	"time"
)

// Retrier 对平台调用施加有限重试：首次立即执行，之后按 Backoff 间隔重试。
// 频道句柄的重新解析折叠在 op 闭包内完成——op 的每次执行都应重新解析目标句柄，
// 以防上一次失败使缓存的引用失效。
type Retrier struct {
	// Backoff 各次尝试前的等待时长，长度即最大尝试次数。
	Backoff []time.Duration
}

// NewRetrier 返回默认重试策略：立即、1 秒后、3 秒后，共 3 次尝试。
func NewRetrier() Retrier {
	return Retrier{Backoff: []time.Duration{0, time.Second, 3 * time.Second}}
}

// Do 按策略执行 op 直到成功或尝试耗尽，返回最后一次的错误。
// ErrChannelNotFound 与 context 取消不重试：前者重试不可能成功 (状态漂移
// 需要调用方自行容忍或上报)，后者说明调用方已放弃。
func (r Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for _, wait := range r.Backoff {
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrChannelNotFound) || errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return lastErr
}
