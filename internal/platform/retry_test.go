package platform_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
)

// 测试用零等待策略，避免真实休眠拖慢测试
func fastRetrier() platform.Retrier {
	return platform.Retrier{Backoff: []time.Duration{0, 0, 0}}
}

func TestRetrier_Do_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls, "首次成功不应再重试")
}

func TestRetrier_Do_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls, "应在第三次尝试时成功")
}

func TestRetrier_Do_ExhaustsAttempts(t *testing.T) {
	lastErr := errors.New("persistent failure")
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return lastErr
	})

	require.Error(t, err)
	assert.Equal(t, lastErr, err, "应返回最后一次的错误")
	assert.Equal(t, 3, calls, "尝试次数应等于 Backoff 长度")
}

func TestRetrier_Do_NoRetryOnChannelNotFound(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return platform.ErrChannelNotFound
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrChannelNotFound))
	assert.Equal(t, 1, calls, "频道不存在时重试不可能成功，不应重试")
}

func TestRetrier_Do_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := platform.Retrier{Backoff: []time.Duration{0, time.Minute}}.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel() // 首次失败后取消，第二次的等待应立即被打断
		return errors.New("transient failure")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestNewRetrier_DefaultBackoff(t *testing.T) {
	r := platform.NewRetrier()
	assert.Equal(t, []time.Duration{0, time.Second, 3 * time.Second}, r.Backoff)
}
