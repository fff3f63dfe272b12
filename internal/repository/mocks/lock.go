package mocks

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/mock"
)

// CreationLock 是 repository.CreationLock 的 Mock 实现。
type CreationLock struct {
	mock.Mock
}

func (m *CreationLock) TryAcquire(ctx context.Context, guildID, ownerID snowflake.ID) (bool, error) {
	args := m.Called(ctx, guildID, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *CreationLock) Release(ctx context.Context, guildID, ownerID snowflake.ID) error {
	return m.Called(ctx, guildID, ownerID).Error(0)
}
