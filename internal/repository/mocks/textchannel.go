package mocks

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/mock"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// TextChannelRepository 是 repository.TextChannelRepository 的 Mock 实现。
type TextChannelRepository struct {
	mock.Mock
}

func (m *TextChannelRepository) Save(ctx context.Context, tc *domain.EphemeralTextChannel) error {
	return m.Called(ctx, tc).Error(0)
}

func (m *TextChannelRepository) DeleteByChannel(ctx context.Context, channelID snowflake.ID) error {
	return m.Called(ctx, channelID).Error(0)
}
