package mocks

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/mock"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// RoomConfigRepository 是 repository.RoomConfigRepository 的 Mock 实现。
type RoomConfigRepository struct {
	mock.Mock
}

func (m *RoomConfigRepository) FindByID(ctx context.Context, id uint) (*domain.RoomConfig, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.RoomConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomConfigRepository) FindByGuild(ctx context.Context, guildID snowflake.ID) ([]domain.RoomConfig, error) {
	args := m.Called(ctx, guildID)
	if r := args.Get(0); r != nil {
		return r.([]domain.RoomConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomConfigRepository) FindAllEnabled(ctx context.Context) ([]domain.RoomConfig, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]domain.RoomConfig), args.Error(1)
	}
	return nil, args.Error(1)
}
