// Package mocks 提供 repository 接口的 testify Mock 实现，仅用于测试。
package mocks

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/mock"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 Mock 实现。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id uint) (*domain.RoomInstance, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.RoomInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindByOwner(ctx context.Context, guildID, ownerID snowflake.ID) (*domain.RoomInstance, error) {
	args := m.Called(ctx, guildID, ownerID)
	if r := args.Get(0); r != nil {
		return r.(*domain.RoomInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindByVoiceChannel(ctx context.Context, channelID snowflake.ID) (*domain.RoomInstance, error) {
	args := m.Called(ctx, channelID)
	if r := args.Get(0); r != nil {
		return r.(*domain.RoomInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindAll(ctx context.Context) ([]domain.RoomInstance, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]domain.RoomInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindByGuild(ctx context.Context, guildID snowflake.ID) ([]domain.RoomInstance, error) {
	args := m.Called(ctx, guildID)
	if r := args.Get(0); r != nil {
		return r.([]domain.RoomInstance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) Save(ctx context.Context, room *domain.RoomInstance) error {
	return m.Called(ctx, room).Error(0)
}

func (m *RoomRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *RoomRepository) ClearOwner(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *RoomRepository) Touch(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}
