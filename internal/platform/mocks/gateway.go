// Package mocks 提供 platform.Gateway 的 testify Mock 实现，仅用于测试。
package mocks

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/mock"

	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
)

// Gateway 是 platform.Gateway 的 Mock 实现。
type Gateway struct {
	mock.Mock
}

func (m *Gateway) ResolveChannel(ctx context.Context, channelID snowflake.ID) (*platform.ChannelInfo, error) {
	args := m.Called(ctx, channelID)
	if r := args.Get(0); r != nil {
		return r.(*platform.ChannelInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Gateway) CreateVoiceChannel(ctx context.Context, guildID, parentID snowflake.ID, name string, userLimit int) (snowflake.ID, error) {
	args := m.Called(ctx, guildID, parentID, name, userLimit)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *Gateway) CreateTextChannel(ctx context.Context, guildID, parentID snowflake.ID, name string) (snowflake.ID, error) {
	args := m.Called(ctx, guildID, parentID, name)
	return args.Get(0).(snowflake.ID), args.Error(1)
}

func (m *Gateway) DeleteChannel(ctx context.Context, channelID snowflake.ID) error {
	return m.Called(ctx, channelID).Error(0)
}

func (m *Gateway) ModifyChannel(ctx context.Context, channelID snowflake.ID, patch platform.ChannelPatch) error {
	return m.Called(ctx, channelID, patch).Error(0)
}

func (m *Gateway) GrantMemberOverride(ctx context.Context, channelID, userID snowflake.ID, allow platform.Permission) error {
	return m.Called(ctx, channelID, userID, allow).Error(0)
}

func (m *Gateway) RevokeMemberOverride(ctx context.Context, channelID, userID snowflake.ID) error {
	return m.Called(ctx, channelID, userID).Error(0)
}

func (m *Gateway) SetRoleOverride(ctx context.Context, channelID, roleID snowflake.ID, allow, deny platform.Permission) error {
	return m.Called(ctx, channelID, roleID, allow, deny).Error(0)
}

func (m *Gateway) RemoveRoleOverride(ctx context.Context, channelID, roleID snowflake.ID) error {
	return m.Called(ctx, channelID, roleID).Error(0)
}

func (m *Gateway) VoiceChannelMembers(ctx context.Context, channelID snowflake.ID) ([]snowflake.ID, error) {
	args := m.Called(ctx, channelID)
	if r := args.Get(0); r != nil {
		return r.([]snowflake.ID), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Gateway) MoveMember(ctx context.Context, guildID, userID, channelID snowflake.ID) error {
	return m.Called(ctx, guildID, userID, channelID).Error(0)
}
