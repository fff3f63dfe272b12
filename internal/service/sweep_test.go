package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
	platformmocks "github.com/SinarPandora/Jellyfish-sub000/internal/platform/mocks"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository/mocks"
	"github.com/SinarPandora/Jellyfish-sub000/internal/service"
)

type sweepFixture struct {
	rooms *mocks.RoomRepository
	texts *mocks.TextChannelRepository
	gw    *platformmocks.Gateway
	svc   *service.SweepService
}

func newSweepFixture() *sweepFixture {
	f := &sweepFixture{
		rooms: new(mocks.RoomRepository),
		texts: new(mocks.TextChannelRepository),
		gw:    new(platformmocks.Gateway),
	}
	f.svc = service.NewSweepService(f.rooms, f.texts, f.gw, fastRetrier(), testBot, 5*time.Minute)
	return f
}

func staleRoom(id uint, voiceID snowflake.ID) domain.RoomInstance {
	return domain.RoomInstance{
		ID:             id,
		GuildID:        testGuild,
		VoiceChannelID: voiceID,
		UpdatedAt:      time.Now().Add(-time.Hour),
	}
}

func TestSweep_GraceWindowProtectsRecentRooms(t *testing.T) {
	// Arrange: 宽限期内的房间无论占用情况如何都不回收
	f := newSweepFixture()
	ctx := context.Background()

	fresh := staleRoom(1, 400)
	fresh.UpdatedAt = time.Now()
	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{fresh}, nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err)
	f.gw.AssertNotCalled(t, "VoiceChannelMembers", mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSweep_ReclaimsEmptyRoom(t *testing.T) {
	// Arrange
	f := newSweepFixture()
	ctx := context.Background()

	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{staleRoom(1, 400)}, nil).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).Return([]snowflake.ID{}, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(400)).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(1)).Return(nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err)
	f.gw.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestSweep_ReclaimsBotOnlyRoom(t *testing.T) {
	// Arrange: 只剩机器人自己也算遗弃
	f := newSweepFixture()
	ctx := context.Background()

	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{staleRoom(1, 400)}, nil).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).Return([]snowflake.ID{testBot}, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(400)).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(1)).Return(nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err)
	f.gw.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestSweep_KeepsOccupiedRoom(t *testing.T) {
	// Arrange: 有真实用户在线的房间不回收
	f := newSweepFixture()
	ctx := context.Background()

	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{staleRoom(1, 400)}, nil).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).
		Return([]snowflake.ID{testBot, snowflake.ID(301)}, nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err)
	f.gw.AssertNotCalled(t, "DeleteChannel", mock.Anything, mock.Anything)
	f.rooms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSweep_RemovesRowWhenChannelAlreadyGone(t *testing.T) {
	// Arrange: 频道在平台侧已消失，只清掉残留记录
	f := newSweepFixture()
	ctx := context.Background()

	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{staleRoom(1, 400)}, nil).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).
		Return(nil, platform.ErrChannelNotFound).Once()
	f.rooms.On("Delete", ctx, uint(1)).Return(nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err)
	f.gw.AssertNotCalled(t, "DeleteChannel", mock.Anything, mock.Anything)
	f.rooms.AssertExpectations(t)
}

func TestSweep_CleansUpPairedTextChannel(t *testing.T) {
	// Arrange: 回收时连同配套文字频道与引用一起删除
	f := newSweepFixture()
	ctx := context.Background()

	room := staleRoom(1, 400)
	textID := snowflake.ID(500)
	room.TextChannelID = &textID

	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{room}, nil).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).Return([]snowflake.ID{}, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(400)).Return(nil).Once()
	f.gw.On("DeleteChannel", ctx, textID).Return(nil).Once()
	f.texts.On("DeleteByChannel", ctx, textID).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(1)).Return(nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err)
	f.gw.AssertExpectations(t)
	f.texts.AssertExpectations(t)
}

func TestSweep_SingleFailureDoesNotAbortRun(t *testing.T) {
	// Arrange: 第一个房间成员查询持续失败，第二个仍应被回收
	f := newSweepFixture()
	ctx := context.Background()

	f.rooms.On("FindAll", ctx).
		Return([]domain.RoomInstance{staleRoom(1, 400), staleRoom(2, 401)}, nil).Once()
	// 成员查询失败到重试耗尽
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).
		Return(nil, errors.New("rate limited")).Times(3)
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(401)).Return([]snowflake.ID{}, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(401)).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(2)).Return(nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert
	require.NoError(t, err, "单个房间的失败只跳过，不中断整轮")
	f.rooms.AssertExpectations(t)
	f.rooms.AssertNotCalled(t, "Delete", ctx, uint(1))
}

func TestSweep_RetriesTransientMemberListingFailure(t *testing.T) {
	// Arrange: 成员查询首次瞬时失败，重试成功后房间在本轮即被回收
	f := newSweepFixture()
	ctx := context.Background()

	f.rooms.On("FindAll", ctx).Return([]domain.RoomInstance{staleRoom(1, 400)}, nil).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).
		Return(nil, errors.New("temporary network error")).Once()
	f.gw.On("VoiceChannelMembers", ctx, snowflake.ID(400)).
		Return([]snowflake.ID{}, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(400)).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(1)).Return(nil).Once()

	// Act
	err := f.svc.Run(ctx)

	// Assert: 瞬时失败不应把回收推迟整整一个周期
	require.NoError(t, err)
	f.gw.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestSweep_ScanFailureReturnsError(t *testing.T) {
	f := newSweepFixture()
	ctx := context.Background()

	scanErr := errors.New("db unavailable")
	f.rooms.On("FindAll", ctx).Return(nil, scanErr).Once()

	err := f.svc.Run(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, scanErr))
}
