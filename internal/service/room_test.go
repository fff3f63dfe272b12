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

	"github.com/SinarPandora/Jellyfish-sub000/internal/command"
	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
	platformmocks "github.com/SinarPandora/Jellyfish-sub000/internal/platform/mocks"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository/mocks"
	"github.com/SinarPandora/Jellyfish-sub000/internal/service"
)

// 测试用零等待重试策略，避免失败路径上的真实休眠
func fastRetrier() platform.Retrier {
	return platform.Retrier{Backoff: []time.Duration{0, 0, 0}}
}

type roomFixture struct {
	rooms *mocks.RoomRepository
	texts *mocks.TextChannelRepository
	lock  *mocks.CreationLock
	gw    *platformmocks.Gateway
	svc   *service.RoomService
}

func newRoomFixture() *roomFixture {
	f := &roomFixture{
		rooms: new(mocks.RoomRepository),
		texts: new(mocks.TextChannelRepository),
		lock:  new(mocks.CreationLock),
		gw:    new(platformmocks.Gateway),
	}
	f.svc = service.NewRoomService(f.rooms, f.texts, f.lock, f.gw, fastRetrier())
	return f
}

const (
	testGuild = snowflake.ID(100)
	testEntry = snowflake.ID(200)
	testUser  = snowflake.ID(300)
)

func testConfig() *domain.RoomConfig {
	return &domain.RoomConfig{
		ID:             1,
		GuildID:        testGuild,
		Name:           "开黑入口",
		EntryChannelID: testEntry,
		Enabled:        true,
	}
}

// --- 测试 CreateRoom 方法 ---

func TestRoomService_CreateRoom_Success(t *testing.T) {
	// Arrange
	f := newRoomFixture()
	ctx := context.Background()
	cfg := testConfig()

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(true, nil).Once()
	f.lock.On("Release", ctx, testGuild, testUser).Return(nil).Once()
	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(nil, repository.ErrNotFound).Once()
	f.gw.On("ResolveChannel", ctx, testEntry).
		Return(&platform.ChannelInfo{ID: testEntry, GuildID: testGuild, ParentID: snowflake.ID(50)}, nil).Once()
	// 请求人数 4，生效上限应为 4+1 (机器人占位)
	f.gw.On("CreateVoiceChannel", ctx, testGuild, snowflake.ID(50), "开黑房", 5).
		Return(snowflake.ID(400), nil).Once()
	// 房主在建房时即获得语音频道的可见性覆写
	f.gw.On("GrantMemberOverride", ctx, snowflake.ID(400), testUser, platform.PermViewChannel).
		Return(nil).Once()
	f.rooms.On("Save", ctx, mock.AnythingOfType("*domain.RoomInstance")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.RoomInstance).ID = 9
		}).
		Return(nil).Once()

	var created *domain.RoomInstance
	cb := service.Callbacks{OnSuccess: func(room *domain.RoomInstance) { created = room }}

	// Act
	room, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:    cfg,
		Requester: testUser,
		Args:      command.Parse("4 开黑房"),
	}, cb)

	// Assert
	require.NoError(t, err, "成功建房不应有错误")
	require.NotNil(t, room)
	assert.Equal(t, uint(9), room.ID)
	assert.Equal(t, snowflake.ID(400), room.VoiceChannelID)
	assert.Equal(t, 5, room.MemberLimit, "生效上限应为请求人数 +1")
	assert.Equal(t, "开黑房", room.Name)
	require.NotNil(t, room.OwnerID)
	assert.Equal(t, testUser, *room.OwnerID)
	assert.False(t, room.HasPassword())
	assert.Equal(t, room, created, "成功回调应收到同一个房间对象")

	f.lock.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
	f.gw.AssertExpectations(t)
}

func TestRoomService_CreateRoom_LockBusy(t *testing.T) {
	// Arrange: 建房锁已被同一房主的在途尝试持有
	f := newRoomFixture()
	ctx := context.Background()

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(false, nil).Once()

	var failMsg string
	cb := service.Callbacks{OnFailure: func(msg string) { failMsg = msg }}

	// Act
	_, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:    testConfig(),
		Requester: testUser,
		Args:      command.Parse(""),
	}, cb)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAlreadyOwnsRoom), "锁被占用应视为已持有房间")
	assert.Equal(t, service.MsgAlreadyOwnsRoom, failMsg)

	f.lock.AssertExpectations(t)
	// 未取得锁时不应释放，也不应触发任何外部变更
	f.lock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "CreateVoiceChannel", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_AlreadyOwnsRoom(t *testing.T) {
	// Arrange: 锁内复查发现请求者已持有存活房间
	f := newRoomFixture()
	ctx := context.Background()

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(true, nil).Once()
	f.lock.On("Release", ctx, testGuild, testUser).Return(nil).Once()
	owner := testUser
	existing := &domain.RoomInstance{ID: 7, GuildID: testGuild, OwnerID: &owner}
	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(existing, nil).Once()

	var failMsg string
	cb := service.Callbacks{OnFailure: func(msg string) { failMsg = msg }}

	// Act
	_, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:    testConfig(),
		Requester: testUser,
		Args:      command.Parse(""),
	}, cb)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrAlreadyOwnsRoom))
	assert.Equal(t, service.MsgAlreadyOwnsRoom, failMsg)
	f.lock.AssertExpectations(t)
	f.gw.AssertNotCalled(t, "CreateVoiceChannel", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_EntryChannelDrift(t *testing.T) {
	// Arrange: 入口频道配置仍在但平台侧已被删除
	f := newRoomFixture()
	ctx := context.Background()

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(true, nil).Once()
	f.lock.On("Release", ctx, testGuild, testUser).Return(nil).Once()
	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(nil, repository.ErrNotFound).Once()
	// 频道不存在不重试，解析只应发生一次
	f.gw.On("ResolveChannel", ctx, testEntry).Return(nil, platform.ErrChannelNotFound).Once()

	var failMsg string
	cb := service.Callbacks{OnFailure: func(msg string) { failMsg = msg }}

	// Act
	_, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:    testConfig(),
		Requester: testUser,
		Args:      command.Parse(""),
	}, cb)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConfigDrift), "入口频道不可解析应报配置漂移")
	assert.Equal(t, service.MsgConfigDrift, failMsg)
	f.gw.AssertExpectations(t)
	f.rooms.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_InvalidPassword(t *testing.T) {
	// Arrange: 非数字密码在任何外部变更之前被拒绝
	f := newRoomFixture()
	ctx := context.Background()

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(true, nil).Once()
	f.lock.On("Release", ctx, testGuild, testUser).Return(nil).Once()
	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(nil, repository.ErrNotFound).Once()

	var failMsg string
	cb := service.Callbacks{OnFailure: func(msg string) { failMsg = msg }}

	// Act
	_, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:    testConfig(),
		Requester: testUser,
		Args:      &command.CreationArgs{Password: "abc12"},
	}, cb)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidPassword))
	assert.Equal(t, service.MsgInvalidPassword, failMsg)
	f.gw.AssertNotCalled(t, "ResolveChannel", mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_PasswordRoomWithPairedText(t *testing.T) {
	// Arrange: 密码房间 + 配套文字频道，默认命名模板
	f := newRoomFixture()
	ctx := context.Background()
	cfg := testConfig()
	cfg.PairText = true

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(true, nil).Once()
	f.lock.On("Release", ctx, testGuild, testUser).Return(nil).Once()
	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(nil, repository.ErrNotFound).Once()
	// 语音与文字频道各解析一次入口
	f.gw.On("ResolveChannel", ctx, testEntry).
		Return(&platform.ChannelInfo{ID: testEntry, GuildID: testGuild, ParentID: snowflake.ID(50)}, nil).Twice()
	f.gw.On("CreateVoiceChannel", ctx, testGuild, snowflake.ID(50), "小鱼 的房间", 7).
		Return(snowflake.ID(400), nil).Once()
	f.gw.On("CreateTextChannel", ctx, testGuild, snowflake.ID(50), "小鱼 的房间").
		Return(snowflake.ID(500), nil).Once()
	f.texts.On("Save", ctx, mock.AnythingOfType("*domain.EphemeralTextChannel")).Return(nil).Once()
	// 密码房默认不可见：语音和文字频道都对 @全体成员 拒绝查看
	f.gw.On("SetRoleOverride", ctx, snowflake.ID(400), platform.EveryoneRole,
		platform.Permission(0), platform.PermViewChannel).Return(nil).Once()
	f.gw.On("SetRoleOverride", ctx, snowflake.ID(500), platform.EveryoneRole,
		platform.Permission(0), platform.PermViewChannel).Return(nil).Once()
	// 房间对 @全体成员 隐藏后，房主自己保有可见性
	f.gw.On("GrantMemberOverride", ctx, snowflake.ID(400), testUser, platform.PermViewChannel).
		Return(nil).Once()
	f.rooms.On("Save", ctx, mock.AnythingOfType("*domain.RoomInstance")).Return(nil).Once()

	// Act
	room, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:      cfg,
		Requester:   testUser,
		DisplayName: "小鱼",
		Args:        command.Parse("人数 6 密码 2335"),
	}, service.Callbacks{})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "小鱼 的房间", room.Name, "关键字语法不指定房间名，应回退到默认命名模板")
	assert.Equal(t, 7, room.MemberLimit)
	assert.True(t, room.HasPassword())
	require.NotNil(t, room.TextChannelID)
	assert.Equal(t, snowflake.ID(500), *room.TextChannelID)
	f.gw.AssertExpectations(t)
	f.texts.AssertExpectations(t)
}

func TestRoomService_CreateRoom_PairedTextFailureIsNotFatal(t *testing.T) {
	// Arrange: 文字频道创建失败，房间照常建成
	f := newRoomFixture()
	ctx := context.Background()
	cfg := testConfig()
	cfg.PairText = true

	f.lock.On("TryAcquire", ctx, testGuild, testUser).Return(true, nil).Once()
	f.lock.On("Release", ctx, testGuild, testUser).Return(nil).Once()
	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(nil, repository.ErrNotFound).Once()
	f.gw.On("ResolveChannel", ctx, testEntry).
		Return(&platform.ChannelInfo{ID: testEntry, GuildID: testGuild, ParentID: snowflake.ID(50)}, nil)
	f.gw.On("CreateVoiceChannel", ctx, testGuild, snowflake.ID(50), "语音房", 0).
		Return(snowflake.ID(400), nil).Once()
	// 文字频道创建持续失败直到重试耗尽
	f.gw.On("CreateTextChannel", ctx, testGuild, snowflake.ID(50), "语音房").
		Return(snowflake.ID(0), errors.New("rate limited")).Times(3)
	f.gw.On("GrantMemberOverride", ctx, snowflake.ID(400), testUser, platform.PermViewChannel).
		Return(nil).Once()
	f.rooms.On("Save", ctx, mock.AnythingOfType("*domain.RoomInstance")).Return(nil).Once()

	// Act
	room, err := f.svc.CreateRoom(ctx, service.CreateRequest{
		Config:    cfg,
		Requester: testUser,
		Args:      command.Parse("语音房"),
	}, service.Callbacks{})

	// Assert
	require.NoError(t, err, "配套文字频道失败不应导致建房失败")
	require.NotNil(t, room)
	assert.Nil(t, room.TextChannelID, "文字频道缺席时引用应为空")
	f.gw.AssertExpectations(t)
	f.texts.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- 测试房间变更方法 ---

func ownedRoom() *domain.RoomInstance {
	owner := testUser
	return &domain.RoomInstance{
		ID:             9,
		GuildID:        testGuild,
		VoiceChannelID: snowflake.ID(400),
		OwnerID:        &owner,
		Name:           "旧名字",
	}
}

func TestRoomService_Rename_Success(t *testing.T) {
	// Arrange
	f := newRoomFixture()
	ctx := context.Background()
	room := ownedRoom()

	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(room, nil).Once()
	newName := "新名字"
	f.gw.On("ModifyChannel", ctx, snowflake.ID(400), platform.ChannelPatch{Name: &newName}).
		Return(nil).Once()
	f.rooms.On("Save", ctx, room).Return(nil).Once()

	// Act
	err := f.svc.Rename(ctx, testGuild, testUser, newName, service.Callbacks{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "新名字", room.Name, "平台侧改名成功后记录应更新")
	f.gw.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestRoomService_Rename_NotOwner(t *testing.T) {
	// Arrange: 请求者没有持有任何房间
	f := newRoomFixture()
	ctx := context.Background()

	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(nil, repository.ErrNotFound).Once()

	var failMsg string
	cb := service.Callbacks{OnFailure: func(msg string) { failMsg = msg }}

	// Act
	err := f.svc.Rename(ctx, testGuild, testUser, "新名字", cb)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotRoomOwner))
	assert.Equal(t, service.MsgNotRoomOwner, failMsg)
	f.gw.AssertNotCalled(t, "ModifyChannel", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_UpdateCapacity_Unlimited(t *testing.T) {
	// Arrange: 0 表示不限，不额外 +1
	f := newRoomFixture()
	ctx := context.Background()
	room := ownedRoom()
	room.MemberLimit = 5

	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(room, nil).Once()
	zero := 0
	f.gw.On("ModifyChannel", ctx, snowflake.ID(400), platform.ChannelPatch{UserLimit: &zero}).
		Return(nil).Once()
	f.rooms.On("Save", ctx, room).Return(nil).Once()

	// Act
	err := f.svc.UpdateCapacity(ctx, testGuild, testUser, 0, service.Callbacks{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, room.MemberLimit)
	f.gw.AssertExpectations(t)
}

func TestRoomService_UpdateCapacity_Negative(t *testing.T) {
	f := newRoomFixture()

	var failMsg string
	cb := service.Callbacks{OnFailure: func(msg string) { failMsg = msg }}

	err := f.svc.UpdateCapacity(context.Background(), testGuild, testUser, -1, cb)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidCapacity))
	assert.Equal(t, service.MsgInvalidCapacity, failMsg)
	f.rooms.AssertNotCalled(t, "FindByOwner", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_SetPassword_ClearRestoresVisibility(t *testing.T) {
	// Arrange: 清除密码应移除 @全体成员 的拒绝覆写
	f := newRoomFixture()
	ctx := context.Background()
	room := ownedRoom()
	room.Password = "2335"

	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(room, nil).Once()
	f.gw.On("RemoveRoleOverride", ctx, snowflake.ID(400), platform.EveryoneRole).Return(nil).Once()
	f.rooms.On("Save", ctx, room).Return(nil).Once()

	// Act
	err := f.svc.SetPassword(ctx, testGuild, testUser, "", service.Callbacks{})

	// Assert
	require.NoError(t, err)
	assert.False(t, room.HasPassword())
	f.gw.AssertExpectations(t)
}

// --- 测试 Dissolve 方法 ---

func TestRoomService_Dissolve_Success(t *testing.T) {
	// Arrange: 带配套文字频道的完整解散
	f := newRoomFixture()
	ctx := context.Background()
	room := ownedRoom()
	textID := snowflake.ID(500)
	room.TextChannelID = &textID

	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(room, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(400)).Return(nil).Once()
	f.gw.On("DeleteChannel", ctx, textID).Return(nil).Once()
	f.texts.On("DeleteByChannel", ctx, textID).Return(nil).Once()
	f.rooms.On("Delete", ctx, uint(9)).Return(nil).Once()

	var dissolved *domain.RoomInstance
	cb := service.Callbacks{OnSuccess: func(r *domain.RoomInstance) { dissolved = r }}

	// Act
	err := f.svc.Dissolve(ctx, testGuild, testUser, cb)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, room, dissolved)
	f.gw.AssertExpectations(t)
	f.texts.AssertExpectations(t)
	f.rooms.AssertExpectations(t)
}

func TestRoomService_Dissolve_ChannelAlreadyGone(t *testing.T) {
	// Arrange: 频道在平台侧已消失，删除视为已达成
	f := newRoomFixture()
	ctx := context.Background()
	room := ownedRoom()

	f.rooms.On("FindByOwner", ctx, testGuild, testUser).Return(room, nil).Once()
	f.gw.On("DeleteChannel", ctx, snowflake.ID(400)).Return(platform.ErrChannelNotFound).Once()
	f.rooms.On("Delete", ctx, uint(9)).Return(nil).Once()

	// Act
	err := f.svc.Dissolve(ctx, testGuild, testUser, service.Callbacks{})

	// Assert
	require.NoError(t, err, "频道已不存在时解散应幂等成功")
	f.rooms.AssertExpectations(t)
}

func TestRoomService_DissolveByID_NotFound(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()

	f.rooms.On("FindByID", ctx, uint(404)).Return(nil, repository.ErrNotFound).Once()

	err := f.svc.DissolveByID(ctx, 404, service.Callbacks{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomNotFound))
}
