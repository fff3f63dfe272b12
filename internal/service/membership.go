package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/command"
	"github.com/SinarPandora/Jellyfish-sub000/internal/configcache"
	"github.com/SinarPandora/Jellyfish-sub000/internal/dispatch"
	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// Notifier 是成员事件的通知回调提供方。核心不渲染消息，
// 只在状态变化落定后调用这里的回调。
type Notifier interface {
	// RoomCreated 房间创建成功，发送邀请卡片
	RoomCreated(room *domain.RoomInstance, owner snowflake.ID)
	// MemberWelcome 成员加入房间的欢迎通知。tagged 表示在通知中显式标记该成员
	// (无密码房间的分支)，密码房间只发普通通知。
	MemberWelcome(room *domain.RoomInstance, member snowflake.ID, tagged bool)
	// CreateFailed 建房失败，向用户发送提示文案
	CreateFailed(user snowflake.ID, message string)
}

// NopNotifier 是 Notifier 的空实现。
type NopNotifier struct{}

func (NopNotifier) RoomCreated(*domain.RoomInstance, snowflake.ID) {}

func (NopNotifier) MemberWelcome(*domain.RoomInstance, snowflake.ID, bool) {}

func (NopNotifier) CreateFailed(snowflake.ID, string) {}

// MembershipService 响应平台的连接/断开事件，维护房间的权限覆写、
// 归属与活跃时间戳。所有处理器都是 continue 语义，注册进事件分发器后
// 对每条事件依次求值，互不阻断。
type MembershipService struct {
	rooms       repository.RoomRepository
	cache       *configcache.Cache
	provisioner *RoomService
	gw          platform.Gateway
	retry       platform.Retrier
	botID       snowflake.ID
	notify      Notifier
}

// NewMembershipService 创建 MembershipService 实例。
func NewMembershipService(
	rooms repository.RoomRepository,
	cache *configcache.Cache,
	provisioner *RoomService,
	gw platform.Gateway,
	retry platform.Retrier,
	botID snowflake.ID,
	notify Notifier,
) *MembershipService {
	if rooms == nil {
		panic("RoomRepository cannot be nil for MembershipService")
	}
	if cache == nil {
		panic("config Cache cannot be nil for MembershipService")
	}
	if provisioner == nil {
		panic("RoomService cannot be nil for MembershipService")
	}
	if gw == nil {
		panic("Gateway cannot be nil for MembershipService")
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	return &MembershipService{
		rooms:       rooms,
		cache:       cache,
		provisioner: provisioner,
		gw:          gw,
		retry:       retry,
		botID:       botID,
		notify:      notify,
	}
}

// RegisterHandlers 把全部成员处理器按固定顺序挂到事件分发器上。
func (s *MembershipService) RegisterHandlers(d *dispatch.Dispatcher) {
	d.Register("entry_connect", s.HandleEntryConnect)
	d.Register("member_connect", s.HandleMemberConnect)
	d.Register("owner_disconnect", s.HandleOwnerDisconnect)
	d.Register("password_disconnect", s.HandlePasswordDisconnect)
}

// HandleEntryConnect 处理“点击入口建房”：用户连入某个配置为入口的
// 语音频道时，以空名请求为其创建房间，成功后把用户移进去。
func (s *MembershipService) HandleEntryConnect(ctx context.Context, evt dispatch.VoiceEvent) error {
	if evt.Kind != dispatch.KindConnect || evt.UserID == s.botID {
		return nil
	}
	cfg, ok := s.cache.ByEntryChannel(evt.GuildID, evt.ChannelID)
	if !ok || !cfg.Enabled {
		return nil
	}
	log := logrus.WithFields(logrus.Fields{
		"guild_id":  evt.GuildID,
		"config_id": cfg.ID,
		"user_id":   evt.UserID,
	})
	log.Info("Entry channel connect, provisioning room")

	user := evt.UserID
	cb := Callbacks{
		OnSuccess: func(room *domain.RoomInstance) {
			// 把点击者移进新房间；移动失败不影响房间本身
			merr := s.retry.Do(ctx, func(ctx context.Context) error {
				return s.gw.MoveMember(ctx, room.GuildID, user, room.VoiceChannelID)
			})
			if merr != nil {
				log.WithError(merr).WithField("room_id", room.ID).
					Warn("Failed to move creator into the new room")
			}
			s.notify.RoomCreated(room, user)
		},
		OnFailure: func(message string) {
			s.notify.CreateFailed(user, message)
		},
	}

	_, err := s.provisioner.CreateRoom(ctx, CreateRequest{
		Config:      cfg,
		Requester:   user,
		DisplayName: evt.DisplayName,
		Args:        command.Parse(""),
	}, cb)
	switch {
	case err == nil,
		errors.Is(err, ErrAlreadyOwnsRoom),
		errors.Is(err, ErrConfigDrift):
		// 业务性拒绝已通过回调告知用户，处理链继续
		return nil
	default:
		return err
	}
}

// HandleMemberConnect 处理“加入已归属房间”：刷新活跃时间戳并按
// 房间类型授予文字频道权限。密码房间授予 查看+提及全体 (房间默认不可见，
// 加入者需要显式可见性)；无密码房间只授予 发消息 (房间默认公开可读，
// 仅写入需要放行)。两种权限形状的差异是刻意的。
func (s *MembershipService) HandleMemberConnect(ctx context.Context, evt dispatch.VoiceEvent) error {
	if evt.Kind != dispatch.KindConnect || evt.UserID == s.botID {
		return nil
	}
	room, err := s.rooms.FindByVoiceChannel(ctx, evt.ChannelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	log := logrus.WithFields(logrus.Fields{"room_id": room.ID, "user_id": evt.UserID})

	// 有队友加入即延长房间在回收任务面前的宽限期
	if terr := s.rooms.Touch(ctx, room.ID); terr != nil {
		log.WithError(terr).Warn("Failed to refresh room activity timestamp")
	}

	if room.TextChannelID == nil {
		return nil
	}
	textID := *room.TextChannelID

	var allow platform.Permission
	if room.HasPassword() {
		allow = platform.PermViewChannel | platform.PermMentionEveryone
	} else {
		allow = platform.PermSendMessages
	}
	gerr := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.GrantMemberOverride(ctx, textID, evt.UserID, allow)
	})
	if gerr != nil {
		log.WithError(gerr).Error("Failed to grant text channel override to member")
		return gerr
	}

	s.notify.MemberWelcome(room, evt.UserID, !room.HasPassword())
	return nil
}

// HandleOwnerDisconnect 处理房主断开：撤销建房时授予的语音频道可见性覆写
// 并把归属置空。房间此时不删除——立即删除对短暂掉线重连的房主过于激进，
// 空置房间交给回收任务在宽限期之后处理。
func (s *MembershipService) HandleOwnerDisconnect(ctx context.Context, evt dispatch.VoiceEvent) error {
	if evt.Kind != dispatch.KindDisconnect {
		return nil
	}
	room, err := s.rooms.FindByVoiceChannel(ctx, evt.ChannelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !room.OwnedBy(evt.UserID) {
		return nil
	}
	log := logrus.WithFields(logrus.Fields{"room_id": room.ID, "owner_id": evt.UserID})

	rerr := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.RevokeMemberOverride(ctx, room.VoiceChannelID, evt.UserID)
	})
	if rerr != nil && !errors.Is(rerr, platform.ErrChannelNotFound) {
		log.WithError(rerr).Warn("Failed to revoke owner voice channel override")
	}

	if cerr := s.rooms.ClearOwner(ctx, room.ID); cerr != nil {
		log.WithError(cerr).Error("Failed to clear room owner")
		return cerr
	}
	log.Info("Owner disconnected, room ownership vacated")
	return nil
}

// HandlePasswordDisconnect 处理密码房间的断开：撤销该用户加入时获得的
// 文字频道覆写，与授予动作对称。
func (s *MembershipService) HandlePasswordDisconnect(ctx context.Context, evt dispatch.VoiceEvent) error {
	if evt.Kind != dispatch.KindDisconnect || evt.UserID == s.botID {
		return nil
	}
	room, err := s.rooms.FindByVoiceChannel(ctx, evt.ChannelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !room.HasPassword() || room.TextChannelID == nil {
		return nil
	}
	textID := *room.TextChannelID

	rerr := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.RevokeMemberOverride(ctx, textID, evt.UserID)
	})
	if rerr != nil && !errors.Is(rerr, platform.ErrChannelNotFound) {
		logrus.WithError(rerr).WithFields(logrus.Fields{
			"room_id": room.ID,
			"user_id": evt.UserID,
		}).Error("Failed to revoke text channel override on disconnect")
		return rerr
	}
	return nil
}
