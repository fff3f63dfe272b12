package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/command"
	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// RoomService 负责临时房间的创建与变更。
//
// 建房是本核心唯一的显式串行化点：同一房主的并发建房尝试通过建房锁
// 合并为一次。后续变更 (改名/改人数/解散) 假定只有唯一合法房主在操作，
// 接受 last-write-wins 语义。
type RoomService struct {
	rooms repository.RoomRepository
	texts repository.TextChannelRepository
	lock  repository.CreationLock
	gw    platform.Gateway
	retry platform.Retrier
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(
	rooms repository.RoomRepository,
	texts repository.TextChannelRepository,
	lock repository.CreationLock,
	gw platform.Gateway,
	retry platform.Retrier,
) *RoomService {
	if rooms == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if texts == nil {
		panic("TextChannelRepository cannot be nil for RoomService")
	}
	if lock == nil {
		panic("CreationLock cannot be nil for RoomService")
	}
	if gw == nil {
		panic("Gateway cannot be nil for RoomService")
	}
	return &RoomService{rooms: rooms, texts: texts, lock: lock, gw: gw, retry: retry}
}

// CreateRequest 是一次建房请求。Args 来自指令解析器，
// Config 由调用方从配置缓存解析后绑定。
type CreateRequest struct {
	Config      *domain.RoomConfig
	Requester   snowflake.ID
	DisplayName string // 请求者昵称，用于默认命名模板
	Args        *command.CreationArgs
}

// 密码只允许纯数字
var passwordRe = regexp.MustCompile(`^\d*$`)

// CreateRoom 创建新的临时房间。
//
// 流程：取建房锁 → 锁内复查持有情况 → 校验参数 → 在入口频道所在分组下
// 创建语音频道 (必要时连同文字频道) → 持久化 → 成功回调。
// 锁内复查是刻意的：单独的“无已有房间”检查与锁获取不是原子步骤，
// 把复查放进持锁区间消除了两次近同时请求都通过检查的窗口。
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRequest, cb Callbacks) (*domain.RoomInstance, error) {
	cfg := req.Config
	log := logrus.WithFields(logrus.Fields{
		"guild_id":  cfg.GuildID,
		"config_id": cfg.ID,
		"requester": req.Requester,
	})

	// 1. 建房锁：同一房主的突发重复触发合并为一次尝试
	acquired, err := s.lock.TryAcquire(ctx, cfg.GuildID, req.Requester)
	if err != nil {
		log.WithError(err).Error("Failed to acquire creation lock")
		cb.fail(MsgGenericFailure)
		return nil, ErrInternalServer
	}
	if !acquired {
		log.Info("Creation lock held by an in-flight attempt, rejecting")
		cb.fail(MsgAlreadyOwnsRoom)
		return nil, ErrAlreadyOwnsRoom
	}
	defer func() {
		if rerr := s.lock.Release(ctx, cfg.GuildID, req.Requester); rerr != nil {
			log.WithError(rerr).Warn("Failed to release creation lock")
		}
	}()

	// 2. 锁内复查：请求者是否已持有存活房间
	if existing, ferr := s.rooms.FindByOwner(ctx, cfg.GuildID, req.Requester); ferr == nil {
		log.WithField("room_id", existing.ID).Info("Requester already owns a room, rejecting")
		cb.fail(MsgAlreadyOwnsRoom)
		return nil, ErrAlreadyOwnsRoom
	} else if !errors.Is(ferr, repository.ErrNotFound) {
		log.WithError(ferr).Error("Failed to check room ownership")
		cb.fail(MsgGenericFailure)
		return nil, ErrInternalServer
	}

	// 3. 参数校验：全部在任何外部变更之前完成
	requested := cfg.DefaultLimit
	if tok := req.Args.Capacity; tok != "" {
		n, perr := strconv.Atoi(tok)
		if perr != nil || n < 0 {
			cb.fail(MsgInvalidCapacity)
			return nil, ErrInvalidCapacity
		}
		requested = n
	}
	limit := domain.EffectiveLimit(requested)

	if !passwordRe.MatchString(req.Args.Password) {
		cb.fail(MsgInvalidPassword)
		return nil, ErrInvalidPassword
	}

	name := req.Args.Name
	if name == "" {
		name = cfg.RenderName(req.DisplayName)
	}
	log = log.WithField("room_name", name)

	// 4. 创建语音频道。入口频道句柄在每次尝试内重新解析，
	// 以防上一次失败使缓存的引用失效。
	var voiceID snowflake.ID
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		entry, rerr := s.gw.ResolveChannel(ctx, cfg.EntryChannelID)
		if rerr != nil {
			return rerr
		}
		id, cerr := s.gw.CreateVoiceChannel(ctx, cfg.GuildID, entry.ParentID, name, limit)
		if cerr != nil {
			return cerr
		}
		voiceID = id
		return nil
	})
	if errors.Is(err, platform.ErrChannelNotFound) {
		// 配置漂移：入口频道配置仍在但平台侧已不存在，需要管理员修复
		log.WithField("entry_channel", cfg.EntryChannelID).
			Warn("Configured entry channel no longer resolvable")
		cb.fail(MsgConfigDrift)
		return nil, ErrConfigDrift
	}
	if err != nil {
		log.WithError(err).Error("Failed to create voice channel after retries")
		cb.fail(MsgGenericFailure)
		return nil, ErrInternalServer
	}
	log = log.WithField("voice_channel", voiceID)

	room := &domain.RoomInstance{
		RoomConfigID:   cfg.ID,
		GuildID:        cfg.GuildID,
		VoiceChannelID: voiceID,
		OwnerID:        &req.Requester,
		MemberLimit:    limit,
		Name:           name,
		Password:       req.Args.Password,
		RawCommand:     req.Args.RawText,
	}

	// 5. 可选的配套文字频道。创建失败不致命：房间照常可用，仅记录告警。
	if cfg.PairText {
		if textID, terr := s.createPairedText(ctx, cfg, name, req.Requester); terr != nil {
			log.WithError(terr).Warn("Failed to create paired text channel, continuing without one")
		} else {
			room.TextChannelID = &textID
		}
	}

	// 6. 有密码的房间默认不可见：对 @全体成员 拒绝查看权限
	if room.HasPassword() {
		if perr := s.applyPasswordOverrides(ctx, room, true); perr != nil {
			log.WithError(perr).Warn("Failed to apply password visibility overrides")
		}
	}

	// 房主始终获得语音频道的可见性覆写，房间被对 @全体成员 隐藏时
	// 房主自己不受影响。房主断开时该覆写被对称撤销。
	if gerr := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.GrantMemberOverride(ctx, voiceID, req.Requester, platform.PermViewChannel)
	}); gerr != nil {
		log.WithError(gerr).Warn("Failed to grant owner visibility override")
	}

	// 7. 持久化。外部频道已创建成功，这里失败会留下一个回收任务
	// 看不到的孤儿频道，必须带全部上下文记录下来供人工处理。
	if serr := s.rooms.Save(ctx, room); serr != nil {
		log.WithError(serr).Error("Voice channel created but room row could not be persisted, channel is orphaned")
		cb.fail(MsgGenericFailure)
		return nil, ErrInternalServer
	}

	log.WithField("room_id", room.ID).Info("Room created")
	cb.success(room)
	return room, nil
}

// createPairedText 在入口频道所在分组下创建配套文字频道并登记引用。
func (s *RoomService) createPairedText(ctx context.Context, cfg *domain.RoomConfig, name string, creator snowflake.ID) (snowflake.ID, error) {
	var textID snowflake.ID
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		entry, rerr := s.gw.ResolveChannel(ctx, cfg.EntryChannelID)
		if rerr != nil {
			return rerr
		}
		id, cerr := s.gw.CreateTextChannel(ctx, cfg.GuildID, entry.ParentID, name)
		if cerr != nil {
			return cerr
		}
		textID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	ref := &domain.EphemeralTextChannel{
		GuildID:   cfg.GuildID,
		ChannelID: textID,
		CreatorID: creator,
	}
	if serr := s.texts.Save(ctx, ref); serr != nil {
		// 引用登记失败是可恢复的不一致：频道存在且会随房间一起删除
		logrus.WithError(serr).WithField("text_channel", textID).
			Warn("Paired text channel created but reference could not be persisted")
	}
	return textID, nil
}

// applyPasswordOverrides 切换房间的“密码房不可见”角色覆写。
// enable 为 true 时对 @全体成员 拒绝查看，false 时移除覆写恢复可见。
func (s *RoomService) applyPasswordOverrides(ctx context.Context, room *domain.RoomInstance, enable bool) error {
	channels := []snowflake.ID{room.VoiceChannelID}
	if room.TextChannelID != nil {
		channels = append(channels, *room.TextChannelID)
	}
	for _, ch := range channels {
		ch := ch
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			if enable {
				return s.gw.SetRoleOverride(ctx, ch, platform.EveryoneRole, 0, platform.PermViewChannel)
			}
			return s.gw.RemoveRoleOverride(ctx, ch, platform.EveryoneRole)
		})
		if err != nil && !errors.Is(err, platform.ErrChannelNotFound) {
			return err
		}
	}
	return nil
}

// findOwned 定位请求者在指定服务器持有的唯一房间。
func (s *RoomService) findOwned(ctx context.Context, guildID, requester snowflake.ID) (*domain.RoomInstance, error) {
	room, err := s.rooms.FindByOwner(ctx, guildID, requester)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotRoomOwner
		}
		return nil, ErrInternalServer
	}
	return room, nil
}

// Rename 重命名请求者持有的房间。先改平台侧频道，成功后才落库：
// 外部状态是事实来源，外部成功后的落库失败按可恢复不一致记录，不自动重试。
func (s *RoomService) Rename(ctx context.Context, guildID, requester snowflake.ID, newName string, cb Callbacks) error {
	room, err := s.findOwned(ctx, guildID, requester)
	if err != nil {
		return s.rejectMutation(err, cb)
	}
	log := logrus.WithFields(logrus.Fields{"room_id": room.ID, "room_name": newName, "requester": requester})

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.ModifyChannel(ctx, room.VoiceChannelID, platform.ChannelPatch{Name: &newName})
	})
	if err != nil {
		log.WithError(err).Error("Failed to rename voice channel after retries")
		cb.fail(MsgGenericFailure)
		return ErrInternalServer
	}

	room.Name = newName
	if serr := s.rooms.Save(ctx, room); serr != nil {
		log.WithError(serr).Error("Channel renamed but room row could not be updated")
	}
	cb.success(room)
	return nil
}

// UpdateCapacity 调整请求者持有房间的人数上限。requested 为 0 表示不限。
func (s *RoomService) UpdateCapacity(ctx context.Context, guildID, requester snowflake.ID, requested int, cb Callbacks) error {
	if requested < 0 {
		cb.fail(MsgInvalidCapacity)
		return ErrInvalidCapacity
	}
	room, err := s.findOwned(ctx, guildID, requester)
	if err != nil {
		return s.rejectMutation(err, cb)
	}
	limit := domain.EffectiveLimit(requested)
	log := logrus.WithFields(logrus.Fields{"room_id": room.ID, "member_limit": limit, "requester": requester})

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.ModifyChannel(ctx, room.VoiceChannelID, platform.ChannelPatch{UserLimit: &limit})
	})
	if err != nil {
		log.WithError(err).Error("Failed to update channel user limit after retries")
		cb.fail(MsgGenericFailure)
		return ErrInternalServer
	}

	room.MemberLimit = limit
	if serr := s.rooms.Save(ctx, room); serr != nil {
		log.WithError(serr).Error("Channel limit updated but room row could not be updated")
	}
	cb.success(room)
	return nil
}

// SetPassword 设置或清除房间密码。传空串表示清除。
// 密码的生效方式是可见性覆写：设置后房间默认不可见，清除后恢复。
func (s *RoomService) SetPassword(ctx context.Context, guildID, requester snowflake.ID, password string, cb Callbacks) error {
	if !passwordRe.MatchString(password) {
		cb.fail(MsgInvalidPassword)
		return ErrInvalidPassword
	}
	room, err := s.findOwned(ctx, guildID, requester)
	if err != nil {
		return s.rejectMutation(err, cb)
	}
	log := logrus.WithFields(logrus.Fields{"room_id": room.ID, "requester": requester})

	if perr := s.applyPasswordOverrides(ctx, room, password != ""); perr != nil {
		log.WithError(perr).Error("Failed to toggle password visibility overrides after retries")
		cb.fail(MsgGenericFailure)
		return ErrInternalServer
	}

	room.Password = password
	if serr := s.rooms.Save(ctx, room); serr != nil {
		log.WithError(serr).Error("Overrides toggled but room row could not be updated")
	}
	cb.success(room)
	return nil
}

// Dissolve 解散请求者持有的房间。
func (s *RoomService) Dissolve(ctx context.Context, guildID, requester snowflake.ID, cb Callbacks) error {
	room, err := s.findOwned(ctx, guildID, requester)
	if err != nil {
		return s.rejectMutation(err, cb)
	}
	return s.removeRoom(ctx, room, cb)
}

// DissolveByID 按记录 ID 强制解散房间，供运维接口使用，不校验归属。
func (s *RoomService) DissolveByID(ctx context.Context, id uint, cb Callbacks) error {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoomNotFound
		}
		return ErrInternalServer
	}
	return s.removeRoom(ctx, room, cb)
}

// removeRoom 删除平台频道与持久化记录。
// “频道已不存在”视为已达成，只记告警；外部调用路径走完后记录无条件删除。
func (s *RoomService) removeRoom(ctx context.Context, room *domain.RoomInstance, cb Callbacks) error {
	log := logrus.WithFields(logrus.Fields{"room_id": room.ID, "voice_channel": room.VoiceChannelID})

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.DeleteChannel(ctx, room.VoiceChannelID)
	})
	if errors.Is(err, platform.ErrChannelNotFound) {
		log.Warn("Voice channel already gone, treating delete as done")
	} else if err != nil {
		log.WithError(err).Error("Failed to delete voice channel after retries")
		cb.fail(MsgGenericFailure)
		return ErrInternalServer
	}

	if room.TextChannelID != nil {
		textID := *room.TextChannelID
		terr := s.retry.Do(ctx, func(ctx context.Context) error {
			return s.gw.DeleteChannel(ctx, textID)
		})
		if terr != nil && !errors.Is(terr, platform.ErrChannelNotFound) {
			log.WithError(terr).Warn("Failed to delete paired text channel")
		}
		if derr := s.texts.DeleteByChannel(ctx, textID); derr != nil {
			log.WithError(derr).Warn("Failed to delete paired text channel reference")
		}
	}

	if derr := s.rooms.Delete(ctx, room.ID); derr != nil {
		log.WithError(derr).Error("Failed to delete room row")
		cb.fail(MsgGenericFailure)
		return ErrInternalServer
	}
	log.Info("Room dissolved")
	cb.success(room)
	return nil
}

// rejectMutation 把定位房主的失败转成对应的用户提示。
func (s *RoomService) rejectMutation(err error, cb Callbacks) error {
	if errors.Is(err, ErrNotRoomOwner) {
		cb.fail(MsgNotRoomOwner)
		return ErrNotRoomOwner
	}
	cb.fail(MsgGenericFailure)
	return err
}
