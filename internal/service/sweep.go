package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// SweepService 是周期性的对账回收：扫描全部持久化房间，
// 删除超过宽限期且已无真实用户的房间 (外部频道与记录一并删除)。
//
// 回收与实时建房/解散之间没有锁：刚创建的房间完全靠宽限期保护，
// 因此宽限期必须显著大于一次外部调用的现实延迟。单次回收内部按房间
// 顺序执行；并发的回收轮次由调度侧保证至多一个在途。
type SweepService struct {
	rooms repository.RoomRepository
	texts repository.TextChannelRepository
	gw    platform.Gateway
	retry platform.Retrier
	botID snowflake.ID
	grace time.Duration
}

// NewSweepService 创建 SweepService 实例。grace 传 0 使用默认值 5 分钟。
func NewSweepService(
	rooms repository.RoomRepository,
	texts repository.TextChannelRepository,
	gw platform.Gateway,
	retry platform.Retrier,
	botID snowflake.ID,
	grace time.Duration,
) *SweepService {
	if rooms == nil {
		panic("RoomRepository cannot be nil for SweepService")
	}
	if texts == nil {
		panic("TextChannelRepository cannot be nil for SweepService")
	}
	if gw == nil {
		panic("Gateway cannot be nil for SweepService")
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &SweepService{rooms: rooms, texts: texts, gw: gw, retry: retry, botID: botID, grace: grace}
}

// Run 执行一轮回收。单个房间的失败只记录并跳过，不中断整轮；
// 只有存储层扫描失败才返回错误。
func (s *SweepService) Run(ctx context.Context) error {
	log := logrus.WithField("component", "room_sweep")
	started := time.Now()

	all, err := s.rooms.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("sweep: scan rooms: %w", err)
	}
	if len(all) == 0 {
		log.Debug("No rooms to sweep")
		return nil
	}

	byGuild := make(map[snowflake.ID][]domain.RoomInstance)
	for _, room := range all {
		byGuild[room.GuildID] = append(byGuild[room.GuildID], room)
	}

	reclaimed := 0
	for guildID, rooms := range byGuild {
		guildLog := log.WithField("guild_id", guildID)
		for i := range rooms {
			room := rooms[i]
			// 宽限期内的房间无论占用情况如何都不回收
			if time.Since(room.UpdatedAt) <= s.grace {
				continue
			}
			if s.sweepOne(ctx, guildLog, &room) {
				reclaimed++
			}
		}
	}

	log.WithFields(logrus.Fields{
		"scanned":   len(all),
		"reclaimed": reclaimed,
		"elapsed":   time.Since(started).Round(time.Millisecond).String(),
	}).Info("Room sweep completed")
	return nil
}

// sweepOne 检查并按需回收单个房间，返回是否发生了回收。
func (s *SweepService) sweepOne(ctx context.Context, log *logrus.Entry, room *domain.RoomInstance) bool {
	roomLog := log.WithFields(logrus.Fields{
		"room_id":       room.ID,
		"voice_channel": room.VoiceChannelID,
	})

	var members []snowflake.ID
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		list, lerr := s.gw.VoiceChannelMembers(ctx, room.VoiceChannelID)
		if lerr != nil {
			return lerr
		}
		members = list
		return nil
	})
	if err != nil {
		if errors.Is(err, platform.ErrChannelNotFound) {
			// 频道在平台侧已消失：清掉残留记录即可
			roomLog.Warn("Voice channel already gone, removing stale room row")
			s.deleteRow(ctx, roomLog, room)
			return true
		}
		roomLog.WithError(err).Warn("Failed to list voice channel members, skipping room")
		return false
	}

	if !s.abandoned(members) {
		return false
	}

	derr := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.gw.DeleteChannel(ctx, room.VoiceChannelID)
	})
	if derr != nil && !errors.Is(derr, platform.ErrChannelNotFound) {
		roomLog.WithError(derr).Warn("Failed to delete abandoned voice channel, skipping room")
		return false
	}
	s.deleteRow(ctx, roomLog, room)
	roomLog.Info("Abandoned room reclaimed")
	return true
}

// abandoned 判断成员列表是否意味着房间已被遗弃：空，或只剩机器人自己。
func (s *SweepService) abandoned(members []snowflake.ID) bool {
	switch len(members) {
	case 0:
		return true
	case 1:
		return members[0] == s.botID
	default:
		return false
	}
}

// deleteRow 删除配套文字频道 (容忍已消失) 与房间记录。
func (s *SweepService) deleteRow(ctx context.Context, log *logrus.Entry, room *domain.RoomInstance) {
	if room.TextChannelID != nil {
		textID := *room.TextChannelID
		terr := s.retry.Do(ctx, func(ctx context.Context) error {
			return s.gw.DeleteChannel(ctx, textID)
		})
		if terr != nil && !errors.Is(terr, platform.ErrChannelNotFound) {
			log.WithError(terr).Warn("Failed to delete paired text channel during sweep")
		}
		if derr := s.texts.DeleteByChannel(ctx, textID); derr != nil {
			log.WithError(derr).Warn("Failed to delete paired text channel reference during sweep")
		}
	}
	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		log.WithError(err).Error("Failed to delete room row during sweep")
	}
}
