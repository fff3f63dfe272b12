package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// RoomRepository 定义了临时房间记录的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间记录 ID 查找房间。
	// 房间不存在时返回 repository.ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.RoomInstance, error)

	// FindByOwner 查找指定服务器内由指定用户持有的房间。
	// 约定同一 (服务器, 房主) 至多存在一个存活房间，该约定由建房锁协作保证，
	// 调用方不得绕过建房锁直接写入。
	FindByOwner(ctx context.Context, guildID, ownerID snowflake.ID) (*domain.RoomInstance, error)

	// FindByVoiceChannel 根据语音频道 ID 查找房间，供连接/断开事件处理使用。
	FindByVoiceChannel(ctx context.Context, channelID snowflake.ID) (*domain.RoomInstance, error)

	// FindAll 返回所有持久化的房间记录，供回收任务全量扫描。
	FindAll(ctx context.Context) ([]domain.RoomInstance, error)

	// FindByGuild 返回指定服务器的全部房间记录。
	FindByGuild(ctx context.Context, guildID snowflake.ID) ([]domain.RoomInstance, error)

	// Save 保存房间记录。已存在 (基于 ID) 则更新，否则创建。
	Save(ctx context.Context, room *domain.RoomInstance) error

	// Delete 删除房间记录。记录不存在时视为成功 (幂等)。
	Delete(ctx context.Context, id uint) error

	// ClearOwner 将房间的房主字段置空。房主断开连接时调用，房间本身保留。
	ClearOwner(ctx context.Context, id uint) error

	// Touch 刷新房间的活跃时间戳，延长其在回收任务面前的宽限期。
	Touch(ctx context.Context, id uint) error
}
