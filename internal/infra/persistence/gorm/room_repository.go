package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间记录 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.RoomInstance, error) {
	var room domain.RoomInstance
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// FindByOwner 实现按 (服务器, 房主) 查找存活房间
func (r *GormRoomRepository) FindByOwner(ctx context.Context, guildID, ownerID snowflake.ID) (*domain.RoomInstance, error) {
	var room domain.RoomInstance
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND owner_id = ?", guildID, ownerID).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by owner (guild: %d, owner: %d): %w", guildID, ownerID, err)
	}
	return &room, nil
}

// FindByVoiceChannel 实现根据语音频道 ID 查找房间
func (r *GormRoomRepository) FindByVoiceChannel(ctx context.Context, channelID snowflake.ID) (*domain.RoomInstance, error) {
	var room domain.RoomInstance
	err := r.db.WithContext(ctx).Where("voice_channel_id = ?", channelID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by voice channel %d: %w", channelID, err)
	}
	return &room, nil
}

// FindAll 实现全量扫描，供回收任务使用
func (r *GormRoomRepository) FindAll(ctx context.Context) ([]domain.RoomInstance, error) {
	var rooms []domain.RoomInstance
	// 按服务器排序便于回收任务分组处理
	err := r.db.WithContext(ctx).Order("guild_id").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all rooms: %w", err)
	}
	return rooms, nil
}

// FindByGuild 实现返回指定服务器的全部房间记录
func (r *GormRoomRepository) FindByGuild(ctx context.Context, guildID snowflake.ID) ([]domain.RoomInstance, error) {
	var rooms []domain.RoomInstance
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find rooms by guild %d: %w", guildID, err)
	}
	return rooms, nil
}

// Save 实现保存房间记录 (创建或更新)
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.RoomInstance) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %d, channel: %d): %w", room.ID, room.VoiceChannelID, err)
	}
	return nil
}

// Delete 实现删除房间记录。GORM 删除不存在的记录不报错，天然幂等。
func (r *GormRoomRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&domain.RoomInstance{}, id).Error
	if err != nil {
		return fmt.Errorf("gorm: delete room %d: %w", id, err)
	}
	return nil
}

// ClearOwner 实现将房主字段置空。房间记录保留，等待回收任务或新的归属流程处理。
func (r *GormRoomRepository) ClearOwner(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.RoomInstance{}).
		Where("id = ?", id).
		Update("owner_id", nil).Error
	if err != nil {
		return fmt.Errorf("gorm: clear owner of room %d: %w", id, err)
	}
	return nil
}

// Touch 实现刷新活跃时间戳。使用 UpdateColumn 绕过 GORM 钩子，只写这一列。
func (r *GormRoomRepository) Touch(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.RoomInstance{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room %d: %w", id, err)
	}
	return nil
}
