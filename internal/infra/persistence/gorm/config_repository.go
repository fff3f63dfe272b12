package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// GormRoomConfigRepository 是 RoomConfigRepository 接口的 GORM 实现。
// 入口配置由管理指令模块写入，这里只提供读取。
type GormRoomConfigRepository struct {
	db *gorm.DB
}

// NewGormRoomConfigRepository 创建 GormRoomConfigRepository 实例
func NewGormRoomConfigRepository(db *gorm.DB) *GormRoomConfigRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomConfigRepository")
	}
	return &GormRoomConfigRepository{db: db}
}

// FindByID 实现根据配置 ID 查找入口配置
func (r *GormRoomConfigRepository) FindByID(ctx context.Context, id uint) (*domain.RoomConfig, error) {
	var cfg domain.RoomConfig
	err := r.db.WithContext(ctx).First(&cfg, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrConfigNotFound
		}
		return nil, fmt.Errorf("gorm: find room config by id %d: %w", id, err)
	}
	return &cfg, nil
}

// FindByGuild 实现返回指定服务器的全部入口配置
func (r *GormRoomConfigRepository) FindByGuild(ctx context.Context, guildID snowflake.ID) ([]domain.RoomConfig, error) {
	var cfgs []domain.RoomConfig
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).Find(&cfgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find room configs by guild %d: %w", guildID, err)
	}
	return cfgs, nil
}

// FindAllEnabled 实现返回所有启用状态的入口配置
func (r *GormRoomConfigRepository) FindAllEnabled(ctx context.Context) ([]domain.RoomConfig, error) {
	var cfgs []domain.RoomConfig
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Find(&cfgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find enabled room configs: %w", err)
	}
	return cfgs, nil
}
