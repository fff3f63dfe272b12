package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// GormTextChannelRepository 是 TextChannelRepository 接口的 GORM 实现
type GormTextChannelRepository struct {
	db *gorm.DB
}

// NewGormTextChannelRepository 创建 GormTextChannelRepository 实例
func NewGormTextChannelRepository(db *gorm.DB) *GormTextChannelRepository {
	if db == nil {
		panic("database connection cannot be nil for GormTextChannelRepository")
	}
	return &GormTextChannelRepository{db: db}
}

// Save 实现保存文字频道引用
func (r *GormTextChannelRepository) Save(ctx context.Context, tc *domain.EphemeralTextChannel) error {
	err := r.db.WithContext(ctx).Save(tc).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save text channel (id: %d, channel: %d): %w", tc.ID, tc.ChannelID, err)
	}
	return nil
}

// DeleteByChannel 实现根据平台频道 ID 删除引用 (幂等)
func (r *GormTextChannelRepository) DeleteByChannel(ctx context.Context, channelID snowflake.ID) error {
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Delete(&domain.EphemeralTextChannel{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete text channel by channel %d: %w", channelID, err)
	}
	return nil
}
