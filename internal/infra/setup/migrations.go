package setup

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// MigrateDB 自动迁移数据库模式。
// RoomConfig 表由管理指令模块共享，这里一并迁移以保证单独部署时表结构完整。
func MigrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.RoomConfig{},
		&domain.RoomInstance{},
		&domain.EphemeralTextChannel{},
	)
	if err != nil {
		return fmt.Errorf("setup: migrate database: %w", err)
	}
	return nil
}
