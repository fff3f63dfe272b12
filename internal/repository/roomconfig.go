package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// RoomConfigRepository 定义了建房入口配置的只读检索操作。
// 配置由外部的管理指令模块写入，本核心只读取。
type RoomConfigRepository interface {
	// FindByID 根据配置 ID 查找入口配置。
	// 配置不存在时返回 repository.ErrConfigNotFound。
	FindByID(ctx context.Context, id uint) (*domain.RoomConfig, error)

	// FindByGuild 返回指定服务器的全部入口配置 (含停用的)。
	FindByGuild(ctx context.Context, guildID snowflake.ID) ([]domain.RoomConfig, error)

	// FindAllEnabled 返回所有启用状态的入口配置，供配置缓存预热。
	FindAllEnabled(ctx context.Context) ([]domain.RoomConfig, error)
}
