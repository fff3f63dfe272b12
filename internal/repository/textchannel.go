package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

// TextChannelRepository 定义了配套临时文字频道引用的存储操作。
type TextChannelRepository interface {
	// Save 保存文字频道引用。
	Save(ctx context.Context, tc *domain.EphemeralTextChannel) error

	// DeleteByChannel 根据平台频道 ID 删除引用。不存在时视为成功。
	DeleteByChannel(ctx context.Context, channelID snowflake.ID) error
}
