package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EphemeralTextChannel 表示与临时语音房间配套的临时文字频道。
// 记录归属于临时文字频道模块，本核心在建房时创建、在回收时删除该引用。
type EphemeralTextChannel struct {
	ID        uint         `gorm:"primaryKey"`
	GuildID   snowflake.ID `gorm:"index;not null"`
	ChannelID snowflake.ID `gorm:"uniqueIndex;not null"` // 平台上的文字频道 ID
	CreatorID snowflake.ID `gorm:"index;not null"`       // 创建者 (对应房间的房主)
	ExpireAt  *time.Time   `gorm:"index"`                // 可选的过期时间，空值表示跟随房间生命周期
	CreatedAt time.Time    `gorm:"autoCreateTime"`
}
