package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RoomConfig 表示管理员配置的一个建房入口。
// 该记录由外部的管理指令模块创建和修改，本核心只读取其缓存快照。
type RoomConfig struct {
	ID             uint          `gorm:"primaryKey"`           // 配置唯一标识符 (主键)
	GuildID        snowflake.ID  `gorm:"index;not null"`       // 所在服务器 ID
	Name           string        `gorm:"size:191;not null"`    // 入口名称，在同一服务器内唯一
	EntryChannelID snowflake.ID  `gorm:"index;not null"`       // 绑定的入口语音频道 ID，用户连入即触发建房
	TextChannelID  *snowflake.ID `gorm:"index"`                // 可选的入口文字频道 ID
	DefaultLimit   int           `gorm:"not null;default:0"`   // 默认请求人数，0 表示不限
	NameTemplate   string        `gorm:"size:191"`             // 房间命名模板，{name} 占位符替换为请求者昵称
	PairText       bool          `gorm:"not null;default:false"` // 是否为每个房间配套创建临时文字频道
	Enabled        bool          `gorm:"not null;default:true;index"` // 入口是否启用
	CreatedAt      time.Time     `gorm:"autoCreateTime"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime"`
}

// 默认命名模板。模板为空或不含占位符时回退到该值。
const defaultNameTemplate = "{name} 的房间"

// RenderName 按命名模板渲染默认房间名。
func (c *RoomConfig) RenderName(displayName string) string {
	tpl := c.NameTemplate
	if tpl == "" || !strings.Contains(tpl, "{name}") {
		tpl = defaultNameTemplate
	}
	return strings.ReplaceAll(tpl, "{name}", displayName)
}
