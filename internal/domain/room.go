package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RoomInstance 表示一个已创建的临时语音房间。
// 该记录与平台上的语音频道一一对应，频道被回收时记录一并删除。
type RoomInstance struct {
	ID             uint          `gorm:"primaryKey"`            // 房间记录唯一标识符 (主键)
	RoomConfigID   uint          `gorm:"index;not null"`        // 所属入口配置 ID (外键关联 RoomConfig.ID)
	GuildID        snowflake.ID  `gorm:"index;not null"`        // 所在服务器 ID
	VoiceChannelID snowflake.ID  `gorm:"uniqueIndex;not null"`  // 平台上的语音频道 ID
	TextChannelID  *snowflake.ID `gorm:"index"`                 // 配套临时文字频道 ID (可为空)
	OwnerID        *snowflake.ID `gorm:"index"`                 // 房主用户 ID；房主断开连接后置空而非删除
	MemberLimit    int           `gorm:"not null;default:0"`    // 生效人数上限：0 表示不限，正数为请求人数 +1 (机器人占位)
	Name           string        `gorm:"size:191;not null"`     // 房间名称
	Password       string        `gorm:"size:32"`               // 数字密码，空串表示无密码
	RawCommand     string        `gorm:"type:text"`             // 创建该房间的原始指令文本，仅用于审计
	CreatedAt      time.Time     `gorm:"autoCreateTime"`        // 创建时间 (GORM 自动填充)
	UpdatedAt      time.Time     `gorm:"autoUpdateTime;index"`  // 最后更新时间，兼作活跃时间戳：有成员加入时刷新，回收任务据此判断宽限期
}

// HasPassword 判断房间是否设置了密码。
// 有密码的房间默认不可见，加入者需要被显式授予文字频道权限。
func (r *RoomInstance) HasPassword() bool {
	return r.Password != ""
}

// OwnedBy 判断给定用户是否为当前房主。OwnerID 为空时恒为 false。
func (r *RoomInstance) OwnedBy(userID snowflake.ID) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

// EffectiveLimit 根据请求人数计算持久化的生效上限。
// 0 (不限) 原样保存；正数额外 +1，为机器人自身预留一个席位。
func EffectiveLimit(requested int) int {
	if requested <= 0 {
		return 0
	}
	return requested + 1
}
