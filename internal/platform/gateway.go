// Package platform 定义了与聊天平台交互的边界接口。
// 核心只依赖这里的抽象；真正的网络传输由外部的 SDK 适配器实现。
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ErrChannelNotFound 表示目标频道在平台侧已不存在。
// 删除类操作遇到该错误应视为已达成 (幂等)，其余操作由调用方决定如何容忍。
var ErrChannelNotFound = errors.New("platform: channel not found")

// Permission 是频道权限覆写的位掩码，取值与平台开放接口的权限位一致。
type Permission uint64

const (
	// PermViewChannel 查看文字、语音频道
	PermViewChannel Permission = 1 << 11
	// PermSendMessages 发布消息
	PermSendMessages Permission = 1 << 12
	// PermMentionEveryone 提及 @全体成员
	PermMentionEveryone Permission = 1 << 17
)

// EveryoneRole 是平台默认角色 (@全体成员) 的角色 ID。
const EveryoneRole snowflake.ID = 0

// VoiceQualityHigh 是创建语音频道时请求的最高音质档位。
const VoiceQualityHigh = 3

// ChannelInfo 是频道句柄解析的结果。
type ChannelInfo struct {
	ID       snowflake.ID
	GuildID  snowflake.ID
	ParentID snowflake.ID // 所属分组 (分类) ID，0 表示未分组
	Name     string
}

// ChannelPatch 描述对频道的部分修改，nil 字段表示不修改。
type ChannelPatch struct {
	Name      *string
	UserLimit *int
}

// Gateway 是本核心用到的全部平台操作。
// 所有操作都可能失败且可重试；删除类操作对“目标已不存在”幂等。
type Gateway interface {
	// ResolveChannel 解析频道句柄。频道不存在时返回 ErrChannelNotFound，
	// 入口频道解析失败即意味着配置漂移。
	ResolveChannel(ctx context.Context, channelID snowflake.ID) (*ChannelInfo, error)

	// CreateVoiceChannel 在指定分组下创建语音频道，音质取最高可用档位。
	// userLimit 为 0 表示人数不限。返回新频道 ID。
	CreateVoiceChannel(ctx context.Context, guildID, parentID snowflake.ID, name string, userLimit int) (snowflake.ID, error)

	// CreateTextChannel 在指定分组下创建文字频道。返回新频道 ID。
	CreateTextChannel(ctx context.Context, guildID, parentID snowflake.ID, name string) (snowflake.ID, error)

	// DeleteChannel 删除频道。频道已不存在时返回 ErrChannelNotFound。
	DeleteChannel(ctx context.Context, channelID snowflake.ID) error

	// ModifyChannel 修改频道的名称或人数上限。
	ModifyChannel(ctx context.Context, channelID snowflake.ID, patch ChannelPatch) error

	// GrantMemberOverride 为用户在频道上添加或更新允许位的权限覆写。
	GrantMemberOverride(ctx context.Context, channelID, userID snowflake.ID, allow Permission) error

	// RevokeMemberOverride 移除用户在频道上的权限覆写。
	RevokeMemberOverride(ctx context.Context, channelID, userID snowflake.ID) error

	// SetRoleOverride 为角色在频道上设置权限覆写 (允许位与拒绝位)。
	SetRoleOverride(ctx context.Context, channelID, roleID snowflake.ID, allow, deny Permission) error

	// RemoveRoleOverride 移除角色在频道上的权限覆写。
	RemoveRoleOverride(ctx context.Context, channelID, roleID snowflake.ID) error

	// VoiceChannelMembers 返回当前连接在语音频道中的用户 ID 列表。
	VoiceChannelMembers(ctx context.Context, channelID snowflake.ID) ([]snowflake.ID, error)

	// MoveMember 将用户移入指定语音频道。
	MoveMember(ctx context.Context, guildID, userID, channelID snowflake.ID) error
}
