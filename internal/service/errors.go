package service

import "errors"

var (
	ErrAlreadyOwnsRoom = errors.New("requester already owns a live room")
	ErrNotRoomOwner    = errors.New("requester does not own a room")
	ErrConfigDrift     = errors.New("entry channel configured but no longer resolvable")
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInternalServer  = errors.New("internal server error")
)

// 面向用户的提示文案。渲染与发送由通知回调的提供方负责，
// 核心只产出文案本身。
const (
	MsgAlreadyOwnsRoom = "你已经拥有一个房间了，不能重复创建"
	MsgNotRoomOwner    = "你还没有自己的房间"
	MsgConfigDrift     = "入口频道配置已失效，请联系管理员修复"
	MsgInvalidCapacity = "房间人数格式不正确"
	MsgInvalidPassword = "房间密码必须是纯数字"
	MsgGenericFailure  = "操作失败了，请稍后再试"
)
