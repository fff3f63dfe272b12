package service

import "github.com/SinarPandora/Jellyfish-sub000/internal/domain"

// Callbacks 是调用方提供的成功/失败回调。
// 这是核心暴露给消息渲染协作方的唯一侧信道：核心不自己发消息，
// 只在操作落定后带着结果调用回调 (例如“发送邀请卡片”“发送错误提示”)。
// 两个字段都允许为 nil。
type Callbacks struct {
	OnSuccess func(room *domain.RoomInstance)
	OnFailure func(message string)
}

func (c Callbacks) success(room *domain.RoomInstance) {
	if c.OnSuccess != nil {
		c.OnSuccess(room)
	}
}

func (c Callbacks) fail(message string) {
	if c.OnFailure != nil {
		c.OnFailure(message)
	}
}
