package domain_test

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
)

func TestEffectiveLimit(t *testing.T) {
	// 0 表示不限，原样保存；正数为机器人预留一个席位
	assert.Equal(t, 0, domain.EffectiveLimit(0))
	assert.Equal(t, 0, domain.EffectiveLimit(-3))
	assert.Equal(t, 2, domain.EffectiveLimit(1))
	assert.Equal(t, 5, domain.EffectiveLimit(4))
}

func TestRoomInstance_OwnedBy(t *testing.T) {
	owner := snowflake.ID(300)
	room := domain.RoomInstance{OwnerID: &owner}

	assert.True(t, room.OwnedBy(owner))
	assert.False(t, room.OwnedBy(snowflake.ID(301)))

	room.OwnerID = nil
	assert.False(t, room.OwnedBy(owner), "归属已置空时任何人都不是房主")
}

func TestRoomConfig_RenderName(t *testing.T) {
	cfg := domain.RoomConfig{}
	assert.Equal(t, "小鱼 的房间", cfg.RenderName("小鱼"), "空模板应回退到默认模板")

	cfg.NameTemplate = "{name} 的小窝"
	assert.Equal(t, "小鱼 的小窝", cfg.RenderName("小鱼"))

	cfg.NameTemplate = "没有占位符"
	assert.Equal(t, "小鱼 的房间", cfg.RenderName("小鱼"), "无占位符的模板应回退到默认模板")
}
