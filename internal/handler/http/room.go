// Package http 提供运维接口的 HTTP 处理逻辑。
// 房间的创建与变更从不走 HTTP——它们由平台事件与用户指令驱动，
// 这里只暴露观测 (房间列表) 与兜底操作 (强制解散)。
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
	"github.com/SinarPandora/Jellyfish-sub000/internal/service"
)

// RoomHandler 封装了与临时房间相关的运维 HTTP 处理逻辑
type RoomHandler struct {
	rooms       repository.RoomRepository
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(rooms repository.RoomRepository, roomService *service.RoomService) *RoomHandler {
	if rooms == nil {
		panic("RoomRepository cannot be nil for RoomHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{rooms: rooms, roomService: roomService}
}

// RoomView 是房间列表响应中的单个房间
type RoomView struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	VoiceChannel string `json:"voice_channel"`
	Owner        string `json:"owner,omitempty"`
	MemberLimit  int    `json:"member_limit"`
	HasPassword  bool   `json:"has_password"`
	UpdatedAt    string `json:"updated_at"`
}

// ListRooms 返回指定服务器当前的全部临时房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	guildID, err := snowflake.ParseString(c.Param("guild"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guild id"})
		return
	}

	rooms, err := h.rooms.FindByGuild(c.Request.Context(), guildID)
	if err != nil {
		logrus.WithError(err).WithField("guild_id", guildID).
			Error("Handler.ListRooms: Failed to list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rooms"})
		return
	}

	views := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		v := RoomView{
			ID:           r.ID,
			Name:         r.Name,
			VoiceChannel: r.VoiceChannelID.String(),
			MemberLimit:  r.MemberLimit,
			HasPassword:  r.HasPassword(),
			UpdatedAt:    r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if r.OwnerID != nil {
			v.Owner = r.OwnerID.String()
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

// ForceDissolve 强制解散指定房间，不校验归属，供管理员兜底使用
func (h *RoomHandler) ForceDissolve(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room id"})
		return
	}
	operator := c.GetString("operator")
	logCtx := logrus.WithFields(logrus.Fields{"room_id": id, "operator": operator})

	err = h.roomService.DissolveByID(c.Request.Context(), uint(id), service.Callbacks{})
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		logCtx.WithError(err).Error("Handler.ForceDissolve: Failed to dissolve room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dissolve room"})
		return
	}

	logCtx.Info("Handler.ForceDissolve: Room dissolved by operator")
	c.JSON(http.StatusOK, gin.H{"message": "Room dissolved"})
}
