package kook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
)

// newTestClient 创建指向测试服务器的客户端
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-token", logrus.New())
	c.baseURL = srv.URL
	return c
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    json.RawMessage(raw),
	})
}

func TestClient_RevokeMemberOverride_PropagatesBusinessError(t *testing.T) {
	// Arrange: 开放接口对删除返回非零业务码 (如权限不足)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channel-role/delete", r.URL.Path)
		writeEnvelope(w, 40301, "permission denied", nil)
	}))

	// Act
	err := client.RevokeMemberOverride(context.Background(), snowflake.ID(400), snowflake.ID(300))

	// Assert: 撤销失败必须上抛，不允许被当作“覆写不存在”吞掉
	require.Error(t, err)
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 40301, apiErr.Code)
}

func TestClient_GrantMemberOverride_CreateConflictIsAbsorbedByUpdate(t *testing.T) {
	// Arrange: 覆写记录已存在时 create 报错，update 正常生效
	var updateCalled bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channel-role/create":
			writeEnvelope(w, 40024, "覆写已存在", nil)
		case "/channel-role/update":
			updateCalled = true
			writeEnvelope(w, 0, "", nil)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	// Act
	err := client.GrantMemberOverride(context.Background(), snowflake.ID(400), snowflake.ID(300),
		platform.PermViewChannel)

	// Assert: update 是覆写是否生效的唯一判定
	require.NoError(t, err)
	assert.True(t, updateCalled, "create 冲突后应继续执行 update")
}

func TestClient_GrantMemberOverride_UpdateFailureSurfaces(t *testing.T) {
	// Arrange: create 与 update 同时失败 (如限流)，错误必须上抛
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 40500, "rate limited", nil)
	}))

	err := client.GrantMemberOverride(context.Background(), snowflake.ID(400), snowflake.ID(300),
		platform.PermSendMessages)

	require.Error(t, err)
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 40500, apiErr.Code)
}

func TestClient_ResolveChannel_NotFound(t *testing.T) {
	// Arrange: 频道不存在的业务码映射为 ErrChannelNotFound 哨兵
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 40000, "目标不存在", nil)
	}))

	_, err := client.ResolveChannel(context.Background(), snowflake.ID(404))

	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrChannelNotFound))
}

func TestClient_ResolveChannel_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channel/view", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("target_id"))
		assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
		writeEnvelope(w, 0, "", map[string]string{
			"id": "200", "guild_id": "100", "parent_id": "50", "name": "入口频道",
		})
	}))

	info, err := client.ResolveChannel(context.Background(), snowflake.ID(200))

	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(200), info.ID)
	assert.Equal(t, snowflake.ID(100), info.GuildID)
	assert.Equal(t, snowflake.ID(50), info.ParentID)
	assert.Equal(t, "入口频道", info.Name)
}
