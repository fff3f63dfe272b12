// Package kook 是 platform.Gateway 的 KOOK 开放接口 (v3 REST) 适配器。
package kook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/platform"
)

const defaultBaseURL = "https://www.kookapp.cn/api/v3"

// KOOK 频道类型常量
const (
	channelTypeText  = 1
	channelTypeVoice = 2
)

// 频道不存在时开放接口返回的业务码
const codeChannelNotFound = 40000

// Client 通过 KOOK 开放接口实现 platform.Gateway。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logrus.Entry
}

// NewClient 创建 KOOK 开放接口客户端。token 为机器人 Token (不含 "Bot " 前缀)。
func NewClient(token string, logger *logrus.Logger) *Client {
	if token == "" {
		panic("bot token cannot be empty for kook.Client")
	}
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger.WithField("component", "kook_client"),
	}
}

// envelope 是开放接口统一的响应外壳，code 为 0 表示成功。
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// apiError 保留业务码，便于上层按错误类型分流
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("kook: api error code=%d message=%q", e.Code, e.Message)
}

// do 发起请求并解析响应外壳，out 为 nil 时丢弃 data。
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("kook: marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("kook: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kook: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("kook: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("kook: decode response (http %d): %w", resp.StatusCode, err)
	}
	if env.Code != 0 {
		c.log.WithFields(logrus.Fields{
			"path": path,
			"code": env.Code,
			"msg":  env.Message,
		}).Debug("KOOK api returned non-zero code")
		if env.Code == codeChannelNotFound || resp.StatusCode == http.StatusNotFound {
			return platform.ErrChannelNotFound
		}
		return &apiError{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("kook: decode data: %w", err)
		}
	}
	return nil
}

// channelView 是 channel/view 与 channel/create 响应中用到的字段子集
type channelView struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

func parseID(s string) (snowflake.ID, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	return snowflake.ParseString(s)
}

// ResolveChannel 实现 platform.Gateway
func (c *Client) ResolveChannel(ctx context.Context, channelID snowflake.ID) (*platform.ChannelInfo, error) {
	q := url.Values{"target_id": {channelID.String()}}
	var view channelView
	if err := c.do(ctx, http.MethodGet, "/channel/view?"+q.Encode(), nil, &view); err != nil {
		return nil, err
	}

	id, err := parseID(view.ID)
	if err != nil {
		return nil, fmt.Errorf("kook: parse channel id %q: %w", view.ID, err)
	}
	guildID, err := parseID(view.GuildID)
	if err != nil {
		return nil, fmt.Errorf("kook: parse guild id %q: %w", view.GuildID, err)
	}
	parentID, err := parseID(view.ParentID)
	if err != nil {
		return nil, fmt.Errorf("kook: parse parent id %q: %w", view.ParentID, err)
	}
	return &platform.ChannelInfo{
		ID:       id,
		GuildID:  guildID,
		ParentID: parentID,
		Name:     view.Name,
	}, nil
}

func (c *Client) createChannel(ctx context.Context, guildID, parentID snowflake.ID, name string, chType int, userLimit int) (snowflake.ID, error) {
	body := map[string]any{
		"guild_id": guildID.String(),
		"name":     name,
		"type":     chType,
	}
	if parentID != 0 {
		body["parent_id"] = parentID.String()
	}
	if chType == channelTypeVoice {
		body["voice_quality"] = strconv.Itoa(platform.VoiceQualityHigh)
		if userLimit > 0 {
			body["limit_amount"] = userLimit
		}
	}

	var view channelView
	if err := c.do(ctx, http.MethodPost, "/channel/create", body, &view); err != nil {
		return 0, err
	}
	id, err := parseID(view.ID)
	if err != nil {
		return 0, fmt.Errorf("kook: parse created channel id %q: %w", view.ID, err)
	}
	return id, nil
}

// CreateVoiceChannel 实现 platform.Gateway
func (c *Client) CreateVoiceChannel(ctx context.Context, guildID, parentID snowflake.ID, name string, userLimit int) (snowflake.ID, error) {
	return c.createChannel(ctx, guildID, parentID, name, channelTypeVoice, userLimit)
}

// CreateTextChannel 实现 platform.Gateway
func (c *Client) CreateTextChannel(ctx context.Context, guildID, parentID snowflake.ID, name string) (snowflake.ID, error) {
	return c.createChannel(ctx, guildID, parentID, name, channelTypeText, 0)
}

// DeleteChannel 实现 platform.Gateway
func (c *Client) DeleteChannel(ctx context.Context, channelID snowflake.ID) error {
	body := map[string]any{"channel_id": channelID.String()}
	return c.do(ctx, http.MethodPost, "/channel/delete", body, nil)
}

// ModifyChannel 实现 platform.Gateway
func (c *Client) ModifyChannel(ctx context.Context, channelID snowflake.ID, patch platform.ChannelPatch) error {
	body := map[string]any{"channel_id": channelID.String()}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.UserLimit != nil {
		body["limit_amount"] = *patch.UserLimit
	}
	return c.do(ctx, http.MethodPost, "/channel/update", body, nil)
}

// setOverride 写入一条覆写。开放接口要求覆写记录先 create 再 update，
// 对已有记录 create 会报业务错误且无专用码值区分，因此 create 的结果
// 只记日志，以随后的 update 作为该覆写是否生效的唯一判定。
func (c *Client) setOverride(ctx context.Context, channelID snowflake.ID, kind, value string, allow, deny platform.Permission) error {
	createBody := map[string]any{
		"channel_id": channelID.String(),
		"type":       kind,
		"value":      value,
	}
	if err := c.do(ctx, http.MethodPost, "/channel-role/create", createBody, nil); err != nil {
		if errors.Is(err, platform.ErrChannelNotFound) {
			return err
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"channel": channelID,
			"type":    kind,
			"value":   value,
		}).Debug("Override create rejected, relying on update")
	}

	updateBody := map[string]any{
		"channel_id": channelID.String(),
		"type":       kind,
		"value":      value,
		"allow":      uint64(allow),
		"deny":       uint64(deny),
	}
	return c.do(ctx, http.MethodPost, "/channel-role/update", updateBody, nil)
}

// GrantMemberOverride 实现 platform.Gateway
func (c *Client) GrantMemberOverride(ctx context.Context, channelID, userID snowflake.ID, allow platform.Permission) error {
	return c.setOverride(ctx, channelID, "user_id", userID.String(), allow, 0)
}

// RevokeMemberOverride 实现 platform.Gateway。
// 删除不存在的覆写记录开放接口按成功应答，其余业务错误
// (权限不足、限流) 必须原样上抛，撤销失败不允许被静默吞掉。
func (c *Client) RevokeMemberOverride(ctx context.Context, channelID, userID snowflake.ID) error {
	body := map[string]any{
		"channel_id": channelID.String(),
		"type":       "user_id",
		"value":      userID.String(),
	}
	return c.do(ctx, http.MethodPost, "/channel-role/delete", body, nil)
}

// SetRoleOverride 实现 platform.Gateway
func (c *Client) SetRoleOverride(ctx context.Context, channelID, roleID snowflake.ID, allow, deny platform.Permission) error {
	return c.setOverride(ctx, channelID, "role_id", roleID.String(), allow, deny)
}

// RemoveRoleOverride 实现 platform.Gateway
func (c *Client) RemoveRoleOverride(ctx context.Context, channelID, roleID snowflake.ID) error {
	body := map[string]any{
		"channel_id": channelID.String(),
		"type":       "role_id",
		"value":      roleID.String(),
	}
	return c.do(ctx, http.MethodPost, "/channel-role/delete", body, nil)
}

// userListItem 是 channel/user-list 响应中的字段子集
type userListItem struct {
	ID string `json:"id"`
}

// VoiceChannelMembers 实现 platform.Gateway
func (c *Client) VoiceChannelMembers(ctx context.Context, channelID snowflake.ID) ([]snowflake.ID, error) {
	q := url.Values{"channel_id": {channelID.String()}}
	var users []userListItem
	if err := c.do(ctx, http.MethodGet, "/channel/user-list?"+q.Encode(), nil, &users); err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(users))
	for _, u := range users {
		id, err := parseID(u.ID)
		if err != nil {
			c.log.WithField("raw_id", u.ID).Warn("Skipping unparsable user id in voice channel list")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MoveMember 实现 platform.Gateway
func (c *Client) MoveMember(ctx context.Context, guildID, userID, channelID snowflake.ID) error {
	body := map[string]any{
		"target_id": channelID.String(),
		"user_ids":  []string{userID.String()},
	}
	return c.do(ctx, http.MethodPost, "/channel/move-user", body, nil)
}

