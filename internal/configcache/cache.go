// Package configcache 维护建房入口配置的读多写少内存镜像。
//
// 缓存以版本化快照的方式工作：读路径从 atomic.Value 里取出当前快照，
// 不与写路径共享可变状态；管理指令模块写库后通过 Invalidate (或跨进程的
// Redis 失效频道) 触发整体重建，避免就地修改带来的可见性竞争。
package configcache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/SinarPandora/Jellyfish-sub000/internal/domain"
	"github.com/SinarPandora/Jellyfish-sub000/internal/repository"
)

// entryKey 以 (服务器, 入口频道) 作为缓存键
type entryKey struct {
	guildID   snowflake.ID
	channelID snowflake.ID
}

// snapshot 是某一时刻全部启用配置的不可变视图
type snapshot struct {
	version uint64
	byEntry map[entryKey]*domain.RoomConfig
}

// Cache 是入口配置缓存。零值不可用，必须通过 NewCache 创建并 Warm 预热。
type Cache struct {
	repo    repository.RoomConfigRepository
	current atomic.Value // *snapshot

	// 重建串行化：并发的失效请求只触发一次重载
	reloadMu sync.Mutex
	version  uint64
}

// NewCache 创建配置缓存实例
func NewCache(repo repository.RoomConfigRepository) *Cache {
	if repo == nil {
		panic("RoomConfigRepository cannot be nil for Cache")
	}
	c := &Cache{repo: repo}
	c.current.Store(&snapshot{byEntry: map[entryKey]*domain.RoomConfig{}})
	return c
}

// Warm 全量加载启用配置并发布新快照。启动时调用一次，之后由失效触发。
func (c *Cache) Warm(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	cfgs, err := c.repo.FindAllEnabled(ctx)
	if err != nil {
		return err
	}
	byEntry := make(map[entryKey]*domain.RoomConfig, len(cfgs))
	for i := range cfgs {
		cfg := cfgs[i]
		byEntry[entryKey{cfg.GuildID, cfg.EntryChannelID}] = &cfg
	}
	c.version++
	c.current.Store(&snapshot{version: c.version, byEntry: byEntry})
	logrus.WithFields(logrus.Fields{
		"component": "config_cache",
		"configs":   len(byEntry),
		"version":   c.version,
	}).Info("Room config cache reloaded")
	return nil
}

// ByEntryChannel 按 (服务器, 入口频道) 查找启用的入口配置。
// 快照是权威的，未命中即判定为非入口频道：每个服务器的绝大多数连接事件
// 来自普通频道，未命中是最热路径，必须纯内存应答、绝不回查存储层。
// 新写入配置的可见性由 Invalidate 与跨进程失效频道保证。
func (c *Cache) ByEntryChannel(guildID, channelID snowflake.ID) (*domain.RoomConfig, bool) {
	snap := c.current.Load().(*snapshot)
	cfg, ok := snap.byEntry[entryKey{guildID, channelID}]
	return cfg, ok
}

// Invalidate 丢弃当前快照并立即重建。管理指令模块写库后调用。
func (c *Cache) Invalidate(ctx context.Context) {
	if err := c.Warm(ctx); err != nil {
		logrus.WithError(err).Error("Config cache invalidation reload failed")
	}
}

// ListenInvalidations 订阅 Redis 失效频道，收到任意消息即整体重建。
// 管理指令模块可能运行在其他进程，跨进程写入通过该频道通知本核心。
// 阻塞直到 ctx 取消，应在单独的 goroutine 中运行。
func (c *Cache) ListenInvalidations(ctx context.Context, client *redis.Client, channel string) {
	log := logrus.WithFields(logrus.Fields{"component": "config_cache", "channel": channel})
	sub := client.Subscribe(ctx, channel)
	defer func() {
		if err := sub.Close(); err != nil {
			log.WithError(err).Warn("Failed to close invalidation subscription")
		}
	}()

	log.Info("Listening for room config invalidations")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info("Invalidation listener stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn("Invalidation subscription channel closed")
				return
			}
			log.WithField("payload", msg.Payload).Debug("Room config invalidation received")
			c.Invalidate(ctx)
		}
	}
}
