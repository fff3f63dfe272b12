package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// CreationLock 定义了按房主维度互斥的建房锁。
// 目的是把同一用户短时间内的重复建房触发 (双击、指令与连入事件同时到达)
// 合并为一次建房尝试。锁带有固定 TTL，超时后视为过期，可被新的尝试抢占，
// 即使持有者从未显式释放。
//
// 该接口是注入式的：默认实现基于 Redis，可替换为其他分布式原语而无需改动调用方。
type CreationLock interface {
	// TryAcquire 尝试获取指定 (服务器, 房主) 的建房锁。
	// 返回 true 表示获取成功；false 表示锁正被持有 (且未过期)。
	TryAcquire(ctx context.Context, guildID, ownerID snowflake.ID) (bool, error)

	// Release 释放建房锁。只有当前持有者的释放才会生效，
	// 过期后被他人抢占的锁不会被旧持有者误释放。
	Release(ctx context.Context, guildID, ownerID snowflake.ID) error
}
