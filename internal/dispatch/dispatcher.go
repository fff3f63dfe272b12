// Package dispatch 把平台的连接/断开事件送入有界的处理器池。
//
// 入站事件不再为每个事件裸起 goroutine：事件先进入有界队列，
// 由固定数量的 worker 消费，队列满时丢弃并告警 (背压)。
// 事件之间没有顺序保证；同一事件按注册顺序依次流经全部处理器，
// 处理器是 continue 语义：不命中或失败都不阻断链上的其他处理器。
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"
)

// Kind 是语音事件类型
type Kind int

const (
	// KindConnect 用户连入语音频道
	KindConnect Kind = iota + 1
	// KindDisconnect 用户从语音频道断开
	KindDisconnect
)

// VoiceEvent 是一条平台语音事件。
type VoiceEvent struct {
	Kind        Kind
	GuildID     snowflake.ID
	ChannelID   snowflake.ID
	UserID      snowflake.ID
	DisplayName string // 用户昵称，建房时用于默认命名
	OccurredAt  time.Time
}

// HandlerFunc 是单个事件处理器。
// 返回的错误只用于记录，不会阻断同一事件链上的后续处理器。
type HandlerFunc func(ctx context.Context, evt VoiceEvent) error

type namedHandler struct {
	name string
	fn   HandlerFunc
}

// Dispatcher 是有界事件处理器池。
type Dispatcher struct {
	queue    chan VoiceEvent
	handlers []namedHandler
	workers  int
	timeout  time.Duration
	log      *logrus.Entry
	wg       sync.WaitGroup
}

// NewDispatcher 创建 Dispatcher。workers 是并发 worker 数，
// queueSize 是事件队列容量，handlerTimeout 是单个处理器的超时，传 0 用 30 秒。
func NewDispatcher(workers, queueSize int, handlerTimeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if handlerTimeout <= 0 {
		handlerTimeout = 30 * time.Second
	}
	return &Dispatcher{
		queue:   make(chan VoiceEvent, queueSize),
		workers: workers,
		timeout: handlerTimeout,
		log:     logrus.WithField("component", "dispatcher"),
	}
}

// Register 追加一个处理器。必须在 Start 之前调用完毕。
func (d *Dispatcher) Register(name string, fn HandlerFunc) {
	d.handlers = append(d.handlers, namedHandler{name: name, fn: fn})
}

// Submit 非阻塞投递事件。队列已满时丢弃并返回 false。
// 丢弃的连入事件最坏情况是用户需要再点一次入口频道，
// 丢弃的断开事件由回收任务兜底，所以丢弃优于无界积压。
func (d *Dispatcher) Submit(evt VoiceEvent) bool {
	select {
	case d.queue <- evt:
		return true
	default:
		d.log.WithFields(logrus.Fields{
			"kind":    evt.Kind,
			"guild":   evt.GuildID,
			"channel": evt.ChannelID,
			"user":    evt.UserID,
		}).Warn("Event queue full, dropping event")
		return false
	}
}

// Start 启动 worker 池。worker 随 ctx 取消退出。
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.WithFields(logrus.Fields{
		"workers":  d.workers,
		"handlers": len(d.handlers),
	}).Info("Dispatcher starting")
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Wait 阻塞直到所有 worker 退出。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-d.queue:
			d.dispatch(ctx, evt)
		}
	}
}

// dispatch 将事件依次交给全部处理器，单个处理器失败只记录。
func (d *Dispatcher) dispatch(ctx context.Context, evt VoiceEvent) {
	for _, h := range d.handlers {
		hctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := h.fn(hctx, evt)
		cancel()
		if err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"handler": h.name,
				"kind":    evt.Kind,
				"guild":   evt.GuildID,
				"channel": evt.ChannelID,
				"user":    evt.UserID,
			}).Error("Event handler failed")
		}
	}
}
