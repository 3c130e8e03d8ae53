package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event 权益变更事件，仅作为“列表可能已变化”的信号
type Event struct {
	Type       string    `json:"type"`
	BenefitID  uint      `json:"benefit_id,omitempty"`
	BusinessID uint      `json:"business_id,omitempty"`
	At         time.Time `json:"at"`
}

// Hub 进程内事件分发；可选通过 Redis Pub/Sub 在多实例间广播
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int

	client  redis.UniversalClient
	channel string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Subscription 可取消的订阅，取消后不再投递事件
type Subscription struct {
	ID     string
	events chan Event
	hub    *Hub
	once   sync.Once
	closed chan struct{}
}

// NewHub 创建事件中心
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 8
	}
	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
	}
}

// Subscribe 注册订阅
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		events: make(chan Event, h.bufferSize),
		hub:    h,
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	metrics.ActiveSubscriptions.Inc()
	return sub
}

// Events 事件通道
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done 订阅取消后关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.closed
}

// Cancel 取消订阅，可重复调用
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.ID)
		s.hub.mu.Unlock()
		close(s.closed)
		metrics.ActiveSubscriptions.Dec()
	})
}

// Size 当前订阅数
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish 发布事件。桥接开启时经 Redis 广播（含本实例），失败则回退为本地分发。
func (h *Hub) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if client, channel := h.bridge(); client != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			err = client.Publish(ctx, channel, payload).Err()
		}
		if err == nil {
			return
		}
		logger.Warnw("notify_bridge_publish_failed", "channel", channel, "error", err)
	}
	h.dispatch(event)
}

// dispatch 非阻塞投递；订阅方缓冲已满时丢弃，事件仅是变化信号
func (h *Hub) dispatch(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case <-sub.closed:
		case sub.events <- event:
		default:
			logger.Debugw("notify_event_dropped", "subscription_id", sub.ID, "type", event.Type)
		}
	}
}

func (h *Hub) bridge() (redis.UniversalClient, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cancel == nil {
		return nil, ""
	}
	return h.client, h.channel
}

// StartBridge 订阅 Redis 频道并将收到的事件分发给本地订阅方
func (h *Hub) StartBridge(ctx context.Context, client redis.UniversalClient, channel string) error {
	if client == nil || channel == "" {
		return nil
	}
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	bridgeCtx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.client = client
	h.channel = channel
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go func() {
		defer close(done)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.Warnw("notify_bridge_payload_invalid", "error", err)
					continue
				}
				h.dispatch(event)
			}
		}
	}()
	logger.Infow("notify_bridge_started", "channel", channel)
	return nil
}

// StopBridge 停止 Redis 桥接
func (h *Hub) StopBridge() {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.cancel = nil
	h.client = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
