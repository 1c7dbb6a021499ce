package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fabricguide/internal/models"
	"fabricguide/internal/redis"
)

const (
	redisInvalidateChannel = "fabricguide:worker:invalidate"
	redisHistoryTTL        = 30 * time.Minute
)

type invalidateMessage struct {
	Origin         string `json:"origin"`
	ConversationID int64  `json:"conversation_id"`
}

// historyCache shares conversation histories between instances through
// redis; peers drop their in-memory copy when another instance writes.
type historyCache struct {
	client *redis.Client
	origin string
	logger *zap.Logger
}

func newHistoryCache(client *redis.Client, logger *zap.Logger) *historyCache {
	if client == nil {
		return nil
	}
	return &historyCache{client: client, origin: uuid.NewString(), logger: logger}
}

func historyKey(conversationID int64) string {
	return fmt.Sprintf("fabricguide:history:%d", conversationID)
}

func (c *historyCache) load(ctx context.Context, conversationID int64) ([]*models.Message, bool) {
	if c == nil || conversationID <= 0 {
		return nil, false
	}
	var history []*models.Message
	if err := c.client.GetJSON(ctx, historyKey(conversationID), &history); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.logger.Warn("load cached history failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		}
		return nil, false
	}
	return history, true
}

func (c *historyCache) store(ctx context.Context, conversationID int64, history []*models.Message) {
	if c == nil || conversationID <= 0 {
		return
	}
	if err := c.client.SetJSON(ctx, historyKey(conversationID), history, redisHistoryTTL); err != nil {
		c.logger.Warn("cache history failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return
	}
	c.publish(ctx, conversationID)
}

func (c *historyCache) invalidate(ctx context.Context, conversationID int64) {
	if c == nil || conversationID <= 0 {
		return
	}
	if err := c.client.Del(ctx, historyKey(conversationID)); err != nil {
		c.logger.Warn("invalidate cached history failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
	}
	c.publish(ctx, conversationID)
}

func (c *historyCache) publish(ctx context.Context, conversationID int64) {
	payload, err := json.Marshal(invalidateMessage{Origin: c.origin, ConversationID: conversationID})
	if err != nil {
		c.logger.Warn("encode invalidation failed", zap.Error(err))
		return
	}
	if err := c.client.Publish(ctx, redisInvalidateChannel, string(payload)); err != nil {
		c.logger.Warn("publish invalidation failed", zap.Error(err))
	}
}

// listen calls handler for invalidations published by other instances until
// ctx is cancelled.
func (c *historyCache) listen(ctx context.Context, handler func(conversationID int64)) error {
	if c == nil || handler == nil {
		return nil
	}
	pubsub, err := c.client.Subscribe(ctx, redisInvalidateChannel)
	if err != nil {
		return err
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					c.logger.Warn("decode invalidation failed", zap.Error(err))
					continue
				}
				if inv.Origin == c.origin {
					continue
				}
				handler(inv.ConversationID)
			}
		}
	}()
	return nil
}
