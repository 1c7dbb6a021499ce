package assistant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultConversationTTL = 24 * time.Hour
	DefaultCleanInterval   = time.Hour
)

// StartConversationJanitor periodically removes conversations that have been
// idle for longer than ttl. onRemoved is called for every removed id.
func (s *Service) StartConversationJanitor(ctx context.Context, ttl, interval time.Duration, onRemoved func(int64)) {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	if interval <= 0 {
		interval = DefaultCleanInterval
	}
	go s.cleanupLoop(ctx, ttl, interval, onRemoved)
}

func (s *Service) cleanupLoop(ctx context.Context, ttl, interval time.Duration, onRemoved func(int64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.RemoveIdleConversations(ctx, time.Now().UTC().Add(-ttl))
			if err != nil {
				s.logger.Warn("cleanup idle conversations failed", zap.Error(err))
				continue
			}
			for _, id := range removed {
				if onRemoved != nil {
					onRemoved(id)
				}
			}
			if len(removed) > 0 {
				s.logger.Info("removed idle conversations", zap.Int("count", len(removed)))
			}
		}
	}
}

// RemoveIdleConversations deletes every conversation last touched before cutoff.
func (s *Service) RemoveIdleConversations(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations WHERE updated_at <= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query idle conversations: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan idle conversation: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	removed := make([]int64, 0, len(ids))
	for _, id := range ids {
		if err := s.DeleteConversation(ctx, id); err != nil {
			s.logger.Warn("delete idle conversation failed", zap.Int64("conversation_id", id), zap.Error(err))
			continue
		}
		removed = append(removed, id)
	}
	return removed, nil
}
