package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ctroy978/edagent/internal/domain/model"
)

// StateCache keeps the hot copy of each thread's workflow state in Redis.
// Postgres is the durable checkpoint; this cache just saves a round trip on
// every conversational turn. Entries expire on their own; a miss falls
// back to the database.
type StateCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewStateCache(client RedisClient, ttl time.Duration) *StateCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StateCache{client: client, ttl: ttl}
}

func (c *StateCache) key(threadID string) string {
	return fmt.Sprintf("workflow_state:%s", threadID)
}

func (c *StateCache) Set(ctx context.Context, state *model.WorkflowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(state.ThreadID), data, c.ttl)
}

func (c *StateCache) Get(ctx context.Context, threadID string) (*model.WorkflowState, error) {
	data, err := c.client.Get(ctx, c.key(threadID))
	if err != nil {
		return nil, err
	}
	var state model.WorkflowState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *StateCache) Invalidate(ctx context.Context, threadID string) error {
	return c.client.Del(ctx, c.key(threadID))
}
