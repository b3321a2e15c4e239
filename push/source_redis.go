package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Hub pub/sub channels behind the SSE endpoints.
const (
	DefaultNetworkActivityChannel = "network_activity"
	DefaultTaskUpdatesChannel     = "task_updates"
)

// RedisSource subscribes straight to the hub's Redis pub/sub channels. The
// task updates channel is shared by all nodes, like its SSE counterpart.
type RedisSource struct {
	client                 redis.UniversalClient
	NetworkActivityChannel string
	TaskUpdatesChannel     string
}

func NewRedisSource(client redis.UniversalClient) *RedisSource {
	return &RedisSource{
		client:                 client,
		NetworkActivityChannel: DefaultNetworkActivityChannel,
		TaskUpdatesChannel:     DefaultTaskUpdatesChannel,
	}
}

func (s *RedisSource) channel(topic Topic) (string, error) {
	switch topic.Kind {
	case NetworkActivityTopic:
		return s.NetworkActivityChannel, nil
	case TaskUpdatesTopic:
		return s.TaskUpdatesChannel, nil
	default:
		return "", fmt.Errorf("push: unknown topic %d", topic.Kind)
	}
}

func (s *RedisSource) Open(ctx context.Context, topic Topic) (Stream, error) {
	ch, err := s.channel(topic)
	if err != nil {
		return nil, err
	}
	ps := s.client.Subscribe(ctx, ch)
	// Wait for the subscription confirmation so connection errors surface here.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", ch, err)
	}
	return &redisStream{ctx: ctx, ps: ps}, nil
}

type redisStream struct {
	ctx context.Context
	ps  *redis.PubSub
}

func (s *redisStream) Next() ([]byte, error) {
	msg, err := s.ps.ReceiveMessage(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("redis receive: %w", err)
	}
	return []byte(msg.Payload), nil
}

func (s *redisStream) Close() error {
	return s.ps.Close()
}
