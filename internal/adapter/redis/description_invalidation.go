package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

const descriptionInvalidationChannel = "stylesheet_description:invalidate"

// DescriptionInvalidationSubscriber applies invalidations published by other
// instances to the local cache.
type DescriptionInvalidationSubscriber struct {
	rdb   *goredis.Client
	cache *DescriptionCache
}

func NewDescriptionInvalidationSubscriber(rdb *goredis.Client, cache *DescriptionCache) *DescriptionInvalidationSubscriber {
	return &DescriptionInvalidationSubscriber{rdb: rdb, cache: cache}
}

// Start blocks until ctx is done or the subscription is closed.
func (s *DescriptionInvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, descriptionInvalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleInvalidation(ctx, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *DescriptionInvalidationSubscriber) handleInvalidation(ctx context.Context, payload string) {
	kind, id, err := parseInvalidation(payload)
	if err != nil {
		slog.WarnContext(ctx, "Malformed description invalidation message", "payload", payload, "error", err)
		return
	}
	if err := s.cache.invalidateLocal(ctx, kind, id); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate description cache via pub/sub", "kind", kind, "id", id, "error", err)
		return
	}
	slog.DebugContext(ctx, "Description cache invalidated via pub/sub", "kind", kind, "id", id)
}

func PublishDescriptionInvalidation(ctx context.Context, rdb *goredis.Client, kind string, id int) error {
	payload := kind + ":" + strconv.Itoa(id)
	if err := rdb.Publish(ctx, descriptionInvalidationChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish description invalidation: %w", err)
	}
	return nil
}

func parseInvalidation(payload string) (string, int, error) {
	kind, rawID, ok := strings.Cut(payload, ":")
	if !ok || kind == "" {
		return "", 0, fmt.Errorf("expected kind:id")
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return "", 0, fmt.Errorf("invalid stylesheet id: %w", err)
	}
	return kind, id, nil
}
