package search

import (
	"context"
	"log/slog"

	"social/internal/cache"
	"social/internal/events"
)

// Indexer is what the event handlers need from the repository. Both
// operations must stay idempotent: the bus delivers at least once.
type Indexer interface {
	Index(ctx context.Context, d *Document) error
	DeleteByPostID(ctx context.Context, postID string) error
}

// Consumer reacts to post mutations that happened in the post service,
// updating this service's index and dropping its own cached query results
// before the event is acknowledged.
type Consumer struct {
	repo  Indexer
	cache *cache.Coordinator
	log   *slog.Logger
}

func NewConsumer(repo Indexer, coordinator *cache.Coordinator, log *slog.Logger) *Consumer {
	return &Consumer{repo: repo, cache: coordinator, log: log}
}

func (c *Consumer) HandlePostCreated(ctx context.Context, ev events.Envelope) error {
	var p events.PostCreatedPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}

	err := c.repo.Index(ctx, &Document{
		PostID:    p.PostID,
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return err
	}

	c.cache.InvalidateQueries(ctx)
	c.log.Info("search document indexed", "post_id", p.PostID)
	return nil
}

func (c *Consumer) HandlePostDeleted(ctx context.Context, ev events.Envelope) error {
	var p events.PostDeletedPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}

	if err := c.repo.DeleteByPostID(ctx, p.PostID); err != nil {
		return err
	}

	c.cache.InvalidateQueries(ctx)
	c.log.Info("search document deleted", "post_id", p.PostID)
	return nil
}
