package media

import (
	"context"
	"log/slog"

	"social/internal/events"
)

// Remover is what the event consumer needs from the repository.
type Remover interface {
	DeleteByIDs(ctx context.Context, ids []string) ([]Media, error)
}

// Consumer cleans up media attached to posts deleted in the post service.
type Consumer struct {
	repo     Remover
	uploader Uploader
	log      *slog.Logger
}

func NewConsumer(repo Remover, uploader Uploader, log *slog.Logger) *Consumer {
	return &Consumer{repo: repo, uploader: uploader, log: log}
}

// HandlePostDeleted removes the media records and stored objects named by
// the event. Redelivery finds nothing left to delete and succeeds.
func (c *Consumer) HandlePostDeleted(ctx context.Context, ev events.Envelope) error {
	var p events.PostDeletedPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}
	if len(p.MediaIDs) == 0 {
		return nil
	}

	deleted, err := c.repo.DeleteByIDs(ctx, p.MediaIDs)
	if err != nil {
		return err
	}

	for _, m := range deleted {
		if err := c.uploader.Remove(ctx, m.PublicID); err != nil {
			// The record is already gone; an orphaned object is a cleanup
			// concern, not a reason to redeliver the event.
			c.log.Error("failed to remove stored object", "public_id", m.PublicID, "error", err)
		}
	}

	c.log.Info("media deleted for post", "post_id", p.PostID, "count", len(deleted))
	return nil
}
