// Package search maintains a denormalized copy of post content for text
// search. It has no write API of its own: rows appear and disappear purely in
// reaction to post.created / post.deleted events.
package search

import "time"

type Document struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
