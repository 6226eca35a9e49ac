package post

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("post not found")

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"mediaIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListResult is the paginated listing payload; it is cached as a whole under
// the posts:<page>:<limit> key.
type ListResult struct {
	Success     bool   `json:"success"`
	Posts       []Post `json:"posts"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalPosts  int    `json:"totalPosts"`
}
