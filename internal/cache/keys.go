package cache

import (
	"fmt"
	"time"
)

// Cache keys live in one place so the namespace prefixes used for group
// invalidation cannot drift apart from the keys they cover.

const (
	PostListPrefix = "posts:"
	QueryPrefix    = "query:"
)

// Default TTLs per access pattern. Single-item reads trust
// invalidation-on-write and keep a long fallback TTL; listing and search
// reads keep a short one as defence against missed invalidations.
const (
	PostTTL  = time.Hour
	ListTTL  = 5 * time.Minute
	QueryTTL = 5 * time.Minute
)

func KeyPost(id string) string { return "post:" + id }

func KeyPostList(page, limit int) string {
	return fmt.Sprintf("%s%d:%d", PostListPrefix, page, limit)
}

func KeyQuery(query string) string { return QueryPrefix + query }
