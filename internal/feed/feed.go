// Package feed resolves a viewer's landing feed at query time.
package feed

import (
	"fmt"
	"sort"

	"example.com/microblog/internal/access"
	"example.com/microblog/internal/models"
)

// DefaultLimit caps the feed when the caller passes no limit.
const DefaultLimit = 50

// SubscriptionSource is the slice of the store the resolver needs from the
// subscription graph.
type SubscriptionSource interface {
	FollowedIDs(subscriberID string) ([]string, error)
}

// PostSource yields an author's posts newest first.
type PostSource interface {
	PostsByAuthor(authorID string, limit int) ([]models.Post, error)
}

type Resolver struct {
	Subs  SubscriptionSource
	Posts PostSource
}

// Feed computes the viewer's feed: posts by followed authors or the viewer,
// filtered to what the viewer may see, newest first. A public post from an
// author the viewer does not follow never appears; the feed is scoped to
// the subscription graph, discovery is a separate concern.
func (r *Resolver) Feed(viewerID string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	followed, err := r.Subs.FollowedIDs(viewerID)
	if err != nil {
		return nil, fmt.Errorf("resolve followed authors: %w", err)
	}

	authors := make(map[string]struct{}, len(followed)+1)
	for _, id := range followed {
		authors[id] = struct{}{}
	}
	authors[viewerID] = struct{}{}

	var all []models.Post
	for authorID := range authors {
		posts, err := r.Posts.PostsByAuthor(authorID, limit)
		if err != nil {
			return nil, fmt.Errorf("load posts of author: %w", err)
		}
		for _, post := range posts {
			if access.CanView(post, viewerID) {
				all = append(all, post)
			}
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Created.Equal(all[j].Created) {
			return all[i].ID > all[j].ID
		}
		return all[i].Created.After(all[j].Created)
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
