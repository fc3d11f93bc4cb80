// Package access holds the pure authorization predicates for posts.
// They take resolved data and make no storage calls.
package access

import "example.com/microblog/internal/models"

// CanView reports whether viewerID may read the post: public posts are
// visible to anyone, private posts only to their author.
func CanView(post models.Post, viewerID string) bool {
	return post.IsPublic || post.AuthorID == viewerID
}

// CanModify reports whether userID may edit or delete the post. Only the
// author may; authorship is immutable after creation.
func CanModify(post models.Post, userID string) bool {
	return post.AuthorID == userID
}
