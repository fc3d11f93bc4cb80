package store

import (
	"strings"
	"time"

	"example.com/microblog/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// --- Content operations ---
//
// Posts live in two tables: posts (lookup by id) and posts_by_author
// (clustered by created_at desc). Tag associations are index rows in
// posts_by_tag plus a denormalized set on the post rows. All multi-row
// mutations go through a single logged batch so they are applied atomically.

// ensureTags find-or-creates each tag name via CAS. Tag rows are never
// deleted, so a stray row from a later-failed batch is harmless.
func (s *Store) ensureTags(names []string) error {
	for _, name := range names {
		result := make(map[string]interface{})
		if _, err := s.Session.Query(
			`INSERT INTO tags (name) VALUES (?) IF NOT EXISTS`, name,
		).MapScanCAS(result); err != nil {
			logg.Error("store", "Failed to find-or-create tag", err)
			return err
		}
	}
	return nil
}

func (s *Store) CreatePost(authorID, title, body string, isPublic bool, tagNames []string) (models.Post, error) {
	post := models.Post{
		ID:       uuid.NewString(),
		AuthorID: authorID,
		Title:    title,
		Body:     body,
		IsPublic: isPublic,
		Tags:     models.NormalizeTagNames(tagNames),
		Created:  time.Now().UTC(),
	}

	if err := s.ensureTags(post.Tags); err != nil {
		return models.Post{}, err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`
		INSERT INTO posts (post_id, author_id, title, body, is_public, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Title, post.Body, post.IsPublic, post.Tags, post.Created)
	batch.Query(`
		INSERT INTO posts_by_author (author_id, created_at, post_id, title, body, is_public, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.AuthorID, post.Created, post.ID, post.Title, post.Body, post.IsPublic, post.Tags)
	for _, tag := range post.Tags {
		batch.Query(`INSERT INTO posts_by_tag (tag_name, post_id) VALUES (?, ?)`, tag, post.ID)
	}

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to create post", err)
		return models.Post{}, err
	}

	logg.Info("store", "Post created (post content anonymized)")
	return post, nil
}

func (s *Store) GetPost(postID string) (models.Post, error) {
	var post models.Post
	err := s.Session.Query(`
		SELECT post_id, author_id, title, body, is_public, tags, created_at
		FROM posts WHERE post_id = ?`,
		postID,
	).Scan(&post.ID, &post.AuthorID, &post.Title, &post.Body, &post.IsPublic, &post.Tags, &post.Created)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Post{}, ErrNotFound
		}
		logg.Error("store", "Failed to query post", err)
		return models.Post{}, err
	}
	return post, nil
}

// UpdatePost replaces title, body, visibility and the full tag association
// set. Tags no longer named are dissociated; the Tag rows themselves stay.
func (s *Store) UpdatePost(postID, title, body string, isPublic bool, tagNames []string) (models.Post, error) {
	post, err := s.GetPost(postID)
	if err != nil {
		return models.Post{}, err
	}

	newTags := models.NormalizeTagNames(tagNames)
	if err := s.ensureTags(newTags); err != nil {
		return models.Post{}, err
	}

	keep := make(map[string]struct{}, len(newTags))
	for _, tag := range newTags {
		keep[tag] = struct{}{}
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`
		UPDATE posts SET title = ?, body = ?, is_public = ?, tags = ?
		WHERE post_id = ?`,
		title, body, isPublic, newTags, postID)
	batch.Query(`
		INSERT INTO posts_by_author (author_id, created_at, post_id, title, body, is_public, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.AuthorID, post.Created, post.ID, title, body, isPublic, newTags)
	for _, tag := range post.Tags {
		if _, ok := keep[tag]; !ok {
			batch.Query(`DELETE FROM posts_by_tag WHERE tag_name = ? AND post_id = ?`, tag, postID)
		}
	}
	for _, tag := range newTags {
		batch.Query(`INSERT INTO posts_by_tag (tag_name, post_id) VALUES (?, ?)`, tag, postID)
	}

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to update post", err)
		return models.Post{}, err
	}

	post.Title = title
	post.Body = body
	post.IsPublic = isPublic
	post.Tags = newTags
	logg.Info("store", "Post updated (post content anonymized)")
	return post, nil
}

// DeletePost removes the post, its author-index row, its tag associations
// and its whole comment partition. Tag rows are never deleted.
func (s *Store) DeletePost(postID string) error {
	post, err := s.GetPost(postID)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`DELETE FROM posts WHERE post_id = ?`, postID)
	batch.Query(`DELETE FROM posts_by_author WHERE author_id = ? AND created_at = ? AND post_id = ?`,
		post.AuthorID, post.Created, post.ID)
	for _, tag := range post.Tags {
		batch.Query(`DELETE FROM posts_by_tag WHERE tag_name = ? AND post_id = ?`, tag, postID)
	}
	batch.Query(`DELETE FROM comments_by_post WHERE post_id = ?`, postID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete post", err)
		return err
	}

	logg.Info("store", "Post deleted with comments and tag associations (post ID anonymized)")
	return nil
}

// AddComment appends an immutable comment. A blank body is silently dropped
// and (nil, nil) is returned.
func (s *Store) AddComment(postID, authorID, body string) (*models.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	comment := models.Comment{
		ID:       uuid.NewString(),
		PostID:   postID,
		AuthorID: authorID,
		Body:     body,
		Created:  time.Now().UTC(),
	}

	if err := s.Session.Query(`
		INSERT INTO comments_by_post (post_id, created_at, comment_id, author_id, body)
		VALUES (?, ?, ?, ?, ?)`,
		comment.PostID, comment.Created, comment.ID, comment.AuthorID, comment.Body,
	).Exec(); err != nil {
		logg.Error("store", "Failed to add comment", err)
		return nil, err
	}

	logg.Info("store", "Comment added (comment content anonymized)")
	return &comment, nil
}

// CommentsForPost returns comments oldest first (clustering order).
func (s *Store) CommentsForPost(postID string) ([]models.Comment, error) {
	iter := s.Session.Query(`
		SELECT comment_id, author_id, body, created_at
		FROM comments_by_post WHERE post_id = ?`,
		postID,
	).Iter()

	var res []models.Comment
	var cid, aid, body string
	var created time.Time

	for iter.Scan(&cid, &aid, &body, &created) {
		res = append(res, models.Comment{
			ID:       cid,
			PostID:   postID,
			AuthorID: aid,
			Body:     body,
			Created:  created,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list comments", err)
		return nil, err
	}
	return res, nil
}

// PostsByTag returns the posts associated with a tag name, unordered.
func (s *Store) PostsByTag(tagName string) ([]models.Post, error) {
	iter := s.Session.Query(
		`SELECT post_id FROM posts_by_tag WHERE tag_name = ?`,
		tagName,
	).Iter()

	var id string
	var ids []string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list posts by tag", err)
		return nil, err
	}

	var res []models.Post
	for _, pid := range ids {
		post, err := s.GetPost(pid)
		if err != nil {
			if err == ErrNotFound {
				// index row can outlive the post between batch application
				continue
			}
			return nil, err
		}
		res = append(res, post)
	}
	return res, nil
}

// PostsByAuthor returns the author's posts newest first (clustering order).
func (s *Store) PostsByAuthor(authorID string, limit int) ([]models.Post, error) {
	iter := s.Session.Query(`
		SELECT post_id, title, body, is_public, tags, created_at
		FROM posts_by_author WHERE author_id = ? LIMIT ?`,
		authorID, limit,
	).Iter()

	var res []models.Post
	var pid, title, body string
	var isPublic bool
	var tags []string
	var created time.Time

	for iter.Scan(&pid, &title, &body, &isPublic, &tags, &created) {
		res = append(res, models.Post{
			ID:       pid,
			AuthorID: authorID,
			Title:    title,
			Body:     body,
			IsPublic: isPublic,
			Tags:     tags,
			Created:  created,
		})
		tags = nil
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list posts by author", err)
		return nil, err
	}
	return res, nil
}
