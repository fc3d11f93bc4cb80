package server

import (
	"encoding/json"
	"net/http"
	"time"

	"example.com/microblog/internal/access"
	"example.com/microblog/internal/middleware"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
)

const (
	maxTitleLen = 200
	maxBodyLen  = 10000
)

type postReq struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	IsPublic bool     `json:"is_public"`
	Tags     []string `json:"tags"`
}

func validatePostReq(body postReq) string {
	if len(body.Title) == 0 || len(body.Title) > maxTitleLen {
		return "title must be 1-200 characters"
	}
	if len(body.Body) == 0 || len(body.Body) > maxBodyLen {
		return "post body must be 1-10000 characters"
	}
	return ""
}

// --- Post handlers ---

// createPostHandler stores a new post and publishes a post_created event.
// Expects JSON body: {"title": "...", "body": "...", "is_public": true, "tags": [...]}
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var body postReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if msg := validatePostReq(body); msg != "" {
		logg.Info("http/posts", "Invalid post payload from user_id="+userID)
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	post, err := s.store.CreatePost(userID, body.Title, body.Body, body.IsPublic, body.Tags)
	if err != nil {
		logg.Error("http/posts", "Failed to save post", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.publishEvent("http/posts", models.Event{
		Type:    models.EventPostCreated,
		ActorID: userID,
		PostID:  post.ID,
		Created: time.Now().UTC(),
	})

	logg.Info("http/posts", "Post created successfully by user_id="+userID)
	writeJSON(w, http.StatusCreated, post)
}

// getPostHandler returns a single post. A private post of another user
// answers 404, same as a missing one.
// Query parameters: ?id=<post_id>
func (s *Server) getPostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	post, err := s.store.GetPost(r.URL.Query().Get("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !access.CanView(post, userID) {
		writeStoreError(w, store.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// updatePostHandler replaces title, body, visibility and the tag set.
// Only the author may update; anyone else gets 403.
func (s *Server) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	var body postReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if msg := validatePostReq(body); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	post, err := s.store.GetPost(body.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !access.CanModify(post, userID) {
		logg.Info("http/posts", "Forbidden update attempt by user_id="+userID)
		writeStoreError(w, store.ErrForbidden)
		return
	}

	updated, err := s.store.UpdatePost(post.ID, body.Title, body.Body, body.IsPublic, body.Tags)
	if err != nil {
		logg.Error("http/posts", "Failed to update post", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/posts", "Post updated by user_id="+userID)
	writeJSON(w, http.StatusOK, updated)
}

// deletePostHandler removes a post with its comments and tag associations.
// Query parameters: ?id=<post_id>
func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	post, err := s.store.GetPost(r.URL.Query().Get("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !access.CanModify(post, userID) {
		logg.Info("http/posts", "Forbidden delete attempt by user_id="+userID)
		writeStoreError(w, store.ErrForbidden)
		return
	}

	if err := s.store.DeletePost(post.ID); err != nil {
		logg.Error("http/posts", "Failed to delete post", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/posts", "Post deleted by user_id="+userID)
	w.WriteHeader(http.StatusNoContent)
}

// postsByTagHandler lists the posts under a tag the viewer may see.
// Query parameters: ?tag=<name>
func (s *Server) postsByTagHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	tag := r.URL.Query().Get("tag")
	if tag == "" {
		http.Error(w, "tag required", http.StatusBadRequest)
		return
	}

	posts, err := s.store.PostsByTag(tag)
	if err != nil {
		logg.Error("http/posts", "Failed to list posts by tag", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	visible := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if access.CanView(post, userID) {
			visible = append(visible, post)
		}
	}

	writeJSON(w, http.StatusOK, visible)
}

// postsByAuthorHandler lists an author's posts the viewer may see, newest
// first.
// Query parameters: ?author_id=<id>&limit=50
func (s *Server) postsByAuthorHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	authorID := r.URL.Query().Get("author_id")
	if authorID == "" {
		http.Error(w, "author_id required", http.StatusBadRequest)
		return
	}

	posts, err := s.store.PostsByAuthor(authorID, limitParam(r, 50))
	if err != nil {
		logg.Error("http/posts", "Failed to list posts by author", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	visible := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if access.CanView(post, userID) {
			visible = append(visible, post)
		}
	}

	writeJSON(w, http.StatusOK, visible)
}

// --- Comment handlers ---

// addCommentHandler appends a comment to a viewable post. A blank body is
// silently dropped with 204, matching the store's no-op semantics.
// Expects JSON body: {"post_id": "...", "body": "..."}
func (s *Server) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		PostID string `json:"post_id"`
		Body   string `json:"body"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/comments", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	post, err := s.store.GetPost(body.PostID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !access.CanView(post, userID) {
		writeStoreError(w, store.ErrNotFound)
		return
	}

	comment, err := s.store.AddComment(post.ID, userID, body.Body)
	if err != nil {
		logg.Error("http/comments", "Failed to add comment", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if comment == nil {
		// blank body: silently dropped
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if post.AuthorID != userID {
		s.publishEvent("http/comments", models.Event{
			Type:      models.EventCommentAdded,
			ActorID:   userID,
			SubjectID: post.AuthorID,
			PostID:    post.ID,
			Created:   time.Now().UTC(),
		})
	}

	logg.Info("http/comments", "Comment added by user_id="+userID)
	writeJSON(w, http.StatusCreated, comment)
}

// listCommentsHandler returns a post's comments oldest first, gated by the
// same view check as the post itself.
// Query parameters: ?post_id=<id>
func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	post, err := s.store.GetPost(r.URL.Query().Get("post_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !access.CanView(post, userID) {
		writeStoreError(w, store.ErrNotFound)
		return
	}

	comments, err := s.store.CommentsForPost(post.ID)
	if err != nil {
		logg.Error("http/comments", "Failed to list comments", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	writeJSON(w, http.StatusOK, comments)
}
