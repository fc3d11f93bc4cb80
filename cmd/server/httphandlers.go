package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"example.com/microblog/internal/auth"
	appkafka "example.com/microblog/internal/broker"
	"example.com/microblog/internal/feed"
	"example.com/microblog/internal/middleware"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

// --- Shared handler helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeStoreError maps store sentinels to HTTP outcomes. Anything
// unexpected is a 500 without detail.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, store.ErrDuplicateEmail):
		http.Error(w, "email already registered", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func issueToken(userID string) (string, error) {
	secret := []byte(os.Getenv("JWT_SECRET"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	return token.SignedString(secret)
}

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			return l
		}
	}
	return def
}

// publishEvent is best-effort: the mutation already happened, a lost event
// only costs a notification, never the write itself.
func (s *Server) publishEvent(module string, ev models.Event) {
	if err := appkafka.PublishEvent(s.kafkaWriter, ev); err != nil {
		logg.Error(module, "Failed to publish event", err)
	}
}

// --- Account handlers ---

// registerHandler creates an account and issues a session token.
// Expects JSON body: {"email": "...", "password": "..."}
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/register", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	email := strings.TrimSpace(strings.ToLower(body.Email))
	if email == "" || !strings.Contains(email, "@") {
		http.Error(w, "valid email required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logg.Error("http/register", "Failed to hash password", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	user, err := s.store.CreateUser(email, hash)
	if err != nil {
		if !errors.Is(err, store.ErrDuplicateEmail) {
			logg.Error("http/register", "Failed to create user", err)
		}
		writeStoreError(w, err)
		return
	}

	tokenStr, err := issueToken(user.ID)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	logg.Info("http/register", "User registered with user_id="+user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"token":   tokenStr,
	})
}

// loginHandler verifies credentials and issues a session token. Unknown
// email and wrong password produce the same response.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/login", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	email := strings.TrimSpace(strings.ToLower(body.Email))

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, auth.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
			return
		}
		logg.Error("http/login", "Failed to query user", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, body.Password); err != nil {
		http.Error(w, auth.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}

	tokenStr, err := issueToken(user.ID)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	logg.Info("http/login", "User logged in with user_id="+user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"token":   tokenStr,
	})
}

// --- Subscription handlers ---

// subscribeHandler adds a follow edge. Subscribing twice is a no-op; a new
// edge publishes a "subscribed" event for the worker.
// Expects JSON body: {"target_id": "..."}
func (s *Server) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		TargetID string `json:"target_id"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/subscribe", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := s.store.GetUserByID(body.TargetID); err != nil {
		writeStoreError(w, err)
		return
	}

	existed, err := s.store.IsSubscribed(userID, body.TargetID)
	if err != nil {
		logg.Error("http/subscribe", "Failed to check subscription", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.store.Subscribe(userID, body.TargetID); err != nil {
		logg.Error("http/subscribe", "Failed to create subscription", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !existed && userID != body.TargetID {
		s.publishEvent("http/subscribe", models.Event{
			Type:      models.EventSubscribed,
			ActorID:   userID,
			SubjectID: body.TargetID,
			Created:   time.Now().UTC(),
		})
	}

	logg.Info("http/subscribe", "User "+userID+" subscribed to "+body.TargetID)
	w.WriteHeader(http.StatusOK)
}

// unsubscribeHandler removes a follow edge; removing an absent edge is a
// no-op.
func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		TargetID string `json:"target_id"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/unsubscribe", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.store.Unsubscribe(userID, body.TargetID); err != nil {
		logg.Error("http/unsubscribe", "Failed to remove subscription", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/unsubscribe", "User "+userID+" unsubscribed from "+body.TargetID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	followed, err := s.store.FollowedIDs(userID)
	if err != nil {
		logg.Error("http/subscriptions", "Failed to list subscriptions", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if followed == nil {
		followed = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"following": followed})
}

// --- Feed & notifications ---

// getFeedHandler resolves the viewer's feed at query time.
// Query parameters: ?limit=50
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := limitParam(r, feed.DefaultLimit)

	posts, err := s.feed.Feed(userID, limit)
	if err != nil {
		logg.Error("http/feed", "Failed to resolve feed for user_id="+userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}

	logg.Info("http/feed", "Feed resolved for user_id="+userID+" with limit="+strconv.Itoa(limit))
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := limitParam(r, 50)

	inbox, err := s.store.NotificationsForUser(userID, limit)
	if err != nil {
		logg.Error("http/notifications", "Failed to list notifications", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if inbox == nil {
		inbox = []models.Notification{}
	}

	writeJSON(w, http.StatusOK, inbox)
}
