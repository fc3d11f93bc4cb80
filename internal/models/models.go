package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Created      time.Time `json:"created"`
}

type Post struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author_id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	IsPublic bool      `json:"is_public"`
	Tags     []string  `json:"tags"`
	Created  time.Time `json:"created"`
}

type Comment struct {
	ID       string    `json:"id"`
	PostID   string    `json:"post_id"`
	AuthorID string    `json:"author_id"`
	Body     string    `json:"body"`
	Created  time.Time `json:"created"`
}

type Subscription struct {
	SubscriberID string `json:"subscriber_id"`
	TargetID     string `json:"target_id"`
}

// Notification is one row of a user's inbox, written by the worker.
type Notification struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	Kind    string    `json:"kind"`
	ActorID string    `json:"actor_id"`
	PostID  string    `json:"post_id,omitempty"`
	Created time.Time `json:"created"`
}
