package models

import "time"

// Event types published by the server and consumed by the worker.
const (
	EventPostCreated  = "post_created"
	EventCommentAdded = "comment_added"
	EventSubscribed   = "subscribed"
)

// Event is the envelope carried on the Kafka topic.
// ActorID is the user who performed the action; SubjectID is the user the
// action was aimed at (post author for comments, target for subscriptions).
type Event struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id,omitempty"`
	PostID    string    `json:"post_id,omitempty"`
	Created   time.Time `json:"created"`
}
