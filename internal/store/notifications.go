package store

import (
	"time"

	"example.com/microblog/internal/models"
)

// --- Notification inbox ---
//
// The worker materializes one row per recipient, read newest first
// (clustering order of notifications_by_user).

func (s *Store) AddNotification(n models.Notification) error {
	if err := s.Session.Query(`
		INSERT INTO notifications_by_user (user_id, created_at, notification_id, kind, actor_id, post_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Created, n.ID, n.Kind, n.ActorID, n.PostID,
	).Exec(); err != nil {
		logg.Error("store", "Failed to add notification", err)
		return err
	}

	logg.Info("store", "Notification written (user IDs anonymized)")
	return nil
}

func (s *Store) NotificationsForUser(userID string, limit int) ([]models.Notification, error) {
	iter := s.Session.Query(`
		SELECT notification_id, kind, actor_id, post_id, created_at
		FROM notifications_by_user WHERE user_id = ? LIMIT ?`,
		userID, limit,
	).Iter()

	var res []models.Notification
	var nid, kind, actorID, postID string
	var created time.Time

	for iter.Scan(&nid, &kind, &actorID, &postID, &created) {
		res = append(res, models.Notification{
			ID:      nid,
			UserID:  userID,
			Kind:    kind,
			ActorID: actorID,
			PostID:  postID,
			Created: created,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list notifications", err)
		return nil, err
	}
	return res, nil
}
