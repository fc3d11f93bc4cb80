package store

import "github.com/gocql/gocql"

// --- Subscription graph operations ---
//
// Edges are kept in two tables, one per lookup direction. Both rows are
// written and removed in a single logged batch so the directions cannot
// diverge. Inserts and deletes are naturally idempotent in Cassandra, which
// gives the set semantics of the graph for free.

func (s *Store) Subscribe(subscriberID, targetID string) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`INSERT INTO subscriptions (subscriber_id, target_id) VALUES (?, ?)`, subscriberID, targetID)
	batch.Query(`INSERT INTO subscribers_by_target (target_id, subscriber_id) VALUES (?, ?)`, targetID, subscriberID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to create subscription edge", err)
		return err
	}

	logg.Info("store", "Subscription edge created (user IDs anonymized)")
	return nil
}

func (s *Store) Unsubscribe(subscriberID, targetID string) error {
	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`DELETE FROM subscriptions WHERE subscriber_id = ? AND target_id = ?`, subscriberID, targetID)
	batch.Query(`DELETE FROM subscribers_by_target WHERE target_id = ? AND subscriber_id = ?`, targetID, subscriberID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to remove subscription edge", err)
		return err
	}

	logg.Info("store", "Subscription edge removed (user IDs anonymized)")
	return nil
}

func (s *Store) IsSubscribed(subscriberID, targetID string) (bool, error) {
	var found string
	err := s.Session.Query(
		`SELECT target_id FROM subscriptions WHERE subscriber_id = ? AND target_id = ?`,
		subscriberID, targetID,
	).Scan(&found)
	if err != nil {
		if err == gocql.ErrNotFound {
			return false, nil
		}
		logg.Error("store", "Failed to check subscription edge", err)
		return false, err
	}
	return true, nil
}

// FollowedIDs returns every target the subscriber currently follows.
func (s *Store) FollowedIDs(subscriberID string) ([]string, error) {
	iter := s.Session.Query(
		`SELECT target_id FROM subscriptions WHERE subscriber_id = ?`,
		subscriberID,
	).Iter()

	var id string
	var res []string
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list followed users", err)
		return nil, err
	}
	return res, nil
}

// SubscriberIDs returns every subscriber of the target, used by the worker
// to fan notifications out.
func (s *Store) SubscriberIDs(targetID string) ([]string, error) {
	iter := s.Session.Query(
		`SELECT subscriber_id FROM subscribers_by_target WHERE target_id = ?`,
		targetID,
	).Iter()

	var id string
	var res []string
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list subscribers", err)
		return nil, err
	}
	return res, nil
}
