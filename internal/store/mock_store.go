package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"example.com/microblog/internal/models"
)

var mockIDCounter int

func nextMockID(prefix string) string {
	mockIDCounter++
	return fmt.Sprintf("%s_%d", prefix, mockIDCounter)
}

// MockStore simulates Cassandra operations for testing. It mirrors the real
// store's semantics: idempotent subscription edges, tag find-or-create,
// cascade on post delete, comments oldest first, author posts newest first.
type MockStore struct {
	Users         map[string]models.User   // user_id -> user
	EmailIndex    map[string]string        // email -> user_id
	Subscriptions map[string]map[string]bool // subscriber_id -> set of target_id
	Posts         map[string]models.Post   // post_id -> post
	Tags          map[string]bool          // tag name -> exists
	Comments      map[string][]models.Comment    // post_id -> comments, ascending
	Notifications map[string][]models.Notification // user_id -> inbox
	ShouldFail    bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:         make(map[string]models.User),
		EmailIndex:    make(map[string]string),
		Subscriptions: make(map[string]map[string]bool),
		Posts:         make(map[string]models.Post),
		Tags:          make(map[string]bool),
		Comments:      make(map[string][]models.Comment),
		Notifications: make(map[string][]models.Notification),
	}
}

func (m *MockStore) Close() {}

// --- Identity ---

func (m *MockStore) CreateUser(email, passwordHash string) (models.User, error) {
	if m.ShouldFail {
		return models.User{}, errors.New("mock: create user failed")
	}
	if _, exists := m.EmailIndex[email]; exists {
		return models.User{}, ErrDuplicateEmail
	}
	user := models.User{
		ID:           nextMockID("user"),
		Email:        email,
		PasswordHash: passwordHash,
		Created:      time.Now().UTC(),
	}
	m.Users[user.ID] = user
	m.EmailIndex[email] = user.ID
	return user, nil
}

func (m *MockStore) GetUserByEmail(email string) (models.User, error) {
	if m.ShouldFail {
		return models.User{}, errors.New("mock: get user by email failed")
	}
	id, ok := m.EmailIndex[email]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return m.Users[id], nil
}

func (m *MockStore) GetUserByID(id string) (models.User, error) {
	if m.ShouldFail {
		return models.User{}, errors.New("mock: get user by id failed")
	}
	user, ok := m.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

// --- Subscription graph ---

func (m *MockStore) Subscribe(subscriberID, targetID string) error {
	if m.ShouldFail {
		return errors.New("mock: subscribe failed")
	}
	if m.Subscriptions[subscriberID] == nil {
		m.Subscriptions[subscriberID] = make(map[string]bool)
	}
	m.Subscriptions[subscriberID][targetID] = true
	return nil
}

func (m *MockStore) Unsubscribe(subscriberID, targetID string) error {
	if m.ShouldFail {
		return errors.New("mock: unsubscribe failed")
	}
	delete(m.Subscriptions[subscriberID], targetID)
	return nil
}

func (m *MockStore) IsSubscribed(subscriberID, targetID string) (bool, error) {
	if m.ShouldFail {
		return false, errors.New("mock: is subscribed failed")
	}
	return m.Subscriptions[subscriberID][targetID], nil
}

func (m *MockStore) FollowedIDs(subscriberID string) ([]string, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: followed ids failed")
	}
	var res []string
	for target := range m.Subscriptions[subscriberID] {
		res = append(res, target)
	}
	return res, nil
}

func (m *MockStore) SubscriberIDs(targetID string) ([]string, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: subscriber ids failed")
	}
	var res []string
	for sub, targets := range m.Subscriptions {
		if targets[targetID] {
			res = append(res, sub)
		}
	}
	return res, nil
}

// --- Content ---

func (m *MockStore) CreatePost(authorID, title, body string, isPublic bool, tagNames []string) (models.Post, error) {
	if m.ShouldFail {
		return models.Post{}, errors.New("mock: create post failed")
	}
	post := models.Post{
		ID:       nextMockID("post"),
		AuthorID: authorID,
		Title:    title,
		Body:     body,
		IsPublic: isPublic,
		Tags:     models.NormalizeTagNames(tagNames),
		Created:  time.Now().UTC(),
	}
	for _, tag := range post.Tags {
		m.Tags[tag] = true
	}
	m.Posts[post.ID] = post
	return post, nil
}

func (m *MockStore) GetPost(postID string) (models.Post, error) {
	if m.ShouldFail {
		return models.Post{}, errors.New("mock: get post failed")
	}
	post, ok := m.Posts[postID]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	return post, nil
}

func (m *MockStore) UpdatePost(postID, title, body string, isPublic bool, tagNames []string) (models.Post, error) {
	if m.ShouldFail {
		return models.Post{}, errors.New("mock: update post failed")
	}
	post, ok := m.Posts[postID]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	post.Title = title
	post.Body = body
	post.IsPublic = isPublic
	post.Tags = models.NormalizeTagNames(tagNames)
	for _, tag := range post.Tags {
		m.Tags[tag] = true
	}
	m.Posts[postID] = post
	return post, nil
}

func (m *MockStore) DeletePost(postID string) error {
	if m.ShouldFail {
		return errors.New("mock: delete post failed")
	}
	if _, ok := m.Posts[postID]; !ok {
		return ErrNotFound
	}
	delete(m.Posts, postID)
	delete(m.Comments, postID)
	// Tag entities stay; only the association (the post's tag list) is gone.
	return nil
}

func (m *MockStore) AddComment(postID, authorID, body string) (*models.Comment, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: add comment failed")
	}
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	comment := models.Comment{
		ID:       nextMockID("comment"),
		PostID:   postID,
		AuthorID: authorID,
		Body:     body,
		Created:  time.Now().UTC(),
	}
	m.Comments[postID] = append(m.Comments[postID], comment)
	return &comment, nil
}

func (m *MockStore) CommentsForPost(postID string) ([]models.Comment, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: comments for post failed")
	}
	return m.Comments[postID], nil
}

func (m *MockStore) PostsByTag(tagName string) ([]models.Post, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: posts by tag failed")
	}
	var res []models.Post
	for _, post := range m.Posts {
		for _, tag := range post.Tags {
			if tag == tagName {
				res = append(res, post)
				break
			}
		}
	}
	return res, nil
}

func (m *MockStore) PostsByAuthor(authorID string, limit int) ([]models.Post, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: posts by author failed")
	}
	var res []models.Post
	for _, post := range m.Posts {
		if post.AuthorID == authorID {
			res = append(res, post)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Created.Equal(res[j].Created) {
			return res[i].ID > res[j].ID
		}
		return res[i].Created.After(res[j].Created)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// --- Notifications ---

func (m *MockStore) AddNotification(n models.Notification) error {
	if m.ShouldFail {
		return errors.New("mock: add notification failed")
	}
	m.Notifications[n.UserID] = append(m.Notifications[n.UserID], n)
	return nil
}

func (m *MockStore) NotificationsForUser(userID string, limit int) ([]models.Notification, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: notifications for user failed")
	}
	inbox := m.Notifications[userID]
	res := make([]models.Notification, len(inbox))
	copy(res, inbox)
	sort.Slice(res, func(i, j int) bool { return res[i].Created.After(res[j].Created) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(email, passwordHash string) (models.User, error) {
	return models.User{}, errors.New("mock store create user failed")
}

func (m *MockStoreFail) GetUserByEmail(email string) (models.User, error) {
	return models.User{}, errors.New("mock store get user by email failed")
}

func (m *MockStoreFail) GetUserByID(id string) (models.User, error) {
	return models.User{}, errors.New("mock store get user by id failed")
}

func (m *MockStoreFail) Subscribe(subscriberID, targetID string) error {
	return errors.New("mock store subscribe failed")
}

func (m *MockStoreFail) Unsubscribe(subscriberID, targetID string) error {
	return errors.New("mock store unsubscribe failed")
}

func (m *MockStoreFail) IsSubscribed(subscriberID, targetID string) (bool, error) {
	return false, errors.New("mock store is subscribed failed")
}

func (m *MockStoreFail) FollowedIDs(subscriberID string) ([]string, error) {
	return nil, errors.New("mock store followed ids failed")
}

func (m *MockStoreFail) SubscriberIDs(targetID string) ([]string, error) {
	return nil, errors.New("mock store subscriber ids failed")
}

func (m *MockStoreFail) CreatePost(authorID, title, body string, isPublic bool, tagNames []string) (models.Post, error) {
	return models.Post{}, errors.New("mock store create post failed")
}

func (m *MockStoreFail) GetPost(postID string) (models.Post, error) {
	return models.Post{}, errors.New("mock store get post failed")
}

func (m *MockStoreFail) UpdatePost(postID, title, body string, isPublic bool, tagNames []string) (models.Post, error) {
	return models.Post{}, errors.New("mock store update post failed")
}

func (m *MockStoreFail) DeletePost(postID string) error {
	return errors.New("mock store delete post failed")
}

func (m *MockStoreFail) AddComment(postID, authorID, body string) (*models.Comment, error) {
	return nil, errors.New("mock store add comment failed")
}

func (m *MockStoreFail) CommentsForPost(postID string) ([]models.Comment, error) {
	return nil, errors.New("mock store comments for post failed")
}

func (m *MockStoreFail) PostsByTag(tagName string) ([]models.Post, error) {
	return nil, errors.New("mock store posts by tag failed")
}

func (m *MockStoreFail) PostsByAuthor(authorID string, limit int) ([]models.Post, error) {
	return nil, errors.New("mock store posts by author failed")
}

func (m *MockStoreFail) AddNotification(n models.Notification) error {
	return errors.New("mock store add notification failed")
}

func (m *MockStoreFail) NotificationsForUser(userID string, limit int) ([]models.Notification, error) {
	return nil, errors.New("mock store notifications for user failed")
}
