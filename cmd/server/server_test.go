package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	appkafka "example.com/microblog/internal/broker"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

//
// --- Helpers ---
//

// generate JWT token for test user
func makeTestJWT(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return tokenStr
}

// create HTTP request with JWT token
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != expectedStatus {
		b, _ := io.ReadAll(resp.Body)
		defer resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", expectedStatus, resp.StatusCode, string(b))
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return v
}

//
// --- Setup test server ---
//

func setupTestServer(t *testing.T) (*Server, *store.MockStore, *appkafka.MockKafka, *httptest.Server) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret")

	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{}
	s := newServer(mockStore, mockKafka)

	return s, mockStore, mockKafka, httptest.NewServer(s.routes())
}

// helper: register a new user through the API
func registerHelper(t *testing.T, ts *httptest.Server, email, password string) (string, string) {
	t.Helper()
	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/register",
		map[string]string{"email": email, "password": password}, "", http.StatusCreated)
	res := decodeBody[map[string]string](t, resp)
	if res["user_id"] == "" || res["token"] == "" {
		t.Fatalf("expected user_id and token, got %v", res)
	}
	return res["user_id"], res["token"]
}

//
// --- Account tests ---
//

func TestRegisterAndLogin(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	userID, _ := registerHelper(t, ts, "alice@example.com", "s3cret")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/login",
		map[string]string{"email": "alice@example.com", "password": "s3cret"}, "", http.StatusOK)
	res := decodeBody[map[string]string](t, resp)
	if res["user_id"] != userID {
		t.Fatalf("login returned user_id %q, want %q", res["user_id"], userID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, mockStore, _, ts := setupTestServer(t)
	defer ts.Close()

	registerHelper(t, ts, "dup@example.com", "first-pass")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/register",
		map[string]string{"email": "dup@example.com", "password": "second-pass"}, "", http.StatusConflict)
	resp.Body.Close()

	// original hash must be untouched
	user, err := mockStore.GetUserByEmail("dup@example.com")
	if err != nil {
		t.Fatalf("original account missing: %v", err)
	}
	if user.PasswordHash == "" {
		t.Fatal("original hash lost")
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/register",
		map[string]string{"email": "short@example.com", "password": "abc"}, "", http.StatusBadRequest)
	resp.Body.Close()
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	registerHelper(t, ts, "bob@example.com", "correct-pass")

	// wrong password
	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/login",
		map[string]string{"email": "bob@example.com", "password": "wrong"}, "", http.StatusUnauthorized)
	resp.Body.Close()

	// unknown email, same outcome
	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/login",
		map[string]string{"email": "nobody@example.com", "password": "whatever"}, "", http.StatusUnauthorized)
	resp.Body.Close()
}

// invalid JSON for registration
func TestRegister_InvalidJSON(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	body := []byte(`{"email":123}`)
	resp, err := http.Post(ts.URL+"/register", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("http.Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

//
// --- Subscription tests ---
//

func TestSubscribeFlow(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, aliceToken := registerHelper(t, ts, "alice@example.com", "pass1234")
	bobID, _ := registerHelper(t, ts, "bob@example.com", "pass1234")

	// subscribe twice, both succeed
	for i := 0; i < 2; i++ {
		resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/subscribe",
			map[string]string{"target_id": bobID}, aliceToken, http.StatusOK)
		resp.Body.Close()
	}

	resp := sendJSONRequest(t, http.MethodGet, ts.URL+"/subscriptions", nil, aliceToken, http.StatusOK)
	res := decodeBody[map[string][]string](t, resp)
	if len(res["following"]) != 1 || res["following"][0] != bobID {
		t.Fatalf("expected following = [%s], got %v", bobID, res["following"])
	}

	// unsubscribe twice, both succeed
	for i := 0; i < 2; i++ {
		resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/unsubscribe",
			map[string]string{"target_id": bobID}, aliceToken, http.StatusOK)
		resp.Body.Close()
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/subscriptions", nil, aliceToken, http.StatusOK)
	res = decodeBody[map[string][]string](t, resp)
	if len(res["following"]) != 0 {
		t.Fatalf("expected empty following, got %v", res["following"])
	}
}

func TestSubscribeUnknownTarget(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, token := registerHelper(t, ts, "alice@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/subscribe",
		map[string]string{"target_id": "ghost"}, token, http.StatusNotFound)
	resp.Body.Close()
}

func TestSubscribePublishesEvent(t *testing.T) {
	_, _, mockKafka, ts := setupTestServer(t)
	defer ts.Close()

	_, aliceToken := registerHelper(t, ts, "alice@example.com", "pass1234")
	bobID, _ := registerHelper(t, ts, "bob@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/subscribe",
		map[string]string{"target_id": bobID}, aliceToken, http.StatusOK)
	resp.Body.Close()

	if len(mockKafka.WrittenMessages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(mockKafka.WrittenMessages))
	}
	ev, err := appkafka.DecodeEvent(mockKafka.WrittenMessages[0])
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != models.EventSubscribed || ev.SubjectID != bobID {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// resubscribing is a no-op and must not publish again
	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/subscribe",
		map[string]string{"target_id": bobID}, aliceToken, http.StatusOK)
	resp.Body.Close()
	if len(mockKafka.WrittenMessages) != 1 {
		t.Fatalf("duplicate subscribe published an event")
	}
}

//
// --- Post tests ---
//

func TestCreateAndGetPost(t *testing.T) {
	_, _, mockKafka, ts := setupTestServer(t)
	defer ts.Close()

	_, token := registerHelper(t, ts, "author@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "hello", Body: "first post", IsPublic: true, Tags: []string{"go", " go ", "blog"}},
		token, http.StatusCreated)
	created := decodeBody[models.Post](t, resp)

	if len(created.Tags) != 2 {
		t.Fatalf("expected trimmed+deduped tags, got %v", created.Tags)
	}
	if len(mockKafka.WrittenMessages) != 1 {
		t.Fatalf("expected post_created event, got %d messages", len(mockKafka.WrittenMessages))
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/posts?id="+created.ID, nil, token, http.StatusOK)
	got := decodeBody[models.Post](t, resp)
	if got.ID != created.ID || got.Title != "hello" {
		t.Fatalf("unexpected post: %+v", got)
	}
}

func TestPrivatePostHiddenFromOthers(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, authorToken := registerHelper(t, ts, "author@example.com", "pass1234")
	_, otherToken := registerHelper(t, ts, "other@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "draft", Body: "private note", IsPublic: false}, authorToken, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)

	// the author sees it
	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/posts?id="+post.ID, nil, authorToken, http.StatusOK)
	resp.Body.Close()

	// anyone else gets 404, indistinguishable from a missing post
	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/posts?id="+post.ID, nil, otherToken, http.StatusNotFound)
	resp.Body.Close()
}

func TestUpdatePostForbiddenForNonAuthor(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, authorToken := registerHelper(t, ts, "author@example.com", "pass1234")
	_, otherToken := registerHelper(t, ts, "other@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "mine", Body: "body", IsPublic: true}, authorToken, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)

	// non-author update is forbidden, distinct from not found
	resp = sendJSONRequest(t, http.MethodPut, ts.URL+"/posts",
		postReq{ID: post.ID, Title: "hijack", Body: "body", IsPublic: true}, otherToken, http.StatusForbidden)
	resp.Body.Close()

	// non-author delete too
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/posts?id="+post.ID, nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 on delete, got %d", dresp.StatusCode)
	}
}

func TestDeletePostCascades(t *testing.T) {
	_, mockStore, _, ts := setupTestServer(t)
	defer ts.Close()

	_, token := registerHelper(t, ts, "author@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "doomed", Body: "body", IsPublic: true, Tags: []string{"go"}}, token, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)

	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/comments",
		map[string]string{"post_id": post.ID, "body": "nice"}, token, http.StatusCreated)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/posts?id="+post.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", dresp.StatusCode)
	}

	if comments, _ := mockStore.CommentsForPost(post.ID); len(comments) != 0 {
		t.Fatalf("expected comments removed, got %d", len(comments))
	}
	if !mockStore.Tags["go"] {
		t.Fatal("tag entity must survive post deletion")
	}
}

//
// --- Comment tests ---
//

func TestBlankCommentSilentlyDropped(t *testing.T) {
	_, mockStore, _, ts := setupTestServer(t)
	defer ts.Close()

	_, token := registerHelper(t, ts, "author@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "t", Body: "b", IsPublic: true}, token, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)

	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/comments",
		map[string]string{"post_id": post.ID, "body": "   "}, token, http.StatusNoContent)
	resp.Body.Close()

	if comments, _ := mockStore.CommentsForPost(post.ID); len(comments) != 0 {
		t.Fatalf("blank comment was stored: %+v", comments)
	}
}

func TestCommentOnHiddenPostNotFound(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, authorToken := registerHelper(t, ts, "author@example.com", "pass1234")
	_, otherToken := registerHelper(t, ts, "other@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "t", Body: "b", IsPublic: false}, authorToken, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)

	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/comments",
		map[string]string{"post_id": post.ID, "body": "sneaky"}, otherToken, http.StatusNotFound)
	resp.Body.Close()
}

func TestListCommentsAscending(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, token := registerHelper(t, ts, "author@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "t", Body: "b", IsPublic: true}, token, http.StatusCreated)
	post := decodeBody[models.Post](t, resp)

	for _, body := range []string{"first", "second"} {
		resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/comments",
			map[string]string{"post_id": post.ID, "body": body}, token, http.StatusCreated)
		resp.Body.Close()
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/comments?post_id="+post.ID, nil, token, http.StatusOK)
	comments := decodeBody[[]models.Comment](t, resp)
	if len(comments) != 2 || comments[0].Body != "first" || comments[1].Body != "second" {
		t.Fatalf("unexpected comment order: %+v", comments)
	}
}

//
// --- Feed & tag tests ---
//

func TestFeedOverHTTP(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, xToken := registerHelper(t, ts, "x@example.com", "pass1234")
	yID, yToken := registerHelper(t, ts, "y@example.com", "pass1234")
	_, zToken := registerHelper(t, ts, "z@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/subscribe",
		map[string]string{"target_id": yID}, xToken, http.StatusOK)
	resp.Body.Close()

	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "P1", Body: "public", IsPublic: true}, yToken, http.StatusCreated)
	resp.Body.Close()
	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "P2", Body: "private", IsPublic: false}, yToken, http.StatusCreated)
	resp.Body.Close()
	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "P3", Body: "stranger", IsPublic: true}, zToken, http.StatusCreated)
	resp.Body.Close()

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/feed", nil, xToken, http.StatusOK)
	posts := decodeBody[[]models.Post](t, resp)

	titles := make(map[string]bool, len(posts))
	for _, p := range posts {
		titles[p.Title] = true
	}
	if len(posts) != 2 || !titles["P1"] || !titles["P2"] || titles["P3"] {
		t.Fatalf("expected feed {P1, P2}, got %+v", posts)
	}
}

func TestPostsByTagFiltersVisibility(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, authorToken := registerHelper(t, ts, "author@example.com", "pass1234")
	_, otherToken := registerHelper(t, ts, "other@example.com", "pass1234")

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "pub", Body: "b", IsPublic: true, Tags: []string{"go"}}, authorToken, http.StatusCreated)
	resp.Body.Close()
	resp = sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "priv", Body: "b", IsPublic: false, Tags: []string{"go"}}, authorToken, http.StatusCreated)
	resp.Body.Close()

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/posts/bytag?tag=go", nil, otherToken, http.StatusOK)
	posts := decodeBody[[]models.Post](t, resp)
	if len(posts) != 1 || posts[0].Title != "pub" {
		t.Fatalf("expected only the public post, got %+v", posts)
	}

	resp = sendJSONRequest(t, http.MethodGet, ts.URL+"/posts/bytag?tag=go", nil, authorToken, http.StatusOK)
	posts = decodeBody[[]models.Post](t, resp)
	if len(posts) != 2 {
		t.Fatalf("author must see both posts, got %+v", posts)
	}
}

//
// --- Failure-path tests ---
//

// Kafka write error must not fail the post creation
func TestPostCreationSurvivesKafkaError(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	mockStore := store.NewMock()
	s := newServer(mockStore, &appkafka.MockKafkaFail{})

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	user, _ := mockStore.CreateUser("author@example.com", "hash")
	token := makeTestJWT(user.ID)

	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts",
		postReq{Title: "t", Body: "b", IsPublic: true}, token, http.StatusCreated)
	resp.Body.Close()
}

// Store failure surfaces as 500
func TestStoreFailureIs500(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	s := newServer(&store.MockStoreFail{}, &appkafka.MockKafka{})

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	token := makeTestJWT("someone")
	resp := sendJSONRequest(t, http.MethodGet, ts.URL+"/feed", nil, token, http.StatusInternalServerError)
	resp.Body.Close()
}

// Missing token on a protected route
func TestProtectedRouteRequiresToken(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/feed")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
