package access

import (
	"testing"

	"example.com/microblog/internal/models"
)

func TestCanView(t *testing.T) {
	cases := []struct {
		name     string
		isPublic bool
		viewerID string
		want     bool
	}{
		{"public post, owner", true, "author", true},
		{"public post, non-owner", true, "stranger", true},
		{"private post, owner", false, "author", true},
		{"private post, non-owner", false, "stranger", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			post := models.Post{AuthorID: "author", IsPublic: tc.isPublic}
			if got := CanView(post, tc.viewerID); got != tc.want {
				t.Fatalf("CanView = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanModify(t *testing.T) {
	post := models.Post{AuthorID: "author", IsPublic: true}

	if !CanModify(post, "author") {
		t.Fatal("author must be able to modify own post")
	}
	if CanModify(post, "stranger") {
		t.Fatal("non-author must not be able to modify, even a public post")
	}
}
