package services

import (
	"time"

	"board-restful/auth"
	"board-restful/models"
)

// RedactedTitle replaces the title of a secret post for callers who may not read it.
const RedactedTitle = "This is a secret post."

type CommentResponse struct {
	ID             uint      `json:"id"`
	AuthorNickname string    `json:"author_nickname"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type PostResponse struct {
	ID             uint              `json:"id"`
	Type           models.PostType   `json:"type"`
	Title          string            `json:"title"`
	Content        string            `json:"content"`
	AuthorNickname string            `json:"author_nickname,omitempty"`
	GuestName      string            `json:"guest_name,omitempty"`
	IsSecret       bool              `json:"is_secret"`
	Redacted       bool              `json:"redacted"`
	Views          uint              `json:"views"`
	CommentCount   int64             `json:"comment_count"`
	CreatedAt      time.Time         `json:"created_at"`
	Comments       []CommentResponse `json:"comments,omitempty"`
}

// RedactPost maps post to its response as seen by caller. Secret posts that
// caller neither wrote nor administers keep their metadata but lose title,
// content and comments.
func RedactPost(post *models.Post, caller *auth.Claims) PostResponse {
	resp := PostResponse{
		ID:           post.ID,
		Type:         post.Type,
		Title:        post.Title,
		Content:      post.Content,
		IsSecret:     post.IsSecret,
		Views:        post.Views,
		CommentCount: int64(len(post.Comments)),
		CreatedAt:    post.CreatedAt,
	}
	if post.IsGuestPost() {
		resp.GuestName = post.AuthorName()
	} else {
		resp.AuthorNickname = post.AuthorName()
	}

	if post.IsSecret && !auth.CanReadSecret(caller, auth.PostResource(post)) {
		resp.Title = RedactedTitle
		resp.Content = ""
		resp.Redacted = true
		return resp
	}

	for _, c := range post.Comments {
		cr := CommentResponse{ID: c.ID, Content: c.Content, CreatedAt: c.CreatedAt}
		if c.Author != nil {
			cr.AuthorNickname = c.Author.Nickname
		}
		resp.Comments = append(resp.Comments, cr)
	}
	return resp
}

// FilterVisible applies RedactPost to a page of posts. counts supplies the
// comment count of each post, since list pages do not load comments.
func FilterVisible(posts []models.Post, caller *auth.Claims, counts map[uint]int64) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for i := range posts {
		resp := RedactPost(&posts[i], caller)
		resp.CommentCount = counts[posts[i].ID]
		out = append(out, resp)
	}
	return out
}
