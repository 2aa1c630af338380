package services

import (
	"context"
	"errors"
	"strings"

	"board-restful/apperrors"
	"board-restful/auth"
	"board-restful/models"
	"board-restful/repositories"

	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage bounds the requested page so the row offset cannot overflow.
	MaxPage = 1_000_000
)

type PostService interface {
	ListPosts(ctx context.Context, input ListPostsInput, caller *auth.Claims) (*PostPage, error)
	GetPost(ctx context.Context, id uint, caller *auth.Claims) (*PostResponse, error)
	CreatePost(ctx context.Context, input *CreatePostInput, caller *auth.Claims) (uint, error)
	DeletePost(ctx context.Context, id uint, guestPassword string, caller *auth.Claims) error
}

type ListPostsInput struct {
	Type  string
	Page  int
	Limit int
}

type PostPage struct {
	Posts       []PostResponse `json:"posts"`
	TotalCount  int64          `json:"totalCount"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

type CreatePostInput struct {
	Type          string `json:"type" description:"inquiry or review"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	IsSecret      bool   `json:"is_secret"`
	GuestName     string `json:"guest_name,omitempty" description:"Required for guest inquiries"`
	GuestPassword string `json:"guest_password,omitempty" description:"Required for guest inquiries"`
}

type postService struct {
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	logger   *zap.Logger
}

var _ PostService = (*postService)(nil)

func NewPostService(posts repositories.PostRepository, comments repositories.CommentRepository, logger *zap.Logger) PostService {
	return &postService{posts: posts, comments: comments, logger: logger}
}

// ListPosts returns one newest-first page of a board with secret posts redacted for caller.
func (s *postService) ListPosts(ctx context.Context, input ListPostsInput, caller *auth.Claims) (*PostPage, error) {
	postType, err := models.ParsePostType(input.Type)
	if err != nil {
		return nil, apperrors.Validation("type must be inquiry or review")
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit := input.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	posts, total, err := s.posts.ListByType(ctx, postType, page, limit)
	if err != nil {
		return nil, s.storeError("Database error retrieving posts", err)
	}

	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	counts, err := s.comments.CountByPosts(ctx, ids)
	if err != nil {
		return nil, s.storeError("Database error counting comments", err)
	}

	return &PostPage{
		Posts:       FilterVisible(posts, caller, counts),
		TotalCount:  total,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

func totalPages(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}

// GetPost counts a view and returns the post as seen by caller. The view is
// counted even when the caller only receives the redacted post.
func (s *postService) GetPost(ctx context.Context, id uint, caller *auth.Claims) (*PostResponse, error) {
	if err := s.posts.IncrementViews(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("Post not found")
		}
		return nil, s.storeError("Database error updating views", err)
	}

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("Post not found")
		}
		return nil, s.storeError("Database error retrieving post", err)
	}

	resp := RedactPost(post, caller)
	return &resp, nil
}

// CreatePost stores a post for caller, or for a guest when caller is nil.
// Guest passwords are hashed before they are stored.
func (s *postService) CreatePost(ctx context.Context, input *CreatePostInput, caller *auth.Claims) (uint, error) {
	postType, err := models.ParsePostType(input.Type)
	if err != nil {
		return 0, apperrors.Validation("type must be inquiry or review")
	}
	if err := auth.Authorize(caller, auth.ActionForPostType(postType), auth.Resource{}); err != nil {
		return 0, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Content) == "" {
		return 0, apperrors.Validation("Title and content are required")
	}

	post := &models.Post{
		Type:     postType,
		Title:    title,
		Content:  input.Content,
		IsSecret: input.IsSecret,
	}
	if caller != nil {
		userID := caller.UserID
		post.UserID = &userID
	} else {
		guestName := strings.TrimSpace(input.GuestName)
		if guestName == "" || input.GuestPassword == "" {
			return 0, apperrors.Validation("guest_name and guest_password are required for guest posts")
		}
		if len(input.GuestPassword) > auth.MaxPasswordBytes {
			return 0, apperrors.Validation("guest_password must be at most 72 bytes")
		}
		hashed, err := auth.HashPassword(input.GuestPassword)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.KindInternal, "Could not hash guest password", err)
		}
		post.GuestName = &guestName
		post.GuestPassword = hashed
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return 0, s.storeError("Failed to create post", err)
	}
	s.logger.Debug("Post created", zap.Uint("post_id", post.ID), zap.String("type", string(postType)), zap.Bool("guest", caller == nil))
	return post.ID, nil
}

// DeletePost removes a post and its comments. Member posts may only be
// deleted by their author; guest posts by whoever presents the guest password.
func (s *postService) DeletePost(ctx context.Context, id uint, guestPassword string, caller *auth.Claims) error {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.NotFound("Post not found")
		}
		return s.storeError("Database error retrieving post", err)
	}

	res := auth.PostResource(post)
	res.GuestPassword = guestPassword
	if err := auth.Authorize(caller, auth.ActionDeletePost, res); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.NotFound("Post not found")
		}
		return s.storeError("Failed to delete post", err)
	}
	s.logger.Info("Post deleted", zap.Uint("post_id", id), zap.Int("comments", len(post.Comments)))
	return nil
}

func (s *postService) storeError(message string, err error) error {
	s.logger.Error(message, zap.Error(err))
	return apperrors.Store(message, err)
}
