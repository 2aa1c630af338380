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

type CommentService interface {
	CreateComment(ctx context.Context, input *CreateCommentInput, caller *auth.Claims) (uint, error)
}

type CreateCommentInput struct {
	PostID  uint   `json:"post_id"`
	Content string `json:"content"`
}

type commentService struct {
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	logger   *zap.Logger
}

var _ CommentService = (*commentService)(nil)

func NewCommentService(posts repositories.PostRepository, comments repositories.CommentRepository, logger *zap.Logger) CommentService {
	return &commentService{posts: posts, comments: comments, logger: logger}
}

// CreateComment adds an administrator reply to a post.
func (s *commentService) CreateComment(ctx context.Context, input *CreateCommentInput, caller *auth.Claims) (uint, error) {
	if err := auth.Authorize(caller, auth.ActionCreateComment, auth.Resource{}); err != nil {
		return 0, err
	}
	if input.PostID == 0 || strings.TrimSpace(input.Content) == "" {
		return 0, apperrors.Validation("post_id and content are required")
	}

	if _, err := s.posts.FindByID(ctx, input.PostID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, apperrors.NotFound("Post not found")
		}
		s.logger.Error("Database error retrieving post", zap.Error(err))
		return 0, apperrors.Store("Database error retrieving post", err)
	}

	comment := &models.Comment{
		PostID:  input.PostID,
		UserID:  caller.UserID,
		Content: input.Content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error("Failed to create comment", zap.Error(err))
		return 0, apperrors.Store("Failed to create comment", err)
	}
	return comment.ID, nil
}
