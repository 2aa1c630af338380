package repositories

import (
	"context"

	"board-restful/models"

	"gorm.io/gorm"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// FindByID loads the post with its author and comments.
	FindByID(ctx context.Context, id uint) (*models.Post, error)
	// ListByType returns one page of posts of type t, newest first, with authors loaded.
	ListByType(ctx context.Context, t models.PostType, page, limit int) ([]models.Post, int64, error)
	IncrementViews(ctx context.Context, id uint) error
	// Delete removes the post and its comments.
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Omit("Author", "Comments").Create(post).Error)
}

func (r *postRepository) FindByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("comments.id ASC") }).
		Preload("Comments.Author").
		First(&post, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *postRepository) ListByType(ctx context.Context, t models.PostType, page, limit int) ([]models.Post, int64, error) {
	offset := (page - 1) * limit
	var posts []models.Post
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Where("type = ?", t).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := db.Preload("Author").
		Where("type = ?", t).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return posts, total, nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Post{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
