package models

import "time"

// Comment is an administrator reply to a post.
type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"index;not null"`
	UserID    uint   `gorm:"index;not null"`
	Author    *User  `gorm:"foreignKey:UserID"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}
