package models

import (
	"fmt"
	"time"
)

type PostType string

const (
	PostTypeInquiry PostType = "inquiry"
	PostTypeReview  PostType = "review"
)

// ParsePostType accepts the two board names. An empty string selects the inquiry board.
func ParsePostType(s string) (PostType, error) {
	switch PostType(s) {
	case "", PostTypeInquiry:
		return PostTypeInquiry, nil
	case PostTypeReview:
		return PostTypeReview, nil
	default:
		return "", fmt.Errorf("unknown post type %q", s)
	}
}

// Post is either member-authored (UserID set) or guest-authored (GuestName and
// GuestPassword set). Reviews are always member-authored.
type Post struct {
	ID            uint     `gorm:"primaryKey"`
	Type          PostType `gorm:"size:16;index;not null"`
	Title         string   `gorm:"size:255;not null"`
	Content       string   `gorm:"type:text;not null"`
	UserID        *uint    `gorm:"index"`
	Author        *User    `gorm:"foreignKey:UserID"`
	GuestName     *string  `gorm:"size:64"`
	GuestPassword string   `gorm:"size:72" json:"-"` // bcrypt hash
	IsSecret      bool     `gorm:"not null;default:false"`
	Views         uint     `gorm:"not null;default:0"`
	CreatedAt     time.Time
	Comments      []Comment `gorm:"foreignKey:PostID"`
}

func (p *Post) IsGuestPost() bool {
	return p.UserID == nil
}

// AuthorName is the nickname of the member author or the guest display name.
func (p *Post) AuthorName() string {
	if p.Author != nil {
		return p.Author.Nickname
	}
	if p.GuestName != nil {
		return *p.GuestName
	}
	return ""
}
