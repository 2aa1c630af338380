package models

import "time"

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:64;uniqueIndex;not null"`
	Password  string `gorm:"not null" json:"-"` // bcrypt hash
	Nickname  string `gorm:"size:64;uniqueIndex;not null"`
	Role      string `gorm:"size:16;not null;default:member"`
	CreatedAt time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
