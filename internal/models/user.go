package models

import "time"

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

var Roles = []string{RoleAdmin, RoleEmployee}

func ValidRole(r string) bool {
	for _, x := range Roles {
		if x == r {
			return true
		}
	}
	return false
}

type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"` // bcrypt
	Role         string     `gorm:"size:16;not null;index" json:"role"`
	CreatedBy    *string    `gorm:"size:36;index" json:"createdBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
