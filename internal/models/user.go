package models

import "time"

type Role string

const (
	RoleCandidate Role = "candidate"
	RoleHR        Role = "hr"
)

func (r Role) Valid() bool {
	return r == RoleCandidate || r == RoleHR
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"size:32;not null;default:'candidate'" json:"role"`
	AvatarPath   string    `gorm:"size:512" json:"avatar_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
