package model

import (
	"time"
)

type UserRole string

const (
	Learner UserRole = "learner"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	WalletAddress string    `gorm:"size:64;unique;not null;index" json:"walletAddress"`
	Name          string    `gorm:"size:100" json:"name"`
	Email         string    `gorm:"size:100;index" json:"email"`
	Password      string    `gorm:"size:100" json:"-"` // 仅管理员账号使用
	Role          UserRole  `gorm:"type:enum('learner','admin');default:'learner'" json:"role"`
	Disabled      bool      `gorm:"default:false" json:"disabled"`
	LastLogin     time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
	LastSeen      time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
