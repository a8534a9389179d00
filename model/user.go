package model

import (
	"time"

	"gorm.io/gorm"
)

// Index names referenced when translating MySQL duplicate-key errors.
const (
	IdxUserEmail = "idx_user_email"
)

// User stores portal account information. The IsIAM and IsAdmin flags are the
// two capability bits the lifecycle manager consults; everything else is
// profile data.
type User struct {
	ID                uint       `gorm:"primarykey" json:"userId"`
	Name              string     `gorm:"size:64;not null" json:"name"`
	Email             string     `gorm:"uniqueIndex:idx_user_email;size:256;not null" json:"email"`
	DefaultDepartment string     `gorm:"size:128" json:"defaultDepartment"`
	IsIAM             bool       `gorm:"default:false;not null" json:"isIam"`
	IsAdmin           bool       `gorm:"default:false;not null" json:"isAdmin"`
	IsActive          bool       `gorm:"default:true;not null" json:"isActive"`
	Password          string     `gorm:"size:64;not null" json:"-"`
	FailedLoginCount  int        `gorm:"default:0;not null" json:"-"`
	LockUntil         *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

// Locked reports whether the account is under a failed-login lockout.
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}
