package model

import "time"

// AuditEntry is one row of the process-wide security log. Entries are
// write-only from the application's perspective: never updated, never deleted
// outside the admin bulk reset.
type AuditEntry struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"auditId"`
	ActorID    uint      `gorm:"index" json:"actorUserId"`             // zero for unauthenticated actors
	ActorName  string    `gorm:"size:64" json:"actorName"`             // snapshot at event time
	ActorEmail string    `gorm:"size:256" json:"actorEmail"`
	ActionType string    `gorm:"size:32;not null;index" json:"actionType"` // LOGIN_SUCCESS, REQUEST_CREATE...
	TargetType string    `gorm:"size:16;not null" json:"targetType"`       // USER, REQUEST, SYSTEM
	TargetID   string    `gorm:"size:64;not null" json:"targetId"`
	Success    bool      `gorm:"not null;index" json:"success"`
	Detail     string    `gorm:"size:1024" json:"detail"` // free-form JSON context
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (AuditEntry) TableName() string {
	return "audit"
}
