package model

import "time"

// Lifecycle event kinds. Wire format, do not rename.
const (
	EventCreated       = "Created"
	EventStatusChanged = "StatusChanged"
	EventAssigned      = "Assigned"
	EventCommentAdded  = "CommentAdded"
)

// Author role tags on CommentAdded events, used by clients to style IAM
// replies differently from employee replies.
const (
	CommentRoleIAM      = "iam"
	CommentRoleEmployee = "employee"
)

// RequestEvent is one immutable entry in a request's history. Rows are only
// ever appended; CreatedAt is assigned by the lifecycle service together with
// the owning request's UpdatedAt so timestamps are non-decreasing in append
// order.
type RequestEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	RequestID  string    `gorm:"size:16;index;not null" json:"requestId"`
	Kind       string    `gorm:"size:16;not null" json:"kind"`
	ActorID    uint      `gorm:"index;not null" json:"actorId"`
	ActorName  string    `gorm:"size:64;not null" json:"actorName"`
	ActorEmail string    `gorm:"size:256" json:"actorEmail"`
	OldValue   *string   `gorm:"size:128" json:"oldValue,omitempty"`
	NewValue   *string   `gorm:"size:128" json:"newValue,omitempty"`
	Comment    string    `gorm:"size:2048" json:"comment,omitempty"`
	AuthorRole string    `gorm:"size:16" json:"authorRole,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}

func (RequestEvent) TableName() string {
	return "request_event"
}
