package model

import (
	"slices"
	"time"
)

// Request status values. These strings are the wire format shared with the
// browser clients and must not be renamed.
const (
	StatusNew       = "New"
	StatusInReview  = "In Review"
	StatusNeedInfo  = "Need Info"
	StatusDeclined  = "Declined"
	StatusCompleted = "Completed"
)

const (
	UrgencyLow    = "Low"
	UrgencyNormal = "Normal"
	UrgencyHigh   = "High"
)

// SystemOther is the sentinel choice that requires the free-text
// ApplicationOtherText field.
const SystemOther = "Other"

var (
	Statuses     = []string{StatusNew, StatusInReview, StatusNeedInfo, StatusDeclined, StatusCompleted}
	Urgencies    = []string{UrgencyLow, UrgencyNormal, UrgencyHigh}
	Environments = []string{"Prod", "Non-Prod", "Both"}
	RequestTypes = []string{"Add", "Remove", "Change Role", "Other"}
	Systems      = []string{
		"Okta / SSO",
		"Microsoft 365 / Exchange",
		"Azure AD",
		"VPN",
		"EMR",
		"Data Warehouse / BI",
		"GitHub",
		"Jira",
		"Shared Drive / SharePoint",
		"AWS Console",
		SystemOther,
	}
)

func ValidStatus(s string) bool      { return slices.Contains(Statuses, s) }
func ValidUrgency(s string) bool     { return slices.Contains(Urgencies, s) }
func ValidEnvironment(s string) bool { return slices.Contains(Environments, s) }
func ValidRequestType(s string) bool { return slices.Contains(RequestTypes, s) }
func ValidSystem(s string) bool      { return slices.Contains(Systems, s) }

// AccessRequest is an employee's request for access to a system. The ID,
// requester snapshot and creation fields are immutable after persistence;
// Status and the assignee pair mutate only through the lifecycle service.
// UpdatedAt is managed explicitly by the service so that no-op saves never
// bump it.
type AccessRequest struct {
	ID                        string         `gorm:"primaryKey;size:16" json:"id"`
	RequesterID               uint           `gorm:"index;not null" json:"requesterUserId"`
	RequesterName             string         `gorm:"size:64;not null" json:"requesterName"`
	RequesterEmail            string         `gorm:"size:256;not null" json:"requesterEmail"`
	Department                string         `gorm:"size:128;not null" json:"department"`
	ApplicationOrSystem       string         `gorm:"size:64;not null" json:"applicationOrSystem"`
	ApplicationOtherText      string         `gorm:"size:128" json:"applicationOtherText"`
	Environment               string         `gorm:"size:16;not null" json:"environment"`
	RequestType               string         `gorm:"size:32;not null" json:"requestType"`
	RequestedRoleOrPermission string         `gorm:"size:256;not null" json:"requestedRoleOrPermission"`
	Justification             string         `gorm:"size:2048;not null" json:"justification"`
	Urgency                   string         `gorm:"size:16;not null;index" json:"urgency"`
	Status                    string         `gorm:"size:16;not null;index" json:"status"`
	AssigneeID                *uint          `gorm:"index" json:"iamAssigneeUserId"`
	AssigneeName              *string        `gorm:"size:64" json:"iamAssigneeName"`
	History                   []RequestEvent `gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"history,omitempty"`
	CreatedAt                 time.Time      `json:"createdAt"`
	UpdatedAt                 time.Time      `gorm:"autoUpdateTime:false;index" json:"updatedAt"`
}

func (AccessRequest) TableName() string {
	return "request"
}

// Terminal reports whether the request has reached a final status. Terminal
// requests are exempt from SLA tracking.
func (r *AccessRequest) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusDeclined
}

// SystemDisplay resolves the "Other" sentinel to the free-text system name.
func (r *AccessRequest) SystemDisplay() string {
	if r.ApplicationOrSystem == SystemOther {
		return r.ApplicationOtherText
	}
	return r.ApplicationOrSystem
}
