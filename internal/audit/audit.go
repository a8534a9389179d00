package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/triarqhealth/iam-portal/model"
)

var auditRepo AuditRepository
var initOnce sync.Once

func Initialize(repo AuditRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

// Audit action types. These strings are shared with the browser clients'
// audit-log filters and must not be renamed.
const (
	ActionLoginSuccess        = "LOGIN_SUCCESS"
	ActionLoginFailure        = "LOGIN_FAILURE"
	ActionLogout              = "LOGOUT"
	ActionUserCreate          = "USER_CREATE"
	ActionUserUpdate          = "USER_UPDATE"
	ActionUserDeactivate      = "USER_DEACTIVATE"
	ActionUserReactivate      = "USER_REACTIVATE"
	ActionPasswordReset       = "PASSWORD_RESET"
	ActionRequestCreate       = "REQUEST_CREATE"
	ActionRequestStatusChange = "REQUEST_STATUS_CHANGE"
	ActionRequestAssign       = "REQUEST_ASSIGN"
	ActionCommentAdd          = "COMMENT_ADD"
	ActionImport              = "DATA_IMPORT"
	ActionReset               = "DATA_RESET"
	ActionSampleData          = "SAMPLE_DATA_LOAD"
)

const (
	TargetUser    = "USER"
	TargetRequest = "REQUEST"
	TargetSystem  = "SYSTEM"
)

// Actor is the identity snapshot stamped on an audit entry. A zero Actor
// represents the system itself (seeding, imports).
type Actor struct {
	ID    uint
	Name  string
	Email string
}

// SystemActor stamps entries produced by the application itself, such as
// seeding and data imports.
var SystemActor = Actor{Name: "SYSTEM"}

// Record appends one entry to the security log. The audit trail is best
// effort: a failed write is logged and swallowed so it never fails the
// caller's primary operation.
func Record(ctx context.Context, actor Actor, actionType, targetType, targetID string, success bool, detail map[string]any) {
	if auditRepo == nil {
		return
	}
	entry := newEntry(actor, actionType, targetType, targetID, success, detail)
	if err := auditRepo.Record(ctx, entry); err != nil {
		slog.Warn("Failed to write audit entry", "action", actionType, "target", targetID, "error", err)
	}
}

func newEntry(actor Actor, actionType, targetType, targetID string, success bool, detail map[string]any) *model.AuditEntry {
	return &model.AuditEntry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		ActionType: actionType,
		TargetType: targetType,
		TargetID:   targetID,
		Success:    success,
		Detail:     encodeDetail(detail),
	}
}

func encodeDetail(detail map[string]any) string {
	if len(detail) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
