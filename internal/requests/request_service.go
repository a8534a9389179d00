package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/internal/notify"
	"github.com/triarqhealth/iam-portal/model"
	"github.com/triarqhealth/iam-portal/params"
	"gorm.io/gorm"
)

// Identity is the authenticated actor a handler resolved from the session.
// Requests never trust caller-supplied identity fields.
type Identity struct {
	ID         uint
	Name       string
	Email      string
	Department string
	IsIAM      bool
	IsAdmin    bool
}

// Privileged reports whether the actor may change status or assignee on any
// request.
func (a Identity) Privileged() bool {
	return a.IsIAM || a.IsAdmin
}

// UserDirectory resolves assignee ids to user records.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID uint) (*model.User, error)
}

// CreateInput carries the requester-editable fields of a new access request.
type CreateInput struct {
	Department                string `json:"department" validate:"required"`
	ApplicationOrSystem       string `json:"applicationOrSystem" validate:"required"`
	ApplicationOtherText      string `json:"applicationOtherText"`
	Environment               string `json:"environment" validate:"required"`
	RequestType               string `json:"requestType" validate:"required"`
	RequestedRoleOrPermission string `json:"requestedRoleOrPermission" validate:"required"`
	Justification             string `json:"justification" validate:"required"`
	Urgency                   string `json:"urgency" validate:"required"`
}

func (in *CreateInput) normalize() {
	in.Department = strings.TrimSpace(in.Department)
	in.ApplicationOrSystem = strings.TrimSpace(in.ApplicationOrSystem)
	in.ApplicationOtherText = strings.TrimSpace(in.ApplicationOtherText)
	in.Environment = strings.TrimSpace(in.Environment)
	in.RequestType = strings.TrimSpace(in.RequestType)
	in.RequestedRoleOrPermission = strings.TrimSpace(in.RequestedRoleOrPermission)
	in.Justification = strings.TrimSpace(in.Justification)
	in.Urgency = strings.TrimSpace(in.Urgency)
}

// ApplyInput is the proposed change set for one request. Nil pointers leave the
// corresponding field untouched; an AssigneeID of zero clears the assignment.
type ApplyInput struct {
	Status     *string
	AssigneeID *uint
	Comment    string
}

// Stats summarizes the request list for the IAM dashboard.
type Stats struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	InReview int `json:"inReview"`
	NeedInfo int `json:"needInfo"`
	Overdue  int `json:"overdue"`
}

// Service is the request lifecycle manager. It owns every mutation of request
// records, derives history events from field diffs, and emits the data-changed
// broadcast other sessions reload on.
type Service struct {
	requestRepo RequestRepository
	users       UserDirectory
	notifier    notify.Notifier
	validate    *validator.Validate
	now         func() time.Time
}

func NewService(requestRepo RequestRepository, users UserDirectory, notifier notify.Notifier) *Service {
	return &Service{
		requestRepo: requestRepo,
		users:       users,
		notifier:    notifier,
		validate:    validator.New(),
		now:         time.Now,
	}
}

func (s *Service) validateCreate(in *CreateInput) error {
	in.normalize()
	var verrs validator.ValidationErrors
	if err := s.validate.Struct(in); err != nil {
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s is required", ErrValidation, verrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !model.ValidSystem(in.ApplicationOrSystem) {
		return fmt.Errorf("%w: unknown system %q", ErrValidation, in.ApplicationOrSystem)
	}
	if in.ApplicationOrSystem == model.SystemOther && in.ApplicationOtherText == "" {
		return fmt.Errorf("%w: ApplicationOtherText is required when system is %q", ErrValidation, model.SystemOther)
	}
	if !model.ValidEnvironment(in.Environment) {
		return fmt.Errorf("%w: unknown environment %q", ErrValidation, in.Environment)
	}
	if !model.ValidRequestType(in.RequestType) {
		return fmt.Errorf("%w: unknown request type %q", ErrValidation, in.RequestType)
	}
	if !model.ValidUrgency(in.Urgency) {
		return fmt.Errorf("%w: unknown urgency %q", ErrValidation, in.Urgency)
	}
	return nil
}

// Create validates the input, persists a new request with its Created event in
// one transaction and broadcasts the change. On failure nothing is observable
// and the caller may retry.
func (s *Service) Create(ctx context.Context, actor Identity, in CreateInput) (*model.AccessRequest, error) {
	if err := s.validateCreate(&in); err != nil {
		return nil, err
	}
	if in.ApplicationOrSystem != model.SystemOther {
		in.ApplicationOtherText = ""
	}

	now := s.now()
	req := &model.AccessRequest{
		RequesterID:               actor.ID,
		RequesterName:             actor.Name,
		RequesterEmail:            actor.Email,
		Department:                in.Department,
		ApplicationOrSystem:       in.ApplicationOrSystem,
		ApplicationOtherText:      in.ApplicationOtherText,
		Environment:               in.Environment,
		RequestType:               in.RequestType,
		RequestedRoleOrPermission: in.RequestedRoleOrPermission,
		Justification:             in.Justification,
		Urgency:                   in.Urgency,
		Status:                    model.StatusNew,
		CreatedAt:                 now,
		UpdatedAt:                 now,
		History: []model.RequestEvent{{
			Kind:       model.EventCreated,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			ActorEmail: actor.Email,
			NewValue:   strPtr(model.StatusNew),
			CreatedAt:  now,
		}},
	}

	created := false
	for attempt := 0; attempt < params.RequestIDMaxRetries; attempt++ {
		id, err := generateRequestID()
		if err != nil {
			return nil, err
		}
		req.ID = id
		if err := s.requestRepo.Create(ctx, req); err != nil {
			if isDuplicateKey(err) {
				continue
			}
			return nil, err
		}
		created = true
		break
	}
	if !created {
		return nil, ErrIDExhausted
	}

	audit.Record(ctx, actorOf(actor), audit.ActionRequestCreate, audit.TargetRequest, req.ID, true, map[string]any{
		"system":      req.ApplicationOrSystem,
		"requestType": req.RequestType,
	})
	s.broadcast(ctx, actor.ID)
	return req, nil
}

// Apply diffs the proposed status/assignee/comment against the stored request
// and commits the field updates together with one derived event per change.
// Events are appended in field-check order: status, assignee, comment. If
// nothing changed it returns ErrNoChanges without touching the record.
func (s *Service) Apply(ctx context.Context, actor Identity, requestID string, in ApplyInput) (*model.AccessRequest, error) {
	in.Comment = strings.TrimSpace(in.Comment)

	req, err := s.requestRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if (in.Status != nil || in.AssigneeID != nil) && !actor.Privileged() {
		return nil, ErrNotAuthorized
	}
	if in.Comment != "" && !actor.Privileged() {
		// The requester may reply only while the request is waiting on them.
		if req.RequesterID != actor.ID || req.Status != model.StatusNeedInfo {
			return nil, ErrNotAuthorized
		}
	}
	if in.Status != nil && !model.ValidStatus(*in.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
	}

	now := s.now()
	var events []model.RequestEvent

	if in.Status != nil && *in.Status != req.Status {
		events = append(events, model.RequestEvent{
			RequestID:  req.ID,
			Kind:       model.EventStatusChanged,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			ActorEmail: actor.Email,
			OldValue:   strPtr(req.Status),
			NewValue:   strPtr(*in.Status),
			CreatedAt:  now,
		})
		req.Status = *in.Status
	}

	if in.AssigneeID != nil {
		newID, newName, err := s.resolveAssignee(ctx, *in.AssigneeID)
		if err != nil {
			return nil, err
		}
		if !uintPtrEqual(req.AssigneeID, newID) {
			events = append(events, model.RequestEvent{
				RequestID:  req.ID,
				Kind:       model.EventAssigned,
				ActorID:    actor.ID,
				ActorName:  actor.Name,
				ActorEmail: actor.Email,
				OldValue:   copyStrPtr(req.AssigneeName),
				NewValue:   copyStrPtr(newName),
				CreatedAt:  now,
			})
			req.AssigneeID = newID
			req.AssigneeName = newName
		}
	}

	if in.Comment != "" {
		role := model.CommentRoleEmployee
		if actor.Privileged() {
			role = model.CommentRoleIAM
		}
		events = append(events, model.RequestEvent{
			RequestID:  req.ID,
			Kind:       model.EventCommentAdded,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			ActorEmail: actor.Email,
			Comment:    in.Comment,
			AuthorRole: role,
			CreatedAt:  now,
		})
	}

	if len(events) == 0 {
		return nil, ErrNoChanges
	}

	req.UpdatedAt = now
	if err := s.requestRepo.Update(ctx, req, events); err != nil {
		return nil, err
	}
	req.History = append(req.History, events...)

	for _, ev := range events {
		switch ev.Kind {
		case model.EventStatusChanged:
			audit.Record(ctx, actorOf(actor), audit.ActionRequestStatusChange, audit.TargetRequest, req.ID, true, map[string]any{
				"oldStatus": derefStr(ev.OldValue),
				"newStatus": derefStr(ev.NewValue),
			})
		case model.EventAssigned:
			audit.Record(ctx, actorOf(actor), audit.ActionRequestAssign, audit.TargetRequest, req.ID, true, map[string]any{
				"oldAssignee": assigneeDisplay(ev.OldValue),
				"newAssignee": assigneeDisplay(ev.NewValue),
			})
		case model.EventCommentAdded:
			audit.Record(ctx, actorOf(actor), audit.ActionCommentAdd, audit.TargetRequest, req.ID, true, map[string]any{
				"commentType": ev.AuthorRole,
			})
		}
	}

	// One broadcast per successful call, regardless of how many fields changed.
	s.broadcast(ctx, actor.ID)
	return req, nil
}

// Get returns one request with its full history. Only the requester and
// privileged actors may view it.
func (s *Service) Get(ctx context.Context, actor Identity, requestID string) (*model.AccessRequest, error) {
	req, err := s.requestRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actor.ID && !actor.Privileged() {
		return nil, ErrNotAuthorized
	}
	return req, nil
}

// ListMine returns the actor's own requests, most recently updated first.
func (s *Service) ListMine(ctx context.Context, actor Identity) ([]*model.AccessRequest, error) {
	return s.requestRepo.ListByRequester(ctx, actor.ID)
}

// ListAll returns every request for the IAM dashboard.
func (s *Service) ListAll(ctx context.Context, actor Identity) ([]*model.AccessRequest, error) {
	if !actor.Privileged() {
		return nil, ErrNotAuthorized
	}
	return s.requestRepo.List(ctx)
}

// GetStats aggregates dashboard counters over all requests.
func (s *Service) GetStats(ctx context.Context, actor Identity) (*Stats, error) {
	reqs, err := s.ListAll(ctx, actor)
	if err != nil {
		return nil, err
	}
	now := s.now()
	stats := Stats{Total: len(reqs)}
	for _, req := range reqs {
		switch req.Status {
		case model.StatusNew:
			stats.New++
		case model.StatusInReview:
			stats.InReview++
		case model.StatusNeedInfo:
			stats.NeedInfo++
		}
		if IsOverSLA(req, now) {
			stats.Overdue++
		}
	}
	return &stats, nil
}

func (s *Service) resolveAssignee(ctx context.Context, userID uint) (*uint, *string, error) {
	if userID == 0 {
		return nil, nil, nil
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, ErrInvalidAssignee
	}
	if !user.IsActive || !user.IsIAM {
		return nil, nil, ErrInvalidAssignee
	}
	return &user.ID, &user.Name, nil
}

func (s *Service) broadcast(ctx context.Context, actorID uint) {
	if err := s.notifier.Publish(ctx, notify.NewEvent(notify.TypeDataChanged, actorID)); err != nil {
		slog.Warn("Failed to publish data change notification", "error", err)
	}
}

func actorOf(a Identity) audit.Actor {
	return audit.Actor{ID: a.ID, Name: a.Name, Email: a.Email}
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func strPtr(s string) *string {
	return &s
}

func copyStrPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func assigneeDisplay(name *string) string {
	if name == nil {
		return "Unassigned"
	}
	return *name
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
