package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/internal/notify"
	"github.com/triarqhealth/iam-portal/internal/requests"
	"github.com/triarqhealth/iam-portal/internal/users"
	"github.com/triarqhealth/iam-portal/model"
	"github.com/triarqhealth/iam-portal/params"
)

// AdminHandler implements the data management endpoints: export, import,
// sample data and factory reset. All of them are admin only.
type AdminHandler struct {
	requestRepo requests.RequestRepository
	auditRepo   audit.AuditRepository
	userService *users.UserService
	notifier    notify.Notifier
}

func NewAdminHandler(requestRepo requests.RequestRepository, auditRepo audit.AuditRepository, userService *users.UserService, notifier notify.Notifier) *AdminHandler {
	return &AdminHandler{
		requestRepo: requestRepo,
		auditRepo:   auditRepo,
		userService: userService,
		notifier:    notifier,
	}
}

type exportPayload struct {
	ExportedAt time.Time              `json:"exportedAt"`
	Version    string                 `json:"version"`
	Users      []*model.User          `json:"users"`
	Requests   []*model.AccessRequest `json:"requests"`
	Audit      []*model.AuditEntry    `json:"audit"`
}

func (h *AdminHandler) GetExport(ctx *fiber.Ctx) error {
	userList, err := h.userService.ListUsers(ctx.Context())
	if err != nil {
		return err
	}
	requestList, err := h.requestRepo.ListWithHistory(ctx.Context())
	if err != nil {
		return err
	}
	auditList, err := h.auditRepo.List(ctx.Context(), audit.Filter{Limit: params.AuditExportLimit})
	if err != nil {
		return err
	}

	payload := exportPayload{
		ExportedAt: time.Now(),
		Version:    params.ExportVersion,
		Users:      userList,
		Requests:   requestList,
		Audit:      auditList,
	}
	filename := fmt.Sprintf("iam-portal-export-%s.json", time.Now().Format("2006-01-02"))
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.JSON(payload)
}

type importPayload struct {
	Version  string                 `json:"version"`
	Requests []*model.AccessRequest `json:"requests"`
	Audit    []*model.AuditEntry    `json:"audit"`
}

// PostImport replaces all requests and audit entries with the uploaded
// snapshot. User accounts are left untouched.
func (h *AdminHandler) PostImport(ctx *fiber.Ctx) error {
	var payload importPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}
	if payload.Version == "" || payload.Requests == nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid data format"))
	}

	if err := h.requestRepo.Clear(ctx.Context()); err != nil {
		return err
	}
	if err := h.auditRepo.Clear(ctx.Context()); err != nil {
		return err
	}
	for _, req := range payload.Requests {
		if err := h.requestRepo.Create(ctx.Context(), req); err != nil {
			return err
		}
	}
	for _, entry := range payload.Audit {
		if err := h.auditRepo.Record(ctx.Context(), entry); err != nil {
			return err
		}
	}

	actor := sessionActor(ctx)
	audit.Record(ctx.Context(), actor, audit.ActionImport, audit.TargetSystem, "IMPORT", true,
		map[string]any{"requests": len(payload.Requests), "auditEntries": len(payload.Audit)})
	h.broadcast(ctx, actor.ID)
	return ctx.JSON(NewDataResponse(fiber.Map{"imported": len(payload.Requests)}))
}

// PostSample loads a handful of demo requests spread over the past days so
// the dashboard has something to show.
func (h *AdminHandler) PostSample(ctx *fiber.Ctx) error {
	userList, err := h.userService.ListUsers(ctx.Context())
	if err != nil {
		return err
	}
	var employees, iamUsers []*model.User
	for _, user := range userList {
		if user.IsIAM {
			iamUsers = append(iamUsers, user)
		} else {
			employees = append(employees, user)
		}
	}
	if len(employees) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "No employee accounts to build samples from"))
	}

	samples := buildSampleRequests(employees, iamUsers, time.Now())
	loaded := 0
	for _, req := range samples {
		if err := h.requestRepo.Create(ctx.Context(), req); err != nil {
			slog.Warn("Skipping sample request", "id", req.ID, "error", err)
			continue
		}
		loaded++
	}

	actor := sessionActor(ctx)
	audit.Record(ctx.Context(), actor, audit.ActionSampleData, audit.TargetSystem, "SAMPLE", true,
		map[string]any{"loaded": loaded})
	h.broadcast(ctx, actor.ID)
	return ctx.JSON(NewDataResponse(fiber.Map{"loaded": loaded}))
}

// PostReset wipes all requests and audit entries.
func (h *AdminHandler) PostReset(ctx *fiber.Ctx) error {
	if err := h.requestRepo.Clear(ctx.Context()); err != nil {
		return err
	}
	if err := h.auditRepo.Clear(ctx.Context()); err != nil {
		return err
	}

	actor := sessionActor(ctx)
	audit.Record(ctx.Context(), actor, audit.ActionReset, audit.TargetSystem, "RESET", true, nil)
	h.broadcast(ctx, actor.ID)
	return ctx.JSON(NewDataResponse(fiber.Map{"reset": true}))
}

func (h *AdminHandler) broadcast(ctx *fiber.Ctx, actorID uint) {
	if err := h.notifier.Publish(ctx.Context(), notify.NewEvent(notify.TypeDataChanged, actorID)); err != nil {
		slog.Warn("Failed to publish data change notification", "error", err)
	}
}

type sampleSeed struct {
	requester   *model.User
	department  string
	system      string
	environment string
	requestType string
	role        string
	reason      string
	urgency     string
	status      string
	assignee    *model.User
	daysAgo     int
}

func buildSampleRequests(employees, iamUsers []*model.User, now time.Time) []*model.AccessRequest {
	second := employees[0]
	if len(employees) > 1 {
		second = employees[1]
	}
	var firstIAM, secondIAM *model.User
	if len(iamUsers) > 0 {
		firstIAM = iamUsers[0]
		secondIAM = iamUsers[0]
	}
	if len(iamUsers) > 1 {
		secondIAM = iamUsers[1]
	}

	seeds := []sampleSeed{
		{
			requester:   employees[0],
			department:  "Engineering",
			system:      "GitHub",
			environment: "Prod",
			requestType: "Add",
			role:        "Write access to main repository",
			reason:      "Need to contribute to the main codebase for the Q2 feature release.",
			urgency:     model.UrgencyNormal,
			status:      model.StatusNew,
			daysAgo:     2,
		},
		{
			requester:   second,
			department:  "Finance",
			system:      "Data Warehouse / BI",
			environment: "Prod",
			requestType: "Add",
			role:        "Read access to financial reports",
			reason:      "Required for monthly financial analysis and reporting to leadership.",
			urgency:     model.UrgencyHigh,
			status:      model.StatusInReview,
			assignee:    firstIAM,
			daysAgo:     5,
		},
		{
			requester:   employees[0],
			department:  "Engineering",
			system:      "AWS Console",
			environment: "Non-Prod",
			requestType: "Add",
			role:        "EC2 and S3 management permissions",
			reason:      "Setting up new development environment for mobile team.",
			urgency:     model.UrgencyHigh,
			status:      model.StatusCompleted,
			assignee:    secondIAM,
			daysAgo:     10,
		},
	}

	out := make([]*model.AccessRequest, 0, len(seeds))
	for i, seed := range seeds {
		createdAt := now.AddDate(0, 0, -seed.daysAgo)
		initialStatus := model.StatusNew
		req := &model.AccessRequest{
			ID:                        fmt.Sprintf("%s%06d", params.RequestIDPrefix, 100001+i),
			RequesterID:               seed.requester.ID,
			RequesterName:             seed.requester.Name,
			RequesterEmail:            seed.requester.Email,
			Department:                seed.department,
			ApplicationOrSystem:       seed.system,
			Environment:               seed.environment,
			RequestType:               seed.requestType,
			RequestedRoleOrPermission: seed.role,
			Justification:             seed.reason,
			Urgency:                   seed.urgency,
			Status:                    seed.status,
			CreatedAt:                 createdAt,
			UpdatedAt:                 createdAt.AddDate(0, 0, 1),
			History: []model.RequestEvent{{
				Kind:       model.EventCreated,
				ActorID:    seed.requester.ID,
				ActorName:  seed.requester.Name,
				ActorEmail: seed.requester.Email,
				NewValue:   &initialStatus,
				CreatedAt:  createdAt,
			}},
		}
		if seed.assignee != nil {
			req.AssigneeID = &seed.assignee.ID
			req.AssigneeName = &seed.assignee.Name
		}
		if seed.status != model.StatusNew {
			// Samples land mid-lifecycle, so the transition out of New has
			// to be on record like any real status change would be.
			changer := audit.Actor{Name: "IAM Team"}
			if seed.assignee != nil {
				changer = audit.Actor{ID: seed.assignee.ID, Name: seed.assignee.Name, Email: seed.assignee.Email}
			}
			newStatus := seed.status
			req.History = append(req.History, model.RequestEvent{
				Kind:       model.EventStatusChanged,
				ActorID:    changer.ID,
				ActorName:  changer.Name,
				ActorEmail: changer.Email,
				OldValue:   &initialStatus,
				NewValue:   &newStatus,
				CreatedAt:  req.UpdatedAt,
			})
		}
		out = append(out, req)
	}
	return out
}
