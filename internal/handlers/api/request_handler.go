package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/mail"
	"github.com/triarqhealth/iam-portal/internal/requests"
	"github.com/triarqhealth/iam-portal/model"
)

type RequestHandler struct {
	requestService *requests.Service
	mailSender     mail.MailSender
	portal         mail.PortalInfo
}

func NewRequestHandler(requestService *requests.Service, mailSender mail.MailSender, portal mail.PortalInfo) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		mailSender:     mailSender,
		portal:         portal,
	}
}

func (h *RequestHandler) PostRequest(ctx *fiber.Ctx) error {
	var input requests.CreateInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	req, err := h.requestService.Create(ctx.Context(), currentIdentity(ctx), input)
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newRequestResponse(req, time.Now())))
}

// GetRequests lists requests. Privileged callers get the full queue unless
// they ask for scope=mine; everyone else only ever sees their own.
func (h *RequestHandler) GetRequests(ctx *fiber.Ctx) error {
	actor := currentIdentity(ctx)

	var (
		reqs []*model.AccessRequest
		err  error
	)
	if actor.Privileged() && ctx.Query("scope") != "mine" {
		reqs, err = h.requestService.ListAll(ctx.Context(), actor)
	} else {
		reqs, err = h.requestService.ListMine(ctx.Context(), actor)
	}
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(newRequestListResponse(reqs, time.Now())))
}

func (h *RequestHandler) GetRequest(ctx *fiber.Ctx) error {
	req, err := h.requestService.Get(ctx.Context(), currentIdentity(ctx), ctx.Params("id"))
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(newRequestResponse(req, time.Now())))
}

func (h *RequestHandler) GetStats(ctx *fiber.Ctx) error {
	stats, err := h.requestService.GetStats(ctx.Context(), currentIdentity(ctx))
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(stats))
}

type applyRequest struct {
	Status     *string `json:"status"`
	AssigneeID *uint   `json:"iamAssigneeUserId"`
	Comment    string  `json:"comment"`
}

func (h *RequestHandler) PatchRequest(ctx *fiber.Ctx) error {
	var body applyRequest
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	actor := currentIdentity(ctx)
	requestID := ctx.Params("id")

	before, err := h.requestService.Get(ctx.Context(), actor, requestID)
	if err != nil {
		return sendServiceError(ctx, err)
	}
	oldStatus := before.Status

	req, err := h.requestService.Apply(ctx.Context(), actor, requestID, requests.ApplyInput{
		Status:     body.Status,
		AssigneeID: body.AssigneeID,
		Comment:    body.Comment,
	})
	if err != nil {
		return sendServiceError(ctx, err)
	}

	if req.Status != oldStatus && req.RequesterEmail != actor.Email {
		go h.sendStatusMail(req, oldStatus)
	}
	return ctx.JSON(NewDataResponse(newRequestResponse(req, time.Now())))
}

// sendStatusMail notifies the requester of a status change. Delivery is best
// effort and never affects the API response.
func (h *RequestHandler) sendStatusMail(req *model.AccessRequest, oldStatus string) {
	if err := mail.SendStatusChanged(h.mailSender, h.portal, req, oldStatus, req.Status); err != nil {
		slog.Warn("Failed to send status change mail", "request", req.ID, "error", err)
	}
}
