package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/audit"
)

type AuditHandler struct {
	auditRepo audit.AuditRepository
}

func NewAuditHandler(auditRepo audit.AuditRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

func (h *AuditHandler) GetAuditLog(ctx *fiber.Ctx) error {
	filter := audit.Filter{
		ActionType: ctx.Query("action"),
		Limit:      ctx.QueryInt("limit"),
	}
	if v := ctx.Query("actorId"); v != "" {
		actorID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(
				NewErrorResponse(fiber.StatusBadRequest, "Invalid actorId"))
		}
		filter.ActorID = uint(actorID)
	}
	if v := ctx.Query("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(
				NewErrorResponse(fiber.StatusBadRequest, "Invalid success flag"))
		}
		filter.Success = &success
	}

	entries, err := h.auditRepo.List(ctx.Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(entries))
}
