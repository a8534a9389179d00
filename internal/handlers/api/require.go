package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/middlewares/sessions"
	"github.com/triarqhealth/iam-portal/internal/requests"
	"github.com/triarqhealth/iam-portal/internal/users"
)

// RequireLogin rejects requests that carry no authenticated session.
func RequireLogin(ctx *fiber.Ctx) error {
	if !sessions.Get(ctx).IsLoggedIn() {
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Authentication required"))
	}
	return ctx.Next()
}

// RequirePrivileged allows only IAM team members and administrators.
func RequirePrivileged(ctx *fiber.Ctx) error {
	sess := sessions.Get(ctx)
	if !sess.IsLoggedIn() {
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Authentication required"))
	}
	if !sess.Privileged() {
		return ctx.Status(fiber.StatusForbidden).JSON(
			NewErrorResponse(fiber.StatusForbidden, "IAM access required"))
	}
	return ctx.Next()
}

// RequireAdmin allows only administrators.
func RequireAdmin(ctx *fiber.Ctx) error {
	sess := sessions.Get(ctx)
	if !sess.IsLoggedIn() {
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Authentication required"))
	}
	if !sess.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).JSON(
			NewErrorResponse(fiber.StatusForbidden, "Administrator access required"))
	}
	return ctx.Next()
}

func currentIdentity(ctx *fiber.Ctx) requests.Identity {
	sess := sessions.Get(ctx)
	return requests.Identity{
		ID:         sess.UserID,
		Name:       sess.Name,
		Email:      sess.Email,
		Department: sess.Department,
		IsIAM:      sess.IsIAM,
		IsAdmin:    sess.IsAdmin,
	}
}

// sendServiceError translates domain errors into API responses.
func sendServiceError(ctx *fiber.Ctx, err error) error {
	var code int
	switch {
	case errors.Is(err, requests.ErrRequestNotFound), errors.Is(err, users.ErrUserNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, requests.ErrNotAuthorized):
		code = fiber.StatusForbidden
	case errors.Is(err, requests.ErrNoChanges),
		errors.Is(err, requests.ErrValidation),
		errors.Is(err, requests.ErrInvalidAssignee),
		errors.Is(err, users.ErrPasswordTooShort),
		errors.Is(err, users.ErrLastAdmin):
		code = fiber.StatusBadRequest
	case errors.Is(err, users.ErrEmailRegistered):
		code = fiber.StatusConflict
	default:
		return err
	}
	return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
}
