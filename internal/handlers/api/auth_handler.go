package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/internal/middlewares/sessions"
	"github.com/triarqhealth/iam-portal/internal/notify"
	"github.com/triarqhealth/iam-portal/internal/users"
)

type AuthHandler struct {
	userService *users.UserService
	notifier    notify.Notifier
}

func NewAuthHandler(userService *users.UserService, notifier notify.Notifier) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		notifier:    notifier,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var body loginRequest
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	user, err := h.userService.Authenticate(ctx.Context(), body.Email, body.Password)
	if err != nil {
		var code int
		switch {
		case errors.Is(err, users.ErrWrongCredentials):
			code = fiber.StatusUnauthorized
		case errors.Is(err, users.ErrAccountLocked):
			code = fiber.StatusLocked
		case errors.Is(err, users.ErrAccountInactive):
			code = fiber.StatusForbidden
		default:
			return err
		}
		return ctx.Status(code).JSON(NewErrorResponse(code, err.Error()))
	}

	now := time.Now()
	if err := sessions.Reset(ctx, sessions.SessionData{
		IP:         ctx.IP(),
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Department: user.DefaultDepartment,
		IsIAM:      user.IsIAM,
		IsAdmin:    user.IsAdmin,
		LoginTime:  now,
		LastSeen:   now,
	}); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newUserInfoResponse(user)))
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	sess := sessions.Get(ctx)
	if sess.IsLoggedIn() {
		actor := audit.Actor{ID: sess.UserID, Name: sess.Name, Email: sess.Email}
		audit.Record(ctx.Context(), actor, audit.ActionLogout, audit.TargetUser, sess.Email, true, nil)
		if err := h.notifier.Publish(ctx.Context(), notify.NewEvent(notify.TypeLogout, sess.UserID)); err != nil {
			slog.Warn("Failed to publish logout notification", "error", err)
		}
	}
	if err := sessions.Destroy(ctx); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"loggedOut": true}))
}

func (h *AuthHandler) GetMe(ctx *fiber.Ctx) error {
	sess := sessions.Get(ctx)
	user, err := h.userService.GetUserByID(ctx.Context(), sess.UserID)
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(newUserInfoResponse(user)))
}
