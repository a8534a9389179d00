package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/internal/middlewares/sessions"
	"github.com/triarqhealth/iam-portal/internal/users"
)

type UserHandler struct {
	userService *users.UserService
}

func NewUserHandler(userService *users.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetUsers(ctx *fiber.Ctx) error {
	list, err := h.userService.ListUsers(ctx.Context())
	if err != nil {
		return err
	}
	out := make([]UserInfoResponse, 0, len(list))
	for _, user := range list {
		out = append(out, newUserInfoResponse(user))
	}
	return ctx.JSON(NewDataResponse(out))
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"defaultDepartment"`
	IsIAM      bool   `json:"isIam"`
	IsAdmin    bool   `json:"isAdmin"`
	Password   string `json:"password"`
}

func (h *UserHandler) PostUser(ctx *fiber.Ctx) error {
	var body createUserRequest
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}
	if body.Name == "" || body.Email == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Name and email are required"))
	}

	user, err := h.userService.CreateUser(ctx.Context(), sessionActor(ctx), users.CreateUserOptions{
		Name:       body.Name,
		Email:      body.Email,
		Department: body.Department,
		IsIAM:      body.IsIAM,
		IsAdmin:    body.IsAdmin,
		Password:   body.Password,
	})
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserInfoResponse(user)))
}

type updateUserRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"defaultDepartment"`
	IsIAM      *bool   `json:"isIam"`
	IsAdmin    *bool   `json:"isAdmin"`
	IsActive   *bool   `json:"isActive"`
}

func (h *UserHandler) PatchUser(ctx *fiber.Ctx) error {
	userID, err := parseUserID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid user id"))
	}
	var body updateUserRequest
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	user, err := h.userService.UpdateUser(ctx.Context(), sessionActor(ctx), userID, users.UpdateUserOptions{
		Name:       body.Name,
		Department: body.Department,
		IsIAM:      body.IsIAM,
		IsAdmin:    body.IsAdmin,
		IsActive:   body.IsActive,
	})
	if err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(newUserInfoResponse(user)))
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (h *UserHandler) PostResetPassword(ctx *fiber.Ctx) error {
	userID, err := parseUserID(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid user id"))
	}
	var body resetPasswordRequest
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Invalid request body"))
	}

	if err := h.userService.ResetPassword(ctx.Context(), sessionActor(ctx), userID, body.Password); err != nil {
		return sendServiceError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"reset": true}))
}

func parseUserID(ctx *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	return uint(id), err
}

func sessionActor(ctx *fiber.Ctx) audit.Actor {
	sess := sessions.Get(ctx)
	return audit.Actor{ID: sess.UserID, Name: sess.Name, Email: sess.Email}
}
