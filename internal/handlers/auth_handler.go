package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
	"cvmatcher/backend/internal/services"
)

type AuthHandler struct {
	users   repositories.UserRepository
	jwt     *auth.JWTService
	avatars services.AvatarService
	log     *zap.Logger
}

func NewAuthHandler(users repositories.UserRepository, jwtService *auth.JWTService, avatars services.AvatarService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwtService, avatars: avatars, log: logger.OrNop(log)}
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return respondError(c, fiber.StatusBadRequest, "A valid email is required")
	}
	if req.Role == "" {
		req.Role = models.RoleCandidate
	}
	if !req.Role.Valid() {
		return respondError(c, fiber.StatusBadRequest, "role must be candidate or hr")
	}

	if _, err := h.users.FindByEmail(email); err == nil {
		return respondError(c, fiber.StatusConflict, "Email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return respondServiceError(c, h.log, err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	user := &models.User{Email: email, PasswordHash: hash, Role: req.Role}
	if err := h.users.Create(user); err != nil {
		return respondServiceError(c, h.log, err)
	}

	h.log.Info("User registered", zap.Uint(logger.FieldUserID, user.ID), zap.String("role", string(user.Role)))
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}

	user, err := h.users.FindByEmail(strings.TrimSpace(req.Email))
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return respondServiceError(c, h.log, err)
		}
		return respondError(c, fiber.StatusUnauthorized, "Incorrect email or password")
	}

	token, err := h.jwt.GenerateToken(user)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	return c.JSON(models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	claims := auth.GetClaims(c)
	user, err := h.users.FindByID(claims.UserID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(user)
}

// HandleChangePassword handles POST /auth/change-password
func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req models.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}

	claims := auth.GetClaims(c)
	user, err := h.users.FindByID(claims.UserID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return respondError(c, fiber.StatusBadRequest, "Current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	if err := h.users.UpdatePassword(user.ID, hash); err != nil {
		return respondServiceError(c, h.log, err)
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}

// HandleUploadAvatar handles POST /auth/avatar
func (h *AuthHandler) HandleUploadAvatar(c *fiber.Ctx) error {
	fh, data, err := readUpload(c, "avatar", services.MaxAvatarSize)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	key, err := h.avatars.Upload(c.UserContext(), auth.GetClaims(c).UserID, fh.Filename, data)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Avatar uploaded successfully",
		"avatar_path": key,
	})
}

// HandleGetAvatar handles GET /auth/avatar/:user_id
func (h *AuthHandler) HandleGetAvatar(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("user_id"), 10, 64)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid user id")
	}

	path, err := h.avatars.Path(c.UserContext(), uint(userID))
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	if path == "" {
		return c.JSON(fiber.Map{"avatar_url": services.DefaultAvatarURL})
	}
	return c.JSON(fiber.Map{"avatar_url": fmt.Sprintf("/api/v1/auth/avatar/%d/file", userID)})
}

// HandleAvatarFile handles GET /auth/avatar/:user_id/file
func (h *AuthHandler) HandleAvatarFile(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("user_id"), 10, 64)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid user id")
	}

	data, contentType, err := h.avatars.Image(c.UserContext(), uint(userID))
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(data)
}
