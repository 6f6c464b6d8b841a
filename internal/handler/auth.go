package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/config"
	"github.com/iliyamo/tutor-marketplace/internal/model"
	"github.com/iliyamo/tutor-marketplace/internal/repository"
	"github.com/iliyamo/tutor-marketplace/internal/utils"
)

// UserAccounts is the user storage the auth endpoints need.
type UserAccounts interface {
	Create(ctx context.Context, nu model.NewUser, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RefreshTokens stores hashed refresh tokens.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserAccounts
	Tokens RefreshTokens
	Logger *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserAccounts, t RefreshTokens, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	Role        string   `json:"role" validate:"required,oneof=student teacher"`
	FirstName   string   `json:"first_name" validate:"required,notblank,max=100"`
	LastName    string   `json:"last_name" validate:"max=100"`
	Language    string   `json:"language" validate:"omitempty,oneof=en ar"`
	Subjects    []string `json:"subjects" validate:"required_if=Role teacher,dive,notblank"`
	HourlyPrice float64  `json:"hourly_price" validate:"required_if=Role teacher,gte=0"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

var errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
var errInvalidRefresh = echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh")

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u userPart) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, fmt.Errorf("save refresh: %w", err)
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register creates a student or teacher account and returns tokens
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, model.NewUser{
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Language:    req.Language,
		Subjects:    req.Subjects,
		HourlyPrice: req.HourlyPrice,
	}, h.Cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	case errors.Is(err, utils.ErrPasswordTooShort):
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	case err != nil:
		return fmt.Errorf("create user: %w", err)
	}
	h.Logger.Info("user registered", zap.Uint64("user_id", uid), zap.String("role", req.Role))

	resp, err := h.issue(ctx, userPart{ID: uid, Email: req.Email, Role: req.Role})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidCredentials
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errInvalidCredentials
	}

	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func refreshHash(c echo.Context) (string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "refresh_token required")
	}
	return utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)), nil
}

// Refresh validates by hash, revokes the old token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	hash, err := refreshHash(c)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return errInvalidRefresh
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		h.Logger.Warn("revoke rotated refresh token", zap.Uint64("user_id", userID), zap.Error(err))
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidRefresh
		}
		return fmt.Errorf("load user: %w", err)
	}

	resp, err := h.issue(ctx, userPart{ID: userID, Email: u.Email, Role: u.Role})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	hash, err := refreshHash(c)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return errInvalidRefresh
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidRefresh
		}
		return fmt.Errorf("load user: %w", err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fmt.Errorf("issue access: %w", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer when only an access token is present.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if raw := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer "); raw != "" {
		if id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw); err == nil {
			uid = id.UserID
		}
	}

	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	case uid != 0:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return fmt.Errorf("logout all: %w", err)
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "provide Authorization header or refresh_token")
	}
	return c.NoContent(http.StatusNoContent)
}
