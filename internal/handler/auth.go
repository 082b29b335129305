package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/config"
	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/repository"
	"github.com/dvaldes/gradgala/internal/utils"
)

// AuthHandler serves registration, login and token rotation for graduates.
type AuthHandler struct {
	Graduates *repository.GraduateRepo
	Events    *repository.EventRepo
	Tokens    *repository.TokenRepo
	Cfg       config.Config
}

func NewAuthHandler(graduates *repository.GraduateRepo, events *repository.EventRepo, tokens *repository.TokenRepo, cfg config.Config) *AuthHandler {
	if graduates == nil || events == nil || tokens == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	return &AuthHandler{Graduates: graduates, Events: events, Tokens: tokens, Cfg: cfg}
}

type registerRequest struct {
	EventID    uint64  `json:"event_id" validate:"required,min=1"`
	FullName   string  `json:"full_name" validate:"required,min=2,max=120"`
	Email      string  `json:"email" validate:"required,email"`
	Phone      string  `json:"phone" validate:"required,min=7,max=20"`
	Career     string  `json:"career" validate:"required,max=120"`
	Generation string  `json:"generation" validate:"required,max=40"`
	GroupName  *string `json:"group_name" validate:"omitempty,max=40"`
	Password   string  `json:"password" validate:"required,min=8,max=72"`
}

// Register handles POST /v1/auth/register.  New accounts start with the
// tickets step pending and everything downstream locked.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, req.EventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return apiError(c, http.StatusNotFound, kindNotFound, "event not found")
		}
		return internalError(c)
	}

	g := &model.Graduate{
		EventID:    req.EventID,
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Career:     req.Career,
		Generation: req.Generation,
		GroupName:  req.GroupName,
	}
	id, err := h.Graduates.Create(ctx, g, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apiError(c, http.StatusConflict, kindConflict, "email already registered")
		}
		return internalError(c)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":        id,
		"email":     req.Email,
		"full_name": req.FullName,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /v1/auth/login.  Successful logins get a short-lived
// access token and a refresh token whose hash is persisted.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	g, err := h.Graduates.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiError(c, http.StatusUnauthorized, kindUnauthorized, "invalid credentials")
		}
		return internalError(c)
	}
	if !utils.VerifyPassword(g.PasswordHash, req.Password) {
		return apiError(c, http.StatusUnauthorized, kindUnauthorized, "invalid credentials")
	}

	return h.issueTokens(c, g)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh handles POST /v1/auth/refresh.  The presented refresh token is
// revoked and replaced, so each token rotates on use.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	hash := utils.HashRefreshRaw(req.RefreshToken)
	graduateID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return apiError(c, http.StatusUnauthorized, kindUnauthorized, "invalid refresh token")
	}
	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return internalError(c)
	}
	return h.issueTokens(c, g)
}

// RefreshAccess handles POST /v1/auth/refresh-access.  It issues a new
// access token without rotating the refresh token, for clients that refresh
// proactively.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apiError(c, http.StatusBadRequest, kindBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	graduateID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(req.RefreshToken))
	if err != nil {
		return apiError(c, http.StatusUnauthorized, kindUnauthorized, "invalid refresh token")
	}
	g, err := h.Graduates.GetByID(ctx, graduateID)
	if err != nil {
		return internalError(c)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": access.Token,
		"expires_at":   access.Exp.Format(time.RFC3339),
	})
}

// Logout handles POST /v1/auth/logout, revoking every refresh token of the
// authenticated graduate.
func (h *AuthHandler) Logout(c echo.Context) error {
	graduateID, err := getGraduateID(c)
	if err != nil {
		return unauthorized(c)
	}
	if err := h.Tokens.RevokeAllForGraduate(c.Request().Context(), graduateID); err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) issueTokens(c echo.Context, g *model.Graduate) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, g.ID, g.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalError(c)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return internalError(c)
	}
	if err := h.Tokens.StoreRefresh(c.Request().Context(), g.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access.Token,
		"expires_at":    access.Exp.Format(time.RFC3339),
		"refresh_token": refresh.Raw,
		"role":          g.Role,
	})
}
