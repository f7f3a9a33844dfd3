package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
	"github.com/longxianmian/goodpick-go-sub000/internal/auth"
	"github.com/longxianmian/goodpick-go-sub000/internal/websocket"
)

// Handler owns the HTTP surface: auth endpoints, health/metrics, and
// the websocket upgrade.
type Handler struct {
	authenticator *auth.Authenticator
	users         repositories.UserRepository
	router        *websocket.Router
	logger        *zap.Logger
}

// NewHandler wires the HTTP surface.
func NewHandler(authenticator *auth.Authenticator, users repositories.UserRepository, router *websocket.Router, logger *zap.Logger) *Handler {
	return &Handler{
		authenticator: authenticator,
		users:         users,
		router:        router,
		logger:        logger,
	}
}

// InitRoutes initializes all API routes
func (h *Handler) InitRoutes(e *echo.Echo) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "goodpick-server",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	// WebSocket endpoint; the token pre-check here is advisory, the
	// router re-verifies post-upgrade before emitting authSuccess.
	e.GET("/ws", h.serveWebSocket)
}

func (h *Handler) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Username == "" || req.Password == "" || req.Language == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Username, password and language are required",
		})
	}

	if _, err := h.users.GetByUsername(c.Request().Context(), req.Username); err == nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "username_taken",
			Message: "Username is already registered",
		})
	} else if !errors.Is(err, repositories.ErrNotFound) {
		h.logger.Error("username lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("password hashing failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}

	now := time.Now()
	user := &entities.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Language:     req.Language,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}
	if err := h.users.Create(c.Request().Context(), user); err != nil {
		h.logger.Error("user creation failed",
			zap.String("username", req.Username), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}

	return h.issueToken(c, user)
}

func (h *Handler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	user, err := h.users.GetByUsername(c.Request().Context(), req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "authentication_failed",
				Message: "Invalid username or password",
			})
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error",
		})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid username or password",
		})
	}

	return h.issueToken(c, user)
}

func (h *Handler) issueToken(c echo.Context, user *entities.User) error {
	token, err := h.authenticator.Issue(user.ID, uuid.NewString())
	if err != nil {
		h.logger.Error("token issue failed",
			zap.String("userID", user.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "token_generation_failed",
		})
	}
	return c.JSON(http.StatusOK, AuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.authenticator.TTL()),
		UserID:    user.ID,
	})
}

// serveWebSocket rejects upgrade requests with no extractable token
// pre-upgrade, then hands off to the realtime router.
func (h *Handler) serveWebSocket(c echo.Context) error {
	token := h.authenticator.ExtractFromHandshake(c.Request())
	if token == "" {
		h.logger.Warn("websocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "A bearer token is required",
		})
	}
	return websocket.Serve(c.Response(), c.Request(), token, h.router, h.logger)
}
