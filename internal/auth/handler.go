package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/database"
	"github.com/aura-webinar/spotlight/pkg/response"
	"github.com/aura-webinar/spotlight/pkg/validate"
)

// contextUserID mirrors middleware.ContextUserID; middleware imports this package.
const contextUserID = "user_id"

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=100"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StripeAccountRequest is the body for PUT /auth/me/stripe-account.
type StripeAccountRequest struct {
	AccountID string `json:"account_id" validate:"required,startswith=acct_"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		response.Error(c, h.logger, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, strings.TrimSpace(req.FullName), models.RolePresenter)
	if database.IsUniqueViolation(err, "") {
		response.BadRequest(c, "email already registered")
		return
	}
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.logger.Info("presenter registered", zap.String("user_id", user.ID.String()))
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if user == nil || !CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(contextUserID).(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// SetStripeAccount handles PUT /auth/me/stripe-account.
func (h *Handler) SetStripeAccount(c *gin.Context) {
	var req StripeAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	userID := c.MustGet(contextUserID).(uuid.UUID)
	if err := h.repo.SetStripeConnectID(c.Request.Context(), userID, req.AccountID); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"stripe_connected": true})
}
