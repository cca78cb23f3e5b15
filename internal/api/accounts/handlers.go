// Package accounts implements the sign-up, sign-in, session and password
// endpoints under /api/v1/auth.
package accounts

import (
	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// Handlers serves the account endpoints
type Handlers struct {
	accounts *services.AccountService
}

// NewHandlers creates the account handlers
func NewHandlers(accounts *services.AccountService) *Handlers {
	return &Handlers{accounts: accounts}
}

func sessionBody(s *services.Session) gin.H {
	return gin.H{"token": s.Token, "expires_at": s.ExpiresAt, "user": s.User}
}

// SignUpHandler creates an account and signs it in
// POST /api/v1/auth/sign-up
func (h *Handlers) SignUpHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.SignUpInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		session, err := h.accounts.SignUp(c.Request.Context(), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, sessionBody(session))
	}
}

// SignInHandler exchanges email and password for a session token
// POST /api/v1/auth/sign-in
func (h *Handlers) SignInHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.SignInInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		session, err := h.accounts.SignIn(c.Request.Context(), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, sessionBody(session))
	}
}

// SessionHandler returns the signed-in user with their memberships
// GET /api/v1/auth/session
func (h *Handlers) SessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := h.accounts.GetSession(c.Request.Context(), middleware.ActorFrom(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{
			"user":                   info.User,
			"active_organization_id": info.ActiveOrganizationID,
			"memberships":            info.Memberships,
		})
	}
}

type activeOrganizationRequest struct {
	OrganizationID *string `json:"organization_id"`
}

// SetActiveOrganizationHandler switches the organization the user works in;
// a null organization_id clears it
// PUT /api/v1/auth/active-organization
func (h *Handlers) SetActiveOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req activeOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		if err := h.accounts.SetActiveOrganization(c.Request.Context(), middleware.ActorFrom(c), req.OrganizationID); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"active_organization_id": req.OrganizationID})
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

// VerifyEmailHandler redeems an email verification link
// POST /api/v1/auth/verify-email
func (h *Handlers) VerifyEmailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		if err := h.accounts.VerifyEmail(c.Request.Context(), req.Token); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Email verified"})
	}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordHandler emails a reset link. The response is the same
// whether or not the address has an account.
// POST /api/v1/auth/forgot-password
func (h *Handlers) ForgotPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req forgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "If an account exists for that email, a reset link has been sent"})
	}
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPasswordHandler sets a new password with a reset token
// POST /api/v1/auth/reset-password
func (h *Handlers) ResetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Password updated"})
	}
}
