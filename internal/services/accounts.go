package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/validation"
)

// AccountService handles sign-up, sign-in, sessions, email verification and
// password resets.
type AccountService struct {
	base
	users         UserStore
	orgs          OrganizationStore
	verifications VerificationStore
	mailer        Mailer

	sessionTTL       time.Duration
	verificationTTL  time.Duration
	passwordResetTTL time.Duration
	bcryptCost       int
}

func newAccountService(b base, deps Dependencies, opts Options) *AccountService {
	s := &AccountService{
		base:             b,
		users:            deps.Stores.Users,
		orgs:             deps.Stores.Organizations,
		verifications:    deps.Stores.Verifications,
		mailer:           deps.Mailer,
		sessionTTL:       opts.SessionTTL,
		verificationTTL:  opts.VerificationTTL,
		passwordResetTTL: opts.PasswordResetTTL,
		bcryptCost:       opts.BcryptCost,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	if s.verificationTTL <= 0 {
		s.verificationTTL = 24 * time.Hour
	}
	if s.passwordResetTTL <= 0 {
		s.passwordResetTTL = time.Hour
	}
	return s
}

// SignUpInput is the body of a sign-up request.
type SignUpInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SignInInput is the body of a sign-in request.
type SignInInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed-in user with their bearer token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// SessionInfo describes the current session.
type SessionInfo struct {
	User                 *models.User             `json:"user"`
	ActiveOrganizationID *string                  `json:"active_organization_id"`
	Memberships          []*models.UserMembership `json:"memberships"`
}

// SignUp creates an account and sends the email verification link. The
// account can sign in before the email is verified.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validate(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, invalidField("password", "must be at most 72 bytes")
		}
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, translate(err)
	}
	s.logger.Info("user signed up", "user_id", user.ID)

	token, err := s.issueToken(ctx, user.ID, models.VerificationEmail, s.verificationTTL)
	if err != nil {
		s.logger.Error("failed to issue verification token", "user_id", user.ID, "error", err)
	} else if err := s.mailer.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		s.logger.Error("failed to send verification email", "user_id", user.ID, "error", err)
	}

	return s.session(user)
}

// SignIn checks an email and password. Unknown emails and wrong passwords
// fail the same way.
func (s *AccountService) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, validation.NormalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *AccountService) session(user *models.User) (*Session, error) {
	token, err := auth.GenerateJWT(user.ID, user.Email, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: s.now().Add(s.sessionTTL), User: user}, nil
}

// GetSession returns the actor's user, active organization and memberships.
func (s *AccountService) GetSession(ctx context.Context, actor Actor) (*SessionInfo, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	memberships, err := s.orgs.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		User:                 user,
		ActiveOrganizationID: user.ActiveOrganizationID,
		Memberships:          memberships,
	}, nil
}

// SetActiveOrganization records which organization the actor is working in.
// nil clears it. The actor must be a member.
func (s *AccountService) SetActiveOrganization(ctx context.Context, actor Actor, orgID *string) error {
	if actor.UserID == "" {
		return ErrUnauthenticated
	}
	if orgID != nil && *orgID == "" {
		orgID = nil
	}
	if orgID != nil {
		if _, err := uuid.Parse(*orgID); err != nil {
			return ErrPermission
		}
		if _, err := s.membership(ctx, actor, *orgID); err != nil {
			return err
		}
	}
	if err := s.users.SetActiveOrganization(ctx, actor.UserID, orgID, s.now()); err != nil {
		return translate(err)
	}
	s.revalidate(ctx, cache.UserTag(actor.UserID))
	return nil
}

// VerifyEmail redeems an email verification token.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	v, err := s.redeem(ctx, models.VerificationEmail, token)
	if err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, v.UserID, s.now()); err != nil {
		return translate(err)
	}
	s.revalidate(ctx, cache.UserTag(v.UserID))
	return nil
}

// RequestPasswordReset emails a reset link when the address belongs to an
// account. It succeeds either way so callers cannot probe for accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return invalidField("email", "is required")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	token, err := s.issueToken(ctx, user.ID, models.VerificationPasswordReset, s.passwordResetTTL)
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.passwordResetTTL)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, token, expiresAt); err != nil {
		s.logger.Error("failed to send password reset email", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword redeems a password reset token and sets a new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < auth.MinPasswordLength {
		return invalidField("password", "must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return invalidField("password", "must be at most 72 bytes")
		}
		return err
	}
	v, err := s.redeem(ctx, models.VerificationPasswordReset, token)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, v.UserID, hash, s.now()); err != nil {
		return translate(err)
	}
	s.logger.Info("password reset", "user_id", v.UserID)
	return nil
}

func (s *AccountService) issueToken(ctx context.Context, userID string, purpose models.VerificationPurpose, ttl time.Duration) (string, error) {
	token, hash, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	v := &models.Verification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		return "", err
	}
	return token, nil
}

// redeem looks up and consumes a single-use token.
func (s *AccountService) redeem(ctx context.Context, purpose models.VerificationPurpose, token string) (*models.Verification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalidField("token", "is required")
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return nil, err
	}
	v, err := s.verifications.GetByTokenHash(ctx, purpose, hash)
	if err != nil {
		return nil, err
	}
	if v == nil || v.ConsumedAt != nil {
		return nil, ErrNotFound
	}
	now := s.now()
	if !v.Usable(now) {
		return nil, ErrExpired
	}
	if err := s.verifications.Consume(ctx, v.ID, now); err != nil {
		return nil, translate(err)
	}
	return v, nil
}
