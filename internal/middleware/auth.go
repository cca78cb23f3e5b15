// Package middleware provides Gin HTTP middleware for authentication,
// organization resolution, rate limiting, security headers, metrics and audit
// logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Logger → Security → CORS → Metrics → RateLimit → Auth → Org → Audit → Handler
//
// Security headers run early so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attempts before any DB
// work. Auth only establishes who the caller is; the services decide what the
// caller may do with the organization's role permission table.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/db/models"
	"github.com/helporbit/helporbit/internal/services"
)

// Context keys set by the auth middleware.
const (
	UserKey   = "user"
	UserIDKey = "user_id"
	ActorKey  = "actor"
)

// UserLookup loads the user named in a session token.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// bearerToken extracts the token from an "Authorization: Bearer" header. ok
// is false when the header is absent; a present but malformed header returns
// a message.
func bearerToken(c *gin.Context) (token string, ok bool, problem string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false, ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", true, "Authorization header must start with 'Bearer '"
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", true, "Authorization token is empty"
	}
	return token, true, ""
}

// authenticate resolves the session token into a user. A nil user with a nil
// error means the token was not acceptable.
func authenticate(c *gin.Context, users UserLookup, token string) (*models.User, error) {
	claims, err := auth.ValidateJWT(token)
	if err != nil {
		return nil, nil
	}
	return users.GetUserByID(c.Request.Context(), claims.UserID)
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(ActorKey, services.Actor{UserID: user.ID, Email: user.Email})
}

func needsLogin(c *gin.Context, message string) {
	respond.Fail(c, http.StatusUnauthorized, services.CodeNeedsLogin, message)
}

// AuthMiddleware requires a valid session token and stores the signed-in user
// and its services.Actor on the context.
func AuthMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present, problem := bearerToken(c)
		if !present {
			needsLogin(c, "Missing authorization header")
			return
		}
		if problem != "" {
			needsLogin(c, problem)
			return
		}

		user, err := authenticate(c, users, token)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if user == nil {
			needsLogin(c, "Invalid or expired session")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuthMiddleware is AuthMiddleware for routes that also serve
// anonymous callers, such as public organization pages. Bad or missing tokens
// leave the request anonymous.
func OptionalAuthMiddleware(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present, problem := bearerToken(c)
		if present && problem == "" {
			if user, err := authenticate(c, users, token); err == nil && user != nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

// ActorFrom returns the signed-in caller, or the zero Actor for anonymous
// requests.
func ActorFrom(c *gin.Context) services.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(services.Actor); ok {
			return actor
		}
	}
	return services.Actor{}
}

// UserFrom returns the signed-in user, or nil.
func UserFrom(c *gin.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
