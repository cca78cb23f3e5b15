package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helporbit/helporbit/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(t *testing.T, fn func(c *gin.Context)) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestError_Taxonomy(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrPermission, http.StatusForbidden, "permission_denied"},
		{services.ErrNotFound, http.StatusNotFound, "not_found"},
		{services.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
		{services.ErrExpired, http.StatusGone, "expired"},
		{services.ErrWrongUser, http.StatusForbidden, "wrong_user"},
		{services.ErrSlugTaken, http.StatusConflict, "slug_taken"},
		{fmt.Errorf("%w: email", services.ErrUniqueness), http.StatusConflict, "conflict"},
		{services.ErrUnauthenticated, http.StatusUnauthorized, "needs_login"},
		{services.ErrLastOwner, http.StatusConflict, "last_owner"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := run(t, func(c *gin.Context) { Error(c, tt.err) })
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestError_ValidationFields(t *testing.T) {
	err := &services.ValidationError{Message: "invalid input", Fields: map[string]string{"email": "must be a valid email address"}}

	status, body := run(t, func(c *gin.Context) { Error(c, err) })

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["code"])
	assert.Equal(t, "invalid input", body["error"])
	assert.Equal(t, map[string]any{"email": "must be a valid email address"}, body["errors"])
}

func TestError_UnexpectedIsSanitized(t *testing.T) {
	status, body := run(t, func(c *gin.Context) {
		Error(c, errors.New("pq: connection refused to 10.0.0.5"))
	})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "unexpected", body["code"])
	assert.Equal(t, unexpectedMessage, body["error"])
	assert.NotContains(t, body["error"], "10.0.0.5")
}

func TestOKAndCreated(t *testing.T) {
	status, body := run(t, func(c *gin.Context) { OK(c, gin.H{"slug": "acme"}) })
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "acme", body["slug"])

	status, body = run(t, func(c *gin.Context) { Created(c, nil) })
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, map[string]any{"success": true}, body)
}

func TestStatus_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Status("nope"))
}
