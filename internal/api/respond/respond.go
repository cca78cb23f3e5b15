// Package respond writes the JSON envelopes every HelpOrbit endpoint returns.
// Success bodies carry "success": true. Failures carry "success": false, a
// client-safe "error" message, the machine-readable "code" and, for
// validation failures, per-field "errors".
package respond

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/services"
)

// unexpectedMessage is the only text a client sees for errors outside the
// service taxonomy.
const unexpectedMessage = "An unexpected error occurred. Please try again."

var statusByCode = map[string]int{
	services.CodeValidation:         http.StatusBadRequest,
	services.CodePermission:         http.StatusForbidden,
	services.CodeNotFound:           http.StatusNotFound,
	services.CodeAlreadyProcessed:   http.StatusConflict,
	services.CodeExpired:            http.StatusGone,
	services.CodeWrongUser:          http.StatusForbidden,
	services.CodeSlugTaken:          http.StatusConflict,
	services.CodeConflict:           http.StatusConflict,
	services.CodeNeedsLogin:         http.StatusUnauthorized,
	services.CodeLastOwner:          http.StatusConflict,
	services.CodeInvalidCredentials: http.StatusUnauthorized,
	services.CodeSelfRemoval:        http.StatusBadRequest,
	services.CodeEmailUnverified:    http.StatusForbidden,
}

// Status returns the HTTP status for an error code.
func Status(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// OK writes a 200 envelope with data merged into it.
func OK(c *gin.Context, data gin.H) {
	JSON(c, http.StatusOK, data)
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data gin.H) {
	JSON(c, http.StatusCreated, data)
}

// JSON writes a success envelope with the given status.
func JSON(c *gin.Context, status int, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error writes the failure envelope for err and aborts the chain.
// Unexpected errors are logged with the request id and answered with a
// generic 500.
func Error(c *gin.Context, err error) {
	code := services.ErrorCode(err)
	status := Status(code)

	body := gin.H{"success": false, "code": code}

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		body["error"] = verr.Message
		if len(verr.Fields) > 0 {
			body["errors"] = verr.Fields
		}
	case code == services.CodeUnexpected:
		slog.Error("unexpected error",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		body["error"] = unexpectedMessage
	default:
		body["error"] = err.Error()
	}

	c.AbortWithStatusJSON(status, body)
}

// Fail writes a failure envelope with an explicit status, code and message.
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message, "code": code})
}

// BadRequest reports a body or query that could not be decoded.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, services.CodeValidation, message)
}
