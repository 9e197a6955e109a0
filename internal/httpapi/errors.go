package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusauth/internal/academic"
	"campusauth/internal/account"
	"campusauth/internal/auth"
)

const (
	codeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	codeConflict           = "RESOURCE_CONFLICT"
	codeNotFound           = "RESOURCE_NOT_FOUND"
	codeValidation         = "VALIDATION_ERROR"
	codeInternal           = "INTERNAL_SERVER_ERROR"
)

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "code": code, "message": message})
}

func badRequest(c *gin.Context, err error) {
	body := gin.H{"success": false, "code": codeValidation, "message": "Invalid request body"}
	if details := describeBindError(err); len(details) > 0 {
		body["details"] = details
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}

// fail maps a flow error onto the response taxonomy. Unexpected errors are
// logged here and reported to the caller only as internalMsg.
func fail(c *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		abort(c, http.StatusUnauthorized, codeInvalidCredentials, "Invalid username or password")
	case errors.Is(err, account.ErrConflict):
		abort(c, http.StatusConflict, codeConflict, "Username already exists")
	case errors.Is(err, account.ErrNotFound):
		abort(c, http.StatusNotFound, codeNotFound, "User not found")
	case errors.Is(err, account.ErrInvalidOTP):
		abort(c, http.StatusBadRequest, codeValidation, "Invalid or expired OTP")
	case errors.Is(err, auth.ErrPasswordTooLong):
		abort(c, http.StatusBadRequest, codeValidation, "Password must be at most 72 bytes")
	case errors.Is(err, academic.ErrInvalidRecord):
		abort(c, http.StatusBadRequest, codeValidation, err.Error())
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		abort(c, http.StatusInternalServerError, codeInternal, internalMsg)
	}
}
