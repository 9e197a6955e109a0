package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusauth/internal/account"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Role     string `json:"role" binding:"omitempty,role"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type otpRequest struct {
	Username string `json:"username" binding:"required"`
}

type otpVerifyRequest struct {
	Username string `json:"username" binding:"required"`
	OTP      string `json:"otp" binding:"required,otpcode"`
}

type passwordResetRequest struct {
	Username    string `json:"username" binding:"required"`
	OTP         string `json:"otp" binding:"required,otpcode"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sess, err := h.deps.Accounts.Login(c.Request.Context(), req.Username, req.Password)
	h.count("login", err)
	if err != nil {
		fail(c, err, "Login failed")
		return
	}

	resp := gin.H{
		"success":    true,
		"token":      sess.Token.Value,
		"role":       sess.Role,
		"username":   sess.Username,
		"expires_at": sess.Token.ExpiresAt.Unix(),
	}
	for _, alias := range aliasesFor(sess.Role) {
		resp[alias] = sess.Token.Value
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cred, err := h.deps.Accounts.Signup(c.Request.Context(), account.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Email:    req.Email,
	})
	h.count("signup", err)
	if err != nil {
		fail(c, err, "Signup failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"id":       cred.ID,
			"username": cred.Username,
			"role":     cred.Role,
		},
	})
}

func (h *handler) requestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.deps.Accounts.RequestOTP(c.Request.Context(), req.Username); err != nil {
		fail(c, err, "OTP generation failed")
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.OTPIssued.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP sent"})
}

func (h *handler) verifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.deps.Accounts.VerifyOTP(c.Request.Context(), req.Username, req.OTP)
	h.count("verify", err)
	if err != nil {
		fail(c, err, "Verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "OTP Verified"})
}

func (h *handler) resetPassword(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.deps.Accounts.ResetPassword(c.Request.Context(), req.Username, req.OTP, req.NewPassword)
	h.count("reset", err)
	if err != nil {
		fail(c, err, "Reset failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}

// logout is stateless: tokens expire on their own.
func (h *handler) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
