package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/backend/middleware"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	config *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token      string `json:"token"`
	ExpiresAt  string `json:"expires_at"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}

	user := h.config.FindUser(req.Username)
	if user == nil || !passwordMatches(user.Password, req.Password) {
		fail(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user, &h.config.Auth)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	ok(c, http.StatusOK, LoginResponse{
		Token:      token,
		ExpiresAt:  expiresAt.Format(time.RFC3339),
		Username:   user.Username,
		Role:       user.Role,
		EmployeeID: user.EmployeeID,
		Name:       user.Name,
	})
}

// passwordMatches accepts bcrypt hashes and, for local setups, plain text
func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// GetCurrentUser returns the current user info
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	username := middleware.GetUsername(c)
	resp := gin.H{
		"username":    username,
		"role":        middleware.GetRole(c),
		"employee_id": middleware.GetEmployeeID(c),
	}
	if user := h.config.FindUser(username); user != nil && user.Name != "" {
		resp["name"] = user.Name
	}
	ok(c, http.StatusOK, resp)
}
