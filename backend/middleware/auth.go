package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/pkg/logger"
)

// Claims represents the JWT claims
type Claims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	EmployeeID string `json:"employee_id"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new JWT token for a user
func GenerateToken(user *config.User, cfg *config.AuthConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(cfg.TokenExpireHours) * time.Hour)

	claims := Claims{
		Username:   user.Username,
		Role:       user.Role,
		EmployeeID: user.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.EmployeeID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// AuthMiddleware validates JWT token and extracts user info
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Set("employee_id", claims.EmployeeID)

		ctx := logger.WithCaller(c.Request.Context(), claims.Username, claims.Role, claims.EmployeeID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Access denied")
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func getString(c *gin.Context, key string) string {
	if v, exists := c.Get(key); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUsername gets the username from context
func GetUsername(c *gin.Context) string {
	return getString(c, "username")
}

// GetRole gets the role from context
func GetRole(c *gin.Context) string {
	return getString(c, "role")
}

// GetEmployeeID gets the employee id from context
func GetEmployeeID(c *gin.Context) string {
	return getString(c, "employee_id")
}
