package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/api/documents", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	tests := []struct {
		name     string
		header   string
		keep     bool
		generate bool
	}{
		{"generated when absent", "", false, true},
		{"existing id kept", "existing-request-id-123", true, false},
		{"trace style id kept", "web:7f3a.01_b", true, false},
		{"oversized id replaced", strings.Repeat("x", maxRequestIDLen+1), false, true},
		{"spaces replaced", "two words", false, true},
		{"control characters replaced", "id\r\nX-Injected: 1", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/documents", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got != w.Body.String() {
				t.Errorf("header %q and context %q disagree", got, w.Body.String())
			}
			if tt.keep && got != tt.header {
				t.Errorf("Expected request ID %q, got %q", tt.header, got)
			}
			if tt.generate {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("Expected a generated UUID, got %q", got)
				}
			}
		})
	}
}

func TestGetRequestIDEmpty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if requestID := GetRequestID(c); requestID != "" {
		t.Errorf("Expected empty string, got '%s'", requestID)
	}
}
