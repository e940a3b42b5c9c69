package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hivedesk/onboarding/backend/config"
	"github.com/hivedesk/onboarding/backend/handler"
	"github.com/hivedesk/onboarding/backend/service"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server: config.ServerConfig{RateLimit: 100},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 1},
		Users:  []config.User{{Username: "hr", Password: "pw", Role: "hr", EmployeeID: "HR-1"}},
	}
	// listing never touches object storage
	docs := service.NewDocumentService(nil, service.NewMemoryStore(0), service.MockAnalyzer{}, nil, 0.8)
	return newRouter(cfg, handler.NewAuthHandler(cfg), handler.NewDocumentHandler(docs))
}

func TestRouterHealth(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}

func TestRouterRequiresAuth(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest("GET", "/api/documents", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc == "" {
		t.Error("Expected no-store headers on API responses")
	}
}

func TestRouterLoginThenList(t *testing.T) {
	router := testRouter()

	body, _ := json.Marshal(map[string]string{"username": "hr", "password": "pw"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Data.Token == "" {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.Token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var list struct {
		Success bool `json:"success"`
		Data    struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &list)
	if !list.Success || list.Data.Total != 0 {
		t.Errorf("unexpected list response: %s", w.Body.String())
	}
}
